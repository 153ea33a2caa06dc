package collyfetcher

import (
	"bytes"
	"fmt"
	neturl "net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/docs-crawler/internal/config"
	"github.com/JakeFAU/docs-crawler/internal/crawler"
	"github.com/JakeFAU/docs-crawler/internal/urlutil"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

func (f *Fetcher) extract(p page, item config.Item) (crawler.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return crawler.PageResult{}, fmt.Errorf("parse %s: %w", p.finalURL, err)
	}
	base, err := neturl.Parse(p.finalURL)
	if err != nil {
		return crawler.PageResult{}, fmt.Errorf("parse final url %s: %w", p.finalURL, err)
	}

	internal, external := collectLinks(doc, base)

	root := contentRoot(doc, item.Selectors)
	format := item.OutputFormat
	if format == "" {
		format = f.defaults.OutputFormat
	}
	var content string
	if format == "text" {
		content = renderText(root)
	} else {
		content = renderMarkdown(root)
	}
	return crawler.PageResult{
		Content:       content,
		InternalLinks: internal,
		ExternalLinks: external,
	}, nil
}

func collectLinks(doc *goquery.Document, base *neturl.URL) (internal, external []string) {
	pageHost := urlutil.Domain(base.String())
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		abs := u.String()
		host := urlutil.Domain(abs)
		if host == pageHost || urlutil.IsSubdomain(host, pageHost) {
			internal = append(internal, abs)
		} else {
			external = append(external, abs)
		}
	})
	return internal, external
}

// contentRoot picks the nodes to render. Configured selectors win; when
// none match the usual documentation containers are tried before falling
// back to the whole body.
func contentRoot(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	for _, sel := range []string{"main", "article"} {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return doc.Find("body")
}

func renderText(sel *goquery.Selection) string {
	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		lines = append(lines, line)
	}
	out := strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(out, "\n\n"))
}

func renderMarkdown(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			renderNode(&b, n)
		}
	})
	return strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(collapseSpace(n.Data))
	case html.ElementNode:
		renderElement(b, n)
	}
}

func renderElement(b *strings.Builder, n *html.Node) {
	switch n.Data {
	case "script", "style", "noscript", "nav", "iframe", "svg":
		return
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "p", "section", "blockquote":
		b.WriteString("\n\n")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "li":
		b.WriteString("\n- ")
		renderChildren(b, n)
	case "ul", "ol", "table", "tr":
		renderChildren(b, n)
		b.WriteString("\n")
	case "td", "th":
		renderChildren(b, n)
		b.WriteString(" ")
	case "pre":
		b.WriteString("\n\n```\n")
		b.WriteString(strings.TrimRight(nodeText(n), "\n"))
		b.WriteString("\n```\n\n")
	case "code":
		b.WriteString("`")
		b.WriteString(nodeText(n))
		b.WriteString("`")
	case "a":
		text := collapseSpace(nodeText(n))
		href := attr(n, "href")
		if text == "" {
			return
		}
		if href == "" || strings.HasPrefix(href, "#") {
			b.WriteString(text)
			return
		}
		fmt.Fprintf(b, "[%s](%s)", text, href)
	case "strong", "b":
		b.WriteString("**")
		renderChildren(b, n)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		renderChildren(b, n)
		b.WriteString("*")
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\n") || strings.HasPrefix(s, "\t") {
		out = " " + out
	}
	if strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\t") {
		out += " "
	}
	return out
}
