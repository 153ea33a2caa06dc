// Package sitemap fetches and parses sitemap XML documents, including
// sitemap index files that point at child sitemaps.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxIndexDepth bounds recursion through nested sitemap index files.
const maxIndexDepth = 3

// xmlURLSet is the root element of a standard sitemap.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc string `xml:"loc"`
}

// xmlSitemapIndex is the root element of a sitemap index file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// ParseURLSet parses sitemap XML and returns the page URLs it lists.
func ParseURLSet(body []byte) ([]string, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	urls := make([]string, 0, len(urlset.URLs))
	for _, entry := range urlset.URLs {
		if entry.Loc != "" {
			urls = append(urls, entry.Loc)
		}
	}
	return urls, nil
}

// ParseIndex parses a sitemap index file and returns its child sitemap URLs.
func ParseIndex(body []byte) ([]string, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse sitemap index: %w", err)
	}
	urls := make([]string, 0, len(index.Sitemaps))
	for _, entry := range index.Sitemaps {
		if entry.Loc != "" {
			urls = append(urls, entry.Loc)
		}
	}
	return urls, nil
}

// Client retrieves sitemaps over HTTP and resolves index files recursively.
// It satisfies config.SitemapLister.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewClient builds a sitemap Client with the given timeout and user agent.
func NewClient(timeout time.Duration, userAgent string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// List fetches the sitemap at sitemapURL and returns every page URL it
// declares. Index files are followed up to a fixed depth; a child sitemap
// that fails to load is logged and skipped rather than failing the whole
// listing.
func (c *Client) List(ctx context.Context, sitemapURL string) ([]string, error) {
	return c.list(ctx, sitemapURL, maxIndexDepth)
}

func (c *Client) list(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	body, err := c.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	if urls, err := ParseURLSet(body); err == nil && len(urls) > 0 {
		return urls, nil
	}

	children, err := ParseIndex(body)
	if err != nil {
		return nil, fmt.Errorf("sitemap %s is neither urlset nor index: %w", sitemapURL, err)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("sitemap index nesting exceeds %d levels", maxIndexDepth)
	}

	var urls []string
	for _, child := range children {
		childURLs, err := c.list(ctx, child, depth-1)
		if err != nil {
			c.logger.Warn("Skipping child sitemap", zap.String("url", child), zap.Error(err))
			continue
		}
		urls = append(urls, childURLs...)
	}
	return urls, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sitemap body: %w", err)
	}
	return body, nil
}
