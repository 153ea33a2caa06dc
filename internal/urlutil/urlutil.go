// Package urlutil holds the URL canonicalization and filename mapping
// rules shared by the config loader, the crawler, and the persistence
// strategies. Every deduplication decision goes through Normalize.
package urlutil

import (
	"crypto/sha1"
	"encoding/hex"
	neturl "net/url"
	"regexp"
	"strings"
)

// maxFilenameLen caps generated file stems; longer stems are truncated and
// suffixed with a hash of the full URL to stay distinct.
const maxFilenameLen = 120

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
}

var (
	unsafeFileChars   = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
	underscoreRuns    = regexp.MustCompile(`_+`)
	unsafeDomainChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// Normalize canonicalizes a URL: the fragment is dropped, a trailing slash
// is stripped, and with stripTracking set the utm_* query parameters are
// removed while every other parameter keeps its position. Normalize is
// idempotent and returns unparseable input unchanged.
func Normalize(raw string, stripTracking bool) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.RawPath != "" {
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}
	if stripTracking {
		u.RawQuery = stripTrackingQuery(u.RawQuery)
	}
	return u.String()
}

// stripTrackingQuery removes tracking parameters from a raw query string
// without reordering the remaining pairs. url.Values cannot be used here
// since its encoding sorts keys.
func stripTrackingQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.Index(pair, "="); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := neturl.QueryUnescape(key); err == nil {
			key = decoded
		}
		if trackingParams[strings.ToLower(key)] {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// Domain returns the lowercased hostname with any leading "www." removed,
// or "" when the URL has no host.
func Domain(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsSubdomain reports whether host is a proper subdomain of base, using a
// dot-anchored suffix check so lookalike registrations never match.
func IsSubdomain(host, base string) bool {
	if host == "" || base == "" || host == base {
		return false
	}
	return strings.HasSuffix(host, "."+base)
}

// SanitizeFilename maps a string onto the filesystem-safe alphabet,
// collapsing runs of replacements.
func SanitizeFilename(s string) string {
	s = unsafeFileChars.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// SanitizeDomainDir maps a domain onto a directory name.
func SanitizeDomainDir(domain string) string {
	s := unsafeDomainChars.ReplaceAllString(domain, "_")
	return strings.Trim(s, "_")
}

// FileStemForURL derives the per-page file stem from a URL's path. The
// site root maps to "index". Stems longer than the cap are truncated and
// suffixed with a short hash of the full URL so distinct deep paths never
// collide.
func FileStemForURL(url string) string {
	path := ""
	if u, err := neturl.Parse(url); err == nil {
		path = u.Path
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "index"
	}
	stem := SanitizeFilename(strings.ReplaceAll(path, "/", "_"))
	if stem == "" {
		return "index"
	}
	if len(stem) > maxFilenameLen {
		stem = stem[:maxFilenameLen-9] + "_" + Hash(url)[:8]
	}
	return stem
}

// Hash returns the hex SHA-1 of s.
func Hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Dedupe returns the URLs with duplicates removed, comparing by normalized
// form and keeping the first occurrence in its original spelling.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key := Normalize(u, true)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}
