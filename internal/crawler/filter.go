package crawler

import (
	"github.com/JakeFAU/docs-crawler/internal/config"
	"github.com/JakeFAU/docs-crawler/internal/urlutil"
)

// Eligible decides whether a normalized link may be fetched under the
// policy of its scrap root. The skip pattern is checked first and rejects
// a link regardless of any other setting. Hostname scope then admits the
// root's own hostname, its subdomains when includeSubdomains is set, and
// everything else only when includeExternal is set.
func Eligible(link string, root config.Item) bool {
	if root.SkipPattern != nil && root.SkipPattern.MatchString(link) {
		return false
	}
	host := urlutil.Domain(link)
	if host == "" {
		return false
	}
	rootHost := urlutil.Domain(root.URL)
	if host == rootHost {
		return true
	}
	if root.IncludeSubdomains && urlutil.IsSubdomain(host, rootHost) {
		return true
	}
	return root.IncludeExternal
}
