// Package crawler implements the traversal engine: dispatching fetches for
// configured items, deduplicating visited URLs, filtering discovered links,
// and recursively expanding scrap roots under a global concurrency cap.
package crawler

import (
	"context"

	"github.com/JakeFAU/docs-crawler/internal/config"
)

// PageResult is returned by a PageFetcher for a successful fetch.
type PageResult struct {
	// Content is the extracted text of the page; may be empty for link
	// hubs that carry no content of their own.
	Content string
	// InternalLinks are absolute outbound links on the same site.
	InternalLinks []string
	// ExternalLinks are absolute outbound links to other sites.
	ExternalLinks []string
}

// PageFetcher retrieves a page and extracts its content and outbound links.
// The item carries the run policy (selectors, output format); fetch errors
// terminate only the affected branch.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, item config.Item) (PageResult, error)
}

// TranscriptFetcher recognizes video URLs and retrieves their transcripts.
type TranscriptFetcher interface {
	// Matches reports whether the URL belongs to a supported video host.
	Matches(url string) bool
	// Canonical maps any recognized video URL form onto the address the
	// transcript is persisted under; unrecognized URLs come back unchanged.
	Canonical(url string) string
	// Transcript returns the transcript text for a video URL.
	Transcript(ctx context.Context, videoURL string) (string, error)
}

// Persister is the persistence contract the orchestrator depends on;
// internal/persist strategies satisfy it.
type Persister interface {
	Save(url, content string) string
	Finalize()
}
