// Package persist implements the durable storage strategies for crawled
// content: one file per page grouped in domain directories, or one buffered
// aggregate file per domain.
package persist

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Strategy names accepted by New.
const (
	StrategyFolderPerDomain = "folder_per_domain"
	StrategyFilePerDomain   = "file_per_domain"
)

// SavedFileInfo records one successfully written page file.
type SavedFileInfo struct {
	URL     string    `json:"url"`
	Path    string    `json:"path"`
	Size    int       `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

// SavedDomainFileInfo records one flush of a domain's aggregate file. A
// domain flushed more than once produces multiple records; the last one
// reflects the file's final contents.
type SavedDomainFileInfo struct {
	Domain    string    `json:"domain"`
	Path      string    `json:"path"`
	Pages     int       `json:"pages"`
	Size      int       `json:"size"`
	URLs      []string  `json:"urls"`
	FlushedAt time.Time `json:"flushed_at"`
}

// Records aggregates everything a strategy wrote during a run.
type Records struct {
	Files       []SavedFileInfo       `json:"files,omitempty"`
	DomainFiles []SavedDomainFileInfo `json:"domain_files,omitempty"`
}

// Strategy is the persistence contract consumed by the orchestrator.
//
// Save stores content for a URL and returns the target path. Empty content
// is a no-op returning "". Write failures are logged and reported as an
// empty path instead of propagating, so one bad page never aborts a run.
//
// Finalize flushes any buffered state. It is idempotent; calling it twice
// neither duplicates output nor fails.
type Strategy interface {
	Save(url, content string) string
	Finalize()
	Records() Records
}

// Clock supplies record timestamps; tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// Options tunes the buffered file_per_domain strategy.
type Options struct {
	// BufferSize is the page count per domain that triggers a flush.
	BufferSize int
	// FlushSizeBytes is the buffered byte count per domain that triggers
	// a flush.
	FlushSizeBytes int64
}

// New selects a Strategy by name. Unknown names are a configuration error.
func New(name, outputDir string, opts Options, clock Clock, logger *zap.Logger) (Strategy, error) {
	switch name {
	case StrategyFolderPerDomain:
		return NewFolderPerDomain(outputDir, clock, logger)
	case StrategyFilePerDomain:
		return NewFilePerDomain(outputDir, opts, clock, logger)
	default:
		return nil, fmt.Errorf("unknown persistence strategy: %q", name)
	}
}
