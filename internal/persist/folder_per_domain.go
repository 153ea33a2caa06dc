package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-crawler/internal/urlutil"
)

// FolderPerDomain writes one markdown file per page under a directory
// derived from the page's domain. Writes are whole-file overwrites, so the
// last save for a URL wins and re-runs refresh files in place.
type FolderPerDomain struct {
	outputDir string
	clock     Clock
	logger    *zap.Logger

	mu    sync.Mutex
	files []SavedFileInfo
}

// NewFolderPerDomain creates the per-page strategy rooted at outputDir.
func NewFolderPerDomain(outputDir string, clock Clock, logger *zap.Logger) (*FolderPerDomain, error) {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}
	return &FolderPerDomain{
		outputDir: outputDir,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Save writes content to <outputDir>/<domain>/<stem>.md and records the
// write. Empty content and I/O failures both return "".
func (s *FolderPerDomain) Save(url, content string) string {
	if strings.TrimSpace(content) == "" {
		s.logger.Warn("Empty content, nothing to save", zap.String("url", url))
		return ""
	}

	path := s.filePath(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		s.logger.Error("Failed to create domain dir", zap.String("url", url), zap.Error(err))
		return ""
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		s.logger.Error("Failed to write page file", zap.String("url", url), zap.String("path", path), zap.Error(err))
		return ""
	}

	s.mu.Lock()
	s.files = append(s.files, SavedFileInfo{
		URL:     url,
		Path:    path,
		Size:    len(content),
		SavedAt: s.clock.Now(),
	})
	s.mu.Unlock()

	s.logger.Debug("Saved page", zap.String("url", url), zap.String("path", path))
	return path
}

// Finalize has no buffered state to flush; it logs a summary and is safe to
// call any number of times.
func (s *FolderPerDomain) Finalize() {
	s.mu.Lock()
	count := len(s.files)
	s.mu.Unlock()
	s.logger.Info("Per-page persistence complete", zap.Int("files", count))
}

// Records returns a copy of the write log.
func (s *FolderPerDomain) Records() Records {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Records{Files: append([]SavedFileInfo(nil), s.files...)}
}

func (s *FolderPerDomain) filePath(url string) string {
	domain := urlutil.Domain(url)
	if domain == "" {
		domain = "unknown"
	}
	dir := urlutil.SanitizeDomainDir(domain)
	return filepath.Join(s.outputDir, dir, urlutil.FileStemForURL(url)+".md")
}
