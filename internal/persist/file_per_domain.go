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

// pageSeparator sits between buffered pages inside a domain file.
const pageSeparator = "\n\n---\n\n"

type bufferedPage struct {
	url     string
	content string
}

// domainBuffer accumulates pages for one domain. Its lock serializes the
// append-then-maybe-flush sequence so concurrent fetches of the same domain
// cannot interleave buffer mutations.
type domainBuffer struct {
	mu    sync.Mutex
	pages []bufferedPage
	bytes int64
}

// FilePerDomain buffers pages per domain and writes each domain's pages to
// a single <domain>.md file once either the page-count or byte threshold is
// reached, and again at Finalize for whatever remains.
type FilePerDomain struct {
	outputDir      string
	bufferSize     int
	flushSizeBytes int64
	clock          Clock
	logger         *zap.Logger

	mu      sync.Mutex
	buffers map[string]*domainBuffer

	recordsMu sync.Mutex
	records   []SavedDomainFileInfo
}

// NewFilePerDomain creates the buffered per-domain strategy.
func NewFilePerDomain(outputDir string, opts Options, clock Clock, logger *zap.Logger) (*FilePerDomain, error) {
	if opts.BufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be > 0")
	}
	if opts.FlushSizeBytes <= 0 {
		return nil, fmt.Errorf("flush size must be > 0")
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}
	return &FilePerDomain{
		outputDir:      outputDir,
		bufferSize:     opts.BufferSize,
		flushSizeBytes: opts.FlushSizeBytes,
		clock:          clock,
		logger:         logger,
		buffers:        make(map[string]*domainBuffer),
	}, nil
}

// Save buffers content for the URL's domain and flushes synchronously when
// a threshold is reached. The returned path is where the domain's file
// lives (or will live after the next flush). A failed flush keeps the
// buffer intact for a later retry.
func (s *FilePerDomain) Save(url, content string) string {
	if strings.TrimSpace(content) == "" {
		s.logger.Warn("Empty content, nothing to buffer", zap.String("url", url))
		return ""
	}

	domain := urlutil.Domain(url)
	if domain == "" {
		domain = "unknown"
	}
	buf := s.buffer(domain)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.pages = append(buf.pages, bufferedPage{url: url, content: content})
	buf.bytes += int64(len(content))
	s.logger.Debug("Buffered page", zap.String("domain", domain), zap.String("url", url))

	if len(buf.pages) >= s.bufferSize || buf.bytes >= s.flushSizeBytes {
		if err := s.flushLocked(domain, buf); err != nil {
			s.logger.Error("Flush failed, keeping buffer for retry",
				zap.String("domain", domain), zap.Error(err))
		}
	}
	return s.domainFilePath(domain)
}

// Finalize flushes every domain with a pending buffer. It is a no-op when
// nothing is buffered and safe to call repeatedly.
func (s *FilePerDomain) Finalize() {
	s.mu.Lock()
	domains := make([]string, 0, len(s.buffers))
	for domain := range s.buffers {
		domains = append(domains, domain)
	}
	s.mu.Unlock()

	for _, domain := range domains {
		buf := s.buffer(domain)
		buf.mu.Lock()
		if len(buf.pages) > 0 {
			if err := s.flushLocked(domain, buf); err != nil {
				s.logger.Error("Final flush failed", zap.String("domain", domain), zap.Error(err))
			}
		}
		buf.mu.Unlock()
	}

	s.recordsMu.Lock()
	count := len(s.records)
	s.recordsMu.Unlock()
	s.logger.Info("Per-domain persistence complete", zap.Int("domain_files", count))
}

// Records returns a copy of the flush log.
func (s *FilePerDomain) Records() Records {
	s.recordsMu.Lock()
	defer s.recordsMu.Unlock()
	return Records{DomainFiles: append([]SavedDomainFileInfo(nil), s.records...)}
}

// PendingPages reports the number of buffered, unflushed pages across all
// domains. After Finalize it is always zero.
func (s *FilePerDomain) PendingPages() int {
	s.mu.Lock()
	buffers := make([]*domainBuffer, 0, len(s.buffers))
	for _, buf := range s.buffers {
		buffers = append(buffers, buf)
	}
	s.mu.Unlock()

	total := 0
	for _, buf := range buffers {
		buf.mu.Lock()
		total += len(buf.pages)
		buf.mu.Unlock()
	}
	return total
}

func (s *FilePerDomain) buffer(domain string) *domainBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[domain]
	if !ok {
		buf = &domainBuffer{}
		s.buffers[domain] = buf
	}
	return buf
}

// flushLocked writes the domain's buffered pages in insertion order and
// resets the buffer. The caller holds buf.mu. On error the buffer is left
// untouched so no content is lost.
func (s *FilePerDomain) flushLocked(domain string, buf *domainBuffer) error {
	if len(buf.pages) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, page := range buf.pages {
		if i > 0 {
			sb.WriteString(pageSeparator)
		}
		sb.WriteString("# ")
		sb.WriteString(page.url)
		sb.WriteString("\n\n")
		sb.WriteString(page.content)
	}

	path := s.domainFilePath(domain)
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("write domain file %s: %w", path, err)
	}

	urls := make([]string, len(buf.pages))
	for i, page := range buf.pages {
		urls[i] = page.url
	}
	info := SavedDomainFileInfo{
		Domain:    domain,
		Path:      path,
		Pages:     len(buf.pages),
		Size:      int(buf.bytes),
		URLs:      urls,
		FlushedAt: s.clock.Now(),
	}

	s.recordsMu.Lock()
	s.records = append(s.records, info)
	s.recordsMu.Unlock()

	s.logger.Info("Flushed domain buffer",
		zap.String("domain", domain),
		zap.Int("pages", info.Pages),
		zap.Int("bytes", info.Size),
	)

	buf.pages = nil
	buf.bytes = 0
	return nil
}

func (s *FilePerDomain) domainFilePath(domain string) string {
	return filepath.Join(s.outputDir, domain+".md")
}
