// Package collyfetcher implements the page fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-crawler/internal/config"
	"github.com/JakeFAU/docs-crawler/internal/crawler"
)

const defaultTimeout = 30 * time.Second

// Fetcher fetches pages with a cloned Colly collector per request and
// retries rate-limited responses with exponential backoff.
type Fetcher struct {
	defaults config.Defaults
	base     *colly.Collector
	logger   *zap.Logger
}

func New(defaults config.Defaults, logger *zap.Logger) *Fetcher {
	// Synchronous collector: colly v2.1.0's Async option ignores its bool
	// argument and always enables async mode, so rely on the sync default.
	c := colly.NewCollector()
	c.WithTransport(newHTTPTransport())
	if d := defaults.RateLimiter.BaseDelayMs; d > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 2,
			RandomDelay: time.Duration(d) * time.Millisecond / 2,
		}); err != nil {
			logger.Warn("limit rule rejected", zap.Error(err))
		}
	}
	return &Fetcher{defaults: defaults, base: c, logger: logger}
}

// page is the raw outcome of one successful visit. The final URL reflects
// any redirects so link resolution uses the address that actually served
// the document.
type page struct {
	finalURL string
	body     []byte
}

// Fetch retrieves the URL and extracts content and links according to the
// item's selectors and output format. Responses with a configured
// rate-limit status are retried up to maxRetries with doubling delay.
func (f *Fetcher) Fetch(ctx context.Context, url string, item config.Item) (crawler.PageResult, error) {
	rl := f.defaults.RateLimiter
	baseDelay := time.Duration(rl.BaseDelayMs) * time.Millisecond
	maxDelay := time.Duration(rl.MaxDelayMs) * time.Millisecond

	var lastErr error
	for attempt := 0; ; attempt++ {
		p, status, err := f.visit(ctx, url)
		if err == nil {
			return f.extract(p, item)
		}
		lastErr = err
		if !rateLimited(status, rl.RateLimitCodes) || attempt >= rl.MaxRetries {
			return crawler.PageResult{}, lastErr
		}
		wait := baseDelay << attempt
		if maxDelay > 0 && wait > maxDelay {
			wait = maxDelay
		}
		f.logger.Warn("rate limited, backing off",
			zap.String("url", url),
			zap.Int("status", status),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return crawler.PageResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (f *Fetcher) visit(ctx context.Context, url string) (page, int, error) {
	collector := f.base.Clone()
	if ua := f.defaults.UserAgent; ua != "" {
		collector.UserAgent = ua
	}
	collector.IgnoreRobotsTxt = true
	// Clones share the base collector's visited storage; revisits must stay
	// legal so rate-limit retries are not rejected as duplicates.
	collector.AllowURLRevisit = true
	timeout := time.Duration(f.defaults.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   page
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		result = page{
			finalURL: r.Request.URL.String(),
			body:     append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return page{}, 0, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return page{}, status, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return page{}, status, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return result, status, nil
	}
}

func rateLimited(status int, codes []int) bool {
	for _, c := range codes {
		if status == c {
			return true
		}
	}
	return false
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
