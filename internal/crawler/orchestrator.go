package crawler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/docs-crawler/internal/config"
	"github.com/JakeFAU/docs-crawler/internal/urlutil"
)

// Orchestrator runs the crawl: it claims URLs, fetches them under a global
// concurrency cap, persists content, and recursively expands scrap roots
// until every branch has exhausted its depth budget.
type Orchestrator struct {
	defaults config.Defaults
	pages    PageFetcher
	videos   TranscriptFetcher
	store    Persister
	visited  *VisitedSet
	sem      *semaphore.Weighted
	stats    *Stats
	logger   *zap.Logger
}

func New(defaults config.Defaults, pages PageFetcher, videos TranscriptFetcher, store Persister, logger *zap.Logger) *Orchestrator {
	threads := defaults.Threads
	if threads < 1 {
		threads = 1
	}
	return &Orchestrator{
		defaults: defaults,
		pages:    pages,
		videos:   videos,
		store:    store,
		visited:  NewVisitedSet(),
		sem:      semaphore.NewWeighted(int64(threads)),
		stats:    &Stats{},
		logger:   logger,
	}
}

// Visited exposes the run's claim set.
func (o *Orchestrator) Visited() *VisitedSet { return o.visited }

// Stats exposes the run counters for progress reporting.
func (o *Orchestrator) Stats() *Stats { return o.stats }

// branch carries the policy and remaining depth budget for one traversal
// arm. The page counter is shared by every branch under the same root so
// maxPages caps the whole subtree.
type branch struct {
	item  config.Item
	depth int
	pages *atomic.Int64
}

func (b *branch) child() *branch {
	return &branch{item: b.item, depth: b.depth - 1, pages: b.pages}
}

// Run crawls every item and blocks until all branches have finished. Items
// are independent; a failure in one never aborts another.
func (o *Orchestrator) Run(ctx context.Context, items []config.Item) Summary {
	var wg sync.WaitGroup
	for _, it := range items {
		br := &branch{item: it, pages: new(atomic.Int64)}
		if it.ShouldScrap {
			br.depth = it.MaxDepth
		}
		o.dispatch(ctx, &wg, br, []string{it.URL}, it.ShouldScrap)
	}
	wg.Wait()
	return o.stats.Snapshot()
}

// dispatch claims the given URLs and spawns a crawl goroutine for each one
// that survives the policy checks. The skip pattern and hostname scope are
// evaluated before the claim so a rejected URL stays claimable for a root
// whose policy admits it. Flat items bypass the filter entirely.
func (o *Orchestrator) dispatch(ctx context.Context, wg *sync.WaitGroup, br *branch, urls []string, filtered bool) {
	for _, raw := range urls {
		if ctx.Err() != nil {
			return
		}
		u := urlutil.Normalize(raw, true)
		if filtered && !Eligible(u, br.item) {
			o.logger.Debug("link rejected by policy", zap.String("url", u), zap.String("root", br.item.URL))
			continue
		}
		if br.item.MaxPages > 0 && br.pages.Load() >= int64(br.item.MaxPages) {
			o.logger.Info("page cap reached, stopping expansion",
				zap.String("root", br.item.URL),
				zap.Int("maxPages", br.item.MaxPages))
			return
		}
		if !o.visited.TryClaim(u) {
			continue
		}
		br.pages.Add(1)
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			o.crawl(ctx, wg, br, u)
		}(u)
	}
}

// crawl fetches one claimed URL while holding a semaphore slot, persists
// its content, and expands the branch when depth budget remains. Expansion
// only dispatches; child goroutines acquire their own slots.
func (o *Orchestrator) crawl(ctx context.Context, wg *sync.WaitGroup, br *branch, url string) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer o.sem.Release(1)

	if o.videos != nil && o.videos.Matches(url) {
		o.transcribe(ctx, url)
		return
	}

	res, err := o.pages.Fetch(ctx, url, br.item)
	if err != nil {
		o.stats.pagesFailed.Add(1)
		pagesFailedTotal.Inc()
		o.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return
	}
	o.stats.pagesFetched.Add(1)
	pagesFetchedTotal.Inc()

	if strings.TrimSpace(res.Content) == "" {
		o.stats.pagesEmpty.Add(1)
		pagesEmptyTotal.Inc()
		o.logger.Debug("no extractable content", zap.String("url", url))
	} else if path := o.store.Save(url, res.Content); path != "" {
		o.stats.pagesPersisted.Add(1)
		persistedBytesTotal.Add(float64(len(res.Content)))
	}

	if br.depth < 1 {
		return
	}
	links := res.InternalLinks
	if br.item.IncludeExternal {
		links = append(links, res.ExternalLinks...)
	}
	if len(links) == 0 {
		return
	}
	o.stats.linksDiscovered.Add(int64(len(links)))
	linksDiscoveredTotal.Add(float64(len(links)))
	o.dispatch(ctx, wg, br.child(), links, true)
}

func (o *Orchestrator) transcribe(ctx context.Context, url string) {
	text, err := o.videos.Transcript(ctx, url)
	if err != nil {
		o.stats.transcriptsFailed.Add(1)
		transcriptsFailedTotal.Inc()
		o.logger.Warn("transcript fetch failed", zap.String("url", url), zap.Error(err))
		return
	}
	o.stats.transcripts.Add(1)
	transcriptsTotal.Inc()
	// Persist under the canonical watch URL so short-link and embed forms
	// of the same video share one stored document.
	if path := o.store.Save(o.videos.Canonical(url), text); path != "" {
		o.stats.pagesPersisted.Add(1)
		persistedBytesTotal.Add(float64(len(text)))
	}
}
