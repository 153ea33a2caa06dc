package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-crawler/internal/config"
)

type fakePages struct {
	mu    sync.Mutex
	pages map[string]PageResult
	errs  map[string]error
	calls map[string]int
}

func newFakePages() *fakePages {
	return &fakePages{
		pages: make(map[string]PageResult),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakePages) Fetch(_ context.Context, url string, _ config.Item) (PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return PageResult{}, err
	}
	if res, ok := f.pages[url]; ok {
		return res, nil
	}
	return PageResult{Content: "content of " + url}, nil
}

func (f *fakePages) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]string)}
}

func (f *fakeStore) Save(url, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[url] = content
	return "/out/" + url
}

func (f *fakeStore) Finalize() {}

func (f *fakeStore) savedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.saved))
	for u := range f.saved {
		out = append(out, u)
	}
	return out
}

type fakeVideos struct {
	mu          sync.Mutex
	transcripts map[string]string
	fetched     []string
}

func (f *fakeVideos) Matches(url string) bool {
	return strings.Contains(url, "youtube.com/watch") || strings.Contains(url, "youtu.be/")
}

func (f *fakeVideos) Canonical(url string) string {
	if id, ok := strings.CutPrefix(url, "https://youtu.be/"); ok {
		return "https://www.youtube.com/watch?v=" + id
	}
	return url
}

func (f *fakeVideos) Transcript(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if text, ok := f.transcripts[url]; ok {
		return text, nil
	}
	return "", errors.New("no transcript")
}

func mustCompile(t *testing.T, pattern string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(pattern)
	require.NoError(t, err)
	return re
}

func scrapItem(url string, depth int) config.Item {
	return config.Item{
		URL:               url,
		ShouldScrap:       true,
		IncludeSubdomains: true,
		MaxDepth:          depth,
		MaxPages:          100,
	}
}

func newTestOrchestrator(pages PageFetcher, videos TranscriptFetcher, store Persister) *Orchestrator {
	return New(config.Defaults{Threads: 4}, pages, videos, store, zap.NewNop())
}

func TestRunDepthOneStaysOnHost(t *testing.T) {
	pages := newFakePages()
	pages.pages["https://docs.example.com"] = PageResult{
		Content:       "root",
		InternalLinks: []string{"https://docs.example.com/a"},
		ExternalLinks: []string{"https://other.com/x"},
	}
	pages.pages["https://docs.example.com/a"] = PageResult{
		Content:       "a",
		InternalLinks: []string{"https://docs.example.com/b"},
	}
	store := newFakeStore()
	o := newTestOrchestrator(pages, nil, store)

	sum := o.Run(context.Background(), []config.Item{scrapItem("https://docs.example.com/", 1)})

	require.Equal(t, int64(2), sum.PagesFetched)
	assert.Equal(t, []string{
		"https://docs.example.com",
		"https://docs.example.com/a",
	}, o.Visited().Snapshot())
	assert.Zero(t, pages.callCount("https://other.com/x"))
	assert.Zero(t, pages.callCount("https://docs.example.com/b"))
	assert.ElementsMatch(t, []string{"https://docs.example.com", "https://docs.example.com/a"}, store.savedURLs())
}

func TestRunDepthZeroFetchesOnlyRoot(t *testing.T) {
	pages := newFakePages()
	pages.pages["https://docs.example.com"] = PageResult{
		Content:       "root",
		InternalLinks: []string{"https://docs.example.com/a"},
	}
	o := newTestOrchestrator(pages, nil, newFakeStore())

	sum := o.Run(context.Background(), []config.Item{scrapItem("https://docs.example.com", 0)})

	require.Equal(t, int64(1), sum.PagesFetched)
	assert.Zero(t, pages.callCount("https://docs.example.com/a"))
}

func TestRunSkipPatternBlocksLinkWithoutClaiming(t *testing.T) {
	pages := newFakePages()
	pages.pages["https://docs.example.com"] = PageResult{
		Content: "root",
		InternalLinks: []string{
			"https://docs.example.com/guide",
			"https://docs.example.com/private/keys",
		},
	}
	item := scrapItem("https://docs.example.com", 1)
	item.SkipPattern = mustCompile(t, `/private/`)
	o := newTestOrchestrator(pages, nil, newFakeStore())

	o.Run(context.Background(), []config.Item{item})

	assert.Zero(t, pages.callCount("https://docs.example.com/private/keys"))
	assert.False(t, o.Visited().Contains("https://docs.example.com/private/keys"))
	assert.Equal(t, 1, pages.callCount("https://docs.example.com/guide"))
}

func TestRunSubdomainAndExternalScope(t *testing.T) {
	tests := []struct {
		name              string
		includeSubdomains bool
		includeExternal   bool
		wantSub           bool
		wantExt           bool
	}{
		{"host only", false, false, false, false},
		{"subdomains", true, false, true, false},
		{"external", false, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := newFakePages()
			pages.pages["https://docs.example.com"] = PageResult{
				Content:       "root",
				InternalLinks: []string{"https://api.docs.example.com/ref"},
				ExternalLinks: []string{"https://other.com/x"},
			}
			item := scrapItem("https://docs.example.com", 1)
			item.IncludeSubdomains = tt.includeSubdomains
			item.IncludeExternal = tt.includeExternal
			o := newTestOrchestrator(pages, nil, newFakeStore())

			o.Run(context.Background(), []config.Item{item})

			assert.Equal(t, tt.wantSub, pages.callCount("https://api.docs.example.com/ref") == 1)
			assert.Equal(t, tt.wantExt, pages.callCount("https://other.com/x") == 1)
		})
	}
}

func TestRunFetchesDuplicateLinksOnce(t *testing.T) {
	pages := newFakePages()
	var links []string
	for i := 0; i < 20; i++ {
		links = append(links, "https://docs.example.com/shared")
	}
	pages.pages["https://docs.example.com"] = PageResult{Content: "root", InternalLinks: links}
	o := newTestOrchestrator(pages, nil, newFakeStore())

	o.Run(context.Background(), []config.Item{scrapItem("https://docs.example.com", 1)})

	assert.Equal(t, 1, pages.callCount("https://docs.example.com/shared"))
}

func TestRunMaxPagesStopsExpansion(t *testing.T) {
	pages := newFakePages()
	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("https://docs.example.com/p%d", i))
	}
	pages.pages["https://docs.example.com"] = PageResult{Content: "root", InternalLinks: links}
	item := scrapItem("https://docs.example.com", 1)
	item.MaxPages = 3
	o := newTestOrchestrator(pages, nil, newFakeStore())

	sum := o.Run(context.Background(), []config.Item{item})

	// Root plus the first two links; the cap is checked before each claim.
	assert.Equal(t, int64(3), sum.PagesFetched)
	assert.Equal(t, 3, o.Visited().Len())
}

func TestRunFetchErrorDoesNotStopSiblings(t *testing.T) {
	pages := newFakePages()
	pages.pages["https://docs.example.com"] = PageResult{
		Content: "root",
		InternalLinks: []string{
			"https://docs.example.com/bad",
			"https://docs.example.com/good",
		},
	}
	pages.errs["https://docs.example.com/bad"] = errors.New("boom")
	o := newTestOrchestrator(pages, nil, newFakeStore())

	sum := o.Run(context.Background(), []config.Item{scrapItem("https://docs.example.com", 1)})

	assert.Equal(t, int64(1), sum.PagesFailed)
	assert.Equal(t, 1, pages.callCount("https://docs.example.com/good"))
}

func TestRunEmptyContentNotPersisted(t *testing.T) {
	pages := newFakePages()
	pages.pages["https://docs.example.com"] = PageResult{Content: "  \n "}
	store := newFakeStore()
	o := newTestOrchestrator(pages, nil, store)

	sum := o.Run(context.Background(), []config.Item{scrapItem("https://docs.example.com", 0)})

	assert.Equal(t, int64(1), sum.PagesEmpty)
	assert.Empty(t, store.savedURLs())
}

func TestRunRoutesVideoURLToTranscriptFetcher(t *testing.T) {
	videoURL := "https://www.youtube.com/watch?v=abc123XYZ00"
	videos := &fakeVideos{transcripts: map[string]string{videoURL: "# Title\n\nhello"}}
	store := newFakeStore()
	o := newTestOrchestrator(newFakePages(), videos, store)

	sum := o.Run(context.Background(), []config.Item{{URL: videoURL}})

	require.Equal(t, int64(1), sum.Transcripts)
	assert.Equal(t, []string{videoURL}, videos.fetched)
	assert.ElementsMatch(t, []string{videoURL}, store.savedURLs())
}

func TestRunPersistsTranscriptUnderCanonicalURL(t *testing.T) {
	shortURL := "https://youtu.be/dQw4w9WgXcQ"
	watchURL := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	videos := &fakeVideos{transcripts: map[string]string{shortURL: "# Title\n\nhello"}}
	store := newFakeStore()
	o := newTestOrchestrator(newFakePages(), videos, store)

	sum := o.Run(context.Background(), []config.Item{{URL: shortURL}})

	require.Equal(t, int64(1), sum.Transcripts)
	assert.Equal(t, []string{shortURL}, videos.fetched)
	assert.ElementsMatch(t, []string{watchURL}, store.savedURLs())
}

func TestRunFlatItemIgnoresSkipPattern(t *testing.T) {
	pages := newFakePages()
	item := config.Item{URL: "https://docs.example.com/private/page"}
	item.SkipPattern = mustCompile(t, `/private/`)
	o := newTestOrchestrator(pages, nil, newFakeStore())

	o.Run(context.Background(), []config.Item{item})

	assert.Equal(t, 1, pages.callCount("https://docs.example.com/private/page"))
}

func TestVisitedSetTryClaim(t *testing.T) {
	v := NewVisitedSet()
	require.True(t, v.TryClaim("https://a"))
	require.False(t, v.TryClaim("https://a"))
	assert.True(t, v.Contains("https://a"))
	assert.Equal(t, 1, v.Len())

	v.Clear()
	assert.Zero(t, v.Len())
	assert.True(t, v.TryClaim("https://a"))
}

func TestVisitedSetConcurrentClaims(t *testing.T) {
	v := NewVisitedSet()
	var wg sync.WaitGroup
	var wins sync.Map
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if v.TryClaim("https://docs.example.com/page") {
				wins.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	wins.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count)
}

func TestEligible(t *testing.T) {
	root := config.Item{URL: "https://docs.example.com", IncludeSubdomains: true}
	tests := []struct {
		name string
		link string
		item config.Item
		want bool
	}{
		{"same host", "https://docs.example.com/a", root, true},
		{"www stripped", "https://www.docs.example.com/a", root, true},
		{"subdomain allowed", "https://api.docs.example.com/a", root, true},
		{"external rejected", "https://other.com/a", root, false},
		{"lookalike suffix rejected", "https://evildocs.example.com.attacker.io/a", root, false},
		{"empty host rejected", "not a url", root, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.link, tt.item))
		})
	}
}
