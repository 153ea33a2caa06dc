package crawler

import (
	"sort"
	"sync"
)

// VisitedSet tracks normalized URLs that have been claimed for fetching.
// A fresh set is created for every run.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// TryClaim atomically records the URL and reports whether this caller won
// the claim. A false return means some other branch already owns it.
func (v *VisitedSet) TryClaim(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[url]; ok {
		return false
	}
	v.urls[url] = struct{}{}
	return true
}

// Contains reports whether the URL has been claimed.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[url]
	return ok
}

func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// Snapshot returns the claimed URLs in sorted order.
func (v *VisitedSet) Snapshot() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.urls))
	for u := range v.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Clear empties the set.
func (v *VisitedSet) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.urls = make(map[string]struct{})
}
