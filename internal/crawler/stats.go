package crawler

import "sync/atomic"

// Stats accumulates run counters. All methods are safe for concurrent use;
// Snapshot is served by the progress endpoint while the run is live.
type Stats struct {
	pagesFetched      atomic.Int64
	pagesFailed       atomic.Int64
	pagesEmpty        atomic.Int64
	pagesPersisted    atomic.Int64
	linksDiscovered   atomic.Int64
	transcripts       atomic.Int64
	transcriptsFailed atomic.Int64
}

// Summary is a point-in-time copy of the counters.
type Summary struct {
	PagesFetched      int64 `json:"pagesFetched"`
	PagesFailed       int64 `json:"pagesFailed"`
	PagesEmpty        int64 `json:"pagesEmpty"`
	PagesPersisted    int64 `json:"pagesPersisted"`
	LinksDiscovered   int64 `json:"linksDiscovered"`
	Transcripts       int64 `json:"transcripts"`
	TranscriptsFailed int64 `json:"transcriptsFailed"`
}

func (s *Stats) Snapshot() Summary {
	return Summary{
		PagesFetched:      s.pagesFetched.Load(),
		PagesFailed:       s.pagesFailed.Load(),
		PagesEmpty:        s.pagesEmpty.Load(),
		PagesPersisted:    s.pagesPersisted.Load(),
		LinksDiscovered:   s.linksDiscovered.Load(),
		Transcripts:       s.transcripts.Load(),
		TranscriptsFailed: s.transcriptsFailed.Load(),
	}
}
