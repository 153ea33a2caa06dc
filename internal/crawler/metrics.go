package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_pages_fetched_total",
		Help: "Pages fetched successfully.",
	})
	pagesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_pages_failed_total",
		Help: "Page fetches that returned an error.",
	})
	pagesEmptyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_pages_empty_total",
		Help: "Pages fetched whose extracted content was empty.",
	})
	linksDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_links_discovered_total",
		Help: "Outbound links discovered during expansion, before filtering.",
	})
	transcriptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_transcripts_total",
		Help: "Video transcripts fetched successfully.",
	})
	transcriptsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_transcripts_failed_total",
		Help: "Video transcript fetches that returned an error.",
	})
	persistedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docscrawler_persisted_bytes_total",
		Help: "Bytes of content handed to the persistence strategy.",
	})
)
