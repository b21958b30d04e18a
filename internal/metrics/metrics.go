// Package metrics exposes Prometheus collectors for crawl runs.
//
// The crawler is a batch job, so metrics are exported to a file for the
// node_exporter textfile collector instead of being scraped over HTTP.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
)

var (
	tenderItemsTotal        *prometheus.CounterVec
	tenderPagesTotal        *prometheus.CounterVec
	tenderLastRunRecords    prometheus.Gauge
	tenderLastRunTimestamp  prometheus.Gauge
	tenderLastRunStale      prometheus.Gauge
	tenderRunDurationSecond prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		tenderItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tender_items_total",
				Help: "Total number of listing items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		tenderPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tender_pages_total",
				Help: "Total number of listing pages processed, labeled by site.",
			},
			[]string{"site"},
		)

		tenderLastRunRecords = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tender_last_run_records",
				Help: "Records held by the most recent checkpoint.",
			},
		)

		tenderLastRunTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tender_last_run_timestamp_seconds",
				Help: "Unix time the most recent run finished.",
			},
		)

		tenderLastRunStale = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tender_last_run_stopped_on_stale",
				Help: "1 if the most recent run stopped at a tender published before today.",
			},
		)

		tenderRunDurationSecond = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tender_run_duration_seconds",
				Help:    "Histogram of crawl run durations.",
				Buckets: []float64{30, 60, 120, 300, 600, 1200, 3600},
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Observer implements crawler.Observer.
type Observer struct {
	site string
}

var _ crawler.Observer = (*Observer)(nil)

// NewObserver returns an Observer labeling pages with the host of startURL.
func NewObserver(startURL string) *Observer {
	Init()
	return &Observer{site: SanitizeSite(startURL)}
}

// ObserveItem counts one item outcome.
func (o *Observer) ObserveItem(outcome crawler.ItemOutcome) {
	tenderItemsTotal.WithLabelValues(outcome.Label()).Inc()
}

// ObservePage counts a checkpointed page.
func (o *Observer) ObservePage(_ int, records int) {
	tenderPagesTotal.WithLabelValues(o.site).Inc()
	tenderLastRunRecords.Set(float64(records))
}

// ObserveRun records the end of a run.
func ObserveRun(res crawler.Result, duration time.Duration) {
	Init()
	tenderLastRunRecords.Set(float64(res.Snapshot.Metadata.TotalTenders))
	tenderLastRunTimestamp.Set(float64(res.Snapshot.Metadata.LastUpdated.Unix()))
	stale := 0.0
	if res.StoppedOnStale {
		stale = 1
	}
	tenderLastRunStale.Set(stale)
	tenderRunDurationSecond.Observe(duration.Seconds())
}

// WriteTextfile writes every registered metric to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
