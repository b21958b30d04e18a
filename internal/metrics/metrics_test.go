package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://App.EOP.bg/today", "app.eop.bg"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if tenderItemsTotal == nil || tenderPagesTotal == nil || tenderLastRunRecords == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserverCountsOutcomes(t *testing.T) {
	o := NewObserver("https://app.eop.bg/today")
	recorded := testutil.ToFloat64(tenderItemsTotal.WithLabelValues("recorded"))
	navigation := testutil.ToFloat64(tenderItemsTotal.WithLabelValues("navigation"))
	pages := testutil.ToFloat64(tenderPagesTotal.WithLabelValues("app.eop.bg"))

	o.ObserveItem(crawler.ItemOutcome{Record: &crawler.Record{}})
	o.ObserveItem(crawler.ItemOutcome{Record: &crawler.Record{}})
	o.ObserveItem(crawler.ItemOutcome{Skip: &crawler.Skip{Kind: crawler.SkipNavigation, Err: errors.New("timeout")}})
	o.ObservePage(1, 2)

	require.InDelta(t, recorded+2, testutil.ToFloat64(tenderItemsTotal.WithLabelValues("recorded")), 0)
	require.InDelta(t, navigation+1, testutil.ToFloat64(tenderItemsTotal.WithLabelValues("navigation")), 0)
	require.InDelta(t, pages+1, testutil.ToFloat64(tenderPagesTotal.WithLabelValues("app.eop.bg")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(tenderLastRunRecords), 0)
}

func TestObserveRunAndWriteTextfile(t *testing.T) {
	finished := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ObserveRun(crawler.Result{
		Snapshot: crawler.Snapshot{Metadata: crawler.Metadata{TotalTenders: 9, LastUpdated: finished}},
		StoppedOnStale: true,
	}, 90*time.Second)

	require.InDelta(t, 9, testutil.ToFloat64(tenderLastRunRecords), 0)
	require.InDelta(t, float64(finished.Unix()), testutil.ToFloat64(tenderLastRunTimestamp), 0)
	require.InDelta(t, 1, testutil.ToFloat64(tenderLastRunStale), 0)

	path := filepath.Join(t.TempDir(), "tender.prom")
	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path) // #nosec G304 -- temp dir
	require.NoError(t, err)
	text := string(data)
	require.True(t, strings.Contains(text, "tender_last_run_records 9"))
	require.Contains(t, text, "# TYPE tender_run_duration_seconds histogram")
}

func TestWriteTextfileBadPath(t *testing.T) {
	Init()
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "tender.prom"))
	require.Error(t, err)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://app.eop.bg/today", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
