// Package notify announces finished crawl runs to external systems.
// Notification failures never fail a run; callers log the returned error.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
)

// Summary is the payload sent when a run completes.
type Summary struct {
	RunID          string    `json:"run_id"`
	SourceURL      string    `json:"source_url"`
	Tenders        int       `json:"total_tenders"`
	SkippedOld     int       `json:"skipped_old_tenders"`
	Failed         int       `json:"failed_tenders"`
	Pages          int       `json:"pages_processed"`
	StoppedOnStale bool      `json:"stopped_on_stale"`
	SnapshotPath   string    `json:"snapshot_path"`
	SnapshotSHA256 string    `json:"snapshot_sha256,omitempty"`
	FinishedAt     time.Time `json:"finished_at"`
	ITMatches      *int      `json:"it_matches,omitempty"`
	AnalysisPath   string    `json:"analysis_path,omitempty"`
}

// Notifier delivers a Summary.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// SummaryFrom builds a Summary from a crawl result.
func SummaryFrom(res crawler.Result, snapshotPath string) Summary {
	meta := res.Snapshot.Metadata
	return Summary{
		RunID:          meta.RunID,
		SourceURL:      meta.SourceURL,
		Tenders:        meta.TotalTenders,
		SkippedOld:     meta.SkippedOldTenders,
		Failed:         meta.FailedTenders,
		Pages:          meta.PagesProcessed,
		StoppedOnStale: res.StoppedOnStale,
		SnapshotPath:   snapshotPath,
		FinishedAt:     meta.LastUpdated,
	}
}

// Multi fans a Summary out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, summary Summary) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
