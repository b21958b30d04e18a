package crawler

import (
	"time"
)

// FilterPolicy describes the recency rule applied to every run.
const FilterPolicy = "Only tenders published today or later"

// DateValue keeps a source date together with its normalized forms.
type DateValue struct {
	Raw       string    `json:"raw"`
	Parsed    time.Time `json:"parsed"`
	Formatted string    `json:"formatted"`
}

// PublicationDate adds the position of the date relative to capture time.
type PublicationDate struct {
	DateValue
	IsFuture bool `json:"is_future"`
	IsPast   bool `json:"is_past"`
}

// Record is one tender as read from its detail page. Records are never
// mutated after they are appended to a run.
type Record struct {
	URL                string           `json:"url"`
	PageNumber         int              `json:"page_number"`
	ScrapedAt          time.Time        `json:"scraped_at"`
	SubmissionDeadline *DateValue       `json:"submission_deadline,omitempty"`
	PublicationDate    *PublicationDate `json:"publication_date,omitempty"`
	OrderNumber        string           `json:"order_number"`
	TenderMethod       string           `json:"tender_method"`
	TenderObjective    string           `json:"tender_objective"`
	EstimatedAmount    string           `json:"estimated_amount"`
	OfferOpening       string           `json:"offer_opening"`
	Buyer              string           `json:"buyer"`
	ContactPerson      string           `json:"contact_person"`
	Documentation      string           `json:"documentation"`
}

// Metadata summarizes a run at the moment a checkpoint is written.
type Metadata struct {
	RunID             string    `json:"run_id"`
	TotalTenders      int       `json:"total_tenders"`
	SkippedOldTenders int       `json:"skipped_old_tenders"`
	FailedTenders     int       `json:"failed_tenders"`
	PagesProcessed    int       `json:"pages_processed"`
	LastUpdated       time.Time `json:"last_updated"`
	SourceURL         string    `json:"source_url"`
	FilterApplied     string    `json:"filter_applied"`
}

// Snapshot is the document persisted after every page.
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Tenders  []Record `json:"tenders"`
}

// Result is returned by Engine.Run.
type Result struct {
	Snapshot       Snapshot
	StoppedOnStale bool
}
