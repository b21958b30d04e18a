package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/eop-tender-crawler/internal/extract"
)

// ListingOpener opens the paginated tender listing.
type ListingOpener interface {
	OpenListing(ctx context.Context, url string) (Listing, error)
}

// Listing is the long-lived listing page. It is only read between page turns.
type Listing interface {
	// Links returns the href of every item on the current page in listing
	// order. Items without an href are returned as empty strings.
	Links(ctx context.Context) ([]string, error)
	// Next advances to the following page. It reports false when the next
	// page control is absent or disabled.
	Next(ctx context.Context) (bool, error)
	Close() error
}

// ItemOpener opens a tender detail page in a fresh, isolated browsing context.
type ItemOpener interface {
	OpenItem(ctx context.Context, url string) (ItemPage, error)
}

// ItemPage is an open detail page. Close releases its browsing context.
type ItemPage interface {
	extract.TextQuerier
	Close() error
}

// Checkpointer persists the run state after every page.
type Checkpointer interface {
	Write(ctx context.Context, snapshot Snapshot) error
}

// Observer receives item and page events, e.g. for metrics.
type Observer interface {
	ObserveItem(outcome ItemOutcome)
	ObservePage(page int, records int)
}

// Clock returns the current time in the site's timezone.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
