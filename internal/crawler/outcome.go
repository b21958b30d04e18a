package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/eop-tender-crawler/internal/bgdate"
	"github.com/JakeFAU/eop-tender-crawler/internal/extract"
)

// SkipKind classifies why an item produced no record.
type SkipKind string

// Skip kinds.
const (
	SkipNoHref          SkipKind = "no_href"
	SkipNavigation      SkipKind = "navigation"
	SkipLabelNotFound   SkipKind = "label_not_found"
	SkipDateUnparseable SkipKind = "date_unparseable"
	SkipExtraction      SkipKind = "extraction"
)

// Skip describes a dropped item.
type Skip struct {
	Kind  SkipKind
	Field string
	Err   error
}

func (s *Skip) Error() string {
	if s.Field == "" {
		return fmt.Sprintf("%s: %v", s.Kind, s.Err)
	}
	return fmt.Sprintf("%s (%s): %v", s.Kind, s.Field, s.Err)
}

func (s *Skip) Unwrap() error {
	return s.Err
}

// ItemOutcome is the result of processing one listing item. Exactly one of
// Record, Stale or Skip is set.
type ItemOutcome struct {
	URL      string
	Page     int
	Position int
	Record   *Record
	Stale    bool
	Skip     *Skip
}

// Label returns a short outcome name for logs and metrics.
func (o ItemOutcome) Label() string {
	switch {
	case o.Record != nil:
		return "recorded"
	case o.Stale:
		return "stale"
	case o.Skip != nil:
		return string(o.Skip.Kind)
	default:
		return "unknown"
	}
}

func fieldSkip(field string, err error) *Skip {
	kind := SkipExtraction
	var perr *bgdate.ParseError
	switch {
	case errors.Is(err, extract.ErrLabelNotFound):
		kind = SkipLabelNotFound
	case errors.As(err, &perr):
		kind = SkipDateUnparseable
	case errors.Is(err, context.DeadlineExceeded):
		kind = SkipNavigation
	}
	return &Skip{Kind: kind, Field: field, Err: err}
}
