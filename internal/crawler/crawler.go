package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/bgdate"
	"github.com/JakeFAU/eop-tender-crawler/internal/extract"
)

// Config holds the settings for a crawl run. It is decoupled from Viper so the
// engine can be built directly in tests.
type Config struct {
	StartURL string
	// BaseURL resolves relative item links. Defaults to StartURL.
	BaseURL string
	Fields  []extract.Field
}

// Engine drives one crawl run.
type Engine struct {
	cfg        Config
	base       *url.URL
	listings   ListingOpener
	items      ItemOpener
	checkpoint Checkpointer
	clock      Clock
	ids        IDGenerator
	observer   Observer
	logger     *zap.Logger
}

// accumulator is threaded by value through every page of a run.
type accumulator struct {
	records []Record
	stale   int
	failed  int
	pages   int
	done    bool
}

// NewEngine wires an Engine. observer may be nil.
func NewEngine(
	cfg Config,
	listings ListingOpener,
	items ItemOpener,
	checkpoint Checkpointer,
	clock Clock,
	ids IDGenerator,
	observer Observer,
	logger *zap.Logger,
) (*Engine, error) {
	if strings.TrimSpace(cfg.StartURL) == "" {
		return nil, errors.New("start url is required")
	}
	if listings == nil || items == nil || checkpoint == nil || clock == nil || ids == nil {
		return nil, errors.New("listing opener, item opener, checkpointer, clock and id generator are required")
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = extract.DefaultFields()
	}
	if _, ok := extract.Lookup(cfg.Fields, extract.PublicationDate); !ok {
		return nil, errors.New("fields must include the publication date")
	}
	baseRaw := cfg.BaseURL
	if baseRaw == "" {
		baseRaw = cfg.StartURL
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		base:       base,
		listings:   listings,
		items:      items,
		checkpoint: checkpoint,
		clock:      clock,
		ids:        ids,
		observer:   observer,
		logger:     logger,
	}, nil
}

// Run crawls the listing until the first stale tender or the last page and
// returns the final snapshot. Listing navigation and checkpoint failures are
// fatal; item failures only drop the item.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	runID, err := e.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("opening listing", zap.String("url", e.cfg.StartURL))

	listing, err := e.listings.OpenListing(ctx, e.cfg.StartURL)
	if err != nil {
		return Result{}, fmt.Errorf("open listing %s: %w", e.cfg.StartURL, err)
	}
	defer func() {
		if cerr := listing.Close(); cerr != nil {
			logger.Warn("close listing failed", zap.Error(cerr))
		}
	}()

	acc := accumulator{records: []Record{}}
	var snapshot Snapshot
	for page := 1; ; page++ {
		acc, err = e.crawlPage(ctx, listing, acc, page, logger)
		if err != nil {
			return Result{}, err
		}

		snapshot = e.snapshot(runID, acc)
		if err := e.checkpoint.Write(ctx, snapshot); err != nil {
			return Result{}, fmt.Errorf("write checkpoint after page %d: %w", page, err)
		}
		logger.Info("progress saved",
			zap.Int("page", page),
			zap.Int("records", len(acc.records)),
		)
		if e.observer != nil {
			e.observer.ObservePage(page, len(acc.records))
		}

		if acc.done {
			logger.Info("reached tenders older than today, stopping")
			break
		}
		more, err := listing.Next(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("advance past page %d: %w", page, err)
		}
		if !more {
			logger.Info("no more pages available")
			break
		}
	}

	logger.Info("crawl finished",
		zap.Int("records", snapshot.Metadata.TotalTenders),
		zap.Int("skipped_old", snapshot.Metadata.SkippedOldTenders),
		zap.Int("failed", snapshot.Metadata.FailedTenders),
		zap.Int("pages", snapshot.Metadata.PagesProcessed),
	)
	return Result{Snapshot: snapshot, StoppedOnStale: acc.done}, nil
}

func (e *Engine) crawlPage(
	ctx context.Context,
	listing Listing,
	acc accumulator,
	page int,
	logger *zap.Logger,
) (accumulator, error) {
	links, err := listing.Links(ctx)
	if err != nil {
		return acc, fmt.Errorf("read links on page %d: %w", page, err)
	}
	acc.pages = page
	logger.Info("processing page", zap.Int("page", page), zap.Int("items", len(links)))

	for idx, href := range links {
		if err := ctx.Err(); err != nil {
			return acc, fmt.Errorf("crawl canceled on page %d: %w", page, err)
		}
		outcome := e.processItem(ctx, page, idx+1, href)
		if e.observer != nil {
			e.observer.ObserveItem(outcome)
		}
		fields := []zap.Field{
			zap.Int("page", page),
			zap.Int("item", idx+1),
			zap.String("url", outcome.URL),
			zap.String("outcome", outcome.Label()),
		}

		switch {
		case outcome.Stale:
			acc.stale++
			acc.done = true
			logger.Info("found tender published before today", fields...)
			return acc, nil
		case outcome.Record != nil:
			acc.records = append(acc.records, *outcome.Record)
			logger.Info("tender saved", fields...)
		case outcome.Skip.Kind == SkipNoHref:
			logger.Debug("skipping link with no href", fields...)
		default:
			acc.failed++
			logger.Warn("tender dropped", append(fields,
				zap.String("skip_kind", string(outcome.Skip.Kind)),
				zap.String("field", outcome.Skip.Field),
				zap.Error(outcome.Skip.Err),
			)...)
		}
	}
	return acc, nil
}

// processItem extracts one tender. The item's browsing context is closed on
// every path out of this function.
func (e *Engine) processItem(ctx context.Context, page, position int, href string) ItemOutcome {
	outcome := ItemOutcome{URL: href, Page: page, Position: position}
	if strings.TrimSpace(href) == "" {
		outcome.Skip = &Skip{Kind: SkipNoHref, Err: errors.New("link has no href")}
		return outcome
	}
	target, err := e.resolve(href)
	if err != nil {
		outcome.Skip = &Skip{Kind: SkipNavigation, Err: err}
		return outcome
	}
	outcome.URL = target

	item, err := e.items.OpenItem(ctx, target)
	if err != nil {
		outcome.Skip = &Skip{Kind: SkipNavigation, Err: err}
		return outcome
	}
	defer func() {
		if cerr := item.Close(); cerr != nil {
			e.logger.Warn("close item context failed", zap.String("url", target), zap.Error(cerr))
		}
	}()

	now := e.clock.Now()
	rec := Record{URL: target, PageNumber: page, ScrapedAt: now}
	for _, field := range e.cfg.Fields {
		value, err := extract.Extract(ctx, item, field)
		if err != nil {
			outcome.Skip = fieldSkip(field.Name, err)
			return outcome
		}
		switch field.Name {
		case extract.SubmissionDeadline:
			parsed, err := bgdate.Parse(value, now.Location())
			if err != nil {
				outcome.Skip = fieldSkip(field.Name, err)
				return outcome
			}
			rec.SubmissionDeadline = &DateValue{Raw: value, Parsed: parsed, Formatted: bgdate.Format(parsed)}
		case extract.PublicationDate:
			parsed, err := bgdate.Parse(value, now.Location())
			if err != nil {
				outcome.Skip = fieldSkip(field.Name, err)
				return outcome
			}
			if parsed.Before(bgdate.StartOfDay(now)) {
				outcome.Stale = true
				return outcome
			}
			rec.PublicationDate = &PublicationDate{
				DateValue: DateValue{Raw: value, Parsed: parsed, Formatted: bgdate.Format(parsed)},
				IsFuture:  parsed.After(now),
				IsPast:    parsed.Before(now),
			}
		default:
			setText(&rec, field.Name, value)
		}
	}
	outcome.Record = &rec
	return outcome
}

func (e *Engine) resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse item link %q: %w", href, err)
	}
	return e.base.ResolveReference(ref).String(), nil
}

func (e *Engine) snapshot(runID string, acc accumulator) Snapshot {
	tenders := make([]Record, len(acc.records))
	copy(tenders, acc.records)
	return Snapshot{
		Metadata: Metadata{
			RunID:             runID,
			TotalTenders:      len(tenders),
			SkippedOldTenders: acc.stale,
			FailedTenders:     acc.failed,
			PagesProcessed:    acc.pages,
			LastUpdated:       e.clock.Now(),
			SourceURL:         e.cfg.StartURL,
			FilterApplied:     FilterPolicy,
		},
		Tenders: tenders,
	}
}

func setText(rec *Record, name, value string) {
	switch name {
	case extract.OrderNumber:
		rec.OrderNumber = value
	case extract.TenderMethod:
		rec.TenderMethod = value
	case extract.TenderObjective:
		rec.TenderObjective = value
	case extract.EstimatedAmount:
		rec.EstimatedAmount = value
	case extract.OfferOpening:
		rec.OfferOpening = value
	case extract.Buyer:
		rec.Buyer = value
	case extract.ContactPerson:
		rec.ContactPerson = value
	case extract.Documentation:
		rec.Documentation = value
	}
}
