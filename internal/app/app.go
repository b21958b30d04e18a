// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/analysis"
	"github.com/JakeFAU/eop-tender-crawler/internal/checkpoint"
	"github.com/JakeFAU/eop-tender-crawler/internal/clock/system"
	"github.com/JakeFAU/eop-tender-crawler/internal/config"
	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
	"github.com/JakeFAU/eop-tender-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/eop-tender-crawler/internal/fetcher/static"
	"github.com/JakeFAU/eop-tender-crawler/internal/id/uuid"
	"github.com/JakeFAU/eop-tender-crawler/internal/keywords"
	"github.com/JakeFAU/eop-tender-crawler/internal/metrics"
	"github.com/JakeFAU/eop-tender-crawler/internal/notify"
	memorynotify "github.com/JakeFAU/eop-tender-crawler/internal/notify/memory"
	pubsubnotify "github.com/JakeFAU/eop-tender-crawler/internal/notify/pubsub"
	"github.com/JakeFAU/eop-tender-crawler/internal/notify/webhook"
	"github.com/JakeFAU/eop-tender-crawler/internal/storage"
	"github.com/JakeFAU/eop-tender-crawler/internal/storage/memory"
)

// App holds the shared services built from one Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    *system.Clock
	mirror   storage.BlobStore
	notifier notify.Notifier
	closers  []func() error
}

// New builds the services that every command shares. It fails fast when a
// configured mirror or notifier cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New(loc)}

	mirror, closeMirror, err := storage.New(ctx, storage.Config{
		Kind:      cfg.Mirror.Kind,
		BaseDir:   cfg.Mirror.BaseDir,
		GCSBucket: cfg.Mirror.GCSBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("init mirror: %w", err)
	}
	a.mirror = mirror
	a.closers = append(a.closers, closeMirror)
	if mirror != nil {
		logger.Info("mirroring artifacts", zap.String("kind", cfg.Mirror.Kind))
	}
	if mem, ok := mirror.(*memory.BlobStore); ok {
		a.closers = append(a.closers, func() error {
			logger.Info("discarding in-memory mirror", zap.Int("objects", mem.Puts()))
			return nil
		})
	}

	var notifiers notify.Multi
	if cfg.Notify.WebhookURL != "" {
		hook, err := webhook.New(cfg.Notify.WebhookURL, cfg.WebhookTimeout())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init webhook: %w", err)
		}
		notifiers = append(notifiers, hook)
	}
	if cfg.Notify.PubSubTopic != "" {
		pub, closePub, err := pubsubnotify.Dial(ctx, cfg.Notify.PubSubProject, cfg.Notify.PubSubTopic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		notifiers = append(notifiers, pub)
		a.closers = append(a.closers, closePub)
	}
	if cfg.Notify.DryRun {
		recorder := memorynotify.New()
		notifiers = append(notifiers, recorder)
		a.closers = append(a.closers, func() error {
			for _, s := range recorder.Summaries() {
				logger.Info("dry-run notification", zap.Any("summary", s))
			}
			return nil
		})
	}
	if len(notifiers) > 0 {
		a.notifier = notifiers
	}
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Notifier returns the configured notifier, or nil.
func (a *App) Notifier() notify.Notifier { return a.notifier }

// Mirror returns the artifact mirror, or nil.
func (a *App) Mirror() storage.BlobStore { return a.mirror }

// Keywords returns the configured keyword filter.
func (a *App) Keywords() *keywords.Filter {
	terms := a.cfg.Keywords.Terms
	if len(terms) == 0 {
		terms = keywords.DefaultTerms()
	}
	return keywords.New(terms)
}

// Forwarder builds the analysis stage. Without an API key the forwarder
// has no completer and reports analysis.ErrNoCredential.
func (a *App) Forwarder() *analysis.Forwarder {
	opts := []analysis.Option{
		analysis.WithClock(a.clock),
		analysis.WithLogger(a.logger.Named("analysis")),
	}
	if a.mirror != nil {
		opts = append(opts, analysis.WithMirror(a.mirror, a.cfg.Mirror.Prefix))
	}
	completer, err := analysis.NewAnthropicCompleter(
		a.cfg.Analysis.APIKey,
		a.cfg.Analysis.Model,
		int64(a.cfg.Analysis.MaxTokens),
	)
	if err != nil {
		return analysis.NewForwarder(nil, a.cfg.Output.AnalysisDir, opts...)
	}
	return analysis.NewForwarder(completer, a.cfg.Output.AnalysisDir, opts...)
}

// Checkpointer returns the snapshot writer.
func (a *App) Checkpointer() *checkpoint.Writer {
	opts := []checkpoint.Option{checkpoint.WithLogger(a.logger.Named("checkpoint"))}
	if a.mirror != nil {
		opts = append(opts, checkpoint.WithMirror(a.mirror, a.cfg.Mirror.Prefix))
	}
	return checkpoint.NewWriter(a.cfg.Output.SnapshotPath, opts...)
}

// pageOpener is satisfied by both fetchers.
type pageOpener interface {
	crawler.ListingOpener
	crawler.ItemOpener
}

// NewEngine wires a crawl engine for the configured item mode. The returned
// func releases the browser.
func (a *App) NewEngine() (*crawler.Engine, func() error, error) {
	opener, release, err := a.newOpener()
	if err != nil {
		return nil, nil, err
	}
	engine, err := crawler.NewEngine(
		crawler.Config{StartURL: a.cfg.Site.StartURL, BaseURL: a.cfg.Site.BaseURL},
		opener,
		opener,
		a.Checkpointer(),
		a.clock,
		uuid.New(),
		metrics.NewObserver(a.cfg.Site.StartURL),
		a.logger.Named("crawler"),
	)
	if err != nil {
		if rerr := release(); rerr != nil {
			a.logger.Warn("release browser failed", zap.Error(rerr))
		}
		return nil, nil, fmt.Errorf("init engine: %w", err)
	}
	return engine, release, nil
}

func (a *App) newOpener() (pageOpener, func() error, error) {
	b := a.cfg.Browser
	switch b.ItemMode {
	case config.ItemModeStatic:
		f := static.New(static.Config{
			UserAgent:      b.UserAgent,
			ListingTimeout: a.cfg.ListingTimeout(),
			ItemTimeout:    a.cfg.ItemTimeout(),
			LinkSelector:   a.cfg.Site.ListSelector,
			NextSelector:   a.cfg.Site.NextButtonSelector,
		}, a.logger.Named("static"))
		return f, func() error { return nil }, nil
	default:
		browser, err := headless.New(headless.Config{
			UserAgent:      b.UserAgent,
			Headful:        !b.Headless,
			ListingTimeout: a.cfg.ListingTimeout(),
			ItemTimeout:    a.cfg.ItemTimeout(),
			FieldWait:      a.cfg.FieldWait(),
			NetworkIdle:    a.cfg.NetworkIdle(),
			LinkSelector:   a.cfg.Site.ListSelector,
			NextSelector:   a.cfg.Site.NextButtonSelector,
		}, a.logger.Named("browser"))
		if err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		return browser, browser.Close, nil
	}
}

// OnClose registers fn to run when the App is closed, before the services
// created by New.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases every service in reverse order of creation. It is safe to
// call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
