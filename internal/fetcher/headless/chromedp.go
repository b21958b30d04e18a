// Package headless drives the tender site through a single headless Chrome
// process using chromedp.
//
// The listing lives in one long-lived tab. Every item is opened in its own
// incognito browser context which is disposed when the item page is closed.
package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
)

// Defaults mirror the timeouts the site needs in practice.
const (
	DefaultListingTimeout = 40 * time.Second
	DefaultItemTimeout    = 100 * time.Second
	DefaultFieldWait      = 10 * time.Second
	DefaultNetworkIdle    = 500 * time.Millisecond
	DefaultLinkSelector   = ".nxlist-group a"
	DefaultNextSelector   = "button[id='nx1-public-content-wrapper__nx1-published-tenders__nx1-pagination__next-page-button']"

	pollInterval = 100 * time.Millisecond
)

// Config controls the behavior of the browser.
type Config struct {
	UserAgent string
	// Headful shows the browser window, which helps when selectors drift.
	Headful        bool
	ListingTimeout time.Duration
	ItemTimeout    time.Duration
	// FieldWait bounds how long a label may take to appear on an item page.
	FieldWait    time.Duration
	NetworkIdle  time.Duration
	LinkSelector string
	NextSelector string
}

func (c Config) withDefaults() Config {
	if c.ListingTimeout <= 0 {
		c.ListingTimeout = DefaultListingTimeout
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = DefaultItemTimeout
	}
	if c.FieldWait <= 0 {
		c.FieldWait = DefaultFieldWait
	}
	if c.NetworkIdle <= 0 {
		c.NetworkIdle = DefaultNetworkIdle
	}
	if c.LinkSelector == "" {
		c.LinkSelector = DefaultLinkSelector
	}
	if c.NextSelector == "" {
		c.NextSelector = DefaultNextSelector
	}
	return c
}

// Browser implements crawler.ListingOpener and crawler.ItemOpener.
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var (
	_ crawler.ListingOpener = (*Browser)(nil)
	_ crawler.ItemOpener    = (*Browser)(nil)
)

// New starts Chrome and returns a Browser. Close must be called to stop it.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", !cfg.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Browser{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close tears down the browser and its allocator.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocCancel()
	return nil
}

// OpenListing opens rawURL in a new tab and gives the item links time to
// render. A page without links opens normally.
func (b *Browser) OpenListing(ctx context.Context, rawURL string) (crawler.Listing, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	// The first Run attaches the target; it must not carry a deadline or the
	// tab would close when the deadline passes.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("open listing tab: %w", err)
	}

	l := &listing{
		cfg:    b.cfg,
		tabCtx: tabCtx,
		cancel: cancelTab,
		idle:   newIdleTracker(),
		logger: b.logger,
	}
	chromedp.ListenTarget(tabCtx, l.idle.observe)

	err := l.run(ctx,
		b.setup(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		l.settleLinks(b.cfg.FieldWait),
	)
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("navigate listing %s: %w", rawURL, err)
	}
	return l, nil
}

// OpenItem opens rawURL in a fresh incognito browser context.
func (b *Browser) OpenItem(ctx context.Context, rawURL string) (crawler.ItemPage, error) {
	itemCtx, cancelItem := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(itemCtx); err != nil {
		cancelItem()
		return nil, fmt.Errorf("open item context: %w", err)
	}

	taskCtx, cancelTask := context.WithTimeout(itemCtx, b.cfg.ItemTimeout)
	stopForward := forwardCancel(ctx, cancelTask)
	release := func() {
		stopForward()
		cancelTask()
		cancelItem()
	}

	err := chromedp.Run(taskCtx,
		b.setup(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		release()
		return nil, fmt.Errorf("navigate item %s: %w", rawURL, err)
	}
	return &itemPage{ctx: taskCtx, release: release, fieldWait: b.cfg.FieldWait}, nil
}

func (b *Browser) setup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

type listing struct {
	cfg    Config
	tabCtx context.Context
	cancel context.CancelFunc
	idle   *idleTracker
	logger *zap.Logger
}

// run executes actions on the listing tab under the listing timeout.
func (l *listing) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(l.tabCtx, l.cfg.ListingTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// settleLinks gives client-side rendering up to wait to produce item links.
// A listing that stays empty is valid: no tenders were published.
func (l *listing) settleLinks(wait time.Duration) chromedp.Action {
	script := linkCountScript(l.cfg.LinkSelector)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.Now().Add(wait)
		for {
			var n int
			if err := chromedp.Evaluate(script, &n).Do(ctx); err != nil {
				return fmt.Errorf("count listing links: %w", err)
			}
			if n > 0 || !time.Now().Before(deadline) {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("settle listing: %w", ctx.Err())
			case <-time.After(pollInterval):
			}
		}
	})
}

func (l *listing) Links(ctx context.Context) ([]string, error) {
	var hrefs []*string
	if err := l.run(ctx, chromedp.Evaluate(linksScript(l.cfg.LinkSelector), &hrefs)); err != nil {
		return nil, fmt.Errorf("read listing links: %w", err)
	}
	links := make([]string, len(hrefs))
	for i, href := range hrefs {
		if href != nil {
			links[i] = *href
		}
	}
	return links, nil
}

func (l *listing) Next(ctx context.Context) (bool, error) {
	var state string
	if err := l.run(ctx, chromedp.Evaluate(buttonStateScript(l.cfg.NextSelector), &state)); err != nil {
		return false, fmt.Errorf("inspect next button: %w", err)
	}
	if state != buttonEnabled {
		l.logger.Debug("next page unavailable", zap.String("state", state))
		return false, nil
	}

	l.idle.touch()
	err := l.run(ctx,
		chromedp.Click(l.cfg.NextSelector, chromedp.ByQuery, chromedp.NodeVisible),
		l.idle.wait(l.cfg.NetworkIdle),
		chromedp.WaitReady(l.cfg.LinkSelector, chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("advance listing: %w", err)
	}
	return true, nil
}

func (l *listing) Close() error {
	l.cancel()
	return nil
}

type itemPage struct {
	ctx       context.Context
	release   func()
	fieldWait time.Duration
}

// Text polls the page for xpath until it matches or the field wait elapses.
// A label that never appears is reported as not found rather than as an error.
func (p *itemPage) Text(ctx context.Context, xpath string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("query canceled: %w", err)
	}
	deadline := time.Now().Add(p.fieldWait)
	script := xpathTextScript(xpath)
	for {
		var res xpathResult
		if err := chromedp.Run(p.ctx, chromedp.Evaluate(script, &res)); err != nil {
			return "", false, fmt.Errorf("evaluate xpath: %w", err)
		}
		if res.Found {
			return res.Text, true, nil
		}
		if !time.Now().Before(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, fmt.Errorf("query canceled: %w", ctx.Err())
		case <-p.ctx.Done():
			if errors.Is(p.ctx.Err(), context.DeadlineExceeded) {
				return "", false, fmt.Errorf("item timeout: %w", p.ctx.Err())
			}
			return "", false, fmt.Errorf("item page closed: %w", p.ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (p *itemPage) Close() error {
	p.release()
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
