// Package static fetches server-rendered tender pages over plain HTTP with
// Colly and answers field queries from the parsed document.
//
// It is used when the portal (or a mirror of it) serves detail pages without
// client-side rendering, and in end-to-end tests against httptest servers.
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
	"github.com/JakeFAU/eop-tender-crawler/internal/extract"
)

// Defaults for a static fetch.
const (
	DefaultTimeout      = 40 * time.Second
	DefaultLinkSelector = ".nxlist-group a"
	DefaultNextSelector = "a[rel=next]"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	ListingTimeout time.Duration
	ItemTimeout    time.Duration
	// LinkSelector and NextSelector are CSS selectors.
	LinkSelector string
	NextSelector string
}

// Fetcher implements crawler.ListingOpener and crawler.ItemOpener.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

var (
	_ crawler.ListingOpener = (*Fetcher)(nil)
	_ crawler.ItemOpener    = (*Fetcher)(nil)
)

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.ListingTimeout <= 0 {
		cfg.ListingTimeout = DefaultTimeout
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultTimeout
	}
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = DefaultLinkSelector
	}
	if cfg.NextSelector == "" {
		cfg.NextSelector = DefaultNextSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, transport: newHTTPTransport(), logger: logger}
}

// page is one fetched HTML document.
type page struct {
	url   *url.URL
	body  []byte
	links []string
	next  string
}

// fetch visits rawURL with a new collector so cookies never carry over
// between pages. Link and pagination selectors are only collected when
// withListing is set.
func (f *Fetcher) fetch(ctx context.Context, rawURL string, timeout time.Duration, withListing bool) (*page, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.WithTransport(f.transport)
	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}

	var (
		result   page
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		result.url = r.Request.URL
		result.body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})
	if withListing {
		collector.OnHTML(f.cfg.LinkSelector, func(e *colly.HTMLElement) {
			href, ok := e.DOM.Attr("href")
			if !ok {
				href = ""
			}
			result.links = append(result.links, strings.TrimSpace(href))
		})
		collector.OnHTML(f.cfg.NextSelector, func(e *colly.HTMLElement) {
			if result.next != "" || isDisabled(e) {
				return
			}
			if href := strings.TrimSpace(e.Attr("href")); href != "" {
				result.next = e.Request.AbsoluteURL(href)
			}
		})
	}

	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return nil, err
	}
	if result.url == nil {
		return nil, errors.New("colly returned no response")
	}
	return &result, nil
}

func isDisabled(e *colly.HTMLElement) bool {
	if _, ok := e.DOM.Attr("disabled"); ok {
		return true
	}
	return strings.EqualFold(e.Attr("aria-disabled"), "true")
}

// OpenListing fetches the first listing page.
func (f *Fetcher) OpenListing(ctx context.Context, rawURL string) (crawler.Listing, error) {
	p, err := f.fetch(ctx, rawURL, f.cfg.ListingTimeout, true)
	if err != nil {
		return nil, fmt.Errorf("navigate listing %s: %w", rawURL, err)
	}
	return &listing{fetcher: f, current: p}, nil
}

// OpenItem fetches and parses a detail page.
func (f *Fetcher) OpenItem(ctx context.Context, rawURL string) (crawler.ItemPage, error) {
	p, err := f.fetch(ctx, rawURL, f.cfg.ItemTimeout, false)
	if err != nil {
		return nil, fmt.Errorf("navigate item %s: %w", rawURL, err)
	}
	doc, err := extract.ParseHTML(bytes.NewReader(p.body))
	if err != nil {
		return nil, err
	}
	return itemPage{Document: doc}, nil
}

type listing struct {
	fetcher *Fetcher
	current *page
}

func (l *listing) Links(context.Context) ([]string, error) {
	return append([]string(nil), l.current.links...), nil
}

func (l *listing) Next(ctx context.Context) (bool, error) {
	if l.current.next == "" {
		return false, nil
	}
	p, err := l.fetcher.fetch(ctx, l.current.next, l.fetcher.cfg.ListingTimeout, true)
	if err != nil {
		return false, fmt.Errorf("advance listing: %w", err)
	}
	l.current = p
	return true, nil
}

func (l *listing) Close() error { return nil }

type itemPage struct {
	*extract.Document
}

func (itemPage) Close() error { return nil }

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("colly fetch canceled: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			if *fetchErr != nil {
				return fmt.Errorf("colly response failed: %w", *fetchErr)
			}
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
