package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/extract"
	"github.com/JakeFAU/eop-tender-crawler/internal/testutil"
)

const (
	testBase     = "https://app.eop.bg"
	testStart    = "https://app.eop.bg/today"
	deadline     = "20 март 2025 (чт), 17:00"
	futureDate   = "11 март 2025 (вт), 09:00"
	earlierToday = "10 март 2025 (пн), 08:00"
	yesterday    = "09 март 2025 (нд), 10:00"
)

var (
	eet     = time.FixedZone("EET", 2*60*60)
	testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, eet)
)

type fakeListing struct {
	pages     [][]string
	current   int
	nextCalls int
	nextErr   error
	linksErr  error
	closed    bool
}

func (l *fakeListing) Links(context.Context) ([]string, error) {
	if l.linksErr != nil {
		return nil, l.linksErr
	}
	if l.current >= len(l.pages) {
		return nil, nil
	}
	return append([]string(nil), l.pages[l.current]...), nil
}

func (l *fakeListing) Next(context.Context) (bool, error) {
	l.nextCalls++
	if l.nextErr != nil {
		return false, l.nextErr
	}
	if l.current+1 >= len(l.pages) {
		return false, nil
	}
	l.current++
	return true, nil
}

func (l *fakeListing) Close() error {
	l.closed = true
	return nil
}

type fakeListingOpener struct {
	listing *fakeListing
	err     error
}

func (o *fakeListingOpener) OpenListing(context.Context, string) (Listing, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.listing, nil
}

type fakeItems struct {
	mu      sync.Mutex
	html    map[string]string
	errs    map[string]error
	visited []string
	open    int
	maxOpen int
	closed  int
}

func newFakeItems() *fakeItems {
	return &fakeItems{html: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeItems) add(path string, detail testutil.Detail) string {
	f.html[testBase+path] = detail.HTML()
	return path
}

func (f *fakeItems) OpenItem(_ context.Context, url string) (ItemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	body, ok := f.html[url]
	if !ok {
		return nil, fmt.Errorf("navigate %s: 404", url)
	}
	doc, err := extract.ParseHTML(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	return &fakeItem{Document: doc, parent: f}, nil
}

type fakeItem struct {
	*extract.Document
	parent *fakeItems
}

func (i *fakeItem) Close() error {
	i.parent.mu.Lock()
	defer i.parent.mu.Unlock()
	i.parent.open--
	i.parent.closed++
	return nil
}

type fakeCheckpointer struct {
	snapshots []Snapshot
	err       error
}

func (c *fakeCheckpointer) Write(_ context.Context, s Snapshot) error {
	if c.err != nil {
		return c.err
	}
	c.snapshots = append(c.snapshots, s)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

type recordingObserver struct {
	outcomes []string
	pages    []int
}

func (o *recordingObserver) ObserveItem(outcome ItemOutcome) {
	o.outcomes = append(o.outcomes, outcome.Label())
}

func (o *recordingObserver) ObservePage(page int, _ int) {
	o.pages = append(o.pages, page)
}

type harness struct {
	listing  *fakeListing
	items    *fakeItems
	ckpt     *fakeCheckpointer
	observer *recordingObserver
	engine   *Engine
}

func newHarness(t *testing.T, pages [][]string, items *fakeItems) *harness {
	t.Helper()
	h := &harness{
		listing:  &fakeListing{pages: pages},
		items:    items,
		ckpt:     &fakeCheckpointer{},
		observer: &recordingObserver{},
	}
	engine, err := NewEngine(
		Config{StartURL: testStart, BaseURL: testBase},
		&fakeListingOpener{listing: h.listing},
		items,
		h.ckpt,
		fixedClock{now: testNow},
		fixedIDs{id: "run-1"},
		h.observer,
		zap.NewNop(),
	)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func current(id int) testutil.Detail {
	d := testutil.DefaultDetail(deadline, futureDate)
	d.OrderNumber = fmt.Sprintf("order-%d", id)
	return d
}

func orderNumbers(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.OrderNumber)
	}
	return out
}

func TestRunTwoPagesAllCurrent(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	pages := [][]string{{}, {}}
	for i := 1; i <= 6; i++ {
		path := items.add(fmt.Sprintf("/tender/%d", i), current(i))
		pages[(i-1)/3] = append(pages[(i-1)/3], path)
	}
	h := newHarness(t, pages, items)

	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	meta := res.Snapshot.Metadata
	require.Equal(t, 6, meta.TotalTenders)
	require.Equal(t, 0, meta.SkippedOldTenders)
	require.Equal(t, 0, meta.FailedTenders)
	require.Equal(t, 2, meta.PagesProcessed)
	require.Equal(t, "run-1", meta.RunID)
	require.Equal(t, testStart, meta.SourceURL)
	require.Equal(t, FilterPolicy, meta.FilterApplied)
	require.False(t, res.StoppedOnStale)
	require.Equal(t,
		[]string{"order-1", "order-2", "order-3", "order-4", "order-5", "order-6"},
		orderNumbers(res.Snapshot.Tenders))

	require.Len(t, h.ckpt.snapshots, 2)
	require.Equal(t, 3, h.ckpt.snapshots[0].Metadata.TotalTenders)
	require.Equal(t, 1, h.ckpt.snapshots[0].Metadata.PagesProcessed)
	require.Equal(t, []int{1, 2}, h.observer.pages)
	require.Equal(t, 1, h.items.maxOpen)
	require.Zero(t, h.items.open)
	require.Equal(t, 6, h.items.closed)
	require.True(t, h.listing.closed)

	first := res.Snapshot.Tenders[0]
	require.Equal(t, testBase+"/tender/1", first.URL)
	require.Equal(t, 1, first.PageNumber)
	require.Equal(t, testNow, first.ScrapedAt)
	require.Equal(t, "2025-03-20 17:00", first.SubmissionDeadline.Formatted)
	require.Equal(t, deadline, first.SubmissionDeadline.Raw)
	require.Equal(t, "2025-03-11 09:00", first.PublicationDate.Formatted)
	require.True(t, first.PublicationDate.IsFuture)
	require.False(t, first.PublicationDate.IsPast)
	require.Equal(t, "Община Пловдив", first.Buyer)
	require.Equal(t, 2, res.Snapshot.Tenders[3].PageNumber)
}

func TestRunStopsAtFirstStaleItem(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	stale := testutil.DefaultDetail(deadline, yesterday)
	page := []string{
		items.add("/tender/1", current(1)),
		items.add("/tender/2", current(2)),
		items.add("/tender/3", stale),
		items.add("/tender/4", current(4)),
	}
	h := newHarness(t, [][]string{page}, items)

	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"order-1", "order-2"}, orderNumbers(res.Snapshot.Tenders))
	require.Equal(t, 1, res.Snapshot.Metadata.SkippedOldTenders)
	require.True(t, res.StoppedOnStale)
	require.NotContains(t, h.items.visited, testBase+"/tender/4")
	require.Len(t, h.items.visited, 3)
	require.Zero(t, h.items.open, "stale item context must be closed")
	require.Zero(t, h.listing.nextCalls, "pagination must not advance after a stale item")
	require.Len(t, h.ckpt.snapshots, 1, "the page holding the stale item is still checkpointed")
	require.Equal(t, []string{"recorded", "recorded", "stale"}, h.observer.outcomes)
}

func TestRunStaleOnSecondPageKeepsEarlierPages(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	pages := [][]string{
		{items.add("/a", current(1)), items.add("/b", current(2))},
		{items.add("/c", current(3)), items.add("/d", testutil.DefaultDetail(deadline, yesterday)), items.add("/e", current(5))},
		{items.add("/f", current(6))},
	}
	h := newHarness(t, pages, items)

	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"order-1", "order-2", "order-3"}, orderNumbers(res.Snapshot.Tenders))
	require.Equal(t, 2, res.Snapshot.Metadata.PagesProcessed)
	require.Equal(t, 1, res.Snapshot.Metadata.SkippedOldTenders)
	require.Equal(t, 1, h.listing.nextCalls)
	require.NotContains(t, h.items.visited, testBase+"/e")
	require.NotContains(t, h.items.visited, testBase+"/f")
}

func TestRunPublishedEarlierTodayIsCurrent(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	page := []string{items.add("/today", testutil.DefaultDetail(deadline, earlierToday))}
	h := newHarness(t, [][]string{page}, items)

	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Snapshot.Tenders, 1)
	pub := res.Snapshot.Tenders[0].PublicationDate
	require.True(t, pub.IsPast)
	require.False(t, pub.IsFuture)
	require.Zero(t, res.Snapshot.Metadata.SkippedOldTenders)
}

func TestRunDropsItemMissingBuyer(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	broken := current(2)
	broken.Omit = []string{extract.Buyer}
	page := []string{
		items.add("/tender/1", current(1)),
		items.add("/tender/2", broken),
		items.add("/tender/3", current(3)),
	}
	h := newHarness(t, [][]string{page}, items)

	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"order-1", "order-3"}, orderNumbers(res.Snapshot.Tenders))
	require.Zero(t, res.Snapshot.Metadata.SkippedOldTenders)
	require.Equal(t, 1, res.Snapshot.Metadata.FailedTenders)
	require.Equal(t, []string{"recorded", string(SkipLabelNotFound), "recorded"}, h.observer.outcomes)
	require.Zero(t, h.items.open)
	require.Equal(t, 3, h.items.closed)
}

func TestRunClassifiesSkips(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	badDate := current(3)
	badDate.PublicationDate = "вчера"
	items.errs[testBase+"/timeout"] = fmt.Errorf("navigate: %w", context.DeadlineExceeded)
	page := []string{
		"",
		items.add("/tender/2", current(2)),
		items.add("/tender/3", badDate),
		"/timeout",
		"/missing",
	}
	h := newHarness(t, [][]string{page}, items)

	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"order-2"}, orderNumbers(res.Snapshot.Tenders))
	require.Equal(t, []string{
		string(SkipNoHref),
		"recorded",
		string(SkipDateUnparseable),
		string(SkipNavigation),
		string(SkipNavigation),
	}, h.observer.outcomes)
	require.Equal(t, 3, res.Snapshot.Metadata.FailedTenders, "missing hrefs are not failures")
	require.Zero(t, h.items.open)
}

func TestRunEmptyListing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, [][]string{{}}, newFakeItems())
	res, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot.Tenders)
	require.Empty(t, res.Snapshot.Tenders)
	require.Equal(t, 1, res.Snapshot.Metadata.PagesProcessed)
	require.Len(t, h.ckpt.snapshots, 1)
}

func TestRunFatalErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	t.Run("listing open", func(t *testing.T) {
		t.Parallel()
		engine, err := NewEngine(
			Config{StartURL: testStart},
			&fakeListingOpener{err: boom},
			newFakeItems(),
			&fakeCheckpointer{},
			fixedClock{now: testNow},
			fixedIDs{id: "run"},
			nil,
			zap.NewNop(),
		)
		require.NoError(t, err)
		_, err = engine.Run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("links", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, [][]string{{}}, newFakeItems())
		h.listing.linksErr = boom
		_, err := h.engine.Run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("checkpoint", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, [][]string{{}}, newFakeItems())
		h.ckpt.err = boom
		_, err := h.engine.Run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("next page", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, [][]string{{}, {}}, newFakeItems())
		h.listing.nextErr = boom
		_, err := h.engine.Run(context.Background())
		require.ErrorIs(t, err, boom)
		require.Len(t, h.ckpt.snapshots, 1)
	})
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	h := newHarness(t, [][]string{{items.add("/tender/1", current(1))}}, items)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.items.visited)
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	opener := &fakeListingOpener{listing: &fakeListing{}}
	_, err := NewEngine(Config{}, opener, newFakeItems(), &fakeCheckpointer{}, fixedClock{}, fixedIDs{}, nil, nil)
	require.Error(t, err)

	_, err = NewEngine(Config{StartURL: testStart}, nil, newFakeItems(), &fakeCheckpointer{}, fixedClock{}, fixedIDs{}, nil, nil)
	require.Error(t, err)

	_, err = NewEngine(
		Config{StartURL: testStart, Fields: []extract.Field{{Name: extract.Buyer, Label: "Възложител"}}},
		opener, newFakeItems(), &fakeCheckpointer{}, fixedClock{}, fixedIDs{}, nil, nil,
	)
	require.ErrorContains(t, err, "publication date")
}
