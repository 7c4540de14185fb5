package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/backend/internal/engine"
	"pageflow/backend/internal/memdom"
)

// fakeClock drives engine timers deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and fires due timers outside the lock, the way
// the runtime would.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func testPage() (*memdom.Document, map[string]*memdom.Node) {
	button := memdom.NewNode("button", engine.Attr{Name: "id", Value: "submit"}).SetText("Submit")
	link := memdom.NewNode("a", engine.Attr{Name: "href", Value: "/products/shoes"}).SetText("Shoes")
	password := memdom.NewNode("input",
		engine.Attr{Name: "type", Value: "password"},
		engine.Attr{Name: "name", Value: "pass"})
	file := memdom.NewNode("input",
		engine.Attr{Name: "type", Value: "file"},
		engine.Attr{Name: "name", Value: "upload"})
	text := memdom.NewNode("input",
		engine.Attr{Name: "type", Value: "text"},
		engine.Attr{Name: "name", Value: "email"})
	div := memdom.NewNode("div", engine.Attr{Name: "class", Value: "note"}).SetText("plain container")

	body := memdom.NewNode("body").Append(button, link, password, file, text, div)
	root := memdom.NewNode("html").Append(body)

	doc := memdom.NewDocument(root, "https://shop.example/catalog")
	doc.SetTitle("Catalog")
	doc.SetMetrics(engine.PageMetrics{
		ViewportWidth:  1280,
		ViewportHeight: 800,
		DocumentHeight: 2400,
	})

	return doc, map[string]*memdom.Node{
		"button": button, "link": link, "password": password,
		"file": file, "text": text, "div": div, "body": body,
	}
}

func newTestEngine(t *testing.T) (*engine.Engine, *fakeClock, map[string]*memdom.Node, *[]engine.Action) {
	t.Helper()
	doc, nodes := testPage()
	clock := newFakeClock()
	var emitted []engine.Action
	e := engine.New(doc, func(a engine.Action) { emitted = append(emitted, a) }, engine.Options{Clock: clock})
	return e, clock, nodes, &emitted
}

func TestStartTakesImmediateSnapshot(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	e.Start(true)
	buf := e.Buffer()
	require.NotEmpty(t, buf)
	assert.Equal(t, engine.ActionPageState, buf[0].Type)
	assert.Equal(t, "https://shop.example/catalog", buf[0].URL)
	assert.Equal(t, "Catalog", buf[0].Text)
	assert.Equal(t, 2400, buf[0].DocumentHeight)
}

func TestFirstDocumentArrivalTakesSnapshot(t *testing.T) {
	// Live sessions start recording before the first page snapshot has been
	// parsed, so the engine begins with no document at all.
	clock := newFakeClock()
	e := engine.New(nil, nil, engine.Options{Clock: clock})

	e.Start(true)
	assert.Empty(t, e.Buffer(), "nothing to snapshot before a document arrives")

	doc, _ := testPage()
	e.SetDocument(doc)

	buf := e.Buffer()
	require.NotEmpty(t, buf, "the first document must not wait for the periodic tick")
	assert.Equal(t, engine.ActionPageState, buf[0].Type)
	assert.Equal(t, "https://shop.example/catalog", buf[0].URL)
	assert.Equal(t, 0, countType(buf, engine.ActionNavigation),
		"arriving at the initial page is not a navigation")

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, countType(e.Buffer(), engine.ActionPageState),
		"the periodic tick does not re-record the same state")
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	e.Start(true)
	n := len(e.Buffer())
	e.Start(true)
	assert.Len(t, e.Buffer(), n)
}

func TestStopIsIdempotent(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	e.Stop() // idle stop is a no-op
	e.Start(false)
	e.Stop()
	e.Stop()
	assert.False(t, e.Recording())
}

func TestHandleIgnoredWhenIdle(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Handle(engine.Event{Kind: engine.EventClick, Target: nodes["button"]})
	assert.Empty(t, e.Buffer())
}

func TestClickRecordsAction(t *testing.T) {
	e, _, nodes, emitted := newTestEngine(t)

	e.Start(false)
	before := len(e.Buffer())
	e.Handle(engine.Event{
		Kind:     engine.EventClick,
		Target:   nodes["button"],
		Position: &engine.Position{X: 40, Y: 90},
	})

	buf := e.Buffer()
	require.Len(t, buf, before+1)
	click := buf[len(buf)-1]
	assert.Equal(t, engine.ActionClick, click.Type)
	assert.Equal(t, "#submit", click.Selector)
	assert.Equal(t, "button", click.TagName)
	assert.Equal(t, "Submit", click.Text)
	assert.Equal(t, &engine.Position{X: 40, Y: 90}, click.Position)
	assert.Equal(t, &engine.Viewport{Width: 1280, Height: 800}, click.Viewport)
	assert.NotEmpty(t, click.Timestamp)
	assert.Equal(t, 1, e.WindowSize())
	assert.Equal(t, len(buf), len(*emitted), "every buffered action is emitted")
}

func TestRootClickExcludedFromSelectionWindow(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Start(false)
	before := len(e.Buffer())
	e.Handle(engine.Event{Kind: engine.EventClick, Target: nodes["body"]})

	assert.Len(t, e.Buffer(), before+1, "root click is still recorded")
	assert.Equal(t, 0, e.WindowSize(), "root click never feeds pattern detection")
}

func TestPasswordValueIsMasked(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Start(false)
	e.Handle(engine.Event{Kind: engine.EventInput, Target: nodes["password"], Value: "hunter2"})

	buf := e.Buffer()
	action := buf[len(buf)-1]
	assert.Equal(t, engine.ActionInput, action.Type)
	assert.Equal(t, "password", action.InputType)
	assert.Equal(t, engine.PasswordMask, action.Value)
	assert.NotContains(t, action.Value, "hunter2")
}

func TestFileInputRecordsCountOnly(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Start(false)
	e.Handle(engine.Event{Kind: engine.EventChange, Target: nodes["file"], Value: "secret.pdf", FileCount: 2})

	buf := e.Buffer()
	action := buf[len(buf)-1]
	assert.Equal(t, engine.ActionChange, action.Type)
	assert.Equal(t, "file", action.InputType)
	assert.Empty(t, action.Value)
	assert.Equal(t, 2, action.Count)
}

func TestInputOnNonFormControlIgnored(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Start(false)
	before := len(e.Buffer())
	e.Handle(engine.Event{Kind: engine.EventInput, Target: nodes["div"], Value: "x"})
	assert.Len(t, e.Buffer(), before)
}

func TestScrollIsDebounced(t *testing.T) {
	e, clock, _, _ := newTestEngine(t)

	e.Start(false)
	before := len(e.Buffer())

	e.Handle(engine.Event{Kind: engine.EventScroll})
	e.Handle(engine.Event{Kind: engine.EventScroll})
	e.Handle(engine.Event{Kind: engine.EventScroll})
	assert.Len(t, e.Buffer(), before, "nothing recorded during the burst")

	clock.Advance(250 * time.Millisecond)
	buf := e.Buffer()
	require.Len(t, buf, before+1, "one action after the quiet period")
	assert.Equal(t, engine.ActionScroll, buf[len(buf)-1].Type)
	assert.Equal(t, 2400, buf[len(buf)-1].DocumentHeight)
}

func TestStopCancelsPendingScroll(t *testing.T) {
	e, clock, _, _ := newTestEngine(t)

	e.Start(false)
	e.Handle(engine.Event{Kind: engine.EventScroll})
	e.Stop()
	before := len(e.Buffer())

	clock.Advance(time.Second)
	assert.Len(t, e.Buffer(), before, "no late action after stop")
}

func TestOverlayFollowsLatestHover(t *testing.T) {
	doc, nodes := testPage()
	nodes["button"].SetRect(engine.Rect{X: 10, Y: 20, Width: 100, Height: 30})
	nodes["link"].SetRect(engine.Rect{X: 10, Y: 200, Width: 80, Height: 16})
	doc.SetMetrics(engine.PageMetrics{ScrollX: 0, ScrollY: 50, ViewportWidth: 1280, ViewportHeight: 800})

	e := engine.New(doc, nil, engine.Options{Clock: newFakeClock()})
	e.Start(true)

	e.Handle(engine.Event{Kind: engine.EventPointerMove, Target: nodes["button"]})
	first := e.OverlayState()
	require.True(t, first.Visible)
	assert.Equal(t, engine.Rect{X: 10, Y: 70, Width: 100, Height: 30}, first.Rect)

	e.Handle(engine.Event{Kind: engine.EventPointerMove, Target: nodes["link"]})
	second := e.OverlayState()
	require.True(t, second.Visible)
	assert.Equal(t, engine.Rect{X: 10, Y: 250, Width: 80, Height: 16}, second.Rect)
	assert.NotEqual(t, first.Rect, second.Rect)

	e.Stop()
	assert.False(t, e.OverlayState().Visible)
}

func TestOverlayDisabledWithoutHighlight(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Start(false)
	e.Handle(engine.Event{Kind: engine.EventPointerMove, Target: nodes["button"]})
	assert.False(t, e.OverlayState().Visible)
}

func TestHoverNeverProducesAction(t *testing.T) {
	e, _, nodes, _ := newTestEngine(t)

	e.Start(true)
	before := len(e.Buffer())
	e.Handle(engine.Event{Kind: engine.EventPointerMove, Target: nodes["button"]})
	e.Handle(engine.Event{Kind: engine.EventPointerMove, Target: nodes["link"]})
	assert.Len(t, e.Buffer(), before)
}

func TestPeriodicSnapshotSkipsStaticPage(t *testing.T) {
	doc, _ := testPage()
	clock := newFakeClock()
	e := engine.New(doc, nil, engine.Options{Clock: clock})

	e.Start(false)
	before := countType(e.Buffer(), engine.ActionPageState)

	clock.Advance(10 * time.Second)
	clock.Advance(10 * time.Second)
	assert.Equal(t, before, countType(e.Buffer(), engine.ActionPageState),
		"identical page state is not re-recorded")
}

func TestPeriodicSnapshotFiresAfterLargeScroll(t *testing.T) {
	doc, _ := testPage()
	clock := newFakeClock()
	e := engine.New(doc, nil, engine.Options{Clock: clock})

	e.Start(false)
	before := countType(e.Buffer(), engine.ActionPageState)

	doc.SetMetrics(engine.PageMetrics{
		ScrollY:        600,
		ViewportWidth:  1280,
		ViewportHeight: 800,
		DocumentHeight: 2400,
	})
	clock.Advance(10 * time.Second)

	assert.Equal(t, before+1, countType(e.Buffer(), engine.ActionPageState))
}

func TestNavigationRecordedOnDocumentSwap(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.Start(false)

	next := memdom.NewDocument(memdom.NewNode("html").Append(memdom.NewNode("body")), "https://shop.example/item/42")
	e.SetDocument(next)

	buf := e.Buffer()
	last := buf[len(buf)-1]
	assert.Equal(t, engine.ActionNavigation, last.Type)
	assert.Equal(t, "https://shop.example/item/42", last.URL)
}

func TestTimestampsAreNonDecreasing(t *testing.T) {
	e, clock, nodes, _ := newTestEngine(t)
	e.Start(false)

	e.Handle(engine.Event{Kind: engine.EventClick, Target: nodes["button"]})
	clock.Advance(time.Second)
	e.Handle(engine.Event{Kind: engine.EventClick, Target: nodes["link"]})

	buf := e.Buffer()
	require.GreaterOrEqual(t, len(buf), 2)
	var prev time.Time
	for _, a := range buf {
		ts, err := time.Parse(time.RFC3339Nano, a.Timestamp)
		require.NoError(t, err)
		assert.False(t, ts.Before(prev))
		prev = ts
	}
}

func TestSnapshotExtractsVisibleStructures(t *testing.T) {
	table := memdom.NewNode("table", engine.Attr{Name: "id", Value: "prices"}).Append(
		memdom.NewNode("tr").Append(
			memdom.NewNode("th").SetText("Item"),
			memdom.NewNode("th").SetText("Price"),
		),
		memdom.NewNode("tr").Append(
			memdom.NewNode("td").SetText("Shoes"),
			memdom.NewNode("td").SetText("49"),
		),
	)
	list := memdom.NewNode("ul", engine.Attr{Name: "id", Value: "tags"}).Append(
		memdom.NewNode("li").SetText("red"),
		memdom.NewNode("li").SetText("green"),
		memdom.NewNode("li").SetText("blue"),
	)
	body := memdom.NewNode("body").Append(table, list)
	doc := memdom.NewDocument(memdom.NewNode("html").Append(body), "https://shop.example/data")

	e := engine.New(doc, nil, engine.Options{Clock: newFakeClock()})
	e.Start(false)

	buf := e.Buffer()
	require.Equal(t, 1, countType(buf, engine.ActionDataTable))
	require.Equal(t, 1, countType(buf, engine.ActionDataList))

	tableAction := firstOfType(buf, engine.ActionDataTable)
	assert.Equal(t, "#prices", tableAction.Selector)
	assert.Equal(t, []string{"Item", "Price"}, tableAction.Table.Headers)

	listAction := firstOfType(buf, engine.ActionDataList)
	assert.Equal(t, "#tags", listAction.Selector)
	assert.Len(t, listAction.List, 3)
}

func countType(actions []engine.Action, actionType string) int {
	n := 0
	for _, a := range actions {
		if a.Type == actionType {
			n++
		}
	}
	return n
}

func firstOfType(actions []engine.Action, actionType string) engine.Action {
	for _, a := range actions {
		if a.Type == actionType {
			return a
		}
	}
	return engine.Action{}
}
