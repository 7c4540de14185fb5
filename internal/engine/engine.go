package engine

import (
	"log"
	"math"
	"sync"
	"time"
)

// Event kinds delivered to Engine.Handle by the capture bridge.
const (
	EventPointerMove = "pointermove"
	EventClick       = "click"
	EventInput       = "input"
	EventChange      = "change"
	EventScroll      = "scroll"
)

// Event is one raw interaction signal, already resolved to a document
// element by the bridge.
type Event struct {
	Kind      string
	Target    Element
	Position  *Position // pointer page coordinates for click events
	Value     string    // control value for input/change events
	FileCount int       // number of files for file inputs; contents are never captured
}

// EmitFunc receives each captured Action. Delivery is fire-and-forget: the
// engine never retries and never awaits acknowledgment.
type EmitFunc func(Action)

// Fixed privacy mask recorded in place of password values.
const PasswordMask = "********"

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	Clock            Clock
	WindowSize       int           // rolling selection window capacity
	SnapshotInterval time.Duration // periodic page-state snapshot period
	ScrollDebounce   time.Duration // quiet period before a scroll action is recorded
	ScrollThreshold  float64       // pixels of scroll movement that make a snapshot worth retaking
	MaxClickText     int           // cap on captured click text
}

func (o *Options) defaults() {
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.WindowSize <= 0 {
		o.WindowSize = 20
	}
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = 10 * time.Second
	}
	if o.ScrollDebounce <= 0 {
		o.ScrollDebounce = 250 * time.Millisecond
	}
	if o.ScrollThreshold <= 0 {
		o.ScrollThreshold = 200
	}
	if o.MaxClickText <= 0 {
		o.MaxClickText = 100
	}
}

type state int

const (
	stateIdle state = iota
	stateRecording
)

// Engine is the per-page recording engine: it owns the action buffer, the
// selector cache, the rolling selection window and the highlight overlay.
// One instance per page context; no process-wide state.
//
// The original host ran everything on a single UI loop. Here events may
// arrive from the bridge's poll goroutine while the API reads the buffer, so
// the engine guards its state with a mutex.
type Engine struct {
	mu   sync.Mutex
	opts Options
	doc  Document
	emit EmitFunc

	state     state
	highlight bool

	syn     *Synthesizer
	window  *selectionWindow
	overlay Overlay
	buffer  []Action

	lastHover Element

	scrollTimer   Timer
	snapshotTimer Timer

	lastSnapshotURL    string
	lastSnapshotScroll float64
	snapshotTaken      bool
	lastNavURL         string
}

// New builds an engine recording doc. emit may be nil; captured actions are
// then only available through Buffer.
func New(doc Document, emit EmitFunc, opts Options) *Engine {
	opts.defaults()
	return &Engine{
		opts:   opts,
		doc:    doc,
		emit:   emit,
		syn:    NewSynthesizer(doc),
		window: newSelectionWindow(opts.WindowSize),
	}
}

// Recording reports whether the engine is capturing.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateRecording
}

// Start flips the engine to Recording: clears the selector cache, the
// selection window and the buffer, takes an immediate page-state snapshot
// and arms the periodic snapshot timer. Starting while already recording is
// a no-op.
func (e *Engine) Start(highlightElements bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRecording {
		return
	}
	e.state = stateRecording
	e.highlight = highlightElements
	e.buffer = nil
	e.syn.Reset()
	e.window.reset()
	e.lastHover = nil
	e.snapshotTaken = false
	if e.doc != nil {
		e.lastNavURL = e.doc.URL()
	}

	e.snapshotLocked(true)
	e.armSnapshotLocked()
}

// Stop flips the engine back to Idle. Idempotent: stopping an idle engine is
// a no-op. Pending debounce and snapshot timers are cancelled synchronously
// so no late action can be appended after the state flips.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateIdle {
		return
	}
	e.state = stateIdle

	if e.scrollTimer != nil {
		e.scrollTimer.Stop()
		e.scrollTimer = nil
	}
	if e.snapshotTimer != nil {
		e.snapshotTimer.Stop()
		e.snapshotTimer = nil
	}
	e.overlay.Hide()
	e.syn.Reset()
	e.window.reset()
	e.lastHover = nil
}

// SetDocument swaps the engine's view of the page, typically after the
// bridge rebuilt it from a fresh snapshot. A URL change while recording is
// captured as a navigation action. When the engine was started before any
// document arrived, the first document triggers the immediate page-state
// snapshot that Start had nothing to take.
func (e *Engine) SetDocument(doc Document) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.doc = doc
	e.syn.SetDocument(doc)
	e.lastHover = nil

	if doc == nil {
		return
	}
	url := doc.URL()
	if e.state == stateRecording && e.lastNavURL != "" && url != e.lastNavURL {
		e.appendLocked(Action{Type: ActionNavigation, URL: url})
	}
	e.lastNavURL = url

	if e.state == stateRecording && !e.snapshotTaken {
		e.snapshotLocked(true)
	}
}

// Buffer returns a copy of the actions captured so far, in capture order.
func (e *Engine) Buffer() []Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Action(nil), e.buffer...)
}

// OverlayState returns a copy of the highlight overlay state.
func (e *Engine) OverlayState() Overlay {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlay
}

// WindowSize returns the current number of selection-window entries.
func (e *Engine) WindowSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.size()
}

// Handle processes one captured event. All handling is gated on the
// recording flag; when idle this returns immediately.
func (e *Engine) Handle(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateRecording {
		return
	}

	switch ev.Kind {
	case EventPointerMove:
		e.handleHoverLocked(ev.Target)
	case EventClick:
		e.handleClickLocked(ev)
	case EventInput, EventChange:
		e.handleValueLocked(ev)
	case EventScroll:
		e.handleScrollLocked()
	default:
		log.Printf("engine: ignoring unknown event kind %q", ev.Kind)
	}
}

// handleHoverLocked updates the highlight overlay only; hovering never
// produces an action.
func (e *Engine) handleHoverLocked(target Element) {
	if !e.highlight {
		return
	}
	if target == e.lastHover {
		return
	}
	e.lastHover = target
	e.overlay.Update(target, e.metricsLocked())
}

func (e *Engine) handleClickLocked(ev Event) {
	if ev.Target == nil {
		return
	}
	target := ev.Target
	selector := e.syn.Synthesize(target)
	m := e.metricsLocked()

	action := Action{
		Type:       ActionClick,
		Selector:   selector,
		TagName:    target.Tag(),
		Attributes: SemanticAttrs(target),
		Text:       ElementText(target, e.opts.MaxClickText),
		Position:   ev.Position,
		Viewport:   &Viewport{Width: m.ViewportWidth, Height: m.ViewportHeight},
	}
	e.appendLocked(action)

	// Root elements are recorded but never feed pattern detection.
	if IsRoot(target) {
		return
	}
	e.window.push(&SelectedElement{
		Element:     target,
		Selector:    selector,
		TagName:     target.Tag(),
		TextSample:  ElementText(target, 50),
		Occurrences: 1,
		FirstSeenAt: e.opts.Clock.Now(),
	})
	for _, pattern := range DetectSelectionPatterns(e.window, e.syn) {
		e.appendLocked(pattern)
	}
}

func (e *Engine) handleValueLocked(ev Event) {
	if ev.Target == nil {
		return
	}
	controlType, ok := IsFormControl(ev.Target)
	if !ok {
		return
	}

	action := Action{
		Type:      ev.Kind,
		Selector:  e.syn.Synthesize(ev.Target),
		InputType: controlType,
	}
	switch controlType {
	case "password":
		action.Value = PasswordMask
	case "file":
		// Only the count; never names or contents.
		action.Count = ev.FileCount
	default:
		action.Value = ev.Value
	}
	e.appendLocked(action)
}

// handleScrollLocked debounces scroll bursts: the action is recorded once no
// further scroll arrives within the configured quiet period.
func (e *Engine) handleScrollLocked() {
	if e.scrollTimer != nil {
		e.scrollTimer.Stop()
	}
	e.scrollTimer = e.opts.Clock.AfterFunc(e.opts.ScrollDebounce, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.scrollTimer = nil
		if e.state != stateRecording {
			return
		}
		m := e.metricsLocked()
		e.appendLocked(Action{
			Type:           ActionScroll,
			Position:       &Position{X: int(m.ScrollX), Y: int(m.ScrollY)},
			Viewport:       &Viewport{Width: m.ViewportWidth, Height: m.ViewportHeight},
			DocumentHeight: m.DocumentHeight,
		})
	})
}

func (e *Engine) armSnapshotLocked() {
	e.snapshotTimer = e.opts.Clock.AfterFunc(e.opts.SnapshotInterval, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != stateRecording {
			return
		}
		e.snapshotLocked(false)
		e.armSnapshotLocked()
	})
}

// snapshotLocked records the page state and runs the structural extraction
// and repeated-element passes. Unless forced, a snapshot is skipped when the
// URL is unchanged and the page has not scrolled past the threshold, so a
// static page does not produce redundant identical payloads.
func (e *Engine) snapshotLocked(force bool) {
	if e.doc == nil {
		return
	}
	m := e.metricsLocked()
	url := e.doc.URL()

	if !force && url == e.lastSnapshotURL &&
		math.Abs(m.ScrollY-e.lastSnapshotScroll) <= e.opts.ScrollThreshold {
		return
	}
	e.lastSnapshotURL = url
	e.lastSnapshotScroll = m.ScrollY
	e.snapshotTaken = true

	e.appendLocked(Action{
		Type:           ActionPageState,
		URL:            url,
		Text:           e.doc.Title(),
		Position:       &Position{X: int(m.ScrollX), Y: int(m.ScrollY)},
		Viewport:       &Viewport{Width: m.ViewportWidth, Height: m.ViewportHeight},
		DocumentHeight: m.DocumentHeight,
	})

	for _, table := range e.doc.Query("table") {
		if data := ExtractTable(table); data != nil {
			e.appendLocked(Action{
				Type:     ActionDataTable,
				Selector: e.syn.Synthesize(table),
				Table:    data,
			})
		}
	}
	for _, tag := range []string{"ul", "ol"} {
		for _, list := range e.doc.Query(tag) {
			if items := ExtractList(list); items != nil {
				e.appendLocked(Action{
					Type:     ActionDataList,
					Selector: e.syn.Synthesize(list),
					List:     items,
				})
			}
		}
	}
	if repeated := DetectRepeatedElements(e.doc, e.syn); repeated != nil {
		e.appendLocked(*repeated)
	}
}

// appendLocked stamps and appends one action, then hands it to the dispatch
// callback. The buffer is append-only; actions are immutable once appended.
func (e *Engine) appendLocked(action Action) {
	if action.Timestamp == "" {
		action.Timestamp = e.opts.Clock.Now().UTC().Format(timestampLayout)
	}
	if action.URL == "" && e.doc != nil {
		action.URL = e.doc.URL()
	}
	e.buffer = append(e.buffer, action)
	if e.emit != nil {
		e.emit(action)
	}
}

func (e *Engine) metricsLocked() PageMetrics {
	if e.doc == nil {
		return PageMetrics{}
	}
	return e.doc.Metrics()
}
