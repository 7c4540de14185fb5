package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gorilla/websocket"

	"pageflow/backend/internal/config"
	"pageflow/backend/internal/engine"
	"pageflow/backend/internal/memdom"
	"pageflow/backend/pkg/chrome"
)

// engineOptions tunes engines created for live sessions. Zero values fall
// back to the engine defaults; Configure overrides them from server config.
var engineOptions engine.Options

// Configure applies recorder tuning to all sessions started afterwards.
func Configure(cfg config.RecorderConfig) {
	engineOptions = engine.Options{
		WindowSize:       cfg.SelectionWindowSize,
		SnapshotInterval: time.Duration(cfg.SnapshotIntervalSec) * time.Second,
		ScrollThreshold:  float64(cfg.ScrollThresholdPx),
	}
}

// rawEvent is one interaction signal queued by the injected relay script.
// The target is addressed by its element-child index path from the document
// root; the Go side resolves it against the current snapshot.
type rawEvent struct {
	Kind      string `json:"kind"`
	Path      []int  `json:"path"`
	Value     string `json:"value"`
	FileCount int    `json:"fileCount"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// rawSnapshot is a serialized page state: annotated HTML plus geometry.
type rawSnapshot struct {
	HTML           string  `json:"html"`
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	ScrollX        float64 `json:"scrollX"`
	ScrollY        float64 `json:"scrollY"`
	ViewportWidth  int     `json:"viewportWidth"`
	ViewportHeight int     `json:"viewportHeight"`
	DocumentHeight int     `json:"documentHeight"`
}

// drainResult is one poll of the relay script's queue.
type drainResult struct {
	Events   []rawEvent   `json:"events"`
	Snapshot *rawSnapshot `json:"snapshot"`
}

// LiveRecorder drives one recorded browser session: it launches Chrome,
// injects the relay script, and feeds drained events into a per-session
// recording engine. Actions emitted by the engine are fanned out to an
// optional websocket subscriber.
type LiveRecorder struct {
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	recording bool
	sessionID string
	targetURL string
	highlight bool
	startedAt time.Time

	engine *engine.Engine
	doc    *memdom.Document

	// wsConn has its own lock: the engine emits while the poll goroutine
	// holds r.mu, so the subscriber field must never contend for it.
	wsMu   sync.Mutex
	wsConn *websocket.Conn
}

func NewLiveRecorder(sessionID string) *LiveRecorder {
	return &LiveRecorder{sessionID: sessionID}
}

// StartRecording opens the target page and begins capturing.
func (r *LiveRecorder) StartRecording(targetURL string, highlightElements bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("recording is already in progress")
	}

	chromePath := chrome.GetChromePath()
	if chromePath == "" {
		return fmt.Errorf("Chrome browser not found. Please install Google Chrome or Chromium")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	r.ctx = ctx
	r.cancel = func() {
		ctxCancel()
		allocCancel()
	}

	err := chromedp.Run(r.ctx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(relayScript(highlightElements), nil),
	)
	if err != nil {
		r.cancel()
		return fmt.Errorf("failed to start recording: %w", err)
	}

	r.targetURL = targetURL
	r.highlight = highlightElements
	r.startedAt = time.Now()
	r.engine = engine.New(nil, r.relayAction, engineOptions)
	r.engine.Start(highlightElements)
	r.recording = true

	go r.pollEvents()

	return nil
}

// StopRecording stops the engine and tears the browser down. The captured
// actions stay readable until the session is cleaned up.
func (r *LiveRecorder) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return fmt.Errorf("no recording in progress")
	}
	r.recording = false
	r.engine.Stop()
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// Actions returns a copy of the actions captured so far.
func (r *LiveRecorder) Actions() []engine.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return nil
	}
	return r.engine.Buffer()
}

func (r *LiveRecorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// SetWebSocketConnection attaches a live subscriber for emitted actions.
func (r *LiveRecorder) SetWebSocketConnection(conn *websocket.Conn) {
	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	r.wsConn = conn
}

// relayAction is the engine's dispatch interface: fire-and-forget fan-out to
// the websocket subscriber. Writes are already serialized by the engine's own
// mutex, so wsMu only covers the field read.
func (r *LiveRecorder) relayAction(action engine.Action) {
	r.wsMu.Lock()
	conn := r.wsConn
	r.wsMu.Unlock()
	if conn == nil {
		return
	}
	data, err := json.Marshal(action)
	if err != nil {
		log.Printf("recorder: marshal action: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("recorder: websocket write: %v", err)
	}
}

// pollEvents drains the relay script queue until the session ends.
func (r *LiveRecorder) pollEvents() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if !r.IsRecording() {
				return
			}
			var result drainResult
			err := chromedp.Run(r.ctx,
				chromedp.Evaluate(`window.__pageflowRelay && window.__pageflowRelay.drain()`, &result),
			)
			if err != nil {
				log.Printf("recorder: drain events: %v", err)
				continue
			}
			r.process(result)
		}
	}
}

func (r *LiveRecorder) process(result drainResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}

	if s := result.Snapshot; s != nil {
		doc, err := memdom.Parse(s.HTML, s.URL)
		if err != nil {
			log.Printf("recorder: parse snapshot: %v", err)
		} else {
			doc.SetTitle(s.Title)
			doc.SetMetrics(engine.PageMetrics{
				ScrollX:        s.ScrollX,
				ScrollY:        s.ScrollY,
				ViewportWidth:  s.ViewportWidth,
				ViewportHeight: s.ViewportHeight,
				DocumentHeight: s.DocumentHeight,
			})
			r.doc = doc
			r.engine.SetDocument(doc)
		}
	}

	if r.doc == nil {
		return
	}
	for _, raw := range result.Events {
		ev := engine.Event{
			Kind:      raw.Kind,
			Target:    resolvePath(r.doc, raw.Path),
			Value:     raw.Value,
			FileCount: raw.FileCount,
		}
		if raw.Kind == engine.EventClick {
			ev.Position = &engine.Position{X: raw.X, Y: raw.Y}
		}
		r.engine.Handle(ev)
	}
}

// resolvePath walks an element-child index path from the document root.
// Paths drift when the page mutates between snapshot and event; a miss
// resolves to nil and the engine degrades accordingly.
func resolvePath(doc *memdom.Document, path []int) engine.Element {
	el := doc.Root()
	for _, idx := range path {
		if el == nil {
			return nil
		}
		children := el.Children()
		if idx < 0 || idx >= len(children) {
			return nil
		}
		el = children[idx]
	}
	return el
}

// Manager tracks live recorders by session ID.
type Manager struct {
	mu        sync.RWMutex
	recorders map[string]*LiveRecorder
}

// Sessions is the process-wide recorder registry used by the API layer.
var Sessions = &Manager{recorders: make(map[string]*LiveRecorder)}

func (m *Manager) StartRecording(sessionID, targetURL string, highlightElements bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.recorders[sessionID]; exists {
		return fmt.Errorf("recording session %s already exists", sessionID)
	}

	rec := NewLiveRecorder(sessionID)
	if err := rec.StartRecording(targetURL, highlightElements); err != nil {
		return err
	}
	m.recorders[sessionID] = rec
	return nil
}

func (m *Manager) StopRecording(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.recorders[sessionID]
	if !exists {
		return fmt.Errorf("recording session %s not found", sessionID)
	}
	// The session entry stays registered so the actions can still be saved.
	return rec.StopRecording()
}

func (m *Manager) GetRecorder(sessionID string) (*LiveRecorder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, exists := m.recorders[sessionID]
	return rec, exists
}

// Status returns the recording flag and captured actions for a session.
func (m *Manager) Status(sessionID string) (bool, []engine.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.recorders[sessionID]
	if !exists {
		return false, nil, fmt.Errorf("recording session %s not found", sessionID)
	}
	return rec.IsRecording(), rec.Actions(), nil
}

// Cleanup drops a finished session, force-stopping it if still live.
func (m *Manager) Cleanup(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, exists := m.recorders[sessionID]; exists {
		if rec.IsRecording() {
			_ = rec.StopRecording()
		}
		delete(m.recorders, sessionID)
	}
}

// ActiveSessions lists live sessions with their start times, for the
// stale-session sweeper.
func (m *Manager) ActiveSessions() map[string]time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time)
	for id, rec := range m.recorders {
		if rec.IsRecording() {
			out[id] = rec.startedAt
		}
	}
	return out
}
