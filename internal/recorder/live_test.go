package recorder

import (
	"sync"
	"testing"

	"pageflow/backend/internal/engine"
	"pageflow/backend/internal/memdom"
)

// The engine emits while the poll goroutine holds r.mu; the API goroutine
// attaches and replaces websocket subscribers at the same time. The run must
// neither race on the subscriber field nor deadlock.
func TestWebSocketAttachDuringEmission(t *testing.T) {
	target := memdom.NewNode("button", engine.Attr{Name: "id", Value: "go"})
	body := memdom.NewNode("body").Append(target)
	doc := memdom.NewDocument(memdom.NewNode("html").Append(body), "https://shop.example/")

	r := NewLiveRecorder("test-session")
	r.engine = engine.New(doc, r.relayAction, engine.Options{})
	r.engine.Start(false)
	defer r.engine.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.SetWebSocketConnection(nil)
		}
	}()

	for i := 0; i < 200; i++ {
		// process() holds the recorder lock while the engine emits.
		r.mu.Lock()
		r.engine.Handle(engine.Event{Kind: engine.EventClick, Target: target})
		r.mu.Unlock()
	}
	wg.Wait()
}
