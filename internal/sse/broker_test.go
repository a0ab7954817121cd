package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "document.converted", Data: map[string]string{"path": "Locations/lair.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.converted") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"Locations/lair.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func collectEvents(ch chan []byte, window time.Duration) []string {
	var out []string
	deadline := time.After(window)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
}

func TestPublishRun_ReloadThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Two completed runs back to back: both summaries arrive, but only the
	// first triggers a reload within the throttle window.
	b.PublishRun(3, 0)
	b.PublishRun(1, 1)

	events := collectEvents(ch, 300*time.Millisecond)

	runs, reloads := 0, 0
	for _, e := range events {
		if strings.Contains(e, "event: run.completed") {
			runs++
		}
		if strings.Contains(e, "event: vault.reload") {
			reloads++
		}
	}
	if runs != 2 {
		t.Errorf("run.completed = %d, want 2", runs)
	}
	if reloads != 1 {
		t.Errorf("vault.reload = %d, want 1", reloads)
	}
}

func TestClose_ReleasesClients(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}

	// Operations after Close are safe no-ops.
	b.Publish(Event{Type: "x"})
	b.PublishRun(0, 0)
	if b.ClientCount() != 0 {
		t.Error("client count after close")
	}
}

func TestServeHTTP_StreamsEvents(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.ServeHTTP(rec, req)
	}()

	// Wait for the handler to subscribe, then publish.
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.Publish(Event{Type: "run.completed", Data: map[string]int{"converted": 1}})

	// Let the handler drain the event before shutting the request down.
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "event: run.completed") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
