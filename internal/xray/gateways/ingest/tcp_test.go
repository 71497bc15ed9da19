package ingest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/agch-dev/analytics-x-ray/internal/xray/common/clock"
	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

type collectingSink struct {
	mu     sync.Mutex
	events []domain.Event
	seen   chan struct{}
}

func newCollectingSink() *collectingSink {
	return &collectingSink{seen: make(chan struct{}, 16)}
}

func (s *collectingSink) Observe(e domain.Event) bool {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	s.seen <- struct{}{}
	return true
}

func (s *collectingSink) snapshot() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func startServer(t *testing.T, sink EventSink) (*TCPServer, context.CancelFunc) {
	t.Helper()
	clk := &clock.MockClock{CurrentTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	srv := NewTCPServer("127.0.0.1:0", sink, clk, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	// wait for the listener to bind
	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "127.0.0.1:0" {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancel")
		}
	})
	return srv, cancel
}

func waitEvents(t *testing.T, sink *collectingSink, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-sink.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func TestTCPServer_IngestsEvents(t *testing.T) {
	sink := newCollectingSink()
	srv, _ := startServer(t, sink)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	lines := "{\"provider\":\"ga4\",\"name\":\"page_view\",\"origin\":\"https://example.com\"}\n" +
		"{\"provider\":\"segment\",\"name\":\"identify\",\"origin\":\"app.example.org\"}\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitEvents(t, sink, 2)
	events := sink.snapshot()
	if events[0].Provider != "ga4" || events[0].Name != "page_view" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[0].Origin != "https://example.com" {
		t.Errorf("origin should pass through raw, got %q", events[0].Origin)
	}
	if events[1].Provider != "segment" {
		t.Errorf("second event = %+v", events[1])
	}
	if events[0].ObservedAt.IsZero() {
		t.Error("event not timestamped")
	}
}

func TestTCPServer_DropsGarbageLines(t *testing.T) {
	sink := newCollectingSink()
	srv, _ := startServer(t, sink)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	lines := "this is not json\n" +
		"{\"name\":\"no_origin\"}\n" +
		"{\"provider\":\"ga4\",\"name\":\"ok\",\"origin\":\"example.com\"}\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitEvents(t, sink, 1)
	events := sink.snapshot()
	if len(events) != 1 || events[0].Name != "ok" {
		t.Errorf("expected only the valid event, got %+v", events)
	}
}

func TestTCPServer_MultipleConnections(t *testing.T) {
	sink := newCollectingSink()
	srv, _ := startServer(t, sink)

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", srv.Addr())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		if _, err := conn.Write([]byte("{\"provider\":\"ga4\",\"name\":\"e\",\"origin\":\"example.com\"}\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		conn.Close()
	}

	waitEvents(t, sink, 3)
}
