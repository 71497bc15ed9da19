package capture

import (
	"fmt"
	"testing"
	"time"

	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

func testEvent(name string) domain.Event {
	return domain.Event{
		Provider:   "ga4",
		Name:       name,
		Origin:     "example.com",
		ObservedAt: time.Now(),
	}
}

func TestEventBufferPushAndSnapshot(t *testing.T) {
	b := NewEventBuffer(4)
	if b.Len() != 0 {
		t.Fatalf("new buffer Len = %d, want 0", b.Len())
	}

	b.Push(testEvent("a"))
	b.Push(testEvent("b"))

	snap := b.Snapshot()
	if len(snap) != 2 || snap[0].Name != "a" || snap[1].Name != "b" {
		t.Errorf("snapshot = %v, want [a b]", names(snap))
	}
}

func TestEventBufferEvictsOldest(t *testing.T) {
	b := NewEventBuffer(3)
	for i := 0; i < 5; i++ {
		b.Push(testEvent(fmt.Sprintf("e%d", i)))
	}

	snap := b.Snapshot()
	want := []string{"e2", "e3", "e4"}
	if len(snap) != 3 {
		t.Fatalf("Len = %d, want 3", len(snap))
	}
	for i, w := range want {
		if snap[i].Name != w {
			t.Errorf("snapshot[%d] = %q, want %q", i, snap[i].Name, w)
		}
	}
	if b.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", b.Dropped())
	}
}

func TestEventBufferClear(t *testing.T) {
	b := NewEventBuffer(2)
	b.Push(testEvent("a"))
	b.Push(testEvent("b"))
	b.Push(testEvent("c"))

	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", b.Len())
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped after Clear = %d, want 1 (counter preserved)", b.Dropped())
	}

	b.Push(testEvent("d"))
	snap := b.Snapshot()
	if len(snap) != 1 || snap[0].Name != "d" {
		t.Errorf("snapshot after Clear+Push = %v, want [d]", names(snap))
	}
}

func TestEventBufferClampsCapacity(t *testing.T) {
	b := NewEventBuffer(0)
	b.Push(testEvent("a"))
	b.Push(testEvent("b"))
	snap := b.Snapshot()
	if len(snap) != 1 || snap[0].Name != "b" {
		t.Errorf("snapshot = %v, want [b]", names(snap))
	}
}

func names(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Name
	}
	return out
}
