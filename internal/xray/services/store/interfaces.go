package store

import "github.com/agch-dev/analytics-x-ray/internal/xray/domain"

// Persistence abstracts the durable state adapter. Save is called
// fire-and-forget after each mutation; failures are logged by the
// controller and never surfaced to engine callers.
type Persistence interface {
	// Load returns the persisted state. ok is false when nothing has been
	// stored yet, which is not an error.
	Load() (state domain.State, ok bool, err error)
	Save(state domain.State) error
	Close() error
}

// ChangeEvent notifies the controller that another execution context
// rewrote the persisted state under the given logical key. NewValue holds
// the raw serialized payload.
type ChangeEvent struct {
	Key      string
	NewValue []byte
}

// Watcher is an external push channel delivering ChangeEvents. The
// controller replaces its in-memory collection wholesale on each event.
type Watcher interface {
	Events() <-chan ChangeEvent
	Close() error
}
