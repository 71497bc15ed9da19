package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

type fakePersistence struct {
	mu        sync.Mutex
	loadState domain.State
	loadOK    bool
	loadErr   error
	saveErr   error
	saved     []domain.State
	closed    bool
}

func (f *fakePersistence) Load() (domain.State, bool, error) {
	return f.loadState, f.loadOK, f.loadErr
}

func (f *fakePersistence) Save(st domain.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, st.Clone())
	return f.saveErr
}

func (f *fakePersistence) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePersistence) savedStates() []domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.State, len(f.saved))
	copy(out, f.saved)
	return out
}

type fakeWatcher struct {
	ch chan ChangeEvent
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{ch: make(chan ChangeEvent, 4)}
}

func (w *fakeWatcher) Events() <-chan ChangeEvent { return w.ch }
func (w *fakeWatcher) Close() error               { close(w.ch); return nil }

func TestNew_LoadsPersistedState(t *testing.T) {
	p := &fakePersistence{
		loadState: domain.State{
			Version:        1,
			AllowedDomains: []domain.Rule{{Domain: "example.com", AllowSubdomains: true}},
		},
		loadOK: true,
	}
	c := New(Options{Persistence: p})
	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "example.com", rules[0].Domain)
	assert.True(t, c.IsAllowed("track.example.com"))
}

func TestNew_MissingStateStartsEmpty(t *testing.T) {
	c := New(Options{Persistence: &fakePersistence{}})
	assert.Empty(t, c.Rules())
	assert.False(t, c.IsAllowed("example.com"))
}

func TestNew_CorruptStateFallsBackEmpty(t *testing.T) {
	p := &fakePersistence{loadErr: errors.New("unexpected end of JSON input")}
	c := New(Options{Persistence: p})
	assert.Empty(t, c.Rules())
}

func TestAddRemoveRoundTrip(t *testing.T) {
	p := &fakePersistence{}
	c := New(Options{Persistence: p})

	c.AddAllowedDomain("www.Example.com", false)
	assert.True(t, c.IsAllowed("example.com"))

	c.RemoveAllowedDomain("example.com")
	assert.False(t, c.IsAllowed("example.com"))

	c.Flush()
	saved := p.savedStates()
	require.Len(t, saved, 2)
	require.Len(t, saved[0].AllowedDomains, 1)
	assert.Equal(t, "example.com", saved[0].AllowedDomains[0].Domain)
	assert.Empty(t, saved[1].AllowedDomains)
}

func TestClearAllAllowedDomains(t *testing.T) {
	p := &fakePersistence{}
	c := New(Options{Persistence: p})
	c.AddAllowedDomain("example.com", false)
	c.AddAllowedDomain("example.org", true)

	c.ClearAllAllowedDomains()
	assert.Empty(t, c.Rules())
	assert.False(t, c.IsAllowed("example.com"))
}

func TestUpdateDomainSubdomainSetting(t *testing.T) {
	c := New(Options{Persistence: &fakePersistence{}})
	c.AddAllowedDomain("example.com", false)

	c.UpdateDomainSubdomainSetting("example.com", true)
	assert.True(t, c.IsAllowed("track.example.com"))

	// exact-field semantics: a www variant must not match
	c.UpdateDomainSubdomainSetting("www.example.com", false)
	assert.True(t, c.IsAllowed("track.example.com"))
}

func TestAutoAllowDomain_PersistsOnlyMutations(t *testing.T) {
	p := &fakePersistence{}
	c := New(Options{Persistence: p})

	res := c.AutoAllowDomain("track.example.com")
	assert.Equal(t, domain.AutoAllowAdded, res.Action)
	assert.True(t, res.IsAllowed)

	res = c.AutoAllowDomain("track.example.com")
	assert.Equal(t, domain.AutoAllowAlready, res.Action)

	c.Flush()
	assert.Len(t, p.savedStates(), 1, "already_allowed must not schedule a save")
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	p := &fakePersistence{saveErr: errors.New("disk full")}
	c := New(Options{Persistence: p})

	c.AddAllowedDomain("example.com", false)
	c.Flush()

	// in-memory state remains the source of truth
	assert.True(t, c.IsAllowed("example.com"))
}

func TestSubscribeNotifiedOnMutation(t *testing.T) {
	c := New(Options{Persistence: &fakePersistence{}})
	var calls int
	c.Subscribe(func() { calls++ })

	c.AddAllowedDomain("example.com", false)
	c.RemoveAllowedDomain("example.com")
	_ = c.AutoAllowDomain("example.org")
	_ = c.AutoAllowDomain("example.org") // already allowed, no notify

	assert.Equal(t, 3, calls)
}

func TestApplyExternal_ReplacesWholesale(t *testing.T) {
	c := New(Options{Persistence: &fakePersistence{}})
	c.AddAllowedDomain("old.com", false)

	payload := []byte(`{"version":1,"allowedDomains":[{"domain":"new.com","allowSubdomains":true}]}`)
	c.applyExternal(ChangeEvent{Key: domain.StateKey, NewValue: payload})

	rules := c.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "new.com", rules[0].Domain)
	assert.True(t, c.IsAllowed("a.new.com"))
	assert.False(t, c.IsAllowed("old.com"))
}

func TestApplyExternal_MalformedPayloadKeepsState(t *testing.T) {
	c := New(Options{Persistence: &fakePersistence{}})
	c.AddAllowedDomain("example.com", false)

	c.applyExternal(ChangeEvent{Key: domain.StateKey, NewValue: []byte(`{"version":`)})
	c.applyExternal(ChangeEvent{Key: domain.StateKey, NewValue: []byte(`{"unrelated":true}`)})
	c.applyExternal(ChangeEvent{Key: "some-other-key", NewValue: []byte(`{"version":1,"allowedDomains":[]}`)})

	assert.True(t, c.IsAllowed("example.com"), "bad payloads must leave last-known-good state intact")
}

func TestWatchAppliesEvents(t *testing.T) {
	c := New(Options{Persistence: &fakePersistence{}})
	w := newFakeWatcher()

	notified := make(chan struct{}, 1)
	c.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, w)
		close(done)
	}()

	w.ch <- ChangeEvent{
		Key:      domain.StateKey,
		NewValue: []byte(`{"version":1,"allowedDomains":[{"domain":"pushed.com","allowSubdomains":false}]}`),
	}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher-driven notification")
	}
	assert.True(t, c.IsAllowed("pushed.com"))

	_ = w.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after watcher close")
	}
}

func TestCloseFlushesAndClosesPersistence(t *testing.T) {
	p := &fakePersistence{}
	c := New(Options{Persistence: p})
	c.AddAllowedDomain("example.com", false)

	require.NoError(t, c.Close())
	assert.True(t, p.closed)
	assert.Len(t, p.savedStates(), 1)
}
