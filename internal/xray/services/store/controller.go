// Package store holds the state container that owns the allowlist rule
// collection. All mutation goes through the controller, which serializes
// calls, delegates the decisions to the pure allowlist engine, schedules
// best-effort persistence, and fans change notifications out to
// subscribers (the UI layer and the capture pipeline's decision cache).
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/agch-dev/analytics-x-ray/internal/xray/common/log"
	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
	"github.com/agch-dev/analytics-x-ray/internal/xray/services/allowlist"
)

// Options configures a Controller.
type Options struct {
	Persistence Persistence // required
	Logger      log.Logger  // optional, defaults to noop
}

// Controller owns the in-memory rule collection for the lifetime of the
// process. The persisted copy is rehydrated once at construction; after
// that the in-memory collection is the source of truth for reads.
type Controller struct {
	mu      sync.RWMutex
	rules   []domain.Rule
	version int

	persist Persistence
	logger  log.Logger

	subMu sync.Mutex
	subs  []func()

	saves sync.WaitGroup
}

// New constructs a Controller and loads persisted state. Missing or
// unreadable state falls back to an empty collection so initialization
// never blocks on a corrupt store.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	c := &Controller{
		persist: opts.Persistence,
		logger:  logger,
		version: domain.StateVersion,
	}

	st, ok, err := opts.Persistence.Load()
	switch {
	case err != nil:
		logger.Warn(map[string]any{"error": err.Error()}, "failed to load persisted state, starting empty")
		c.rules = []domain.Rule{}
	case !ok:
		logger.Debug(nil, "no persisted state found, starting empty")
		c.rules = []domain.Rule{}
	default:
		c.rules = domain.CloneRules(st.AllowedDomains)
		if c.rules == nil {
			c.rules = []domain.Rule{}
		}
		c.version = st.Version
		logger.Info(map[string]any{"rules": len(c.rules), "version": st.Version}, "allowlist state loaded")
	}
	return c
}

// Rules returns a snapshot of the current rule collection.
func (c *Controller) Rules() []domain.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.CloneRules(c.rules)
}

// IsAllowed reports whether the domain is covered by the current rules.
func (c *Controller) IsAllowed(name string) bool {
	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()
	return allowlist.IsAllowed(name, rules)
}

// AddAllowedDomain inserts or updates a rule for the domain.
func (c *Controller) AddAllowedDomain(name string, allowSubdomains bool) {
	c.mutate(func(rules []domain.Rule) []domain.Rule {
		return allowlist.Add(rules, name, allowSubdomains)
	})
}

// RemoveAllowedDomain drops every rule matching the domain.
func (c *Controller) RemoveAllowedDomain(name string) {
	c.mutate(func(rules []domain.Rule) []domain.Rule {
		return allowlist.Remove(rules, name)
	})
}

// UpdateDomainSubdomainSetting flips subdomain coverage on the rule whose
// stored Domain matches exactly.
func (c *Controller) UpdateDomainSubdomainSetting(name string, allowSubdomains bool) {
	c.mutate(func(rules []domain.Rule) []domain.Rule {
		return allowlist.UpdateSubdomains(rules, name, allowSubdomains)
	})
}

// ClearAllAllowedDomains removes every rule.
func (c *Controller) ClearAllAllowedDomains() {
	c.mutate(func([]domain.Rule) []domain.Rule {
		return []domain.Rule{}
	})
}

// AutoAllowDomain runs the auto-allow decision protocol for the domain and
// returns what it decided. Mutating outcomes are persisted and announced.
func (c *Controller) AutoAllowDomain(name string) domain.AutoAllowResult {
	c.mu.Lock()
	next, res := allowlist.AutoAllow(c.rules, name)
	mutated := res.Action == domain.AutoAllowAdded || res.Action == domain.AutoAllowUpdated
	if mutated {
		c.rules = next
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug(map[string]any{
		"domain": res.Domain,
		"action": res.Action.String(),
	}, "auto-allow decision")

	if mutated {
		c.persistAsync(snapshot)
		c.notify()
	}
	return res
}

// Subscribe registers a callback invoked after every change to the rule
// collection, including external replacements. Callbacks run synchronously
// on the mutating call and must not call back into the controller.
func (c *Controller) Subscribe(fn func()) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

// Watch consumes external change notifications until ctx is done or the
// watcher channel closes. Intended to run in its own goroutine.
func (c *Controller) Watch(ctx context.Context, w Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-w.Events():
			if !open {
				return
			}
			c.applyExternal(ev)
		}
	}
}

// Flush blocks until all scheduled persistence writes have finished.
func (c *Controller) Flush() {
	c.saves.Wait()
}

// Close flushes pending writes and releases the persistence adapter.
func (c *Controller) Close() error {
	c.Flush()
	return c.persist.Close()
}

// applyExternal replaces the in-memory collection with state written by
// another context. A payload that does not parse as state is logged and
// dropped, leaving the last-known-good collection intact.
func (c *Controller) applyExternal(ev ChangeEvent) {
	if ev.Key != domain.StateKey {
		return
	}
	if !gjson.ValidBytes(ev.NewValue) || !gjson.GetBytes(ev.NewValue, "allowedDomains").Exists() {
		c.logger.Warn(map[string]any{"key": ev.Key}, "ignoring malformed external state change")
		return
	}
	var st domain.State
	if err := json.Unmarshal(ev.NewValue, &st); err != nil {
		c.logger.Warn(map[string]any{"key": ev.Key, "error": err.Error()}, "ignoring undecodable external state change")
		return
	}

	c.mu.Lock()
	c.rules = domain.CloneRules(st.AllowedDomains)
	if c.rules == nil {
		c.rules = []domain.Rule{}
	}
	c.version = st.Version
	c.mu.Unlock()

	c.logger.Info(map[string]any{"rules": len(st.AllowedDomains)}, "allowlist replaced from external change")
	c.notify()
}

// mutate applies an engine operation under the write lock, then schedules
// persistence and notifies subscribers.
func (c *Controller) mutate(op func([]domain.Rule) []domain.Rule) {
	c.mu.Lock()
	c.rules = op(c.rules)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.persistAsync(snapshot)
	c.notify()
}

func (c *Controller) snapshotLocked() domain.State {
	return domain.State{Version: c.version, AllowedDomains: domain.CloneRules(c.rules)}
}

// persistAsync saves the snapshot off the caller's goroutine. Persistence
// is best-effort: failures are logged, the in-memory collection stays the
// source of truth.
func (c *Controller) persistAsync(st domain.State) {
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		if err := c.persist.Save(st); err != nil {
			c.logger.Error(map[string]any{"error": err.Error()}, "failed to persist allowlist state")
		}
	}()
}

func (c *Controller) notify() {
	c.subMu.Lock()
	subs := make([]func(), len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
