// Package capture implements the event capture pipeline: every observed
// analytics event is gated by the allowlist before it is recorded for
// display. Decisions are cached per canonical origin, and origins seen for
// the first time are surfaced once so the UI can offer to allow them.
package capture

import (
	"github.com/agch-dev/analytics-x-ray/internal/xray/common/log"
	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Gate        Gatekeeper    // required
	Cache       DecisionCache // required
	Seen        SeenFilter    // required
	Buffer      *EventBuffer  // required
	Logger      log.Logger    // optional, defaults to noop
	OnNewOrigin func(string)  // optional, invoked once per unknown origin
}

// Pipeline gates and records captured events.
type Pipeline struct {
	gate        Gatekeeper
	cache       DecisionCache
	seen        SeenFilter
	buffer      *EventBuffer
	logger      log.Logger
	onNewOrigin func(string)
}

// NewPipeline constructs a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Pipeline{
		gate:        opts.Gate,
		cache:       opts.Cache,
		seen:        opts.Seen,
		buffer:      opts.Buffer,
		logger:      logger,
		onNewOrigin: opts.OnNewOrigin,
	}
}

// Observe gates one event. Allowed events are recorded in the buffer and
// Observe returns true. Events from origins that are not allowed are
// dropped; the first time such an origin appears this session, it is
// reported through OnNewOrigin.
func (p *Pipeline) Observe(e domain.Event) bool {
	origin := NormalizeOrigin(e.Origin)
	if origin == "" {
		p.logger.Debug(map[string]any{"origin": e.Origin}, "dropping event with empty origin")
		return false
	}
	e.Origin = origin

	if p.decide(origin) {
		p.buffer.Push(e)
		return true
	}

	if !p.seen.Seen([]byte(origin)) {
		p.seen.Mark([]byte(origin))
		p.logger.Info(map[string]any{"origin": origin}, "event from origin not on allowlist")
		if p.onNewOrigin != nil {
			p.onNewOrigin(origin)
		}
	}
	return false
}

// Grant allows capture for the origin via the auto-allow protocol, called
// when the user opts in. The decision cache is purged on any mutation so
// stale denials cannot linger.
func (p *Pipeline) Grant(origin string) domain.AutoAllowResult {
	res := p.gate.AutoAllowDomain(NormalizeOrigin(origin))
	if res.Action == domain.AutoAllowAdded || res.Action == domain.AutoAllowUpdated {
		p.cache.Purge()
	}
	return res
}

// InvalidateDecisions purges the decision cache. Wire it as a store
// subscriber so every rule change, including external replacements,
// invalidates cached answers.
func (p *Pipeline) InvalidateDecisions() {
	p.cache.Purge()
}

// Events returns the recorded events, oldest first.
func (p *Pipeline) Events() []domain.Event {
	return p.buffer.Snapshot()
}

// decide answers "is this canonical origin allowed" through the cache.
func (p *Pipeline) decide(origin string) bool {
	if allowed, ok := p.cache.Get(origin); ok {
		return allowed
	}
	allowed := p.gate.IsAllowed(origin)
	p.cache.Put(origin, allowed)
	return allowed
}
