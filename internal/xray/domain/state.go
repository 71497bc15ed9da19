package domain

// StateKey is the logical key the persisted allowlist state lives under,
// shared by every execution context of the panel.
const StateKey = "analytics-xray-domain"

// StateVersion is the current schema version written by this build.
const StateVersion = 1

// State is the persisted shape of the allowlist configuration. It is the
// only structure that crosses the storage boundary.
type State struct {
	Version        int    `json:"version"`
	AllowedDomains []Rule `json:"allowedDomains"`
}

// EmptyState returns a fresh state at the current schema version. Used as
// the fallback when persisted state is missing or unreadable.
func EmptyState() State {
	return State{Version: StateVersion, AllowedDomains: []Rule{}}
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	return State{Version: s.Version, AllowedDomains: CloneRules(s.AllowedDomains)}
}
