package domain

import (
	"fmt"
	"strings"
)

// AutoAllowAction identifies the mutation an auto-allow decision performed.
//
// added           - a new rule was appended
// updated         - an existing rule was widened to cover subdomains
// already_allowed - the domain was covered before the call, nothing changed
// no_action       - a related rule exists but no safe mutation applies
type AutoAllowAction uint8

const (
	AutoAllowAdded AutoAllowAction = iota
	AutoAllowUpdated
	AutoAllowAlready
	AutoAllowNoAction
)

// String returns a stable string representation of the action.
func (a AutoAllowAction) String() string {
	switch a {
	case AutoAllowAdded:
		return "added"
	case AutoAllowUpdated:
		return "updated"
	case AutoAllowAlready:
		return "already_allowed"
	case AutoAllowNoAction:
		return "no_action"
	default:
		return fmt.Sprintf("AutoAllowAction(%d)", a)
	}
}

// ParseAutoAllowAction converts a string into an AutoAllowAction.
// Accepts the String() forms, case-insensitive.
func ParseAutoAllowAction(s string) (AutoAllowAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "added":
		return AutoAllowAdded, nil
	case "updated":
		return AutoAllowUpdated, nil
	case "already_allowed":
		return AutoAllowAlready, nil
	case "no_action":
		return AutoAllowNoAction, nil
	default:
		return 0, fmt.Errorf("unsupported AutoAllowAction: %q", s)
	}
}

// AutoAllowResult describes what an auto-allow call did. It is a transient
// return value for logging and UX feedback, never persisted.
type AutoAllowResult struct {
	Action          AutoAllowAction
	Domain          string // the canonical domain the decision acted on
	AllowSubdomains bool   // the resulting subdomain coverage of that domain
	WasAllowed      bool   // membership before the call
	IsAllowed       bool   // membership after the call
}
