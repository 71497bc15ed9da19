// Package allowlist implements the per-site capture allowlist engine.
//
// Every operation is a pure, total function over an explicit rule snapshot:
// no call mutates its input, returns an error, or panics, regardless of how
// malformed the domain string is. The owning store controller applies the
// returned collection and handles persistence.
package allowlist

import (
	"github.com/agch-dev/analytics-x-ray/internal/xray/common/utils"
	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

// normalizedEqual reports whether two domain strings share one canonical
// identity. Every comparison in this package routes through it so that
// case, whitespace, trailing dots and "www." variance behave identically
// across add, remove and match.
func normalizedEqual(a, b string) bool {
	return utils.CanonicalDomain(a) == utils.CanonicalDomain(b)
}

// IsAllowed reports whether the candidate domain is covered by any rule.
// An empty rule set allows nothing.
func IsAllowed(candidate string, rules []domain.Rule) bool {
	cn := utils.CanonicalDomain(candidate)
	base := utils.BaseDomain(cn)
	for _, r := range rules {
		rn := utils.CanonicalDomain(r.Domain)
		if rn == cn {
			return true
		}
		if r.AllowSubdomains && rn == base {
			return true
		}
	}
	return false
}

// Add inserts or updates a rule for the given domain and returns the new
// collection. When subdomain coverage is requested the rule is anchored at
// the base domain, so "track.example.com" with allowSubdomains stores
// "example.com". A rule whose canonical identity already exists is replaced
// in place, preserving its position; otherwise the rule is appended. The
// result never holds two rules with equal canonical domains.
func Add(rules []domain.Rule, name string, allowSubdomains bool) []domain.Rule {
	cn := utils.CanonicalDomain(name)
	if allowSubdomains {
		cn = utils.BaseDomain(cn)
	}
	out := domain.CloneRules(rules)
	for i, r := range out {
		if normalizedEqual(r.Domain, cn) {
			out[i] = domain.Rule{Domain: cn, AllowSubdomains: allowSubdomains}
			return out
		}
	}
	return append(out, domain.Rule{Domain: cn, AllowSubdomains: allowSubdomains})
}

// Remove drops every rule matching the given domain, either by raw value or
// by canonical identity, and returns the filtered collection. Unrelated
// rules that merely share a substring are kept.
func Remove(rules []domain.Rule, name string) []domain.Rule {
	cn := utils.CanonicalDomain(name)
	out := make([]domain.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Domain == name || normalizedEqual(r.Domain, cn) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// UpdateSubdomains sets the subdomain coverage flag on the rule whose Domain
// field matches exactly, without normalization, preserving its stored value
// and position. Returns the collection unchanged when no rule matches.
func UpdateSubdomains(rules []domain.Rule, name string, allowSubdomains bool) []domain.Rule {
	out := domain.CloneRules(rules)
	for i, r := range out {
		if r.Domain == name {
			out[i].AllowSubdomains = allowSubdomains
		}
	}
	return out
}

// AutoAllow decides the minimal mutation that makes the given domain
// allowed, without widening or duplicating existing configuration
// unnecessarily. Exactly one of four terminal outcomes applies:
//
//   - already_allowed: the domain is covered, nothing changes
//   - added:           no related rule exists; a new one is created,
//     anchored at the base domain with subdomain coverage when the
//     candidate is a subdomain
//   - updated:         a base-anchored rule exists without subdomain
//     coverage and the candidate is its subdomain; the rule is widened
//   - no_action:       a related rule exists but no safe mutation applies
//
// The result's IsAllowed always reflects actual membership in the returned
// collection, including on the no_action branch.
func AutoAllow(rules []domain.Rule, name string) ([]domain.Rule, domain.AutoAllowResult) {
	cn := utils.CanonicalDomain(name)

	if IsAllowed(name, rules) {
		return rules, domain.AutoAllowResult{
			Action:     domain.AutoAllowAlready,
			Domain:     cn,
			WasAllowed: true,
			IsAllowed:  true,
		}
	}

	base := utils.BaseDomain(cn)
	isSubdomain := cn != base

	found := -1
	for i, r := range rules {
		rn := utils.CanonicalDomain(r.Domain)
		if r.AllowSubdomains {
			if utils.BaseDomain(rn) == base {
				found = i
				break
			}
		} else if rn == cn || (isSubdomain && rn == base) {
			found = i
			break
		}
	}

	if found < 0 {
		target, wide := cn, false
		if isSubdomain {
			target, wide = base, true
		}
		out := Add(rules, target, wide)
		return out, domain.AutoAllowResult{
			Action:          domain.AutoAllowAdded,
			Domain:          target,
			AllowSubdomains: wide,
			IsAllowed:       IsAllowed(name, out),
		}
	}

	existing := rules[found]
	if isSubdomain && normalizedEqual(existing.Domain, base) && !existing.AllowSubdomains {
		out := Add(rules, base, true)
		return out, domain.AutoAllowResult{
			Action:          domain.AutoAllowUpdated,
			Domain:          base,
			AllowSubdomains: true,
			IsAllowed:       IsAllowed(name, out),
		}
	}

	// A related rule exists but widening it would not cover the candidate,
	// e.g. a subdomain-anchored rule with coverage enabled on a sibling.
	return rules, domain.AutoAllowResult{
		Action:          domain.AutoAllowNoAction,
		Domain:          cn,
		AllowSubdomains: existing.AllowSubdomains,
		IsAllowed:       IsAllowed(name, rules),
	}
}
