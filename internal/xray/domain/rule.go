package domain

// Rule represents a single allowlist entry.
//
// Notes:
// - Domain is expected to be canonical: lowercase, no scheme, no path,
//   no trailing dot, no "www." prefix (normalization handled elsewhere).
// - AllowSubdomains extends the rule to cover every subdomain of Domain.
type Rule struct {
	Domain          string `json:"domain"`
	AllowSubdomains bool   `json:"allowSubdomains"`
}

// CloneRules returns an independent copy of a rule slice. Rules are value
// types, so a shallow copy is a full copy.
func CloneRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}
