package utils

import "strings"

// BaseDomain reduces a domain to its last two labels, the anchor for
// subdomain-wide rules: "a.b.example.com" -> "example.com". Domains with
// two or fewer labels are returned unchanged after canonicalization.
//
// This is a deliberate two-label heuristic. It does not consult the public
// suffix list, so multi-label suffixes like "co.uk" reduce incorrectly
// ("shop.example.co.uk" -> "co.uk"). That behavior is part of the contract
// the stored rules depend on; changing it would orphan existing anchors.
func BaseDomain(name string) string {
	name = CanonicalDomain(name)
	labels := strings.Split(name, ".")
	if len(labels) <= 2 {
		return name
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
