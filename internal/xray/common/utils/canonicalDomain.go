package utils

import "strings"

// CanonicalDomain returns a domain in canonical form:
// - Trimmed of surrounding whitespace
// - Lowercased
// - No trailing dots
// - No leading "www." label (stripped once, not recursively)
//
// This is best-effort canonicalization, not validation: malformed input
// passes through trimmed and lowercased rather than producing an error.
func CanonicalDomain(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	name = strings.TrimPrefix(name, "www.")
	return name
}
