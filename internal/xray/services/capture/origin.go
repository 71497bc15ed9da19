package capture

import (
	"net"
	"strings"

	"golang.org/x/net/idna"

	"github.com/agch-dev/analytics-x-ray/internal/xray/common/utils"
)

// NormalizeOrigin reduces an origin string as reported by the browser to a
// canonical domain. It tolerates a scheme, userinfo, port, path, and
// unicode labels; anything it cannot strip passes through canonicalized.
// Best-effort by the same contract as the engine: never errors.
func NormalizeOrigin(raw string) string {
	s := strings.TrimSpace(raw)

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
	}
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		s = s[:slash]
	}

	// Best-effort host:port split, works for bracketed IPv6 too.
	if strings.Contains(s, ":") {
		if h, _, err := net.SplitHostPort(s); err == nil {
			s = h
		}
	}

	// Punycode-encode unicode labels so stored rules compare in ASCII.
	if !isASCII(s) {
		if ascii, err := idna.Lookup.ToASCII(strings.ToLower(s)); err == nil {
			s = ascii
		}
	}

	return utils.CanonicalDomain(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
