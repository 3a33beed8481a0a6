package tenant

import (
	"net"
	"strings"
)

// NormalizeHost lowercases a Host header value and removes the :port suffix
// and any trailing dot.  IPv6 literals keep their brackets.
func NormalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, _, err := net.SplitHostPort(h); err == nil {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		h = host
	}
	return strings.TrimSuffix(h, ".")
}
