package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when the request carries no usable address.
const Unknown = "unknown"

// RealClientIP returns the canonical client IP from r.RemoteAddr, used as the
// key for per-client rate limits. chi's RealIP middleware rewrites RemoteAddr
// upstream when the server sits behind a trusted proxy.
// IPv4-mapped IPv6 addresses collapse to their IPv4 form.
func RealClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if addr == "" {
		return Unknown
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
