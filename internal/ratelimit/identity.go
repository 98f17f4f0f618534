package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIdentity is returned when no address information is available at all.
const UnknownIdentity = "unknown"

// ClientIdentity derives a stable caller identity from connection metadata.
//
// Resolution order is fixed: first entry of X-Forwarded-For (comma-split,
// trimmed), then X-Real-IP, then the socket peer address, then "unknown".
// Do not reorder: the order controls spoofability. A caller controls
// X-Forwarded-For unless a trusted reverse proxy strips or rewrites it, so
// deployments without such a proxy should resolve with trustProxyHeaders
// false via PeerIdentity.
func ClientIdentity(r *http.Request) string {
	if r == nil {
		return UnknownIdentity
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	return PeerIdentity(r)
}

// PeerIdentity resolves the caller identity from the socket peer address
// only, ignoring proxy headers.
func PeerIdentity(r *http.Request) string {
	if r == nil {
		return UnknownIdentity
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return UnknownIdentity
}
