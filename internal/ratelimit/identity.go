package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIdentity is the shared bucket for requests with no usable origin.
const UnknownIdentity = "unknown"

// ClientIdentity derives the rate-limit key for r. Precedence: the first
// X-Forwarded-For entry, then X-Real-IP, then CF-Connecting-IP, then the
// connection's remote address. Requests with none of these share the
// "unknown" bucket.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	if ip := remoteIP(r.RemoteAddr); ip != "" {
		return ip
	}
	return UnknownIdentity
}

func remoteIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
