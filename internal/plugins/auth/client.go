package auth

import (
	"net/netip"
	"strings"
	"unicode/utf8"
)

// maxUserAgentLen matches the user_agent column width.
const maxUserAgentLen = 512

// NormalizeIP returns the canonical text form of raw, or "" when raw is not
// an IP address. IPv4-mapped IPv6 addresses collapse to IPv4 and zones are
// dropped, so the result always fits a VARCHAR(45) column.
func NormalizeIP(raw string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}

// truncate cuts s to at most limit bytes without splitting a UTF-8
// sequence. Invalid sequences are dropped first.
func truncate(s string, limit int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
