package middleware

import (
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() honour X-Forwarded-For only when the
// direct peer is inside one of trustedCIDRs. c.RealIP() feeds request
// logs, the recorded login address and the login limiter key. The reports
// limiter keys on ratelimit.ClientIdentity and is not affected.
//
// With no valid CIDRs the peer address is used as-is.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	var opts []echo.TrustOption
	for _, cidr := range trustedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy CIDR", slog.String("cidr", cidr))
			continue
		}
		opts = append(opts, echo.TrustIPRange(network))
	}

	if len(opts) == 0 {
		e.IPExtractor = echo.ExtractIPDirect()
		return
	}

	// Only the listed ranges are trusted, not every private network.
	opts = append(opts,
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	)
	e.IPExtractor = echo.ExtractIPFromXFFHeader(opts...)
}
