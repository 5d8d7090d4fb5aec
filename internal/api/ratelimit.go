package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/ratelimit"
)

// RateLimiter limits requests per client IP.
type RateLimiter = ratelimit.KeyedRateLimiter

// rateLimited is a per-operation middleware for the credential endpoints.
// Returns 429 Too Many Requests when the client's bucket is empty.
func (s *Server) rateLimited(ctx huma.Context, next func(huma.Context)) {
	key := getClientIP(ctx.RemoteAddr(), ctx.Header)

	if !s.authRateLimiter.Allow(key) {
		s.logger.Warn("Rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		ctx.SetHeader("Retry-After", domainerrors.RetryAfterRateLimited)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests, please try again later")
		return
	}

	next(ctx)
}

// getClientIP extracts the client IP.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to the remote address.
func getClientIP(remoteAddr string, header func(string) string) string {
	// First entry of X-Forwarded-For is the client.
	if xff := header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := header("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
