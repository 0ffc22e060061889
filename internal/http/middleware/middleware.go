// Package middleware contains the Gin middleware of the deals API.
//
// The chain installed by the router is, in order:
//
//   - RequestID:            correlation id in X-Request-ID
//   - Logger/RedactingLogger: one structured access line per request and a
//     request-scoped zerolog.Logger (see LoggerFrom)
//   - Recovery:             panics become the standard 500 envelope
//   - Metrics:              Prometheus traffic metrics plus deal engagement
//     counters (CountDealEvent)
//   - IdempotencyValidator: Idempotency-Key validation and replay detection
//   - RateLimiter:          per-client token buckets, reads and writes apart
//   - SecurityHeaders:      hardening and cache policy for JSON responses
//
// Every middleware that rejects a request writes the same envelope the
// handlers use: {"request_id", "code", "message"}.
//
// The API has no accounts. A caller is identified by its IP (ClientID) and an
// operation by its registered route (Scope); both key rate-limit buckets and
// idempotency records.
package middleware

import (
	"github.com/gin-gonic/gin"
)

// Gin context keys.
const (
	ctxKeyRequestID  = "requestID"
	ctxKeyLogger     = "logger"
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// Error codes written by middleware. They match the handlers' codes.
const (
	codeBadRequest  = "bad_request"
	codeRateLimited = "rate_limited"
	codeInternal    = "internal_error"
)

// abort stops the chain with the standard error envelope.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": requestID(c),
		"code":       code,
		"message":    msg,
	})
}

// requestID is the correlation id set by RequestID, or "" without it.
func requestID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.Writer.Header().Get(HeaderRequestID)
}

func flag(c *gin.Context, key string) bool {
	v, ok := c.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// routeLabel is the bounded route name used for metrics and logs: the
// registered pattern, or "unmatched" when no route matched so 404 probes do
// not create one series per URL.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// ClientID identifies the caller for idempotency scoping and rate limiting:
// the client IP as resolved by gin (trusted proxies honoured).
func ClientID(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	return c.ClientIP()
}

// Scope is the idempotency scope of a request: the registered route, or the
// raw path when no route matched.
func Scope(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	if c.Request != nil && c.Request.URL != nil {
		return c.Request.URL.Path
	}
	return ""
}
