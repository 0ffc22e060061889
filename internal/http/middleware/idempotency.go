package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey names the client-chosen key of a write.
const HeaderIdempotencyKey = "Idempotency-Key"

// defaultKeyRE is a conservative token alphabet for keys.
var defaultKeyRE = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length; zero means 200.
	MaxLen int
	// Pattern overrides the accepted alphabet.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether an unexpired record exists for
// (clientID, scope, key) at now. TTL is the store's business.
type IdempotencyLookup func(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error)

// GetIdempotencyKey returns the validated key of the request, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the request repeats a write already completed
// under the same client, route and key.
func IsReplay(c *gin.Context) bool { return flag(c, ctxKeyIdemReplay) }

// IdempotencyValidator handles the Idempotency-Key header of writes.
//
// Reads ignore the header. A malformed key is rejected with 400. A key with
// a live record marks the request as a replay and exempts it from rate
// limiting; the handler decides what a replay returns. A failing lookup is
// logged and the request proceeds as new.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyRE
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || methodClass(c.Request.Method) == "read" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abort(c, http.StatusBadRequest, codeBadRequest, "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			exists, err := lookup(c.Request.Context(), ClientID(c), Scope(c), key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
			case exists:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
