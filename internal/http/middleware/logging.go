package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// maxQueryLog caps the logged raw query.
const maxQueryLog = 512

// inboundIDRE accepts client-supplied ids that are safe to echo and log.
var inboundIDRE = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// RequestID reuses a well-formed inbound X-Request-ID or generates a UUIDv4,
// then stores it in the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if !inboundIDRE.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// Logger is the development access log: it includes the raw query, user
// agent, and referer, which RedactingLogger leaves out or scrubs.
func Logger() gin.HandlerFunc {
	return accessLog(func(c *gin.Context, ev *zerolog.Event) {
		ev.Str("query", truncate(c.Request.URL.RawQuery, maxQueryLog)).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer())
	})
}

// accessLog attaches a request-scoped logger, runs the chain, and writes one
// "request" line. extra adds fields to that line.
//
// Level: error for 5xx or when handlers recorded gin errors, warn for other
// 4xx, debug for 304 revalidations, info otherwise.
func accessLog(extra func(*gin.Context, *zerolog.Event)) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		scoped := log.With().
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Logger()
		c.Set(ctxKeyLogger, &scoped)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			ev = scoped.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= http.StatusBadRequest:
			ev = scoped.Warn()
		case status == http.StatusNotModified:
			ev = scoped.Debug()
		default:
			ev = scoped.Info()
		}
		ev = ev.Str("client", ClientID(c)).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if ref := c.Param("ref"); ref != "" {
			ev = ev.Str("deal_ref", ref)
		}
		if IsReplay(c) {
			ev = ev.Bool("idempotent_replay", true)
		}
		if extra != nil {
			extra(c, ev)
		}
		ev.Msg("request")
	}
}

// Recovery turns a panic into a logged stack trace and, when nothing was
// written yet, the standard 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abort(c, http.StatusInternalServerError, codeInternal, "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when no
// access log middleware ran. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("request_id", requestID(c)).Logger()
	return &l
}

// truncate cuts s to n bytes and marks the cut. n <= 0 disables it.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
