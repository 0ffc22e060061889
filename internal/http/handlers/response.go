// Package handlers implements the deals API endpoints.
//
// Every failure is written as ErrorResponse with a stable code from errors.go;
// successes are plain JSON documents (a deal, a page of deals, a likes count).
// Handlers never build envelopes by hand: they call fail/failErr for errors,
// ok/noContent for successes and notModified for conditional reads.
//
//	HTTP/1.1 404 Not Found
//	{"request_id":"0b6f…","code":"not_found","message":"deal not found"}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
)

// HeaderReplayed marks a write answered from its earlier outcome because the
// Idempotency-Key was already used.
const HeaderReplayed = "Idempotency-Replayed"

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client report to server logs.
	RequestID string `json:"request_id,omitempty" example:"0b6f5c1e-8d1a-4a77-9b1e-0f3f2a7c1d42"`
	// Machine-readable; see the ErrCode constants.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"deal not found"`
}

// fail stops the chain with the envelope. Server-side failures are also
// logged, since the client only sees a generic message.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(middleware.HeaderRequestID),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router write envelopes for NoRoute and NoMethod.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// notModified sets etag on the response and answers 304 when the client's
// If-None-Match already holds it. It reports whether the request is done.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm == "" || inm != etag {
		return false
	}
	c.Status(http.StatusNotModified)
	return true
}

// replayed answers an idempotent replay with the current state.
func replayed(c *gin.Context, body any) {
	middleware.CountDealEvent(middleware.EventReplay)
	c.Header(HeaderReplayed, "true")
	ok(c, http.StatusOK, body)
}
