// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package), and failErr, which maps the
// services error taxonomy onto a status and code:
//
//	validation   -> 400 bad_request
//	not_found    -> 404 not_found
//	conflict     -> 409 conflict
//	unavailable  -> 503 unavailable
//	anything else -> 500 internal_error
//
// Codes are lowercase snake_case. Clients branch on the code, not the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "category already exists"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failErr writes the envelope for a service error.
func failErr(c *gin.Context, err error) {
	switch services.KindOf(err) {
	case services.KindValidation:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.MessageOf(err))
	case services.KindNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.MessageOf(err))
	case services.KindConflict:
		fail(c, http.StatusConflict, ErrCodeConflict, services.MessageOf(err))
	case services.KindUnavailable:
		c.Header("Retry-After", "1")
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "store temporarily unavailable")
	default:
		// Log the cause; never echo internals to the client.
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
