// Package services defines the business logic for deals, categories, the
// contextual like ledger, related-deal ranking, analytics, and ingestion.
// This file centralizes the service-level error taxonomy so that service
// methods fail consistently and callers can branch on the kind of failure.
//
// Every failure the services produce on purpose is an *Error carrying a Kind.
// Callers match kinds with errors.Is against the sentinels below:
//
//	if errors.Is(err, services.ErrNotFound) { ... }
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/go-deals-backend/internal/repo"
)

// Kind classifies a service failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
)

// Error is a classified service failure. Op names the operation
// (e.g. "deals.Create"), Msg is safe to show to API clients, and Err is the
// underlying cause when there is one.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) true for any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is matching. They carry only a Kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrStoreUnavailable = &Error{Kind: KindUnavailable}
)

// KindOf returns the Kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the client-safe message carried by err, if any.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}

func validationErr(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErr(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

// translate classifies a raw store error. Missing rows become NotFound with
// the given subject, unique violations become Conflict, and lock/busy/closed
// conditions become StoreUnavailable. Anything else is returned wrapped with
// op but unclassified.
func translate(op, what string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found", Err: err}
	case repo.IsDuplicate(err):
		return &Error{Kind: KindConflict, Op: op, Msg: what + " already exists", Err: err}
	case isUnavailable(err):
		return &Error{Kind: KindUnavailable, Op: op, Msg: "store unavailable", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	low := strings.ToLower(err.Error())
	for _, s := range []string{
		"database is locked",
		"database is busy",
		"sqlite_busy",
		"sql: database is closed",
		"connection refused",
		"bad connection",
		"too many clients",
	} {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}
