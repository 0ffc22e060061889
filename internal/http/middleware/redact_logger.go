package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RedactOptions tunes RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names whose values are replaced entirely.
	// Authorization, Cookie, Set-Cookie and Idempotency-Key are always masked.
	MaskHeaders []string
	// MaskParams are extra query parameters whose values are replaced
	// entirely. key, token, api_key and email are always masked.
	MaskParams []string
}

// RedactingLogger is the production access log. Query values and request
// headers are logged after scrubbing: listed names are masked outright and
// emails, phone numbers, and UUIDs are replaced wherever they appear.
// Bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	s := newScrubber(opts)
	return accessLog(func(c *gin.Context, ev *zerolog.Event) {
		ev.Str("query", truncate(s.query(c.Request.URL.RawQuery), maxQueryLog)).
			Interface("headers", s.headers(c.Request.Header))
	})
}

const masked = "[REDACTED]"

var (
	// UUIDs go first so the phone pattern cannot eat their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\+?\d[\d .\-()]{7,}\d`)
)

type scrubber struct {
	maskHeaders map[string]struct{}
	maskParams  map[string]struct{}
}

func newScrubber(opts RedactOptions) *scrubber {
	s := &scrubber{
		maskHeaders: set("authorization", "cookie", "set-cookie", "idempotency-key"),
		maskParams:  set("key", "token", "api_key", "email"),
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.maskHeaders[h] = struct{}{}
		}
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			s.maskParams[p] = struct{}{}
		}
	}
	return s
}

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// text replaces identifiers in free text.
func (s *scrubber) text(v string) string {
	if v == "" {
		return v
	}
	v = uuidRE.ReplaceAllString(v, "[REDACTED:id]")
	v = emailRE.ReplaceAllString(v, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(v, "[REDACTED:phone]")
}

// query rebuilds raw with masked and scrubbed values. Keys are sorted; an
// unparsable query is scrubbed as plain text.
func (s *scrubber) query(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return s.text(raw)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range vals[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if _, ok := s.maskParams[strings.ToLower(k)]; ok {
				b.WriteString(masked)
			} else {
				b.WriteString(s.text(v))
			}
		}
	}
	return b.String()
}

func (s *scrubber) headers(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := s.maskHeaders[strings.ToLower(k)]; ok {
			out[k] = masked
			continue
		}
		out[k] = s.text(strings.Join(vv, ", "))
	}
	return out
}
