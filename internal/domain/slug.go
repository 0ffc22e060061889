package domain

import (
	"strings"
	"unicode"
)

// Slugify derives the URL slug of a display name:
//
//  1. lowercase and trim
//  2. replace each run of whitespace with a single '-'
//  3. drop every character outside [a-z0-9-]
//  4. collapse repeated '-' and strip leading/trailing '-'
//
// Lookups by slug compare against this exact output, so it must stay stable.
func Slugify(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		inSpace = false
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}

	return collapseHyphens(b.String())
}

// LegacySlug is the older slug form that kept punctuation: spaces trimmed
// and turned into '-', one pass of "--" to "-", lowercased
// ("Monday.com" gives "monday.com").
func LegacySlug(name string) string {
	s := strings.ReplaceAll(strings.Trim(name, " "), " ", "-")
	return strings.ToLower(strings.ReplaceAll(s, "--", "-"))
}

// CompactSlug is the separator-free slug form: lowercase with every
// character outside [a-z0-9] removed ("Canva Pro" → "canvapro").
func CompactSlug(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// URLSlug is the looser form used for generated referral links: lowercase,
// every run of characters outside [a-z0-9] becomes one '-', trimmed.
func URLSlug(name string) string {
	s := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			sep = false
			continue
		}
		if !sep {
			b.WriteByte('-')
			sep = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func collapseHyphens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '-' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}
