package services

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/repo"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := validationErr("deals.Create", "software_name is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("validation must not match ErrNotFound")
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if MessageOf(err) != "software_name is required" {
		t.Fatalf("MessageOf = %q", MessageOf(err))
	}
	if got := err.Error(); got != "deals.Create: software_name is required" {
		t.Fatalf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrValidation) || KindOf(wrapped) != KindValidation {
		t.Fatalf("wrapped error lost its kind")
	}
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		in   error
		kind Kind
	}{
		{"not found", gorm.ErrRecordNotFound, KindNotFound},
		{"duplicate", repo.ErrDuplicate, KindConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: categories.name_key"), KindConflict},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), KindUnavailable},
		{"closed", errors.New("sql: database is closed"), KindUnavailable},
		{"other", errors.New("syntax error"), ""},
	}
	for _, tc := range cases {
		got := translate("op", "deal", tc.in)
		if KindOf(got) != tc.kind {
			t.Fatalf("%s: kind = %q; want %q", tc.name, KindOf(got), tc.kind)
		}
		if !errors.Is(got, tc.in) {
			t.Fatalf("%s: cause not preserved", tc.name)
		}
	}

	if translate("op", "deal", nil) != nil {
		t.Fatalf("nil in, nil out")
	}
	already := notFoundErr("a", "deal")
	if translate("b", "category", already) != already {
		t.Fatalf("classified errors pass through")
	}
}
