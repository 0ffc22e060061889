package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func strp(s string) *string { return &s }

func TestCreateAndGetDeal_Defaults(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	d := &domain.Deal{SoftwareName: "Notion", Discount: "20% OFF"}
	if err := CreateDeal(ctx, db, d); err != nil {
		t.Fatalf("CreateDeal: %v", err)
	}
	got, err := GetDeal(ctx, db, d.ID)
	if err != nil {
		t.Fatalf("GetDeal: %v", err)
	}
	if !got.IsActive || got.Likes != 0 || got.Clicks != 0 || got.Categories != "" {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}

	if _, err := GetDeal(ctx, db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDealColumns(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := mustDeal(t, db, "Canva", func(d *domain.Deal) {
		d.CouponCode = strp("SAVE")
		d.CreatedAt, d.UpdatedAt = old, old
	})

	err := UpdateDealColumns(ctx, db, d.ID, map[string]any{
		"discount":    "50% OFF",
		"coupon_code": nil,
	})
	if err != nil {
		t.Fatalf("UpdateDealColumns: %v", err)
	}
	got, _ := GetDeal(ctx, db, d.ID)
	if got.Discount != "50% OFF" || got.CouponCode != nil {
		t.Fatalf("columns not written: %+v", got)
	}
	if !got.UpdatedAt.After(old) {
		t.Fatalf("updated_at not refreshed: %v", got.UpdatedAt)
	}

	if err := UpdateDealColumns(ctx, db, 999, map[string]any{"discount": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDeal_KeepsLedgerAndAnalytics(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	src := mustDeal(t, db, "Source")
	rel := mustDeal(t, db, "Related")
	if err := ReplaceDealCategories(ctx, db, rel.ID, nil, []uint{4, 5}); err != nil {
		t.Fatalf("ReplaceDealCategories: %v", err)
	}
	if _, err := IncrementRelatedLike(ctx, db, src.ID, rel.ID); err != nil {
		t.Fatalf("IncrementRelatedLike: %v", err)
	}
	if err := RecordAnalyticsEvent(ctx, db, &domain.AnalyticsEvent{DealID: rel.ID, Action: domain.ActionView}); err != nil {
		t.Fatalf("RecordAnalyticsEvent: %v", err)
	}

	if err := DeleteDeal(ctx, db, rel.ID); err != nil {
		t.Fatalf("DeleteDeal: %v", err)
	}
	if err := DeleteDeal(ctx, db, rel.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	ids, _ := ListSecondaryCategoryIDs(ctx, db, rel.ID)
	if len(ids) != 0 {
		t.Fatalf("join rows should be removed, got %v", ids)
	}
	if n, _ := GetRelatedLikes(ctx, db, src.ID, rel.ID); n != 1 {
		t.Fatalf("ledger row should survive, got %d", n)
	}
	var events int64
	db.Model(&domain.AnalyticsEvent{}).Count(&events)
	if events != 1 {
		t.Fatalf("analytics should survive, got %d", events)
	}
}

func TestFindDealBySlug(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	first := mustDeal(t, db, "Task Magic")
	mustDeal(t, db, "Task  Magic") // same slug, later id
	stored := mustDeal(t, db, "Other Name", func(d *domain.Deal) { d.SoftwareNameSlug = strp("legacy-slug") })

	got, err := FindDealBySlug(ctx, db, "task-magic")
	if err != nil || got.ID != first.ID {
		t.Fatalf("FindDealBySlug(task-magic) = (%v, %v); want id %d", got, err, first.ID)
	}
	got, err = FindDealBySlug(ctx, db, "legacy-slug")
	if err != nil || got.ID != stored.ID {
		t.Fatalf("FindDealBySlug(legacy-slug) = (%v, %v); want id %d", got, err, stored.ID)
	}
	monday := mustDeal(t, db, "Monday.com")
	for _, s := range []string{"mondaycom", "monday.com", "Monday.com"} {
		got, err = FindDealBySlug(ctx, db, s)
		if err != nil || got.ID != monday.ID {
			t.Fatalf("FindDealBySlug(%q) = (%v, %v); want id %d", s, got, err, monday.ID)
		}
	}
	for _, s := range []string{"", "task", "nope", "monday-com"} {
		if _, err := FindDealBySlug(ctx, db, s); !errors.Is(err, ErrNotFound) {
			t.Fatalf("FindDealBySlug(%q): expected ErrNotFound, got %v", s, err)
		}
	}
}

func TestFindDealByFuzzyName(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	d := mustDeal(t, db, "Task Magic Pro")

	for _, term := range []string{"taskmagic", "magicpro", "pro"} {
		got, err := FindDealByFuzzyName(ctx, db, term)
		if err != nil || got.ID != d.ID {
			t.Fatalf("FindDealByFuzzyName(%q) = (%v, %v)", term, got, err)
		}
	}
	if _, err := FindDealByFuzzyName(ctx, db, "canva"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := FindDealByFuzzyName(ctx, db, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty term: expected ErrNotFound, got %v", err)
	}
}

func TestCounters(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := mustDeal(t, db, "Counter", func(d *domain.Deal) { d.CreatedAt, d.UpdatedAt = old, old })

	if err := IncrementDealLikes(ctx, db, d.ID); err != nil {
		t.Fatalf("IncrementDealLikes: %v", err)
	}
	if err := IncrementDealClicks(ctx, db, d.ID); err != nil {
		t.Fatalf("IncrementDealClicks: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := DecrementDealLikes(ctx, db, d.ID); err != nil {
			t.Fatalf("DecrementDealLikes: %v", err)
		}
	}
	got, _ := GetDeal(ctx, db, d.ID)
	if got.Likes != 0 || got.Clicks != 1 {
		t.Fatalf("likes=%d clicks=%d; want 0, 1", got.Likes, got.Clicks)
	}
	if !got.UpdatedAt.Equal(old) {
		t.Fatalf("counters must not touch updated_at: %v", got.UpdatedAt)
	}

	if err := IncrementDealLikes(ctx, db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDeals_Sorting(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := mustDeal(t, db, "A", func(d *domain.Deal) { d.Likes, d.CreatedAt = 5, base })
	b := mustDeal(t, db, "B", func(d *domain.Deal) { d.Likes, d.CreatedAt = 5, base.Add(time.Hour) })
	c := mustDeal(t, db, "C", func(d *domain.Deal) { d.Likes, d.CreatedAt = 9, base.Add(-time.Hour) })

	recent, err := ListDeals(ctx, db, SortRecent, 0)
	if err != nil {
		t.Fatalf("ListDeals recent: %v", err)
	}
	if len(recent) != 3 || recent[0].ID != b.ID || recent[1].ID != a.ID || recent[2].ID != c.ID {
		t.Fatalf("recent order wrong: %v", dealIDs(recent))
	}

	liked, err := ListDeals(ctx, db, SortLikes, 2)
	if err != nil {
		t.Fatalf("ListDeals likes: %v", err)
	}
	// Ties on likes break by id descending.
	if len(liked) != 2 || liked[0].ID != c.ID || liked[1].ID != b.ID {
		t.Fatalf("likes order wrong: %v", dealIDs(liked))
	}
}

func TestSearchDeals(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	design, _ := CreateCategory(ctx, db, "Design", nil)
	writing, _ := CreateCategory(ctx, db, "Writing", nil)
	mustDeal(t, db, "Figma", func(d *domain.Deal) { d.CategoryID = &design.ID })
	mustDeal(t, db, "Canva Pro", func(d *domain.Deal) { d.CategoryID = &design.ID })
	mustDeal(t, db, "Grammarly Pro", func(d *domain.Deal) { d.CategoryID = &writing.ID })

	byTerm, err := SearchDeals(ctx, db, "Pro", "", 12)
	if err != nil {
		t.Fatalf("SearchDeals term: %v", err)
	}
	if len(byTerm) != 2 || byTerm[0].SoftwareName != "Canva Pro" || byTerm[1].SoftwareName != "Grammarly Pro" {
		t.Fatalf("term search: %v", dealNames(byTerm))
	}
	// Name matching keeps case.
	if lower, _ := SearchDeals(ctx, db, "pro", "", 12); len(lower) != 0 {
		t.Fatalf("lowercase term matched: %v", dealNames(lower))
	}

	byCat, err := SearchDeals(ctx, db, "", "desi", 12)
	if err != nil {
		t.Fatalf("SearchDeals category: %v", err)
	}
	if len(byCat) != 2 || byCat[0].SoftwareName != "Canva Pro" || byCat[1].SoftwareName != "Figma" {
		t.Fatalf("category search: %v", dealNames(byCat))
	}

	both, err := SearchDeals(ctx, db, "Pro", "design", 12)
	if err != nil || len(both) != 1 || both[0].SoftwareName != "Canva Pro" {
		t.Fatalf("combined search = (%v, %v)", dealNames(both), err)
	}

	limited, _ := SearchDeals(ctx, db, "", "", 1)
	if len(limited) != 1 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestSearchDeals_WildcardsAreLiteral(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	tools, _ := CreateCategory(ctx, db, "Dev_Tools", nil)
	design, _ := CreateCategory(ctx, db, "Design", nil)
	mustDeal(t, db, "Save 50% Bundle", func(d *domain.Deal) { d.CategoryID = &tools.ID })
	mustDeal(t, db, "Sketch", func(d *domain.Deal) { d.CategoryID = &design.ID })

	cases := []struct {
		term, category string
		want           []string
	}{
		{"50%", "", []string{"Save 50% Bundle"}},
		{"%", "", []string{"Save 50% Bundle"}},
		{"_", "", nil},
		{"", "v_t", []string{"Save 50% Bundle"}},
		{"", "_", []string{"Save 50% Bundle"}},
		{"", "%", nil},
		{"", "D_sign", nil},
	}
	for _, tc := range cases {
		got, err := SearchDeals(ctx, db, tc.term, tc.category, 12)
		if err != nil {
			t.Fatalf("SearchDeals(%q, %q): %v", tc.term, tc.category, err)
		}
		names := dealNames(got)
		if len(names) != len(tc.want) {
			t.Fatalf("SearchDeals(%q, %q) = %v, want %v", tc.term, tc.category, names, tc.want)
		}
		for i := range names {
			if names[i] != tc.want[i] {
				t.Fatalf("SearchDeals(%q, %q) = %v, want %v", tc.term, tc.category, names, tc.want)
			}
		}
	}
}

func TestListDealsByCategory(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	cat, _ := CreateCategory(ctx, db, "Tools", nil)
	mustDeal(t, db, "Zed", func(d *domain.Deal) { d.CategoryID = &cat.ID })
	mustDeal(t, db, "Atom", func(d *domain.Deal) { d.CategoryID = &cat.ID })
	mustDeal(t, db, "Elsewhere")

	got, err := ListDealsByCategory(ctx, db, cat.ID, 0)
	if err != nil {
		t.Fatalf("ListDealsByCategory: %v", err)
	}
	if len(got) != 2 || got[0].SoftwareName != "Atom" || got[1].SoftwareName != "Zed" {
		t.Fatalf("unexpected: %v", dealNames(got))
	}
}

func TestReplaceDealCategories(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	d := mustDeal(t, db, "Multi")
	primary := uint(7)
	if err := ReplaceDealCategories(ctx, db, d.ID, &primary, []uint{3, 1, 2}); err != nil {
		t.Fatalf("ReplaceDealCategories: %v", err)
	}
	if err := ReplaceDealCategories(ctx, db, d.ID, &primary, []uint{2, 9}); err != nil {
		t.Fatalf("ReplaceDealCategories (again): %v", err)
	}

	got, _ := GetDeal(ctx, db, d.ID)
	if got.CategoryID == nil || *got.CategoryID != 7 || got.Categories != "2,9" {
		t.Fatalf("deal not updated: %+v", got)
	}
	ids, err := ListSecondaryCategoryIDs(ctx, db, d.ID)
	if err != nil || len(ids) != 2 || ids[0] != 2 || ids[1] != 9 {
		t.Fatalf("secondary ids = (%v, %v)", ids, err)
	}

	if err := ReplaceDealCategories(ctx, db, 999, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func dealIDs(ds []domain.Deal) []uint {
	out := make([]uint, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func dealNames(ds []domain.Deal) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.SoftwareName
	}
	return out
}
