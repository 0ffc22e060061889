package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func TestCreateCategory_DuplicateNameAnyCase(t *testing.T) {
	db := newTestDB(t, &domain.Category{})
	ctx := context.Background()

	c, err := CreateCategory(ctx, db, "  Design ", nil)
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if c.ID == 0 || c.Name != "Design" || c.NameKey != "design" {
		t.Fatalf("unexpected category: %+v", c)
	}

	_, err = CreateCategory(ctx, db, "DESIGN", nil)
	if !IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUpsertCategory_ReturnsExisting(t *testing.T) {
	db := newTestDB(t, &domain.Category{})
	ctx := context.Background()

	desc := "Design tools"
	first, created, err := UpsertCategory(ctx, db, "Design", &desc)
	if err != nil || !created {
		t.Fatalf("first upsert = (%v, %v)", created, err)
	}

	again, created, err := UpsertCategory(ctx, db, "design", nil)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatalf("second upsert must not create")
	}
	if again.ID != first.ID || again.Name != "Design" || again.Description == nil || *again.Description != desc {
		t.Fatalf("expected existing row, got %+v", again)
	}

	n, _ := CountCategories(ctx, db)
	if n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
}

func TestGetCategoriesByIDs_PreservesOrder(t *testing.T) {
	db := newTestDB(t, &domain.Category{})
	ctx := context.Background()

	a, _ := CreateCategory(ctx, db, "A", nil)
	b, _ := CreateCategory(ctx, db, "B", nil)
	c, _ := CreateCategory(ctx, db, "C", nil)

	got, err := GetCategoriesByIDs(ctx, db, []uint{c.ID, 999, a.ID, b.ID})
	if err != nil {
		t.Fatalf("GetCategoriesByIDs: %v", err)
	}
	if len(got) != 3 || got[0].ID != c.ID || got[1].ID != a.ID || got[2].ID != b.ID {
		t.Fatalf("unexpected order: %+v", got)
	}

	empty, err := GetCategoriesByIDs(ctx, db, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("nil ids = (%v, %v)", empty, err)
	}
}

func TestDeleteCategory_LeavesDealsDangling(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	c, _ := CreateCategory(ctx, db, "Gone", nil)
	d := mustDeal(t, db, "Orphan", func(d *domain.Deal) { d.CategoryID = &c.ID })

	if err := DeleteCategory(ctx, db, c.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := DeleteCategory(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	got, err := GetDeal(ctx, db, d.ID)
	if err != nil {
		t.Fatalf("GetDeal: %v", err)
	}
	if got.CategoryID == nil || *got.CategoryID != c.ID {
		t.Fatalf("deal category id should be untouched, got %v", got.CategoryID)
	}
}

func TestListCategoriesPage(t *testing.T) {
	db := newTestDB(t, &domain.Category{})
	ctx := context.Background()
	for _, n := range []string{"delta", "Alpha", "charlie", "Bravo"} {
		if _, err := CreateCategory(ctx, db, n, nil); err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
	}

	all, err := ListCategories(ctx, db)
	if err != nil || len(all) != 4 {
		t.Fatalf("ListCategories = (%d, %v)", len(all), err)
	}

	page, err := ListCategoriesPage(ctx, db, 2, 2)
	if err != nil {
		t.Fatalf("ListCategoriesPage: %v", err)
	}
	if len(page) != 2 || page[0].Name != all[2].Name || page[1].Name != all[3].Name {
		t.Fatalf("unexpected page: %+v", page)
	}

	rnd, err := ListRandomCategories(ctx, db, 3)
	if err != nil || len(rnd) != 3 {
		t.Fatalf("ListRandomCategories = (%d, %v)", len(rnd), err)
	}
}

func TestFindCategoryBySlug_BothConventions(t *testing.T) {
	db := newTestDB(t, &domain.Category{})
	ctx := context.Background()
	sm, _ := CreateCategory(ctx, db, "Social Media", nil)

	for _, slug := range []string{"social-media", "socialmedia", "Social-Media"} {
		got, err := FindCategoryBySlug(ctx, db, slug)
		if err != nil {
			t.Fatalf("FindCategoryBySlug(%q): %v", slug, err)
		}
		if got.ID != sm.ID {
			t.Fatalf("FindCategoryBySlug(%q) = %d; want %d", slug, got.ID, sm.ID)
		}
	}

	for _, slug := range []string{"", "social", "media-social"} {
		if _, err := FindCategoryBySlug(ctx, db, slug); !errors.Is(err, ErrNotFound) {
			t.Fatalf("FindCategoryBySlug(%q): expected ErrNotFound, got %v", slug, err)
		}
	}
}
