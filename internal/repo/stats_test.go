package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func mustDeal(t *testing.T, db *gorm.DB, name string, mutate ...func(*domain.Deal)) *domain.Deal {
	t.Helper()
	d := &domain.Deal{SoftwareName: name, Discount: "10% OFF", IsActive: true}
	for _, fn := range mutate {
		fn(d)
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seed deal %q: %v", name, err)
	}
	return d
}

func TestDealsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := DealsStats(context.Background(), db)
	if err == nil {
		t.Fatalf("expected error due to missing deals table")
	}
}

func TestDealsStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Deal{})
	count, maxAt, err := DealsStats(context.Background(), db)
	if err != nil {
		t.Fatalf("DealsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestDealsStats_Success_Max(t *testing.T) {
	db := newTestDB(t, &domain.Deal{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max
	t3 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{t1, t2, t3} {
		ts := ts
		mustDeal(t, db, fmt.Sprintf("deal-%d", i), func(d *domain.Deal) {
			d.CreatedAt, d.UpdatedAt = ts, ts
		})
	}

	count, maxAt, err := DealsStats(context.Background(), db)
	if err != nil {
		t.Fatalf("DealsStats error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxUpdatedAt %v, got %v", t2, maxAt)
	}
}

// Force the second query (SELECT updated_at ...) to fail by renaming the column.
func TestDealsStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newTestDB(t, &domain.Deal{})
	mustDeal(t, db, "x")

	if err := db.Exec(`ALTER TABLE deals RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}

	_, _, err := DealsStats(context.Background(), db)
	if err == nil {
		t.Fatalf("expected error from latest-updated select after column rename")
	}
}

func TestCatalogStats(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	mustDeal(t, db, "A", func(d *domain.Deal) { d.Likes, d.Clicks = 3, 10 })
	mustDeal(t, db, "B", func(d *domain.Deal) { d.Likes, d.Clicks = 2, 1 })
	off := mustDeal(t, db, "C")
	if err := db.Model(off).UpdateColumn("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := CreateCategory(ctx, db, "Design", nil); err != nil {
		t.Fatalf("category: %v", err)
	}
	if _, err := IncrementRelatedLike(ctx, db, 1, 2); err != nil {
		t.Fatalf("related like: %v", err)
	}
	if _, err := IncrementRelatedLike(ctx, db, 1, 2); err != nil {
		t.Fatalf("related like: %v", err)
	}

	got, err := CatalogStats(ctx, db)
	if err != nil {
		t.Fatalf("CatalogStats: %v", err)
	}
	want := CatalogTotals{Deals: 3, ActiveDeals: 2, Categories: 1, Likes: 5, Clicks: 11, RelatedLikes: 2}
	if got != want {
		t.Fatalf("CatalogStats = %+v; want %+v", got, want)
	}
}

func TestDealCounters(t *testing.T) {
	db := newTestDB(t, &domain.Deal{})
	ctx := context.Background()

	if l, c, err := DealCounters(ctx, db); err != nil || l != 0 || c != 0 {
		t.Fatalf("empty DealCounters = %d, %d, %v", l, c, err)
	}
	mustDeal(t, db, "A", func(d *domain.Deal) { d.Likes = 2; d.Clicks = 5 })
	mustDeal(t, db, "B", func(d *domain.Deal) { d.Likes = 1 })
	if l, c, err := DealCounters(ctx, db); err != nil || l != 3 || c != 5 {
		t.Fatalf("DealCounters = %d, %d, %v", l, c, err)
	}
}
