package repo

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbourn/go-deals-backend/internal/config"
	"github.com/tbourn/go-deals-backend/internal/domain"
)

var allModels = []any{
	&domain.Category{},
	&domain.Deal{},
	&domain.DealCategory{},
	&domain.RelatedDealLike{},
	&domain.AnalyticsEvent{},
	&domain.IngestRun{},
	&domain.Idempotency{},
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "deals.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenSQLite(%q) = (%v, %v), want a not-exist error", bad, db, err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	got := sqliteDSN("deals.db")
	if !strings.HasPrefix(got, "deals.db?_pragma=") || strings.Count(got, "_pragma=") != len(sqlitePragmas) {
		t.Fatalf("sqliteDSN = %q", got)
	}
	if got := sqliteDSN("file:x?mode=memory"); !strings.HasPrefix(got, "file:x?mode=memory&_pragma=") {
		t.Fatalf("existing query not extended: %q", got)
	}
}

// Pragmas must hold on every pooled connection, not just the first.
func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := Open(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "deals.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if sqlDB.Stats().MaxOpenConnections != sqlitePool.open {
		t.Fatalf("MaxOpenConnections = %d", sqlDB.Stats().MaxOpenConnections)
	}

	ctx := context.Background()
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := sqlDB.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		defer c.Close()
		conns[i] = c
	}
	for i, c := range conns {
		var mode string
		var fk, busy int
		if err := c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatal(err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatal(err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy); err != nil {
			t.Fatal(err)
		}
		if strings.ToLower(mode) != "wal" || fk != 1 || busy != 5000 {
			t.Fatalf("conn %d: journal_mode=%s foreign_keys=%d busy_timeout=%d", i, mode, fk, busy)
		}
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range allModels {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("table for %T missing", m)
		}
	}
	d := &domain.Deal{SoftwareName: "Notion", Discount: "20% OFF"}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("insert deal: %v", err)
	}
	if n, err := CountDeals(ctx, db); err != nil || n != 1 {
		t.Fatalf("CountDeals = (%d, %v)", n, err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DBConfig{Driver: "mysql"}); err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("err = %v", err)
	}
}

func TestAutoMigrate_AddsColumnsToLegacyTable(t *testing.T) {
	db := newTestDB(t)
	// A deals table from before likes/slug/categories existed.
	if err := db.Exec(`CREATE TABLE deals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		software_name TEXT NOT NULL,
		discount TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME)`).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if err := db.Exec(`INSERT INTO deals (software_name, discount, created_at, updated_at)
		VALUES ('Legacy', '10% OFF', '2024-01-01 00:00:00', '2024-01-01 00:00:00')`).Error; err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, col := range []string{"likes", "software_name_slug", "categories", "clicks"} {
		if !db.Migrator().HasColumn(&domain.Deal{}, col) {
			t.Fatalf("expected column %q after migrate", col)
		}
	}

	var d domain.Deal
	if err := db.First(&d).Error; err != nil {
		t.Fatalf("read legacy row: %v", err)
	}
	if d.SoftwareName != "Legacy" || d.Likes != 0 {
		t.Fatalf("legacy row not preserved: %+v", d)
	}
}

func TestParseCategoryList(t *testing.T) {
	primary := uint(2)
	got := ParseCategoryList(" 3, x,2,3,0,-1, 5,7,9 ", &primary, 3)
	want := []uint{3, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("ParseCategoryList = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseCategoryList = %v; want %v", got, want)
		}
	}
	if got := ParseCategoryList("", nil, 5); len(got) != 0 {
		t.Fatalf("empty input should yield nothing, got %v", got)
	}
	if s := JoinCategoryList([]uint{4, 1, 9}); s != "4,1,9" {
		t.Fatalf("JoinCategoryList = %q", s)
	}
	if s := JoinCategoryList(nil); s != "" {
		t.Fatalf("JoinCategoryList(nil) = %q", s)
	}
}

func TestMigrateLegacyCategories(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	primary := uint(1)
	legacy := &domain.Deal{SoftwareName: "Legacy", Discount: "10% OFF", CategoryID: &primary, Categories: "2,1,bogus,3,2"}
	if err := db.Create(legacy).Error; err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	// Already converted: must be left alone.
	done := &domain.Deal{SoftwareName: "Done", Discount: "5% OFF", Categories: "8"}
	if err := db.Create(done).Error; err != nil {
		t.Fatalf("seed done: %v", err)
	}
	if err := db.Create(&domain.DealCategory{DealID: done.ID, CategoryID: 8}).Error; err != nil {
		t.Fatalf("seed join row: %v", err)
	}

	n, err := MigrateLegacyCategories(ctx, db, 5)
	if err != nil || n != 1 {
		t.Fatalf("MigrateLegacyCategories = (%d, %v); want (1, nil)", n, err)
	}

	ids, err := ListSecondaryCategoryIDs(ctx, db, legacy.ID)
	if err != nil {
		t.Fatalf("ListSecondaryCategoryIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("secondary ids = %v; want [2 3]", ids)
	}
	got, _ := GetDeal(ctx, db, legacy.ID)
	if got.Categories != "2,3" {
		t.Fatalf("categories projection = %q; want 2,3", got.Categories)
	}

	// Second pass is a no-op.
	if n, err := MigrateLegacyCategories(ctx, db, 5); err != nil || n != 0 {
		t.Fatalf("second pass = (%d, %v); want (0, nil)", n, err)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	if err := Seed(ctx, db); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("Seed (again): %v", err)
	}
	n, err := CountCategories(ctx, db)
	if err != nil || n != int64(len(DefaultCategories)) {
		t.Fatalf("CountCategories = (%d, %v); want %d", n, err, len(DefaultCategories))
	}
}

