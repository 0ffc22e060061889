// Package repo is the GORM persistence layer of the deals backend: opening
// SQLite or Postgres, schema migration and seeding, and one file of query
// helpers per table. Helpers take the *gorm.DB explicitly so callers can pass
// a transaction.
package repo

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-deals-backend/internal/config"
	"github.com/tbourn/go-deals-backend/internal/domain"
)

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// pool sizes per driver. SQLite serialises writers anyway, so a small pool
// only bounds reader concurrency.
type pool struct {
	open, idle int
}

var (
	sqlitePool   = pool{open: 10, idle: 10}
	postgresPool = pool{open: 20, idle: 10}
)

// Open connects to the configured database and installs the OpenTelemetry
// tracing plugin so every query becomes a span under the request's trace.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		db, err = OpenSQLite(cfg.Path)
	case "postgres":
		db, err = OpenPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("repo: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("repo: tracing plugin: %w", err)
	}
	return db, nil
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must exist; SQLite's own error for a missing one is unhelpful.
func OpenSQLite(path string) (*gorm.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("repo: sqlite directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, tune(db, sqlitePool)
}

// sqliteDSN appends the pragma parameters to path.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// OpenPostgres connects with a DSN or postgres:// URL. TranslateError makes
// unique violations surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return db, tune(db, postgresPool)
}

func tune(db *gorm.DB, p pool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.open)
	sqlDB.SetMaxIdleConns(p.idle)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return nil
}

// AutoMigrate creates missing tables and adds missing columns and indexes.
// Existing columns and rows are never dropped, so a database created by an
// older build (e.g. without deals.likes) is upgraded in place.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Category{},
		&domain.Deal{},
		&domain.DealCategory{},
		&domain.RelatedDealLike{},
		&domain.AnalyticsEvent{},
		&domain.IngestRun{},
		&domain.Idempotency{},
	)
}

// MigrateLegacyCategories converts deals whose secondary categories exist
// only as comma-joined text into deal_categories rows. Tokens that are not
// positive integers, repeat an earlier token, or equal the primary category
// are skipped; at most maxSecondary rows are written per deal. Deals that
// already have join rows are left untouched. It returns the number of deals
// converted.
func MigrateLegacyCategories(ctx context.Context, db *gorm.DB, maxSecondary int) (int, error) {
	var deals []domain.Deal
	err := db.WithContext(ctx).
		Select("id", "category_id", "categories").
		Where("categories <> ''").
		Where("NOT EXISTS (SELECT 1 FROM deal_categories dc WHERE dc.deal_id = deals.id)").
		Order("id ASC").
		Find(&deals).Error
	if err != nil {
		return 0, err
	}

	converted := 0
	for _, d := range deals {
		ids := ParseCategoryList(d.Categories, d.CategoryID, maxSecondary)
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := replaceSecondaryRows(tx, d.ID, ids); err != nil {
				return err
			}
			return tx.Model(&domain.Deal{}).Where("id = ?", d.ID).
				UpdateColumn("categories", JoinCategoryList(ids)).Error
		})
		if err != nil {
			return converted, err
		}
		converted++
	}
	return converted, nil
}

// ParseCategoryList parses a comma-joined id list, dropping invalid tokens,
// duplicates, and the primary id, keeping at most max entries (max <= 0
// means unbounded).
func ParseCategoryList(s string, primary *uint, max int) []uint {
	seen := make(map[uint]struct{})
	out := make([]uint, 0, 4)
	for _, tok := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 64)
		if err != nil || n == 0 {
			continue
		}
		id := uint(n)
		if primary != nil && id == *primary {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// JoinCategoryList renders ids as the comma-joined text projection.
func JoinCategoryList(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// DefaultCategories is the category set installed by Seed.
var DefaultCategories = []struct {
	Name        string
	Description string
}{
	{"Automation", "Workflow automation and productivity tools"},
	{"Productivity", "Tools to enhance productivity and organization"},
	{"Design", "Graphic design and creative software"},
	{"Writing", "Writing assistance and content creation tools"},
	{"Software", "General software applications"},
	{"Tools", "Utility and development tools"},
	{"Services", "Online services and platforms"},
	{"Marketing", "Marketing and advertising tools"},
	{"Development", "Programming and development software"},
	{"Business", "Business management and enterprise tools"},
}

// Seed inserts DefaultCategories, ignoring names that already exist.
func Seed(ctx context.Context, db *gorm.DB) error {
	now := time.Now().UTC()
	rows := make([]domain.Category, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		desc := c.Description
		rows = append(rows, domain.Category{
			Name:        c.Name,
			NameKey:     CategoryKey(c.Name),
			Description: &desc,
			CreatedAt:   now,
		})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
