// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Category
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - Missing rows surface as gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - Constraint violations and connectivity errors are returned raw.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CategoryKey is the case-insensitive identity of a category name.
func CategoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateCategory inserts a category. A duplicate name (in any case) fails
// with the driver's unique-constraint error.
func CreateCategory(ctx context.Context, db *gorm.DB, name string, description *string) (*domain.Category, error) {
	c := &domain.Category{
		Name:        strings.TrimSpace(name),
		NameKey:     CategoryKey(name),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// UpsertCategory returns the category whose name matches name
// case-insensitively, inserting it with description when absent.
//
// The insert is an INSERT ... ON CONFLICT (name_key) DO NOTHING followed by
// a read of the winning row, so concurrent callers converge on one row.
// created reports whether this call inserted it.
func UpsertCategory(ctx context.Context, db *gorm.DB, name string, description *string) (cat *domain.Category, created bool, err error) {
	c := &domain.Category{
		Name:        strings.TrimSpace(name),
		NameKey:     CategoryKey(name),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name_key"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return nil, false, res.Error
	}

	var out domain.Category
	if err := db.WithContext(ctx).Where("name_key = ?", c.NameKey).First(&out).Error; err != nil {
		return nil, false, err
	}
	return &out, res.RowsAffected > 0 && out.ID == c.ID, nil
}

// GetCategory fetches a category by id.
func GetCategory(ctx context.Context, db *gorm.DB, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategoriesByIDs returns the categories with the given ids, in the order
// of ids. Ids without a row are skipped.
func GetCategoriesByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Category, error) {
	if len(ids) == 0 {
		return []domain.Category{}, nil
	}
	var rows []domain.Category
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Category, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]domain.Category, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteCategory removes a category row. Deals referencing it keep their
// (now dangling) category ids.
func DeleteCategory(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// CountCategories returns the number of categories.
func CountCategories(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Category{}).Count(&n).Error
	return n, err
}

// ListCategoriesPage returns a page of categories ordered by name.
func ListCategoriesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRandomCategories returns up to n categories in random order.
func ListRandomCategories(ctx context.Context, db *gorm.DB, n int) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).
		Order("RANDOM()").
		Limit(n).
		Find(&out).Error
	return out, err
}

// FindCategoryBySlug returns the first category, by id, whose name matches
// slug in either convention: the hyphenated slug ("social-media") or the
// separator-free form ("socialmedia").
func FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	want := strings.ToLower(strings.TrimSpace(slug))
	compact := domain.CompactSlug(want)
	if want == "" {
		return nil, gorm.ErrRecordNotFound
	}

	rows, err := db.WithContext(ctx).Model(&domain.Category{}).Order("id ASC").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Category
		if err := db.ScanRows(rows, &c); err != nil {
			return nil, err
		}
		if domain.Slugify(c.Name) == want || (compact != "" && domain.CompactSlug(c.Name) == compact) {
			return &c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, gorm.ErrRecordNotFound
}
