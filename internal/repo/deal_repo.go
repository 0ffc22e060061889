// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Deal model
// and its secondary-category association.
//
// Functions:
//
//   - CreateDeal / GetDeal / UpdateDealColumns / DeleteDeal: row CRUD.
//   - FindDealBySlug: first deal, by id, whose derived slug matches.
//   - FindDealByFuzzyName: ingestion lookup on the separator-free name.
//   - IncrementDealClicks / IncrementDealLikes / DecrementDealLikes:
//     single-statement counter mutations (likes never drop below 0).
//   - ListDeals / SearchDeals / ListDealsByCategory: read models.
//   - ReplaceDealCategories / ListSecondaryCategoryIDs: the association.
//
// Counter mutations use UpdateColumn so they do not bump updated_at.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// Deal list orderings.
const (
	SortRecent = "recent"
	SortLikes  = "likes"
)

// CreateDeal inserts d and fills in its id and timestamps.
func CreateDeal(ctx context.Context, db *gorm.DB, d *domain.Deal) error {
	return db.WithContext(ctx).Create(d).Error
}

// GetDeal fetches a deal by id.
func GetDeal(ctx context.Context, db *gorm.DB, id uint) (*domain.Deal, error) {
	var d domain.Deal
	if err := db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDealColumns writes the given column values (nil values become NULL)
// and refreshes updated_at. Returns ErrNotFound when no row has id.
func UpdateDealColumns(ctx context.Context, db *gorm.DB, id uint, cols map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteDeal removes a deal and its secondary-category rows. Ledger entries
// and analytics events that reference the deal are kept.
func DeleteDeal(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deal_id = ?", id).Delete(&domain.DealCategory{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Deal{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindDealBySlug returns the first deal, in creation order, whose slug
// matches. A deal matches when Slugify(software_name) or
// LegacySlug(software_name) equals slug, or when its stored
// software_name_slug does. No uniqueness is enforced on slugs.
func FindDealBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Deal, error) {
	want := strings.ToLower(strings.TrimSpace(slug))
	if want == "" {
		return nil, gorm.ErrRecordNotFound
	}

	rows, err := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Select("id", "software_name", "software_name_slug").
		Order("id ASC").
		Rows()
	if err != nil {
		return nil, err
	}

	var hit uint
	for rows.Next() {
		var r struct {
			ID               uint
			SoftwareName     string
			SoftwareNameSlug *string
		}
		if err := db.ScanRows(rows, &r); err != nil {
			rows.Close()
			return nil, err
		}
		if domain.Slugify(r.SoftwareName) == want ||
			domain.LegacySlug(r.SoftwareName) == want ||
			(r.SoftwareNameSlug != nil && strings.EqualFold(*r.SoftwareNameSlug, want)) {
			hit = r.ID
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if hit == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetDeal(ctx, db, hit)
}

// FindDealByFuzzyName returns the first deal, by id, whose name with spaces
// removed contains term case-insensitively. term should already be reduced
// to [a-z0-9] (see domain.CompactSlug).
func FindDealByFuzzyName(ctx context.Context, db *gorm.DB, term string) (*domain.Deal, error) {
	if term == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var d domain.Deal
	err := db.WithContext(ctx).
		Where("LOWER(REPLACE(software_name, ' ', '')) LIKE ?", "%"+term+"%").
		Order("id ASC").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func bumpDeal(ctx context.Context, db *gorm.DB, id uint, column, expr string) error {
	res := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(expr))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementDealClicks adds one to a deal's click counter.
func IncrementDealClicks(ctx context.Context, db *gorm.DB, id uint) error {
	return bumpDeal(ctx, db, id, "clicks", "clicks + 1")
}

// IncrementDealLikes adds one to a deal's global like counter.
func IncrementDealLikes(ctx context.Context, db *gorm.DB, id uint) error {
	return bumpDeal(ctx, db, id, "likes", "likes + 1")
}

// DecrementDealLikes subtracts one from a deal's global like counter,
// clamping at zero.
func DecrementDealLikes(ctx context.Context, db *gorm.DB, id uint) error {
	return bumpDeal(ctx, db, id, "likes", "CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")
}

// ListDeals returns deals ordered by sortBy. SortLikes orders by likes then
// id, both descending; anything else is newest first. limit <= 0 returns
// every row.
func ListDeals(ctx context.Context, db *gorm.DB, sortBy string, limit int) ([]domain.Deal, error) {
	q := db.WithContext(ctx).Model(&domain.Deal{})
	switch sortBy {
	case SortLikes:
		q = q.Order("likes DESC").Order("id DESC")
	default:
		q = q.Order("created_at DESC").Order("id DESC")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Deal
	err := q.Find(&out).Error
	return out, err
}

// SearchDeals returns deals whose software_name contains term (case
// sensitive, no wildcards) and whose primary category's name contains
// category (case-insensitive). Empty arguments are not applied. Results are
// ordered by software_name ascending.
func SearchDeals(ctx context.Context, db *gorm.DB, term, category string, limit int) ([]domain.Deal, error) {
	q := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Select("deals.*")
	if term != "" {
		q = q.Where(containsExpr(db, "deals.software_name"), term)
	}
	if category != "" {
		q = q.Joins("JOIN categories ON categories.id = deals.category_id").
			Where(`LOWER(categories.name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(category))+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Deal
	err := q.Order("deals.software_name ASC").Order("deals.id ASC").Find(&out).Error
	return out, err
}

// containsExpr is a case-sensitive substring test on col with one bind
// argument. LIKE folds ASCII case on SQLite but not on Postgres.
func containsExpr(db *gorm.DB, col string) string {
	if db.Dialector.Name() == "postgres" {
		return "strpos(" + col + ", ?) > 0"
	}
	return "instr(" + col + ", ?) > 0"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

// ListDealsByCategory returns deals whose primary category is categoryID,
// ordered by software_name.
func ListDealsByCategory(ctx context.Context, db *gorm.DB, categoryID uint, limit int) ([]domain.Deal, error) {
	q := db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("software_name ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Deal
	err := q.Find(&out).Error
	return out, err
}

// CountDeals returns the number of deals.
func CountDeals(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Deal{}).Count(&n).Error
	return n, err
}

// ReplaceDealCategories sets the primary category and the ordered secondary
// list of a deal in one transaction, rewriting both the join rows and the
// comma-joined projection. Callers enforce the size and no-duplicate rules.
func ReplaceDealCategories(ctx context.Context, db *gorm.DB, dealID uint, primary *uint, secondary []uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Deal{}).
			Where("id = ?", dealID).
			Updates(map[string]any{
				"category_id": primary,
				"categories":  JoinCategoryList(secondary),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceSecondaryRows(tx, dealID, secondary)
	})
}

func replaceSecondaryRows(tx *gorm.DB, dealID uint, secondary []uint) error {
	if err := tx.Where("deal_id = ?", dealID).Delete(&domain.DealCategory{}).Error; err != nil {
		return err
	}
	if len(secondary) == 0 {
		return nil
	}
	rows := make([]domain.DealCategory, len(secondary))
	for i, id := range secondary {
		rows[i] = domain.DealCategory{DealID: dealID, CategoryID: id, Position: i}
	}
	return tx.Create(&rows).Error
}

// ListSecondaryCategoryIDs returns a deal's secondary category ids in
// assignment order.
func ListSecondaryCategoryIDs(ctx context.Context, db *gorm.DB, dealID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.DealCategory{}).
		Where("deal_id = ?", dealID).
		Order("position ASC").
		Pluck("category_id", &ids).Error
	return ids, err
}
