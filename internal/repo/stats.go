// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer and for the catalogue summary. Each function is context-aware and
// safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// DealsStats returns aggregate metadata for the deal catalogue: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When there are no deals, the returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total deals
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func DealsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Deal{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Deal{}).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// DealCounters returns the sums of the likes and clicks counters over all
// deals. Counter bumps do not touch updated_at, so conditional GETs fold
// these sums into their validators.
func DealCounters(ctx context.Context, db *gorm.DB) (likes, clicks int64, err error) {
	var row struct {
		Likes  int64
		Clicks int64
	}
	err = db.WithContext(ctx).Model(&domain.Deal{}).
		Select("COALESCE(SUM(likes), 0) AS likes, COALESCE(SUM(clicks), 0) AS clicks").
		Scan(&row).Error
	return row.Likes, row.Clicks, err
}

// CatalogTotals is the catalogue-wide summary served by the stats endpoint.
type CatalogTotals struct {
	Deals       int64 `json:"deals"`
	ActiveDeals int64 `json:"active_deals"`
	Categories  int64 `json:"categories"`
	Likes       int64 `json:"likes"`
	Clicks      int64 `json:"clicks"`
	// RelatedLikes is the sum of all contextual like counts.
	RelatedLikes int64 `json:"related_likes"`
}

// CatalogStats computes CatalogTotals.
func CatalogStats(ctx context.Context, db *gorm.DB) (CatalogTotals, error) {
	var out CatalogTotals
	base := db.WithContext(ctx)

	var sums struct {
		Deals  int64
		Active int64
		Likes  int64
		Clicks int64
	}
	err := base.Model(&domain.Deal{}).
		Select("COUNT(*) AS deals, " +
			"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, " +
			"COALESCE(SUM(likes), 0) AS likes, " +
			"COALESCE(SUM(clicks), 0) AS clicks").
		Scan(&sums).Error
	if err != nil {
		return out, err
	}
	out.Deals, out.ActiveDeals, out.Likes, out.Clicks = sums.Deals, sums.Active, sums.Likes, sums.Clicks

	if out.Categories, err = CountCategories(ctx, db); err != nil {
		return out, err
	}

	var related struct{ Total int64 }
	if err := base.Model(&domain.RelatedDealLike{}).
		Select("COALESCE(SUM(likes), 0) AS total").
		Scan(&related).Error; err != nil {
		return out, err
	}
	out.RelatedLikes = related.Total
	return out, nil
}
