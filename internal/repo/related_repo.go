// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the related-deal ranking query.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// RelatedDeal is a deal row annotated with its contextual like count for a
// given source deal.
type RelatedDeal struct {
	domain.Deal
	ContextualLikes int64 `json:"contextual_likes"`
}

// ListRelatedDeals ranks every deal not in exclude by
//
//	contextual likes for (sourceID, deal) DESC, global likes DESC, id ASC
//
// and returns at most limit rows. Deals without a ledger row rank with 0
// contextual likes. The caller is expected to put sourceID in exclude.
func ListRelatedDeals(ctx context.Context, db *gorm.DB, sourceID uint, exclude []uint, limit int) ([]RelatedDeal, error) {
	q := db.WithContext(ctx).
		Table("deals AS d").
		Select("d.*, COALESCE(rdl.likes, 0) AS contextual_likes").
		Joins("LEFT JOIN related_deal_likes rdl ON rdl.related_deal_id = d.id AND rdl.source_deal_id = ?", sourceID)
	if len(exclude) > 0 {
		q = q.Where("d.id NOT IN ?", exclude)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []RelatedDeal
	err := q.Order("contextual_likes DESC").
		Order("d.likes DESC").
		Order("d.id ASC").
		Scan(&out).Error
	return out, err
}
