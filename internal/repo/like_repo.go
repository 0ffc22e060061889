// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the contextual like ledger: one counter
// per ordered (source deal, related deal) pair.
//
// Concurrency: IncrementRelatedLike is a single INSERT ... ON CONFLICT DO
// UPDATE statement, so concurrent first likes on the same pair converge on
// one row whose count equals the number of calls.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// IncrementRelatedLike adds one to the pair's counter, creating it at 1, and
// returns the new count.
func IncrementRelatedLike(ctx context.Context, db *gorm.DB, sourceID, relatedID uint) (int64, error) {
	now := time.Now().UTC()
	var likes int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := domain.RelatedDealLike{
			SourceDealID:  sourceID,
			RelatedDealID: relatedID,
			Likes:         1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_deal_id"}, {Name: "related_deal_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"likes":      gorm.Expr("related_deal_likes.likes + 1"),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		likes, err = readRelatedLikes(tx, sourceID, relatedID)
		return err
	})
	return likes, err
}

// DeleteRelatedLike removes the pair's row. Deleting an absent pair is not
// an error.
func DeleteRelatedLike(ctx context.Context, db *gorm.DB, sourceID, relatedID uint) error {
	return db.WithContext(ctx).
		Where("source_deal_id = ? AND related_deal_id = ?", sourceID, relatedID).
		Delete(&domain.RelatedDealLike{}).Error
}

// GetRelatedLikes returns the pair's count, 0 when no row exists.
func GetRelatedLikes(ctx context.Context, db *gorm.DB, sourceID, relatedID uint) (int64, error) {
	return readRelatedLikes(db.WithContext(ctx), sourceID, relatedID)
}

func readRelatedLikes(db *gorm.DB, sourceID, relatedID uint) (int64, error) {
	var row domain.RelatedDealLike
	err := db.Where("source_deal_id = ? AND related_deal_id = ?", sourceID, relatedID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Likes, nil
}
