// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the analytics event log.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// RecordAnalyticsEvent appends ev. When ev.Action is a click, the deal's
// click counter is incremented in the same transaction. The event is stored
// even when no deal row has ev.DealID.
func RecordAnalyticsEvent(ctx context.Context, db *gorm.DB, ev *domain.AnalyticsEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
		if ev.Action != domain.ActionClick {
			return nil
		}
		return tx.Model(&domain.Deal{}).
			Where("id = ?", ev.DealID).
			UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error
	})
}

// AnalyticsRow is an event joined with the name and discount of its deal.
// Both are nil when the deal no longer exists.
type AnalyticsRow struct {
	domain.AnalyticsEvent
	SoftwareName *string `json:"software_name"`
	Discount     *string `json:"discount"`
}

// ListRecentAnalytics returns the newest events first, at most limit.
func ListRecentAnalytics(ctx context.Context, db *gorm.DB, limit int) ([]AnalyticsRow, error) {
	q := db.WithContext(ctx).
		Table("analytics AS a").
		Select("a.*, d.software_name AS software_name, d.discount AS discount").
		Joins("LEFT JOIN deals d ON d.id = a.deal_id").
		Order("a.timestamp DESC").
		Order("a.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []AnalyticsRow
	err := q.Scan(&out).Error
	return out, err
}

// CountAnalyticsByAction returns the number of events per action.
func CountAnalyticsByAction(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Action string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.AnalyticsEvent{}).
		Select("action, COUNT(*) AS n").
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Action] = r.N
	}
	return out, nil
}
