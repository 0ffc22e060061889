// Package services – AnalyticsService
//
// This file implements the analytics recorder: an append-only log of view,
// click, and copy_code events. Recording a click also increments the deal's
// click counter in the same transaction.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

// DefaultRecentAnalytics is the Recent limit used when none is given.
const DefaultRecentAnalytics = 50

// AnalyticsInput is the write shape for one event. IP and user agent come
// from the request, not the body.
type AnalyticsInput struct {
	DealID    uint   `json:"deal_id" validate:"required,gt=0"`
	Action    string `json:"action"  validate:"required,oneof=view click copy_code"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// AnalyticsService implements the analytics use-cases.
type AnalyticsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// Record appends an event. The deal need not exist.
func (s *AnalyticsService) Record(ctx context.Context, in AnalyticsInput) (*domain.AnalyticsEvent, error) {
	const op = "analytics.Record"
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	ev := &domain.AnalyticsEvent{
		DealID:    in.DealID,
		Action:    in.Action,
		IPAddress: optional(in.IPAddress),
		UserAgent: optional(in.UserAgent),
	}
	if err := repo.RecordAnalyticsEvent(ctx, s.DB, ev); err != nil {
		return nil, translate(op, "event", err)
	}
	return ev, nil
}

// Recent returns the newest events, joined with their deal's name and
// discount.
func (s *AnalyticsService) Recent(ctx context.Context, limit int) ([]repo.AnalyticsRow, error) {
	if limit <= 0 {
		limit = DefaultRecentAnalytics
	}
	out, err := repo.ListRecentAnalytics(ctx, s.DB, limit)
	if err != nil {
		return nil, translate("analytics.Recent", "event", err)
	}
	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
