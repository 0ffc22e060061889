// Package services – LikeLedger
//
// This file implements the contextual like ledger: per (source deal, related
// deal) like counters, independent of Deal.Likes. Like keeps incrementing on
// repeat calls; Unlike removes the pair's row and is a no-op when absent.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/repo"
)

// PairInput identifies a ledger pair on the wire.
type PairInput struct {
	SourceDealID  uint `json:"sourceDealId"  validate:"required,gt=0"`
	RelatedDealID uint `json:"relatedDealId" validate:"required,gt=0"`
}

// LikeLedger implements the contextual like use-cases.
type LikeLedger struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

func (l *LikeLedger) check(op string, in PairInput) error {
	if err := validateStruct(op, in); err != nil {
		return err
	}
	if in.SourceDealID == in.RelatedDealID {
		return validationErr(op, "a deal cannot be liked in its own context")
	}
	return nil
}

// Like increments the pair's counter (creating it at 1) and returns the new
// count. The related deal's global like counter is not touched.
func (l *LikeLedger) Like(ctx context.Context, in PairInput) (int64, error) {
	const op = "ledger.Like"
	ctx, span := otel.Tracer("services/LikeLedger").Start(ctx, "Like",
		trace.WithAttributes(
			attribute.Int64("deal.source_id", int64(in.SourceDealID)),
			attribute.Int64("deal.related_id", int64(in.RelatedDealID)),
		),
	)
	defer span.End()

	if err := l.check(op, in); err != nil {
		return 0, err
	}
	n, err := repo.IncrementRelatedLike(ctx, l.DB, in.SourceDealID, in.RelatedDealID)
	if err != nil {
		return 0, translate(op, "like", err)
	}
	return n, nil
}

// Unlike removes the pair's counter. Unliking a pair that was never liked
// succeeds.
func (l *LikeLedger) Unlike(ctx context.Context, in PairInput) error {
	const op = "ledger.Unlike"
	if err := l.check(op, in); err != nil {
		return err
	}
	return translate(op, "like", repo.DeleteRelatedLike(ctx, l.DB, in.SourceDealID, in.RelatedDealID))
}

// Count returns the pair's counter, 0 when absent.
func (l *LikeLedger) Count(ctx context.Context, in PairInput) (int64, error) {
	const op = "ledger.Count"
	if err := validateStruct(op, in); err != nil {
		return 0, err
	}
	n, err := repo.GetRelatedLikes(ctx, l.DB, in.SourceDealID, in.RelatedDealID)
	if err != nil {
		return 0, translate(op, "like", err)
	}
	return n, nil
}
