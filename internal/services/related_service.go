// Package services – RelatedService
//
// This file implements the related-deal ranking engine. Candidates are
// ranked by contextual likes for the source deal, then global likes, then id
// ascending. Paging is by exclusion set, never by offset: the caller folds
// every returned id into the next request's exclude list, so like-count
// changes between pages cannot repeat or skip a deal. A page shorter than
// the limit means the candidates are exhausted.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/repo"
)

// Related page sizes.
const (
	DefaultRelatedPageSize = 3
	MaxRelatedLimit        = 50
)

// RelatedService implements the ranking use-cases.
type RelatedService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// PageSize is used when a caller passes limit <= 0.
	PageSize int
}

// Related returns up to limit deals other than sourceID and exclude, ranked
// for sourceID. sourceID is always excluded, whether or not the caller
// listed it. An unknown sourceID is a NotFoundError.
func (s *RelatedService) Related(ctx context.Context, sourceID uint, exclude []uint, limit int) ([]repo.RelatedDeal, error) {
	const op = "related.Related"
	ctx, span := otel.Tracer("services/RelatedService").Start(ctx, "Related",
		trace.WithAttributes(
			attribute.Int64("deal.source_id", int64(sourceID)),
			attribute.Int("exclude.count", len(exclude)),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if _, err := repo.GetDeal(ctx, s.DB, sourceID); err != nil {
		return nil, translate(op, "deal", err)
	}
	return s.rank(ctx, op, sourceID, exclude, limit)
}

// RelatedBySlug resolves the source deal by slug, then ranks as Related.
func (s *RelatedService) RelatedBySlug(ctx context.Context, slug string, exclude []uint, limit int) ([]repo.RelatedDeal, error) {
	const op = "related.RelatedBySlug"
	src, err := repo.FindDealBySlug(ctx, s.DB, slug)
	if err != nil {
		return nil, translate(op, "deal", err)
	}
	return s.rank(ctx, op, src.ID, exclude, limit)
}

func (s *RelatedService) rank(ctx context.Context, op string, sourceID uint, exclude []uint, limit int) ([]repo.RelatedDeal, error) {
	if limit <= 0 {
		limit = s.PageSize
		if limit <= 0 {
			limit = DefaultRelatedPageSize
		}
	}
	if limit > MaxRelatedLimit {
		limit = MaxRelatedLimit
	}

	ids := make([]uint, 0, len(exclude)+1)
	ids = append(ids, sourceID)
	seen := map[uint]struct{}{sourceID: {}}
	for _, id := range exclude {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	out, err := repo.ListRelatedDeals(ctx, s.DB, sourceID, ids, limit)
	if err != nil {
		return nil, translate(op, "deal", err)
	}
	if out == nil {
		out = []repo.RelatedDeal{}
	}
	return out, nil
}
