// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they parse path, query, and body parameters,
// call application services through the narrow interfaces below, and turn
// results into JSON. Business rules (validation, ranking, merge semantics)
// live in the services package; handlers only map its error kinds to HTTP
// statuses (see failErr).
package handlers

import (
	"context"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
	"github.com/tbourn/go-deals-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// DealService is the Deal Store as seen by HTTP handlers.
type DealService interface {
	Create(ctx context.Context, in services.DealInput) (*domain.Deal, error)
	Update(ctx context.Context, id uint, in services.DealInput) (*domain.Deal, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*domain.Deal, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Deal, error)
	GetDetail(ctx context.Context, slug string) (*services.DealDetail, error)
	List(ctx context.Context, sortBy string, limit int) ([]domain.Deal, error)
	Search(ctx context.Context, term, category string) ([]domain.Deal, error)
	Like(ctx context.Context, id uint) (int64, error)
	Unlike(ctx context.Context, id uint) (int64, error)
	ListVersion(ctx context.Context) (services.ListVersion, error)
	Stats(ctx context.Context) (*services.Stats, error)
}

// CategoryService is the Category Store as seen by HTTP handlers.
type CategoryService interface {
	Create(ctx context.Context, in services.CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]domain.Category, error)
	Random(ctx context.Context, n int) ([]domain.Category, error)
	ListPage(ctx context.Context, page, pageSize int) (*services.CategoryPage, error)
	DealsBySlug(ctx context.Context, slug string, limit int) (*domain.Category, []domain.Deal, error)
}

// LikeLedger records contextual likes for (source, related) deal pairs.
type LikeLedger interface {
	Like(ctx context.Context, in services.PairInput) (int64, error)
	Unlike(ctx context.Context, in services.PairInput) error
	Count(ctx context.Context, in services.PairInput) (int64, error)
}

// RelatedService ranks deals related to a source deal.
type RelatedService interface {
	RelatedBySlug(ctx context.Context, slug string, exclude []uint, limit int) ([]repo.RelatedDeal, error)
}

// AnalyticsService records and lists engagement events.
type AnalyticsService interface {
	Record(ctx context.Context, in services.AnalyticsInput) (*domain.AnalyticsEvent, error)
	Recent(ctx context.Context, limit int) ([]repo.AnalyticsRow, error)
}

// IdempotencyStore persists responses of requests carrying an
// Idempotency-Key.
type IdempotencyStore interface {
	Save(ctx context.Context, clientID, scope, key string, status int, body string) error
}

// Options carries the paging sizes handlers apply when a request does not
// choose its own.
type Options struct {
	RelatedPageSize    int
	RelatedInitialSize int
	RandomCategories   int
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the deals API.
type Handlers struct {
	deals      DealService
	categories CategoryService
	likes      LikeLedger
	related    RelatedService
	analytics  AnalyticsService
	idem       IdempotencyStore
	opts       Options
}

// Deps bundles the services Handlers depends on. Idempotency is optional.
type Deps struct {
	Deals       DealService
	Categories  CategoryService
	Likes       LikeLedger
	Related     RelatedService
	Analytics   AnalyticsService
	Idempotency IdempotencyStore
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps, opts Options) *Handlers {
	if opts.RelatedPageSize <= 0 {
		opts.RelatedPageSize = services.DefaultRelatedPageSize
	}
	if opts.RelatedInitialSize <= 0 {
		opts.RelatedInitialSize = opts.RelatedPageSize
	}
	if opts.RandomCategories <= 0 {
		opts.RandomCategories = services.DefaultRandomCategories
	}
	return &Handlers{
		deals:      d.Deals,
		categories: d.Categories,
		likes:      d.Likes,
		related:    d.Related,
		analytics:  d.Analytics,
		idem:       d.Idempotency,
		opts:       opts,
	}
}
