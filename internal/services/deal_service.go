// Package services – DealService
//
// This file implements the DealService, the Deal Store's business surface:
// operator CRUD with full-overwrite updates, slug lookups, global like and
// click counters, list/search read models, and category assignment (one
// primary plus ordered secondaries, at most MaxCategories in total).
//
// Observability: public methods that touch several tables are
// OpenTelemetry-instrumented; spans are named after the method.
package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

// Defaults used when the corresponding DealService field is zero.
const (
	DefaultMaxCategories = 5
	DefaultSearchLimit   = 12
	CategoryPageDeals    = 82
	AllDealsPageLimit    = 100
)

// DealInput is the operator write shape for a deal. Categories is the
// comma-joined list of secondary category ids, as in the read shape.
type DealInput struct {
	SoftwareName     string  `json:"software_name"      validate:"required,max=255"`
	SoftwareNameSlug *string `json:"software_name_slug" validate:"omitempty,max=255"`
	CategoryID       *uint   `json:"category_id"`
	Categories       string  `json:"categories"`
	LogoURL          *string `json:"logo_url"           validate:"omitempty,max=2048"`
	WebsiteURL       *string `json:"website_url"        validate:"omitempty,max=2048"`
	ReferralLink     *string `json:"referral_link"      validate:"omitempty,max=2048"`
	Discount         string  `json:"discount"           validate:"required,max=255"`
	CouponCode       *string `json:"coupon_code"        validate:"omitempty,max=255"`
	TimeLimit        *string `json:"time_limit"         validate:"omitempty,max=255"`
	Description      *string `json:"description"`
	About            *string `json:"about"`
	IsActive         *bool   `json:"is_active"`
}

func (in *DealInput) normalize() {
	in.SoftwareName = strings.TrimSpace(in.SoftwareName)
	in.Discount = strings.TrimSpace(in.Discount)
	if in.SoftwareNameSlug != nil {
		s := domain.Slugify(*in.SoftwareNameSlug)
		in.SoftwareNameSlug = &s
	}
	if in.SoftwareNameSlug == nil || *in.SoftwareNameSlug == "" {
		s := domain.Slugify(in.SoftwareName)
		in.SoftwareNameSlug = &s
	}
}

// DealDetail is a deal with its category names resolved. AllCategories lists
// the primary category first, then the secondaries in assignment order;
// dangling ids are skipped.
type DealDetail struct {
	domain.Deal
	CategoryName  *string  `json:"category_name"`
	AllCategories []string `json:"all_categories"`
}

// Stats is the catalogue summary.
type Stats struct {
	repo.CatalogTotals
	ViewEvents  int64 `json:"view_events"`
	ClickEvents int64 `json:"click_events"`
	CopyEvents  int64 `json:"copy_events"`
}

// DealService implements the Deal Store use-cases.
type DealService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// MaxCategories caps primary + secondary categories per deal.
	MaxCategories int
	// SearchLimit caps Search results.
	SearchLimit int
}

// NewDealService constructs a DealService with the default limits.
func NewDealService(db *gorm.DB) *DealService {
	return &DealService{DB: db, MaxCategories: DefaultMaxCategories, SearchLimit: DefaultSearchLimit}
}

func (s *DealService) maxCategories() int {
	if s.MaxCategories <= 0 {
		return DefaultMaxCategories
	}
	return s.MaxCategories
}

// Create validates in and inserts a new deal with zeroed counters.
// software_name and discount are required.
func (s *DealService) Create(ctx context.Context, in DealInput) (*domain.Deal, error) {
	const op = "deals.Create"
	in.normalize()
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}

	primary, secondary := s.normalizeCategories(in.CategoryID, repo.ParseCategoryList(in.Categories, in.CategoryID, 0))
	d := &domain.Deal{
		SoftwareName:     in.SoftwareName,
		SoftwareNameSlug: in.SoftwareNameSlug,
		CategoryID:       primary,
		Categories:       repo.JoinCategoryList(secondary),
		LogoURL:          in.LogoURL,
		WebsiteURL:       in.WebsiteURL,
		ReferralLink:     in.ReferralLink,
		Discount:         in.Discount,
		CouponCode:       in.CouponCode,
		TimeLimit:        in.TimeLimit,
		Description:      in.Description,
		About:            in.About,
		IsActive:         true,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateDeal(ctx, tx, d); err != nil {
			return err
		}
		if in.IsActive != nil && !*in.IsActive {
			// false is GORM's zero value and would be replaced by the column default.
			if err := tx.Model(d).UpdateColumn("is_active", false).Error; err != nil {
				return err
			}
			d.IsActive = false
		}
		if len(secondary) == 0 {
			return nil
		}
		return repo.ReplaceDealCategories(ctx, tx, d.ID, primary, secondary)
	})
	if err != nil {
		return nil, translate(op, "deal", err)
	}
	return d, nil
}

// Update overwrites every field of deal id with in. Absent optional fields
// are stored as NULL rather than kept; is_active is kept when omitted.
// updated_at is refreshed.
func (s *DealService) Update(ctx context.Context, id uint, in DealInput) (*domain.Deal, error) {
	const op = "deals.Update"
	in.normalize()
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}

	primary, secondary := s.normalizeCategories(in.CategoryID, repo.ParseCategoryList(in.Categories, in.CategoryID, 0))
	cols := map[string]any{
		"software_name":      in.SoftwareName,
		"software_name_slug": in.SoftwareNameSlug,
		"logo_url":           in.LogoURL,
		"website_url":        in.WebsiteURL,
		"referral_link":      in.ReferralLink,
		"discount":           in.Discount,
		"coupon_code":        in.CouponCode,
		"time_limit":         in.TimeLimit,
		"description":        in.Description,
		"about":              in.About,
	}
	if in.IsActive != nil {
		cols["is_active"] = *in.IsActive
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateDealColumns(ctx, tx, id, cols); err != nil {
			return err
		}
		return repo.ReplaceDealCategories(ctx, tx, id, primary, secondary)
	})
	if err != nil {
		return nil, translate(op, "deal", err)
	}
	return s.Get(ctx, id)
}

// Delete removes deal id. Ledger rows and analytics events that reference it
// are kept.
func (s *DealService) Delete(ctx context.Context, id uint) error {
	return translate("deals.Delete", "deal", repo.DeleteDeal(ctx, s.DB, id))
}

// Get returns deal id.
func (s *DealService) Get(ctx context.Context, id uint) (*domain.Deal, error) {
	d, err := repo.GetDeal(ctx, s.DB, id)
	if err != nil {
		return nil, translate("deals.Get", "deal", err)
	}
	return d, nil
}

// GetBySlug returns the first deal, by creation order, whose slug matches.
func (s *DealService) GetBySlug(ctx context.Context, slug string) (*domain.Deal, error) {
	d, err := repo.FindDealBySlug(ctx, s.DB, slug)
	if err != nil {
		return nil, translate("deals.GetBySlug", "deal", err)
	}
	return d, nil
}

// GetDetail resolves slug and the deal's category names.
func (s *DealService) GetDetail(ctx context.Context, slug string) (*DealDetail, error) {
	const op = "deals.GetDetail"
	ctx, span := otel.Tracer("services/DealService").Start(ctx, "GetDetail",
		trace.WithAttributes(attribute.String("deal.slug", slug)),
	)
	defer span.End()

	d, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	secondary, err := repo.ListSecondaryCategoryIDs(ctx, s.DB, d.ID)
	if err != nil {
		return nil, translate(op, "deal", err)
	}
	ids := make([]uint, 0, len(secondary)+1)
	if d.CategoryID != nil {
		ids = append(ids, *d.CategoryID)
	}
	ids = append(ids, secondary...)

	cats, err := repo.GetCategoriesByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, translate(op, "category", err)
	}
	out := &DealDetail{Deal: *d, AllCategories: make([]string, 0, len(cats))}
	for _, c := range cats {
		if d.CategoryID != nil && c.ID == *d.CategoryID {
			name := c.Name
			out.CategoryName = &name
		}
		out.AllCategories = append(out.AllCategories, c.Name)
	}
	return out, nil
}

// List returns deals ordered by sortBy ("recent" or "likes").
func (s *DealService) List(ctx context.Context, sortBy string, limit int) ([]domain.Deal, error) {
	if sortBy != "" && sortBy != repo.SortRecent && sortBy != repo.SortLikes {
		return nil, validationErr("deals.List", "sortBy must be one of [recent likes]")
	}
	out, err := repo.ListDeals(ctx, s.DB, sortBy, limit)
	if err != nil {
		return nil, translate("deals.List", "deal", err)
	}
	return out, nil
}

// ListByCategory returns up to limit deals whose primary category is
// categoryID, ordered by name.
func (s *DealService) ListByCategory(ctx context.Context, categoryID uint, limit int) ([]domain.Deal, error) {
	if limit <= 0 {
		limit = CategoryPageDeals
	}
	out, err := repo.ListDealsByCategory(ctx, s.DB, categoryID, limit)
	if err != nil {
		return nil, translate("deals.ListByCategory", "deal", err)
	}
	return out, nil
}

// Search matches term against software_name and category against the
// primary category name. At least one must be non-blank. Names match as a
// case-sensitive substring; the category filter ignores case.
func (s *DealService) Search(ctx context.Context, term, category string) ([]domain.Deal, error) {
	term, category = strings.TrimSpace(term), strings.TrimSpace(category)
	if term == "" && category == "" {
		return nil, validationErr("deals.Search", "a search term or category is required")
	}
	limit := s.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	out, err := repo.SearchDeals(ctx, s.DB, term, category, limit)
	if err != nil {
		return nil, translate("deals.Search", "deal", err)
	}
	return out, nil
}

// Like increments the deal's global like counter and returns the new value.
func (s *DealService) Like(ctx context.Context, id uint) (int64, error) {
	return s.bumpLikes(ctx, "deals.Like", id, repo.IncrementDealLikes)
}

// Unlike decrements the deal's global like counter, never below zero, and
// returns the new value.
func (s *DealService) Unlike(ctx context.Context, id uint) (int64, error) {
	return s.bumpLikes(ctx, "deals.Unlike", id, repo.DecrementDealLikes)
}

func (s *DealService) bumpLikes(ctx context.Context, op string, id uint, fn func(context.Context, *gorm.DB, uint) error) (int64, error) {
	if err := fn(ctx, s.DB, id); err != nil {
		return 0, translate(op, "deal", err)
	}
	d, err := repo.GetDeal(ctx, s.DB, id)
	if err != nil {
		return 0, translate(op, "deal", err)
	}
	return d.Likes, nil
}

// IncrementClicks adds one to the deal's click counter.
func (s *DealService) IncrementClicks(ctx context.Context, id uint) error {
	return translate("deals.IncrementClicks", "deal", repo.IncrementDealClicks(ctx, s.DB, id))
}

// SetCategories assigns primary and secondary categories to deal id.
// Secondaries equal to the primary or repeated are dropped and the total is
// capped at MaxCategories, keeping the primary.
func (s *DealService) SetCategories(ctx context.Context, id uint, primary *uint, secondary []uint) error {
	p, sec := s.normalizeCategories(primary, secondary)
	return translate("deals.SetCategories", "deal", repo.ReplaceDealCategories(ctx, s.DB, id, p, sec))
}

func (s *DealService) normalizeCategories(primary *uint, secondary []uint) (*uint, []uint) {
	if primary != nil && *primary == 0 {
		primary = nil
	}
	room := s.maxCategories()
	if primary != nil {
		room--
	}
	seen := make(map[uint]struct{}, len(secondary))
	out := make([]uint, 0, len(secondary))
	for _, id := range secondary {
		if id == 0 || (primary != nil && id == *primary) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if len(out) >= room {
			break
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return primary, out
}

// ListVersion fingerprints the deal listing for conditional GETs.
type ListVersion struct {
	Count     int64
	UpdatedAt *time.Time
	Likes     int64
	Clicks    int64
}

// ListVersion returns the current fingerprint of the deals table.
func (s *DealService) ListVersion(ctx context.Context) (ListVersion, error) {
	const op = "deals.ListVersion"
	n, at, err := repo.DealsStats(ctx, s.DB)
	if err != nil {
		return ListVersion{}, translate(op, "deal", err)
	}
	likes, clicks, err := repo.DealCounters(ctx, s.DB)
	if err != nil {
		return ListVersion{}, translate(op, "deal", err)
	}
	return ListVersion{Count: n, UpdatedAt: at, Likes: likes, Clicks: clicks}, nil
}

// Stats summarizes the catalogue and the analytics log.
func (s *DealService) Stats(ctx context.Context) (*Stats, error) {
	const op = "deals.Stats"
	ctx, span := otel.Tracer("services/DealService").Start(ctx, "Stats")
	defer span.End()

	totals, err := repo.CatalogStats(ctx, s.DB)
	if err != nil {
		return nil, translate(op, "stats", err)
	}
	byAction, err := repo.CountAnalyticsByAction(ctx, s.DB)
	if err != nil {
		return nil, translate(op, "stats", err)
	}
	return &Stats{
		CatalogTotals: totals,
		ViewEvents:    byAction[domain.ActionView],
		ClickEvents:   byAction[domain.ActionClick],
		CopyEvents:    byAction[domain.ActionCopyCode],
	}, nil
}
