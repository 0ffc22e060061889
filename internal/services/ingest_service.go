// Package services – IngestService
//
// This file implements the write contract the ingestion pipeline uses:
// Apply takes a payload of optional fields for one software name, finds an
// existing deal by fuzzy name or inserts a new one, merges the fields, and
// reconciles the deal's categories.
//
// Merge rule for an existing deal: a field is only written when the payload
// carries a non-blank value for it, so stored data is never erased by a
// sparse extraction (COALESCE(new, old)).
//
// Category reconciliation: the primary category comes first, names are
// de-duplicated case-insensitively, the list is capped at MaxCategories, and
// every name goes through CategoryService.FindOrCreate.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

// ReferralBase prefixes the placeholder referral link of ingested deals.
const ReferralBase = "https://example.com/"

// IngestPayload is what the pipeline extracted for one software name.
// Nil or blank fields mean "no new data".
type IngestPayload struct {
	SoftwareName    string   `json:"software_name" validate:"required,max=255"`
	Discount        *string  `json:"discount"`
	Description     *string  `json:"description"`
	About           *string  `json:"about"`
	CouponCode      *string  `json:"coupon_code"`
	TimeLimit       *string  `json:"time_limit"`
	LogoURL         *string  `json:"logo_url"`
	WebsiteURL      *string  `json:"website_url"`
	Categories      []string `json:"categories"`
	PrimaryCategory string   `json:"primary_category"`
}

// ApplyResult reports what Apply did.
type ApplyResult struct {
	Deal       *domain.Deal      `json:"deal"`
	Created    bool              `json:"created"`
	Categories []domain.Category `json:"categories"`
}

// IngestService applies ingestion payloads to the Deal and Category stores.
type IngestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Deals performs category assignment.
	Deals *DealService
	// Categories resolves category names.
	Categories *CategoryService
}

// NewIngestService wires an IngestService over shared stores.
func NewIngestService(db *gorm.DB, deals *DealService, cats *CategoryService) *IngestService {
	return &IngestService{DB: db, Deals: deals, Categories: cats}
}

// Apply merges p into the deal whose name fuzzily matches p.SoftwareName,
// or inserts a new deal when none does. Inserting requires a discount. The
// deal write and the category reconciliation commit together: when a
// category cannot be resolved the deal is left as it was.
func (s *IngestService) Apply(ctx context.Context, p IngestPayload) (*ApplyResult, error) {
	const op = "ingest.Apply"
	p.SoftwareName = normalizeSpaces(p.SoftwareName)
	ctx, span := otel.Tracer("services/IngestService").Start(ctx, "Apply",
		trace.WithAttributes(attribute.String("software.name", p.SoftwareName)),
	)
	defer span.End()

	if err := validateStruct(op, p); err != nil {
		return nil, err
	}

	var res *ApplyResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.withTx(tx).apply(ctx, op, p)
		return err
	})
	if err != nil {
		return nil, translate(op, "deal", err)
	}
	span.SetAttributes(
		attribute.Bool("deal.created", res.Created),
		attribute.Int64("deal.id", int64(res.Deal.ID)),
	)
	return res, nil
}

// withTx returns a copy of s whose stores all write through tx.
func (s *IngestService) withTx(tx *gorm.DB) *IngestService {
	deals, cats := *s.Deals, *s.Categories
	deals.DB, cats.DB = tx, tx
	return &IngestService{DB: tx, Deals: &deals, Categories: &cats}
}

func (s *IngestService) apply(ctx context.Context, op string, p IngestPayload) (*ApplyResult, error) {
	res := &ApplyResult{}
	existing, err := repo.FindDealByFuzzyName(ctx, s.DB, domain.CompactSlug(p.SoftwareName))
	switch {
	case err == nil:
		if err := s.merge(ctx, existing.ID, p); err != nil {
			return nil, translate(op, "deal", err)
		}
		if res.Deal, err = repo.GetDeal(ctx, s.DB, existing.ID); err != nil {
			return nil, translate(op, "deal", err)
		}
	case isRecordNotFound(err):
		if res.Deal, err = s.insert(ctx, op, p); err != nil {
			return nil, err
		}
		res.Created = true
	default:
		return nil, translate(op, "deal", err)
	}

	cats, err := s.reconcileCategories(ctx, res.Deal.ID, p)
	if err != nil {
		return nil, err
	}
	res.Categories = cats
	if len(cats) > 0 {
		if res.Deal, err = repo.GetDeal(ctx, s.DB, res.Deal.ID); err != nil {
			return nil, translate(op, "deal", err)
		}
	}
	return res, nil
}

// merge writes only the fields p carries.
func (s *IngestService) merge(ctx context.Context, id uint, p IngestPayload) error {
	cols := map[string]any{}
	set := func(col string, v *string) {
		if v := present(v); v != nil {
			cols[col] = *v
		}
	}
	set("discount", p.Discount)
	set("description", p.Description)
	set("coupon_code", p.CouponCode)
	set("time_limit", p.TimeLimit)
	set("about", p.About)
	set("logo_url", p.LogoURL)
	set("website_url", p.WebsiteURL)
	if len(cols) == 0 {
		return nil
	}
	return repo.UpdateDealColumns(ctx, s.DB, id, cols)
}

func (s *IngestService) insert(ctx context.Context, op string, p IngestPayload) (*domain.Deal, error) {
	discount := present(p.Discount)
	if discount == nil {
		return nil, validationErr(op, "discount is required to create a deal")
	}
	slug := domain.Slugify(p.SoftwareName)
	referral := ReferralBase + domain.URLSlug(p.SoftwareName)
	d := &domain.Deal{
		SoftwareName:     p.SoftwareName,
		SoftwareNameSlug: &slug,
		LogoURL:          present(p.LogoURL),
		WebsiteURL:       present(p.WebsiteURL),
		ReferralLink:     &referral,
		Discount:         *discount,
		CouponCode:       present(p.CouponCode),
		TimeLimit:        present(p.TimeLimit),
		Description:      present(p.Description),
		About:            present(p.About),
		IsActive:         true,
	}
	if err := repo.CreateDeal(ctx, s.DB, d); err != nil {
		return nil, translate(op, "deal", err)
	}
	return d, nil
}

// reconcileCategories resolves the payload's category names and assigns
// them, primary first. A payload without categories leaves the deal's
// categories untouched.
func (s *IngestService) reconcileCategories(ctx context.Context, dealID uint, p IngestPayload) ([]domain.Category, error) {
	const op = "ingest.reconcileCategories"
	names := CategoryNames(p.PrimaryCategory, p.Categories, s.Deals.maxCategories(), s.Categories.Canonical)
	if len(names) == 0 {
		return nil, nil
	}

	cats := make([]domain.Category, 0, len(names))
	ids := make([]uint, 0, len(names))
	for _, n := range names {
		c, _, err := s.Categories.FindOrCreate(ctx, n)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *c)
		ids = append(ids, c.ID)
	}
	primary := ids[0]
	if err := s.Deals.SetCategories(ctx, dealID, &primary, ids[1:]); err != nil {
		return nil, translate(op, "deal", err)
	}
	return cats, nil
}

// CategoryNames builds the ordered category list for a deal: primary first
// (or the first listed name when primary is blank), then the rest in order,
// without case-insensitive duplicates, at most max names.
func CategoryNames(primary string, names []string, max int, canon func(string) string) []string {
	out := make([]string, 0, len(names)+1)
	seen := make(map[string]struct{}, len(names)+1)
	add := func(n string) {
		n = canon(n)
		k := repo.CategoryKey(n)
		if k == "" {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		if max > 0 && len(out) >= max {
			return
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	add(primary)
	for _, n := range names {
		add(n)
	}
	return out
}

// present returns a trimmed copy of v, or nil when v is nil or blank.
func present(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
