// Package services – CategoryService
//
// This file implements the Category Store: explicit operator creation and
// deletion, case-insensitive find-or-create for ingestion, paging, random
// sampling for widgets, and slug resolution in both historical conventions
// ("social-media" and "socialmedia").
//
// FindOrCreate is a single upsert on the case-folded name key followed by a
// read, so concurrent callers with the same name in any case get one row.
package services

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

// Category paging defaults.
const (
	DefaultCategoryPageSize = 87
	DefaultRandomCategories = 10
)

// CategoryInput is the operator write shape for a category.
type CategoryInput struct {
	Name        string  `json:"name"        validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// CategoryPage is one page of categories plus paging metadata.
type CategoryPage struct {
	Items      []domain.Category `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// CategoryService implements the Category Store use-cases.
type CategoryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Locale drives title-casing of ingested category names.
	Locale language.Tag
	// PageSize is the default ListPage size.
	PageSize int
}

// NewCategoryService constructs a CategoryService with default paging.
func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{DB: db, Locale: language.English, PageSize: DefaultCategoryPageSize}
}

// Create inserts a category. Names are unique case-insensitively; a
// duplicate fails with a ConflictError.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	const op = "categories.Create"
	in.Name = normalizeSpaces(in.Name)
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	c, err := repo.CreateCategory(ctx, s.DB, in.Name, in.Description)
	if err != nil {
		return nil, translate(op, "category", err)
	}
	return c, nil
}

// FindOrCreate returns the category named name (any case), creating it with
// an auto-generated description when absent. The stored name of a new
// category is title-cased; an existing row keeps its spelling.
func (s *CategoryService) FindOrCreate(ctx context.Context, name string) (*domain.Category, bool, error) {
	const op = "categories.FindOrCreate"
	ctx, span := otel.Tracer("services/CategoryService").Start(ctx, "FindOrCreate",
		trace.WithAttributes(attribute.String("category.name", name)),
	)
	defer span.End()

	name = s.Canonical(name)
	if name == "" {
		return nil, false, validationErr(op, "name is required")
	}
	desc := AutoDescription(name)
	c, created, err := repo.UpsertCategory(ctx, s.DB, name, &desc)
	if err != nil {
		return nil, false, translate(op, "category", err)
	}
	span.SetAttributes(attribute.Bool("category.created", created))
	return c, created, nil
}

// Canonical collapses whitespace and title-cases name ("project  management"
// becomes "Project Management"). Words that are already all upper case
// ("CRM", "AI") are kept.
func (s *CategoryService) Canonical(name string) string {
	name = normalizeSpaces(name)
	if name == "" {
		return ""
	}
	tag := s.Locale
	if tag == language.Und {
		tag = language.English
	}
	caser := cases.Title(tag)
	words := strings.Fields(name)
	for i, w := range words {
		if len(w) > 1 && w == strings.ToUpper(w) {
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// AutoDescription is the description given to categories created by
// ingestion.
func AutoDescription(name string) string {
	return "Auto-generated category for " + name + " software"
}

// Delete removes category id. Deals that reference it keep the id.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	return translate("categories.Delete", "category", repo.DeleteCategory(ctx, s.DB, id))
}

// Get returns category id.
func (s *CategoryService) Get(ctx context.Context, id uint) (*domain.Category, error) {
	c, err := repo.GetCategory(ctx, s.DB, id)
	if err != nil {
		return nil, translate("categories.Get", "category", err)
	}
	return c, nil
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	out, err := repo.ListCategories(ctx, s.DB)
	if err != nil {
		return nil, translate("categories.List", "category", err)
	}
	return out, nil
}

// Random returns up to n categories sampled at random.
func (s *CategoryService) Random(ctx context.Context, n int) ([]domain.Category, error) {
	if n <= 0 {
		n = DefaultRandomCategories
	}
	out, err := repo.ListRandomCategories(ctx, s.DB, n)
	if err != nil {
		return nil, translate("categories.Random", "category", err)
	}
	return out, nil
}

// ListPage returns a page of categories ordered by name. Invalid page or
// pageSize values fall back to 1 and the service default.
func (s *CategoryService) ListPage(ctx context.Context, page, pageSize int) (*CategoryPage, error) {
	const op = "categories.ListPage"
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.PageSize
		if pageSize <= 0 {
			pageSize = DefaultCategoryPageSize
		}
	}

	total, err := repo.CountCategories(ctx, s.DB)
	if err != nil {
		return nil, translate(op, "category", err)
	}
	out := &CategoryPage{Items: []domain.Category{}, Page: page, PageSize: pageSize, Total: total}
	out.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	if total == 0 {
		return out, nil
	}

	items, err := repo.ListCategoriesPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, translate(op, "category", err)
	}
	out.Items = items
	return out, nil
}

// GetBySlug resolves a category from either slug convention.
func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	c, err := repo.FindCategoryBySlug(ctx, s.DB, slug)
	if err != nil {
		return nil, translate("categories.GetBySlug", "category", err)
	}
	return c, nil
}

// DealsBySlug resolves a category and returns up to limit deals whose
// primary category it is.
func (s *CategoryService) DealsBySlug(ctx context.Context, slug string, limit int) (*domain.Category, []domain.Deal, error) {
	c, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = CategoryPageDeals
	}
	deals, err := repo.ListDealsByCategory(ctx, s.DB, c.ID, limit)
	if err != nil {
		return nil, nil, translate("categories.DealsBySlug", "deal", err)
	}
	return c, deals, nil
}

// normalizeSpaces trims and collapses internal whitespace to one space.
func normalizeSpaces(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
