// Category HTTP handlers.
//
//   - GET    /categories          (random subset for the home page)
//   - GET    /all-categories      (every category by name)
//   - GET    /categories/page     (paged listing)
//   - POST   /categories          (create)
//   - DELETE /categories/{id}     (delete; deals keep dangling ids)
//   - GET    /category/{slug}     (category and its deals)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// CategoryDealsResponse is a category page.
type CategoryDealsResponse struct {
	Category *domain.Category `json:"category"`
	Deals    []domain.Deal    `json:"deals"`
}

// RandomCategories godoc
// @ID          randomCategories
// @Summary     Random categories
// @Tags        Categories
// @Produce     json
// @Param       count  query  int  false "How many"  minimum(1) maximum(100) default(10)
// @Success     200  {array}  domain.Category
// @Router      /categories [get]
func (h *Handlers) RandomCategories(c *gin.Context) {
	n := utils.Clamp(utils.AtoiDefault(c.Query("count"), h.opts.RandomCategories), 1, 100)
	items, err := h.categories.Random(c.Request.Context(), n)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// AllCategories godoc
// @ID          allCategories
// @Summary     All categories
// @Tags        Categories
// @Produce     json
// @Success     200  {array}  domain.Category
// @Router      /all-categories [get]
func (h *Handlers) AllCategories(c *gin.Context) {
	items, err := h.categories.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// CategoriesPage godoc
// @ID          categoriesPage
// @Summary     Paged categories
// @Tags        Categories
// @Produce     json
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(200) default(87)
// @Success     200  {object} services.CategoryPage
// @Router      /categories/page [get]
func (h *Handlers) CategoriesPage(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	size := utils.AtoiDefault(c.Query("page_size"), 0)
	if size > 200 {
		size = 200
	}
	p, err := h.categories.ListPage(c.Request.Context(), page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// CreateCategory godoc
// @ID          createCategory
// @Summary     Create a category
// @Tags        Categories
// @Accept      json
// @Produce     json
// @Param       body  body      services.CategoryInput  true  "Category payload"
// @Success     201   {object}  domain.Category
// @Failure     400   {object}  handlers.ErrorResponse "Invalid payload"
// @Failure     409   {object}  handlers.ErrorResponse "Name already taken (case-insensitive)"
// @Router      /categories [post]
func (h *Handlers) CreateCategory(c *gin.Context) {
	var in services.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// DeleteCategory godoc
// @ID          deleteCategory
// @Summary     Delete a category
// @Tags        Categories
// @Param       id   path  int  true  "Category ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Category not found"
// @Router      /categories/{id} [delete]
func (h *Handlers) DeleteCategory(c *gin.Context) {
	id, valid := utils.ParseUint(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// CategoryDeals godoc
// @ID          categoryDeals
// @Summary     Category page
// @Description Resolves a category slug (hyphenated or compact) and lists deals whose primary category it is.
// @Tags        Categories
// @Produce     json
// @Param       slug   path   string  true  "Category slug"  example(project-management)
// @Param       limit  query  int     false "Maximum deals"  default(82)
// @Success     200  {object} handlers.CategoryDealsResponse
// @Failure     404  {object} handlers.ErrorResponse "Category not found"
// @Router      /category/{slug} [get]
func (h *Handlers) CategoryDeals(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	cat, deals, err := h.categories.DealsBySlug(c.Request.Context(), c.Param("slug"), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CategoryDealsResponse{Category: cat, Deals: nonNil(deals)})
}
