// Deal HTTP handlers.
//
// This file exposes REST endpoints for deal resources:
//   - GET    /deals               (list, sortBy=recent|likes, ETag support)
//   - POST   /deals               (create)
//   - PUT    /deals/{id}          (full overwrite)
//   - DELETE /deals/{id}          (delete)
//   - GET    /deal/{ref}          (detail with category names)
//   - POST   /deal/{ref}/like     (global like counter)
//   - POST   /deal/{ref}/unlike   (global like counter, floored at zero)
//   - GET    /search              (name / category search)
//   - GET    /stats               (catalogue summary)
//
// {ref} is a slug on detail routes; like routes also accept a numeric id.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// LikesResponse carries a counter value after a like or unlike.
type LikesResponse struct {
	Likes int64 `json:"likes" example:"3"`
}

const maxListLimit = 1000

// dealID parses the :id path parameter.
func dealID(c *gin.Context) (uint, bool) {
	id, ok := utils.ParseUint(c.Param("id"))
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
	}
	return id, ok
}

// resolveDeal maps the :ref path parameter to a deal id. A numeric ref is
// tried as an id first; when no deal has that id, or the ref is not numeric,
// it is looked up as a slug, so all-digit names like "2048" still resolve.
func (h *Handlers) resolveDeal(c *gin.Context) (uint, bool) {
	ctx, ref := c.Request.Context(), c.Param("ref")
	if id, isID := utils.ParseUint(ref); isID {
		d, err := h.deals.Get(ctx, id)
		switch {
		case err == nil:
			return d.ID, true
		case !errors.Is(err, services.ErrNotFound):
			failErr(c, err)
			return 0, false
		}
	}
	d, err := h.deals.GetBySlug(ctx, ref)
	if err != nil {
		failErr(c, err)
		return 0, false
	}
	return d.ID, true
}

// listETag fingerprints one listing request.
func listETag(sortBy string, limit int, v services.ListVersion) string {
	var ts int64
	if v.UpdatedAt != nil {
		ts = v.UpdatedAt.UnixNano()
	}
	return fmt.Sprintf(`W/"deals:%s:%d:%d:%d:%d:%d"`, sortBy, limit, v.Count, ts, v.Likes, v.Clicks)
}

// ListDeals godoc
// @ID          listDeals
// @Summary     List deals
// @Description Returns deals newest first, or by global likes. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Deals
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"deals:recent:100:4:0:0:0\")
// @Param       sortBy         query   string  false "Sort order"                  Enums(recent, likes) default(recent)
// @Param       limit          query   int     false "Maximum deals returned"      minimum(1) maximum(1000) default(100)
//
// @Success     200  {array}  domain.Deal
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Unknown sort order"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /deals [get]
func (h *Handlers) ListDeals(c *gin.Context) {
	ctx := c.Request.Context()
	sortBy := c.DefaultQuery("sortBy", "recent")
	limit := utils.AtoiDefault(c.Query("limit"), services.AllDealsPageLimit)
	limit = utils.Clamp(limit, 1, maxListLimit)

	// Without a version the listing is served uncached.
	if v, err := h.deals.ListVersion(ctx); err == nil && notModified(c, listETag(sortBy, limit, v)) {
		return
	}

	items, err := h.deals.List(ctx, sortBy, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// CreateDeal godoc
// @ID          createDeal
// @Summary     Create a deal
// @Description Inserts a deal with zeroed counters. software_name and discount are required.
// @Tags        Deals
// @Accept      json
// @Produce     json
// @Param       body  body      services.DealInput  true  "Deal payload"
// @Success     201   {object}  domain.Deal
// @Failure     400   {object}  handlers.ErrorResponse "Invalid payload"
// @Failure     503   {object}  handlers.ErrorResponse "Store unavailable"
// @Router      /deals [post]
func (h *Handlers) CreateDeal(c *gin.Context) {
	var in services.DealInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.deals.Create(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// UpdateDeal godoc
// @ID          updateDeal
// @Summary     Replace a deal
// @Description Overwrites every editable field; omitted optional fields are cleared. Counters are kept.
// @Tags        Deals
// @Accept      json
// @Produce     json
// @Param       id    path      int                 true  "Deal ID"
// @Param       body  body      services.DealInput  true  "Deal payload"
// @Success     200   {object}  domain.Deal
// @Failure     400   {object}  handlers.ErrorResponse "Invalid payload"
// @Failure     404   {object}  handlers.ErrorResponse "Deal not found"
// @Router      /deals/{id} [put]
func (h *Handlers) UpdateDeal(c *gin.Context) {
	id, okID := dealID(c)
	if !okID {
		return
	}
	var in services.DealInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.deals.Update(c.Request.Context(), id, in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDeal godoc
// @ID          deleteDeal
// @Summary     Delete a deal
// @Tags        Deals
// @Param       id   path  int  true  "Deal ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Deal not found"
// @Router      /deals/{id} [delete]
func (h *Handlers) DeleteDeal(c *gin.Context) {
	id, okID := dealID(c)
	if !okID {
		return
	}
	if err := h.deals.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// GetDeal godoc
// @ID          getDeal
// @Summary     Deal detail
// @Description Resolves a slug to a deal with its primary category name and all category names.
// @Tags        Deals
// @Produce     json
// @Param       ref  path      string  true  "Deal slug"  example(task-magic)
// @Success     200  {object}  services.DealDetail
// @Failure     404  {object}  handlers.ErrorResponse "Deal not found"
// @Router      /deal/{ref} [get]
func (h *Handlers) GetDeal(c *gin.Context) {
	d, err := h.deals.GetDetail(c.Request.Context(), c.Param("ref"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// LikeDeal godoc
// @ID          likeDeal
// @Summary     Like a deal
// @Description Increments the deal's global like counter.
// @Tags        Likes
// @Produce     json
// @Param       ref  path      string  true  "Deal id or slug"
// @Success     200  {object}  handlers.LikesResponse
// @Failure     404  {object}  handlers.ErrorResponse "Deal not found"
// @Router      /deal/{ref}/like [post]
func (h *Handlers) LikeDeal(c *gin.Context) {
	id, found := h.resolveDeal(c)
	if !found {
		return
	}
	n, err := h.deals.Like(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.CountDealEvent(middleware.EventLike)
	ok(c, http.StatusOK, LikesResponse{Likes: n})
}

// UnlikeDeal godoc
// @ID          unlikeDeal
// @Summary     Unlike a deal
// @Description Decrements the deal's global like counter; it never goes below zero.
// @Tags        Likes
// @Produce     json
// @Param       ref  path      string  true  "Deal id or slug"
// @Success     200  {object}  handlers.LikesResponse
// @Failure     404  {object}  handlers.ErrorResponse "Deal not found"
// @Router      /deal/{ref}/unlike [post]
func (h *Handlers) UnlikeDeal(c *gin.Context) {
	id, found := h.resolveDeal(c)
	if !found {
		return
	}
	n, err := h.deals.Unlike(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.CountDealEvent(middleware.EventUnlike)
	ok(c, http.StatusOK, LikesResponse{Likes: n})
}

// SearchDeals godoc
// @ID          searchDeals
// @Summary     Search deals
// @Description Matches q against software names and category against primary category names. One of them is required.
// @Tags        Deals
// @Produce     json
// @Param       q         query   string  false "Name fragment"      example(magic)
// @Param       category  query   string  false "Category fragment"  example(Productivity)
// @Success     200  {array}  domain.Deal
// @Failure     400  {object} handlers.ErrorResponse "Neither q nor category given"
// @Router      /search [get]
func (h *Handlers) SearchDeals(c *gin.Context) {
	items, err := h.deals.Search(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// Stats godoc
// @ID          stats
// @Summary     Catalogue summary
// @Tags        Analytics
// @Produce     json
// @Success     200  {object}  services.Stats
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.deals.Stats(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
