// Related-deal HTTP handlers.
//
// This file exposes the endpoints behind the "related deals" carousel:
//   - GET  /deal/{ref}/related   (ranked page, exclude=<ids already shown>)
//   - POST /related-like         (contextual like for a source/related pair)
//   - POST /related-unlike       (remove a pair's contextual likes)
//
// Paging is client driven: the client passes every id it has already shown in
// exclude, and the next call returns the next best deals that are not in it.
//
// Idempotency:
// If the client supplies an Idempotency-Key on /related-like and a previous
// request with the same key from the same client succeeded, the like is not
// counted again; the handler returns the current count and sets
// `Idempotency-Replayed: true`.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// RelatedDeals godoc
// @ID          relatedDeals
// @Summary     Related deals
// @Description Ranks other active and inactive deals for a source deal: contextual likes for the source first, then global likes, then id. The source deal and every excluded id are never returned.
// @Tags        Related
// @Produce     json
// @Param       ref      path   string  true  "Source deal slug"            example(task-magic)
// @Param       exclude  query  string  false "Comma separated ids to skip"  example(1,2,3)
// @Param       limit    query  int     false "Page size (max 50)"           minimum(1) maximum(50)
// @Success     200  {array}  repo.RelatedDeal
// @Failure     404  {object} handlers.ErrorResponse "Source deal not found"
// @Router      /deal/{ref}/related [get]
func (h *Handlers) RelatedDeals(c *gin.Context) {
	exclude := utils.ParseUintList(c.Query("exclude"))
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	if limit <= 0 {
		limit = h.opts.RelatedPageSize
		if len(exclude) == 0 {
			limit = h.opts.RelatedInitialSize
		}
	}
	items, err := h.related.RelatedBySlug(c.Request.Context(), c.Param("ref"), exclude, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// RelatedLike godoc
// @ID          relatedLike
// @Summary     Like a related deal in context
// @Description Increments the contextual like count of relatedDealId as shown next to sourceDealId. Global likes are not touched.
// @Tags        Related
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string               false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    services.PairInput   true  "Deal pair"
// @Success     200  {object} handlers.LikesResponse
// @Header      200  {string} Idempotency-Replayed "true when the like was not counted again"
// @Failure     400  {object} handlers.ErrorResponse "Invalid pair"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /related-like [post]
func (h *Handlers) RelatedLike(c *gin.Context) {
	var in services.PairInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	// Replay path: answer with the current count without counting again.
	if middleware.IsReplay(c) {
		n, err := h.likes.Count(ctx, in)
		if err != nil {
			failErr(c, err)
			return
		}
		replayed(c, LikesResponse{Likes: n})
		return
	}

	n, err := h.likes.Like(ctx, in)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.CountDealEvent(middleware.EventRelatedLike)
	resp := LikesResponse{Likes: n}

	// Store path, best effort.
	if key, has := middleware.GetIdempotencyKey(c); has && h.idem != nil {
		body, _ := json.Marshal(resp)
		if err := h.idem.Save(ctx, middleware.ClientID(c), middleware.Scope(c), key, http.StatusOK, string(body)); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency save failed")
		}
	}
	ok(c, http.StatusOK, resp)
}

// RelatedUnlike godoc
// @ID          relatedUnlike
// @Summary     Remove a contextual like
// @Description Deletes the pair's contextual likes. Removing an absent pair succeeds.
// @Tags        Related
// @Accept      json
// @Produce     json
// @Param       body  body    services.PairInput  true  "Deal pair"
// @Success     200  {object} handlers.LikesResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid pair"
// @Router      /related-unlike [post]
func (h *Handlers) RelatedUnlike(c *gin.Context) {
	var in services.PairInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()
	if err := h.likes.Unlike(ctx, in); err != nil {
		failErr(c, err)
		return
	}
	n, err := h.likes.Count(ctx, in)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.CountDealEvent(middleware.EventRelatedUnlike)
	ok(c, http.StatusOK, LikesResponse{Likes: n})
}
