// Analytics HTTP handlers.
//
//   - POST /analytics   (record view, click, or copy_code)
//   - GET  /analytics   (newest events joined with deal name and discount)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// RecordAnalytics godoc
// @ID          recordAnalytics
// @Summary     Record an engagement event
// @Description Appends an event. A click also increments the deal's click counter. The client IP and user agent are taken from the request.
// @Tags        Analytics
// @Accept      json
// @Produce     json
// @Param       body  body      services.AnalyticsInput  true  "Event"
// @Success     201   {object}  domain.AnalyticsEvent
// @Failure     400   {object}  handlers.ErrorResponse "Invalid event"
// @Router      /analytics [post]
func (h *Handlers) RecordAnalytics(c *gin.Context) {
	var in services.AnalyticsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in.IPAddress = middleware.ClientID(c)
	in.UserAgent = c.Request.UserAgent()

	ev, err := h.analytics.Record(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.CountDealEvent(middleware.EventAnalytics)
	ok(c, http.StatusCreated, ev)
}

// RecentAnalytics godoc
// @ID          recentAnalytics
// @Summary     Recent engagement events
// @Tags        Analytics
// @Produce     json
// @Param       limit  query  int  false "Maximum events"  minimum(1) maximum(500) default(50)
// @Success     200  {array}  repo.AnalyticsRow
// @Router      /analytics [get]
func (h *Handlers) RecentAnalytics(c *gin.Context) {
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), services.DefaultRecentAnalytics), 1, 500)
	rows, err := h.analytics.Recent(c.Request.Context(), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(rows))
}
