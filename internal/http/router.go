// Package httpapi assembles the deals API: the Gin middleware chain, the
// operational endpoints (/health, /ready, /metrics, /swagger) and the public
// routes under the configured base path.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/docs"
	"github.com/tbourn/go-deals-backend/internal/config"
	"github.com/tbourn/go-deals-backend/internal/http/handlers"
	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
)

// maxBodyBytes caps request bodies; the largest legitimate body is a deal.
const maxBodyBytes = 1 << 20

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExpose  = []string{middleware.HeaderRequestID, "Content-Length", "ETag", handlers.HeaderReplayed, "Retry-After"}
)

// RegisterRoutes installs the middleware chain and every endpoint on r.
//
// Order: tracing, request id, access log, recovery, body cap, metrics,
// idempotency (so replays can skip the limiter), rate limit, CORS, security
// headers. The public API additionally gzips its responses.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if cfg.LogPretty {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}))
	}
	r.Use(middleware.Recovery(), limitBody(maxBodyBytes), middleware.Metrics())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idem.Exists))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientAndMethodClass()).Handler())
	r.Use(corsChain(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	mountOps(r, db, cfg)

	h := handlers.New(handlers.Deps{
		Deals: &services.DealService{
			DB:            db,
			MaxCategories: cfg.Paging.MaxCategories,
			SearchLimit:   cfg.Paging.SearchLimit,
		},
		Categories:  services.NewCategoryService(db),
		Likes:       &services.LikeLedger{DB: db},
		Related:     &services.RelatedService{DB: db, PageSize: cfg.Paging.RelatedPageSize},
		Analytics:   &services.AnalyticsService{DB: db},
		Idempotency: idem,
	}, handlers.Options{
		RelatedPageSize:    cfg.Paging.RelatedPageSize,
		RelatedInitialSize: cfg.Paging.RelatedInitialSize,
		RandomCategories:   cfg.Paging.RandomCategories,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	mountAPI(api, h)
}

// mountOps registers the endpoints used by orchestrators and operators.
func mountOps(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx, db); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness check failed")
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable, "store unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// mountAPI registers the public deals API on g.
func mountAPI(g *gin.RouterGroup, h *handlers.Handlers) {
	g.GET("/deals", h.ListDeals)
	g.POST("/deals", h.CreateDeal)
	g.PUT("/deals/:id", h.UpdateDeal)
	g.DELETE("/deals/:id", h.DeleteDeal)
	g.GET("/deal/:ref", h.GetDeal)
	g.POST("/deal/:ref/like", h.LikeDeal)
	g.POST("/deal/:ref/unlike", h.UnlikeDeal)
	g.GET("/search", h.SearchDeals)

	g.GET("/deal/:ref/related", h.RelatedDeals)
	g.POST("/related-like", h.RelatedLike)
	g.POST("/related-unlike", h.RelatedUnlike)

	g.GET("/categories", h.RandomCategories)
	g.GET("/categories/page", h.CategoriesPage)
	g.POST("/categories", h.CreateCategory)
	g.DELETE("/categories/:id", h.DeleteCategory)
	g.GET("/all-categories", h.AllCategories)
	g.GET("/category/:slug", h.CategoryDeals)

	g.POST("/analytics", h.RecordAnalytics)
	g.GET("/analytics", h.RecentAnalytics)
	g.GET("/stats", h.Stats)
}

// corsChain returns the CORS middleware for the configured origins. With no
// origins every origin is allowed and Access-Control-Allow-Origin: * is sent
// even without an Origin header, so browser-less probes see the same headers.
// With origins, an allowed Origin is echoed on every response; the cors
// package skips requests it considers same-origin.
func corsChain(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: corsExpose,
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(cc)}
	}

	cc.AllowOrigins = origins
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	echo := func(c *gin.Context) {
		if o := c.GetHeader("Origin"); allowed[o] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", o)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(cc)}
}

// limitBody makes body reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix; "/" and "" both mean root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	return r.Group(strings.TrimSuffix(prefix, "/"))
}
