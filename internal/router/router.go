package router

import (
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived resources the HTTP layer is built from.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Limiter *middleware.IPRateLimiter
	// Catalog overrides the service built from DB and Redis; tests use it.
	Catalog service.CatalogService
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware())
	}

	// ── Services ─────────────────────────────────────────────────────────────
	catalogSvc := deps.Catalog
	if catalogSvc == nil {
		productRepo := repository.NewProductRepository(deps.DB)
		priceChangeRepo := repository.NewPriceChangeRepository(deps.DB)
		cache := service.NewRedisPricingCache(deps.Redis, cfg.PricingCacheTTL)
		catalogSvc = service.NewCatalogService(productRepo, priceChangeRepo, cache)
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	catalogH := handler.NewCatalogHandler(catalogSvc)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(deps.DB, deps.Redis))

	products := r.Group("/v1/products/:id")
	{
		products.GET("/pricing", catalogH.Pricing)
		products.POST("/selection", catalogH.CheckSelection)
		products.GET("/price-changes", catalogH.PriceChanges)
	}

	return r
}
