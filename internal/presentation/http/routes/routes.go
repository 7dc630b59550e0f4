package routes

import (
	"time"

	"github.com/dukasoft/tillpoint-api/internal/config"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/handler"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/middleware"
	"github.com/dukasoft/tillpoint-api/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Auth       *handler.AuthHandler
	WorkPeriod *handler.WorkPeriodHandler
	Receipt    *handler.ReceiptHandler
	Payment    *handler.PaymentHandler
	Report     *handler.ReportHandler
	Audit      *handler.AuditHandler
	Product    *handler.ProductHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	Logger          *logrus.Logger
	IdempotencyRepo domainRepo.IdempotencyRepository
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (no authentication required)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// Gateway callbacks carry their own reference validation and must
		// stay reachable without an operator token.
		callbacks := v1.Group("/payments/callbacks")
		{
			callbacks.POST("/confirmed", h.Payment.Confirm)
			callbacks.POST("/failed", h.Payment.Fail)
		}

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))

		rateLimiter := middleware.NewUserRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(deps.Cfg.RateLimit.Requests) / float64(deps.Cfg.RateLimit.Duration),
			BurstSize:         deps.Cfg.RateLimit.Requests,
			CleanupInterval:   5 * time.Minute,
			EntryTTL:          10 * time.Minute,
		})
		protected.Use(rateLimiter.Middleware())

		registerProtectedRoutes(protected, h, deps)
	}

	return router
}

func registerProtectedRoutes(rg *gin.RouterGroup, h *Handlers, deps *Deps) {
	idempotency := middleware.Idempotency(middleware.IdempotencyConfig{Repo: deps.IdempotencyRepo})

	rg.POST("/auth/register", middleware.RequireRole("manager", "admin"), h.Auth.Register)
	rg.GET("/auth/profile", h.Auth.Profile)

	periods := rg.Group("/work-periods")
	{
		periods.POST("", middleware.RequirePermission("open-period"), idempotency, h.WorkPeriod.Open)
		periods.GET("", h.WorkPeriod.List)
		periods.GET("/current", h.WorkPeriod.Current)
		periods.GET("/:id", h.WorkPeriod.Get)
		periods.POST("/:id/close", middleware.RequirePermission("close-period"), idempotency, h.WorkPeriod.Close)
		periods.POST("/:id/payouts", middleware.RequirePermission("record-payout"), idempotency, h.WorkPeriod.RecordPayout)
		periods.GET("/:id/payouts", h.WorkPeriod.ListPayouts)
		periods.GET("/:id/x-report", middleware.RequirePermission("view-reports"), h.Report.XReport)
		periods.GET("/:id/z-report", middleware.RequirePermission("view-reports"), h.Report.ZReport)
	}

	receipts := rg.Group("/receipts")
	{
		receipts.POST("", middleware.RequirePermission("create-receipt"), idempotency, h.Receipt.Create)
		receipts.GET("", h.Receipt.List)
		receipts.GET("/:id", h.Receipt.Get)
		receipts.POST("/:id/items", idempotency, h.Receipt.AddItems)
		receipts.POST("/:id/settle", middleware.RequirePermission("settle-receipt"), idempotency, h.Receipt.Settle)
		receipts.POST("/:id/void", middleware.RequirePermission("void-receipt"), idempotency, h.Receipt.Void)
		receipts.POST("/:id/split", idempotency, h.Receipt.Split)
		receipts.POST("/merge", idempotency, h.Receipt.Merge)
		// The requester presents the authorizer's credentials in the body;
		// rank checks happen against the authorizer, not the caller.
		receipts.POST("/:id/override", h.Receipt.RequestOverride)
		receipts.POST("/:id/payments/async", middleware.RequirePermission("settle-receipt"), idempotency, h.Payment.InitiateAsync)
	}

	rg.POST("/payments/cancel", middleware.RequirePermission("settle-receipt"), h.Payment.Cancel)

	rg.GET("/audit", middleware.RequirePermission("view-audit"), h.Audit.List)

	products := rg.Group("/products")
	{
		products.POST("", middleware.RequirePermission("manage-products"), h.Product.Create)
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.Get)
	}
}
