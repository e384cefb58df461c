package routes

import (
	"log/slog"

	"windplex/internal/api/handlers"
	"windplex/internal/api/middleware"
	"windplex/internal/config"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps is what the HTTP surface needs from the process.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *slog.Logger
	// Limiter throttles login and registration; nil disables throttling.
	Limiter middleware.Limiter
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize services
	// config.Load has validated the TTL
	ttl, _ := cfg.SessionTTL()
	hasher := services.BcryptHasher{Cost: cfg.Security.BcryptCost}
	authService := services.NewAuthService(deps.DB, hasher)
	sessionService := services.NewSessionService(deps.DB, ttl)
	auditService := services.NewAuditService(deps.DB)
	pageService := services.NewPageService(deps.DB)
	submissionService := services.NewSubmissionService(deps.DB, pageService)
	moderationService := services.NewModerationService(deps.DB)
	moderatorService := services.NewModeratorService(deps.DB)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, sessionService, auditService, cfg)
	pageHandler := handlers.NewPageHandler(pageService, submissionService, cfg)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, moderationService, cfg)
	adminHandler := handlers.NewAdminHandler(pageService, moderatorService, auditService, cfg)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	// Middleware
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	var throttle gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		throttle = middleware.RateLimit(deps.Limiter, logger)
	}

	api := r.Group("/api")
	api.GET("/health", healthHandler.GetHealth)

	// Everything below knows who is calling, possibly nobody
	sessions := api.Group("")
	sessions.Use(middleware.SessionMiddleware(sessionService, cfg))

	// Wiki surface
	wiki := sessions.Group("/wiki")
	{
		auth := wiki.Group("/auth")
		{
			auth.POST("/register", throttle, authHandler.Register)
			auth.POST("/login", throttle, authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authHandler.GetMe)
		}

		pages := wiki.Group("/pages")
		{
			pages.GET("", pageHandler.GetPages)
			pages.GET("/:slug", pageHandler.GetPage)
			pages.POST("", middleware.RequireCapability(services.CapSubmit), pageHandler.CreatePage)
			pages.POST("/:slug/suggest", middleware.RequireCapability(services.CapSubmit), pageHandler.SuggestEdit)
			pages.GET("/:slug/gallery", pageHandler.GetGallery)
			pages.POST("/:slug/gallery", middleware.RequireCapability(services.CapManageMedia), pageHandler.AddGalleryImage)
			pages.DELETE("/:slug/gallery/:imageId", middleware.RequireCapability(services.CapManageMedia), pageHandler.DeleteGalleryImage)
			pages.PUT("/:slug/featured", middleware.RequireCapability(services.CapManageMedia), pageHandler.SetFeaturedImage)
		}

		submissions := wiki.Group("/submissions")
		{
			submissions.GET("", middleware.RequireCapability(services.CapReviewSubmissions), submissionHandler.GetPending)
			submissions.GET("/mine", middleware.RequireCapability(services.CapSubmit), submissionHandler.GetMine)
			submissions.PUT("/:id", middleware.RequireCapability(services.CapReviewSubmissions), submissionHandler.Review)
		}
	}

	// Administrative surface
	admin := sessions.Group("/admin")
	{
		admin.POST("/auth/login", throttle, authHandler.AdminLogin)
		admin.POST("/auth/logout", authHandler.AdminLogout)
		admin.GET("/auth/me", middleware.RequireAdminSession(), authHandler.AdminMe)
		admin.GET("/audit", middleware.RequireAdminSession(), adminHandler.GetAuditLogs)

		// Wiki sessions never reach the administrative surface, whatever
		// their role
		adminWiki := admin.Group("/wiki")
		adminWiki.Use(middleware.RequireAdminSession())
		{
			adminWiki.GET("/pages", middleware.RequireCapability(services.CapDeletePages), adminHandler.GetPages)
			adminWiki.DELETE("/pages/:id", middleware.RequireCapability(services.CapDeletePages), adminHandler.DeletePage)

			moderators := adminWiki.Group("/moderators")
			moderators.Use(middleware.RequireCapability(services.CapManageModerators))
			{
				moderators.GET("", adminHandler.GetModerators)
				moderators.POST("", adminHandler.AddModerator)
				moderators.DELETE("", adminHandler.RemoveModerator)
			}
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "API endpoint not found", "category": "not_found"})
	})
}
