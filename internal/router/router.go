package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/handler"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session     *handler.SessionHandler
	Scoring     *handler.ScoringHandler
	Declaration *handler.DeclarationHandler
	WS          *handler.WSHandler
}

// Deps carries the cross-cutting pieces the routes need.
type Deps struct {
	Auth        *middleware.Authenticator
	Owner       middleware.TestAuthorizer
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Log         zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set, otherwise allow all for dev.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())

	// ─── 1. Candidate Group ───────────────────────────────────────────
	candidate := api.Group("")
	candidate.Use(deps.Auth.RequireCandidate())
	if deps.RateLimiter != nil {
		candidate.Use(deps.RateLimiter.Middleware())
	}
	{
		candidate.POST("/sessions", handlers.Session.CreateSession)
		candidate.GET("/sessions/:token", handlers.Session.GetSession)
		candidate.PATCH("/sessions/:token", handlers.Session.PatchSession)
		candidate.GET("/sessions/:token/remaining", handlers.Session.GetRemaining)

		candidate.POST("/assessments/:test_id/submit", handlers.Scoring.Submit)
	}

	// ─── 2. Employer Group (JWT + ownership) ──────────────────────────
	employer := api.Group("/employer")
	employer.Use(deps.Auth.RequireEmployer())
	{
		owned := employer.Group("/tests/:test_id")
		owned.Use(middleware.RequireTestOwner(deps.Owner, "test_id"))
		{
			owned.POST("/results/declare", handlers.Declaration.DeclareAll)
			owned.GET("/results", handlers.Declaration.ListResults)
		}

		// Ownership is checked against the result's test inside the service.
		employer.POST("/results/:result_id/declare", handlers.Declaration.DeclareOne)
	}

	// ─── 3. WebSocket Group ───────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(deps.Auth.RequireCandidate())
	{
		ws.GET("/sessions/:token/stream", handlers.WS.SessionStream)
	}

	return router
}
