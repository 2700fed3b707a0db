package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/handler"
	"github.com/stemsi/exprep-backend/internal/i18n"
	"github.com/stemsi/exprep-backend/internal/middleware"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Catalog  *handler.CatalogHandler
	Purchase *handler.PurchaseHandler
	Attempt  *handler.AttemptHandler
	Doubt    *handler.DoubtHandler
	Practice *handler.PracticeHandler
	WS       *handler.WSHandler
	Admin    *handler.AdminHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweep.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "Accept-Language"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(
		response.RequestIDMiddleware(),
		i18n.Middleware(),
		middleware.ErrorLogger(log),
		middleware.Brotli(),
	)

	router.GET("/health", handlers.System.Health)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)
	userAuth := []gin.HandlerFunc{middleware.RequireJWT(authService), middleware.CheckSession(authService)}

	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		auth.GET("/me", append(userAuth, handlers.Auth.Me)...)
		auth.POST("/logout", append(userAuth, handlers.Auth.Logout)...)
	}

	// ─── 2. Catalog (Public, Cacheable) ────────────────────────────────
	catalog := router.Group("/api/v1")
	catalog.Use(middleware.CacheControl(60))
	{
		catalog.GET("/exams", handlers.Catalog.ListExams)
		catalog.GET("/exams/:id", handlers.Catalog.GetExam)
		catalog.GET("/exams/:id/papers", handlers.Catalog.ListPapers)
		catalog.GET("/papers/:id", handlers.Catalog.GetPaper)
		catalog.GET("/papers/:id/questions", handlers.Catalog.ListQuestions)
	}

	// ─── 3. User Group (JWT + Session) ─────────────────────────────────
	userAPI := router.Group("/api/v1")
	userAPI.Use(userAuth...)
	userAPI.Use(middleware.NoStore())
	{
		userAPI.GET("/user/purchases", handlers.Purchase.ListPurchases)
		userAPI.POST("/purchases", handlers.Purchase.CreatePurchase)
		userAPI.POST("/exams/:id/enroll-free", handlers.Purchase.EnrollFree)
		userAPI.GET("/exams/:id/access", handlers.Purchase.CheckAccess)

		userAPI.GET("/user/attempts", handlers.Attempt.ListAttempts)
		userAPI.POST("/attempts", handlers.Attempt.CreateAttempt)
		userAPI.GET("/attempts/:id", handlers.Attempt.GetAttempt)
		userAPI.PATCH("/attempts/:id", handlers.Attempt.UpdateAttempt)
		userAPI.GET("/attempts/:id/review", handlers.Attempt.ReviewAttempt)
		userAPI.GET("/user/analysis", handlers.Attempt.GetAnalysis)

		userAPI.POST("/doubts", handlers.Doubt.Ask)

		// Practice session
		userAPI.POST("/session", handlers.Practice.StartSession)
		userAPI.GET("/session", handlers.Practice.GetSession)
		userAPI.DELETE("/session", handlers.Practice.EndSession)
		userAPI.POST("/session/pause", handlers.Practice.PauseSession)
		userAPI.POST("/session/resume", handlers.Practice.ResumeSession)
		userAPI.POST("/session/navigate", handlers.Practice.Navigate)
		userAPI.PUT("/session/questions/:qid/answer", handlers.Practice.SelectAnswer)
		userAPI.DELETE("/session/questions/:qid/answer", handlers.Practice.ClearAnswer)
		userAPI.POST("/session/questions/:qid/mark", handlers.Practice.ToggleMark)
		userAPI.GET("/session/questions/:qid/solution", handlers.Practice.GetSolution)
		userAPI.POST("/session/submit", handlers.Practice.Submit)
	}

	// ─── 4. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService), middleware.CheckSession(authService))
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	// ─── 5. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(userAuth...)
	adminAPI.Use(middleware.RequireRole(model.RoleAdmin))
	{
		adminAPI.POST("/exams", handlers.Admin.CreateExam)
		adminAPI.POST("/exams/:id/papers", handlers.Admin.CreatePaper)
		adminAPI.PUT("/papers/:id/questions", handlers.Admin.ReplaceQuestions)
		adminAPI.POST("/papers/:id/refresh-cache", handlers.Admin.RefreshPaperCache)

		adminAPI.GET("/system/metrics", handlers.System.Metrics)
		adminAPI.GET("/system/metrics/stream", handlers.System.MetricsSSE)
	}

	return router
}
