package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/work-item-tracker/internal/config"
	"github.com/iliyamo/work-item-tracker/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/work-item-tracker/internal/middleware" // import middleware for JWT authentication and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// This endpoint can be used by load balancers or monitoring systems to
	// verify that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.  The rate limiter guards the
// challenge-issuing endpoints so verification and reset codes cannot be
// re-requested at will; when rdb is nil the limiter is a no-op.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	limiter := middleware.NewTokenBucket(rlCfg, rdb)

	g := e.Group("/v1/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification, limiter)
	g.POST("/forgot-password", a.ForgotPassword, limiter)
	g.POST("/validate-reset-token", a.ValidateResetToken)
	g.POST("/reset-password", a.ResetPassword)
	// Logout without a JWT: clients send their session_token in the body.
	g.POST("/logout", a.Logout)

	// Routes that require a valid access token.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.PUT("/change-password", a.ChangePassword)
	// Logout with a JWT: the session slot of the authenticated user is
	// cleared even when no session token is supplied.
	auth.POST("/logout", a.Logout)
}

// RegisterWorkItems registers the work item CRUD, stats and listing routes.
// Everything here requires authentication.  The fixed-path routes (bulk,
// stats, my/..., overdue, assignees) are declared alongside the :id routes;
// Echo gives static segments precedence over the parameterized ones.
func RegisterWorkItems(e *echo.Echo, w *handler.WorkItemHandler, jwtSecret string) {
	g := e.Group("/v1/workitems")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.GET("", w.List)
	g.POST("", w.Create)
	g.PUT("/bulk", w.BulkUpdate)
	g.GET("/stats", w.Stats)
	g.GET("/my/assigned", w.MyAssigned)
	g.GET("/my/created", w.MyCreated)
	g.GET("/status/:status", w.ByStatus)
	g.GET("/overdue", w.Overdue)
	g.GET("/assignees/list", w.Assignees)

	g.GET("/:id", w.Get)
	g.PUT("/:id", w.Update)
	g.DELETE("/:id", w.Delete)
	g.POST("/:id/restore", w.Restore)
	g.DELETE("/:id/permanent", w.PermanentDelete)
}
