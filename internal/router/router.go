package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/rdt-project/auth-service/internal/handler"
	"github.com/rdt-project/auth-service/internal/middleware"
	"github.com/rdt-project/auth-service/internal/token"
)

// RegisterRoutes registers routes that require neither authentication nor
// rate limiting. Currently that is only the health check, which load
// balancers and monitoring probes use to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the authentication endpoints. Unauthenticated
// operations live under /v1/auth; login and register additionally pass
// through the Redis token-bucket limiter so one client cannot hammer the
// credential check. Protected endpoints live under /v1 behind JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *token.Service, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limiter)
	g.POST("/register", a.Register, limiter)
	// Logout is accepted for API symmetry but invalidates nothing: tokens
	// are short-lived and there is no server-side session state.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(tokens))
	auth.GET("/me", a.Me)
}
