package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterRoutes registers the liveness and readiness checks.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers authentication routes.  Register, login, refresh
// and logout live under /v1/auth and need no session; /v1/me requires a
// valid access token of either role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleCustomer),
	)
}

// RegisterPublic registers unauthenticated browse endpoints.  Venue lists
// and event search go through the response cache.  Event detail and
// availability embed live snapshots and are computed on every read, as
// are quotes.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, b *handler.BookingHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/venues", p.ListVenues, cache)
	e.GET("/v1/events", p.SearchEvents, cache)
	e.GET("/v1/events/:id", p.GetEvent)
	e.GET("/v1/events/:id/availability", p.GetAvailability)
	e.POST("/v1/categories/:id/quote", b.Quote)
}

// RegisterPayments registers the payment gateway callback.  It is
// authenticated by the shared secret, not by JWT.  A confirmation can
// flip sold-out flags, so invalidate runs after it.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, invalidate echo.MiddlewareFunc) {
	e.POST("/v1/payments/callback", p.Callback, invalidate)
}
