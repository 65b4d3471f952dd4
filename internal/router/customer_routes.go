package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All routes
// require a valid JWT and the CUSTOMER role.  Booking creation also passes
// through bookingLimit, a per-user token bucket.  Creating and cancelling
// bookings change stock, so invalidate purges cached search results after
// them.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, bookingLimit, invalidate echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/bookings", h.Create, bookingLimit, invalidate)
	g.GET("/my-bookings", h.ListMine)
	g.GET("/bookings/:id", h.Get)
	g.DELETE("/bookings/:id", h.Cancel, invalidate)
}
