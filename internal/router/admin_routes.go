package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterAdmin registers catalog management under /v1/admin.  All routes
// require a valid JWT and the ADMIN role.  invalidate runs after every
// write so public reads stop serving the old catalog.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, invalidate echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		invalidate,
	)

	// ---- Venues ----
	g.POST("/venues", a.CreateVenue)
	g.GET("/venues", a.ListVenues)
	g.GET("/venues/:id", a.GetVenue)
	g.PUT("/venues/:id", a.UpdateVenue)
	g.DELETE("/venues/:id", a.DeleteVenue)

	// ---- Events ----
	g.POST("/events", a.CreateEvent)
	g.GET("/events", a.ListEvents)
	g.GET("/events/:id", a.GetEvent)
	g.PUT("/events/:id", a.UpdateEvent)
	g.DELETE("/events/:id", a.DeleteEvent)
	g.GET("/events/:id/bookings", a.ListEventBookings)

	// ---- Occurrences ----
	g.POST("/events/:id/occurrences", a.CreateOccurrence)
	g.GET("/events/:id/occurrences", a.ListOccurrences)
	g.PUT("/occurrences/:id", a.UpdateOccurrence)
	g.DELETE("/occurrences/:id", a.DeleteOccurrence)

	// ---- Ticket categories ----
	g.POST("/events/:id/categories", a.CreateCategory)
	g.GET("/events/:id/categories", a.ListCategories)
	g.PUT("/categories/:id", a.UpdateCategory)
	g.DELETE("/categories/:id", a.DeleteCategory)
}
