package handler

import (
    "context"

    "github.com/labstack/echo/v4"
)

// AdminHandler serves catalog management for ADMIN users.
type AdminHandler struct {
    Venues       VenueStore
    Events       EventStore
    Occurrences  OccurrenceStore
    Categories   CategoryStore
    Availability Availability
    Bookings     EventBookings
}

// NewAdminHandler constructs an AdminHandler and panics if any dependency is nil.
func NewAdminHandler(venues VenueStore, events EventStore, occurrences OccurrenceStore, categories CategoryStore, avail Availability, bookings EventBookings) *AdminHandler {
    if venues == nil || events == nil || occurrences == nil || categories == nil || avail == nil || bookings == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    return &AdminHandler{
        Venues:       venues,
        Events:       events,
        Occurrences:  occurrences,
        Categories:   categories,
        Availability: avail,
        Bookings:     bookings,
    }
}

// refreshSoldOut recomputes the cached flags after an inventory change.
// Failures only leave the flag stale until the next booking refreshes it.
func (h *AdminHandler) refreshSoldOut(c echo.Context, eventID uint64) {
    if _, err := h.Availability.RefreshSoldOut(context.WithoutCancel(c.Request().Context()), eventID); err != nil {
        c.Logger().Warnf("refresh sold-out for event %d: %v", eventID, err)
    }
}
