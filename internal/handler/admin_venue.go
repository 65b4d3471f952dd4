package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/model"
)

type venueReq struct {
    Name     string  `json:"name" validate:"required,max=190"`
    City     string  `json:"city" validate:"required,max=120"`
    Address  *string `json:"address" validate:"omitempty,max=255"`
    Capacity int     `json:"capacity" validate:"gte=0"`
}

func (r venueReq) apply(v *model.Venue) {
    v.Name = strings.TrimSpace(r.Name)
    v.City = strings.TrimSpace(r.City)
    v.Address = r.Address
    v.Capacity = r.Capacity
}

// CreateVenue handles POST /v1/admin/venues.
func (h *AdminHandler) CreateVenue(c echo.Context) error {
    var req venueReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    var v model.Venue
    req.apply(&v)
    if err := h.Venues.Create(c.Request().Context(), &v); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, v)
}

// ListVenues handles GET /v1/admin/venues?city=.
func (h *AdminHandler) ListVenues(c echo.Context) error {
    items, err := h.Venues.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("city")))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetVenue handles GET /v1/admin/venues/:id.
func (h *AdminHandler) GetVenue(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    v, err := h.Venues.GetByID(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, v)
}

// UpdateVenue handles PUT /v1/admin/venues/:id.
func (h *AdminHandler) UpdateVenue(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req venueReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    ctx := c.Request().Context()
    v, err := h.Venues.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    req.apply(v)
    if err := h.Venues.Update(ctx, v); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, v)
}

// DeleteVenue handles DELETE /v1/admin/venues/:id.  Venues with events
// cannot be deleted.
func (h *AdminHandler) DeleteVenue(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Venues.Delete(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
