package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/model"
)

type eventReq struct {
    VenueID     uint64  `json:"venue_id" validate:"required"`
    Title       string  `json:"title" validate:"required,max=200"`
    Description *string `json:"description"`
    Genre       string  `json:"genre" validate:"max=60"`
    Status      string  `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED CANCELLED draft published cancelled"`
}

func (r eventReq) apply(e *model.Event) {
    e.VenueID = r.VenueID
    e.Title = strings.TrimSpace(r.Title)
    e.Description = r.Description
    e.Genre = strings.ToLower(strings.TrimSpace(r.Genre))
    if r.Status != "" {
        e.Status = model.EventStatus(strings.ToUpper(r.Status))
    }
}

// CreateEvent handles POST /v1/admin/events.  New events default to DRAFT.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req eventReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    e := model.Event{CreatedBy: uid}
    req.apply(&e)
    if err := h.Events.Create(c.Request().Context(), &e); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, e)
}

// ListEvents handles GET /v1/admin/events.  Every status is listed.
func (h *AdminHandler) ListEvents(c echo.Context) error {
    page, size := pageParams(c)
    items, err := h.Events.List(c.Request().Context(), size, (page-1)*size)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page, "page_size": size})
}

// GetEvent handles GET /v1/admin/events/:id.
func (h *AdminHandler) GetEvent(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    e, err := h.Events.GetByID(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, e)
}

// UpdateEvent handles PUT /v1/admin/events/:id.  An empty status keeps
// the current one.
func (h *AdminHandler) UpdateEvent(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req eventReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    ctx := c.Request().Context()
    e, err := h.Events.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    req.apply(e)
    if err := h.Events.Update(ctx, e); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, e)
}

// DeleteEvent handles DELETE /v1/admin/events/:id.  Events with bookings
// answer 409 and should be cancelled instead.
func (h *AdminHandler) DeleteEvent(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Events.Delete(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// ListEventBookings handles GET /v1/admin/events/:id/bookings?status=.
func (h *AdminHandler) ListEventBookings(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    status := model.BookingStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))
    switch status {
    case "", model.BookingPending, model.BookingConfirmed, model.BookingCancelled, model.BookingFailed:
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
    }
    ctx := c.Request().Context()
    if _, err := h.Events.GetByID(ctx, id); err != nil {
        return respondError(c, err)
    }
    page, size := pageParams(c)
    items, err := h.Bookings.ListByEvent(ctx, id, status, size, (page-1)*size)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page, "page_size": size})
}
