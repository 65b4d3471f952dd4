package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/pricing"
)

type occurrenceReq struct {
    StartsAt time.Time `json:"starts_at" validate:"required"`
    EndsAt   time.Time `json:"ends_at" validate:"required"`
}

// CreateOccurrence handles POST /v1/admin/events/:id/occurrences.
func (h *AdminHandler) CreateOccurrence(c echo.Context) error {
    eventID, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req occurrenceReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    if !req.EndsAt.After(req.StartsAt) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
    }
    o := model.Occurrence{EventID: eventID, StartsAt: req.StartsAt.UTC(), EndsAt: req.EndsAt.UTC()}
    if err := h.Occurrences.Create(c.Request().Context(), &o); err != nil {
        return respondError(c, err)
    }
    h.refreshSoldOut(c, eventID)
    return c.JSON(http.StatusCreated, o)
}

// ListOccurrences handles GET /v1/admin/events/:id/occurrences.
func (h *AdminHandler) ListOccurrences(c echo.Context) error {
    eventID, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx := c.Request().Context()
    if _, err := h.Events.GetByID(ctx, eventID); err != nil {
        return respondError(c, err)
    }
    items, err := h.Occurrences.ListByEvent(ctx, eventID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// UpdateOccurrence handles PUT /v1/admin/occurrences/:id.
func (h *AdminHandler) UpdateOccurrence(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req occurrenceReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    if !req.EndsAt.After(req.StartsAt) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
    }
    ctx := c.Request().Context()
    o, err := h.Occurrences.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    o.StartsAt, o.EndsAt = req.StartsAt.UTC(), req.EndsAt.UTC()
    if err := h.Occurrences.Update(ctx, o); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, o)
}

// DeleteOccurrence handles DELETE /v1/admin/occurrences/:id.
func (h *AdminHandler) DeleteOccurrence(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx := c.Request().Context()
    o, err := h.Occurrences.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    if err := h.Occurrences.Delete(ctx, id); err != nil {
        return respondError(c, err)
    }
    h.refreshSoldOut(c, o.EventID)
    return c.NoContent(http.StatusNoContent)
}

type feeReq struct {
    Type  string  `json:"type"`
    Value float64 `json:"value" validate:"gte=0"`
}

func (r feeReq) rule() (pricing.FeeRule, error) {
    t, err := pricing.ParseFeeType(r.Type)
    if err != nil {
        return pricing.FeeRule{}, err
    }
    rule := pricing.FeeRule{Type: t, Value: r.Value}
    return rule, rule.Validate()
}

type categoryReq struct {
    OccurrenceID   *uint64 `json:"occurrence_id"`
    Name           string  `json:"name" validate:"required,max=120"`
    BasePrice      float64 `json:"base_price" validate:"gt=0"`
    ConvenienceFee feeReq  `json:"convenience_fee"`
    Commission     feeReq  `json:"commission"`
    TotalInventory int     `json:"total_inventory" validate:"gte=0"`
    MaxPerBooking  int     `json:"max_per_booking" validate:"gte=0"`
    IsActive       *bool   `json:"is_active"`
}

// apply validates the fee rules and copies the request onto c.  The
// occurrence is not touched; it is fixed at creation.
func (r categoryReq) apply(c *model.TicketCategory) (string, bool) {
    conv, err := r.ConvenienceFee.rule()
    if err != nil {
        return "convenience_fee: " + err.Error(), false
    }
    comm, err := r.Commission.rule()
    if err != nil {
        return "commission: " + err.Error(), false
    }
    c.Name = strings.TrimSpace(r.Name)
    c.BasePrice = pricing.Round2(r.BasePrice)
    c.ConvenienceFee = conv
    c.Commission = comm
    c.TotalInventory = r.TotalInventory
    c.MaxPerBooking = r.MaxPerBooking
    if r.IsActive != nil {
        c.IsActive = *r.IsActive
    }
    return "", true
}

// CreateCategory handles POST /v1/admin/events/:id/categories.  When
// occurrence_id is set it must belong to the event.
func (h *AdminHandler) CreateCategory(c echo.Context) error {
    eventID, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req categoryReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    ctx := c.Request().Context()
    if _, err := h.Events.GetByID(ctx, eventID); err != nil {
        return respondError(c, err)
    }
    if req.OccurrenceID != nil {
        o, err := h.Occurrences.GetByID(ctx, *req.OccurrenceID)
        if err != nil {
            return respondError(c, err)
        }
        if o.EventID != eventID {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "occurrence belongs to another event"})
        }
    }
    cat := model.TicketCategory{EventID: eventID, OccurrenceID: req.OccurrenceID, IsActive: true}
    if msg, ok := req.apply(&cat); !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    if err := h.Categories.Create(ctx, &cat); err != nil {
        return respondError(c, err)
    }
    h.refreshSoldOut(c, eventID)
    return c.JSON(http.StatusCreated, cat)
}

// ListCategories handles GET /v1/admin/events/:id/categories, including
// inactive ones.
func (h *AdminHandler) ListCategories(c echo.Context) error {
    eventID, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx := c.Request().Context()
    if _, err := h.Events.GetByID(ctx, eventID); err != nil {
        return respondError(c, err)
    }
    cats, err := h.Categories.ListByEvent(ctx, eventID, nil, false)
    if err != nil {
        return respondError(c, err)
    }
    snaps, err := h.Availability.Snapshots(ctx, cats)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]categoryView, 0, len(cats))
    for i, cat := range cats {
        out = append(out, categoryView{TicketCategory: cat, Price: cat.Price(), Availability: snaps[i]})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// UpdateCategory handles PUT /v1/admin/categories/:id.  Lowering the
// inventory below what is already booked is allowed; the category then
// simply reports zero available.
func (h *AdminHandler) UpdateCategory(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req categoryReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    ctx := c.Request().Context()
    cat, err := h.Categories.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    if msg, ok := req.apply(cat); !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    if err := h.Categories.Update(ctx, cat); err != nil {
        return respondError(c, err)
    }
    h.refreshSoldOut(c, cat.EventID)
    return c.JSON(http.StatusOK, cat)
}

// DeleteCategory handles DELETE /v1/admin/categories/:id.  Booked
// categories answer 409 and should be deactivated instead.
func (h *AdminHandler) DeleteCategory(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx := c.Request().Context()
    cat, err := h.Categories.GetByID(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    if err := h.Categories.Delete(ctx, id); err != nil {
        return respondError(c, err)
    }
    h.refreshSoldOut(c, cat.EventID)
    return c.NoContent(http.StatusNoContent)
}
