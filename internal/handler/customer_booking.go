package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/service"
)

// HeaderIdempotencyKey lets clients retry POST /v1/bookings safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// BookingHandler serves quotes and the customer's own bookings.
type BookingHandler struct {
    Bookings Bookings
}

func NewBookingHandler(b Bookings) *BookingHandler { return &BookingHandler{Bookings: b} }

type quoteReq struct {
    Quantity int `json:"quantity"`
}

type reserveReq struct {
    CategoryID   uint64  `json:"category_id" validate:"required"`
    OccurrenceID *uint64 `json:"occurrence_id"`
    Quantity     int     `json:"quantity"`
}

// Quote handles POST /v1/categories/:id/quote.
func (h *BookingHandler) Quote(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req quoteReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    q, err := h.Bookings.Quote(c.Request().Context(), id, req.Quantity)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, q)
}

// Create handles POST /v1/bookings.  The booking starts PENDING and holds
// its tickets until the payment callback arrives or the hold expires.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
    if len(key) > maxIdempotencyKeyLen {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Idempotency-Key too long"})
    }
    var req reserveReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    res, err := h.Bookings.Reserve(c.Request().Context(), service.ReserveRequest{
        UserID:         uid,
        CategoryID:     req.CategoryID,
        OccurrenceID:   req.OccurrenceID,
        Quantity:       req.Quantity,
        IdempotencyKey: key,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    page, size := pageParams(c)
    items, err := h.Bookings.ListForUser(c.Request().Context(), uid, page, size)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page, "page_size": size})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    b, err := h.Bookings.Get(c.Request().Context(), id, uid)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /v1/bookings/:id.  Cancelling twice is not an error.
func (h *BookingHandler) Cancel(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    b, err := h.Bookings.Cancel(c.Request().Context(), id, uid)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}
