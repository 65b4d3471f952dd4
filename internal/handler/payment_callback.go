package handler

import (
    "crypto/subtle"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/service"
)

// HeaderCallbackSecret carries the secret shared with the payment gateway.
const HeaderCallbackSecret = "X-Callback-Secret"

// PaymentHandler receives payment gateway notifications.
type PaymentHandler struct {
    Bookings Bookings
    Secret   string
}

func NewPaymentHandler(b Bookings, secret string) *PaymentHandler {
    return &PaymentHandler{Bookings: b, Secret: secret}
}

type callbackReq struct {
    BookingRef string `json:"booking_ref" validate:"required"`
    PaymentRef string `json:"payment_ref"`
    Gateway    string `json:"gateway" validate:"max=40"`
    Status     string `json:"status" validate:"required"`
}

// Callback handles POST /v1/payments/callback.  A repeated notification
// answers 200 with "changed": false.
func (h *PaymentHandler) Callback(c echo.Context) error {
    got := c.Request().Header.Get(HeaderCallbackSecret)
    if h.Secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid callback secret"})
    }
    var req callbackReq
    if handled, err := bindAndValidate(c, &req); handled {
        return err
    }
    res, err := h.Bookings.Confirm(c.Request().Context(), service.PaymentCallback{
        BookingRef: req.BookingRef,
        PaymentRef: req.PaymentRef,
        Gateway:    req.Gateway,
        Status:     req.Status,
    })
    if err != nil {
        return respondError(c, err)
    }
    if res.Changed {
        c.Logger().Infof("payment callback: booking %s is now %s", res.Booking.Reference, res.Booking.Status)
    }
    return c.JSON(http.StatusOK, res)
}
