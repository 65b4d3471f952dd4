// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedQueue is the durable queue confirmed bookings are
// published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a payment callback confirms a
// booking.  It carries enough for downstream consumers to log, notify or
// feed analytics without querying the primary database.  Timestamps are
// RFC 3339 in UTC.
type BookingConfirmedEvent struct {
    BookingID    uint64  `json:"booking_id"`
    Reference    string  `json:"reference"`
    UserID       uint64  `json:"user_id"`
    EventID      uint64  `json:"event_id"`
    EventTitle   string  `json:"event_title"`
    OccurrenceID *uint64 `json:"occurrence_id,omitempty"`
    StartsAt     string  `json:"starts_at,omitempty"`
    CategoryID   uint64  `json:"category_id"`
    CategoryName string  `json:"category_name"`
    Quantity     int     `json:"quantity"`
    TotalAmount  float64 `json:"total_amount"`
    PaymentRef   string  `json:"payment_ref"`
    Gateway      string  `json:"gateway,omitempty"`
    ConfirmedAt  string  `json:"confirmed_at"`
}
