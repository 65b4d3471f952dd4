package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "PENDING"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
    BookingFailed    BookingStatus = "FAILED"
)

// Booking records a customer's purchase of Quantity tickets in one
// category.  Amounts are captured at reservation time so later price
// changes never alter an existing booking.
//
// Fields:
//  ID             – primary key identifier.
//  Reference      – public booking reference (UUID) handed to the
//                   payment gateway and shown to the customer.
//  UserID         – customer who booked.
//  EventID        – event booked.
//  OccurrenceID   – occurrence booked (nil for event-wide categories).
//  CategoryID     – ticket category booked.
//  Quantity       – number of tickets.
//  UnitPrice      – base price per ticket.
//  ConvenienceFee – total convenience fee for all tickets.
//  TotalAmount    – amount charged to the customer.
//  Commission     – platform commission for all tickets.
//  Status         – PENDING, CONFIRMED, CANCELLED or FAILED.
//  PaymentRef     – gateway transaction reference once paid (unique).
//  Gateway        – gateway that confirmed the payment.
//  ConfirmedAt    – when payment was confirmed.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Booking struct {
    ID             uint64        `json:"id"`
    Reference      string        `json:"reference"`
    UserID         uint64        `json:"user_id"`
    EventID        uint64        `json:"event_id"`
    OccurrenceID   *uint64       `json:"occurrence_id,omitempty"`
    CategoryID     uint64        `json:"category_id"`
    Quantity       int           `json:"quantity"`
    UnitPrice      float64       `json:"unit_price"`
    ConvenienceFee float64       `json:"convenience_fee"`
    TotalAmount    float64       `json:"total_amount"`
    Commission     float64       `json:"-"`
    Status         BookingStatus `json:"status"`
    PaymentRef     *string       `json:"payment_ref,omitempty"`
    Gateway        *string       `json:"gateway,omitempty"`
    ConfirmedAt    *time.Time    `json:"confirmed_at,omitempty"`
    CreatedAt      time.Time     `json:"created_at"`
    UpdatedAt      time.Time     `json:"updated_at"`
}
