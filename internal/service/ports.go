// Package service holds the booking and availability use cases.  It talks
// to storage and the broker through the small interfaces below so the
// rules can be tested with in-memory fakes; the MySQL and Redis
// implementations live in package repository.
package service

import (
    "context"
    "time"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/model"
    q "github.com/iliyamo/event-ticketing/internal/queue"
    "github.com/iliyamo/event-ticketing/internal/repository"
)

// EventStore reads events and persists their sold-out flag.
type EventStore interface {
    GetByID(ctx context.Context, id uint64) (*model.Event, error)
    SetSoldOut(ctx context.Context, id uint64, soldOut bool) error
}

// OccurrenceStore reads occurrences and persists their sold-out flag.
type OccurrenceStore interface {
    GetByID(ctx context.Context, id uint64) (*model.Occurrence, error)
    ListByEvent(ctx context.Context, eventID uint64) ([]model.Occurrence, error)
    SetSoldOut(ctx context.Context, id uint64, soldOut bool) error
}

// CategoryStore reads ticket categories and the booked quantities that
// count against them.
type CategoryStore interface {
    GetByID(ctx context.Context, id uint64) (*model.TicketCategory, error)
    ListByEvent(ctx context.Context, eventID uint64, occurrenceID *uint64, activeOnly bool) ([]model.TicketCategory, error)
    BookedQuantities(ctx context.Context, categoryIDs []uint64, statuses []model.BookingStatus) (map[uint64]int, error)
}

// BookingStore persists bookings.  Reserve and Confirm must admit tickets
// atomically with respect to other callers on the same category.
type BookingStore interface {
    Reserve(ctx context.Context, b *model.Booking, statuses []model.BookingStatus) (availability.Snapshot, error)
    Confirm(ctx context.Context, ref, paymentRef, gateway string, statuses []model.BookingStatus) (*model.Booking, bool, error)
    MarkFailed(ctx context.Context, ref, gateway string) (*model.Booking, bool, error)
    Cancel(ctx context.Context, id, userID uint64, now time.Time) (*model.Booking, error)
    GetByID(ctx context.Context, id uint64) (*model.Booking, error)
    ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]repository.BookingView, error)
    ExpirePending(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// IdempotencyStore claims client request keys.
type IdempotencyStore interface {
    Claim(ctx context.Context, scope, key string) (bool, error)
    Release(ctx context.Context, scope, key string) error
}

// Publisher emits booking domain events.
type Publisher interface {
    PublishBookingConfirmed(ctx context.Context, event q.BookingConfirmedEvent) error
}
