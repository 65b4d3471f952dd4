package handler

import (
    "context"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/repository"
    "github.com/iliyamo/event-ticketing/internal/service"
)

// Bookings is the part of service.BookingService the HTTP layer uses.
type Bookings interface {
    Quote(ctx context.Context, categoryID uint64, quantity int) (*service.QuoteResult, error)
    Reserve(ctx context.Context, req service.ReserveRequest) (*service.Reservation, error)
    Confirm(ctx context.Context, cb service.PaymentCallback) (*service.ConfirmResult, error)
    Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
    Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
    ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]repository.BookingView, error)
}

// Availability is the part of service.AvailabilityService the HTTP layer uses.
type Availability interface {
    Snapshots(ctx context.Context, cats []model.TicketCategory) ([]availability.Snapshot, error)
    EventAvailability(ctx context.Context, eventID uint64, occurrenceID *uint64) (*service.EventAvailability, error)
    RefreshSoldOut(ctx context.Context, eventID uint64) (bool, error)
}

type VenueStore interface {
    Create(ctx context.Context, v *model.Venue) error
    GetByID(ctx context.Context, id uint64) (*model.Venue, error)
    List(ctx context.Context, city string) ([]model.Venue, error)
    Update(ctx context.Context, v *model.Venue) error
    Delete(ctx context.Context, id uint64) error
}

type EventStore interface {
    Create(ctx context.Context, e *model.Event) error
    GetByID(ctx context.Context, id uint64) (*model.Event, error)
    List(ctx context.Context, limit, offset int) ([]model.Event, error)
    Update(ctx context.Context, e *model.Event) error
    Delete(ctx context.Context, id uint64) error
    Search(ctx context.Context, q repository.EventSearchQuery) ([]repository.PublicEventRow, int64, error)
}

type OccurrenceStore interface {
    Create(ctx context.Context, o *model.Occurrence) error
    GetByID(ctx context.Context, id uint64) (*model.Occurrence, error)
    ListByEvent(ctx context.Context, eventID uint64) ([]model.Occurrence, error)
    Update(ctx context.Context, o *model.Occurrence) error
    Delete(ctx context.Context, id uint64) error
}

type CategoryStore interface {
    Create(ctx context.Context, c *model.TicketCategory) error
    GetByID(ctx context.Context, id uint64) (*model.TicketCategory, error)
    ListByEvent(ctx context.Context, eventID uint64, occurrenceID *uint64, activeOnly bool) ([]model.TicketCategory, error)
    Update(ctx context.Context, c *model.TicketCategory) error
    Delete(ctx context.Context, id uint64) error
}

// EventBookings lists the bookings of one event for admins.
type EventBookings interface {
    ListByEvent(ctx context.Context, eventID uint64, status model.BookingStatus, limit, offset int) ([]repository.BookingView, error)
}
