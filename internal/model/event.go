package model

import "time"

// EventStatus is the publication state of an event.
type EventStatus string

const (
    EventDraft     EventStatus = "DRAFT"
    EventPublished EventStatus = "PUBLISHED"
    EventCancelled EventStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
    switch s {
    case EventDraft, EventPublished, EventCancelled:
        return true
    }
    return false
}

// Event is a listing in the catalog.  An event belongs to a venue and is
// scheduled through one or more occurrences.  IsSoldOut is a derived flag
// persisted for cheap list queries; it is recomputed from bookings whenever
// inventory changes and must not be treated as authoritative.
//
// Fields:
//  ID          – primary key identifier.
//  VenueID     – venue hosting the event.
//  Title       – event title.
//  Description – optional long description.
//  Genre       – free-form label such as "concert" or "comedy".
//  Status      – DRAFT, PUBLISHED or CANCELLED.
//  IsSoldOut   – cached sold-out decision.
//  CreatedBy   – admin user that created the event.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
    ID          uint64      `json:"id"`          // events.id
    VenueID     uint64      `json:"venue_id"`    // events.venue_id
    Title       string      `json:"title"`       // events.title
    Description *string     `json:"description"` // events.description (nullable)
    Genre       string      `json:"genre"`       // events.genre
    Status      EventStatus `json:"status"`      // events.status
    IsSoldOut   bool        `json:"is_sold_out"` // events.is_sold_out
    CreatedBy   uint64      `json:"created_by"`  // events.created_by
    CreatedAt   time.Time   `json:"created_at"`  // events.created_at
    UpdatedAt   time.Time   `json:"updated_at"`  // events.updated_at
}
