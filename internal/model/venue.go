package model

import "time"

// Venue represents a physical location where events take place.
// Events reference a venue; a venue can host many events.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the venue.
//  City      – city used for public browse filtering.
//  Address   – optional street address.
//  Capacity  – nominal capacity (informational only; ticket
//              inventory is configured per category).
//  CreatedAt – timestamp when the venue was created.
//  UpdatedAt – timestamp of last update.
type Venue struct {
    ID        uint64    `json:"id"`         // venues.id
    Name      string    `json:"name"`       // venues.name
    City      string    `json:"city"`       // venues.city
    Address   *string   `json:"address"`    // venues.address (nullable)
    Capacity  int       `json:"capacity"`   // venues.capacity
    CreatedAt time.Time `json:"created_at"` // venues.created_at
    UpdatedAt time.Time `json:"updated_at"` // venues.updated_at
}
