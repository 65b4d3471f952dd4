package model

import "time"

// Occurrence is one scheduled instance of an event.  A one-off event has
// a single occurrence; a recurring event has one per date.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – parent event.
//  StartsAt  – start time (UTC).
//  EndsAt    – end time (UTC, after StartsAt).
//  IsSoldOut – cached sold-out decision for this occurrence.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Occurrence struct {
    ID        uint64    `json:"id"`          // occurrences.id
    EventID   uint64    `json:"event_id"`    // occurrences.event_id
    StartsAt  time.Time `json:"starts_at"`   // occurrences.starts_at
    EndsAt    time.Time `json:"ends_at"`     // occurrences.ends_at
    IsSoldOut bool      `json:"is_sold_out"` // occurrences.is_sold_out
    CreatedAt time.Time `json:"created_at"`  // occurrences.created_at
    UpdatedAt time.Time `json:"updated_at"`  // occurrences.updated_at
}

// Started reports whether the occurrence has begun at time now.
func (o Occurrence) Started(now time.Time) bool {
    return !o.StartsAt.After(now)
}
