package model

import (
    "time"

    "github.com/iliyamo/event-ticketing/internal/pricing"
)

// TicketCategory is a general-admission pricing tier of an event, for
// example "Gold" or "Early bird".  Inventory is a plain quantity counter;
// there are no assigned seats.  A category with a nil OccurrenceID applies
// to every occurrence of the event and its inventory is shared across
// them.
//
// Fields:
//  ID             – primary key identifier.
//  EventID        – parent event.
//  OccurrenceID   – occurrence the category is limited to (nullable).
//  Name           – display name.
//  BasePrice      – ticket price before fees, always > 0.
//  ConvenienceFee – customer-facing surcharge rule.
//  Commission     – platform cut rule (not charged to the customer).
//  TotalInventory – number of tickets for sale.
//  MaxPerBooking  – upper bound on quantity in a single booking.
//  IsActive       – inactive categories are hidden and not bookable.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type TicketCategory struct {
    ID             uint64          `json:"id"`
    EventID        uint64          `json:"event_id"`
    OccurrenceID   *uint64         `json:"occurrence_id,omitempty"`
    Name           string          `json:"name"`
    BasePrice      float64         `json:"base_price"`
    ConvenienceFee pricing.FeeRule `json:"convenience_fee"`
    Commission     pricing.FeeRule `json:"commission"`
    TotalInventory int             `json:"total_inventory"`
    MaxPerBooking  int             `json:"max_per_booking"`
    IsActive       bool            `json:"is_active"`
    CreatedAt      time.Time       `json:"created_at"`
    UpdatedAt      time.Time       `json:"updated_at"`
}

// Price returns the per-ticket breakdown for the category.
func (c TicketCategory) Price() pricing.Breakdown {
    return pricing.Calculate(c.BasePrice, c.ConvenienceFee, c.Commission)
}

// AppliesTo reports whether the category is sold for the given occurrence.
func (c TicketCategory) AppliesTo(occurrenceID uint64) bool {
    return c.OccurrenceID == nil || *c.OccurrenceID == occurrenceID
}
