// Package availability derives general-admission ticket availability from
// configured inventory and the quantities of bookings that count against
// it.  Everything here is pure arithmetic; callers supply the booked sums
// read from storage and are responsible for reading them under whatever
// lock the decision requires.
package availability

import "github.com/iliyamo/event-ticketing/internal/model"

// Snapshot is the availability of one ticket category at the moment its
// bookings were summed.
type Snapshot struct {
    CategoryID        uint64 `json:"category_id"`
    TotalInventory    int    `json:"total_inventory"`
    BookedQuantity    int    `json:"booked_quantity"`
    AvailableQuantity int    `json:"available_quantity"`
    IsSoldOut         bool   `json:"is_sold_out"`
}

// Aggregate computes available = max(0, total - sum(booked)).  A category
// with no configured inventory (total <= 0) is reported as sold out.
func Aggregate(categoryID uint64, total int, booked ...int) Snapshot {
    sum := 0
    for _, q := range booked {
        if q > 0 {
            sum += q
        }
    }
    available := 0
    if total > 0 && total > sum {
        available = total - sum
    }
    if total < 0 {
        total = 0
    }
    return Snapshot{
        CategoryID:        categoryID,
        TotalInventory:    total,
        BookedQuantity:    sum,
        AvailableQuantity: available,
        IsSoldOut:         available == 0,
    }
}

// CanFulfil reports whether quantity tickets fit in the snapshot.
func (s Snapshot) CanFulfil(quantity int) bool {
    return quantity > 0 && s.AvailableQuantity >= quantity
}

// SoldOut reports whether every snapshot has nothing left.  Callers pass
// only active categories.  No categories at all means the event has
// nothing on sale yet, which is not the same as sold out.
func SoldOut(snapshots []Snapshot) bool {
    if len(snapshots) == 0 {
        return false
    }
    for _, s := range snapshots {
        if s.AvailableQuantity > 0 {
            return false
        }
    }
    return true
}

// Policy decides which booking statuses hold inventory.  Confirmed
// bookings always count.  Pending bookings count when CountPending is set
// so that a customer in checkout cannot be outsold.
type Policy struct {
    CountPending bool
}

// Counts reports whether a booking in status s is subtracted from
// inventory.
func (p Policy) Counts(s model.BookingStatus) bool {
    switch s {
    case model.BookingConfirmed:
        return true
    case model.BookingPending:
        return p.CountPending
    }
    return false
}

// Statuses lists the statuses for which Counts is true, for use in
// storage queries.
func (p Policy) Statuses() []model.BookingStatus {
    if p.CountPending {
        return []model.BookingStatus{model.BookingConfirmed, model.BookingPending}
    }
    return []model.BookingStatus{model.BookingConfirmed}
}
