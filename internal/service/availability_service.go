package service

import (
    "context"
    "fmt"
    "sync"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/repository"
)

// EventAvailability is the availability of every active category of an
// event, optionally narrowed to the categories sold for one occurrence.
type EventAvailability struct {
    EventID      uint64                  `json:"event_id"`
    OccurrenceID *uint64                 `json:"occurrence_id,omitempty"`
    Categories   []availability.Snapshot `json:"categories"`
    IsSoldOut    bool                    `json:"is_sold_out"`
}

// AvailabilityService derives availability snapshots from stored
// bookings and maintains the cached sold-out flags.
type AvailabilityService struct {
    events      EventStore
    occurrences OccurrenceStore
    categories  CategoryStore
    policy      availability.Policy

    refreshing sync.Map // event id -> *sync.Mutex
}

// NewAvailabilityService wires the stores the checker reads from.
func NewAvailabilityService(events EventStore, occurrences OccurrenceStore, categories CategoryStore, policy availability.Policy) *AvailabilityService {
    return &AvailabilityService{events: events, occurrences: occurrences, categories: categories, policy: policy}
}

// Policy returns the counting policy in force.
func (s *AvailabilityService) Policy() availability.Policy { return s.policy }

// Snapshots computes a snapshot per category with a single booked-sum
// query.  The order of the result follows cats.
func (s *AvailabilityService) Snapshots(ctx context.Context, cats []model.TicketCategory) ([]availability.Snapshot, error) {
    out := make([]availability.Snapshot, 0, len(cats))
    if len(cats) == 0 {
        return out, nil
    }
    ids := make([]uint64, len(cats))
    for i, c := range cats {
        ids[i] = c.ID
    }
    booked, err := s.categories.BookedQuantities(ctx, ids, s.policy.Statuses())
    if err != nil {
        return nil, fmt.Errorf("sum bookings: %w", err)
    }
    for _, c := range cats {
        out = append(out, availability.Aggregate(c.ID, c.TotalInventory, booked[c.ID]))
    }
    return out, nil
}

// CategorySnapshot returns the availability of one category.
func (s *AvailabilityService) CategorySnapshot(ctx context.Context, cat model.TicketCategory) (availability.Snapshot, error) {
    snaps, err := s.Snapshots(ctx, []model.TicketCategory{cat})
    if err != nil {
        return availability.Snapshot{}, err
    }
    return snaps[0], nil
}

// EventAvailability reports the active categories of an event and whether
// it is sold out.  With occurrenceID set the occurrence must belong to
// the event and only categories sold for it are considered.
func (s *AvailabilityService) EventAvailability(ctx context.Context, eventID uint64, occurrenceID *uint64) (*EventAvailability, error) {
    if _, err := s.events.GetByID(ctx, eventID); err != nil {
        return nil, err
    }
    if occurrenceID != nil {
        occ, err := s.occurrences.GetByID(ctx, *occurrenceID)
        if err != nil {
            return nil, err
        }
        if occ.EventID != eventID {
            return nil, repository.ErrOccurrenceNotFound
        }
    }
    cats, err := s.categories.ListByEvent(ctx, eventID, occurrenceID, true)
    if err != nil {
        return nil, err
    }
    snaps, err := s.Snapshots(ctx, cats)
    if err != nil {
        return nil, err
    }
    return &EventAvailability{
        EventID:      eventID,
        OccurrenceID: occurrenceID,
        Categories:   snaps,
        IsSoldOut:    availability.SoldOut(snaps),
    }, nil
}

// RefreshSoldOut recomputes and stores the sold-out flag of an event and
// of each of its occurrences.  It returns the event-level decision.
//
// Refreshes of the same event are serialized within the process, so a
// refresh never overwrites the flag with a decision read before an earlier
// refresh finished.  Other instances may still interleave; the flags are a
// cache and the next refresh of the event corrects them.
func (s *AvailabilityService) RefreshSoldOut(ctx context.Context, eventID uint64) (bool, error) {
    mu, _ := s.refreshing.LoadOrStore(eventID, new(sync.Mutex))
    mu.(*sync.Mutex).Lock()
    defer mu.(*sync.Mutex).Unlock()

    cats, err := s.categories.ListByEvent(ctx, eventID, nil, true)
    if err != nil {
        return false, err
    }
    snaps, err := s.Snapshots(ctx, cats)
    if err != nil {
        return false, err
    }
    byID := make(map[uint64]availability.Snapshot, len(snaps))
    for _, sn := range snaps {
        byID[sn.CategoryID] = sn
    }

    soldOut := availability.SoldOut(snaps)
    if err := s.events.SetSoldOut(ctx, eventID, soldOut); err != nil {
        return false, fmt.Errorf("store event sold-out: %w", err)
    }

    occs, err := s.occurrences.ListByEvent(ctx, eventID)
    if err != nil {
        return soldOut, err
    }
    for _, o := range occs {
        var own []availability.Snapshot
        for _, c := range cats {
            if c.AppliesTo(o.ID) {
                own = append(own, byID[c.ID])
            }
        }
        flag := availability.SoldOut(own)
        if flag == o.IsSoldOut {
            continue
        }
        if err := s.occurrences.SetSoldOut(ctx, o.ID, flag); err != nil {
            return soldOut, fmt.Errorf("store occurrence %d sold-out: %w", o.ID, err)
        }
    }
    return soldOut, nil
}
