package service

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/model"
    q "github.com/iliyamo/event-ticketing/internal/queue"
    "github.com/iliyamo/event-ticketing/internal/repository"
)

// memDB is an in-memory stand-in for MySQL.  A single mutex plays the role
// of the category row lock, so Reserve and Confirm are atomic like the
// real repository.
type memDB struct {
    mu       sync.Mutex
    events   map[uint64]*model.Event
    occs     map[uint64]*model.Occurrence
    cats     map[uint64]*model.TicketCategory
    bookings map[uint64]*model.Booking
    nextID   uint64
    clock    time.Time
}

func newMemDB(now time.Time) *memDB {
    return &memDB{
        events:   map[uint64]*model.Event{},
        occs:     map[uint64]*model.Occurrence{},
        cats:     map[uint64]*model.TicketCategory{},
        bookings: map[uint64]*model.Booking{},
        clock:    now,
    }
}

func (m *memDB) id() uint64 {
    m.nextID++
    return m.nextID
}

func (m *memDB) addEvent(status model.EventStatus) *model.Event {
    m.mu.Lock()
    defer m.mu.Unlock()
    e := &model.Event{ID: m.id(), Title: "Jazz Night", Status: status}
    m.events[e.ID] = e
    return e
}

func (m *memDB) addOccurrence(eventID uint64, starts time.Time) *model.Occurrence {
    m.mu.Lock()
    defer m.mu.Unlock()
    o := &model.Occurrence{ID: m.id(), EventID: eventID, StartsAt: starts, EndsAt: starts.Add(2 * time.Hour)}
    m.occs[o.ID] = o
    return o
}

func (m *memDB) addCategory(c model.TicketCategory) *model.TicketCategory {
    m.mu.Lock()
    defer m.mu.Unlock()
    c.ID = m.id()
    m.cats[c.ID] = &c
    return &c
}

func (m *memDB) countedLocked(categoryID uint64, statuses []model.BookingStatus, skip uint64) int {
    sum := 0
    for _, b := range m.bookings {
        if b.CategoryID != categoryID || b.ID == skip {
            continue
        }
        for _, s := range statuses {
            if b.Status == s {
                sum += b.Quantity
            }
        }
    }
    return sum
}

func (m *memDB) booking(id uint64) model.Booking {
    m.mu.Lock()
    defer m.mu.Unlock()
    return *m.bookings[id]
}

type fakeEvents struct{ *memDB }

func (f fakeEvents) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    e, ok := f.events[id]
    if !ok {
        return nil, repository.ErrEventNotFound
    }
    cp := *e
    return &cp, nil
}

func (f fakeEvents) SetSoldOut(ctx context.Context, id uint64, soldOut bool) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if e, ok := f.events[id]; ok {
        e.IsSoldOut = soldOut
    }
    return nil
}

type fakeOccurrences struct{ *memDB }

func (f fakeOccurrences) GetByID(ctx context.Context, id uint64) (*model.Occurrence, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    o, ok := f.occs[id]
    if !ok {
        return nil, repository.ErrOccurrenceNotFound
    }
    cp := *o
    return &cp, nil
}

func (f fakeOccurrences) ListByEvent(ctx context.Context, eventID uint64) ([]model.Occurrence, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.Occurrence
    for _, o := range f.occs {
        if o.EventID == eventID {
            out = append(out, *o)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
    return out, nil
}

func (f fakeOccurrences) SetSoldOut(ctx context.Context, id uint64, soldOut bool) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if o, ok := f.occs[id]; ok {
        o.IsSoldOut = soldOut
    }
    return nil
}

type fakeCategories struct{ *memDB }

func (f fakeCategories) GetByID(ctx context.Context, id uint64) (*model.TicketCategory, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    c, ok := f.cats[id]
    if !ok {
        return nil, repository.ErrCategoryNotFound
    }
    cp := *c
    return &cp, nil
}

func (f fakeCategories) ListByEvent(ctx context.Context, eventID uint64, occurrenceID *uint64, activeOnly bool) ([]model.TicketCategory, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.TicketCategory
    for _, c := range f.cats {
        if c.EventID != eventID || (activeOnly && !c.IsActive) {
            continue
        }
        if occurrenceID != nil && !c.AppliesTo(*occurrenceID) {
            continue
        }
        out = append(out, *c)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (f fakeCategories) BookedQuantities(ctx context.Context, ids []uint64, statuses []model.BookingStatus) (map[uint64]int, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    out := map[uint64]int{}
    for _, id := range ids {
        if n := f.countedLocked(id, statuses, 0); n > 0 {
            out[id] = n
        }
    }
    return out, nil
}

type fakeBookings struct{ *memDB }

func (f fakeBookings) Reserve(ctx context.Context, b *model.Booking, statuses []model.BookingStatus) (availability.Snapshot, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    c, ok := f.cats[b.CategoryID]
    if !ok || !c.IsActive {
        return availability.Snapshot{}, repository.ErrCategoryNotFound
    }
    booked := f.countedLocked(c.ID, statuses, 0)
    snap := availability.Aggregate(c.ID, c.TotalInventory, booked)
    if !snap.CanFulfil(b.Quantity) {
        return snap, repository.ErrInsufficientInventory
    }
    b.ID = f.id()
    b.CreatedAt = f.clock
    b.UpdatedAt = f.clock
    cp := *b
    f.bookings[b.ID] = &cp
    if containsStatus(statuses, b.Status) {
        snap = availability.Aggregate(c.ID, c.TotalInventory, booked, b.Quantity)
    }
    return snap, nil
}

func containsStatus(statuses []model.BookingStatus, s model.BookingStatus) bool {
    for _, x := range statuses {
        if x == s {
            return true
        }
    }
    return false
}

func (f fakeBookings) byRef(ref string) *model.Booking {
    for _, b := range f.bookings {
        if b.Reference == ref {
            return b
        }
    }
    return nil
}

func (f fakeBookings) Confirm(ctx context.Context, ref, paymentRef, gateway string, statuses []model.BookingStatus) (*model.Booking, bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    b := f.byRef(ref)
    if b == nil {
        return nil, false, repository.ErrBookingNotFound
    }
    cp := *b
    switch b.Status {
    case model.BookingConfirmed:
        if b.PaymentRef != nil && *b.PaymentRef == paymentRef {
            return &cp, false, nil
        }
        return &cp, false, repository.ErrConflict
    case model.BookingCancelled:
        return &cp, false, repository.ErrConflict
    }
    if !containsStatus(statuses, b.Status) {
        c := f.cats[b.CategoryID]
        if !availability.Aggregate(c.ID, c.TotalInventory, f.countedLocked(c.ID, statuses, b.ID)).CanFulfil(b.Quantity) {
            return &cp, false, repository.ErrInsufficientInventory
        }
    }
    now := f.clock
    b.Status = model.BookingConfirmed
    b.PaymentRef = &paymentRef
    if gateway != "" {
        b.Gateway = &gateway
    }
    b.ConfirmedAt = &now
    cp = *b
    return &cp, true, nil
}

func (f fakeBookings) MarkFailed(ctx context.Context, ref, gateway string) (*model.Booking, bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    b := f.byRef(ref)
    if b == nil {
        return nil, false, repository.ErrBookingNotFound
    }
    switch b.Status {
    case model.BookingFailed:
        cp := *b
        return &cp, false, nil
    case model.BookingPending:
    default:
        cp := *b
        return &cp, false, repository.ErrConflict
    }
    b.Status = model.BookingFailed
    cp := *b
    return &cp, true, nil
}

func (f fakeBookings) Cancel(ctx context.Context, id, userID uint64, now time.Time) (*model.Booking, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    b, ok := f.bookings[id]
    if !ok {
        return nil, repository.ErrBookingNotFound
    }
    if b.UserID != userID {
        return nil, repository.ErrForbidden
    }
    cp := *b
    switch b.Status {
    case model.BookingCancelled:
        return &cp, nil
    case model.BookingPending, model.BookingConfirmed:
    default:
        return &cp, repository.ErrConflict
    }
    if b.OccurrenceID != nil {
        if o := f.occs[*b.OccurrenceID]; o != nil && o.Started(now) {
            return &cp, repository.ErrAlreadyStarted
        }
    }
    b.Status = model.BookingCancelled
    cp = *b
    return &cp, nil
}

func (f fakeBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    b, ok := f.bookings[id]
    if !ok {
        return nil, repository.ErrBookingNotFound
    }
    cp := *b
    return &cp, nil
}

func (f fakeBookings) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]repository.BookingView, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []repository.BookingView
    for _, b := range f.bookings {
        if b.UserID == userID {
            out = append(out, repository.BookingView{Booking: *b, EventTitle: f.events[b.EventID].Title})
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
    if offset >= len(out) {
        return []repository.BookingView{}, nil
    }
    out = out[offset:]
    if len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

func (f fakeBookings) ExpirePending(ctx context.Context, cutoff time.Time) ([]uint64, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    seen := map[uint64]bool{}
    var events []uint64
    for _, b := range f.bookings {
        if b.Status == model.BookingPending && b.CreatedAt.Before(cutoff) {
            b.Status = model.BookingFailed
            if !seen[b.EventID] {
                seen[b.EventID] = true
                events = append(events, b.EventID)
            }
        }
    }
    return events, nil
}

type fakeIdempotency struct {
    mu   sync.Mutex
    keys map[string]bool
}

func newFakeIdempotency() *fakeIdempotency { return &fakeIdempotency{keys: map[string]bool{}} }

func (f *fakeIdempotency) Claim(ctx context.Context, scope, key string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    k := scope + ":" + key
    if f.keys[k] {
        return false, nil
    }
    f.keys[k] = true
    return true, nil
}

func (f *fakeIdempotency) Release(ctx context.Context, scope, key string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    delete(f.keys, scope+":"+key)
    return nil
}

type fakePublisher struct {
    mu     sync.Mutex
    events []q.BookingConfirmedEvent
}

func (p *fakePublisher) PublishBookingConfirmed(ctx context.Context, ev q.BookingConfirmedEvent) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, ev)
    return nil
}

func (p *fakePublisher) count() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return len(p.events)
}
