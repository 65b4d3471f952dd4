package handler

import (
    "context"
    "net/http/httptest"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/repository"
    "github.com/iliyamo/event-ticketing/internal/service"
)

// newContext builds an echo context for a JSON request.  params are
// name/value pairs for path parameters.
func newContext(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
    e := echo.New()
    e.Validator = NewValidator()
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    var names, values []string
    for i := 0; i+1 < len(params); i += 2 {
        names = append(names, params[i])
        values = append(values, params[i+1])
    }
    c.SetParamNames(names...)
    c.SetParamValues(values...)
    return c, rec
}

// fakeBookings records the last call and returns canned results.
type fakeBookings struct {
    lastReserve  service.ReserveRequest
    lastCallback service.PaymentCallback
    err          error
    booking      *model.Booking
    changed      bool
}

func (f *fakeBookings) Quote(ctx context.Context, categoryID uint64, quantity int) (*service.QuoteResult, error) {
    if f.err != nil {
        return nil, f.err
    }
    return &service.QuoteResult{CategoryID: categoryID}, nil
}

func (f *fakeBookings) Reserve(ctx context.Context, req service.ReserveRequest) (*service.Reservation, error) {
    f.lastReserve = req
    if f.err != nil {
        return nil, f.err
    }
    return &service.Reservation{Booking: model.Booking{
        ID: 1, Reference: "ref-1", UserID: req.UserID, CategoryID: req.CategoryID,
        Quantity: req.Quantity, Status: model.BookingPending,
    }}, nil
}

func (f *fakeBookings) Confirm(ctx context.Context, cb service.PaymentCallback) (*service.ConfirmResult, error) {
    f.lastCallback = cb
    if f.err != nil {
        return nil, f.err
    }
    return &service.ConfirmResult{Booking: f.booking, Changed: f.changed}, nil
}

func (f *fakeBookings) Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
    if f.err != nil {
        return nil, f.err
    }
    return &model.Booking{ID: bookingID, UserID: userID, Status: model.BookingCancelled}, nil
}

func (f *fakeBookings) Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
    if f.err != nil {
        return nil, f.err
    }
    return &model.Booking{ID: bookingID, UserID: userID}, nil
}

func (f *fakeBookings) ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]repository.BookingView, error) {
    return []repository.BookingView{}, f.err
}

// catalog is an in-memory catalog behind the store interfaces.
type catalog struct {
    venues    map[uint64]*model.Venue
    events    map[uint64]*model.Event
    occs      map[uint64]*model.Occurrence
    cats      map[uint64]*model.TicketCategory
    nextID    uint64
    refreshed []uint64
}

func newCatalog() *catalog {
    return &catalog{
        venues: map[uint64]*model.Venue{},
        events: map[uint64]*model.Event{},
        occs:   map[uint64]*model.Occurrence{},
        cats:   map[uint64]*model.TicketCategory{},
    }
}

func (m *catalog) id() uint64 {
    m.nextID++
    return m.nextID
}

func (m *catalog) handler() *AdminHandler {
    return NewAdminHandler(venueFake{m}, eventFake{m}, occFake{m}, catFake{m}, availFake{m}, bookingsFake{})
}

func (m *catalog) public() *PublicHandler {
    return &PublicHandler{Venues: venueFake{m}, Events: eventFake{m}, Occurrences: occFake{m}, Categories: catFake{m}, Availability: availFake{m}}
}

type venueFake struct{ *catalog }

func (f venueFake) Create(ctx context.Context, v *model.Venue) error {
    v.ID = f.id()
    cp := *v
    f.venues[v.ID] = &cp
    return nil
}

func (f venueFake) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
    v, ok := f.venues[id]
    if !ok {
        return nil, repository.ErrVenueNotFound
    }
    cp := *v
    return &cp, nil
}

func (f venueFake) List(ctx context.Context, city string) ([]model.Venue, error) {
    out := []model.Venue{}
    for _, v := range f.venues {
        if city == "" || strings.EqualFold(v.City, city) {
            out = append(out, *v)
        }
    }
    return out, nil
}

func (f venueFake) Update(ctx context.Context, v *model.Venue) error {
    if _, ok := f.venues[v.ID]; !ok {
        return repository.ErrVenueNotFound
    }
    cp := *v
    f.venues[v.ID] = &cp
    return nil
}

func (f venueFake) Delete(ctx context.Context, id uint64) error {
    for _, e := range f.events {
        if e.VenueID == id {
            return repository.ErrConflict
        }
    }
    delete(f.venues, id)
    return nil
}

type eventFake struct{ *catalog }

func (f eventFake) Create(ctx context.Context, e *model.Event) error {
    if _, ok := f.venues[e.VenueID]; !ok {
        return repository.ErrVenueNotFound
    }
    if e.Status == "" {
        e.Status = model.EventDraft
    }
    e.ID = f.id()
    cp := *e
    f.events[e.ID] = &cp
    return nil
}

func (f eventFake) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
    e, ok := f.events[id]
    if !ok {
        return nil, repository.ErrEventNotFound
    }
    cp := *e
    return &cp, nil
}

func (f eventFake) List(ctx context.Context, limit, offset int) ([]model.Event, error) {
    out := []model.Event{}
    for _, e := range f.events {
        out = append(out, *e)
    }
    return out, nil
}

func (f eventFake) Update(ctx context.Context, e *model.Event) error {
    cp := *e
    f.events[e.ID] = &cp
    return nil
}

func (f eventFake) Delete(ctx context.Context, id uint64) error {
    delete(f.events, id)
    return nil
}

func (f eventFake) Search(ctx context.Context, q repository.EventSearchQuery) ([]repository.PublicEventRow, int64, error) {
    return []repository.PublicEventRow{}, 0, nil
}

type occFake struct{ *catalog }

func (f occFake) Create(ctx context.Context, o *model.Occurrence) error {
    if _, ok := f.events[o.EventID]; !ok {
        return repository.ErrEventNotFound
    }
    o.ID = f.id()
    cp := *o
    f.occs[o.ID] = &cp
    return nil
}

func (f occFake) GetByID(ctx context.Context, id uint64) (*model.Occurrence, error) {
    o, ok := f.occs[id]
    if !ok {
        return nil, repository.ErrOccurrenceNotFound
    }
    cp := *o
    return &cp, nil
}

func (f occFake) ListByEvent(ctx context.Context, eventID uint64) ([]model.Occurrence, error) {
    out := []model.Occurrence{}
    for _, o := range f.occs {
        if o.EventID == eventID {
            out = append(out, *o)
        }
    }
    return out, nil
}

func (f occFake) Update(ctx context.Context, o *model.Occurrence) error {
    cp := *o
    f.occs[o.ID] = &cp
    return nil
}

func (f occFake) Delete(ctx context.Context, id uint64) error {
    delete(f.occs, id)
    return nil
}

type catFake struct{ *catalog }

func (f catFake) Create(ctx context.Context, c *model.TicketCategory) error {
    c.ID = f.id()
    cp := *c
    f.cats[c.ID] = &cp
    return nil
}

func (f catFake) GetByID(ctx context.Context, id uint64) (*model.TicketCategory, error) {
    c, ok := f.cats[id]
    if !ok {
        return nil, repository.ErrCategoryNotFound
    }
    cp := *c
    return &cp, nil
}

func (f catFake) ListByEvent(ctx context.Context, eventID uint64, occurrenceID *uint64, activeOnly bool) ([]model.TicketCategory, error) {
    out := []model.TicketCategory{}
    for _, c := range f.cats {
        if c.EventID == eventID && (!activeOnly || c.IsActive) {
            out = append(out, *c)
        }
    }
    return out, nil
}

func (f catFake) Update(ctx context.Context, c *model.TicketCategory) error {
    cp := *c
    f.cats[c.ID] = &cp
    return nil
}

func (f catFake) Delete(ctx context.Context, id uint64) error {
    delete(f.cats, id)
    return nil
}

// availFake reports every category as fully available.
type availFake struct{ *catalog }

func (f availFake) Snapshots(ctx context.Context, cats []model.TicketCategory) ([]availability.Snapshot, error) {
    out := make([]availability.Snapshot, 0, len(cats))
    for _, c := range cats {
        out = append(out, availability.Aggregate(c.ID, c.TotalInventory))
    }
    return out, nil
}

func (f availFake) EventAvailability(ctx context.Context, eventID uint64, occurrenceID *uint64) (*service.EventAvailability, error) {
    return &service.EventAvailability{EventID: eventID, OccurrenceID: occurrenceID}, nil
}

func (f availFake) RefreshSoldOut(ctx context.Context, eventID uint64) (bool, error) {
    f.refreshed = append(f.refreshed, eventID)
    return false, nil
}

type bookingsFake struct{}

func (bookingsFake) ListByEvent(ctx context.Context, eventID uint64, status model.BookingStatus, limit, offset int) ([]repository.BookingView, error) {
    return []repository.BookingView{}, nil
}
