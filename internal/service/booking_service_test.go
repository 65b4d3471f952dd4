package service

import (
    "context"
    "errors"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/config"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/pricing"
    "github.com/iliyamo/event-ticketing/internal/repository"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
    db    *memDB
    svc   *BookingService
    avail *AvailabilityService
    idem  *fakeIdempotency
    pub   *fakePublisher
    event *model.Event
    occ   *model.Occurrence
    cat   *model.TicketCategory
}

func newFixture(t *testing.T, inventory int, countPending bool) *fixture {
    t.Helper()
    db := newMemDB(testNow)
    ev := db.addEvent(model.EventPublished)
    occ := db.addOccurrence(ev.ID, testNow.Add(48*time.Hour))
    occID := occ.ID
    cat := db.addCategory(model.TicketCategory{
        EventID:        ev.ID,
        OccurrenceID:   &occID,
        Name:           "Gold",
        BasePrice:      500,
        ConvenienceFee: pricing.Percentage(10),
        Commission:     pricing.Fixed(20),
        TotalInventory: inventory,
        MaxPerBooking:  4,
        IsActive:       true,
    })

    avail := NewAvailabilityService(fakeEvents{db}, fakeOccurrences{db}, fakeCategories{db}, availability.Policy{CountPending: countPending})
    idem := newFakeIdempotency()
    pub := &fakePublisher{}
    cfg := config.BookingConfig{CountPending: countPending, PendingTTL: 15 * time.Minute, MaxQuantity: 10}
    svc := NewBookingService(fakeBookings{db}, fakeCategories{db}, fakeEvents{db}, fakeOccurrences{db}, avail, idem, pub, cfg)
    svc.now = func() time.Time { return testNow }
    return &fixture{db: db, svc: svc, avail: avail, idem: idem, pub: pub, event: ev, occ: occ, cat: cat}
}

func (f *fixture) reserve(t *testing.T, user uint64, qty int) *Reservation {
    t.Helper()
    res, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: user, CategoryID: f.cat.ID, Quantity: qty})
    if err != nil {
        t.Fatalf("reserve %d: %v", qty, err)
    }
    return res
}

func TestQuote_Scenario(t *testing.T) {
    f := newFixture(t, 100, true)
    res, err := f.svc.Quote(context.Background(), f.cat.ID, 2)
    if err != nil {
        t.Fatalf("quote: %v", err)
    }
    if res.Quote.Unit.ConvenienceFee != 50 || res.Quote.Unit.TotalPrice != 550 || res.Quote.Unit.Commission != 20 {
        t.Errorf("unit breakdown = %+v", res.Quote.Unit)
    }
    if res.Quote.Total != 1100 || res.Quote.Commission != 40 {
        t.Errorf("quote = %+v", res.Quote)
    }
    if res.Availability.AvailableQuantity != 100 {
        t.Errorf("availability = %+v", res.Availability)
    }
}

func TestReserve_Success(t *testing.T) {
    f := newFixture(t, 10, true)
    res := f.reserve(t, 1, 3)

    if res.Booking.Status != model.BookingPending {
        t.Errorf("status = %s, want PENDING", res.Booking.Status)
    }
    if _, err := uuid.Parse(res.Booking.Reference); err != nil {
        t.Errorf("reference %q is not a UUID", res.Booking.Reference)
    }
    if res.Booking.TotalAmount != 1650 || res.Booking.ConvenienceFee != 150 || res.Booking.Commission != 60 {
        t.Errorf("amounts = %+v", res.Booking)
    }
    if res.Booking.OccurrenceID == nil || *res.Booking.OccurrenceID != f.occ.ID {
        t.Errorf("occurrence not recorded: %+v", res.Booking.OccurrenceID)
    }
    if res.Availability.AvailableQuantity != 7 {
        t.Errorf("available after reserve = %d, want 7", res.Availability.AvailableQuantity)
    }
}

func TestReserve_LastTicketsMarkSoldOut(t *testing.T) {
    f := newFixture(t, 4, true)
    res := f.reserve(t, 1, 4)
    if !res.Availability.IsSoldOut {
        t.Error("snapshot should be sold out")
    }
    ev, _ := fakeEvents{f.db}.GetByID(context.Background(), f.event.ID)
    if !ev.IsSoldOut {
        t.Error("event sold-out flag should be refreshed")
    }
    occ, _ := fakeOccurrences{f.db}.GetByID(context.Background(), f.occ.ID)
    if !occ.IsSoldOut {
        t.Error("occurrence sold-out flag should be refreshed")
    }
}

func TestReserve_InsufficientInventory(t *testing.T) {
    f := newFixture(t, 5, true)
    f.reserve(t, 1, 4)
    _, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: 2, CategoryID: f.cat.ID, Quantity: 2, IdempotencyKey: "k1"})
    if !errors.Is(err, ErrInsufficientInventory) {
        t.Fatalf("expected ErrInsufficientInventory, got %v", err)
    }
    // The failed attempt must not burn the key.
    if _, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: 2, CategoryID: f.cat.ID, Quantity: 1, IdempotencyKey: "k1"}); err != nil {
        t.Fatalf("retry with same key: %v", err)
    }
}

func TestReserve_DuplicateRequest(t *testing.T) {
    f := newFixture(t, 10, true)
    req := ReserveRequest{UserID: 1, CategoryID: f.cat.ID, Quantity: 1, IdempotencyKey: "abc"}
    if _, err := f.svc.Reserve(context.Background(), req); err != nil {
        t.Fatalf("first reserve: %v", err)
    }
    if _, err := f.svc.Reserve(context.Background(), req); !errors.Is(err, ErrDuplicateRequest) {
        t.Fatalf("expected ErrDuplicateRequest, got %v", err)
    }
    if n := len(f.db.bookings); n != 1 {
        t.Errorf("expected 1 booking, got %d", n)
    }
    // Same key from another user is independent.
    req.UserID = 2
    if _, err := f.svc.Reserve(context.Background(), req); err != nil {
        t.Fatalf("other user with same key: %v", err)
    }
}

func TestReserve_InvalidQuantity(t *testing.T) {
    f := newFixture(t, 10, true)
    for _, qty := range []int{0, -1, 5} {
        _, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: 1, CategoryID: f.cat.ID, Quantity: qty})
        if !errors.Is(err, ErrInvalidQuantity) {
            t.Errorf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
        }
    }
}

func TestReserve_NotBookable(t *testing.T) {
    ctx := context.Background()

    f := newFixture(t, 10, true)
    f.db.cats[f.cat.ID].IsActive = false
    if _, err := f.svc.Reserve(ctx, ReserveRequest{UserID: 1, CategoryID: f.cat.ID, Quantity: 1}); !errors.Is(err, ErrNotBookable) {
        t.Errorf("inactive category: %v", err)
    }

    f = newFixture(t, 10, true)
    f.db.events[f.event.ID].Status = model.EventDraft
    if _, err := f.svc.Reserve(ctx, ReserveRequest{UserID: 1, CategoryID: f.cat.ID, Quantity: 1}); !errors.Is(err, ErrNotBookable) {
        t.Errorf("draft event: %v", err)
    }

    f = newFixture(t, 10, true)
    f.db.occs[f.occ.ID].StartsAt = testNow.Add(-time.Minute)
    if _, err := f.svc.Reserve(ctx, ReserveRequest{UserID: 1, CategoryID: f.cat.ID, Quantity: 1}); !errors.Is(err, ErrNotBookable) {
        t.Errorf("started occurrence: %v", err)
    }

    f = newFixture(t, 10, true)
    if _, err := f.svc.Reserve(ctx, ReserveRequest{UserID: 1, CategoryID: 999, Quantity: 1}); !errors.Is(err, repository.ErrCategoryNotFound) {
        t.Errorf("unknown category: %v", err)
    }
}

func TestReserve_EventWideCategoryPinsOccurrence(t *testing.T) {
    f := newFixture(t, 10, true)
    second := f.db.addOccurrence(f.event.ID, testNow.Add(72*time.Hour))
    wide := f.db.addCategory(model.TicketCategory{
        EventID: f.event.ID, Name: "Festival pass", BasePrice: 100,
        ConvenienceFee: pricing.Fixed(0), Commission: pricing.Fixed(0),
        TotalInventory: 2, IsActive: true,
    })

    res, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: 1, CategoryID: wide.ID, OccurrenceID: &second.ID, Quantity: 1})
    if err != nil {
        t.Fatalf("reserve: %v", err)
    }
    if res.Booking.OccurrenceID == nil || *res.Booking.OccurrenceID != second.ID {
        t.Errorf("booking should be pinned to occurrence %d", second.ID)
    }
    // Shared inventory: one ticket left across both occurrences.
    if _, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: 2, CategoryID: wide.ID, OccurrenceID: &f.occ.ID, Quantity: 2}); !errors.Is(err, ErrInsufficientInventory) {
        t.Errorf("expected shared inventory to be exhausted, got %v", err)
    }
    // A category limited to one occurrence cannot be sold for another.
    if _, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: 1, CategoryID: f.cat.ID, OccurrenceID: &second.ID, Quantity: 1}); !errors.Is(err, ErrNotBookable) {
        t.Errorf("expected ErrNotBookable for mismatched occurrence, got %v", err)
    }
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
    f := newFixture(t, 10, true)
    var ok int32
    var wg sync.WaitGroup
    for i := 0; i < 50; i++ {
        wg.Add(1)
        go func(user uint64) {
            defer wg.Done()
            _, err := f.svc.Reserve(context.Background(), ReserveRequest{UserID: user, CategoryID: f.cat.ID, Quantity: 1})
            if err == nil {
                atomic.AddInt32(&ok, 1)
            } else if !errors.Is(err, ErrInsufficientInventory) {
                t.Errorf("unexpected error: %v", err)
            }
        }(uint64(i + 1))
    }
    wg.Wait()

    if ok != 10 {
        t.Errorf("expected 10 successful reservations, got %d", ok)
    }
    snap, _ := f.avail.CategorySnapshot(context.Background(), *f.cat)
    if snap.BookedQuantity != 10 || snap.AvailableQuantity != 0 {
        t.Errorf("snapshot after race = %+v", snap)
    }
}

func TestConfirm_DuplicateCallbackIsNoop(t *testing.T) {
    f := newFixture(t, 10, true)
    res := f.reserve(t, 1, 2)
    cb := PaymentCallback{BookingRef: res.Booking.Reference, PaymentRef: "pay_1", Gateway: "Razorpay", Status: "success"}

    first, err := f.svc.Confirm(context.Background(), cb)
    if err != nil {
        t.Fatalf("confirm: %v", err)
    }
    if !first.Changed || first.Booking.Status != model.BookingConfirmed {
        t.Errorf("first confirm = %+v", first)
    }
    if first.Booking.Gateway == nil || *first.Booking.Gateway != "razorpay" {
        t.Errorf("gateway not normalised: %v", first.Booking.Gateway)
    }

    second, err := f.svc.Confirm(context.Background(), cb)
    if err != nil {
        t.Fatalf("duplicate confirm: %v", err)
    }
    if second.Changed {
        t.Error("duplicate callback should not change the booking")
    }
    if n := f.pub.count(); n != 1 {
        t.Errorf("expected 1 published event, got %d", n)
    }
    ev := f.pub.events[0]
    if ev.Reference != res.Booking.Reference || ev.EventTitle != "Jazz Night" || ev.CategoryName != "Gold" || ev.StartsAt == "" {
        t.Errorf("published event = %+v", ev)
    }

    cb.PaymentRef = "pay_2"
    if _, err := f.svc.Confirm(context.Background(), cb); !errors.Is(err, ErrInvalidTransition) {
        t.Errorf("different payment ref: expected ErrInvalidTransition, got %v", err)
    }
}

func TestConfirm_FailedReleasesStock(t *testing.T) {
    f := newFixture(t, 2, true)
    res := f.reserve(t, 1, 2)
    out, err := f.svc.Confirm(context.Background(), PaymentCallback{BookingRef: res.Booking.Reference, Status: "declined"})
    if err != nil {
        t.Fatalf("confirm failed: %v", err)
    }
    if out.Booking.Status != model.BookingFailed {
        t.Errorf("status = %s, want FAILED", out.Booking.Status)
    }
    snap, _ := f.avail.CategorySnapshot(context.Background(), *f.cat)
    if snap.AvailableQuantity != 2 {
        t.Errorf("failed payment should release stock, snapshot %+v", snap)
    }
    ev, _ := fakeEvents{f.db}.GetByID(context.Background(), f.event.ID)
    if ev.IsSoldOut {
        t.Error("event should no longer be sold out")
    }
}

func TestConfirm_Errors(t *testing.T) {
    f := newFixture(t, 2, true)
    ctx := context.Background()
    if _, err := f.svc.Confirm(ctx, PaymentCallback{BookingRef: "nope", PaymentRef: "p", Status: "SUCCESS"}); !errors.Is(err, repository.ErrBookingNotFound) {
        t.Errorf("unknown booking: %v", err)
    }
    if _, err := f.svc.Confirm(ctx, PaymentCallback{PaymentRef: "p", Status: "SUCCESS"}); !errors.Is(err, ErrInvalidCallback) {
        t.Errorf("missing ref: %v", err)
    }
    res := f.reserve(t, 1, 1)
    if _, err := f.svc.Confirm(ctx, PaymentCallback{BookingRef: res.Booking.Reference, Status: "SUCCESS"}); !errors.Is(err, ErrInvalidCallback) {
        t.Errorf("missing payment ref: %v", err)
    }
    if _, err := f.svc.Confirm(ctx, PaymentCallback{BookingRef: res.Booking.Reference, PaymentRef: "p", Status: "MAYBE"}); !errors.Is(err, ErrInvalidCallback) {
        t.Errorf("unknown status: %v", err)
    }
    if _, err := f.svc.Cancel(ctx, res.Booking.ID, 1); err != nil {
        t.Fatalf("cancel: %v", err)
    }
    if _, err := f.svc.Confirm(ctx, PaymentCallback{BookingRef: res.Booking.Reference, PaymentRef: "p", Status: "SUCCESS"}); !errors.Is(err, ErrInvalidTransition) {
        t.Errorf("cancelled booking: %v", err)
    }
}

func TestConfirm_AfterExpiryReadmits(t *testing.T) {
    f := newFixture(t, 2, true)
    late := f.reserve(t, 1, 2)
    f.svc.now = func() time.Time { return testNow.Add(time.Hour) }
    if n, err := f.svc.ExpirePending(context.Background()); err != nil || n != 1 {
        t.Fatalf("expire = %d, %v", n, err)
    }
    if got := f.db.booking(late.Booking.ID).Status; got != model.BookingFailed {
        t.Fatalf("status after sweep = %s", got)
    }

    // Stock is still free, so a late payment succeeds.
    out, err := f.svc.Confirm(context.Background(), PaymentCallback{BookingRef: late.Booking.Reference, PaymentRef: "late", Status: "SUCCESS"})
    if err != nil || !out.Changed {
        t.Fatalf("late confirm = %+v, %v", out, err)
    }

    g := newFixture(t, 2, true)
    stale := g.reserve(t, 1, 2)
    g.svc.now = func() time.Time { return testNow.Add(time.Hour) }
    if _, err := g.svc.ExpirePending(context.Background()); err != nil {
        t.Fatal(err)
    }
    g.reserve(t, 2, 2)
    _, err = g.svc.Confirm(context.Background(), PaymentCallback{BookingRef: stale.Booking.Reference, PaymentRef: "late", Status: "SUCCESS"})
    if !errors.Is(err, ErrInsufficientInventory) {
        t.Errorf("late confirm over resold stock: expected ErrInsufficientInventory, got %v", err)
    }
}

func TestConfirm_StrictPolicyChecksAtPayment(t *testing.T) {
    f := newFixture(t, 2, false)
    a := f.reserve(t, 1, 2)
    b := f.reserve(t, 2, 2) // pending does not hold stock
    ctx := context.Background()
    if _, err := f.svc.Confirm(ctx, PaymentCallback{BookingRef: a.Booking.Reference, PaymentRef: "a", Status: "SUCCESS"}); err != nil {
        t.Fatalf("confirm a: %v", err)
    }
    if _, err := f.svc.Confirm(ctx, PaymentCallback{BookingRef: b.Booking.Reference, PaymentRef: "b", Status: "SUCCESS"}); !errors.Is(err, ErrInsufficientInventory) {
        t.Errorf("confirm b: expected ErrInsufficientInventory, got %v", err)
    }
}

func TestCancel(t *testing.T) {
    f := newFixture(t, 4, true)
    ctx := context.Background()
    res := f.reserve(t, 1, 4)

    if _, err := f.svc.Cancel(ctx, res.Booking.ID, 2); !errors.Is(err, repository.ErrForbidden) {
        t.Errorf("other user: %v", err)
    }
    b, err := f.svc.Cancel(ctx, res.Booking.ID, 1)
    if err != nil {
        t.Fatalf("cancel: %v", err)
    }
    if b.Status != model.BookingCancelled {
        t.Errorf("status = %s", b.Status)
    }
    ev, _ := fakeEvents{f.db}.GetByID(ctx, f.event.ID)
    if ev.IsSoldOut {
        t.Error("cancel should clear sold-out")
    }

    late := f.reserve(t, 1, 1)
    f.svc.now = func() time.Time { return f.occ.StartsAt.Add(time.Minute) }
    if _, err := f.svc.Cancel(ctx, late.Booking.ID, 1); !errors.Is(err, ErrAlreadyStarted) {
        t.Errorf("after start: expected ErrAlreadyStarted, got %v", err)
    }
}

func TestGetAndList(t *testing.T) {
    f := newFixture(t, 10, true)
    ctx := context.Background()
    a := f.reserve(t, 1, 1)
    f.reserve(t, 1, 2)
    f.reserve(t, 2, 1)

    if _, err := f.svc.Get(ctx, a.Booking.ID, 2); !errors.Is(err, repository.ErrForbidden) {
        t.Errorf("foreign booking: %v", err)
    }
    got, err := f.svc.Get(ctx, a.Booking.ID, 1)
    if err != nil || got.ID != a.Booking.ID {
        t.Fatalf("get own booking = %+v, %v", got, err)
    }
    list, err := f.svc.ListForUser(ctx, 1, 1, 20)
    if err != nil {
        t.Fatal(err)
    }
    if len(list) != 2 {
        t.Errorf("user 1 should have 2 bookings, got %d", len(list))
    }
    page, _ := f.svc.ListForUser(ctx, 1, 2, 1)
    if len(page) != 1 || page[0].ID != a.Booking.ID {
        t.Errorf("second page = %+v", page)
    }
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
    f := newFixture(t, 10, true)
    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        f.svc.RunSweeper(ctx, 5*time.Millisecond)
        close(done)
    }()
    time.Sleep(20 * time.Millisecond)
    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("sweeper did not stop")
    }
}
