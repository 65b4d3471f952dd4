package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/config"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/pricing"
    q "github.com/iliyamo/event-ticketing/internal/queue"
    "github.com/iliyamo/event-ticketing/internal/repository"
)

// QuoteResult is a price preview for a quantity of one category together
// with the category's availability at the time of the quote.
type QuoteResult struct {
    CategoryID   uint64                `json:"category_id"`
    EventID      uint64                `json:"event_id"`
    Quote        pricing.Quote         `json:"quote"`
    Availability availability.Snapshot `json:"availability"`
}

// ReserveRequest asks for Quantity tickets of CategoryID.  OccurrenceID is
// optional: it pins an event-wide category booking to a date and must
// match the category's own occurrence otherwise.
type ReserveRequest struct {
    UserID         uint64
    CategoryID     uint64
    OccurrenceID   *uint64
    Quantity       int
    IdempotencyKey string
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
    Booking      model.Booking         `json:"booking"`
    Quote        pricing.Quote         `json:"quote"`
    Availability availability.Snapshot `json:"availability"`
}

// Callback outcomes accepted from payment gateways.
const (
    PaymentSuccess = "SUCCESS"
    PaymentFailed  = "FAILED"
)

// PaymentCallback is the gateway-agnostic payment notification.
type PaymentCallback struct {
    BookingRef string
    PaymentRef string
    Gateway    string
    Status     string
}

// ConfirmResult reports the booking after a callback.  Changed is false
// when the callback repeated one that was already applied.
type ConfirmResult struct {
    Booking *model.Booking `json:"booking"`
    Changed bool           `json:"changed"`
}

// BookingService implements reservation, payment confirmation,
// cancellation and expiry of bookings.
type BookingService struct {
    bookings    BookingStore
    categories  CategoryStore
    events      EventStore
    occurrences OccurrenceStore
    avail       *AvailabilityService
    idem        IdempotencyStore
    pub         Publisher
    cfg         config.BookingConfig
    now         func() time.Time
}

// NewBookingService wires a BookingService.  idem and pub may be nil, in
// which case idempotency keys are ignored and no events are published.
func NewBookingService(bookings BookingStore, categories CategoryStore, events EventStore, occurrences OccurrenceStore,
    avail *AvailabilityService, idem IdempotencyStore, pub Publisher, cfg config.BookingConfig) *BookingService {
    return &BookingService{
        bookings:    bookings,
        categories:  categories,
        events:      events,
        occurrences: occurrences,
        avail:       avail,
        idem:        idem,
        pub:         pub,
        cfg:         cfg,
        now:         func() time.Time { return time.Now().UTC() },
    }
}

// bookable loads a category that can be sold right now: active, of a
// published event and with an occurrence that has not started.
func (s *BookingService) bookable(ctx context.Context, categoryID uint64, occurrenceID *uint64) (*model.TicketCategory, *model.Event, *model.Occurrence, error) {
    cat, err := s.categories.GetByID(ctx, categoryID)
    if err != nil {
        return nil, nil, nil, err
    }
    if !cat.IsActive {
        return nil, nil, nil, ErrNotBookable
    }
    ev, err := s.events.GetByID(ctx, cat.EventID)
    if err != nil {
        return nil, nil, nil, err
    }
    if ev.Status != model.EventPublished {
        return nil, nil, nil, ErrNotBookable
    }

    occID := cat.OccurrenceID
    if occurrenceID != nil {
        if occID != nil && *occID != *occurrenceID {
            return nil, nil, nil, fmt.Errorf("%w: category belongs to another occurrence", ErrNotBookable)
        }
        occID = occurrenceID
    }
    now := s.now()
    if occID == nil {
        occs, err := s.occurrences.ListByEvent(ctx, ev.ID)
        if err != nil {
            return nil, nil, nil, err
        }
        for _, o := range occs {
            if !o.Started(now) {
                return cat, ev, nil, nil
            }
        }
        return nil, nil, nil, fmt.Errorf("%w: no upcoming occurrence", ErrNotBookable)
    }
    occ, err := s.occurrences.GetByID(ctx, *occID)
    if err != nil {
        return nil, nil, nil, err
    }
    if occ.EventID != ev.ID {
        return nil, nil, nil, repository.ErrOccurrenceNotFound
    }
    if occ.Started(now) {
        return nil, nil, nil, fmt.Errorf("%w: occurrence already started", ErrNotBookable)
    }
    return cat, ev, occ, nil
}

// maxQuantity is the per-booking limit for cat.
func (s *BookingService) maxQuantity(cat *model.TicketCategory) int {
    limit := s.cfg.MaxQuantity
    if cat.MaxPerBooking > 0 && (limit <= 0 || cat.MaxPerBooking < limit) {
        limit = cat.MaxPerBooking
    }
    return limit
}

func (s *BookingService) checkQuantity(cat *model.TicketCategory, quantity int) error {
    if quantity <= 0 {
        return fmt.Errorf("%w: must be positive", ErrInvalidQuantity)
    }
    if limit := s.maxQuantity(cat); limit > 0 && quantity > limit {
        return fmt.Errorf("%w: at most %d tickets per booking", ErrInvalidQuantity, limit)
    }
    return nil
}

// Quote prices quantity tickets of a category without reserving them.
func (s *BookingService) Quote(ctx context.Context, categoryID uint64, quantity int) (*QuoteResult, error) {
    cat, _, _, err := s.bookable(ctx, categoryID, nil)
    if err != nil {
        return nil, err
    }
    if err := s.checkQuantity(cat, quantity); err != nil {
        return nil, err
    }
    snap, err := s.avail.CategorySnapshot(ctx, *cat)
    if err != nil {
        return nil, err
    }
    return &QuoteResult{
        CategoryID:   cat.ID,
        EventID:      cat.EventID,
        Quote:        pricing.QuoteFor(cat.Price(), quantity),
        Availability: snap,
    }, nil
}

// Reserve creates a PENDING booking.  Inventory is admitted atomically by
// the store; a request that does not fit returns ErrInsufficientInventory.
// A replay of an IdempotencyKey already used by the same user returns
// ErrDuplicateRequest.
func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
    if req.Quantity <= 0 {
        return nil, fmt.Errorf("%w: must be positive", ErrInvalidQuantity)
    }
    scope := strconv.FormatUint(req.UserID, 10)
    key := strings.TrimSpace(req.IdempotencyKey)
    if key != "" && s.idem != nil {
        ok, err := s.idem.Claim(ctx, scope, key)
        if err != nil {
            return nil, fmt.Errorf("idempotency check failed: %w", err)
        }
        if !ok {
            return nil, ErrDuplicateRequest
        }
    }

    res, err := s.reserve(ctx, req)
    if err != nil && key != "" && s.idem != nil {
        // Nothing was stored, so the client may retry with the same key.
        if rerr := s.idem.Release(ctx, scope, key); rerr != nil {
            log.Printf("booking: release idempotency key: %v", rerr)
        }
    }
    return res, err
}

func (s *BookingService) reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
    cat, ev, occ, err := s.bookable(ctx, req.CategoryID, req.OccurrenceID)
    if err != nil {
        return nil, err
    }
    if err := s.checkQuantity(cat, req.Quantity); err != nil {
        return nil, err
    }

    quote := pricing.QuoteFor(cat.Price(), req.Quantity)
    b := &model.Booking{
        Reference:      uuid.NewString(),
        UserID:         req.UserID,
        EventID:        ev.ID,
        CategoryID:     cat.ID,
        Quantity:       req.Quantity,
        UnitPrice:      pricing.Round2(cat.BasePrice),
        ConvenienceFee: quote.ConvenienceFee,
        TotalAmount:    quote.Total,
        Commission:     quote.Commission,
        Status:         model.BookingPending,
    }
    if occ != nil {
        id := occ.ID
        b.OccurrenceID = &id
    }

    snap, err := s.bookings.Reserve(ctx, b, s.avail.Policy().Statuses())
    if err != nil {
        if errors.Is(err, repository.ErrCategoryNotFound) {
            return nil, ErrNotBookable
        }
        return nil, err
    }
    if s.avail.Policy().CountPending {
        s.refresh(ctx, ev.ID)
    }
    return &Reservation{Booking: *b, Quote: quote, Availability: snap}, nil
}

// Confirm applies a payment callback.  SUCCESS confirms the booking and
// publishes a booking.confirmed event; FAILED releases the hold.  A
// repeated callback is a no-op reported with Changed=false.
func (s *BookingService) Confirm(ctx context.Context, cb PaymentCallback) (*ConfirmResult, error) {
    ref := strings.TrimSpace(cb.BookingRef)
    if ref == "" {
        return nil, fmt.Errorf("%w: booking_ref required", ErrInvalidCallback)
    }
    gateway := strings.ToLower(strings.TrimSpace(cb.Gateway))

    switch normalizeStatus(cb.Status) {
    case PaymentSuccess:
        payRef := strings.TrimSpace(cb.PaymentRef)
        if payRef == "" {
            return nil, fmt.Errorf("%w: payment_ref required", ErrInvalidCallback)
        }
        b, changed, err := s.bookings.Confirm(ctx, ref, payRef, gateway, s.avail.Policy().Statuses())
        if err != nil {
            if errors.Is(err, repository.ErrConflict) {
                return nil, fmt.Errorf("%w: %s booking", ErrInvalidTransition, statusOf(b))
            }
            return nil, err
        }
        if changed {
            s.publishConfirmed(ctx, b)
            s.refresh(ctx, b.EventID)
        }
        return &ConfirmResult{Booking: b, Changed: changed}, nil

    case PaymentFailed:
        b, changed, err := s.bookings.MarkFailed(ctx, ref, gateway)
        if err != nil {
            if errors.Is(err, repository.ErrConflict) {
                return nil, fmt.Errorf("%w: %s booking", ErrInvalidTransition, statusOf(b))
            }
            return nil, err
        }
        if changed && s.avail.Policy().CountPending {
            s.refresh(ctx, b.EventID)
        }
        return &ConfirmResult{Booking: b, Changed: changed}, nil
    }
    return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidCallback, cb.Status)
}

// normalizeStatus folds the spellings gateways use into PaymentSuccess or
// PaymentFailed.  Anything else is returned upper-cased and rejected.
func normalizeStatus(s string) string {
    switch v := strings.ToUpper(strings.TrimSpace(s)); v {
    case "SUCCESS", "SUCCEEDED", "SUCCESSFUL", "PAID", "CAPTURED", "COMPLETED":
        return PaymentSuccess
    case "FAILED", "FAILURE", "DECLINED", "CANCELLED", "ERROR":
        return PaymentFailed
    default:
        return v
    }
}

func statusOf(b *model.Booking) string {
    if b == nil {
        return "unknown"
    }
    return strings.ToLower(string(b.Status))
}

// Cancel cancels the user's booking before its occurrence starts and
// releases its tickets.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
    b, err := s.bookings.Cancel(ctx, bookingID, userID, s.now())
    if err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return nil, fmt.Errorf("%w: %s booking", ErrInvalidTransition, statusOf(b))
        }
        return nil, err
    }
    s.refresh(ctx, b.EventID)
    return b, nil
}

// Get returns one of the user's bookings.  Bookings of other users are
// reported as ErrForbidden.
func (s *BookingService) Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
    b, err := s.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if b.UserID != userID {
        return nil, repository.ErrForbidden
    }
    return b, nil
}

// ListForUser returns a page of the user's bookings, newest first.
func (s *BookingService) ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]repository.BookingView, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 || pageSize > 100 {
        pageSize = 20
    }
    return s.bookings.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
}

// ExpirePending fails PENDING bookings older than the configured pending
// TTL and refreshes the sold-out flags of the affected events.  It
// returns the number of events touched.
func (s *BookingService) ExpirePending(ctx context.Context) (int, error) {
    cutoff := s.now().Add(-s.cfg.PendingTTL)
    events, err := s.bookings.ExpirePending(ctx, cutoff)
    if err != nil {
        return 0, err
    }
    for _, id := range events {
        s.refresh(ctx, id)
    }
    return len(events), nil
}

// RunSweeper calls ExpirePending every interval until ctx is cancelled.
func (s *BookingService) RunSweeper(ctx context.Context, interval time.Duration) {
    if interval <= 0 {
        interval = time.Minute
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    log.Printf("booking-sweeper: started (interval=%s, pending_ttl=%s)", interval, s.cfg.PendingTTL)
    for {
        select {
        case <-ctx.Done():
            log.Printf("booking-sweeper: stopped")
            return
        case <-ticker.C:
            n, err := s.ExpirePending(ctx)
            if err != nil {
                log.Printf("booking-sweeper: expire failed: %v", err)
                continue
            }
            if n > 0 {
                log.Printf("booking-sweeper: expired stale bookings of %d event(s)", n)
            }
        }
    }
}

// refresh recomputes sold-out flags.  Failures only leave the cached
// flag stale, so they are logged rather than returned.
func (s *BookingService) refresh(ctx context.Context, eventID uint64) {
    if _, err := s.avail.RefreshSoldOut(ctx, eventID); err != nil {
        log.Printf("booking: refresh sold-out of event %d: %v", eventID, err)
    }
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *model.Booking) {
    if s.pub == nil {
        return
    }
    ev := q.BookingConfirmedEvent{
        BookingID:    b.ID,
        Reference:    b.Reference,
        UserID:       b.UserID,
        EventID:      b.EventID,
        OccurrenceID: b.OccurrenceID,
        CategoryID:   b.CategoryID,
        Quantity:     b.Quantity,
        TotalAmount:  b.TotalAmount,
    }
    if b.PaymentRef != nil {
        ev.PaymentRef = *b.PaymentRef
    }
    if b.Gateway != nil {
        ev.Gateway = *b.Gateway
    }
    confirmed := s.now()
    if b.ConfirmedAt != nil {
        confirmed = *b.ConfirmedAt
    }
    ev.ConfirmedAt = confirmed.UTC().Format(time.RFC3339)
    if e, err := s.events.GetByID(ctx, b.EventID); err == nil {
        ev.EventTitle = e.Title
    }
    if c, err := s.categories.GetByID(ctx, b.CategoryID); err == nil {
        ev.CategoryName = c.Name
    }
    if b.OccurrenceID != nil {
        if o, err := s.occurrences.GetByID(ctx, *b.OccurrenceID); err == nil {
            ev.StartsAt = o.StartsAt.UTC().Format(time.RFC3339)
        }
    }
    if err := s.pub.PublishBookingConfirmed(ctx, ev); err != nil {
        log.Printf("booking: publish booking.confirmed for %s: %v", b.Reference, err)
    }
}
