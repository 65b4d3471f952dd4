package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/availability"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// ErrAlreadyStarted is returned when a booking is cancelled after its
// occurrence began.
var ErrAlreadyStarted = errors.New("occurrence already started")

// BookingRepo stores bookings.  Every write that admits tickets locks the
// ticket category row with SELECT ... FOR UPDATE before summing the
// bookings that count against it, so two concurrent buyers of the same
// category are serialized and inventory cannot be oversold.  Lock order is
// always category row first, booking row second.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingView is a booking joined with the names a customer needs to
// recognise it.
type BookingView struct {
	model.Booking
	EventTitle   string     `json:"event_title"`
	CategoryName string     `json:"category_name"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
}

const bookingColumns = `b.id, b.reference, b.user_id, b.event_id, b.occurrence_id, b.category_id,
	b.quantity, b.unit_price, b.convenience_fee, b.total_amount, b.commission, b.status,
	b.payment_ref, b.gateway, b.confirmed_at, b.created_at, b.updated_at`

type scanner interface{ Scan(...any) error }

func bookingDest(b *model.Booking, occ *sql.NullInt64, payRef, gateway *sql.NullString, confirmed *sql.NullTime, status *string) []any {
	return []any{&b.ID, &b.Reference, &b.UserID, &b.EventID, occ, &b.CategoryID,
		&b.Quantity, &b.UnitPrice, &b.ConvenienceFee, &b.TotalAmount, &b.Commission, status,
		payRef, gateway, confirmed, &b.CreatedAt, &b.UpdatedAt}
}

func scanBooking(row scanner, extra ...any) (*model.Booking, error) {
	var b model.Booking
	var occ sql.NullInt64
	var payRef, gateway sql.NullString
	var confirmed sql.NullTime
	var status string
	dest := append(bookingDest(&b, &occ, &payRef, &gateway, &confirmed, &status), extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if occ.Valid {
		id := uint64(occ.Int64)
		b.OccurrenceID = &id
	}
	if payRef.Valid {
		s := payRef.String
		b.PaymentRef = &s
	}
	if gateway.Valid {
		s := gateway.String
		b.Gateway = &s
	}
	if confirmed.Valid {
		t := confirmed.Time.UTC()
		b.ConfirmedAt = &t
	}
	return &b, nil
}

func containsStatus(statuses []model.BookingStatus, s model.BookingStatus) bool {
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}

// lockCategoryTx locks the category row and returns its inventory and
// active flag.
func lockCategoryTx(ctx context.Context, tx *sql.Tx, categoryID uint64) (total int, active bool, err error) {
	err = tx.QueryRowContext(ctx,
		"SELECT total_inventory, is_active FROM ticket_categories WHERE id = ? FOR UPDATE",
		categoryID).Scan(&total, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrCategoryNotFound
	}
	return total, active, err
}

// countedTx sums the quantities of bookings in statuses for a category.
// The caller must hold the category lock.
func countedTx(ctx context.Context, tx *sql.Tx, categoryID uint64, statuses []model.BookingStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := append([]any{categoryID}, statusArgs(statuses)...)
	var sum int
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM bookings WHERE category_id = ? AND status IN ("+placeholders(len(statuses))+")",
		args...).Scan(&sum)
	return sum, err
}

// Reserve admits b against its category's inventory and inserts it.
// statuses lists the booking statuses that hold inventory.  The returned
// snapshot reflects the category after the insert.  When the category
// cannot fit b.Quantity the pre-insert snapshot is returned together with
// ErrInsufficientInventory and nothing is written.
func (r *BookingRepo) Reserve(ctx context.Context, b *model.Booking, statuses []model.BookingStatus) (availability.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return availability.Snapshot{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	total, active, err := lockCategoryTx(ctx, tx, b.CategoryID)
	if err != nil {
		return availability.Snapshot{}, err
	}
	if !active {
		return availability.Snapshot{}, ErrCategoryNotFound
	}
	booked, err := countedTx(ctx, tx, b.CategoryID, statuses)
	if err != nil {
		return availability.Snapshot{}, err
	}
	snap := availability.Aggregate(b.CategoryID, total, booked)
	if !snap.CanFulfil(b.Quantity) {
		return snap, ErrInsufficientInventory
	}

	if b.Status == "" {
		b.Status = model.BookingPending
	}
	const ins = `INSERT INTO bookings
		(reference, user_id, event_id, occurrence_id, category_id, quantity,
		 unit_price, convenience_fee, total_amount, commission, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, b.Reference, b.UserID, b.EventID, b.OccurrenceID, b.CategoryID,
		b.Quantity, b.UnitPrice, b.ConvenienceFee, b.TotalAmount, b.Commission, string(b.Status))
	if err != nil {
		if isDuplicate(err) {
			return snap, ErrConflict
		}
		return snap, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return snap, err
	}
	fresh, err := scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings b WHERE b.id = ?", id))
	if err != nil {
		return snap, err
	}
	if err := tx.Commit(); err != nil {
		return snap, err
	}
	committed = true
	*b = *fresh

	if containsStatus(statuses, b.Status) {
		snap = availability.Aggregate(b.CategoryID, total, booked, b.Quantity)
	}
	return snap, nil
}

// Confirm records a successful payment for the booking with reference
// ref.  It reports changed=false when the booking was already confirmed
// with the same paymentRef, which makes gateway retries harmless.  A
// booking whose current status does not hold inventory (for example one
// the sweeper already failed) is re-admitted under the category lock and
// may be refused with ErrInsufficientInventory.  Cancelled bookings and
// confirmations carrying a different payment reference yield ErrConflict.
func (r *BookingRepo) Confirm(ctx context.Context, ref, paymentRef, gateway string, statuses []model.BookingStatus) (*model.Booking, bool, error) {
	// The category id is read first, unlocked, so that the category row can
	// be locked before the booking row.
	var categoryID uint64
	err := r.db.QueryRowContext(ctx, "SELECT category_id FROM bookings WHERE reference = ?", ref).Scan(&categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrBookingNotFound
	}
	if err != nil {
		return nil, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	total, _, err := lockCategoryTx(ctx, tx, categoryID)
	if err != nil {
		return nil, false, err
	}
	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.reference = ? FOR UPDATE", ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrBookingNotFound
	}
	if err != nil {
		return nil, false, err
	}

	switch b.Status {
	case model.BookingConfirmed:
		if b.PaymentRef != nil && *b.PaymentRef == paymentRef {
			return b, false, nil
		}
		return b, false, ErrConflict
	case model.BookingCancelled:
		return b, false, ErrConflict
	}

	if !containsStatus(statuses, b.Status) {
		booked, err := countedTx(ctx, tx, categoryID, statuses)
		if err != nil {
			return nil, false, err
		}
		if !availability.Aggregate(categoryID, total, booked).CanFulfil(b.Quantity) {
			return b, false, ErrInsufficientInventory
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = ?, gateway = ?, confirmed_at = UTC_TIMESTAMP()
		 WHERE id = ?`,
		string(model.BookingConfirmed), paymentRef, nullIfEmpty(gateway), b.ID)
	if err != nil {
		if isDuplicate(err) {
			return b, false, ErrConflict
		}
		return nil, false, err
	}
	fresh, err := scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings b WHERE b.id = ?", b.ID))
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return fresh, true, nil
}

// MarkFailed records a failed payment.  Only PENDING bookings move to
// FAILED; a booking that is already FAILED is returned unchanged.
func (r *BookingRepo) MarkFailed(ctx context.Context, ref, gateway string) (*model.Booking, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.reference = ? FOR UPDATE", ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrBookingNotFound
	}
	if err != nil {
		return nil, false, err
	}
	switch b.Status {
	case model.BookingFailed:
		return b, false, nil
	case model.BookingPending:
	default:
		return b, false, ErrConflict
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status = ?, gateway = COALESCE(?, gateway) WHERE id = ?",
		string(model.BookingFailed), nullIfEmpty(gateway), b.ID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	b.Status = model.BookingFailed
	if gateway != "" {
		b.Gateway = &gateway
	}
	return b, true, nil
}

// Cancel cancels a PENDING or CONFIRMED booking owned by userID as long as
// its occurrence has not started at now.  For event-wide bookings the
// first occurrence of the event is used.  Cancelling an already cancelled
// booking returns it unchanged.
func (r *BookingRepo) Cancel(ctx context.Context, id, userID uint64, now time.Time) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	switch b.Status {
	case model.BookingCancelled:
		return b, nil
	case model.BookingPending, model.BookingConfirmed:
	default:
		return b, ErrConflict
	}

	var starts sql.NullTime
	if b.OccurrenceID != nil {
		err = tx.QueryRowContext(ctx, "SELECT starts_at FROM occurrences WHERE id = ?", *b.OccurrenceID).Scan(&starts)
	} else {
		err = tx.QueryRowContext(ctx, "SELECT MIN(starts_at) FROM occurrences WHERE event_id = ?", b.EventID).Scan(&starts)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if starts.Valid && !starts.Time.After(now) {
		return b, ErrAlreadyStarted
	}

	if _, err := tx.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", string(model.BookingCancelled), b.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	b.Status = model.BookingCancelled
	return b, nil
}

// GetByID returns a booking by id or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings b WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetByReference returns a booking by its public reference.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings b WHERE b.reference = ?", ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

const bookingViewFrom = `FROM bookings b
	JOIN events e ON e.id = b.event_id
	JOIN ticket_categories tc ON tc.id = b.category_id
	LEFT JOIN occurrences o ON o.id = b.occurrence_id`

func (r *BookingRepo) listViews(ctx context.Context, where string, args ...any) ([]BookingView, error) {
	q := "SELECT " + bookingColumns + ", e.title, tc.name, o.starts_at " + bookingViewFrom +
		" WHERE " + where + " ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookingView, 0)
	for rows.Next() {
		var v BookingView
		var starts sql.NullTime
		b, err := scanBooking(rows, &v.EventTitle, &v.CategoryName, &starts)
		if err != nil {
			return nil, err
		}
		v.Booking = *b
		if starts.Valid {
			t := starts.Time.UTC()
			v.StartsAt = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByUser returns a page of the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]BookingView, error) {
	return r.listViews(ctx, "b.user_id = ?", userID, limit, offset)
}

// ListByEvent returns a page of an event's bookings for admins, newest
// first, optionally restricted to one status.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID uint64, status model.BookingStatus, limit, offset int) ([]BookingView, error) {
	if status != "" {
		return r.listViews(ctx, "b.event_id = ? AND b.status = ?", eventID, string(status), limit, offset)
	}
	return r.listViews(ctx, "b.event_id = ?", eventID, limit, offset)
}

// ExpirePending marks PENDING bookings created before cutoff as FAILED so
// they stop holding inventory.  It returns the distinct events touched.
func (r *BookingRepo) ExpirePending(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, event_id FROM bookings WHERE status = ? AND created_at < ? FOR UPDATE",
		string(model.BookingPending), cutoff.UTC())
	if err != nil {
		return nil, err
	}
	var ids []any
	seen := map[uint64]bool{}
	events := make([]uint64, 0)
	for rows.Next() {
		var id, eventID uint64
		if err := rows.Scan(&id, &eventID); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		if !seen[eventID] {
			seen[eventID] = true
			events = append(events, eventID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return events, nil
	}

	args := append([]any{string(model.BookingFailed)}, ids...)
	if _, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status = ? WHERE id IN ("+placeholders(len(ids))+")", args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return events, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
