package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// OccurrenceRepo handles CRUD operations on the occurrences table.
type OccurrenceRepo struct {
	db *sql.DB
}

// NewOccurrenceRepo creates a new OccurrenceRepo.
func NewOccurrenceRepo(db *sql.DB) *OccurrenceRepo { return &OccurrenceRepo{db: db} }

const occurrenceColumns = "id, event_id, starts_at, ends_at, is_sold_out, created_at, updated_at"

func scanOccurrence(row interface{ Scan(...any) error }) (*model.Occurrence, error) {
	var o model.Occurrence
	if err := row.Scan(&o.ID, &o.EventID, &o.StartsAt, &o.EndsAt, &o.IsSoldOut, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.StartsAt = o.StartsAt.UTC()
	o.EndsAt = o.EndsAt.UTC()
	return &o, nil
}

// Create inserts an occurrence for an existing event.
func (r *OccurrenceRepo) Create(ctx context.Context, o *model.Occurrence) error {
	const q = "INSERT INTO occurrences (event_id, starts_at, ends_at) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, o.EventID, o.StartsAt.UTC(), o.EndsAt.UTC())
	if err != nil {
		if isMissingParent(err) {
			return ErrEventNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*o = *fresh
	return nil
}

// GetByID returns one occurrence or ErrOccurrenceNotFound.
func (r *OccurrenceRepo) GetByID(ctx context.Context, id uint64) (*model.Occurrence, error) {
	o, err := scanOccurrence(r.db.QueryRowContext(ctx, "SELECT "+occurrenceColumns+" FROM occurrences WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOccurrenceNotFound
	}
	return o, err
}

// ListByEvent returns the occurrences of an event in start order.
func (r *OccurrenceRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+occurrenceColumns+" FROM occurrences WHERE event_id = ? ORDER BY starts_at, id", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Occurrence, 0)
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Update reschedules an occurrence.
func (r *OccurrenceRepo) Update(ctx context.Context, o *model.Occurrence) error {
	const q = "UPDATE occurrences SET starts_at = ?, ends_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, q, o.StartsAt.UTC(), o.EndsAt.UTC(), o.ID); err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	*o = *fresh
	return nil
}

// Delete removes an occurrence and the categories limited to it.  It
// returns ErrConflict while bookings exist for any of those categories.
func (r *OccurrenceRepo) Delete(ctx context.Context, id uint64) error {
	var booked int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE occurrence_id = ?", id).Scan(&booked); err != nil {
		return err
	}
	if booked > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM occurrences WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOccurrenceNotFound
	}
	return nil
}

// SetSoldOut persists the derived sold-out flag of an occurrence.
func (r *OccurrenceRepo) SetSoldOut(ctx context.Context, id uint64, soldOut bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE occurrences SET is_sold_out = ? WHERE id = ?", soldOut, id)
	return err
}
