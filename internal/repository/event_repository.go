package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo handles CRUD operations on the events table.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = "id, venue_id, title, description, genre, status, is_sold_out, created_by, created_at, updated_at"

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var desc sql.NullString
	var status string
	if err := row.Scan(&e.ID, &e.VenueID, &e.Title, &desc, &e.Genre, &status,
		&e.IsSoldOut, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	if desc.Valid {
		d := desc.String
		e.Description = &d
	}
	return &e, nil
}

// Create inserts a new event and reloads it so defaults are populated.
// A venue_id that does not exist yields ErrVenueNotFound.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	if e.Status == "" {
		e.Status = model.EventDraft
	}
	const q = `INSERT INTO events (venue_id, title, description, genre, status, created_by)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.VenueID, e.Title, e.Description, e.Genre, string(e.Status), e.CreatedBy)
	if err != nil {
		if isMissingParent(err) {
			return ErrVenueNotFound
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
	*e = *fresh
	return nil
}

// GetByID returns the event with the given id or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// List returns every event in any status, newest first.  It backs the
// admin listing; the public side goes through Search.
func (r *EventRepo) List(ctx context.Context, limit, offset int) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Update overwrites title, description, genre, status and venue.  The
// sold-out flag is owned by SetSoldOut and left alone.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	const q = `UPDATE events
	           SET venue_id = ?, title = ?, description = ?, genre = ?, status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, e.VenueID, e.Title, e.Description, e.Genre, string(e.Status), e.ID); err != nil {
		if isMissingParent(err) {
			return ErrVenueNotFound
		}
		return err
	}
	fresh, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

// Delete removes an event together with its occurrences and categories.
// Bookings keep a restricting foreign key on the event, so an event that
// has ever been booked cannot be deleted and ErrConflict is returned;
// cancel it instead.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SetSoldOut persists the derived sold-out flag of an event.
func (r *EventRepo) SetSoldOut(ctx context.Context, id uint64, soldOut bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE events SET is_sold_out = ? WHERE id = ?", soldOut, id)
	return err
}
