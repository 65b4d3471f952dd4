// This file defines repository methods for venues.  A venue is where events
// take place; deleting a venue that still hosts events is refused by the
// foreign key and surfaced as ErrConflict.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors.Is for sentinel comparisons

	"github.com/iliyamo/event-ticketing/internal/model"
)

// VenueRepo encapsulates all database queries related to venues.
type VenueRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewVenueRepo constructs a VenueRepo with the provided DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

const venueColumns = "id, name, city, address, capacity, created_at, updated_at"

func scanVenue(row interface{ Scan(...any) error }) (*model.Venue, error) {
	var v model.Venue
	var addr sql.NullString
	if err := row.Scan(&v.ID, &v.Name, &v.City, &addr, &v.Capacity, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if addr.Valid {
		a := addr.String
		v.Address = &a
	}
	return &v, nil
}

// Create inserts a new venue.  On success the venue's ID and timestamps
// are populated from the stored row.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	const q = "INSERT INTO venues (name, city, address, capacity) VALUES (?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, v.Name, v.City, v.Address, v.Capacity)
	if err != nil {
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
	*v = *fresh
	return nil
}

// GetByID fetches a venue by its ID.  It returns ErrVenueNotFound if no
// row is found.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	v, err := scanVenue(r.db.QueryRowContext(ctx, "SELECT "+venueColumns+" FROM venues WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVenueNotFound
	}
	return v, err
}

// List returns venues ordered by name, optionally restricted to a city
// (case-insensitive exact match).
func (r *VenueRepo) List(ctx context.Context, city string) ([]model.Venue, error) {
	q := "SELECT " + venueColumns + " FROM venues"
	var args []any
	if city != "" {
		q += " WHERE LOWER(city) = LOWER(?)"
		args = append(args, city)
	}
	q += " ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Venue, 0)
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Update overwrites the mutable venue fields.  It returns ErrVenueNotFound
// when no row matches.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	const q = `UPDATE venues
	           SET name = ?, city = ?, address = ?, capacity = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, v.Name, v.City, v.Address, v.Capacity, v.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows for a no-op update too, so confirm existence.
		if _, err := r.GetByID(ctx, v.ID); err != nil {
			return err
		}
	}
	fresh, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = *fresh
	return nil
}

// Delete removes a venue.  It returns ErrConflict while events still
// reference it.
func (r *VenueRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM venues WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVenueNotFound
	}
	return nil
}
