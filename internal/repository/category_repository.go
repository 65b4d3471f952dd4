package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/pricing"
)

// CategoryRepo handles the ticket_categories table and the booked
// quantity sums that availability is derived from.
type CategoryRepo struct {
	db *sql.DB
}

// NewCategoryRepo creates a new CategoryRepo.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryColumns = `id, event_id, occurrence_id, name, base_price,
	convenience_fee_type, convenience_fee_value, commission_type, commission_value,
	total_inventory, max_per_booking, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*model.TicketCategory, error) {
	var c model.TicketCategory
	var occ sql.NullInt64
	var convType, commType string
	if err := row.Scan(&c.ID, &c.EventID, &occ, &c.Name, &c.BasePrice,
		&convType, &c.ConvenienceFee.Value, &commType, &c.Commission.Value,
		&c.TotalInventory, &c.MaxPerBooking, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ConvenienceFee.Type = pricing.FeeType(convType)
	c.Commission.Type = pricing.FeeType(commType)
	if occ.Valid {
		id := uint64(occ.Int64)
		c.OccurrenceID = &id
	}
	return &c, nil
}

// Create inserts a category.  Unknown event or occurrence ids surface as
// ErrEventNotFound.
func (r *CategoryRepo) Create(ctx context.Context, c *model.TicketCategory) error {
	const q = `INSERT INTO ticket_categories
		(event_id, occurrence_id, name, base_price, convenience_fee_type, convenience_fee_value,
		 commission_type, commission_value, total_inventory, max_per_booking, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.EventID, c.OccurrenceID, c.Name, c.BasePrice,
		string(c.ConvenienceFee.Type), c.ConvenienceFee.Value,
		string(c.Commission.Type), c.Commission.Value,
		c.TotalInventory, c.MaxPerBooking, c.IsActive)
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
	*c = *fresh
	return nil
}

// GetByID returns one category or ErrCategoryNotFound.
func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (*model.TicketCategory, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM ticket_categories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

// ListByEvent returns the categories of an event.  When occurrenceID is
// set only categories sold for that occurrence are returned, which
// includes event-wide ones.  activeOnly hides inactive categories.
func (r *CategoryRepo) ListByEvent(ctx context.Context, eventID uint64, occurrenceID *uint64, activeOnly bool) ([]model.TicketCategory, error) {
	q := "SELECT " + categoryColumns + " FROM ticket_categories WHERE event_id = ?"
	args := []any{eventID}
	if occurrenceID != nil {
		q += " AND (occurrence_id IS NULL OR occurrence_id = ?)"
		args = append(args, *occurrenceID)
	}
	if activeOnly {
		q += " AND is_active = 1"
	}
	q += " ORDER BY base_price, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketCategory, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update overwrites the pricing, inventory and flags of a category.  The
// owning event and occurrence are fixed at creation.
func (r *CategoryRepo) Update(ctx context.Context, c *model.TicketCategory) error {
	const q = `UPDATE ticket_categories
		SET name = ?, base_price = ?, convenience_fee_type = ?, convenience_fee_value = ?,
		    commission_type = ?, commission_value = ?, total_inventory = ?, max_per_booking = ?,
		    is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, c.Name, c.BasePrice,
		string(c.ConvenienceFee.Type), c.ConvenienceFee.Value,
		string(c.Commission.Type), c.Commission.Value,
		c.TotalInventory, c.MaxPerBooking, c.IsActive, c.ID); err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}

// Delete removes a category.  Bookings restrict the delete, in which case
// ErrConflict is returned; deactivate the category instead.
func (r *CategoryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM ticket_categories WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// BookedQuantities sums booking quantities per category for bookings in
// any of statuses.  Categories without bookings are absent from the map.
// The read is not locked; use it for display, never for admission.
func (r *CategoryRepo) BookedQuantities(ctx context.Context, categoryIDs []uint64, statuses []model.BookingStatus) (map[uint64]int, error) {
	out := make(map[uint64]int, len(categoryIDs))
	if len(categoryIDs) == 0 || len(statuses) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(categoryIDs)+len(statuses))
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	for _, s := range statuses {
		args = append(args, string(s))
	}
	q := `SELECT category_id, COALESCE(SUM(quantity), 0)
		FROM bookings
		WHERE category_id IN (` + placeholders(len(categoryIDs)) + `)
		  AND status IN (` + placeholders(len(statuses)) + `)
		GROUP BY category_id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var sum int
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}

// placeholders returns "?, ?, ?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []model.BookingStatus) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
