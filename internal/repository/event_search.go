package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/pricing"
)

// EventSearchQuery defines filters & pagination for searching published
// events.
type EventSearchQuery struct {
	Title      string
	City       string
	Venue      string
	Genre      string
	TimeFilter string // upcoming (default) | any
	Page       int
	PageSize   int
}

// PublicEventRow is one search hit.  LowestPrice is the cheapest
// customer-facing ticket price (base plus convenience fee) over active
// categories, nil when nothing is on sale.
type PublicEventRow struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Genre       string     `json:"genre"`
	VenueID     uint64     `json:"venue_id"`
	Venue       string     `json:"venue"`
	City        string     `json:"city"`
	NextStartAt *time.Time `json:"next_starts_at,omitempty"`
	LowestPrice *float64   `json:"lowest_price,omitempty"`
	IsSoldOut   bool       `json:"is_sold_out"`
}

const unitPriceSQL = `CASE WHEN tc.convenience_fee_type = 'percentage'
		THEN tc.base_price + tc.base_price * tc.convenience_fee_value / 100
		ELSE tc.base_price + tc.convenience_fee_value END`

// Search lists published events matching q ordered by their next
// occurrence.  It returns the page and the total number of matches.
func (r *EventRepo) Search(ctx context.Context, q EventSearchQuery) ([]PublicEventRow, int64, error) {
	where := []string{"e.status = 'PUBLISHED'"}
	args := []any{}

	switch strings.ToLower(q.TimeFilter) {
	case "any":
	default:
		where = append(where, "EXISTS (SELECT 1 FROM occurrences o2 WHERE o2.event_id = e.id AND o2.starts_at >= UTC_TIMESTAMP())")
	}

	if q.Title != "" {
		where = append(where, "LOWER(e.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.City != "" {
		where = append(where, "LOWER(v.city) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.City)+"%")
	}
	if q.Venue != "" {
		where = append(where, "LOWER(v.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Venue)+"%")
	}
	if q.Genre != "" {
		where = append(where, "LOWER(e.genre) = ?")
		args = append(args, strings.ToLower(q.Genre))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM events e
		JOIN venues v ON v.id = e.venue_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT
			e.id,
			e.title,
			e.genre,
			v.id   AS venue_id,
			v.name AS venue_name,
			v.city,
			(SELECT MIN(o.starts_at) FROM occurrences o
			  WHERE o.event_id = e.id AND o.starts_at >= UTC_TIMESTAMP()) AS next_starts_at,
			(SELECT MIN(` + unitPriceSQL + `) FROM ticket_categories tc
			  WHERE tc.event_id = e.id AND tc.is_active = 1) AS lowest_price,
			e.is_sold_out
		FROM events e
		JOIN venues v ON v.id = e.venue_id
		WHERE ` + cond + `
		ORDER BY next_starts_at IS NULL, next_starts_at ASC, e.id ASC
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]PublicEventRow, 0, limit)
	for rows.Next() {
		var d PublicEventRow
		var next sql.NullTime
		var price sql.NullFloat64
		if err := rows.Scan(
			&d.ID,
			&d.Title,
			&d.Genre,
			&d.VenueID,
			&d.Venue,
			&d.City,
			&next,
			&price,
			&d.IsSoldOut,
		); err != nil {
			return nil, 0, err
		}
		if next.Valid {
			t := next.Time.UTC()
			d.NextStartAt = &t
		}
		if price.Valid {
			p := pricing.Round2(price.Float64)
			d.LowestPrice = &p
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
