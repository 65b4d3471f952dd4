// This file defines handlers for the public browsing API.  These routes
// let unauthenticated users browse venues and published events.  Admin
// fields (creator, timestamps, commission) are filtered from responses.

package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-ticketing/internal/availability"
    "github.com/iliyamo/event-ticketing/internal/model"
    "github.com/iliyamo/event-ticketing/internal/pricing"
    "github.com/iliyamo/event-ticketing/internal/repository"
)

// PublicHandler aggregates the stores needed for unauthenticated browsing.
type PublicHandler struct {
    Venues       VenueStore
    Events       EventStore
    Occurrences  OccurrenceStore
    Categories   CategoryStore
    Availability Availability
}

// PublicVenue is a venue exposed via the public API.
type PublicVenue struct {
    ID      uint64  `json:"id"`
    Name    string  `json:"name"`
    City    string  `json:"city"`
    Address *string `json:"address,omitempty"`
}

// PublicOccurrence is one date of an event.
type PublicOccurrence struct {
    ID        uint64    `json:"id"`
    StartsAt  time.Time `json:"starts_at"`
    EndsAt    time.Time `json:"ends_at"`
    IsSoldOut bool      `json:"is_sold_out"`
}

// categoryView is a category with its per-ticket price and live
// availability.
type categoryView struct {
    model.TicketCategory
    Price        pricing.Breakdown     `json:"price"`
    Availability availability.Snapshot `json:"availability"`
}

// PublicCategory is the customer-facing form of a category.  The
// commission is internal and left out.
type PublicCategory struct {
    ID                uint64  `json:"id"`
    OccurrenceID      *uint64 `json:"occurrence_id,omitempty"`
    Name              string  `json:"name"`
    BasePrice         float64 `json:"base_price"`
    ConvenienceFee    float64 `json:"convenience_fee"`
    TotalPrice        float64 `json:"total_price"`
    MaxPerBooking     int     `json:"max_per_booking,omitempty"`
    AvailableQuantity int     `json:"available_quantity"`
    IsSoldOut         bool    `json:"is_sold_out"`
}

// PublicEventDetail is the response of GET /v1/events/:id.
type PublicEventDetail struct {
    ID          uint64             `json:"id"`
    Title       string             `json:"title"`
    Description *string            `json:"description,omitempty"`
    Genre       string             `json:"genre"`
    Status      model.EventStatus  `json:"status"`
    IsSoldOut   bool               `json:"is_sold_out"`
    Venue       *PublicVenue       `json:"venue,omitempty"`
    Occurrences []PublicOccurrence `json:"occurrences"`
    Categories  []PublicCategory   `json:"categories"`
}

func toPublicVenue(v model.Venue) PublicVenue {
    return PublicVenue{ID: v.ID, Name: v.Name, City: v.City, Address: v.Address}
}

// publishedEvent loads an event that the public may see.  Drafts are
// reported as not found.
func (h *PublicHandler) publishedEvent(c echo.Context) (*model.Event, error) {
    id, ok := parseID(c, "id")
    if !ok {
        return nil, repository.ErrEventNotFound
    }
    e, err := h.Events.GetByID(c.Request().Context(), id)
    if err != nil {
        return nil, err
    }
    if e.Status == model.EventDraft {
        return nil, repository.ErrEventNotFound
    }
    return e, nil
}

// ListVenues returns all venues, optionally filtered by ?city=.
func (h *PublicHandler) ListVenues(c echo.Context) error {
    venues, err := h.Venues.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("city")))
    if err != nil {
        return respondError(c, err)
    }
    out := make([]PublicVenue, 0, len(venues))
    for _, v := range venues {
        out = append(out, toPublicVenue(v))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetEvent returns a published event with its occurrences and active
// categories, each priced and with its current availability.
func (h *PublicHandler) GetEvent(c echo.Context) error {
    e, err := h.publishedEvent(c)
    if err != nil {
        return respondError(c, err)
    }
    ctx := c.Request().Context()
    occs, err := h.Occurrences.ListByEvent(ctx, e.ID)
    if err != nil {
        return respondError(c, err)
    }
    cats, err := h.Categories.ListByEvent(ctx, e.ID, nil, true)
    if err != nil {
        return respondError(c, err)
    }
    snaps, err := h.Availability.Snapshots(ctx, cats)
    if err != nil {
        return respondError(c, err)
    }

    resp := PublicEventDetail{
        ID:          e.ID,
        Title:       e.Title,
        Description: e.Description,
        Genre:       e.Genre,
        Status:      e.Status,
        IsSoldOut:   availability.SoldOut(snaps),
        Occurrences: make([]PublicOccurrence, 0, len(occs)),
        Categories:  make([]PublicCategory, 0, len(cats)),
    }
    if v, err := h.Venues.GetByID(ctx, e.VenueID); err == nil {
        pv := toPublicVenue(*v)
        resp.Venue = &pv
    }
    for _, o := range occs {
        resp.Occurrences = append(resp.Occurrences, PublicOccurrence{ID: o.ID, StartsAt: o.StartsAt, EndsAt: o.EndsAt, IsSoldOut: o.IsSoldOut})
    }
    for i, cat := range cats {
        p := cat.Price()
        resp.Categories = append(resp.Categories, PublicCategory{
            ID:                cat.ID,
            OccurrenceID:      cat.OccurrenceID,
            Name:              cat.Name,
            BasePrice:         pricing.Round2(p.BasePrice),
            ConvenienceFee:    pricing.Round2(p.ConvenienceFee),
            TotalPrice:        pricing.Round2(p.TotalPrice),
            MaxPerBooking:     cat.MaxPerBooking,
            AvailableQuantity: snaps[i].AvailableQuantity,
            IsSoldOut:         snaps[i].IsSoldOut,
        })
    }
    return c.JSON(http.StatusOK, resp)
}

// GetAvailability returns per-category availability of a published event,
// restricted to one date with ?occurrence_id=.
func (h *PublicHandler) GetAvailability(c echo.Context) error {
    occID, ok := optionalID(c, "occurrence_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence_id"})
    }
    e, err := h.publishedEvent(c)
    if err != nil {
        return respondError(c, err)
    }
    out, err := h.Availability.EventAvailability(c.Request().Context(), e.ID, occID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

// SearchEvents handles GET /v1/events.
// time: "upcoming" (default) or "any" (no time filter).
func (h *PublicHandler) SearchEvents(c echo.Context) error {
    timeFilter := strings.ToLower(strings.TrimSpace(c.QueryParam("time")))
    switch timeFilter {
    case "":
        timeFilter = "upcoming"
    case "upcoming", "any":
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "time must be upcoming or any"})
    }
    page, ps := pageParams(c)

    q := repository.EventSearchQuery{
        Title:      strings.TrimSpace(c.QueryParam("title")),
        City:       strings.TrimSpace(c.QueryParam("city")),
        Venue:      strings.TrimSpace(c.QueryParam("venue")),
        Genre:      strings.TrimSpace(c.QueryParam("genre")),
        TimeFilter: timeFilter,
        Page:       page,
        PageSize:   ps,
    }
    items, total, err := h.Events.Search(c.Request().Context(), q)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data":      items,
        "total":     total,
        "page":      page,
        "page_size": ps,
    })
}
