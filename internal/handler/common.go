package handler // handler defines http handlers

import (
    "errors"   // errors matches sentinel values from the lower layers
    "net/http" // net/http provides status codes
    "strconv"  // strconv converts path and query parameters

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/event-ticketing/internal/repository"
    "github.com/iliyamo/event-ticketing/internal/service"
)

// getUserID extracts the user_id stored by JWTAuth and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        if t > 0 {
            return t, nil
        }
    case int:
        if t > 0 {
            return uint64(t), nil
        }
    case int64:
        if t > 0 {
            return uint64(t), nil
        }
    case float64:
        if t > 0 {
            return uint64(t), nil
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// optionalID reads a positive integer query parameter.  ok is false when
// the parameter is present but malformed.
func optionalID(c echo.Context, name string) (id *uint64, ok bool) {
    raw := c.QueryParam(name)
    if raw == "" {
        return nil, true
    }
    n, err := strconv.ParseUint(raw, 10, 64)
    if err != nil || n == 0 {
        return nil, false
    }
    return &n, true
}

// pageParams reads page (default 1) and page_size (default 20, at most 100).
func pageParams(c echo.Context) (page, size int) {
    page, _ = strconv.Atoi(c.QueryParam("page"))
    if page < 1 {
        page = 1
    }
    size, _ = strconv.Atoi(c.QueryParam("page_size"))
    if size < 1 {
        size = 20
    }
    if size > 100 {
        size = 100
    }
    return page, size
}

// errorStatus maps domain errors to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
    switch {
    case errors.Is(err, repository.ErrVenueNotFound):
        return http.StatusNotFound, "venue not found"
    case errors.Is(err, repository.ErrEventNotFound):
        return http.StatusNotFound, "event not found"
    case errors.Is(err, repository.ErrOccurrenceNotFound):
        return http.StatusNotFound, "occurrence not found"
    case errors.Is(err, repository.ErrCategoryNotFound):
        return http.StatusNotFound, "category not found"
    case errors.Is(err, repository.ErrBookingNotFound):
        return http.StatusNotFound, "booking not found"
    case errors.Is(err, repository.ErrForbidden):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, service.ErrInsufficientInventory):
        return http.StatusConflict, "not enough tickets left"
    case errors.Is(err, service.ErrAlreadyStarted):
        return http.StatusConflict, "event has already started"
    case errors.Is(err, service.ErrDuplicateRequest):
        return http.StatusConflict, "duplicate request"
    case errors.Is(err, service.ErrNotBookable):
        return http.StatusConflict, service.ErrNotBookable.Error()
    case errors.Is(err, service.ErrInvalidTransition):
        return http.StatusConflict, err.Error()
    case errors.Is(err, repository.ErrConflict):
        return http.StatusConflict, "resource is still referenced"
    case errors.Is(err, repository.ErrEmailExists):
        return http.StatusConflict, "email already exists"
    case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrInvalidCallback):
        return http.StatusBadRequest, err.Error()
    }
    return http.StatusInternalServerError, "internal error"
}

// respondError writes err as {"error": ...}.  Unmapped errors are logged
// and reported as 500.
func respondError(c echo.Context, err error) error {
    status, msg := errorStatus(err)
    if status == http.StatusInternalServerError {
        c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
    }
    return c.JSON(status, echo.Map{"error": msg})
}
