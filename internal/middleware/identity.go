package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userID returns the authenticated caller's ID as a string for use in rate
// limit and cache keys.  JWTAuth stores a uint64; older values may still be
// float64 (raw JSON claims) or string.  Unauthenticated requests are "guest".
func userID(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case uint64:
        if v > 0 {
            return strconv.FormatUint(v, 10)
        }
    case float64:
        if v > 0 {
            return strconv.FormatUint(uint64(v), 10)
        }
    case string:
        if v != "" {
            return v
        }
    }
    return "guest"
}
