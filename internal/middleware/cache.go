package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/event-ticketing/internal/config"
)

// captureWriter tees the response body (up to limit) while forwarding it.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    limit  int64
    over   bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.over {
        if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
            cw.over = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the request parts chosen by cfg.KeyStrategy under
// cfg.Prefix.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    // c.Path() is the route pattern, so path params must be part of the key.
    path := r.URL.Path
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", path}
    case "method_route":
        parts = []string{"method", r.Method, "route", path}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", path, "q", r.URL.RawQuery}
    default: // route_query
        parts = []string{"route", path, "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// NewRedisCache serves repeated public reads from Redis.  Only 200
// responses for cfg.Methods are stored.  Requests sending
// "Cache-Control: no-cache" always reach the handler; availability
// polled that way is never stale.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 10 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] {
                return next(c)
            }
            if strings.Contains(strings.ToLower(req.Header.Get(echo.HeaderCacheControl)), "no-cache") {
                c.Response().Header().Set("X-Cache", "BYPASS")
                return next(c)
            }

            ctx := req.Context()
            key := cacheKeyFrom(cfg, c)
            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.over {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                _ = rdb.SetEx(context.Background(), key, payload, ttl).Err()
            }
            return nil
        }
    }
}

// PurgeCache deletes every cached response under cfg.Prefix.
func PurgeCache(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) (int, error) {
    if rdb == nil {
        return 0, nil
    }
    deleted := 0
    iter := rdb.Scan(ctx, 0, cfg.Prefix+":*", 200).Iterator()
    batch := make([]string, 0, 200)
    for iter.Next(ctx) {
        batch = append(batch, iter.Val())
        if len(batch) == cap(batch) {
            n, err := rdb.Del(ctx, batch...).Result()
            if err != nil {
                return deleted, err
            }
            deleted += int(n)
            batch = batch[:0]
        }
    }
    if err := iter.Err(); err != nil {
        return deleted, err
    }
    if len(batch) > 0 {
        n, err := rdb.Del(ctx, batch...).Result()
        if err != nil {
            return deleted, err
        }
        deleted += int(n)
    }
    return deleted, nil
}

// InvalidateOnWrite purges the public response cache after any successful
// non-GET request, so catalog edits show up immediately.
func InvalidateOnWrite(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            err := next(c)
            m := c.Request().Method
            if err == nil && m != http.MethodGet && m != http.MethodHead && c.Response().Status < 400 {
                if _, perr := PurgeCache(c.Request().Context(), cfg, rdb); perr != nil {
                    c.Logger().Warnf("[cache] purge failed: %v", perr)
                }
            }
            return err
        }
    }
}
