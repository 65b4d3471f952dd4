package middleware

import (
    "context"
    "fmt"
    "net/http"
    "net/http/httptest"
    "os"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/event-ticketing/internal/config"
    "github.com/iliyamo/event-ticketing/internal/utils"
)

func getRedisClient(t *testing.T) *redis.Client {
    addr := os.Getenv("REDIS_ADDR")
    if addr == "" {
        addr = "localhost:6379"
    }
    client := redis.NewClient(&redis.Options{Addr: addr})
    if err := client.Ping(context.Background()).Err(); err != nil {
        t.Skipf("Redis not available: %v", err)
    }
    return client
}

func whoAmI(c echo.Context) error {
    role, _ := c.Get("role").(string)
    return c.String(http.StatusOK, userID(c)+"/"+role)
}

func TestJWTAuth(t *testing.T) {
    e := echo.New()
    h := JWTAuth("s3cret")(whoAmI)
    tok, err := utils.NewAccessToken("s3cret", 17, "CUSTOMER", 5)
    if err != nil {
        t.Fatal(err)
    }

    cases := []struct {
        name   string
        header string
        status int
        body   string
    }{
        {"valid", "Bearer " + tok.Token, http.StatusOK, "17/CUSTOMER"},
        {"missing", "", http.StatusUnauthorized, "missing bearer token"},
        {"wrong scheme", "Basic abc", http.StatusUnauthorized, "missing bearer token"},
        {"bad token", "Bearer nope", http.StatusUnauthorized, "invalid token"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/", nil)
            if tc.header != "" {
                req.Header.Set(echo.HeaderAuthorization, tc.header)
            }
            rec := httptest.NewRecorder()
            if err := h(e.NewContext(req, rec)); err != nil {
                t.Fatal(err)
            }
            if rec.Code != tc.status || !strings.Contains(rec.Body.String(), tc.body) {
                t.Errorf("got %d %q", rec.Code, rec.Body.String())
            }
        })
    }
}

func TestRequireRole(t *testing.T) {
    e := echo.New()
    h := RequireRole("ADMIN")(whoAmI)
    for role, want := range map[string]int{"ADMIN": http.StatusOK, "CUSTOMER": http.StatusForbidden, "": http.StatusForbidden} {
        rec := httptest.NewRecorder()
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
        if role != "" {
            c.Set("role", role)
        }
        if err := h(c); err != nil {
            t.Fatal(err)
        }
        if rec.Code != want {
            t.Errorf("role %q: got %d want %d", role, rec.Code, want)
        }
    }
}

func TestUserID(t *testing.T) {
    e := echo.New()
    cases := []struct {
        val  interface{}
        want string
    }{
        {uint64(9), "9"},
        {float64(12), "12"},
        {"abc", "abc"},
        {nil, "guest"},
        {uint64(0), "guest"},
    }
    for _, tc := range cases {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
        if tc.val != nil {
            c.Set("user_id", tc.val)
        }
        if got := userID(c); got != tc.want {
            t.Errorf("userID(%v) = %q, want %q", tc.val, got, tc.want)
        }
    }
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/bookings")
    c.Set("user_id", uint64(5))

    cases := map[string]string{
        "ip":         "rl:ip:10.0.0.1",
        "user":       "rl:user:5",
        "user_route": "rl:user:5:route:POST /v1/bookings",
        "":           "rl:ip:10.0.0.1:user:5:route:POST /v1/bookings",
    }
    for strategy, want := range cases {
        cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}
        if got := buildRateKey(cfg, c); got != want {
            t.Errorf("strategy %q: got %q want %q", strategy, got, want)
        }
    }
}

func TestCacheKeyFrom_IncludesPathParams(t *testing.T) {
    e := echo.New()
    cfg := config.CacheConfig{Prefix: "c", KeyStrategy: "route_query"}
    key := func(target string) string {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
        c.SetPath("/v1/events/:id")
        return cacheKeyFrom(cfg, c)
    }
    if key("/v1/events/1") == key("/v1/events/2") {
        t.Error("different events must not share a cache entry")
    }
    if key("/v1/events/1?occurrence_id=3") == key("/v1/events/1") {
        t.Error("query string must be part of the key")
    }
    if !strings.HasPrefix(key("/v1/events/1"), "c:") {
        t.Error("key should carry the prefix")
    }
}

func TestDecodePayload_RejectsShortInput(t *testing.T) {
    if _, _, _, ok := decodePayload([]byte{0, 0, 0}); ok {
        t.Error("short payload accepted")
    }
    bad := []byte{0, 0, 0, 200, 0, 0, 1, 0, '{'}
    if _, _, _, ok := decodePayload(bad); ok {
        t.Error("truncated header accepted")
    }
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
    rdb := getRedisClient(t)
    defer rdb.Close()
    prefix := fmt.Sprintf("test:rl:%d", time.Now().UnixNano())
    cfg := config.RateLimitConfig{
        Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
        TTL: time.Minute, KeyStrategy: "ip", Prefix: prefix,
    }
    e := echo.New()
    e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

    codes := make([]int, 3)
    for i := range codes {
        req := httptest.NewRequest(http.MethodGet, "/ping", nil)
        req.Header.Set(echo.HeaderXRealIP, "10.1.1.1")
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        codes[i] = rec.Code
        if i == 2 && rec.Header().Get("Retry-After") == "" {
            t.Error("blocked response should carry Retry-After")
        }
    }
    if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
        t.Errorf("codes = %v", codes)
    }
    rdb.Del(context.Background(), prefix+":ip:10.1.1.1")
}

func TestNewTokenBucket_DisabledPassesThrough(t *testing.T) {
    e := echo.New()
    e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(config.RateLimitConfig{}, nil))
    for i := 0; i < 5; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
        if rec.Code != http.StatusNoContent {
            t.Fatalf("request %d: %d", i, rec.Code)
        }
    }
}

func TestRedisCache_HitMissBypassAndPurge(t *testing.T) {
    rdb := getRedisClient(t)
    defer rdb.Close()
    cfg := config.CacheConfig{
        Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
        KeyStrategy: "route_query", Prefix: fmt.Sprintf("test:cache:%d", time.Now().UnixNano()),
    }
    calls := 0
    e := echo.New()
    e.GET("/v1/events/:id", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "n": calls})
    }, NewRedisCache(cfg, rdb))
    e.POST("/admin/touch", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, InvalidateOnWrite(cfg, rdb))

    get := func(path string, hdr ...string) *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodGet, path, nil)
        if len(hdr) == 2 {
            req.Header.Set(hdr[0], hdr[1])
        }
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        return rec
    }

    first := get("/v1/events/1")
    second := get("/v1/events/1")
    if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
        t.Fatalf("cache headers %q then %q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
    }
    if first.Body.String() != second.Body.String() || calls != 1 {
        t.Errorf("hit should replay the stored body without calling the handler (calls=%d)", calls)
    }
    if rec := get("/v1/events/2"); rec.Header().Get("X-Cache") != "MISS" {
        t.Error("another event should miss")
    }
    if rec := get("/v1/events/1", echo.HeaderCacheControl, "no-cache"); rec.Header().Get("X-Cache") != "BYPASS" {
        t.Error("no-cache should bypass")
    }

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/touch", nil))
    if rec := get("/v1/events/1"); rec.Header().Get("X-Cache") != "MISS" {
        t.Error("a successful write should purge cached reads")
    }
    if _, err := PurgeCache(context.Background(), cfg, rdb); err != nil {
        t.Fatal(err)
    }
}

func TestInvalidateOnWrite_OnlySuccessfulWritesPurge(t *testing.T) {
    rdb := getRedisClient(t)
    defer rdb.Close()
    cfg := config.CacheConfig{
        Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
        KeyStrategy: "route_query", Prefix: fmt.Sprintf("test:inval:%d", time.Now().UnixNano()),
    }
    defer PurgeCache(context.Background(), cfg, rdb)

    e := echo.New()
    e.GET("/v1/events", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"items": []int{}}) }, NewRedisCache(cfg, rdb))
    invalidate := InvalidateOnWrite(cfg, rdb)
    e.POST("/v1/bookings", func(c echo.Context) error {
        return c.JSON(http.StatusConflict, echo.Map{"error": "not enough tickets"})
    }, invalidate)
    e.DELETE("/v1/bookings/:id", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"status": "CANCELLED"}) }, invalidate)

    do := func(method, path string) *httptest.ResponseRecorder {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
        return rec
    }

    do(http.MethodGet, "/v1/events")
    do(http.MethodPost, "/v1/bookings")
    if rec := do(http.MethodGet, "/v1/events"); rec.Header().Get("X-Cache") != "HIT" {
        t.Errorf("a refused booking should leave the cache alone, got %q", rec.Header().Get("X-Cache"))
    }
    do(http.MethodDelete, "/v1/bookings/9")
    if rec := do(http.MethodGet, "/v1/events"); rec.Header().Get("X-Cache") != "MISS" {
        t.Errorf("a cancellation should purge cached searches, got %q", rec.Header().Get("X-Cache"))
    }
}
