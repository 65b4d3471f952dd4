package config

import (
    "os"
    "strconv"
    "time"
)

type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig returns the global limiter applied to every route.
func LoadRateLimitConfig() RateLimitConfig {
    return loadRateLimit("RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       60,
        RefillTokens:   1,
        RefillInterval: time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_user_route",
        Prefix:         "rl",
    })
}

// LoadBookingRateLimitConfig returns the stricter limiter placed in front
// of booking creation so one client cannot drain a category with bursts.
func LoadBookingRateLimitConfig() RateLimitConfig {
    return loadRateLimit("BOOKING_RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       5,
        RefillTokens:   1,
        RefillInterval: 10 * time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "user",
        Prefix:         "rl:booking",
    })
}

func loadRateLimit(p string, d RateLimitConfig) RateLimitConfig {
    c := RateLimitConfig{
        Enabled:        envBool(p+"_ENABLED", d.Enabled),
        Capacity:       envInt(p+"_CAPACITY", d.Capacity),
        RefillTokens:   envInt(p+"_REFILL_TOKENS", d.RefillTokens),
        RefillInterval: envDur(p+"_REFILL_INTERVAL", d.RefillInterval),
        TTL:            envDur(p+"_TTL", d.TTL),
        KeyStrategy:    envStr(p+"_KEY_STRATEGY", d.KeyStrategy),
        Prefix:         envStr(p+"_PREFIX", d.Prefix),
        Debug:          envBool(p+"_DEBUG", false),
    }
    if b := envInt(p+"_BURST", -1); b > 0 {
        c.Capacity = b
    }
    if every := envDur(p+"_REFILL_EVERY", 0); every > 0 {
        c.RefillTokens = 1
        c.RefillInterval = every
    }
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    minTTL := 5 * c.RefillInterval
    if c.TTL < minTTL { c.TTL = minTTL }
    return c
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}
