package config

import "time"

// BookingConfig controls how inventory is held and released.
//
//   BOOKING_COUNT_PENDING   – pending (unpaid) bookings hold stock (default true)
//   BOOKING_PENDING_TTL     – age after which an unpaid booking is failed (default 15m)
//   BOOKING_SWEEP_INTERVAL  – how often stale pending bookings are swept (default 1m)
//   BOOKING_MAX_QUANTITY    – hard cap on tickets per booking (default 10)
//   BOOKING_IDEMPOTENCY_TTL – lifetime of Idempotency-Key reservations (default 24h)
type BookingConfig struct {
    CountPending   bool
    PendingTTL     time.Duration
    SweepInterval  time.Duration
    MaxQuantity    int
    IdempotencyTTL time.Duration
}

// LoadBookingConfig reads BookingConfig from the environment, clamping
// nonsensical values to the defaults.
func LoadBookingConfig() BookingConfig {
    c := BookingConfig{
        CountPending:   envBool("BOOKING_COUNT_PENDING", true),
        PendingTTL:     envDur("BOOKING_PENDING_TTL", 15*time.Minute),
        SweepInterval:  envDur("BOOKING_SWEEP_INTERVAL", time.Minute),
        MaxQuantity:    envInt("BOOKING_MAX_QUANTITY", 10),
        IdempotencyTTL: envDur("BOOKING_IDEMPOTENCY_TTL", 24*time.Hour),
    }
    if c.PendingTTL <= 0 {
        c.PendingTTL = 15 * time.Minute
    }
    if c.SweepInterval <= 0 {
        c.SweepInterval = time.Minute
    }
    if c.MaxQuantity < 1 {
        c.MaxQuantity = 10
    }
    if c.IdempotencyTTL <= 0 {
        c.IdempotencyTTL = 24 * time.Hour
    }
    return c
}
