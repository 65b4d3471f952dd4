package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/event-ticketing/internal/availability"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

const tokenPurgeInterval = time.Hour

func main() {
	cfg := config.Load()
	bookingCfg := config.LoadBookingConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient() // nil disables cache, rate limits and idempotency keys
	if rdb == nil {
		log.Println("redis unavailable; cache, rate limiting and idempotency keys disabled")
	} else {
		defer rdb.Close()
	}

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	venues := repository.NewVenueRepo(db)
	events := repository.NewEventRepo(db)
	occurrences := repository.NewOccurrenceRepo(db)
	categories := repository.NewCategoryRepo(db)
	bookings := repository.NewBookingRepo(db)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			log.Printf("bootstrap admin %s ready", repository.NormalizeEmail(cfg.AdminEmail))
		}
	}

	// Services
	avail := service.NewAvailabilityService(events, occurrences, categories,
		availability.Policy{CountPending: bookingCfg.CountPending})
	var idem service.IdempotencyStore
	if rdb != nil {
		idem = repository.NewIdempotencyStore(rdb, bookingCfg.IdempotencyTTL)
	}
	bookingSvc := service.NewBookingService(bookings, categories, events, occurrences, avail,
		idem, service.NewAMQPPublisher(cfg.AMQPURL), bookingCfg)

	// Background workers
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bookingSvc.RunSweeper(ctx, bookingCfg.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		purgeTokens(ctx, tokens)
	}()
	if cfg.ConsumerOn {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.StartBookingConsumer(ctx, cfg.AMQPURL, cfg.LogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: stopped: %v", err)
			}
		}()
	}

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(logLevel(cfg.LogLevel))
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cacheCfg := config.LoadCacheConfig()
	invalidate := middleware.InvalidateOnWrite(cacheCfg, rdb)
	bookingHandler := handler.NewBookingHandler(bookingSvc)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, &handler.PublicHandler{
		Venues:       venues,
		Events:       events,
		Occurrences:  occurrences,
		Categories:   categories,
		Availability: avail,
	}, bookingHandler, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterCustomer(e, bookingHandler, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadBookingRateLimitConfig(), rdb), invalidate)
	router.RegisterAdmin(e,
		handler.NewAdminHandler(venues, events, occurrences, categories, avail, bookings),
		cfg.JWTSecret, invalidate)
	router.RegisterPayments(e, handler.NewPaymentHandler(bookingSvc, cfg.CallbackSecret), invalidate)

	go func() {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	wg.Wait()
	log.Println("workers stopped")
}

// purgeTokens deletes expired refresh tokens every tokenPurgeInterval.
func purgeTokens(ctx context.Context, tokens *repository.TokenRepo) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("token-purge: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("token-purge: removed %d expired refresh tokens", n)
			}
		}
	}
}

func logLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn", "warning":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	}
	return glog.INFO
}
