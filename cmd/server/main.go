// Command server runs the seat hold HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seat-hold-service/internal/clock"
	"github.com/iliyamo/seat-hold-service/internal/config"
	"github.com/iliyamo/seat-hold-service/internal/database"
	"github.com/iliyamo/seat-hold-service/internal/finder"
	"github.com/iliyamo/seat-hold-service/internal/handler"
	"github.com/iliyamo/seat-hold-service/internal/ids"
	"github.com/iliyamo/seat-hold-service/internal/logger"
	"github.com/iliyamo/seat-hold-service/internal/middleware"
	"github.com/iliyamo/seat-hold-service/internal/queue"
	"github.com/iliyamo/seat-hold-service/internal/random"
	"github.com/iliyamo/seat-hold-service/internal/repository"
	"github.com/iliyamo/seat-hold-service/internal/router"
	"github.com/iliyamo/seat-hold-service/internal/service"
	"github.com/iliyamo/seat-hold-service/internal/token"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	cfg := config.Load()

	slogger, logCloser, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser.Close()

	venue, err := cfg.Venue()
	if err != nil {
		return fmt.Errorf("venue: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()
	src := random.NewCrypto()
	store := repository.NewReservationStore(clk)

	var publisher service.EventPublisher
	var amqpPub *service.AMQPPublisher
	if cfg.EventsEnabled {
		amqpPub = service.NewAMQPPublisher(cfg.AMQPURL, slogger)
		publisher = amqpPub
	}

	tickets := service.NewTicketService(store, finder.New(src, slogger), ids.NewAllocator(src), token.NewMint(src), clk,
		service.WithPublisher(publisher), service.WithLogger(slogger))
	if err := tickets.Configure(venue); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	var wg sync.WaitGroup
	sweeper := service.NewSweeper(store, clk, cfg.SweepInterval, publisher, slogger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	var archiver queue.Archiver
	var confirmations handler.ConfirmationLookup
	if cfg.ArchiveEnabled() {
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		archive := repository.NewConfirmationArchive(db)
		if err := archive.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("archive schema: %w", err)
		}
		archiver = archive
		confirmations = archive
	}
	if cfg.EventsEnabled {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.EventLogDir, archiver, slogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slogger.Error("reservation consumer stopped", "err", err)
			}
		}()
	}

	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("redis unavailable: rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e)
	router.RegisterTickets(e, handler.NewTicketHandler(tickets, slogger),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterAdmin(e, &handler.AdminHandler{
		Tickets:       tickets,
		Confirmations: confirmations,
		PasswordHash:  cfg.AdminPasswordHash,
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      time.Duration(cfg.AccessTTLMin) * time.Minute,
		Clock:         clk,
		Log:           slogger,
	}, cfg.JWTSecret)
	if cfg.AdminPasswordHash == "" {
		log.Printf("ADMIN_PASSWORD_HASH not set: admin login disabled")
	}

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, capacity=%d)", addr, cfg.Env, venue.Capacity())
	serveErr := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case runErr = <-serveErr:
		stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	wg.Wait()
	tickets.Wait()
	if amqpPub != nil {
		_ = amqpPub.Close()
	}
	return runErr
}
