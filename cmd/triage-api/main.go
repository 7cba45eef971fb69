package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/EdgeAdaptics/triage/internal/config"
	"github.com/EdgeAdaptics/triage/internal/events"
	"github.com/EdgeAdaptics/triage/internal/handlers"
	"github.com/EdgeAdaptics/triage/internal/id"
	"github.com/EdgeAdaptics/triage/internal/log"
	"github.com/EdgeAdaptics/triage/internal/mqtt"
	"github.com/EdgeAdaptics/triage/internal/policy"
	"github.com/EdgeAdaptics/triage/internal/store"
	"github.com/EdgeAdaptics/triage/internal/telemetry"
	"github.com/EdgeAdaptics/triage/internal/triage"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		slog.Error("failed to set up telemetry", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := log.New(cfg)
	slog.SetDefault(logger)

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("triage API stopped", slog.String("err", err.Error()))
		shutdownTelemetry(logger, tel)
		os.Exit(1)
	}
	shutdownTelemetry(logger, tel)
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *slog.Logger) error {
	ids, err := id.NewGenerator(cfg.NodeID)
	if err != nil {
		return err
	}

	budgets, err := policy.NewManager(cfg.SLAPolicyPath)
	if err != nil {
		return err
	}

	st := store.NewMemory()
	if cfg.SeedDemoData {
		store.Seed(st)
	}

	team, closeTeam, err := openTeam(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTeam()

	bus := events.NewBus()
	board := triage.New(logger, st, bus, team, budgets, ids)

	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if cfg.SweepEnabled() {
		go func() {
			_ = triage.NewSweeper(logger, board, cfg.SweepInterval).Run(workers)
		}()
	}

	if cfg.MQTT.Enabled() {
		mirror, err := mqtt.Dial(logger, mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			logger.Warn("mqtt mirror disabled", slog.String("err", err.Error()))
		} else {
			go func() {
				_ = mirror.Run(workers, bus)
			}()
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	api := handlers.New(logger, board, bus, handlers.WithHeartbeat(cfg.HeartbeatInterval))
	api.Routes(r)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Event streams stay open; the action route carries its own timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("triage API starting", slog.String("addr", srv.Addr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", slog.String("err", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// openTeam returns the Postgres directory when a database is configured and
// the static demo team otherwise.
func openTeam(ctx context.Context, cfg config.Config, logger *slog.Logger) (triage.TeamDirectory, func(), error) {
	if cfg.DB.DSN == "" {
		return store.NewStaticTeam(store.DemoTeam()...), func() {}, nil
	}

	pg, err := store.NewPostgresTeam(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := pg.Close(); err != nil {
			logger.Warn("closing team directory", slog.String("err", err.Error()))
		}
	}

	if err := pg.EnsureSchema(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}

	if cfg.SeedDemoData {
		added, err := store.SeedTeam(ctx, pg, store.DemoTeam()...)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Info("team directory seeded", slog.Int("added", added))
	}

	logger.Info("team directory backed by postgres")
	return pg, closeFn, nil
}

func shutdownTelemetry(logger *slog.Logger, tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown", slog.String("err", err.Error()))
	}
}
