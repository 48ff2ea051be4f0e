package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"practicerooms/internal/api"
	"practicerooms/internal/catalog"
	"practicerooms/internal/config"
	"practicerooms/internal/database"
	"practicerooms/internal/events"
	"practicerooms/internal/lock"
	"practicerooms/internal/metrics"
	"practicerooms/internal/registry"
	"practicerooms/internal/service"
	"practicerooms/shared/audit"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PRACTICEROOMS_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewFailoverLocker(lock.NewRedisLocker(rdb, cfg.LockTTL()), locker, &logger)
		logger.Info().Str("addr", cfg.Redis.Address).Msg("Using Redis locks with in-memory fallback")
	}

	bus := events.NewEventBus()
	metrics.SubscribeEvents(bus)
	subscribeLogging(bus, logger)

	rooms := catalog.NewService(db, logger)
	students := registry.NewService(db, locker, logger)
	bookings := service.NewBookingService(service.Deps{
		Bookings: db,
		Rooms:    rooms,
		Students: students,
		Locker:   locker,
		Events:   bus,
	}, logger)

	err = config.WatchRooms(ctx, cfg.Catalog.Path, cfg.CatalogWatchInterval(), logger, func(rc *config.RoomsConfig) {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := db.SyncRoomsFromConfig(syncCtx, rc, time.Now()); err != nil {
			logger.Error().Err(err).Msg("Failed to sync room catalog")
			return
		}
		_ = bus.PublishJSON(events.CatalogSynced, map[string]int{
			"rooms":     len(rc.Rooms),
			"equipment": len(rc.Equipment),
		})
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("failed to load room catalog")
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { database.NewBackupService(db, cfg.Backup, cfg.BackupInterval(), &logger).Start(ctx) })

	if cfg.Audit.Enabled {
		auditSvc := audit.NewService(
			audit.Config{ExportOnStart: cfg.Audit.ExportOnStart},
			db, db, audit.NewExcelizeWriter,
			audit.DirSink{Dir: cfg.Audit.OutputDir},
			logger, nil,
		)
		auditSvc.Start(ctx)
		defer auditSvc.Wait()
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	run(func() { startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger) })

	if cfg.Monitoring.GRPCHealthPort > 0 {
		run(func() { startGRPCHealthServer(ctx, cfg.Monitoring.GRPCHealthPort, db, &logger) })
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		run(func() { startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger) })
	}

	if cfg.API.Enabled {
		rps, burst := cfg.RateLimit()
		srv := api.NewHTTPServer(bookings, rooms, students, api.Options{
			APIKeys:     cfg.API.APIKeys,
			RateLimit:   rps,
			RateBurst:   burst,
			ReadTimeout: time.Duration(cfg.API.ReadTimeout) * time.Second,
		}, logger)
		run(func() {
			if err := srv.Start(ctx, cfg.APIPort()); err != nil {
				logger.Error().Err(err).Msg("API server error")
				stop()
			}
		})
	}

	logger.Info().Msg("Practice room service started")
	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	wg.Wait()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if cfg.Logging.JSON {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func subscribeLogging(bus *events.EventBus, logger zerolog.Logger) {
	l := logger.With().Str("component", "events").Logger()
	for _, et := range []string{
		events.BookingCreated, events.BookingRejected, events.BookingCancelled,
		events.BookingCheckedIn, events.BookingApproved, events.BookingNoShow,
		events.StudentPenalized, events.CatalogSynced,
	} {
		bus.Subscribe(et, func(e events.Event) error {
			l.Debug().Str("type", e.Type).Int64("id", e.ID).RawJSON("payload", e.Payload).Msg("event")
			return nil
		})
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		// Without Redis, locks fall back to in-process; still ready.
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ready (redis unavailable, local locks)"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serveHTTP(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serveHTTP(ctx, port, mux, "metrics", logger)
}

func serveHTTP(ctx context.Context, port int, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}

// startGRPCHealthServer serves grpc.health.v1 and flips to NOT_SERVING while
// the database is unreachable.
func startGRPCHealthServer(ctx context.Context, port int, db *database.DB, logger *zerolog.Logger) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error().Err(err).Int("port", port).Msg("grpc health listen error")
		return
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				ctxPing, cancel := context.WithTimeout(ctx, time.Second)
				status := healthpb.HealthCheckResponse_SERVING
				if err := db.PingContext(ctxPing); err != nil {
					status = healthpb.HealthCheckResponse_NOT_SERVING
				}
				cancel()
				hs.SetServingStatus("", status)
			}
		}
	}()

	logger.Info().Int("port", port).Msg("gRPC health server listening")
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error().Err(err).Msg("grpc health server error")
	}
}
