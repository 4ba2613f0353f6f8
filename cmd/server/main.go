package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tontine/internal/accounts"
	"github.com/mmynk/tontine/internal/api/apiconnect"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/config"
	"github.com/mmynk/tontine/internal/ledger"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/notify"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/rotation"
	"github.com/mmynk/tontine/internal/scheduler"
	"github.com/mmynk/tontine/internal/service"
	"github.com/mmynk/tontine/internal/storage"
	"github.com/mmynk/tontine/internal/storage/postgres"
	"github.com/mmynk/tontine/internal/storage/sqlite"
	"github.com/mmynk/tontine/internal/ws"
	"github.com/mmynk/tontine/pkg/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("TONTINE_CONFIG"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	loc := cfg.Location()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	// Redis, when configured, shares events and locks across replicas.
	var (
		broker realtime.Broker
		locker lock.Locker
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		redisBroker, err := realtime.NewRedisBroker(ctx, client, realtime.WithSubscriberGauge(m.SubscriberGauge()))
		if err != nil {
			return err
		}
		broker = redisBroker
		locker = lock.NewRedis(client)
		slog.Info("Realtime broker initialized", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		broker = realtime.NewMemoryBroker(realtime.WithSubscriberGauge(m.SubscriberGauge()))
		locker = lock.NewLocal()
		slog.Info("Realtime broker initialized", "backend", "memory")
	}
	closeBroker := sync.OnceValue(broker.Close)
	defer closeBroker()

	telegram, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID)
	if err != nil {
		// Notifications are optional; the server runs without them.
		slog.Warn("Telegram notifications disabled", "error", err)
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	sessions := middleware.NewSessions(jwtManager, store)

	l := ledger.New(store, locker, broker, ledger.Config{
		Price:               cfg.Subscription.Price,
		ExtensionDays:       cfg.Subscription.ExtensionDays,
		DefaultAlertMessage: cfg.Alerts.DefaultMessage,
	}, ledger.WithMetrics(m))
	engine := rotation.NewEngine(store, locker, broker,
		rotation.WithMetrics(m),
		rotation.WithTourHour(cfg.Tour.Hour, loc),
	)
	accountSvc := accounts.NewService(store, auth.NewPINAuthenticator(store), jwtManager, locker, broker, telegram, accounts.Config{
		TrialDays:           cfg.Subscription.TrialDays,
		DefaultGroupName:    cfg.Group.DefaultName,
		DefaultContribution: cfg.Group.DefaultContribution,
	})
	feed := service.NewFeed(broker, l, accountSvc)

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(sessions,
			apiconnect.AuthServiceRegisterProcedure,
			apiconnect.AuthServiceLoginProcedure,
		),
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(m),
		middleware.RequireAccess(store, m, time.Now, "/"+apiconnect.TontineServiceName+"/"),
	)

	mux := http.NewServeMux()

	// Register Connect services
	mux.Handle(apiconnect.NewAuthServiceHandler(service.NewAuthService(accountSvc, l), interceptors))
	mux.Handle(apiconnect.NewTontineServiceHandler(service.NewTontineService(store, engine, loc), interceptors))
	mux.Handle(apiconnect.NewPaymentServiceHandler(service.NewPaymentService(store, l, telegram), interceptors))
	mux.Handle(apiconnect.NewAdminServiceHandler(service.NewAdminService(store, l, accountSvc, loc), interceptors))
	mux.Handle(apiconnect.NewEventServiceHandler(service.NewEventService(feed), interceptors))

	mux.Handle("/ws/events", ws.NewHandler(sessions, feed, nil))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("/metrics", promhttp.Handler())
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(store, l, telegram, scheduler.Config{
			ReminderSpec:      cfg.Scheduler.ReminderSpec,
			DigestSpec:        cfg.Scheduler.DigestSpec,
			ExpiryWarningDays: cfg.Alerts.ExpiryWarningDays,
			ReminderMessage:   cfg.Alerts.DefaultMessage,
			Location:          loc,
		})
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h2c.NewHandler(loggedHandler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.HTTP.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Open feeds end when the broker closes, so close it before waiting on them.
	_ = closeBroker()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		store, err := postgres.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", "postgres")
		return store, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.Storage.SQLitePath)
		return store, nil
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
