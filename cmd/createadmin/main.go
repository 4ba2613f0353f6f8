// Command createadmin creates or updates the super administrator account.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/mmynk/tontine/internal/accounts"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/config"
	"github.com/mmynk/tontine/internal/lock"
	"github.com/mmynk/tontine/internal/realtime"
	"github.com/mmynk/tontine/internal/storage"
	"github.com/mmynk/tontine/internal/storage/postgres"
	"github.com/mmynk/tontine/internal/storage/sqlite"
	"github.com/mmynk/tontine/pkg/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("TONTINE_CONFIG"), "path to an optional YAML config file")
	phone := flag.String("phone", "", "administrator phone number")
	pin := flag.String("pin", "", "administrator 4-digit PIN")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.App.Env)

	if *phone == "" || *pin == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var store storage.Store
	if cfg.Storage.Driver == "postgres" {
		store, err = postgres.New(ctx, cfg.Storage.PostgresDSN)
	} else {
		store, err = sqlite.New(cfg.Storage.SQLitePath)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// No server is attached, so events go to an in-process broker nobody reads.
	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svc := accounts.NewService(store, auth.NewPINAuthenticator(store), jwtManager, lock.NewLocal(), broker, nil, accounts.DefaultConfig())

	account, err := svc.EnsureAdmin(ctx, *phone, *pin)
	if err != nil {
		slog.Error("Failed to create administrator", "error", err)
		os.Exit(1)
	}
	slog.Info("Administrator ready", "account_id", account.ID, "phone", account.Phone)
}
