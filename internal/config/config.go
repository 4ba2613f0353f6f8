// Package config loads server configuration from an optional YAML file,
// a .env file and TONTINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Storage struct {
		Driver      string
		SQLitePath  string `mapstructure:"sqlite_path"`
		PostgresDSN string `mapstructure:"postgres_dsn"`
	} `mapstructure:"storage"`

	Redis struct {
		Addr     string
		Password string
		DB       int
	} `mapstructure:"redis"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Subscription struct {
		Price         int64
		ExtensionDays int `mapstructure:"extension_days"`
		TrialDays     int `mapstructure:"trial_days"`
	} `mapstructure:"subscription"`

	Tour struct {
		Hour         int
		AdvanceDelay time.Duration `mapstructure:"advance_delay"`
	} `mapstructure:"tour"`

	Group struct {
		DefaultName         string `mapstructure:"default_name"`
		DefaultContribution int64  `mapstructure:"default_contribution"`
	} `mapstructure:"group"`

	Alerts struct {
		ExpiryWarningDays int    `mapstructure:"expiry_warning_days"`
		DefaultMessage    string `mapstructure:"default_message"`
	} `mapstructure:"alerts"`

	Scheduler struct {
		Enabled      bool
		ReminderSpec string `mapstructure:"reminder_spec"`
		DigestSpec   string `mapstructure:"digest_spec"`
	} `mapstructure:"scheduler"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

// IsDev reports whether the server runs in the development environment.
func (c Config) IsDev() bool {
	return c.App.Env == "dev"
}

// Location returns the configured time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.timezone", "Africa/Abidjan")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "./data/tontine.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("subscription.price", 700)
	v.SetDefault("subscription.extension_days", 30)
	v.SetDefault("subscription.trial_days", 7)
	v.SetDefault("tour.hour", 8)
	v.SetDefault("tour.advance_delay", "3s")
	v.SetDefault("group.default_name", "Ma Tontine")
	v.SetDefault("group.default_contribution", 5000)
	v.SetDefault("alerts.expiry_warning_days", 3)
	v.SetDefault("alerts.default_message", "Votre abonnement expire bientôt. Merci de renouveler votre paiement.")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_spec", "0 0 8 * * *")
	v.SetDefault("scheduler.digest_spec", "0 0 10 * * *")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment are used.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TONTINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" && !c.IsDev() {
		return errors.New("auth.jwt_secret is required outside dev")
	}
	if c.Tour.Hour < 0 || c.Tour.Hour > 23 {
		return fmt.Errorf("tour.hour must be between 0 and 23, got %d", c.Tour.Hour)
	}
	if c.Subscription.ExtensionDays <= 0 {
		return errors.New("subscription.extension_days must be positive")
	}
	return nil
}
