package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.HTTP.Addr != ":8080" {
		t.Errorf("Expected :8080, got %s", c.HTTP.Addr)
	}
	if c.Storage.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %s", c.Storage.Driver)
	}
	if c.Auth.TokenTTL != 720*time.Hour {
		t.Errorf("Expected 720h token ttl, got %v", c.Auth.TokenTTL)
	}
	if c.Subscription.Price != 700 || c.Subscription.ExtensionDays != 30 || c.Subscription.TrialDays != 7 {
		t.Errorf("Unexpected subscription defaults: %+v", c.Subscription)
	}
	if c.Tour.Hour != 8 || c.Tour.AdvanceDelay != 3*time.Second {
		t.Errorf("Unexpected tour defaults: %+v", c.Tour)
	}
	if !c.Scheduler.Enabled || c.Scheduler.ReminderSpec != "0 0 8 * * *" {
		t.Errorf("Unexpected scheduler defaults: %+v", c.Scheduler)
	}
	if !c.IsDev() {
		t.Error("Expected dev environment by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	yaml := "http:\n  addr: \":9090\"\nsubscription:\n  price: 1000\ntelegram:\n  token: abc\n  admin_chat_id: 42\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TONTINE_TOUR_HOUR=9\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("TONTINE_SUBSCRIPTION_EXTENSION_DAYS", "60")
	// Unset now, restored to unset once the test ends.
	t.Setenv("TONTINE_TOUR_HOUR", "")
	os.Unsetenv("TONTINE_TOUR_HOUR")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.HTTP.Addr != ":9090" {
		t.Errorf("Expected file value :9090, got %s", c.HTTP.Addr)
	}
	if c.Subscription.Price != 1000 {
		t.Errorf("Expected file price 1000, got %d", c.Subscription.Price)
	}
	if c.Subscription.ExtensionDays != 60 {
		t.Errorf("Expected env override 60, got %d", c.Subscription.ExtensionDays)
	}
	if c.Tour.Hour != 9 {
		t.Errorf("Expected .env tour hour 9, got %d", c.Tour.Hour)
	}
	if c.Telegram.Token != "abc" || c.Telegram.AdminChatID != 42 {
		t.Errorf("Unexpected telegram config: %+v", c.Telegram)
	}
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"TONTINE_STORAGE_DRIVER": "mysql"}},
		{"postgres without dsn", map[string]string{"TONTINE_STORAGE_DRIVER": "postgres"}},
		{"prod without secret", map[string]string{"TONTINE_APP_ENV": "prod"}},
		{"tour hour out of range", map[string]string{"TONTINE_TOUR_HOUR": "24"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}
