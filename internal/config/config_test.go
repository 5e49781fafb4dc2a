package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Holidays.Sources = []string{"file", "postgres", "carrier-pigeon"}
	cfg.Rates.AnnualRate = "-0.1"
	cfg.Server.Port = 0
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "loud"`,
		"file must be set",
		"postgres needs postgres.enabled",
		`unknown source "carrier-pigeon"`,
		"annual_rate",
		"server: port",
		"telegram_chat_id",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_RefreshModeSkipsServer(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "refresh"
	cfg.Server.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("refresh mode should not need a server port: %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "full"

[holidays]
sources = ["file"]
file = "/etc/crosstrade/holidays.json"
refresh_interval = "6h"

[rates]
annual_rate = "0.045"

[server]
port = 9000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CROSSTRADE_SERVER_PORT", "9100")
	t.Setenv("CROSSTRADE_NOTIFY_EVENTS", "calendar_degraded, holiday_reload,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "full" || cfg.Rates.AnnualRate != "0.045" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Holidays.RefreshInterval.Duration != 6*time.Hour {
		t.Errorf("refresh_interval = %v", cfg.Holidays.RefreshInterval.Duration)
	}
	if cfg.Holidays.Timeout.Duration != 10*time.Second {
		t.Errorf("default timeout lost: %v", cfg.Holidays.Timeout.Duration)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env override not applied: port = %d", cfg.Server.Port)
	}
	if got := strings.Join(cfg.Notify.Events, "|"); got != "calendar_degraded|holiday_reload" {
		t.Errorf("events = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-pass"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "key"

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != redacted || out.S3.SecretKey != redacted || out.Server.APIKey != redacted {
		t.Errorf("secrets not redacted: %+v", out)
	}
	if out.S3.AccessKey != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Postgres.Password != "pg-pass" {
		t.Error("original was modified")
	}

	out.Server.CORSOrigins[0] = "mutated"
	if cfg.Server.CORSOrigins[0] == "mutated" {
		t.Error("slices must be copied")
	}
}
