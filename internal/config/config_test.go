package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Schedule.Cadence != time.Minute || cfg.Schedule.Workers != 4 {
		t.Errorf("unexpected schedule defaults %+v", cfg.Schedule)
	}
	if !reflect.DeepEqual(cfg.Signal.TakeProfitPcts, []float64{0.05, 0.10, 0.20, 0.50}) || cfg.Signal.StopLossPct != 0.075 {
		t.Errorf("unexpected ladder defaults %+v", cfg.Signal)
	}
	if cfg.Signal.Cooldown != 2*time.Hour || cfg.Signal.GlobalCap != 5 || cfg.Signal.GlobalWindow != 24*time.Hour {
		t.Errorf("unexpected throttle defaults %+v", cfg.Signal)
	}
	if cfg.Storage.PositionsFile != "data/active_signals.json" || cfg.Storage.AlertsFile != "data/last_alerts.json" {
		t.Errorf("unexpected storage defaults %+v", cfg.Storage)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
data_source:
  instruments: [BTCUSDT]
  timeframes: [4h]
schedule:
  cadence: 30s
signal:
  cooldown: 90m
  global_cap: 3
`)
	t.Setenv("INSTRUMENTS", "ETHUSDT, SOLUSDT")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.DataSource.Instruments, []string{"ETHUSDT", "SOLUSDT"}) {
		t.Errorf("env must override instruments, got %v", cfg.DataSource.Instruments)
	}
	if !reflect.DeepEqual(cfg.DataSource.Timeframes, []string{"4h"}) {
		t.Errorf("unexpected timeframes %v", cfg.DataSource.Timeframes)
	}
	if cfg.Schedule.Cadence != 30*time.Second || cfg.Signal.Cooldown != 90*time.Minute || cfg.Signal.GlobalCap != 3 {
		t.Errorf("yaml values not applied: %+v %+v", cfg.Schedule, cfg.Signal)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_BadCadenceEnv(t *testing.T) {
	t.Setenv("POLL_CADENCE", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for bad POLL_CADENCE")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	cases := map[string]func(c *Config){
		"token without chat":    func(c *Config) { c.Telegram.BotToken = "x" },
		"decreasing ladder":     func(c *Config) { c.Signal.TakeProfitPcts = []float64{0.1, 0.05} },
		"stop loss too large":   func(c *Config) { c.Signal.StopLossPct = 1 },
		"negative cap":          func(c *Config) { c.Signal.GlobalCap = -1 },
		"short bar limit":       func(c *Config) { c.DataSource.BarLimit = 20 },
		"sub-second cadence":    func(c *Config) { c.Schedule.Cadence = time.Millisecond },
		"no timeframes":         func(c *Config) { c.DataSource.Timeframes = nil },
		"rsi ceiling above 100": func(c *Config) { c.Signal.RSIMax = 101 },
		"zero cooldown":         func(c *Config) { c.Signal.Cooldown = 0 },
		"negative cooldown":     func(c *Config) { c.Signal.Cooldown = -time.Minute },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
