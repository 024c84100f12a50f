package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL     string   `yaml:"base_url"`
		QuoteAsset  string   `yaml:"quote_asset"`
		Instruments []string `yaml:"instruments"`
		Timeframes  []string `yaml:"timeframes"`
		BarLimit    int      `yaml:"bar_limit"`
	} `yaml:"data_source"`
	Schedule struct {
		Cadence time.Duration `yaml:"cadence"`
		Workers int           `yaml:"workers"`
	} `yaml:"schedule"`
	Signal struct {
		TakeProfitPcts   []float64     `yaml:"take_profit_pcts"`
		StopLossPct      float64       `yaml:"stop_loss_pct"`
		Cooldown         time.Duration `yaml:"cooldown"`
		GlobalCap        int           `yaml:"global_cap"`
		GlobalWindow     time.Duration `yaml:"global_window"`
		VolumeMultiplier float64       `yaml:"volume_multiplier"`
		RSIMax           float64       `yaml:"rsi_max"`
	} `yaml:"signal"`
	Storage struct {
		PositionsFile string `yaml:"positions_file"`
		AlertsFile    string `yaml:"alerts_file"`
	} `yaml:"storage"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"database"`
	Stream struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"stream"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		cfg.DataSource.Instruments = splitList(v)
	}
	if v := os.Getenv("TIMEFRAMES"); v != "" {
		cfg.DataSource.Timeframes = splitList(v)
	}
	if v := os.Getenv("POLL_CADENCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse POLL_CADENCE: %w", err)
		}
		cfg.Schedule.Cadence = d
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Schedule.Workers = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("STREAM_ENABLED"); v != "" {
		cfg.Stream.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://api.binance.com"
	}
	if cfg.DataSource.QuoteAsset == "" {
		cfg.DataSource.QuoteAsset = "USDT"
	}
	if len(cfg.DataSource.Timeframes) == 0 {
		cfg.DataSource.Timeframes = []string{"1h", "4h", "1d"}
	}
	if cfg.DataSource.BarLimit == 0 {
		cfg.DataSource.BarLimit = 100
	}
	if cfg.Schedule.Cadence == 0 {
		cfg.Schedule.Cadence = time.Minute
	}
	if cfg.Schedule.Workers == 0 {
		cfg.Schedule.Workers = 4
	}
	if len(cfg.Signal.TakeProfitPcts) == 0 {
		cfg.Signal.TakeProfitPcts = []float64{0.05, 0.10, 0.20, 0.50}
	}
	if cfg.Signal.StopLossPct == 0 {
		cfg.Signal.StopLossPct = 0.075
	}
	if cfg.Signal.Cooldown == 0 {
		cfg.Signal.Cooldown = 2 * time.Hour
	}
	if cfg.Signal.GlobalCap == 0 {
		cfg.Signal.GlobalCap = 5
	}
	if cfg.Signal.GlobalWindow == 0 {
		cfg.Signal.GlobalWindow = 24 * time.Hour
	}
	if cfg.Signal.VolumeMultiplier == 0 {
		cfg.Signal.VolumeMultiplier = 2
	}
	if cfg.Signal.RSIMax == 0 {
		cfg.Signal.RSIMax = 70
	}
	if cfg.Storage.PositionsFile == "" {
		cfg.Storage.PositionsFile = "data/active_signals.json"
	}
	if cfg.Storage.AlertsFile == "" {
		cfg.Storage.AlertsFile = "data/last_alerts.json"
	}
	if cfg.Database.SQLitePath == "" && cfg.Database.PostgresURL == "" {
		cfg.Database.SQLitePath = "data/signal_sentinel.db"
	}

	return cfg, nil
}

// Validate checks that all fields are usable.
// Telegram credentials are optional; without them alerts are only logged.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required")
	}
	if len(c.DataSource.Instruments) == 0 && c.DataSource.QuoteAsset == "" {
		return fmt.Errorf("data_source.instruments or data_source.quote_asset is required")
	}
	if len(c.DataSource.Timeframes) == 0 {
		return fmt.Errorf("data_source.timeframes must not be empty")
	}
	if c.DataSource.BarLimit < 35 {
		return fmt.Errorf("data_source.bar_limit must be at least 35")
	}
	if c.Schedule.Cadence < time.Second {
		return fmt.Errorf("schedule.cadence must be at least 1s")
	}
	if c.Schedule.Workers < 1 {
		return fmt.Errorf("schedule.workers must be positive")
	}
	if len(c.Signal.TakeProfitPcts) == 0 {
		return fmt.Errorf("signal.take_profit_pcts must not be empty")
	}
	for i, p := range c.Signal.TakeProfitPcts {
		if p <= 0 || (i > 0 && p <= c.Signal.TakeProfitPcts[i-1]) {
			return fmt.Errorf("signal.take_profit_pcts must be positive and strictly increasing")
		}
	}
	if c.Signal.StopLossPct <= 0 || c.Signal.StopLossPct >= 1 {
		return fmt.Errorf("signal.stop_loss_pct must be in (0, 1)")
	}
	if c.Signal.Cooldown <= 0 {
		return fmt.Errorf("signal.cooldown must be positive")
	}
	if c.Signal.GlobalCap < 1 {
		return fmt.Errorf("signal.global_cap must be positive")
	}
	if c.Signal.GlobalWindow <= 0 {
		return fmt.Errorf("signal.global_window must be positive")
	}
	if c.Signal.RSIMax <= 0 || c.Signal.RSIMax > 100 {
		return fmt.Errorf("signal.rsi_max must be in (0, 100]")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
