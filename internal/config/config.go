package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"BreadthSentinel/internal/breadth"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		IndexSymbol string `yaml:"index_symbol"`
	} `yaml:"data_source"`
	Breadth struct {
		EMAPeriod          int    `yaml:"ema_period"`
		TrendPeriod        int    `yaml:"trend_period"`
		FullLookbackDays   int    `yaml:"full_lookback_days"`
		UpdateLookbackDays int    `yaml:"update_lookback_days"`
		MinHistoryPoints   int    `yaml:"min_history_points"`
		BatchSize          int    `yaml:"batch_size"`
		DisplayDays        int    `yaml:"display_days"`
		Denominator        string `yaml:"denominator"` // symbols-reporting | fixed-universe-size
		UniverseSize       int    `yaml:"universe_size"`
	} `yaml:"breadth"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides.
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
	if v := os.Getenv("FMP_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("BREADTH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Breadth.BatchSize = n
		}
	}

	// Defaults
	if cfg.DataSource.IndexSymbol == "" {
		cfg.DataSource.IndexSymbol = "^GSPC"
	}
	if cfg.Breadth.Denominator == "" {
		cfg.Breadth.Denominator = string(breadth.DenomSymbolsReporting)
	}
	if cfg.Schedule.DailyCron == "" {
		// Weekdays at 22:30 UTC, after the US close.
		cfg.Schedule.DailyCron = "0 30 22 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/breadth.db"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.DataSource.APIKey == "" {
		return fmt.Errorf("data_source.api_key is required")
	}
	switch breadth.DenominatorPolicy(c.Breadth.Denominator) {
	case breadth.DenomSymbolsReporting, breadth.DenomFixedUniverse:
	default:
		return fmt.Errorf("breadth.denominator must be %q or %q",
			breadth.DenomSymbolsReporting, breadth.DenomFixedUniverse)
	}
	return nil
}

// EngineConfig maps the breadth section onto the engine's config.
func (c *Config) EngineConfig() breadth.Config {
	return breadth.Config{
		EMAPeriod:          c.Breadth.EMAPeriod,
		TrendPeriod:        c.Breadth.TrendPeriod,
		FullLookbackDays:   c.Breadth.FullLookbackDays,
		UpdateLookbackDays: c.Breadth.UpdateLookbackDays,
		MinHistoryPoints:   c.Breadth.MinHistoryPoints,
		BatchSize:          c.Breadth.BatchSize,
		DisplayDays:        c.Breadth.DisplayDays,
		IndexSymbol:        c.DataSource.IndexSymbol,
		Denominator:        breadth.DenominatorPolicy(c.Breadth.Denominator),
		UniverseSize:       c.Breadth.UniverseSize,
	}
}
