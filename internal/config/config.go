// Package config loads process settings from the environment, an optional .env file and flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the service reads at startup
type Config struct {
	DBType                string
	DBDSN                 string
	HTTPAddr              string
	RedisAddr             string
	RedisChannelPrefix    string
	TelegramBotToken      string
	NotificationStartHour int
	NotificationEndHour   int
	SessionIdleTimeout    time.Duration
	SweepInterval         time.Duration
	JoinRatePerSecond     float64
	JoinRateBurst         int
	LogLevel              string
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_dsn", "data/studysync.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_channel_prefix", "studysync:session:")
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("notification_start_hour", 4)
	v.SetDefault("notification_end_hour", 18)
	v.SetDefault("session_idle_timeout", 2*time.Hour)
	v.SetDefault("sweep_interval", 10*time.Minute)
	v.SetDefault("join_rate_per_second", 1.0)
	v.SetDefault("join_rate_burst", 5)
	v.SetDefault("log_level", "info")
}

// Load reads .env files into the process environment, then resolves every key from v.
// Missing .env files are ignored; variables already set in the environment win.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		DBType:                strings.ToLower(v.GetString("db_type")),
		DBDSN:                 v.GetString("db_dsn"),
		HTTPAddr:              v.GetString("http_addr"),
		RedisAddr:             v.GetString("redis_addr"),
		RedisChannelPrefix:    v.GetString("redis_channel_prefix"),
		TelegramBotToken:      v.GetString("telegram_bot_token"),
		NotificationStartHour: v.GetInt("notification_start_hour"),
		NotificationEndHour:   v.GetInt("notification_end_hour"),
		SessionIdleTimeout:    v.GetDuration("session_idle_timeout"),
		SweepInterval:         v.GetDuration("sweep_interval"),
		JoinRatePerSecond:     v.GetFloat64("join_rate_per_second"),
		JoinRateBurst:         v.GetInt("join_rate_burst"),
		LogLevel:              strings.ToLower(v.GetString("log_level")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q, expected sqlite or postgres", c.DBType)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if !validHour(c.NotificationStartHour) || !validHour(c.NotificationEndHour) {
		return fmt.Errorf("notification hours must be within 0-23, got %d-%d", c.NotificationStartHour, c.NotificationEndHour)
	}
	if c.NotificationStartHour > c.NotificationEndHour {
		return fmt.Errorf("NOTIFICATION_START_HOUR %d is after NOTIFICATION_END_HOUR %d", c.NotificationStartHour, c.NotificationEndHour)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.JoinRatePerSecond <= 0 || c.JoinRateBurst <= 0 {
		return fmt.Errorf("join rate limit must be positive, got %v/s burst %d", c.JoinRatePerSecond, c.JoinRateBurst)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

// ParseLogLevel maps LOG_LEVEL to a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", s)
}
