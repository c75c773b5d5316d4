package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("signaling_secret is required")

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	SlowPeer   string        `mapstructure:"slow_peer_action"`

	SignalingSecret string `mapstructure:"signaling_secret"`
	ICEServersJSON  string `mapstructure:"ice_servers_json"`

	TURNAccountSID string        `mapstructure:"turn_account_sid"`
	TURNAuthToken  string        `mapstructure:"turn_auth_token"`
	TURNAPIBase    string        `mapstructure:"turn_api_base"`
	TURNTTLSeconds int           `mapstructure:"turn_ttl_seconds"`
	TURNTimeout    time.Duration `mapstructure:"turn_timeout"`

	WaitingTTLMs     int64         `mapstructure:"waiting_ttl_ms"`
	DevMode          bool          `mapstructure:"dev_mode"`
	BusinessTimezone string        `mapstructure:"business_timezone"`
	JoinWindowMargin time.Duration `mapstructure:"join_window_margin"`
	JoinTokenTTL     time.Duration `mapstructure:"join_token_ttl"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
	BookingsFile  string `mapstructure:"bookings_file"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	location *time.Location
}

var defaults = map[string]any{
	"mode":               "release",
	"port":               8080,
	"log_level":          "info",
	"read_limit":         65536,
	"ping_period":        "54s",
	"send_buffer":        32,
	"slow_peer_action":   "kick",
	"signaling_secret":   "",
	"ice_servers_json":   "",
	"turn_account_sid":   "",
	"turn_auth_token":    "",
	"turn_api_base":      "https://api.twilio.com",
	"turn_ttl_seconds":   600,
	"turn_timeout":       "10s",
	"waiting_ttl_ms":     60000,
	"dev_mode":           false,
	"business_timezone":  "Asia/Seoul",
	"join_window_margin": "10m",
	"join_token_ttl":     "2h",
	"redis_addr":         "",
	"redis_password":     "",
	"redis_db":           0,
	"redis_prefix":       "callgate:",
	"bookings_file":      "",
	"rate_limit_rps":     5.0,
	"rate_limit_burst":   20,
}

// Load reads config/config.<CONFIG_ENV>.yaml when present and lets
// environment variables override every key.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults and env")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Bool("turn", cfg.TURNConfigured()).
		Bool("redis", cfg.RedisAddr != "").
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SignalingSecret) == "" {
		return ErrMissingSecret
	}
	if c.TURNTTLSeconds <= 0 {
		return fmt.Errorf("turn_ttl_seconds must be positive, got %d", c.TURNTTLSeconds)
	}
	if c.WaitingTTLMs <= 0 {
		return fmt.Errorf("waiting_ttl_ms must be positive, got %d", c.WaitingTTLMs)
	}
	if c.JoinTokenTTL <= 0 {
		return fmt.Errorf("join_token_ttl must be positive, got %s", c.JoinTokenTTL)
	}
	if c.JoinWindowMargin < 0 {
		return fmt.Errorf("join_window_margin must not be negative, got %s", c.JoinWindowMargin)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive, got %s", c.PingPeriod)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.SlowPeer != "kick" && c.SlowPeer != "drop" {
		return fmt.Errorf("slow_peer_action must be kick or drop, got %q", c.SlowPeer)
	}
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return fmt.Errorf("business_timezone %q: %w", c.BusinessTimezone, err)
	}
	c.location = loc
	return nil
}

// Location is the business time zone slots are expressed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) TURNConfigured() bool {
	return c.TURNAccountSID != "" && c.TURNAuthToken != ""
}

func (c *Config) TURNTTL() time.Duration {
	return time.Duration(c.TURNTTLSeconds) * time.Second
}

func (c *Config) WaitingTTL() time.Duration {
	return time.Duration(c.WaitingTTLMs) * time.Millisecond
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
