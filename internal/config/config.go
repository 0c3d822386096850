package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every key, e.g. MOTOPOS_PORT. Unprefixed names such
// as PORT or DATABASE_URL are accepted as a fallback.
const EnvPrefix = "MOTOPOS"

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	DefaultBranchID string        `envconfig:"DEFAULT_BRANCH_ID" default:"branch-hcm"`
	TimeZone        string        `envconfig:"TIME_ZONE" default:"Asia/Ho_Chi_Minh"`
	ReportCacheTTL  time.Duration `envconfig:"REPORT_CACHE_TTL" default:"60s"`
	NotifyChannel   string        `envconfig:"NOTIFY_CHANNEL" default:"motopos:sales"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	LoginRatePerMinute    int    `envconfig:"LOGIN_RATE_PER_MINUTE" default:"10"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.ReportCacheTTL <= 0 {
		cfg.ReportCacheTTL = 60 * time.Second
	}
	if cfg.LoginRatePerMinute < 1 {
		cfg.LoginRatePerMinute = 10
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return Config{}, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location returns the reporting time zone. Load has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
