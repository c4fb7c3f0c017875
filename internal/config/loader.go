package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "bitrixassistant.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "BITRIXASSISTANT_PORT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BITRIXASSISTANT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BITRIXASSISTANT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BITRIXASSISTANT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BITRIXASSISTANT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BITRIXASSISTANT_PG_HEALTH_CHECK")
	setString(&cfg.Bitrix.ClientID, "BITRIX_CLIENT_ID")
	setString(&cfg.Bitrix.ClientSecret, "BITRIX_CLIENT_SECRET")
	setString(&cfg.Bitrix.Domain, "BITRIX_DOMAIN")
	setString(&cfg.Bitrix.RedirectURI, "REDIRECT_URI")
	setString(&cfg.Bitrix.WebhookBase, "WEBHOOK_DOMAIN")
	setString(&cfg.Bitrix.OAuthHost, "BITRIX_OAUTH_HOST")
	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	setDuration(&cfg.Telegram.PollTimeout, "TELEGRAM_POLL_TIMEOUT")
	setString(&cfg.Logging.Level, "BITRIXASSISTANT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "BITRIXASSISTANT_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "BITRIXASSISTANT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BITRIXASSISTANT_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "BITRIXASSISTANT_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "BITRIXASSISTANT_CACHE_TTL")
	setInt64(&cfg.Fanout.MaxParallel, "BITRIXASSISTANT_FANOUT_MAX_PARALLEL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Bitrix.ClientID == "" {
		return errors.New("bitrix.client_id is required")
	}
	if cfg.Bitrix.ClientSecret == "" {
		return errors.New("bitrix.client_secret is required")
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Fanout.MaxParallel < 1 {
		return errors.New("fanout.max_parallel must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
