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
const DefaultConfigFile = "bureau.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "BUREAU_PORT")
	setString(&cfg.Server.CORSOrigin, "BUREAU_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BUREAU_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BUREAU_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BUREAU_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BUREAU_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BUREAU_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Bureau.OrgID, "BUREAU_ORG_ID")
	setString(&cfg.Bureau.OrgName, "BUREAU_ORG_NAME")
	setString(&cfg.Bureau.FilePrefix, "BUREAU_FILE_PREFIX")
	setString(&cfg.Bureau.ConsentScope, "BUREAU_CONSENT_SCOPE")
	setString(&cfg.Bureau.SecretEnv, "BUREAU_SECRET_ENV")
	setDuration(&cfg.Bureau.GenerationTimeout, "BUREAU_GENERATION_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "BUREAU_CACHE_MAX_SIZE_MB")
	setDuration(&cfg.Cache.ContentTTL, "BUREAU_CACHE_CONTENT_TTL")
	setString(&cfg.Logging.Level, "BUREAU_LOG_LEVEL")
	setString(&cfg.Logging.Service, "BUREAU_LOG_SERVICE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Bureau.OrgID == "" {
		return errors.New("bureau.org_id is required")
	}
	if len(cfg.Bureau.OrgID) > 10 {
		return errors.New("bureau.org_id must be at most 10 characters")
	}
	if len(cfg.Bureau.OrgName) > 30 {
		return errors.New("bureau.org_name must be at most 30 characters")
	}
	if cfg.Bureau.ConsentScope == "" {
		return errors.New("bureau.consent_scope is required")
	}
	if cfg.Bureau.SecretEnv == "" {
		return errors.New("bureau.secret_env is required")
	}
	if cfg.Bureau.GenerationTimeout <= 0 {
		return errors.New("bureau.generation_timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
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
