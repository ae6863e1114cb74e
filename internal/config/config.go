package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"payidcheck/internal/payid"
	"payidcheck/internal/store"
)

type Config struct {
	HTTP struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"http"`
	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Validation struct {
		CheckDomain   bool `yaml:"check_domain"`
		StrictCase    bool `yaml:"strict_case"`
		IncludePrefix bool `yaml:"include_prefix"`
	} `yaml:"validation"`
	Liveness struct {
		Enabled     bool          `yaml:"enabled"`
		Timeout     time.Duration `yaml:"timeout"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
		MaxAttempts int           `yaml:"max_attempts"`
		RecordTypes []string      `yaml:"record_types"`
		PopTimeout  time.Duration `yaml:"pop_timeout"`
	} `yaml:"liveness"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8089"
	cfg.HTTP.ReadTimeout = 10 * time.Second
	cfg.HTTP.WriteTimeout = 10 * time.Second
	pool := store.DefaultPool()
	cfg.Database.MaxOpenConns = pool.MaxOpenConns
	cfg.Database.MaxIdleConns = pool.MaxIdleConns
	cfg.Database.ConnMaxLifetime = pool.ConnMaxLifetime
	cfg.Validation.CheckDomain = true
	cfg.Liveness.Enabled = true
	cfg.Liveness.Timeout = 5 * time.Second
	cfg.Liveness.RetryDelay = time.Minute
	cfg.Liveness.MaxAttempts = 3
	cfg.Liveness.RecordTypes = []string{"MX", "A", "AAAA"}
	cfg.Liveness.PopTimeout = 5 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads path when it exists, then applies PAYID_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format %q (want text or json)", c.Log.Format)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 || c.Database.ConnMaxLifetime < 0 {
		return errors.New("database pool settings must not be negative")
	}
	if c.Liveness.MaxAttempts < 1 {
		return errors.New("liveness.max_attempts must be at least 1")
	}
	if c.Liveness.RetryDelay < 0 || c.Liveness.Timeout < 0 {
		return errors.New("liveness durations must not be negative")
	}
	return nil
}

// ValidationOptions converts the validation section into options for payid.Validate.
func (c Config) ValidationOptions() payid.Options {
	return payid.Options{
		CheckDomain:   c.Validation.CheckDomain,
		StrictCase:    c.Validation.StrictCase,
		IncludePrefix: c.Validation.IncludePrefix,
	}
}

// DatabasePool returns the pool sizing for store.Open.
func (c Config) DatabasePool() store.Pool {
	return store.Pool{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// RequireBackends reports a missing Postgres DSN or Redis URL.
func (c Config) RequireBackends() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn (or PAYID_DB_DSN)")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "redis.url (or PAYID_REDIS_URL)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PAYID_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("PAYID_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PAYID_DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxOpenConns = n
		}
	}
	if v := os.Getenv("PAYID_DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxIdleConns = n
		}
	}
	if v := os.Getenv("PAYID_DB_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.ConnMaxLifetime = d
		}
	}
	if v := os.Getenv("PAYID_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PAYID_CHECK_DOMAIN"); v != "" {
		cfg.Validation.CheckDomain = parseBool(v, cfg.Validation.CheckDomain)
	}
	if v := os.Getenv("PAYID_STRICT_CASE"); v != "" {
		cfg.Validation.StrictCase = parseBool(v, cfg.Validation.StrictCase)
	}
	if v := os.Getenv("PAYID_INCLUDE_PREFIX"); v != "" {
		cfg.Validation.IncludePrefix = parseBool(v, cfg.Validation.IncludePrefix)
	}
	if v := os.Getenv("PAYID_LIVENESS_ENABLED"); v != "" {
		cfg.Liveness.Enabled = parseBool(v, cfg.Liveness.Enabled)
	}
	if v := os.Getenv("PAYID_LIVENESS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Liveness.Timeout = d
		}
	}
	if v := os.Getenv("PAYID_LIVENESS_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Liveness.RetryDelay = d
		}
	}
	if v := os.Getenv("PAYID_LIVENESS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Liveness.MaxAttempts = n
		}
	}
	if v := os.Getenv("PAYID_LIVENESS_RECORD_TYPES"); v != "" {
		cfg.Liveness.RecordTypes = splitCSV(v)
	}
	if v := os.Getenv("PAYID_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PAYID_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}
