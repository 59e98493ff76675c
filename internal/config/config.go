package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nekidev/nekos-api/internal/ratelimit"
)

// Database is a driver name and DSN accepted by db.New.
type Database struct {
	Driver string
	DSN    string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	// DB holds the registry and API key tables.
	DB Database
	// Target is where the apply-engine builds entity tables. It defaults to DB.
	Target Database
	API    struct {
		Version string
	}
	RateLimit struct {
		API             ratelimit.Policy
		CleanupInterval time.Duration
		IdleTTL         time.Duration
	}
	CORS struct {
		AllowedOrigins []string
	}
	Log struct {
		Level  string
		Format string
	}
	Apply struct {
		OnStart bool
	}
	Registry struct {
		PageSize int
	}
}

var drivers = map[string]bool{"sqlite3": true, "mysql": true, "postgres": true, "pgx": true}

// Load reads config from environment (NEKOS_ prefix) and an optional YAML
// file. With an empty path nekos-api.yaml is looked up in the working
// directory; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEKOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("api.version", "2.0.0-alpha")
	v.SetDefault("ratelimit.api", "3/s")
	v.SetDefault("ratelimit.cleanup_interval", "5m")
	v.SetDefault("ratelimit.idle_ttl", "1h")
	v.SetDefault("cors.allowed_origins", []string{"https://nekosapi.com"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("apply.on_start", false)
	v.SetDefault("registry.page_size", 100)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("nekos-api")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // optional config file
	}

	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.Target.Driver = v.GetString("target.driver")
	cfg.Target.DSN = v.GetString("target.dsn")
	cfg.API.Version = v.GetString("api.version")
	cfg.CORS.AllowedOrigins = v.GetStringSlice("cors.allowed_origins")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Apply.OnStart = v.GetBool("apply.on_start")
	cfg.Registry.PageSize = v.GetInt("registry.page_size")

	policy, err := ratelimit.NewPolicy("api", v.GetString("ratelimit.api"))
	if err != nil {
		return nil, fmt.Errorf("invalid NEKOS_RATELIMIT_API: %w", err)
	}
	cfg.RateLimit.API = policy

	if cfg.RateLimit.CleanupInterval, err = positiveDuration(v, "ratelimit.cleanup_interval"); err != nil {
		return nil, err
	}
	if cfg.RateLimit.IdleTTL, err = positiveDuration(v, "ratelimit.idle_ttl"); err != nil {
		return nil, err
	}

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("NEKOS_DB_DRIVER is required (sqlite3, mysql, postgres, pgx)")
	}
	if !drivers[cfg.DB.Driver] {
		return nil, fmt.Errorf("unsupported NEKOS_DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("NEKOS_DB_DSN is required")
	}

	if cfg.Target.Driver == "" && cfg.Target.DSN == "" {
		cfg.Target = cfg.DB
	}
	if !drivers[cfg.Target.Driver] {
		return nil, fmt.Errorf("unsupported NEKOS_TARGET_DRIVER %q", cfg.Target.Driver)
	}
	if cfg.Target.DSN == "" {
		return nil, fmt.Errorf("NEKOS_TARGET_DSN is required when NEKOS_TARGET_DRIVER is set")
	}

	if cfg.Registry.PageSize <= 0 {
		return nil, fmt.Errorf("registry.page_size must be positive, got %d", cfg.Registry.PageSize)
	}

	return cfg, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

// SameDatabase reports whether the apply target is the registry database.
func (c *Config) SameDatabase() bool {
	return c.Target == c.DB
}
