package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Query     QueryConfig     `mapstructure:"query"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
	RateLimit    int    `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// StoreConfig selects the spatial store. Table is read by the API and by
// migrate, which creates it under that name.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	Table       string `mapstructure:"table"`
	DatasetPath string `mapstructure:"dataset_path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type QueryConfig struct {
	MaxResults int `mapstructure:"max_results"`
	MaxNearest int `mapstructure:"max_nearest"`
	CacheTTL   int `mapstructure:"cache_ttl"`
}

type BreakerConfig struct {
	MaxRequests  uint32  `mapstructure:"max_requests"`
	Interval     int     `mapstructure:"interval"`
	Timeout      int     `mapstructure:"timeout"`
	MinRequests  uint32  `mapstructure:"min_requests"`
	FailureRatio float64 `mapstructure:"failure_ratio"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Enabled     bool   `mapstructure:"enabled"`
}

// ViewerConfig drives the headless map client.
type ViewerConfig struct {
	APIURL           string  `mapstructure:"api_url"`
	CenterLon        float64 `mapstructure:"center_lon"`
	CenterLat        float64 `mapstructure:"center_lat"`
	Zoom             float64 `mapstructure:"zoom"` // 0 fits the dataset extent
	Width            int     `mapstructure:"width"`
	Height           int     `mapstructure:"height"`
	ClusterThreshold float64 `mapstructure:"cluster_threshold"`
	ExpandZoom       float64 `mapstructure:"expand_zoom"`
	RequestTimeout   int     `mapstructure:"request_timeout"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.table", "german_wind_power")
	v.SetDefault("store.dataset_path", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "turbines")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "turbinemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("query.max_results", 1000)
	v.SetDefault("query.max_nearest", 10)
	v.SetDefault("query.cache_ttl", 60)
	v.SetDefault("breaker.max_requests", 3)
	v.SetDefault("breaker.interval", 60)
	v.SetDefault("breaker.timeout", 30)
	v.SetDefault("breaker.min_requests", 10)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("viewer.api_url", "http://localhost:8080")
	v.SetDefault("viewer.center_lon", 10.4515)
	v.SetDefault("viewer.center_lat", 51.1657)
	v.SetDefault("viewer.zoom", 6)
	v.SetDefault("viewer.width", 1280)
	v.SetDefault("viewer.height", 800)
	v.SetDefault("viewer.cluster_threshold", 40)
	v.SetDefault("viewer.expand_zoom", 14)
	v.SetDefault("viewer.request_timeout", 10)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TURBINEMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("TURBINEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case DriverSQLite, DriverMemory:
		if c.Store.DatasetPath == "" {
			errs = append(errs, fmt.Sprintf("store.dataset_path is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be one of postgres, sqlite, memory, got %q", c.Store.Driver))
	}
	if c.Store.Table == "" {
		errs = append(errs, "store.table is required")
	}

	if c.Query.MaxResults <= 0 {
		errs = append(errs, "query.max_results must be positive")
	}
	if c.Query.MaxNearest <= 0 {
		errs = append(errs, "query.max_nearest must be positive")
	}
	if c.Query.CacheTTL < 0 {
		errs = append(errs, "query.cache_ttl must not be negative")
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		errs = append(errs, fmt.Sprintf("breaker.failure_ratio must be in (0,1], got %v", c.Breaker.FailureRatio))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		errs = append(errs, "viewer.width and viewer.height must be positive")
	}
	if c.Viewer.ClusterThreshold <= 0 {
		errs = append(errs, "viewer.cluster_threshold must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
