package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Transit   TransitConfig   `mapstructure:"transit"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	// Enabled turns on the shared geocode cache tier.
	Enabled bool `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// GeocodingConfig configures the place-name resolver.
type GeocodingConfig struct {
	// Provider is "nominatim" or "remote" (another casahunt /api/geocode).
	Provider      string        `mapstructure:"provider"`
	BaseURL       string        `mapstructure:"base_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	CountryCodes  string        `mapstructure:"country_codes"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	NegativeTTL   time.Duration `mapstructure:"negative_ttl"`
	SharedTTL     time.Duration `mapstructure:"shared_ttl"`
}

// TransitConfig configures the routing-data provider.
type TransitConfig struct {
	OverpassURL   string        `mapstructure:"overpass_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DefaultLat    float64       `mapstructure:"default_lat"`
	DefaultLon    float64       `mapstructure:"default_lon"`
	DefaultCenter string        `mapstructure:"default_center"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CASAHUNT_DATABASE_HOST → database.host
	v.SetEnvPrefix("CASAHUNT")
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

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casahunt")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "casahunt")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("geocoding.provider", "nominatim")
	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "casahunt/1.0 (+https://github.com/samirrijal/casahunt)")
	v.SetDefault("geocoding.country_codes", "it")
	v.SetDefault("geocoding.timeout", 10*time.Second)
	v.SetDefault("geocoding.rate_per_second", 1.0)
	v.SetDefault("geocoding.cache_size", 10000)
	v.SetDefault("geocoding.cache_ttl", 0)
	v.SetDefault("geocoding.negative_ttl", 0)
	v.SetDefault("geocoding.shared_ttl", 7*24*time.Hour)
	v.SetDefault("transit.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("transit.timeout", 15*time.Second)
	v.SetDefault("transit.default_lat", 45.4642)
	v.SetDefault("transit.default_lon", 9.1900)
	v.SetDefault("transit.default_center", "Milano")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geocode-backfill")
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
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey.enabled is set")
	}
	switch c.Geocoding.Provider {
	case "nominatim", "remote":
	default:
		errs = append(errs, fmt.Sprintf("geocoding.provider must be nominatim or remote, got %q", c.Geocoding.Provider))
	}
	if c.Geocoding.BaseURL == "" {
		errs = append(errs, "geocoding.base_url is required")
	}
	if c.Geocoding.Timeout <= 0 {
		errs = append(errs, "geocoding.timeout must be positive")
	}
	if c.Geocoding.RatePerSecond < 0 {
		errs = append(errs, "geocoding.rate_per_second must not be negative")
	}
	if c.Geocoding.CacheSize <= 0 {
		errs = append(errs, "geocoding.cache_size must be positive")
	}
	if c.Transit.OverpassURL == "" {
		errs = append(errs, "transit.overpass_url is required")
	}
	if c.Transit.Timeout <= 0 {
		errs = append(errs, "transit.timeout must be positive")
	}
	if c.Transit.DefaultLat < -90 || c.Transit.DefaultLat > 90 || c.Transit.DefaultLon < -180 || c.Transit.DefaultLon > 180 {
		errs = append(errs, "transit.default_lat/default_lon out of range")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
