package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Source    SourceConfig              `mapstructure:"source"`
	Database  DatabaseConfig            `mapstructure:"database"`
	NATS      NATSConfig                `mapstructure:"nats"`
	Valkey    ValkeyConfig              `mapstructure:"valkey"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Telemetry TelemetryConfig           `mapstructure:"telemetry"`
	Temporal  TemporalConfig            `mapstructure:"temporal"`
	Overlay   OverlayConfig             `mapstructure:"overlay"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File enables rotated file output when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SourceConfig selects where raw coordinate payloads come from.
type SourceConfig struct {
	Kind           string `mapstructure:"kind"` // "http" or "postgres"
	BaseURL        string `mapstructure:"base_url"`
	TimeoutMS      int    `mapstructure:"timeout_ms"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
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

// ValkeyConfig: an empty Addr disables the shared cache.
type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type CacheConfig struct {
	TTL       int `mapstructure:"ttl"`        // seconds
	LocalSize int `mapstructure:"local_size"` // LRU entries
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type CoordinateConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lng float64 `mapstructure:"lng"`
}

type OverlayConfig struct {
	Policy          string           `mapstructure:"policy"`
	LineWidth       int              `mapstructure:"line_width"`
	MinFitRadiusM   float64          `mapstructure:"min_fit_radius_m"`
	EmptyViewport   string           `mapstructure:"empty_viewport"`
	DefaultCenter   CoordinateConfig `mapstructure:"default_center"`
	DefaultProvider string           `mapstructure:"default_provider"`
	Palette         []string         `mapstructure:"palette"`
	EncodePolylines bool             `mapstructure:"encode_polylines"`
}

type ProviderConfig struct {
	Viewport string `mapstructure:"viewport"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("source.kind", "http")
	v.SetDefault("source.base_url", "http://localhost:9000")
	v.SetDefault("source.timeout_ms", 5000)
	v.SetDefault("source.max_concurrency", 8)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "routemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "routemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 300)
	v.SetDefault("cache.local_size", 1024)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "payload-prefetch")
	v.SetDefault("overlay.policy", "stable_diff")
	v.SetDefault("overlay.line_width", 4)
	v.SetDefault("overlay.min_fit_radius_m", 200)
	v.SetDefault("overlay.empty_viewport", "none")
	v.SetDefault("overlay.default_center.lat", 37.5665)
	v.SetDefault("overlay.default_center.lng", 126.978)
	v.SetDefault("overlay.default_provider", "google")
	v.SetDefault("overlay.encode_polylines", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROUTEMAP_SOURCE_BASE_URL → source.base_url
	v.SetEnvPrefix("ROUTEMAP")
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

var (
	sourceKinds    = []string{"http", "postgres"}
	policies       = []string{"stable_diff", "full_redraw"}
	emptyViewports = []string{"none", "default_center"}
	viewportModes  = []string{"fit", "center"}
	providerNames  = []string{"google", "here", "baidu", "tmap", "routo", "tomtom"}
)

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

	if !slices.Contains(sourceKinds, c.Source.Kind) {
		errs = append(errs, fmt.Sprintf("source.kind must be one of %v, got %q", sourceKinds, c.Source.Kind))
	}
	if c.Source.Kind == "http" && c.Source.BaseURL == "" {
		errs = append(errs, "source.base_url is required when source.kind is http")
	}
	if c.Source.TimeoutMS <= 0 {
		errs = append(errs, "source.timeout_ms must be positive")
	}
	if c.Source.MaxConcurrency <= 0 {
		errs = append(errs, "source.max_concurrency must be positive")
	}

	if c.Source.Kind == "postgres" {
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
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must not be negative")
	}

	if !slices.Contains(policies, c.Overlay.Policy) {
		errs = append(errs, fmt.Sprintf("overlay.policy must be one of %v, got %q", policies, c.Overlay.Policy))
	}
	if !slices.Contains(emptyViewports, c.Overlay.EmptyViewport) {
		errs = append(errs, fmt.Sprintf("overlay.empty_viewport must be one of %v, got %q", emptyViewports, c.Overlay.EmptyViewport))
	}
	if c.Overlay.LineWidth <= 0 {
		errs = append(errs, "overlay.line_width must be positive")
	}
	if c.Overlay.MinFitRadiusM < 0 {
		errs = append(errs, "overlay.min_fit_radius_m must not be negative")
	}
	if !slices.Contains(providerNames, c.Overlay.DefaultProvider) {
		errs = append(errs, fmt.Sprintf("overlay.default_provider must be one of %v, got %q", providerNames, c.Overlay.DefaultProvider))
	}
	for name, p := range c.Providers {
		if !slices.Contains(providerNames, name) {
			errs = append(errs, fmt.Sprintf("providers.%s: unknown provider", name))
		}
		if p.Viewport != "" && !slices.Contains(viewportModes, p.Viewport) {
			errs = append(errs, fmt.Sprintf("providers.%s.viewport must be one of %v, got %q", name, viewportModes, p.Viewport))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
