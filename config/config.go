package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/viper"
)

// Config holds all configuration for the backend
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Wikipedia WikipediaConfig `mapstructure:"wikipedia"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Video     VideoConfig     `mapstructure:"video"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Environment string `mapstructure:"environment"` // development, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json, console
}

// Production reports whether error details must be hidden from clients.
func (g GeneralConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(g.Environment), "production")
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	BodyLimit       string        `mapstructure:"body_limit"`
	VideoRateLimit  int           `mapstructure:"video_rate_limit"`  // submissions per window and client
	VideoRateWindow time.Duration `mapstructure:"video_rate_window"` // window for video_rate_limit
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if s.VideoRateLimit < 0 {
		return fmt.Errorf("server.video_rate_limit cannot be negative")
	}
	if s.VideoRateLimit > 0 && s.VideoRateWindow <= 0 {
		return fmt.Errorf("server.video_rate_window must be > 0 when video_rate_limit is set")
	}
	return nil
}

// WikipediaConfig configures the encyclopedic data source
type WikipediaConfig struct {
	RestURL   string        `mapstructure:"rest_url"`
	ActionURL string        `mapstructure:"action_url"`
	PageURL   string        `mapstructure:"page_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

func (w WikipediaConfig) Validate() error {
	if strings.TrimSpace(w.RestURL) == "" || strings.TrimSpace(w.ActionURL) == "" {
		return fmt.Errorf("wikipedia.rest_url and wikipedia.action_url required")
	}
	if strings.TrimSpace(w.UserAgent) == "" {
		return fmt.Errorf("wikipedia.user_agent required")
	}
	if w.Timeout <= 0 {
		return fmt.Errorf("wikipedia.timeout must be > 0")
	}
	return nil
}

// BreakerConfig configures a circuit breaker around an upstream.
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// PipelineConfig tunes the year summary builder
type PipelineConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"` // 0 disables the cache
}

// JobsConfig controls the video job tracker
type JobsConfig struct {
	Store     string        `mapstructure:"store"` // memory, redis
	Async     bool          `mapstructure:"async"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	TTL       time.Duration `mapstructure:"ttl"`
	SweepCron string        `mapstructure:"sweep_cron"`
}

// Normalize applies defaults for unset job values.
func (j JobsConfig) Normalize() JobsConfig {
	j.Store = strings.ToLower(strings.TrimSpace(j.Store))
	if j.Store == "" {
		j.Store = "memory"
	}
	if j.Workers <= 0 {
		j.Workers = 2
	}
	if j.QueueSize <= 0 {
		j.QueueSize = 32
	}
	if j.TTL <= 0 {
		j.TTL = 24 * time.Hour
	}
	if strings.TrimSpace(j.SweepCron) == "" {
		j.SweepCron = "*/5 * * * *"
	}
	return j
}

func (j JobsConfig) Validate() error {
	switch j.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("jobs.store must be memory or redis, got %q", j.Store)
	}
	if _, err := cronexpr.Parse(j.SweepCron); err != nil {
		return fmt.Errorf("jobs.sweep_cron: %w", err)
	}
	return nil
}

// VideoConfig configures the external video generator
type VideoConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// LLMConfig configures the generative text provider used for prompt enhancement
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether prompt enhancement can be served.
func (l LLMConfig) Enabled() bool { return strings.TrimSpace(l.APIKey) != "" }

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	port := strings.TrimSpace(r.Port)
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", strings.TrimSpace(r.Host), port)
}

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the history database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) == "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when host is set")
	}
	return nil
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.environment", "development")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")

	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.body_limit", "10M")
	v.SetDefault("server.video_rate_limit", 5)
	v.SetDefault("server.video_rate_window", 15*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("wikipedia.rest_url", "https://en.wikipedia.org/api/rest_v1")
	v.SetDefault("wikipedia.action_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wikipedia.page_url", "https://en.wikipedia.org/wiki/")
	v.SetDefault("wikipedia.user_agent", "PastPortals/1.0 (contact@pastportals.app)")
	v.SetDefault("wikipedia.timeout", 10*time.Second)
	v.SetDefault("wikipedia.breaker.failure_threshold", 10)
	v.SetDefault("wikipedia.breaker.max_requests", 3)
	v.SetDefault("wikipedia.breaker.interval", time.Minute)
	v.SetDefault("wikipedia.breaker.timeout", 30*time.Second)

	v.SetDefault("pipeline.call_timeout", 5*time.Second)
	v.SetDefault("pipeline.cache_ttl", 6*time.Hour)

	v.SetDefault("jobs.store", "memory")
	v.SetDefault("jobs.async", true)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 32)
	v.SetDefault("jobs.ttl", 24*time.Hour)
	v.SetDefault("jobs.sweep_cron", "*/5 * * * *")

	v.SetDefault("video.timeout", 10*time.Minute)
	v.SetDefault("video.breaker.failure_threshold", 3)
	v.SetDefault("video.breaker.max_requests", 1)
	v.SetDefault("video.breaker.interval", 0)
	v.SetDefault("video.breaker.timeout", time.Minute)

	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.postgres.timeout", 5*time.Second)

	v.SetDefault("telemetry.metrics_enabled", true)
}

// bindEnv registers every known key so AutomaticEnv can resolve
// PASTPORTALS_* variables during Unmarshal even without a config file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"llm.api_key", "video.endpoint",
		"storage.redis.host", "storage.redis.password", "storage.redis.db",
		"storage.postgres.url", "storage.postgres.host", "storage.postgres.port",
		"storage.postgres.user", "storage.postgres.password", "storage.postgres.dbname",
		"storage.postgres.sslmode",
	} {
		_ = v.BindEnv(key)
	}
}

// LoadConfig loads config from file and environment. A missing config file
// is not an error: defaults plus PASTPORTALS_* variables are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("PASTPORTALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Jobs = cfg.Jobs.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Wikipedia.Validate(); err != nil {
		return err
	}
	if err := c.Jobs.Validate(); err != nil {
		return err
	}
	if c.Jobs.Store == "redis" && !c.Storage.Redis.Enabled() {
		return fmt.Errorf("jobs.store=redis requires storage.redis.host")
	}
	if err := c.Storage.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Postgres.Validate(); err != nil {
		return err
	}
	return nil
}
