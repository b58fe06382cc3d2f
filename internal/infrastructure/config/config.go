package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Timers    TimersConfig    `mapstructure:"timers"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Pomodoro  PomodoroConfig  `mapstructure:"pomodoro"`
	Shopping  ShoppingConfig  `mapstructure:"shopping"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Security  SecurityConfig  `mapstructure:"security"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	Timezone    string `mapstructure:"timezone"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
	Keyring         KeyringConfig `mapstructure:"keyring"`
}

// KeyringConfig controls reading the database password from the OS keyring
type KeyringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
	Key     string `mapstructure:"key"`
	Backend string `mapstructure:"backend"`
	FileDir string `mapstructure:"file_dir"`
}

// CacheConfig holds the last-known-good snapshot cache configuration
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	Key     string        `mapstructure:"key"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TimersConfig holds timer engine configuration
type TimersConfig struct {
	Tick     time.Duration `mapstructure:"tick"`
	Autosave time.Duration `mapstructure:"autosave"`
}

// RemindersConfig holds alarm reminder configuration
type RemindersConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	LeadTime time.Duration `mapstructure:"lead_time"`
	Interval time.Duration `mapstructure:"interval"`
}

// PomodoroConfig holds default pomodoro durations
type PomodoroConfig struct {
	Focus time.Duration `mapstructure:"focus"`
	Break time.Duration `mapstructure:"break"`
}

// ShoppingConfig holds the shopping list partitions
type ShoppingConfig struct {
	Lists []string `mapstructure:"lists"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APISecret          string        `mapstructure:"api_secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	TokenIssuer        string        `mapstructure:"token_issuer"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from defaults, an optional config file, .env and the environment
func Load(file string) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "agenda")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.timezone", "Local")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.path", "agenda.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "agenda")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "30s")
	v.SetDefault("database.migrate_on_start", true)
	v.SetDefault("database.keyring.enabled", false)
	v.SetDefault("database.keyring.service", "agenda")
	v.SetDefault("database.keyring.key", "database-password")
	v.SetDefault("database.keyring.backend", "")
	v.SetDefault("database.keyring.file_dir", "")

	// Cache defaults
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "agenda-snapshot.json")
	v.SetDefault("cache.key", "agenda:snapshot")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	// Timer defaults
	v.SetDefault("timers.tick", "1s")
	v.SetDefault("timers.autosave", "5s")

	// Reminder defaults
	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.lead_time", "15m")
	v.SetDefault("reminders.interval", "1m")

	// Pomodoro defaults
	v.SetDefault("pomodoro.focus", "25m")
	v.SetDefault("pomodoro.break", "5m")

	// Shopping defaults
	v.SetDefault("shopping.lists", []string{"supermarket", "pharmacy"})

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.buffer_size", 100)

	// Security defaults
	v.SetDefault("security.api_secret", "")
	v.SetDefault("security.token_ttl", "720h")
	v.SetDefault("security.token_issuer", "agenda")
	v.SetDefault("security.cors_allowed_origins", "*")
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("app.debug", "APP_DEBUG")
	_ = v.BindEnv("app.timezone", "APP_TIMEZONE")

	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")

	// Database
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.dsn", "DB_DSN")
	_ = v.BindEnv("database.path", "DB_PATH")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.ssl_mode", "DB_SSL_MODE")
	_ = v.BindEnv("database.migrate_on_start", "DB_MIGRATE_ON_START")
	_ = v.BindEnv("database.keyring.enabled", "DB_KEYRING_ENABLED")
	_ = v.BindEnv("database.keyring.backend", "DB_KEYRING_BACKEND")

	// Cache
	_ = v.BindEnv("cache.backend", "CACHE_BACKEND")
	_ = v.BindEnv("cache.path", "CACHE_PATH")
	_ = v.BindEnv("cache.redis.host", "REDIS_HOST")
	_ = v.BindEnv("cache.redis.port", "REDIS_PORT")
	_ = v.BindEnv("cache.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("cache.redis.db", "REDIS_DB")

	// Timers and reminders
	_ = v.BindEnv("timers.tick", "TIMERS_TICK")
	_ = v.BindEnv("timers.autosave", "TIMERS_AUTOSAVE")
	_ = v.BindEnv("reminders.enabled", "REMINDERS_ENABLED")
	_ = v.BindEnv("reminders.lead_time", "REMINDERS_LEAD_TIME")

	// Logger
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("logger.format", "LOG_FORMAT")
	_ = v.BindEnv("logger.output", "LOG_OUTPUT")

	// Security
	_ = v.BindEnv("security.api_secret", "API_SECRET")
	_ = v.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	_ = v.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	// Metrics
	_ = v.BindEnv("metrics.enabled", "ENABLE_METRICS")
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.DSN == "" && cfg.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case "postgres", "pgx":
		if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.Name == "") {
			return fmt.Errorf("database host and name are required for the %s driver", cfg.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	switch cfg.Cache.Backend {
	case "file", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Timers.Tick <= 0 || cfg.Timers.Autosave <= 0 {
		return fmt.Errorf("timer tick and autosave intervals must be positive")
	}

	if cfg.Pomodoro.Focus <= 0 || cfg.Pomodoro.Break <= 0 {
		return fmt.Errorf("pomodoro durations must be positive")
	}

	if len(cfg.Shopping.Lists) == 0 {
		return fmt.Errorf("at least one shopping list is required")
	}

	if cfg.Security.APISecret != "" && len(cfg.Security.APISecret) < 16 {
		return fmt.Errorf("api secret must be at least 16 characters")
	}

	if _, err := cfg.App.Location(); err != nil {
		return err
	}

	return nil
}

// GetDSN returns the database connection string for the configured driver
func (cfg *DatabaseConfig) GetDSN() string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetAddr returns the Redis address
func (cfg *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Location resolves the configured timezone used for calendar days
func (cfg *AppConfig) Location() (*time.Location, error) {
	if cfg.Timezone == "" || cfg.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return loc, nil
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}
