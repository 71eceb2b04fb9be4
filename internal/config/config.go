package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"confluence-backend/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `env:", prefix=SERVER_"`
	Database   DatabaseConfig   `env:", prefix=DB_"`
	Redis      RedisConfig      `env:", prefix=REDIS_"`
	NATS       NATSConfig       `env:", prefix=NATS_"`
	Firebase   FirebaseConfig   `env:", prefix=FIREBASE_"`
	Binance    BinanceConfig    `env:", prefix=BINANCE_"`
	Engine     EngineConfig     `env:", prefix=ENGINE_"`
	Scanner    ScannerConfig    `env:", prefix=SCANNER_"`
	Security   SecurityConfig   `env:", prefix=SECURITY_"`
	Logging    LoggingConfig    `env:", prefix=LOG_"`
	Monitoring MonitoringConfig `env:", prefix=MONITORING_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"HOST, default=0.0.0.0"`
	Port            int           `env:"PORT, default=8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT, default=120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=15s"`
	WSPushInterval  time.Duration `env:"WS_PUSH_INTERVAL, default=5s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES, default=10485760"`
}

// DatabaseConfig holds Postgres configuration. An empty URL keeps signal
// records in memory.
type DatabaseConfig struct {
	URL               string        `env:"URL"`
	RequireSSL        bool          `env:"REQUIRE_SSL, default=true"`
	MaxConns          int32         `env:"MAX_CONNS, default=10"`
	MinConns          int32         `env:"MIN_CONNS, default=2"`
	MaxConnLifetime   time.Duration `env:"MAX_CONN_LIFETIME, default=30m"`
	MaxConnIdleTime   time.Duration `env:"MAX_CONN_IDLE_TIME, default=5m"`
	HealthCheckPeriod time.Duration `env:"HEALTHCHECK_PERIOD, default=30s"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	CacheTTL     time.Duration `env:"CACHE_TTL, default=30m"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	SubjectPrefix string        `env:"SUBJECT_PREFIX, default=confluence"`
}

// FirebaseConfig holds push notification and Firestore settings. Without
// credentials both are disabled.
type FirebaseConfig struct {
	CredentialsPath     string        `env:"CREDENTIALS_PATH"`
	CredentialsJSON     string        `env:"CREDENTIALS_JSON"`
	ProjectID           string        `env:"PROJECT_ID"`
	FirestoreEnabled    bool          `env:"FIRESTORE_ENABLED, default=false"`
	FirestoreCollection string        `env:"FIRESTORE_COLLECTION, default=analyses"`
	NotifyCooldown      time.Duration `env:"NOTIFY_COOLDOWN, default=15m"`
}

// HasCredentials reports whether any Firebase credentials are configured.
func (f FirebaseConfig) HasCredentials() bool {
	return f.CredentialsPath != "" || f.CredentialsJSON != ""
}

// BinanceConfig holds the market data endpoint
type BinanceConfig struct {
	BaseURL string        `env:"BASE_URL, default=https://fapi.binance.com"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// EngineConfig holds the analysis defaults
type EngineConfig struct {
	ToleranceType     string   `env:"TOLERANCE_TYPE, default=STANDARD"`
	BaseTolerance     float64  `env:"BASE_TOLERANCE, default=0.02"`
	ATRPeriod         int      `env:"ATR_PERIOD, default=14"`
	Window            int      `env:"WINDOW, default=150"`
	Timeframes        []string `env:"TIMEFRAMES, default=1h,4h,1d"`
	SwingSource       string   `env:"SWING_SOURCE, default=CLOSE"`
	RecentBars        int      `env:"RECENT_BARS, default=1"`
	MinZoneLevels     int      `env:"MIN_ZONE_LEVELS, default=2"`
	RequireVolatility bool     `env:"REQUIRE_VOLATILITY, default=false"`
	LevelsFile        string   `env:"LEVELS_FILE"`
}

// AnalysisConfig converts the engine settings into the request defaults.
func (e EngineConfig) AnalysisConfig() (domain.AnalysisConfig, error) {
	tt, err := domain.ParseToleranceType(e.ToleranceType)
	if err != nil {
		return domain.AnalysisConfig{}, err
	}
	timeframes := make([]string, 0, len(e.Timeframes))
	for _, tf := range e.Timeframes {
		if tf = strings.TrimSpace(tf); tf != "" {
			timeframes = append(timeframes, tf)
		}
	}
	cfg := domain.AnalysisConfig{
		ToleranceType:     tt,
		BaseTolerance:     e.BaseTolerance,
		ATRPeriod:         e.ATRPeriod,
		Window:            e.Window,
		Timeframes:        timeframes,
		SwingSource:       domain.SwingSource(strings.ToUpper(strings.TrimSpace(e.SwingSource))),
		RecentBars:        e.RecentBars,
		MinZoneLevels:     e.MinZoneLevels,
		RequireVolatility: e.RequireVolatility,
	}
	if err := cfg.Validate(); err != nil {
		return domain.AnalysisConfig{}, err
	}
	return cfg, nil
}

// ScannerConfig drives the periodic background analysis
type ScannerConfig struct {
	Enabled        bool          `env:"ENABLED, default=false"`
	Symbols        []string      `env:"SYMBOLS, default=BTCUSDT,ETHUSDT"`
	Interval       time.Duration `env:"INTERVAL, default=5m"`
	BaseTimeframe  string        `env:"BASE_TIMEFRAME, default=1h"`
	BarLimit       int           `env:"BAR_LIMIT, default=1000"`
	Concurrency    int           `env:"CONCURRENCY, default=4"`
	AutoRecord     bool          `env:"AUTO_RECORD, default=false"`
	NotifyStrength string        `env:"NOTIFY_STRENGTH, default=VERY_STRONG"`
}

// SecurityConfig holds CORS configuration
type SecurityConfig struct {
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=Content-Type,Authorization"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	MetricsEnabled bool `env:"METRICS_ENABLED, default=true"`
}

// Load reads optional .env files, then the process environment. Variables
// already set in the environment win over the files.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith processes configuration from an explicit lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.WSPushInterval <= 0 {
		return fmt.Errorf("invalid websocket push interval: %s", c.Server.WSPushInterval)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("invalid db max conns: %d", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid db min conns: %d", c.Database.MinConns)
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}
	if c.Firebase.FirestoreEnabled && !c.Firebase.HasCredentials() {
		return fmt.Errorf("Firestore requires Firebase credentials")
	}
	if _, err := c.Engine.AnalysisConfig(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Scanner.Enabled {
		if len(c.Scanner.Symbols) == 0 {
			return fmt.Errorf("scanner requires at least one symbol")
		}
		if c.Scanner.Interval <= 0 {
			return fmt.Errorf("invalid scanner interval: %s", c.Scanner.Interval)
		}
		if _, err := domain.ParseTimeframe(c.Scanner.BaseTimeframe); err != nil {
			return fmt.Errorf("scanner base timeframe: %w", err)
		}
		if c.Scanner.BarLimit < 2 {
			return fmt.Errorf("invalid scanner bar limit: %d", c.Scanner.BarLimit)
		}
		if c.Scanner.Concurrency < 1 {
			return fmt.Errorf("invalid scanner concurrency: %d", c.Scanner.Concurrency)
		}
		if _, err := domain.ParseZoneStrength(c.Scanner.NotifyStrength); err != nil {
			return fmt.Errorf("scanner notify strength: %w", err)
		}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
