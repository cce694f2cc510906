package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/irfndi/sepa-screener/internal/screener"
	"github.com/irfndi/sepa-screener/internal/strength"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Security      SecurityConfig      `mapstructure:"security"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// CacheTTL bounds how long composites and run reports stay cached.
	CacheTTL string `mapstructure:"cache_ttl"`
}

type TelegramConfig struct {
	BotToken string  `mapstructure:"bot_token"`
	ChatIDs  []int64 `mapstructure:"chat_ids"`
}

// Enabled reports whether notifications can be delivered.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && len(c.ChatIDs) > 0
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	LogExport    bool    `mapstructure:"log_export"`
}

type SecurityConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry    string `mapstructure:"jwt_expiry"`
	BcryptCost   int    `mapstructure:"bcrypt_cost"`
	AdminKeyHash string `mapstructure:"admin_key_hash" json:"-" yaml:"-"`
}

// BenchmarkConfig is one weighted index of the market composite.
type BenchmarkConfig struct {
	Symbol string  `mapstructure:"symbol"`
	Weight float64 `mapstructure:"weight"`
}

type AnalysisConfig struct {
	// Workers bounds the per-symbol pool; 0 means one worker per CPU.
	Workers      int               `mapstructure:"workers"`
	HistoryDays  int               `mapstructure:"history_days"`
	Timeout      string            `mapstructure:"timeout"`
	MaxRetries   int               `mapstructure:"max_retries"`
	RetryBackoff string            `mapstructure:"retry_backoff"`
	Benchmarks   []BenchmarkConfig `mapstructure:"benchmarks"`
	Engine       screener.Config   `mapstructure:"engine"`
}

// BenchmarkWeights converts the configured benchmarks for the composite.
func (c AnalysisConfig) BenchmarkWeights() []strength.BenchmarkWeight {
	out := make([]strength.BenchmarkWeight, len(c.Benchmarks))
	for i, b := range c.Benchmarks {
		out[i] = strength.BenchmarkWeight{Symbol: strings.ToUpper(b.Symbol), Weight: b.Weight}
	}
	return out
}

type NotificationsConfig struct {
	Enabled    bool                `mapstructure:"enabled"`
	Language   string              `mapstructure:"language"`
	Thresholds screener.Thresholds `mapstructure:"thresholds"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("security.admin_key_hash", "ADMIN_KEY_HASH"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_KEY_HASH environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config := Config{
		Analysis: AnalysisConfig{Engine: screener.DefaultConfig()},
		Notifications: NotificationsConfig{
			Thresholds: screener.DefaultThresholds(),
		},
	}
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	// Validate JWT secret in non-development environments
	if c.Environment != "development" && c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	for name, d := range map[string]string{
		"JWT expiry":    c.Security.JWTExpiry,
		"redis ttl":     c.Redis.CacheTTL,
		"run timeout":   c.Analysis.Timeout,
		"retry backoff": c.Analysis.RetryBackoff,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid %s duration: %w", name, err)
		}
	}

	// Validate bcrypt cost parameter
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Security.BcryptCost)
	}
	if c.Security.AdminKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Security.AdminKeyHash)); err != nil {
			return fmt.Errorf("admin key hash is not a bcrypt hash: %w", err)
		}
	}

	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis workers must not be negative, got %d", c.Analysis.Workers)
	}
	if c.Analysis.Engine.MinBars < 1 {
		return fmt.Errorf("analysis min bars must be positive, got %d", c.Analysis.Engine.MinBars)
	}
	if err := strength.ValidateWeights(c.Analysis.BenchmarkWeights()); err != nil {
		return fmt.Errorf("invalid benchmarks: %w", err)
	}
	return nil
}

// Duration parses a configured duration, falling back when empty or invalid.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "stocks")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "24h")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_ids", []int64{})

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "sepa-screener")
	viper.SetDefault("telemetry.exporter", "stdout")
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.sample_ratio", 1.0)
	viper.SetDefault("telemetry.log_export", false)

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("security.admin_key_hash", "")

	// Analysis
	engine := screener.DefaultConfig()
	viper.SetDefault("analysis.workers", 10)
	viper.SetDefault("analysis.history_days", 400)
	viper.SetDefault("analysis.timeout", "30m")
	viper.SetDefault("analysis.max_retries", 3)
	viper.SetDefault("analysis.retry_backoff", "500ms")
	benchmarks := make([]map[string]interface{}, len(strength.DefaultBenchmarks))
	for i, b := range strength.DefaultBenchmarks {
		benchmarks[i] = map[string]interface{}{"symbol": b.Symbol, "weight": b.Weight}
	}
	viper.SetDefault("analysis.benchmarks", benchmarks)
	viper.SetDefault("analysis.engine.min_bars", engine.MinBars)
	viper.SetDefault("analysis.engine.vcp.lookback_bars", engine.VCP.LookbackBars)
	viper.SetDefault("analysis.engine.vcp.min_swing_pct", engine.VCP.MinSwingPct)
	viper.SetDefault("analysis.engine.base.new_issue_bars", engine.Base.NewIssueBars)
	viper.SetDefault("analysis.engine.earnings.pass_score", engine.Earnings.PassScore)
	viper.SetDefault("analysis.engine.signals.earnings_buffer_days", engine.Signals.EarningsBufferDays)

	// Notifications
	thresholds := screener.DefaultThresholds()
	viper.SetDefault("notifications.enabled", true)
	viper.SetDefault("notifications.language", "en-US")
	viper.SetDefault("notifications.thresholds.vcp_score_delta", thresholds.VCPScoreDelta)
	viper.SetDefault("notifications.thresholds.rs_delta", thresholds.RSDelta)
	viper.SetDefault("notifications.thresholds.surprise_pct", thresholds.SurprisePct)
}
