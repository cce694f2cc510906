package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/irfndi/sepa-screener/internal/screener"
	"github.com/irfndi/sepa-screener/internal/strength"
)

func validConfig() Config {
	return Config{
		Environment: "development",
		Security:    SecurityConfig{JWTExpiry: "24h", BcryptCost: bcrypt.MinCost},
		Analysis: AnalysisConfig{
			Workers:    4,
			Benchmarks: []BenchmarkConfig{{Symbol: "spy", Weight: 0.6}, {Symbol: "qqq", Weight: 0.4}},
			Engine:     screener.DefaultConfig(),
		},
	}
}

func TestTelegramConfig_Enabled(t *testing.T) {
	assert.False(t, TelegramConfig{}.Enabled())
	assert.False(t, TelegramConfig{BotToken: "token"}.Enabled())
	assert.True(t, TelegramConfig{BotToken: "token", ChatIDs: []int64{42}}.Enabled())
}

func TestAnalysisConfig_BenchmarkWeights(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, []strength.BenchmarkWeight{
		{Symbol: "SPY", Weight: 0.6},
		{Symbol: "QQQ", Weight: 0.4},
	}, cfg.Analysis.BenchmarkWeights())
}

func TestLoad_WithDefaults(t *testing.T) {
	// Clear any existing environment variables that might interfere
	os.Clearenv()

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.AllowedOrigins)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, 5432, config.Database.Port)
	assert.Equal(t, "stocks", config.Database.DBName)
	assert.Equal(t, "disable", config.Database.SSLMode)
	assert.Equal(t, 25, config.Database.MaxOpenConns)
	assert.Equal(t, "300s", config.Database.ConnMaxLifetime)
	assert.Equal(t, "localhost", config.Redis.Host)
	assert.Equal(t, 6379, config.Redis.Port)
	assert.Equal(t, "24h", config.Redis.CacheTTL)
	assert.Equal(t, "", config.Telegram.BotToken)
	assert.False(t, config.Telegram.Enabled())
	assert.Equal(t, "sepa-screener", config.Telemetry.ServiceName)
	assert.Equal(t, "stdout", config.Telemetry.Exporter)
	assert.Equal(t, 12, config.Security.BcryptCost)

	assert.Equal(t, 10, config.Analysis.Workers)
	assert.Equal(t, 400, config.Analysis.HistoryDays)
	assert.Equal(t, 3, config.Analysis.MaxRetries)
	assert.Len(t, config.Analysis.Benchmarks, len(strength.DefaultBenchmarks))
	assert.Equal(t, screener.DefaultConfig(), config.Analysis.Engine)

	assert.True(t, config.Notifications.Enabled)
	assert.Equal(t, "en-US", config.Notifications.Language)
	assert.Equal(t, screener.DefaultThresholds(), config.Notifications.Thresholds)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DATABASE_HOST", "prod-db.example.com")
	t.Setenv("DATABASE_DBNAME", "prod_db")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("TELEGRAM_BOT_TOKEN", "prod_bot_token")
	t.Setenv("TELEMETRY_EXPORTER", "otlp")
	t.Setenv("ANALYSIS_WORKERS", "0")
	t.Setenv("ANALYSIS_ENGINE_MIN_BARS", "120")
	t.Setenv("NOTIFICATIONS_THRESHOLDS_RS_DELTA", "5")

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "prod-secret", config.Security.JWTSecret)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "prod-db.example.com", config.Database.Host)
	assert.Equal(t, "prod_db", config.Database.DBName)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, 1, config.Redis.DB)
	assert.Equal(t, "prod_bot_token", config.Telegram.BotToken)
	assert.Equal(t, "otlp", config.Telemetry.Exporter)
	assert.Equal(t, 0, config.Analysis.Workers)
	assert.Equal(t, 120, config.Analysis.Engine.MinBars)
	assert.Equal(t, screener.DefaultConfig().VCP, config.Analysis.Engine.VCP)
	assert.Equal(t, 5.0, config.Notifications.Thresholds.RSDelta)
	assert.Equal(t, 20.0, config.Notifications.Thresholds.VCPScoreDelta)
}

func TestLoad_RequiresJWTSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestConfig_Validate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-key"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "valid admin hash", mutate: func(c *Config) { c.Security.AdminKeyHash = string(hash) }},
		{name: "bad admin hash", mutate: func(c *Config) { c.Security.AdminKeyHash = "plain" }, wantErr: "admin key hash"},
		{name: "bad expiry", mutate: func(c *Config) { c.Security.JWTExpiry = "one day" }, wantErr: "JWT expiry"},
		{name: "bad timeout", mutate: func(c *Config) { c.Analysis.Timeout = "soon" }, wantErr: "run timeout"},
		{name: "bcrypt too low", mutate: func(c *Config) { c.Security.BcryptCost = 1 }, wantErr: "bcrypt cost"},
		{name: "bcrypt too high", mutate: func(c *Config) { c.Security.BcryptCost = 99 }, wantErr: "bcrypt cost"},
		{name: "negative workers", mutate: func(c *Config) { c.Analysis.Workers = -1 }, wantErr: "workers"},
		{name: "zero min bars", mutate: func(c *Config) { c.Analysis.Engine.MinBars = 0 }, wantErr: "min bars"},
		{name: "weights off", mutate: func(c *Config) { c.Analysis.Benchmarks[0].Weight = 0.1 }, wantErr: "benchmarks"},
		{name: "secret required", mutate: func(c *Config) { c.Environment = "staging" }, wantErr: "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("bogus", time.Minute))
}
