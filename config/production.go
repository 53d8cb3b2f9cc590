// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Cache     CacheConfig     `json:"cache"`
	Webhook   WebhookConfig   `json:"webhook"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Progress  ProgressConfig  `json:"progress"`
	Logging   LoggingConfig   `json:"logging"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"`
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	KeyPrefix       string        `json:"key_prefix"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// WebhookConfig carries the provider-facing webhook secrets
type WebhookConfig struct {
	MetaVerifyToken string `json:"meta_verify_token"`
	MetaAppSecret   string `json:"meta_app_secret"`
}

// DispatchConfig controls campaign execution pacing and scheduling
type DispatchConfig struct {
	Enabled            bool          `json:"enabled"`
	ScanInterval       time.Duration `json:"scan_interval"`
	MaxConcurrent      int           `json:"max_concurrent"`
	CampaignBudget     time.Duration `json:"campaign_budget"`
	MinMessageDelay    time.Duration `json:"min_message_delay"`
	MaxMessageDelay    time.Duration `json:"max_message_delay"`
	BatchSize          int           `json:"batch_size"`
	BatchCooldown      time.Duration `json:"batch_cooldown"`
	DefaultCountryCode string        `json:"default_country_code"`
}

// RateLimitConfig controls the send-path anti-abuse counters
type RateLimitConfig struct {
	MaxPerWindow int64         `json:"max_per_window"`
	Window       time.Duration `json:"window"`
	ExemptRoles  []string      `json:"exempt_roles"`
}

// ProgressConfig controls the realtime progress websocket gateway
type ProgressConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Dir    string `json:"dir"`
	Stdout bool   `json:"stdout"`
}

func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "chatcepat"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://app.chatcepat.id", "https://api.chatcepat.id"}),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			Provider:        getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			KeyPrefix:       getEnvString("CACHE_KEY_PREFIX", "chatcepat"),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second),
		},
		Webhook: WebhookConfig{
			MetaVerifyToken: getEnvString("META_VERIFY_TOKEN", ""),
			MetaAppSecret:   getEnvString("META_APP_SECRET", ""),
		},
		Dispatch: DispatchConfig{
			Enabled:            getEnvBool("DISPATCH_ENABLED", true),
			ScanInterval:       getEnvDuration("DISPATCH_SCAN_INTERVAL", 1*time.Minute),
			MaxConcurrent:      getEnvInt("DISPATCH_MAX_CONCURRENT", 10),
			CampaignBudget:     getEnvDuration("DISPATCH_CAMPAIGN_BUDGET", utils.DefaultCampaignBudget),
			MinMessageDelay:    getEnvDuration("DISPATCH_MIN_MESSAGE_DELAY", utils.DefaultMinMessageDelay),
			MaxMessageDelay:    getEnvDuration("DISPATCH_MAX_MESSAGE_DELAY", utils.DefaultMaxMessageDelay),
			BatchSize:          getEnvInt("DISPATCH_BATCH_SIZE", utils.DefaultBatchSize),
			BatchCooldown:      getEnvDuration("DISPATCH_BATCH_COOLDOWN", utils.DefaultBatchCooldown),
			DefaultCountryCode: getEnvString("DISPATCH_DEFAULT_COUNTRY_CODE", "62"),
		},
		RateLimit: RateLimitConfig{
			MaxPerWindow: int64(getEnvInt("RATE_LIMIT_MAX_PER_WINDOW", utils.DefaultRateLimitMax)),
			Window:       getEnvDuration("RATE_LIMIT_WINDOW", utils.DefaultRateLimitWindow),
			ExemptRoles:  getEnvStringSlice("RATE_LIMIT_EXEMPT_ROLES", []string{utils.AdminRole}),
		},
		Progress: ProgressConfig{
			Enabled: getEnvBool("PROGRESS_WS_ENABLED", true),
			Host:    getEnvString("PROGRESS_WS_HOST", "0.0.0.0"),
			Port:    getEnvInt("PROGRESS_WS_PORT", 8081),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Dir:    getEnvString("LOG_DIR", "data"),
			Stdout: getEnvBool("LOG_STDOUT", true),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate dispatch pacing
	if cfg.Dispatch.MinMessageDelay < 0 || cfg.Dispatch.MaxMessageDelay < cfg.Dispatch.MinMessageDelay {
		errors = append(errors, "DISPATCH_MAX_MESSAGE_DELAY must be >= DISPATCH_MIN_MESSAGE_DELAY")
	}
	if cfg.Dispatch.BatchSize <= 0 {
		errors = append(errors, "DISPATCH_BATCH_SIZE must be positive")
	}
	if cfg.Dispatch.MaxConcurrent <= 0 {
		errors = append(errors, "DISPATCH_MAX_CONCURRENT must be positive")
	}
	if cfg.Dispatch.DefaultCountryCode == "" {
		errors = append(errors, "DISPATCH_DEFAULT_COUNTRY_CODE is required")
	}

	// Validate rate limit configuration
	if cfg.RateLimit.MaxPerWindow <= 0 {
		errors = append(errors, "RATE_LIMIT_MAX_PER_WINDOW must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		errors = append(errors, "RATE_LIMIT_WINDOW must be positive")
	}

	// Validate progress gateway configuration
	if cfg.Progress.Enabled && (cfg.Progress.Port <= 0 || cfg.Progress.Port > 65535) {
		errors = append(errors, "PROGRESS_WS_PORT must be between 1 and 65535")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
