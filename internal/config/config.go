package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv       string
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LogLevel     logging.Level

	DBDriver          string
	DBURL             string
	DBBusyTimeout     time.Duration
	DBMigrateOnStart  bool
	JWTSecret         string
	RegistrationRetry RetryConfig

	NotifyWorkers     int
	NotifyWebhookURL  string
	NotifyWebhookRate float64
	NotifyTimeout     time.Duration
}

// RetryConfig bounds how often a registration is re-run after a lock conflict.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := parsePositiveDuration("APP_READ_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := parsePositiveDuration("APP_WRITE_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}

	dbDriver := strings.ToLower(strings.TrimSpace(getEnv("DB_DRIVER", "sqlite3")))
	if dbDriver != "sqlite3" && dbDriver != "postgres" {
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q: valid values are sqlite3, postgres", dbDriver)
	}
	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if dbURL == "" {
		if dbDriver == "postgres" {
			return Config{}, fmt.Errorf("DB_URL is required when DB_DRIVER=postgres")
		}
		dbURL = "op_arena.db"
	}
	busyTimeout, err := parsePositiveDuration("DB_BUSY_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	migrateOnStart, err := strconv.ParseBool(getEnv("DB_MIGRATE_ON_START", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_MIGRATE_ON_START: %w", err)
	}

	jwtSecret := strings.TrimSpace(getEnv("AUTH_JWT_SECRET", ""))
	if jwtSecret == "" {
		if appEnv == EnvProd {
			return Config{}, fmt.Errorf("AUTH_JWT_SECRET is required when APP_ENV=prod")
		}
		jwtSecret = "dev-secret"
	}

	maxAttempts, err := getEnvAsInt("REGISTRATION_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse REGISTRATION_MAX_ATTEMPTS: %w", err)
	}
	if maxAttempts <= 0 {
		return Config{}, fmt.Errorf("REGISTRATION_MAX_ATTEMPTS must be > 0")
	}
	retryInitial, err := parsePositiveDuration("REGISTRATION_RETRY_INITIAL", "20ms")
	if err != nil {
		return Config{}, err
	}
	retryMax, err := parsePositiveDuration("REGISTRATION_RETRY_MAX", "500ms")
	if err != nil {
		return Config{}, err
	}
	if retryMax < retryInitial {
		return Config{}, fmt.Errorf("REGISTRATION_RETRY_MAX must be >= REGISTRATION_RETRY_INITIAL")
	}

	notifyWorkers, err := getEnvAsInt("NOTIFY_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFY_WORKERS: %w", err)
	}
	if notifyWorkers <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_WORKERS must be > 0")
	}
	webhookRate, err := strconv.ParseFloat(getEnv("NOTIFY_WEBHOOK_RATE", "5"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFY_WEBHOOK_RATE: %w", err)
	}
	if webhookRate <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_WEBHOOK_RATE must be > 0")
	}
	notifyTimeout, err := parsePositiveDuration("NOTIFY_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:           appEnv,
		HTTPAddr:         strings.TrimSpace(getEnv("APP_HTTP_ADDR", ":8080")),
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		LogLevel:         parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		DBDriver:         dbDriver,
		DBURL:            dbURL,
		DBBusyTimeout:    busyTimeout,
		DBMigrateOnStart: migrateOnStart,
		JWTSecret:        jwtSecret,
		RegistrationRetry: RetryConfig{
			MaxAttempts:     maxAttempts,
			InitialInterval: retryInitial,
			MaxInterval:     retryMax,
		},
		NotifyWorkers:     notifyWorkers,
		NotifyWebhookURL:  strings.TrimSpace(getEnv("NOTIFY_WEBHOOK_URL", "")),
		NotifyWebhookRate: webhookRate,
		NotifyTimeout:     notifyTimeout,
	}, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
