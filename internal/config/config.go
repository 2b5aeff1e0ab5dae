package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

const (
	defaultAppName         = "LumenWallet"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultStoreTimeout    = 5 * time.Second
	defaultRetryBackoff    = 20 * time.Millisecond
	defaultTransferRetries = 3
	defaultRateLimit       = 30
	defaultKafkaTopic      = "ledger.events"
	defaultCurrency        = "USD"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Limits holds the money policy applied by the transfer and withdrawal engines.
type Limits struct {
	MinTransfer     money.Amount
	MaxTransfer     money.Amount
	MinWithdrawal   money.Amount
	DailyWithdraw   money.Amount
	WeeklyWithdraw  money.Amount
	MonthlyWithdraw money.Amount
	Currency        string
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	LogFormat       string
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    []string
	KafkaTopic      string
	JWTSecret       string
	InternalToken   string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	StoreTimeout    time.Duration
	RetryBackoff    time.Duration
	TransferRetries int
	RateLimit       int
	Limits          Limits
}

// DefaultLimits mirrors the production money policy.
func DefaultLimits() Limits {
	return Limits{
		MinTransfer:     money.MustParse("0.01"),
		MaxTransfer:     money.MustParse("1000000"),
		MinWithdrawal:   money.MustParse("1.00"),
		DailyWithdraw:   money.MustParse("5000.00"),
		WeeklyWithdraw:  money.MustParse("25000.00"),
		MonthlyWithdraw: money.MustParse("100000.00"),
		Currency:        defaultCurrency,
	}
}

// Load reads configuration values from the environment and populates a Config
// instance. A .env file in the working directory is applied first when present;
// real environment variables win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		InternalToken:   os.Getenv("INTERNAL_TOKEN"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		StoreTimeout:    defaultStoreTimeout,
		RetryBackoff:    defaultRetryBackoff,
		TransferRetries: defaultTransferRetries,
		RateLimit:       defaultRateLimit,
		Limits:          DefaultLimits(),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT_SECONDS", "STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = durationEnv("", "RETRY_BACKOFF", cfg.RetryBackoff); err != nil {
		return Config{}, err
	}
	if cfg.TransferRetries, err = intEnv("TRANSFER_RETRIES", cfg.TransferRetries); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = intEnv("RATE_LIMIT_PER_MINUTE", cfg.RateLimit); err != nil {
		return Config{}, err
	}

	amounts := []struct {
		key string
		dst *money.Amount
	}{
		{"MIN_TRANSFER_AMOUNT", &cfg.Limits.MinTransfer},
		{"MAX_TRANSFER_AMOUNT", &cfg.Limits.MaxTransfer},
		{"MIN_WITHDRAWAL_AMOUNT", &cfg.Limits.MinWithdrawal},
		{"DAILY_WITHDRAW_LIMIT", &cfg.Limits.DailyWithdraw},
		{"WEEKLY_WITHDRAW_LIMIT", &cfg.Limits.WeeklyWithdraw},
		{"MONTHLY_WITHDRAW_LIMIT", &cfg.Limits.MonthlyWithdraw},
	}
	for _, a := range amounts {
		v := os.Getenv(a.key)
		if v == "" {
			continue
		}
		parsed, err := money.Parse(v)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", a.key, v)
		}
		*a.dst = parsed
	}
	cfg.Limits.Currency = strings.ToUpper(getEnv("CURRENCY", defaultCurrency))

	if cfg.Limits.MinTransfer > cfg.Limits.MaxTransfer {
		return Config{}, fmt.Errorf("MIN_TRANSFER_AMOUNT exceeds MAX_TRANSFER_AMOUNT")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// IsDev reports whether the service runs in a local/development environment,
// where Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads either a whole number of seconds or a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
