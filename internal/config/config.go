package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "Fixoo"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessExpire     = "15m"
	defaultRefreshExpire    = "7d"
	defaultOTPTTL           = 600 * time.Second
	defaultConfirmationTTL  = 600 * time.Second
	defaultOTPLength        = 6
	defaultOTPMaxAttempts   = 5
	defaultBcryptCost       = 10
	defaultLoginPerMinute   = 5
	defaultOTPSendPerMinute = 3
	defaultNotifyPerSecond  = 10
	defaultBreakerFailures  = 5
	devJWTSecret            = "dev-secret-change-me"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AutoMigrate    bool
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OTP      OTPConfig
	Security SecurityConfig
	SMS      SMSConfig
	Mail     MailConfig
	Notify   NotifyConfig
}

// OTPConfig tunes one-time code issuance and the confirmation window that follows it.
type OTPConfig struct {
	TTL             time.Duration
	ConfirmationTTL time.Duration
	Length          int
	MaxAttempts     int
}

// SecurityConfig groups password hashing and request throttling knobs.
type SecurityConfig struct {
	BcryptCost       int
	LoginPerMinute   int
	OTPSendPerMinute int
}

// SMSConfig holds outbound SMS provider credentials.
type SMSConfig struct {
	APIURL string
	Token  string
	From   string
}

// MailConfig holds outbound email provider credentials.
type MailConfig struct {
	APIKey   string
	From     string
	FromName string
}

// NotifyConfig bounds outbound provider traffic.
type NotifyConfig struct {
	RatePerSecond      int
	BreakerMaxFailures int
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       redisURL(),
		AutoMigrate:    getEnv("AUTO_MIGRATE", "true") == "true",
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RefreshSecret:  os.Getenv("JWT_REFRESH_SECRET"),
		SMS: SMSConfig{
			APIURL: os.Getenv("SMS_API_URL"),
			Token:  os.Getenv("SMS_API_TOKEN"),
			From:   os.Getenv("SMS_FROM"),
		},
		Mail: MailConfig{
			APIKey:   os.Getenv("MAIL_API_KEY"),
			From:     os.Getenv("MAIL_FROM"),
			FromName: getEnv("MAIL_FROM_NAME", defaultAppName),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	if cfg.AccessTokenTTL, err = ParseExpiry(getEnv("JWT_ACCESS_EXPIRE", defaultAccessExpire)); err != nil {
		return Config{}, fmt.Errorf("invalid JWT_ACCESS_EXPIRE: %w", err)
	}
	if cfg.RefreshTokenTTL, err = ParseExpiry(getEnv("JWT_REFRESH_EXPIRE", defaultRefreshExpire)); err != nil {
		return Config{}, fmt.Errorf("invalid JWT_REFRESH_EXPIRE: %w", err)
	}

	if cfg.OTP.TTL, err = expiryEnv("OTP_TTL", defaultOTPTTL); err != nil {
		return Config{}, err
	}
	if cfg.OTP.ConfirmationTTL, err = expiryEnv("CONFIRMATION_TTL", defaultConfirmationTTL); err != nil {
		return Config{}, err
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"OTP_LENGTH", defaultOTPLength, &cfg.OTP.Length},
		{"OTP_MAX_ATTEMPTS", defaultOTPMaxAttempts, &cfg.OTP.MaxAttempts},
		{"BCRYPT_COST", defaultBcryptCost, &cfg.Security.BcryptCost},
		{"LOGIN_RATE_LIMIT_PER_MIN", defaultLoginPerMinute, &cfg.Security.LoginPerMinute},
		{"OTP_SEND_RATE_LIMIT_PER_MIN", defaultOTPSendPerMinute, &cfg.Security.OTPSendPerMinute},
		{"NOTIFY_RATE_PER_SEC", defaultNotifyPerSecond, &cfg.Notify.RatePerSecond},
		{"NOTIFY_BREAKER_MAX_FAILURES", defaultBreakerFailures, &cfg.Notify.BreakerMaxFailures},
	}
	for _, i := range ints {
		if *i.dst, err = intEnv(i.key, i.fallback); err != nil {
			return Config{}, err
		}
	}

	if cfg.OTP.Length < 4 || cfg.OTP.Length > 10 {
		return Config{}, fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret
	}

	// Development falls back to the in-memory user store.
	if cfg.DatabaseURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local or development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// ParseExpiry parses token lifetimes such as "15m", "12h" or "7d". Bare
// integers are read as seconds.
func ParseExpiry(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(n) * time.Second, nil
	}
	if strings.HasSuffix(v, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(v, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", v)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

func redisURL() string {
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return ""
	}
	return "redis://" + net.JoinHostPort(host, getEnv("REDIS_PORT", "6379"))
}

func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
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

func expiryEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := ParseExpiry(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
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

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
