// Package config loads the credentials service settings from the
// environment, with an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment            string
	HTTPAddr               string
	SigningKey             string
	Issuer                 string
	AccessTokenTTL         time.Duration
	VerificationTokenTTL   time.Duration
	RecoveryTokenTTL       time.Duration
	CodeExpiration         time.Duration
	CodeMaxAttempts        int
	PendingRegistrationTTL time.Duration
	RevocationBackend      string
	StoreBackend           string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	DatabaseDSN            string
	RateLimitPerMinute     int
	RateLimitBurst         int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:            getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		SigningKey:             strings.TrimSpace(os.Getenv("CREDENTIALS_SIGNING_KEY")),
		Issuer:                 getEnv("CREDENTIALS_ISSUER", "go-credentials"),
		AccessTokenTTL:         getDuration("ACCESS_TOKEN_TTL", time.Hour),
		VerificationTokenTTL:   getDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		RecoveryTokenTTL:       getDuration("RECOVERY_TOKEN_TTL", 24*time.Hour),
		CodeExpiration:         getDuration("VERIFICATION_CODE_TTL", 10*time.Minute),
		CodeMaxAttempts:        getInt("VERIFICATION_CODE_MAX_ATTEMPTS", 3),
		PendingRegistrationTTL: getDuration("PENDING_REGISTRATION_TTL", 24*time.Hour),
		RevocationBackend:      getEnv("REVOCATION_BACKEND", "store"),
		StoreBackend:           getEnv("EPHEMERAL_STORE", "redis"),
		RedisAddr:              getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0),
		DatabaseDSN:            getEnv("DATABASE_DSN", "file:credentials.db?cache=shared"),
		RateLimitPerMinute:     getInt("RATE_LIMIT_RPM", 30),
		RateLimitBurst:         getInt("RATE_LIMIT_BURST", 5),
	}

	if cfg.SigningKey == "" {
		return Config{}, goerrors.New("CREDENTIALS_SIGNING_KEY is required", goerrors.CategoryValidation)
	}

	if cfg.CodeMaxAttempts < 1 {
		return Config{}, goerrors.New("VERIFICATION_CODE_MAX_ATTEMPTS must be positive", goerrors.CategoryValidation)
	}

	return cfg, nil
}

func (c Config) GetSigningKey() string                    { return c.SigningKey }
func (c Config) GetIssuer() string                        { return c.Issuer }
func (c Config) GetAccessTokenTTL() time.Duration         { return c.AccessTokenTTL }
func (c Config) GetVerificationTokenTTL() time.Duration   { return c.VerificationTokenTTL }
func (c Config) GetRecoveryTokenTTL() time.Duration       { return c.RecoveryTokenTTL }
func (c Config) GetCodeExpiration() time.Duration         { return c.CodeExpiration }
func (c Config) GetCodeMaxAttempts() int                  { return c.CodeMaxAttempts }
func (c Config) GetPendingRegistrationTTL() time.Duration { return c.PendingRegistrationTTL }
func (c Config) GetRevocationBackend() string             { return c.RevocationBackend }

// RecoveryTokenHours returns the recovery credential lifetime in whole hours.
func (c Config) RecoveryTokenHours() int {
	return int(c.RecoveryTokenTTL / time.Hour)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
