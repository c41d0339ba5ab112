package config

import (
	"os"
	"strconv"
	"time"
)

// Environment mode values. The development value unlocks the mock-auth
// fallback when no identity provider is configured; every other value makes
// that condition a hard failure.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Provider captures identity-provider verification settings. Configured
// reports false when the public key is absent, which drives the resolver's
// development fallback.
type Provider struct {
	Issuer       string
	Audience     string
	PublicKeyPEM string
}

func (p Provider) Configured() bool { return p.PublicKeyPEM != "" }

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr              string
	Env               string
	JWTSigningKey     string
	DatabaseURL       string
	RedisURL          string
	Provider          Provider
	SessionTokenTTL   time.Duration
	ResetTokenTTL     time.Duration
	AuditBuffer       int
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("MARKET_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	env := os.Getenv("MARKET_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Default for development only - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	auditBuffer := 256
	if v := os.Getenv("AUDIT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			auditBuffer = n
		}
	}

	readHeaderTimeout := envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	idleTimeout := envDuration("HTTP_IDLE_TIMEOUT", 2*time.Minute)

	return Server{
		Addr:          addr,
		Env:           env,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Provider: Provider{
			Issuer:       os.Getenv("PROVIDER_ISSUER"),
			Audience:     os.Getenv("PROVIDER_AUDIENCE"),
			PublicKeyPEM: os.Getenv("PROVIDER_PUBLIC_KEY"),
		},
		SessionTokenTTL:   24 * time.Hour,
		ResetTokenTTL:     time.Hour,
		AuditBuffer:       auditBuffer,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		ShutdownTimeout:   10 * time.Second,
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// IsDevelopment reports whether the process runs in development mode.
func (s Server) IsDevelopment() bool { return s.Env == EnvDevelopment }
