// Package config handles configuration for the account server, including
// defaults, environment (.env) overlay, JSON overlay and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdmissionMemory = "memory"
	AdmissionRedis  = "redis"

	MailSMTP = "smtp"
	MailS3   = "s3"
	MailLog  = "log"
)

// Config holds runtime settings for the account server.
//
// An empty DatabaseDSN selects the in-memory account store. PasswordPepper
// and SessionSecret have no defaults: the server refuses to start without
// them.
type Config struct {
	EndpointAddrHTTP string
	EndpointAddrGRPC string
	DatabaseDSN      string

	PasswordPepper string
	BcryptCost     int

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	LockoutThreshold int
	LockoutDuration  time.Duration

	ResetTokenTTL time.Duration
	ResetURLBase  string

	AllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	AdmissionBackend string
	RedisAddr        string
	LoginLimit       int
	LoginWindow      time.Duration
	GeneralLimit     int
	GeneralWindow    time.Duration

	CaptchaSecret    string
	CaptchaThreshold int

	// CaptchaStaticToken, when set and CaptchaSecret is not, is the one
	// token a development setup accepts as a solved captcha.
	CaptchaStaticToken string

	MailBackend    string
	MailFrom       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	LogLevel  string
	LogFormat string
	LogFile   string

	MetricsEnabled bool
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.BcryptCost = 12
	c.SessionTTL = 24 * time.Hour
	c.CookieSecure = true
	c.LockoutThreshold = 5
	c.LockoutDuration = 30 * time.Minute
	c.ResetTokenTTL = 30 * time.Minute
	c.ResetURLBase = "http://localhost:3000/reset-password"
	c.AllowedOrigins = []string{"http://localhost:3000"}
	c.AdmissionBackend = AdmissionMemory
	c.LoginLimit = 5
	c.LoginWindow = time.Hour
	c.GeneralLimit = 100
	c.GeneralWindow = 15 * time.Minute
	c.CaptchaThreshold = 3
	c.MailBackend = MailLog
	c.MailFrom = "no-reply@taskmanager.local"
	c.SMTPPort = 587
	c.S3Bucket = "mail-outbox"
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.MetricsEnabled = true
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (and an optional .env file), from an optional JSON
// file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports settings the server cannot start with. Every error wraps
// common.ErrConfigurationFatal.
func (c *Config) Validate() error {
	fatal := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", common.ErrConfigurationFatal, fmt.Sprintf(format, args...))
	}

	if c.PasswordPepper == "" {
		return fatal("password pepper is not set")
	}
	if c.SessionSecret == "" {
		return fatal("session secret is not set")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fatal("bcrypt cost %d is out of range", c.BcryptCost)
	}
	if c.SessionTTL <= 0 || c.LockoutDuration <= 0 || c.ResetTokenTTL <= 0 {
		return fatal("durations must be positive")
	}
	if c.LockoutThreshold < 1 {
		return fatal("lockout threshold must be at least 1")
	}
	if c.LoginLimit < 1 || c.GeneralLimit < 1 {
		return fatal("admission limits must be at least 1")
	}
	if c.LoginWindow <= 0 || c.GeneralWindow <= 0 {
		return fatal("admission windows must be positive")
	}

	switch c.AdmissionBackend {
	case AdmissionMemory:
	case AdmissionRedis:
		if c.RedisAddr == "" {
			return fatal("redis admission backend needs a redis address")
		}
	default:
		return fatal("unknown admission backend %q", c.AdmissionBackend)
	}

	switch c.MailBackend {
	case MailLog:
	case MailSMTP:
		if c.SMTPHost == "" {
			return fatal("smtp mail backend needs a host")
		}
	case MailS3:
		if c.S3Bucket == "" {
			return fatal("s3 mail backend needs a bucket")
		}
	default:
		return fatal("unknown mail backend %q", c.MailBackend)
	}

	return nil
}
