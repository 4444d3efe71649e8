package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "TM_"

// parseEnv overlays TM_* environment variables onto config. A dotenv file
// named with -env must exist; otherwise ./.env is loaded when present.
// Variables already set in the process environment win over the file.
// Malformed values panic, like the JSON and flag layers.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("PASSWORD_PEPPER", &config.PasswordPepper)
	envInt("BCRYPT_COST", &config.BcryptCost)
	envString("SESSION_SECRET", &config.SessionSecret)
	envDuration("SESSION_TTL", &config.SessionTTL)
	envBool("COOKIE_SECURE", &config.CookieSecure)
	envInt("LOCKOUT_THRESHOLD", &config.LockoutThreshold)
	envDuration("LOCKOUT_DURATION", &config.LockoutDuration)
	envDuration("RESET_TOKEN_TTL", &config.ResetTokenTTL)
	envString("RESET_URL_BASE", &config.ResetURLBase)
	envList("ALLOWED_ORIGINS", &config.AllowedOrigins)
	envString("ADMISSION_BACKEND", &config.AdmissionBackend)
	envString("REDIS_ADDR", &config.RedisAddr)
	envInt("LOGIN_LIMIT", &config.LoginLimit)
	envDuration("LOGIN_WINDOW", &config.LoginWindow)
	envInt("GENERAL_LIMIT", &config.GeneralLimit)
	envDuration("GENERAL_WINDOW", &config.GeneralWindow)
	envString("CAPTCHA_SECRET", &config.CaptchaSecret)
	envInt("CAPTCHA_THRESHOLD", &config.CaptchaThreshold)
	envString("CAPTCHA_STATIC_TOKEN", &config.CaptchaStaticToken)
	envString("MAIL_BACKEND", &config.MailBackend)
	envString("MAIL_FROM", &config.MailFrom)
	envString("SMTP_HOST", &config.SMTPHost)
	envInt("SMTP_PORT", &config.SMTPPort)
	envString("SMTP_USER", &config.SMTPUser)
	envString("SMTP_PASSWORD", &config.SMTPPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envString("S3_ACCESS_KEY", &config.S3AccessKey)
	envString("S3_SECRET_KEY", &config.S3SecretKey)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("LOG_FORMAT", &config.LogFormat)
	envString("LOG_FILE", &config.LogFile)
	envBool("METRICS_ENABLED", &config.MetricsEnabled)
	envBool("TRUST_PROXY_HEADERS", &config.TrustProxyHeaders)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
	}
	*dst = b
}

func envDuration(key string, dst *time.Duration) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
	}
	*dst = d
}

func envList(key string, dst *[]string) {
	if v, ok := lookup(key); ok {
		*dst = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
