package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/flagx"
	"github.com/dmitrijs2005/taskmanager/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration so both "30m" and integer nanoseconds are accepted.
// Absent fields keep the value from the earlier layers.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`

	PasswordPepper string `json:"password_pepper"`
	BcryptCost     int    `json:"bcrypt_cost"`

	SessionSecret string         `json:"session_secret"`
	SessionTTL    timex.Duration `json:"session_ttl"`
	CookieSecure  *bool          `json:"cookie_secure"`

	LockoutThreshold int            `json:"lockout_threshold"`
	LockoutDuration  timex.Duration `json:"lockout_duration"`

	ResetTokenTTL timex.Duration `json:"reset_token_ttl"`
	ResetURLBase  string         `json:"reset_url_base"`

	AllowedOrigins []string `json:"allowed_origins"`

	AdmissionBackend string         `json:"admission_backend"`
	RedisAddr        string         `json:"redis_addr"`
	LoginLimit       int            `json:"login_limit"`
	LoginWindow      timex.Duration `json:"login_window"`
	GeneralLimit     int            `json:"general_limit"`
	GeneralWindow    timex.Duration `json:"general_window"`

	CaptchaSecret    string `json:"captcha_secret"`
	CaptchaThreshold int    `json:"captcha_threshold"`

	CaptchaStaticToken string `json:"captcha_static_token"`

	MailBackend    string `json:"mail_backend"`
	MailFrom       string `json:"mail_from"`
	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `json:"smtp_port"`
	SMTPUser       string `json:"smtp_user"`
	SMTPPassword   string `json:"smtp_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogFile   string `json:"log_file"`

	MetricsEnabled    *bool `json:"metrics_enabled"`
	TrustProxyHeaders *bool `json:"trust_proxy_headers"`
}

// parseJson loads configuration values from the JSON file named with -c or
// -config. Without the flag nothing is loaded. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.PasswordPepper, c.PasswordPepper)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.SessionSecret, c.SessionSecret)
	setInt(&config.LockoutThreshold, c.LockoutThreshold)
	setString(&config.ResetURLBase, c.ResetURLBase)
	setString(&config.AdmissionBackend, c.AdmissionBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setInt(&config.LoginLimit, c.LoginLimit)
	setInt(&config.GeneralLimit, c.GeneralLimit)
	setString(&config.CaptchaSecret, c.CaptchaSecret)
	setInt(&config.CaptchaThreshold, c.CaptchaThreshold)
	setString(&config.CaptchaStaticToken, c.CaptchaStaticToken)
	setString(&config.MailBackend, c.MailBackend)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogFile, c.LogFile)

	setDuration(&config.SessionTTL, c.SessionTTL)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setDuration(&config.ResetTokenTTL, c.ResetTokenTTL)
	setDuration(&config.LoginWindow, c.LoginWindow)
	setDuration(&config.GeneralWindow, c.GeneralWindow)

	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.MetricsEnabled != nil {
		config.MetricsEnabled = *c.MetricsEnabled
	}
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
}
