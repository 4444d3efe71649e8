package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv_Variables(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	t.Chdir(t.TempDir())

	t.Setenv("TM_HTTP_ADDR", ":9999")
	t.Setenv("TM_PASSWORD_PEPPER", "pep")
	t.Setenv("TM_BCRYPT_COST", "10")
	t.Setenv("TM_SESSION_TTL", "2h")
	t.Setenv("TM_COOKIE_SECURE", "false")
	t.Setenv("TM_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TM_LOCKOUT_DURATION", "")
	t.Setenv("TM_CAPTCHA_STATIC_TOKEN", "human")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
	assert.Equal(t, "pep", cfg.PasswordPepper)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration, "empty variables are ignored")
	assert.Equal(t, "human", cfg.CaptchaStaticToken)
}

func Test_parseEnv_DotenvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := filepath.Join(dir, "server.env")
	require.NoError(t, os.WriteFile(path, []byte("TM_SESSION_SECRET=from-file\nTM_MAIL_BACKEND=smtp\n"), 0o600))
	t.Setenv("TM_MAIL_BACKEND", "s3")

	os.Args = []string{"testbin", "-env", path}
	t.Cleanup(func() { _ = os.Unsetenv("TM_SESSION_SECRET") })

	cfg := &Config{}
	parseEnv(cfg)

	assert.Equal(t, "from-file", cfg.SessionSecret)
	assert.Equal(t, "s3", cfg.MailBackend, "process environment wins over the file")
}

func Test_parseEnv_MissingExplicitFilePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-env", filepath.Join(t.TempDir(), "missing.env")}

	require.Panics(t, func() { parseEnv(&Config{}) })
}

func Test_parseEnv_MalformedValuePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	t.Chdir(t.TempDir())
	t.Setenv("TM_LOCKOUT_THRESHOLD", "five")

	require.Panics(t, func() { parseEnv(&Config{}) })
}
