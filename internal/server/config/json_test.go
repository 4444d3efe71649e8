package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http": "www.example:8081",
		"endpoint_addr_grpc": "www.example:9000",
		"database_dsn":       "postgres://db",
		"password_pepper":    "pepper",
		"session_secret":     "my_secret_key",
		"session_ttl":        "12h",
		"cookie_secure":      false,
		"lockout_duration":   "15m",
		"reset_token_ttl":    600000000000,
		"allowed_origins":    []string{"https://app.example"},
		"mail_backend":       "s3",
		"s3_bucket":          "outbox",
		"s3_base_endpoint":   "http://minio:9000",
		"metrics_enabled":    false,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:8081", cfg.EndpointAddrHTTP)
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "pepper", cfg.PasswordPepper)
		assert.Equal(t, "my_secret_key", cfg.SessionSecret)
		assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
		assert.False(t, cfg.CookieSecure)
		assert.Equal(t, 15*time.Minute, cfg.LockoutDuration)
		assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
		assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
		assert.Equal(t, "s3", cfg.MailBackend)
		assert.Equal(t, "outbox", cfg.S3Bucket)
		assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)
		assert.False(t, cfg.MetricsEnabled)

		assert.Equal(t, 5, cfg.LockoutThreshold, "absent fields keep earlier values")
		assert.Equal(t, 12, cfg.BcryptCost)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrGRPC: "defaults:1234",
			DatabaseDSN:      "vault.db",
			SessionSecret:    "key",
			SessionTTL:       2 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SessionSecret)
		assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
