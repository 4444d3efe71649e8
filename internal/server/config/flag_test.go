package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:8081", "-r", "127.0.0.1:9090", "-d", "db", "-p", "pepper", "-s", "secret",
			"-t", "60", "-u", "https://app/reset", "-o", "https://a,https://b", "-m", "smtp", "-l", "debug",
		}, expected: &Config{
			EndpointAddrHTTP: "127.0.0.1:8081",
			EndpointAddrGRPC: "127.0.0.1:9090",
			DatabaseDSN:      "db",
			PasswordPepper:   "pepper",
			SessionSecret:    "secret",
			SessionTTL:       time.Hour,
			ResetURLBase:     "https://app/reset",
			AllowedOrigins:   []string{"https://a", "https://b"},
			MailBackend:      "smtp",
			LogLevel:         "debug",
		}},
		{name: "foreign flags are ignored", args: []string{"cmd", "-config", "x.json", "-env", ".env", "-s", "k"},
			expected: &Config{SessionSecret: "k"}},
		{name: "bad duration panics", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(tt.expected, config))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
