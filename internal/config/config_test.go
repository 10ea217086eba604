package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse_Defaults(t *testing.T) {
	opts, err := Parse([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	require.NoError(t, err)

	assert.Equal(t, "localhost:8000", opts.Port)
	assert.Equal(t, 24*time.Hour, opts.TokenTTL.Duration)
	assert.Equal(t, 30000, opts.HashIterations)
	assert.Equal(t, []string{"http://localhost:5173"}, opts.CORSOrigins)
	assert.False(t, opts.StorageEnabled())
	assert.False(t, opts.TLSEnabled())
}

func TestParse_Flags(t *testing.T) {
	opts, err := Parse([]string{"-a", ":9090", "-d", "postgres://x", "-l", "debug", "-config", ""})
	require.NoError(t, err)

	assert.Equal(t, ":9090", opts.Port)
	assert.Equal(t, "postgres://x", opts.DatabaseDSN)
	assert.Equal(t, "debug", opts.LogLevel)
}

func TestParse_UnknownFlag(t *testing.T) {
	_, err := Parse([]string{"-zzz"})
	assert.Error(t, err)
}

func TestParse_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"server_address": ":7000",
		"database_dsn": "postgres://file",
		"secret_key": "from-file",
		"token_ttl": "2h",
		"rate_limit_window": 30000000000,
		"s3_bucket": "leaves",
		"cors_origins": ["https://app.example.com"]
	}`)

	t.Setenv("SERVER_ADDRESS", ":7001")
	t.Setenv("TOKEN_TTL", "0s")
	t.Setenv("HASH_ITERATIONS", "50000")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com ,")

	opts, err := Parse([]string{"-a", ":6000", "-c", path})
	require.NoError(t, err)

	assert.Equal(t, ":7001", opts.Port, "env wins over file and flags")
	assert.Equal(t, "postgres://file", opts.DatabaseDSN)
	assert.Equal(t, "from-file", opts.SecretKey)
	assert.Equal(t, time.Duration(0), opts.TokenTTL.Duration)
	assert.Equal(t, 30*time.Second, opts.RateLimitWindow.Duration)
	assert.Equal(t, 50000, opts.HashIterations)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, opts.CORSOrigins)
	assert.True(t, opts.StorageEnabled())
}

func TestParse_ConfigFromEnv(t *testing.T) {
	path := writeConfig(t, `{"gemini_model": "gemini-test"}`)
	t.Setenv("CONFIG", path)

	opts, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", opts.GeminiModel)
}

func TestParse_Errors(t *testing.T) {
	t.Run("bad json", func(t *testing.T) {
		_, err := Parse([]string{"-c", writeConfig(t, `{"server_address":`)})
		assert.ErrorContains(t, err, "parsing config file")
	})
	t.Run("bad duration in file", func(t *testing.T) {
		_, err := Parse([]string{"-c", writeConfig(t, `{"token_ttl": "forever"}`)})
		assert.Error(t, err)
	})
	t.Run("bad int env", func(t *testing.T) {
		t.Setenv("REDIS_DB", "one")
		_, err := Parse([]string{"-c", ""})
		assert.ErrorContains(t, err, "REDIS_DB")
	})
	t.Run("bad duration env", func(t *testing.T) {
		t.Setenv("PURGE_RETENTION", "30d")
		_, err := Parse([]string{"-c", ""})
		assert.ErrorContains(t, err, "PURGE_RETENTION")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Options {
		o := Default()
		o.DatabaseDSN = "postgres://localhost/agri"
		o.SecretKey = "0123456789abcdef0123456789abcdef"
		return o
	}

	require.NoError(t, valid().Validate())

	o := valid()
	o.SecretKey = "short"
	assert.ErrorContains(t, o.Validate(), "secret key")

	o = valid()
	o.DatabaseDSN = ""
	assert.ErrorContains(t, o.Validate(), "dsn")

	o = valid()
	o.TLSCert = "server.crt"
	assert.ErrorContains(t, o.Validate(), "tls")
	o.TLSKey = "server.key"
	assert.NoError(t, o.Validate())
	assert.True(t, o.TLSEnabled())
}

func TestValidate_Schedules(t *testing.T) {
	base := func() *Options {
		o := Default()
		o.DatabaseDSN = "postgres://localhost/agri"
		o.SecretKey = "0123456789abcdef0123456789abcdef"
		return o
	}

	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr string
	}{
		{"zero purge interval", func(o *Options) { o.PurgeInterval.Duration = 0 }, "purge interval"},
		{"negative purge interval", func(o *Options) { o.PurgeInterval.Duration = -time.Minute }, "purge interval"},
		{"negative retention", func(o *Options) { o.PurgeRetention.Duration = -time.Hour }, "purge retention"},
		{"zero retention purges at once", func(o *Options) { o.PurgeRetention.Duration = 0 }, ""},
		{"negative rate limit", func(o *Options) { o.RateLimit = -1 }, "rate limit must not be negative"},
		{"zero window with limit", func(o *Options) { o.RateLimitWindow.Duration = 0 }, "rate limit window"},
		{"zero window with limiting off", func(o *Options) {
			o.RateLimit = 0
			o.RateLimitWindow.Duration = 0
		}, ""},
		{"bad trusted proxy", func(o *Options) { o.TrustedProxies = []string{"proxy.local"} }, "trusted proxy"},
		{"good trusted proxies", func(o *Options) { o.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base()
			tt.mutate(o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParse_ZeroPurgeIntervalFailsValidation(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://localhost/agri")
	t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("PURGE_INTERVAL", "0s")

	opts, err := Parse([]string{"-c", ""})
	require.NoError(t, err)
	assert.ErrorContains(t, opts.Validate(), "purge interval must be positive")

	t.Setenv("PURGE_INTERVAL", "")
	fromFile, err := Parse([]string{"-c", writeConfig(t, `{"purge_interval": 0}`)})
	require.NoError(t, err)
	assert.ErrorContains(t, fromFile.Validate(), "purge interval must be positive")
}

func TestParse_TrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1,")

	opts, err := Parse([]string{"-c", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, opts.TrustedProxies)
}
