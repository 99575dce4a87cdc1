package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"HSM_HOST", "HSM_PORT", "HSM_HEADER", "HSM_TIMEOUT", "HSM_CONNECT_TIMEOUT",
	"HSM_STRICT_FRAMING", "HSM_POOL_SIZE", "HSM_STARTUP_KEYGEN", "LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR", "AUDIT_FILE",
}

// clearEnv unsets every key for the duration of the test. godotenv.Load does
// not override variables that are already set, so each test starts clean.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HSM_HOST", "10.0.0.5")
	t.Setenv("HSM_PORT", "1500")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:1500", cfg.HSM.Addr())
	assert.Equal(t, "HEAD", cfg.HSM.Header)
	assert.Equal(t, 5*time.Second, cfg.HSM.Timeout)
	assert.Equal(t, 3*time.Second, cfg.HSM.ConnectTimeout)
	assert.False(t, cfg.HSM.StrictFraming)
	assert.Equal(t, 1, cfg.HSM.PoolSize)
	assert.False(t, cfg.HSM.StartupKeyGen, "key generation at startup must be opt-in")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTPServ.ServerAddr)
	assert.Empty(t, cfg.Audit.File)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, `HSM_HOST=hsm.local
HSM_PORT=9998
HSM_HEADER=ABCD
HSM_TIMEOUT=250ms
HSM_STRICT_FRAMING=true
HSM_POOL_SIZE=4
HSM_STARTUP_KEYGEN=true
LOG_LEVEL=debug
LOG_FORMAT=json
AUDIT_FILE=/var/log/hsm.cbor
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hsm.local:9998", cfg.HSM.Addr())
	assert.Equal(t, "ABCD", cfg.HSM.Header)
	assert.Equal(t, 250*time.Millisecond, cfg.HSM.Timeout)
	assert.True(t, cfg.HSM.StrictFraming)
	assert.Equal(t, 4, cfg.HSM.PoolSize)
	assert.True(t, cfg.HSM.StartupKeyGen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/log/hsm.cbor", cfg.Audit.File)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("HSM_PORT", "7000")
	path := writeEnv(t, "HSM_HOST=hsm.local\nHSM_PORT=9998\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hsm.local:7000", cfg.HSM.Addr())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Missing Host", map[string]string{"HSM_PORT": "1500"}},
		{"Missing Port", map[string]string{"HSM_HOST": "hsm"}},
		{"Bad Timeout", map[string]string{"HSM_HOST": "hsm", "HSM_PORT": "1500", "HSM_TIMEOUT": "soon"}},
		{"Zero Timeout", map[string]string{"HSM_HOST": "hsm", "HSM_PORT": "1500", "HSM_TIMEOUT": "0s"}},
		{"Empty Pool", map[string]string{"HSM_HOST": "hsm", "HSM_PORT": "1500", "HSM_POOL_SIZE": "0"}},
		{"Short Header", map[string]string{"HSM_HOST": "hsm", "HSM_PORT": "1500", "HSM_HEADER": "AB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "does not exist")
}
