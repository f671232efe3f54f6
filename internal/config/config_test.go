package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("FEEDBACK_DB_PASSWORD", "s3cret")

	path := writeFile(t, "feedbackd.yaml", `
listen_addr: ":9090"
db:
  url: postgres://localhost:5432/feedback
  username: app
  password: ${FEEDBACK_DB_PASSWORD}
  pool:
    max_size: 4
    min_idle: 2
    idle_timeout: 1m
    connection_timeout: 3s
api_keys:
  - name: ops
    key: abc
    role: read
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, int32(4), cfg.DB.Pool.MaxSize)
	assert.Equal(t, int32(2), cfg.DB.Pool.MinIdle)
	assert.Equal(t, time.Minute, cfg.DB.Pool.IdleTimeout)
	assert.Equal(t, 3*time.Second, cfg.DB.Pool.ConnectionTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	require.Len(t, cfg.APIKeys, 1)
	assert.Equal(t, "abc", cfg.APIKeys[0].Key)
}

func TestLoadProperties(t *testing.T) {
	path := writeFile(t, "db.properties", `
db.url=jdbc:postgresql://localhost:5432/feedback
db.username=root
db.password=pw
db.pool.max_size=10
db.pool.idle_timeout=5m
cors.allowed_origins=http://localhost:3000, http://localhost:5173
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jdbc:postgresql://localhost:5432/feedback", cfg.DB.URL)
	assert.Equal(t, "root", cfg.DB.Username)
	assert.Equal(t, "pw", cfg.DB.Password)
	assert.Equal(t, int32(10), cfg.DB.Pool.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.DB.Pool.IdleTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "missing url", content: "db:\n  username: app\n"},
		{name: "min idle above max", content: "db:\n  url: postgres://x\n  pool:\n    max_size: 2\n    min_idle: 3\n"},
		{name: "bad encoding", content: "log:\n  encoding: xml\ndb:\n  url: postgres://x\n"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFile(t, "c.yaml", tc.content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestSubstituteEnvVarsDoesNotRescan(t *testing.T) {
	t.Setenv("FEEDBACK_LOOP", "${FEEDBACK_LOOP}")
	t.Setenv("FEEDBACK_USER", "app")

	got := substituteEnvVars("user: ${FEEDBACK_USER}\npassword: ${FEEDBACK_LOOP}\nother: ${FEEDBACK_UNSET}x\ntail: ${open")
	assert.Equal(t, "user: app\npassword: ${FEEDBACK_LOOP}\nother: x\ntail: ${open", got)
}
