package config

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/virtuoso/pkg/adapters/file"
	"github.com/aretw0/virtuoso/pkg/adapters/memory"
	redisstore "github.com/aretw0/virtuoso/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, ".virtuoso", cfg.DataDir)
	assert.Equal(t, 10*time.Second, cfg.Play.ConnectTimeout)
	assert.Nil(t, cfg.SendLimiter())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: memory
data_dir: /tmp/data
http:
  addr: ":9090"
log:
  level: debug
  format: json
play:
  connect_timeout: 3s
  send_rate: 20
`), 0644))

	t.Setenv("VIRTUOSO_HTTP_ADDR", ":7070")
	t.Setenv("VIRTUOSO_CUE_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "/tmp/data", cfg.DataDir)
	assert.Equal(t, ":7070", cfg.HTTP.Addr, "environment wins over the file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.Play.ConnectTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Play.CueTimeout)
	require.NotNil(t, cfg.SendLimiter())
	assert.InDelta(t, 20, float64(cfg.SendLimiter().Limit()), 0.001)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VIRTUOSO_STORE=memory\nVIRTUOSO_REDIS_DB=3\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("VIRTUOSO_STORE")
		os.Unsetenv("VIRTUOSO_REDIS_DB")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"redis db", "VIRTUOSO_REDIS_DB", "two"},
		{"send rate", "VIRTUOSO_SEND_RATE", "fast"},
		{"connect timeout", "VIRTUOSO_CONNECT_TIMEOUT", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) (string, bool) {
				if k == tt.key {
					return tt.value, true
				}
				return "", false
			})
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"store", func(c *Config) { c.Store = "s3" }},
		{"level", func(c *Config) { c.Log.Level = "loud" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
		{"connect timeout", func(c *Config) { c.Play.ConnectTimeout = 0 }},
		{"cue timeout", func(c *Config) { c.Play.CueTimeout = -time.Second }},
		{"send rate", func(c *Config) { c.Play.SendRate = -1 }},
		{"encryption key encoding", func(c *Config) { c.EncryptionKey = "not base64!" }},
		{"encryption key size", func(c *Config) { c.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short")) }},
	}
	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBackends(t *testing.T) {
	cfg := Default()
	cfg.DataDir = t.TempDir()

	b, err := cfg.Backends()("compositions")
	require.NoError(t, err)
	fb, ok := b.(*file.Backend)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.DataDir, "compositions.json"), fb.Path)

	cfg.Store = StoreMemory
	b, err = cfg.Backends()("compositions")
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)
}

func TestBackends_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Default()
	cfg.Store = StoreRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Prefix = "test:"
	defer cfg.Close()

	b, err := cfg.Backends()("performances")
	require.NoError(t, err)
	require.IsType(t, &redisstore.Store{}, b)

	require.NoError(t, b.Put(context.Background(), "perf_1", json.RawMessage(`{"id":"perf_1"}`)))
	assert.True(t, mr.Exists("test:performances:doc:perf_1"))

	reg := cfg.Registry(nil)
	require.NotNil(t, reg)
}

func TestBackends_Encrypted(t *testing.T) {
	cfg := Default()
	cfg.DataDir = t.TempDir()
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	require.NoError(t, cfg.Validate())

	b, err := cfg.Backends()("performances")
	require.NoError(t, err)
	require.NoError(t, b.Put(context.Background(), "perf_1", json.RawMessage(`{"id":"perf_1","receivedXml":"secret"}`)))

	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, "performances.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	got, err := b.Get(context.Background(), "perf_1")
	require.NoError(t, err)
	assert.Contains(t, string(got), "secret")
}
