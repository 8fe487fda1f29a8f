package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STORAGE_EMULATOR_HOST", "OBJECT_STORAGE_MODE", "ARTIFACT_BUCKET_NAME", configPathEnv} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearStorageEnv(t)

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, worker.DefaultConcurrency, cfg.Worker.Concurrency)
	assert.Equal(t, time.Hour, cfg.UploadURLTTL)
	assert.Equal(t, time.Hour, cfg.ReportDownloadURLTTL)
	assert.Equal(t, 30*time.Second, cfg.ML.Timeout)
	assert.Equal(t, gcp.ObjectStorageModeGCS, cfg.Storage.Mode)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearStorageEnv(t)
	path := filepath.Join(t.TempDir(), "mockly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
allowed_origins: ["https://app.mockly.dev"]
worker:
  concurrency: 4
  queue_size: 50
ml:
  base_url: http://ml.internal:8000
  timeout: 45s
livekit:
  url: wss://rooms.mockly.dev
report_download_url_ttl: 2h
storage:
  bucket: from-file
`), 0o600))
	t.Setenv(configPathEnv, path)
	t.Setenv("WORKER_CONCURRENCY", "3")
	t.Setenv("REPORT_DOWNLOAD_URL_TTL", "600")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, 50, cfg.Worker.QueueSize)
	assert.Equal(t, "http://ml.internal:8000", cfg.ML.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.ML.Timeout)
	assert.Equal(t, "wss://rooms.mockly.dev", cfg.LiveKit.URL)
	assert.Equal(t, 10*time.Minute, cfg.ReportDownloadURLTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "from-file", cfg.Storage.Bucket)
}

func TestLoadConfigRejects(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearStorageEnv(t)
		t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig(logger.Nop())
		require.Error(t, err)
	})
	t.Run("default secret in production", func(t *testing.T) {
		clearStorageEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET_KEY", "")
		_, err := LoadConfig(logger.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	})
	t.Run("bad storage mode", func(t *testing.T) {
		clearStorageEnv(t)
		t.Setenv("OBJECT_STORAGE_MODE", "s3")
		_, err := LoadConfig(logger.Nop())
		require.Error(t, err)
	})
}
