package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "clip", cfg.Encoder)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 512, cfg.EmbedDim)
	assert.Equal(t, 0.6, cfg.SceneThreshold)
	assert.Equal(t, 10, cfg.MinSceneGap)
	assert.Equal(t, 2.0, cfg.MinSegmentDuration)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, "video_frames_v1", cfg.VisualCollection)
	assert.Equal(t, "audio_segments_v1", cfg.AudioCollection)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigJSONAndEnvOverride(t *testing.T) {
	chdirTemp(t)

	require.NoError(t, os.WriteFile("config.json", []byte(`{"store":"pgvector","top_n":7}`), 0644))
	t.Setenv("STORE", "milvus")
	t.Setenv("SCENE_THRESHOLD", "0.4")

	cfg, err := Load("")
	require.NoError(t, err)

	// Environment wins over config.json.
	assert.Equal(t, "milvus", cfg.Store)
	assert.Equal(t, 7, cfg.TopN)
	assert.Equal(t, 0.4, cfg.SceneThreshold)
}

func TestLoadEnvFile(t *testing.T) {
	chdirTemp(t)

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("API_KEY=test-key\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("API_KEY") })

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.True(t, cfg.HasValidAPI())
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Store = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg.Store = "memory"
	cfg.Encoder = "bert"
	assert.Error(t, cfg.Validate())
}

func TestHasValidAPI(t *testing.T) {
	cfg := &Config{BaseURL: "https://example.com/v1"}
	assert.False(t, cfg.HasValidAPI())
	cfg.APIKey = "k"
	assert.True(t, cfg.HasValidAPI())
}
