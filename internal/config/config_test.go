package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	vp := cfg.InitialView.Viewport()
	assert.Equal(t, 172.0, vp.Longitude)
	assert.Equal(t, -41.0, vp.Latitude)
	assert.Equal(t, 5.3, vp.Zoom)
	assert.Equal(t, 30.0, cfg.Layer.SizeScale)
	assert.Equal(t, 16, cfg.Layer.MaxZoom)
	assert.Equal(t, time.Second/60, cfg.Camera.FrameInterval())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
initial_view:
  longitude: 174.8
  latitude: -41.3
  zoom: 8
layer:
  size_scale: 45
camera:
  fly_duration: 800ms
  frames_per_second: 30
upstream:
  base_url: http://data.internal:8080
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 174.8, cfg.InitialView.Longitude)
	assert.Equal(t, 45.0, cfg.Layer.SizeScale)
	assert.Equal(t, 16, cfg.Layer.MaxZoom, "unset fields keep defaults")
	assert.Equal(t, 800*time.Millisecond, cfg.Camera.FlyDuration)
	assert.Equal(t, time.Second/30, cfg.Camera.FrameInterval())
	assert.Equal(t, "http://data.internal:8080", cfg.Upstream.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":   "layer: [",
		"size scale": "layer:\n  size_scale: -1\n",
		"max zoom":   "layer:\n  max_zoom: 30\n",
		"latitude":   "initial_view:\n  latitude: 100\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "map.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
