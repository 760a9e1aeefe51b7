// Package config loads the map configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-moisture/internal/camera"
)

// View is the initial camera position.
type View struct {
	Longitude float64 `yaml:"longitude" json:"longitude"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Zoom      float64 `yaml:"zoom" json:"zoom"`
	Bearing   float64 `yaml:"bearing" json:"bearing"`
	Pitch     float64 `yaml:"pitch" json:"pitch"`
}

// Viewport converts v to a camera viewport.
func (v View) Viewport() camera.Viewport {
	return camera.Viewport{
		Longitude: v.Longitude,
		Latitude:  v.Latitude,
		Zoom:      v.Zoom,
		Bearing:   v.Bearing,
		Pitch:     v.Pitch,
	}
}

// Layer holds the station layer defaults.
type Layer struct {
	SizeScale   float64 `yaml:"size_scale"`
	MaxZoom     int     `yaml:"max_zoom"`
	Clustering  bool    `yaml:"clustering"`
	IconAtlas   string  `yaml:"icon_atlas"`
	IconMapping string  `yaml:"icon_mapping"`
	MapStyle    string  `yaml:"map_style"`
}

// Camera holds fly-to and coalescing settings.
type Camera struct {
	Tolerance       camera.Tolerance `yaml:"tolerance"`
	FlyDuration     time.Duration    `yaml:"fly_duration"`
	Easing          string           `yaml:"easing"`
	SelectZoom      float64          `yaml:"select_zoom"`
	FramesPerSecond int              `yaml:"frames_per_second"`
}

// FrameInterval is the minimum time between two visible-set refreshes.
func (c Camera) FrameInterval() time.Duration {
	if c.FramesPerSecond <= 0 {
		return camera.DefaultFrameInterval
	}
	return time.Second / time.Duration(c.FramesPerSecond)
}

// Upstream is the station data API.
type Upstream struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Sessions controls map session lifetime.
type Sessions struct {
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// Config is the map configuration.
type Config struct {
	InitialView View     `yaml:"initial_view"`
	Layer       Layer    `yaml:"layer"`
	Camera      Camera   `yaml:"camera"`
	Upstream    Upstream `yaml:"upstream"`
	Sessions    Sessions `yaml:"sessions"`
}

// Default returns the New Zealand dashboard defaults.
func Default() Config {
	return Config{
		InitialView: View{Longitude: 172, Latitude: -41, Zoom: 5.3},
		Layer: Layer{
			SizeScale:  30,
			MaxZoom:    16,
			Clustering: true,
			IconAtlas:  "/static/icons/location-icon-atlas.png",
			MapStyle:   "https://basemaps.cartocdn.com/gl/positron-gl-style/style.json",
		},
		Camera: Camera{
			Tolerance:       camera.DefaultTolerance,
			FlyDuration:     camera.DefaultFlyDuration,
			Easing:          camera.EaseCubicInOut,
			SelectZoom:      10,
			FramesPerSecond: 60,
		},
		Upstream: Upstream{Timeout: 10 * time.Second},
		Sessions: Sessions{IdleTTL: 30 * time.Minute},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the map cannot work with.
func (c Config) Validate() error {
	if c.Layer.SizeScale <= 0 {
		return fmt.Errorf("layer.size_scale must be positive, got %v", c.Layer.SizeScale)
	}
	if c.Layer.MaxZoom < 1 || c.Layer.MaxZoom > 24 {
		return fmt.Errorf("layer.max_zoom must be in [1, 24], got %d", c.Layer.MaxZoom)
	}
	if c.InitialView.Latitude < -90 || c.InitialView.Latitude > 90 {
		return fmt.Errorf("initial_view.latitude out of range: %v", c.InitialView.Latitude)
	}
	if c.Camera.FlyDuration < 0 {
		return fmt.Errorf("camera.fly_duration must not be negative")
	}
	return nil
}
