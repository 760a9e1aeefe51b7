package service

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/metrics"
	"github.com/joeblew999/plat-moisture/internal/station"
	"github.com/joeblew999/plat-moisture/internal/tiler"
)

// ErrInvalidTile is returned for tile coordinates outside the pyramid.
var ErrInvalidTile = errors.New("invalid tile coordinates")

// TileService serves vector tiles of the station clusters. It keeps one
// index for the current stations and settings, shared by all requests.
type TileService struct {
	stations *StationService
	settings *SettingsService
	maxZoom  int

	mu     sync.Mutex
	data   *station.Collection
	radius float64
	index  *cluster.Index
}

// NewTileService creates a tile service clustering up to maxZoom.
func NewTileService(stations *StationService, settings *SettingsService, maxZoom int) *TileService {
	return &TileService{stations: stations, settings: settings, maxZoom: maxZoom}
}

// Index returns the shared index, rebuilding it when stations or the size
// scale changed. It returns nil when clustering is off.
func (s *TileService) Index() *cluster.Index {
	st := s.settings.Get()
	if !st.Clustering {
		return nil
	}
	data := s.stations.Collection()
	radius := st.SizeScale * math.Sqrt2

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil || s.data != data || s.radius != radius {
		start := time.Now()
		s.index = cluster.Build(data.Points(), cluster.Options{MaxZoom: s.maxZoom, Radius: radius})
		s.data, s.radius = data, radius
		metrics.ObserveBuild(s.index.Len(), s.index.Skipped(), time.Since(start))
	}
	return s.index
}

// Tile returns the gzipped MVT for z/x/y, nil when the tile is empty.
func (s *TileService) Tile(z, x, y int) ([]byte, error) {
	if !tiler.Valid(z, x, y) {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, z, x, y)
	}
	t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	if idx := s.Index(); idx != nil {
		return tiler.ClusterTile(idx, t, tiler.DefaultLayer)
	}
	return tiler.PlainTile(s.stations.Collection().Points(), t, tiler.DefaultLayer)
}
