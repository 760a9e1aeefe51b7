package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-moisture/internal/db"
	"github.com/joeblew999/plat-moisture/internal/metrics"
	"github.com/joeblew999/plat-moisture/internal/station"
)

// StationOptions configures a StationService.
type StationOptions struct {
	Sources     *SourceService
	UpstreamURL string       // data API base URL; empty means load from Sources
	Client      *http.Client // used for UpstreamURL
	DB          *sql.DB      // optional search store
	Bus         *EventBus
	Logger      *slog.Logger
}

type stationState struct {
	collection *station.Collection
	spatial    *station.SpatialIndex
	origin     string
	loadedAt   time.Time
}

// StationService holds the current station collection. Readers always see a
// complete collection; Reload swaps in a new one.
type StationService struct {
	opts  StationOptions
	state atomic.Pointer[stationState]
}

// NewStationService returns a service holding an empty collection.
func NewStationService(opts StationOptions) *StationService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &StationService{opts: opts}
	s.state.Store(newStationState(station.New(nil), "empty"))
	return s
}

func newStationState(c *station.Collection, origin string) *stationState {
	return &stationState{
		collection: c,
		spatial:    station.NewSpatialIndex(c),
		origin:     origin,
		loadedAt:   time.Now(),
	}
}

// Reload fetches stations from the upstream API when configured, otherwise
// from every GeoJSON file in the sources directory.
func (s *StationService) Reload(ctx context.Context) error {
	c, origin, err := s.load(ctx)
	if err != nil {
		metrics.StationReloadsTotal.WithLabelValues("error").Inc()
		s.opts.Logger.Error("station reload failed", "error", err)
		return err
	}
	s.Set(ctx, c, origin)
	metrics.StationReloadsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *StationService) load(ctx context.Context) (*station.Collection, string, error) {
	if s.opts.UpstreamURL != "" {
		c, err := station.Fetch(ctx, s.opts.Client, s.opts.UpstreamURL)
		return c, s.opts.UpstreamURL + station.ListPath, err
	}
	if s.opts.Sources == nil {
		return station.New(nil), "empty", nil
	}

	files, err := s.opts.Sources.List()
	if err != nil {
		return nil, "", fmt.Errorf("listing station sources: %w", err)
	}
	merged := geojson.NewFeatureCollection()
	for _, f := range files {
		path, err := s.opts.Sources.Path(f.Name)
		if err != nil {
			return nil, "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", f.Name, err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, "", fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		merged.Features = append(merged.Features, fc.Features...)
	}
	return station.FromFeatureCollection(merged), s.opts.Sources.SourcesDir(), nil
}

// Set replaces the current collection.
func (s *StationService) Set(ctx context.Context, c *station.Collection, origin string) {
	s.state.Store(newStationState(c, origin))
	if s.opts.DB != nil {
		if err := db.ReplaceStations(ctx, s.opts.DB, c); err != nil {
			s.opts.Logger.Warn("station search store not updated", "error", err)
		}
	}
	s.opts.Logger.Info("stations loaded",
		"count", c.Len(),
		"skipped", c.Skipped(),
		"origin", origin,
	)
	s.opts.Bus.Publish(Event{Resource: ResourceStations, Action: "reloaded"})
}

// Collection returns the current collection.
func (s *StationService) Collection() *station.Collection {
	return s.state.Load().collection
}

// Origin returns where the current collection came from and when.
func (s *StationService) Origin() (string, time.Time) {
	st := s.state.Load()
	return st.origin, st.loadedAt
}

// Get looks up a station by id.
func (s *StationService) Get(id string) (station.Station, bool) {
	return s.Collection().Get(id)
}

// Search finds stations by name or id. DuckDB serves the query when
// available; otherwise the collection is scanned.
func (s *StationService) Search(ctx context.Context, q string, limit int) []station.Station {
	c := s.Collection()
	if s.opts.DB != nil {
		ids, err := db.SearchStations(ctx, s.opts.DB, q, limit)
		if err == nil {
			out := make([]station.Station, 0, len(ids))
			for _, id := range ids {
				if st, ok := c.Get(id); ok {
					out = append(out, st)
				}
			}
			return out
		}
		s.opts.Logger.Warn("station search fell back to scan", "error", err)
	}
	return c.Search(q, limit)
}

// InBounds returns the stations inside b.
func (s *StationService) InBounds(b orb.Bound) []station.Station {
	return s.state.Load().spatial.InBounds(b)
}

// Nearest returns up to k stations nearest to p.
func (s *StationService) Nearest(p orb.Point, k int) []station.Station {
	return s.state.Load().spatial.Nearest(p, k)
}

// Summarize converts stations to their listing view.
func Summarize(stations []station.Station) []StationSummary {
	out := make([]StationSummary, len(stations))
	for i, st := range stations {
		p := st.Position()
		out[i] = StationSummary{ID: st.ID(), Name: st.Name(), Longitude: p.Lon(), Latitude: p.Lat()}
	}
	return out
}
