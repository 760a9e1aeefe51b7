package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/pick"
	"github.com/joeblew999/plat-moisture/internal/station"
)

const nzGeoJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.000, -41.000]}, "properties": {"station_id": "A", "station_name": "Alpha"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.001, -41.001]}, "properties": {"station_id": "B", "station_name": "Bravo"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.002, -41.000]}, "properties": {"station_id": "C", "station_name": "Charlie"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [175.000, -37.000]}, "properties": {"station_id": "D", "station_name": "Delta"}}
]}`

var defaultSettings = Settings{SizeScale: 30, Clustering: true, Pickable: true}

type fixture struct {
	dir      string
	bus      *EventBus
	sources  *SourceService
	settings *SettingsService
	stations *StationService
	sessions *SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sources"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "nz.geojson"), []byte(nzGeoJSON), 0644))

	f := &fixture{dir: dir, bus: NewEventBus()}
	f.sources = NewSourceService(dir)
	f.settings = NewSettingsService(dir, defaultSettings, f.bus)
	f.stations = NewStationService(StationOptions{Sources: f.sources, Bus: f.bus})
	require.NoError(t, f.stations.Reload(context.Background()))
	f.sessions = NewSessionManager(SessionConfig{
		InitialView:   camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 5.3},
		MaxZoom:       16,
		SelectZoom:    10,
		Tolerance:     camera.DefaultTolerance,
		FlyDuration:   camera.DefaultFlyDuration,
		FrameInterval: camera.DefaultFrameInterval,
	}, time.Minute, f.stations, f.settings, f.bus, nil)
	return f
}

func visibleCluster(t *testing.T, s *MapSession) cluster.Feature {
	t.Helper()
	for _, rf := range s.Features() {
		if rf.Feature.IsCluster() {
			return rf.Feature
		}
	}
	t.Fatal("no cluster visible")
	return cluster.Feature{}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())

	bus.Publish(Event{Resource: ResourceSettings, Action: "updated"})
	assert.Equal(t, Event{Resource: ResourceSettings, Action: "updated"}, <-ch)

	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)
	assert.Equal(t, 0, bus.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	var nilBus *EventBus
	assert.NotPanics(t, func() { nilBus.Publish(Event{}) })
}

func TestSettingsPersist(t *testing.T) {
	dir := t.TempDir()
	bus := NewEventBus()
	ch := bus.Subscribe()

	s := NewSettingsService(dir, defaultSettings, bus)
	assert.Equal(t, defaultSettings, s.Get())

	next := Settings{SizeScale: 45, Clustering: false, Pickable: true}
	got, err := s.Update(next)
	require.NoError(t, err)
	assert.Equal(t, next, got)
	assert.Equal(t, ResourceSettings, (<-ch).Resource)

	reloaded := NewSettingsService(dir, defaultSettings, nil)
	assert.Equal(t, next, reloaded.Get())
}

func TestSettingsRejectsBadScale(t *testing.T) {
	s := NewSettingsService(t.TempDir(), defaultSettings, nil)
	_, err := s.Update(Settings{SizeScale: 0})
	require.Error(t, err)
	assert.Equal(t, defaultSettings, s.Get())
}

func TestSourceList(t *testing.T) {
	dir := t.TempDir()
	src := NewSourceService(dir)

	files, err := src.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, os.MkdirAll(src.SourcesDir(), 0755))
	for _, name := range []string{"b.geojson", "a.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(src.SourcesDir(), name), []byte("{}"), 0644))
	}
	files, err = src.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.json", files[0].Name)
	assert.Equal(t, "b.geojson", files[1].Name)
	assert.Equal(t, "2 B", files[0].Size)
}

func TestSourcePath(t *testing.T) {
	src := NewSourceService("/data")
	p, err := src.Path("nz.geojson")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "sources", "nz.geojson"), p)

	for _, bad := range []string{"", "../etc/passwd", "a/b.json", `a\b.json`} {
		_, err := src.Path(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}

func TestStationReloadFromSources(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 4, f.stations.Collection().Len())

	origin, loadedAt := f.stations.Origin()
	assert.Equal(t, f.sources.SourcesDir(), origin)
	assert.False(t, loadedAt.IsZero())

	st, ok := f.stations.Get("D")
	require.True(t, ok)
	assert.Equal(t, "Delta", st.Name())

	found := f.stations.Search(context.Background(), "al", 10)
	require.Len(t, found, 1)
	assert.Equal(t, "A", found[0].ID())

	inNZ := f.stations.InBounds(orb.Bound{Min: orb.Point{171, -42}, Max: orb.Point{173, -40}})
	assert.Len(t, inNZ, 3)

	nearest := f.stations.Nearest(orb.Point{175.1, -37.1}, 1)
	require.Len(t, nearest, 1)
	assert.Equal(t, "D", nearest[0].ID())

	assert.Equal(t, []StationSummary{{ID: "D", Name: "Delta", Longitude: 175, Latitude: -37}}, Summarize(nearest))
}

func TestStationReloadFromUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != station.ListPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(nzGeoJSON))
	}))
	defer srv.Close()

	bus := NewEventBus()
	ch := bus.Subscribe()
	s := NewStationService(StationOptions{UpstreamURL: srv.URL, Client: srv.Client(), Bus: bus})
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 4, s.Collection().Len())
	assert.Equal(t, Event{Resource: ResourceStations, Action: "reloaded"}, <-ch)
}

func TestStationReloadFailureKeepsCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewStationService(StationOptions{UpstreamURL: srv.URL, Client: srv.Client()})
	before := s.Collection()
	require.Error(t, s.Reload(context.Background()))
	assert.Same(t, before, s.Collection())
}

func TestSessionMountsAtInitialView(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()
	assert.Equal(t, 1, f.sessions.Len())
	assert.Equal(t, 5, s.EffectiveZoom())

	features := s.Features()
	require.Len(t, features, 2)
	counts := 0
	for _, rf := range features {
		counts += rf.Feature.Count
	}
	assert.Equal(t, 4, counts)

	got, ok := f.sessions.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestSessionClickClusterFlies(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()
	c := visibleCluster(t, s)

	res, err := s.Pick(pick.ModeClick, PickRef{Cluster: c.Cluster})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "cluster", res.Kind())

	cp := res.Resolution.(pick.ClusterPick)
	assert.Len(t, cp.Leaves, 3)
	assert.Greater(t, cp.ExpansionZoom, 5)
	assert.Equal(t, float64(min(cp.ExpansionZoom, 16)), s.Viewport().Zoom)
	assert.Equal(t, c.Position.Lon(), s.Viewport().Longitude)

	_, selected := s.Selected()
	assert.False(t, selected, "cluster click does not select a station")

	assert.Equal(t, layer.TransitionRequery, s.Refresh())
}

func TestSessionClickStationSelects(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()

	res, err := s.Pick(pick.ModeClick, PickRef{StationID: "D"})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "point", res.Kind())

	st, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "D", st.ID())
	assert.Equal(t, 10.0, s.Viewport().Zoom)

	res, err = s.Pick(pick.ModeClick, PickRef{})
	require.NoError(t, err)
	assert.False(t, res.Handled)
	_, ok = s.Selected()
	assert.False(t, ok, "clicking empty map clears the selection")
}

func TestSessionHover(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()

	res, err := s.Pick(pick.ModeHover, PickRef{StationID: "D", Pixel: pick.Pixel{X: 10, Y: 20}})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	require.NotNil(t, s.Hover())
	assert.Equal(t, HoverInfo{StationID: "D", Name: "Delta", Pixel: pick.Pixel{X: 10, Y: 20}}, *s.Hover())

	res, err = s.Pick(pick.ModeHover, PickRef{Cluster: visibleCluster(t, s).Cluster})
	require.NoError(t, err)
	assert.False(t, res.Handled, "hovering a cluster shows nothing")

	_, err = s.Pick(pick.ModeHover, PickRef{})
	require.NoError(t, err)
	assert.Nil(t, s.Hover())
}

func TestSessionStaleHandle(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()
	old := visibleCluster(t, s).Cluster

	next := defaultSettings
	next.SizeScale = 40
	_, err := f.settings.Update(next)
	require.NoError(t, err)

	_, err = s.Pick(pick.ModeClick, PickRef{Cluster: old})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cluster.ErrStaleHandle))

	_, err = s.Leaves(old, 25, 0)
	assert.True(t, errors.Is(err, cluster.ErrStaleHandle))
}

func TestSessionNotPickable(t *testing.T) {
	f := newFixture(t)
	next := defaultSettings
	next.Pickable = false
	_, err := f.settings.Update(next)
	require.NoError(t, err)

	s := f.sessions.Create()
	res, err := s.Pick(pick.ModeClick, PickRef{StationID: "D"})
	require.NoError(t, err)
	assert.Equal(t, "none", res.Kind())
	assert.False(t, res.Handled)
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestSessionSelect(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()

	st, err := s.Select("A")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", st.Name())
	assert.Equal(t, camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 10}, withoutTransition(s.Viewport()))

	_, err = s.Select("nope")
	assert.True(t, errors.Is(err, ErrStationNotFound))

	s.Deselect()
	_, ok := s.Selected()
	assert.False(t, ok)
}

func withoutTransition(vp camera.Viewport) camera.Viewport {
	vp.Transition = nil
	return vp
}

func TestSessionViewportThrottle(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()
	now := time.Now()

	assert.False(t, s.OfferViewport(camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 5.3}, now),
		"same viewport is coalesced")

	assert.True(t, s.OfferViewport(camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 6.2}, now.Add(20*time.Millisecond)))
	assert.Equal(t, layer.TransitionRequery, s.Refresh())
	assert.Equal(t, 6, s.EffectiveZoom())

	assert.False(t, s.OfferViewport(camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 7.5}, now.Add(25*time.Millisecond)),
		"second sample in the same frame is deferred")
	assert.Equal(t, 6.2, s.Viewport().Zoom)

	assert.Equal(t, layer.TransitionRequery, s.Tick(now.Add(40*time.Millisecond)))
	assert.Equal(t, 7.5, s.Viewport().Zoom)
	assert.Equal(t, 7, s.EffectiveZoom())
}

func TestSessionFeaturesApplyDeferredViewport(t *testing.T) {
	f := newFixture(t)
	s := f.sessions.Create()
	now := time.Now()

	require.True(t, s.OfferViewport(camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 6.2}, now))
	require.False(t, s.OfferViewport(camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 9.4}, now.Add(5*time.Millisecond)))

	s.Features()
	assert.Equal(t, 9.4, s.Viewport().Zoom)
	assert.Equal(t, 9, s.EffectiveZoom())
	assert.Equal(t, layer.TransitionNone, s.Refresh())
}

func TestSessionSweep(t *testing.T) {
	f := newFixture(t)
	ch := f.bus.Subscribe()
	s := f.sessions.Create()
	assert.Equal(t, ResourceSessions, (<-ch).Resource)

	assert.Empty(t, f.sessions.Sweep(time.Now()))
	expired := f.sessions.Sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, []string{s.ID}, expired)
	assert.Equal(t, 0, f.sessions.Len())

	_, ok := f.sessions.Get(s.ID)
	assert.False(t, ok)
	assert.False(t, f.sessions.Close(s.ID))
}

func TestTileService(t *testing.T) {
	f := newFixture(t)
	ts := NewTileService(f.stations, f.settings, 16)

	idx := ts.Index()
	require.NotNil(t, idx)
	assert.Same(t, idx, ts.Index(), "index is reused while inputs are unchanged")

	nz := maptile.At(orb.Point{172, -41}, 3)
	data, err := ts.Tile(3, int(nz.X), int(nz.Y))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = ts.Tile(3, 8, 0)
	assert.True(t, errors.Is(err, ErrInvalidTile))

	next := defaultSettings
	next.Clustering = false
	_, err = f.settings.Update(next)
	require.NoError(t, err)
	assert.Nil(t, ts.Index())

	data, err = ts.Tile(3, int(nz.X), int(nz.Y))
	require.NoError(t, err)
	assert.NotEmpty(t, data, "plain mode tiles every station")
}
