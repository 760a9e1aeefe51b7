package mapclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-moisture/internal/api"
	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/service"
	"github.com/joeblew999/plat-moisture/pkg/mapclient"
)

const stationsJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.000, -41.000]}, "properties": {"station_id": "A", "station_name": "Alpha"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.001, -41.001]}, "properties": {"station_id": "B", "station_name": "Bravo"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.002, -41.000]}, "properties": {"station_id": "C", "station_name": "Charlie"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [175.000, -37.000]}, "properties": {"station_id": "D", "station_name": "Delta"}}
]}`

func newClient(t *testing.T) *mapclient.Client {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sources"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "nz.geojson"), []byte(stationsJSON), 0644))

	bus := service.NewEventBus()
	sources := service.NewSourceService(dir)
	settings := service.NewSettingsService(dir, service.Settings{SizeScale: 30, Clustering: true, Pickable: true}, bus)
	stations := service.NewStationService(service.StationOptions{Sources: sources, Bus: bus})
	require.NoError(t, stations.Reload(context.Background()))

	mux := http.NewServeMux()
	config := huma.DefaultConfig("plat-moisture test", api.Version)
	config.Transformers = append(config.Transformers, humastar.LinkTransformer(api.Links()))
	humaAPI := humago.New(mux, config)
	api.RegisterRoutes(humaAPI, &api.Services{
		Stations: stations,
		Settings: settings,
		Sources:  sources,
		Tiles:    service.NewTileService(stations, settings, 16),
		Sessions: service.NewSessionManager(service.SessionConfig{
			InitialView:   camera.Viewport{Longitude: 172, Latitude: -41, Zoom: 5.3},
			MaxZoom:       16,
			SelectZoom:    10,
			Tolerance:     camera.DefaultTolerance,
			FlyDuration:   camera.DefaultFlyDuration,
			FrameInterval: camera.DefaultFrameInterval,
		}, time.Hour, stations, settings, bus, nil),
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return mapclient.New(ts.URL).WithHTTPClient(ts.Client())
}

func TestClientSessionFlow(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	resp, s, err := c.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Values("Link"))

	_, fb, err := c.GetFeatures(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, fb.Features, 2)

	var handle string
	for _, f := range fb.Features {
		if f.Cluster != "" {
			handle = f.Cluster
		}
	}
	require.NotEmpty(t, handle)

	_, page, err := c.Leaves(ctx, s.ID, handle, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	_, res, err := c.Pick(ctx, s.ID, mapclient.PickRequest{Mode: "click", Cluster: handle})
	require.NoError(t, err)
	assert.Equal(t, "cluster", res.Kind)

	_, sel, err := c.Select(ctx, s.ID, "D")
	require.NoError(t, err)
	require.NotNil(t, sel.Selected)
	assert.Equal(t, "D", sel.Selected.ID)

	_, _, err = c.DeleteSession(ctx, s.ID)
	require.NoError(t, err)
}

func TestClientErrors(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, _, err := c.GetStation(ctx, "nope")
	var em *huma.ErrorModel
	require.True(t, errors.As(err, &em))
	assert.Equal(t, http.StatusNotFound, em.Status)

	_, _, err = c.GetFeatures(ctx, "missing")
	require.True(t, errors.As(err, &em))
	assert.Equal(t, http.StatusNotFound, em.Status)
}

func TestClientStations(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, found, err := c.SearchStations(ctx, "brav", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "B", found[0].ID)

	_, reload, err := c.ReloadStations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, reload.Stations)

	_, st, err := c.UpdateSettings(ctx, service.Settings{SizeScale: 10, Clustering: false, Pickable: true})
	require.NoError(t, err)
	assert.False(t, st.Clustering)
}
