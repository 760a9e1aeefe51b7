package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-moisture/internal/station"
)

const fixture = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.63, -43.53]},
   "properties": {"station_id": "SM-001", "station_name": "Lincoln", "data_depth": "10cm"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [174.77, -41.29]},
   "properties": {"station_id": "SM-002", "station_name": "Wellington Airport"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [175.28, -37.79]},
   "properties": {"station_id": "SM-003", "station_name": "Ruakura"}}
]}`

func TestStationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := Open("")
	require.NoError(t, err)
	defer conn.Close()

	c, err := station.DecodeBytes([]byte(fixture))
	require.NoError(t, err)
	require.NoError(t, ReplaceStations(ctx, conn, c))

	n, err := CountStations(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids, err := SearchStations(ctx, conn, "ruak", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"SM-003"}, ids)

	ids, err = SearchStations(ctx, conn, "sm-00", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"SM-001", "SM-003"}, ids, "ordered by name")

	// Replacing again does not duplicate rows.
	require.NoError(t, ReplaceStations(ctx, conn, c))
	n, err = CountStations(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSearchStationsWildcardsAreLiteral(t *testing.T) {
	ctx := context.Background()
	conn, err := Open("")
	require.NoError(t, err)
	defer conn.Close()

	c, err := station.DecodeBytes([]byte(`{"type": "FeatureCollection", "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [172.63, -43.53]},
   "properties": {"station_id": "SM-001", "station_name": "North_Field"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [174.77, -41.29]},
   "properties": {"station_id": "SM-002", "station_name": "Top 5% Paddock"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [175.28, -37.79]},
   "properties": {"station_id": "SM-003", "station_name": "Back\\Block"}}
]}`))
	require.NoError(t, err)
	require.NoError(t, ReplaceStations(ctx, conn, c))

	tests := []struct {
		q    string
		want []string
	}{
		{q: "_", want: []string{"SM-001"}},
		{q: "p_5", want: nil},
		{q: "%", want: []string{"SM-002"}},
		{q: `\`, want: []string{"SM-003"}},
		{q: "sm-00", want: []string{"SM-003", "SM-001", "SM-002"}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			ids, err := SearchStations(ctx, conn, tt.q, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}
