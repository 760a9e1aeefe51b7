package pick

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-moisture/internal/cluster"
)

// stubHandle names a cluster for stubSource, which ignores it.
var stubHandle, _ = cluster.ParseHandle("1-7")

// stubSource answers for any handle with fixed values.
type stubSource struct {
	expansion int
	leaves    []cluster.Point
	err       error
	calls     []int
}

func (s *stubSource) ExpansionZoom(cluster.Handle) (int, error) {
	return s.expansion, s.err
}

func (s *stubSource) Leaves(_ cluster.Handle, limit, _ int) ([]cluster.Point, error) {
	s.calls = append(s.calls, limit)
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.leaves) {
		return s.leaves[:limit], nil
	}
	return s.leaves, nil
}

func threePoints() []cluster.Point {
	return []cluster.Point{
		{ID: "a", Position: orb.Point{172.0, -41.0}},
		{ID: "b", Position: orb.Point{172.1, -41.0}},
		{ID: "c", Position: orb.Point{172.0, -41.1}},
	}
}

type recorder struct {
	clicked  []cluster.Point
	hovered  []*cluster.Point
	viewport [][3]float64
}

func (r *recorder) dispatcher(maxZoom int) Dispatcher {
	return Dispatcher{
		MaxZoom:      maxZoom,
		OnPointClick: func(p cluster.Point) { r.clicked = append(r.clicked, p) },
		OnPointHover: func(p *cluster.Point, _ Pixel) { r.hovered = append(r.hovered, p) },
		OnViewportChangeRequest: func(lon, lat, zoom float64) {
			r.viewport = append(r.viewport, [3]float64{lon, lat, zoom})
		},
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("click")
	require.NoError(t, err)
	assert.Equal(t, ModeClick, m)
	m, err = ParseMode("hover")
	require.NoError(t, err)
	assert.Equal(t, ModeHover, m)
	_, err = ParseMode("drag")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	src := &stubSource{expansion: 8, leaves: threePoints()}
	pt := threePoints()[0]

	tests := []struct {
		name string
		raw  RawPick
		want Resolution
	}{
		{
			name: "nothing",
			raw:  RawPick{Pixel: Pixel{X: 3, Y: 4}},
			want: NoPick{Pixel: Pixel{X: 3, Y: 4}},
		},
		{
			name: "point",
			raw:  RawPick{Feature: &cluster.Feature{Position: pt.Position, Count: 1, Point: &pt}},
			want: PointPick{Point: pt},
		},
		{
			name: "neither point nor cluster",
			raw:  RawPick{Feature: &cluster.Feature{Count: 3}, Pixel: Pixel{X: 1}},
			want: NoPick{Pixel: Pixel{X: 1}},
		},
		{
			name: "cluster",
			raw:  RawPick{Feature: &cluster.Feature{Position: orb.Point{172.03, -41.03}, Count: 3, Cluster: stubHandle}},
			want: ClusterPick{Handle: stubHandle, Center: orb.Point{172.03, -41.03}, Count: 3, ExpansionZoom: 8, Leaves: threePoints()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.raw, src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, []int{MaxLeaves}, src.calls, "leaves are only listed for clusters")
}

func TestResolveLeavesBounded(t *testing.T) {
	var many []cluster.Point
	for i := 0; i < 40; i++ {
		many = append(many, cluster.Point{ID: fmt.Sprint(i)})
	}
	got, err := Resolve(RawPick{Feature: &cluster.Feature{Count: 40, Cluster: stubHandle}}, &stubSource{expansion: 3, leaves: many})
	require.NoError(t, err)
	assert.Len(t, got.(ClusterPick).Leaves, MaxLeaves)
}

func TestResolveStaleHandle(t *testing.T) {
	points := threePoints()
	old := cluster.Build(points, cluster.Options{})
	current := cluster.Build(points, cluster.Options{})

	var f cluster.Feature
	for _, v := range old.QueryVisible(orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}, 3) {
		if v.IsCluster() {
			f = v
		}
	}
	require.True(t, f.IsCluster() && !f.Cluster.IsZero())

	_, err := Resolve(RawPick{Feature: &f}, current)
	assert.ErrorIs(t, err, cluster.ErrStaleHandle)
}

func TestClickClusterFliesToExpansionZoom(t *testing.T) {
	src := &stubSource{expansion: 8, leaves: threePoints()}
	res, err := Resolve(RawPick{Feature: &cluster.Feature{Position: orb.Point{172.03, -41.03}, Count: 3, Cluster: stubHandle}}, src)
	require.NoError(t, err)

	var rec recorder
	assert.True(t, rec.dispatcher(16).Click(res))
	assert.Empty(t, rec.clicked, "point click callback must not run for clusters")
	require.Len(t, rec.viewport, 1)
	assert.Equal(t, [3]float64{172.03, -41.03, 8}, rec.viewport[0])
}

func TestClickClusterClampsToMaxZoom(t *testing.T) {
	var rec recorder
	assert.True(t, rec.dispatcher(16).Click(ClusterPick{Center: orb.Point{1, 2}, ExpansionZoom: 17}))
	require.Len(t, rec.viewport, 1)
	assert.Equal(t, 16.0, rec.viewport[0][2])
}

func TestClickPoint(t *testing.T) {
	pt := cluster.Point{ID: "SM-001", Position: orb.Point{172, -41}, Properties: map[string]any{"station_name": "Lincoln"}}
	res, err := Resolve(RawPick{Feature: &cluster.Feature{Position: pt.Position, Count: 1, Point: &pt}}, &stubSource{})
	require.NoError(t, err)

	var rec recorder
	assert.True(t, rec.dispatcher(16).Click(res))
	require.Len(t, rec.clicked, 1)
	assert.Equal(t, "Lincoln", rec.clicked[0].Properties["station_name"])
	assert.Empty(t, rec.viewport)
}

func TestClickNothing(t *testing.T) {
	var rec recorder
	assert.False(t, rec.dispatcher(16).Click(NoPick{}))
	assert.Empty(t, rec.clicked)
	assert.Empty(t, rec.viewport)
}

func TestHover(t *testing.T) {
	pt := threePoints()[1]
	tests := []struct {
		name        string
		res         Resolution
		handled     bool
		wantHovered []*cluster.Point
	}{
		{"cluster suppressed", ClusterPick{Count: 3}, false, nil},
		{"point", PointPick{Point: pt}, true, []*cluster.Point{&pt}},
		{"nothing clears", NoPick{}, true, []*cluster.Point{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			assert.Equal(t, tt.handled, rec.dispatcher(16).Dispatch(ModeHover, tt.res))
			assert.Equal(t, tt.wantHovered, rec.hovered)
		})
	}
}

func TestEndToEndWithIndex(t *testing.T) {
	idx := cluster.Build(threePoints(), cluster.Options{MaxZoom: 16})
	var target cluster.Feature
	for _, f := range idx.QueryVisible(orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}, 5) {
		if f.IsCluster() {
			target = f
		}
	}
	require.True(t, target.IsCluster())
	require.Equal(t, 3, target.Count)

	res, err := Resolve(RawPick{Feature: &target}, idx)
	require.NoError(t, err)
	cp := res.(ClusterPick)
	assert.Len(t, cp.Leaves, 3)
	assert.Greater(t, cp.ExpansionZoom, 5)

	var rec recorder
	assert.True(t, rec.dispatcher(16).Click(res))
	require.Len(t, rec.viewport, 1)
	assert.Equal(t, float64(min(cp.ExpansionZoom, 16)), rec.viewport[0][2])
}
