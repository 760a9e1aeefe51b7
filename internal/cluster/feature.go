package cluster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one query result: either a cluster of Count points or a single
// unclustered Point.
type Feature struct {
	Position orb.Point
	Count    int
	Cluster  Handle // zero for unclustered points
	Point    *Point // nil for clusters
}

// IsCluster reports whether f aggregates more than one point.
func (f Feature) IsCluster() bool { return !f.Cluster.IsZero() }

// GeoJSON renders f with the conventional cluster properties, or the
// point's own properties for an unclustered point.
func (f Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Position)
	if !f.IsCluster() {
		if f.Point == nil {
			return gf
		}
		gf.ID = f.Point.ID
		for k, v := range f.Point.Properties {
			gf.Properties[k] = v
		}
		return gf
	}
	gf.ID = f.Cluster.String()
	gf.Properties["cluster"] = true
	gf.Properties["cluster_id"] = f.Cluster.String()
	gf.Properties["point_count"] = f.Count
	gf.Properties["point_count_abbreviated"] = Abbreviate(f.Count)
	return gf
}

// Abbreviate formats a point count the way map labels show it: 950, 3.5k,
// 12k.
func Abbreviate(count int) string {
	switch {
	case count >= 10000:
		return fmt.Sprintf("%dk", int(math.Round(float64(count)/1000)))
	case count >= 1000:
		return fmt.Sprintf("%gk", math.Round(float64(count)/100)/10)
	}
	return fmt.Sprintf("%d", count)
}

// Tile returns the features that fall in XYZ tile (z, x, y) plus a buffer of
// one cluster radius. Features pulled across the antimeridian for edge tiles
// have their longitude shifted by 360 so they land next to the tile.
func (idx *Index) Tile(z, x, y int) []Feature {
	l := idx.levels[idx.limitZoom(float64(z))]
	z2 := math.Pow(2, float64(z))
	p := idx.opts.Radius / float64(idx.opts.Extent)
	fx, fy := float64(x), float64(y)
	top := (fy - p) / z2
	bottom := (fy + 1 + p) / z2

	out := idx.tileFeatures(l, l.rangeQuery((fx-p)/z2, top, (fx+1+p)/z2, bottom), 0)
	if x == 0 {
		out = append(out, idx.tileFeatures(l, l.rangeQuery(1-p/z2, top, 1, bottom), -360)...)
	}
	if x == int(z2)-1 {
		out = append(out, idx.tileFeatures(l, l.rangeQuery(0, top, p/z2, bottom), 360)...)
	}
	return out
}

func (idx *Index) tileFeatures(l level, ids []int, shift float64) []Feature {
	out := make([]Feature, 0, len(ids))
	for _, i := range ids {
		f := idx.feature(l.nodes[i])
		f.Position[0] += shift
		out = append(out, f)
	}
	return out
}
