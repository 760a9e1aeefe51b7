package station

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const spatialTolerance = 1e-9

type spatialItem struct {
	rect rtreego.Rect
	i    int
}

func (s spatialItem) Bounds() rtreego.Rect { return s.rect }

// SpatialIndex answers bounding box and nearest-station lookups over a
// Collection.
type SpatialIndex struct {
	c    *Collection
	tree *rtreego.Rtree
}

// NewSpatialIndex indexes every station of c.
func NewSpatialIndex(c *Collection) *SpatialIndex {
	stations := c.All()
	items := make([]rtreego.Spatial, len(stations))
	for i, s := range stations {
		p := s.Position()
		items[i] = spatialItem{rect: rtreego.Point{p.Lon(), p.Lat()}.ToRect(spatialTolerance), i: i}
	}
	return &SpatialIndex{c: c, tree: rtreego.NewTree(2, 25, 50, items...)}
}

// InBounds returns the stations inside b, in collection order.
func (x *SpatialIndex) InBounds(b orb.Bound) []Station {
	w, h := b.Max.Lon()-b.Min.Lon(), b.Max.Lat()-b.Min.Lat()
	if w < spatialTolerance {
		w = spatialTolerance
	}
	if h < spatialTolerance {
		h = spatialTolerance
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.Min.Lon(), b.Min.Lat()}, []float64{w, h})
	if err != nil {
		return nil
	}
	hits := x.tree.SearchIntersect(rect)
	seen := make([]bool, x.c.Len())
	for _, hit := range hits {
		seen[hit.(spatialItem).i] = true
	}
	var out []Station
	for i, s := range x.c.All() {
		if seen[i] && b.Contains(s.Position()) {
			out = append(out, s)
		}
	}
	return out
}

// Nearest returns up to k stations closest to p, nearest first. Distance is
// planar in degrees, which is adequate at station spacing.
func (x *SpatialIndex) Nearest(p orb.Point, k int) []Station {
	if k <= 0 || x.c.Len() == 0 {
		return nil
	}
	hits := x.tree.NearestNeighbors(k, rtreego.Point{p.Lon(), p.Lat()})
	out := make([]Station, 0, len(hits))
	stations := x.c.All()
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		out = append(out, stations[hit.(spatialItem).i])
	}
	return out
}

// Size returns the number of indexed stations.
func (x *SpatialIndex) Size() int { return x.tree.Size() }
