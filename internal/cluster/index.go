// Package cluster implements zoom-aware hierarchical point clustering.
//
// Points are projected to spherical mercator and greedily merged, one zoom
// level at a time, from MaxZoom down to MinZoom. Every level is kept in its
// own R-tree so that visible-set queries, expansion zoom and leaf listing are
// answered without re-clustering.
//
//	idx := cluster.Build(points, cluster.Options{Radius: 42.4})
//	for _, f := range idx.QueryVisible(bound, 5) {
//	    if f.IsCluster() {
//	        z, _ := idx.ExpansionZoom(f.Cluster)
//	    }
//	}
//
// Cluster identifiers are Handles scoped to the Index that produced them. An
// Index is immutable after Build and safe for concurrent readers.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const maxZoomCeiling = 24

// Options controls clustering.
type Options struct {
	MinZoom   int     // lowest zoom level clusters are generated on
	MaxZoom   int     // highest zoom level clusters are generated on
	MinPoints int     // minimum points to form a cluster
	Radius    float64 // cluster radius in pixels
	Extent    int     // tile extent the radius is relative to
	NodeSize  int     // R-tree node capacity
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		MinZoom:   0,
		MaxZoom:   16,
		MinPoints: 2,
		Radius:    40,
		Extent:    512,
		NodeSize:  64,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxZoom <= 0 {
		o.MaxZoom = d.MaxZoom
	}
	if o.MaxZoom > maxZoomCeiling {
		o.MaxZoom = maxZoomCeiling
	}
	if o.MinZoom < 0 {
		o.MinZoom = 0
	}
	if o.MinZoom > o.MaxZoom {
		o.MinZoom = o.MaxZoom
	}
	if o.MinPoints < 2 {
		o.MinPoints = d.MinPoints
	}
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.Extent <= 0 {
		o.Extent = d.Extent
	}
	if o.NodeSize < 4 {
		o.NodeSize = d.NodeSize
	}
	return o
}

// Point is one input location. Properties are carried through unmodified.
type Point struct {
	ID         string         `json:"id"`
	Position   orb.Point      `json:"position"`
	Properties map[string]any `json:"properties,omitempty"`
}

// node is a point or cluster at one zoom level.
type node struct {
	x, y   float64
	zoom   int // lowest zoom this node has been processed at
	leaf   int // index into Index.points, -1 for clusters
	id     int // packed cluster id, 0 for leaves
	parent int // packed id of the absorbing cluster, -1 if none
	count  int
}

func (n *node) isCluster() bool { return n.leaf < 0 }

type entry struct {
	rect rtreego.Rect
	i    int
}

func (e entry) Bounds() rtreego.Rect { return e.rect }

type level struct {
	nodes []*node
	tree  *rtreego.Rtree
}

// Index is the result of one Build.
type Index struct {
	opts    Options
	gen     Generation
	points  []Point
	levels  []level // indexed by zoom, MinZoom..MaxZoom+1
	skipped int
}

// Build clusters points. Points with a non-finite coordinate are skipped.
func Build(points []Point, opts Options) *Index {
	opts = opts.withDefaults()
	idx := &Index{
		opts:   opts,
		gen:    nextGeneration(),
		levels: make([]level, opts.MaxZoom+2),
	}

	nodes := make([]*node, 0, len(points))
	for _, p := range points {
		lon, lat := p.Position.Lon(), p.Position.Lat()
		if !finite(lon) || !finite(lat) {
			idx.skipped++
			continue
		}
		idx.points = append(idx.points, p)
		nodes = append(nodes, &node{
			x:      lngX(lon),
			y:      latY(lat),
			zoom:   math.MaxInt,
			leaf:   len(idx.points) - 1,
			parent: -1,
			count:  1,
		})
	}

	idx.levels[opts.MaxZoom+1] = newLevel(nodes, opts.NodeSize)
	for z := opts.MaxZoom; z >= opts.MinZoom; z-- {
		nodes = idx.cluster(nodes, z)
		idx.levels[z] = newLevel(nodes, opts.NodeSize)
	}
	return idx
}

func newLevel(nodes []*node, nodeSize int) level {
	objs := make([]rtreego.Spatial, len(nodes))
	for i, n := range nodes {
		objs[i] = entry{rect: rtreego.Point{n.x, n.y}.ToRect(pointTolerance), i: i}
	}
	return level{
		nodes: nodes,
		tree:  rtreego.NewTree(2, nodeSize/2, nodeSize, objs...),
	}
}

const pointTolerance = 1e-12

// cluster merges the nodes of level z+1 into the nodes of level z.
func (idx *Index) cluster(nodes []*node, z int) []*node {
	var out []*node
	above := idx.levels[z+1]
	r := idx.opts.Radius / (float64(idx.opts.Extent) * math.Pow(2, float64(z)))

	for i, p := range nodes {
		if p.zoom <= z {
			continue
		}
		p.zoom = z

		neighbours := above.within(p.x, p.y, r)
		origin := p.count
		total := origin
		for _, j := range neighbours {
			if b := above.nodes[j]; b.zoom > z {
				total += b.count
			}
		}

		if total > origin && total >= idx.opts.MinPoints {
			wx, wy := p.x*float64(origin), p.y*float64(origin)
			id := packID(i, z+1)
			for _, j := range neighbours {
				b := above.nodes[j]
				if b.zoom <= z {
					continue
				}
				b.zoom = z
				wx += b.x * float64(b.count)
				wy += b.y * float64(b.count)
				b.parent = id
			}
			p.parent = id
			out = append(out, &node{
				x:      wx / float64(total),
				y:      wy / float64(total),
				zoom:   math.MaxInt,
				leaf:   -1,
				id:     id,
				parent: -1,
				count:  total,
			})
			continue
		}

		out = append(out, p)
		if total > 1 {
			for _, j := range neighbours {
				b := above.nodes[j]
				if b.zoom <= z {
					continue
				}
				b.zoom = z
				out = append(out, b)
			}
		}
	}
	return out
}

// within returns the indices of nodes within r of (x, y) in ascending order.
func (l level) within(x, y, r float64) []int {
	rect, err := rtreego.NewRect(rtreego.Point{x - r, y - r}, []float64{2 * r, 2 * r})
	if err != nil {
		return nil
	}
	var ids []int
	r2 := r * r
	for _, s := range l.tree.SearchIntersect(rect) {
		e := s.(entry)
		n := l.nodes[e.i]
		dx, dy := n.x-x, n.y-y
		if dx*dx+dy*dy <= r2 {
			ids = append(ids, e.i)
		}
	}
	sort.Ints(ids)
	return ids
}

// rangeQuery returns the indices of nodes inside the box in ascending order.
func (l level) rangeQuery(minX, minY, maxX, maxY float64) []int {
	w := math.Max(maxX-minX, pointTolerance)
	h := math.Max(maxY-minY, pointTolerance)
	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		return nil
	}
	var ids []int
	for _, s := range l.tree.SearchIntersect(rect) {
		e := s.(entry)
		n := l.nodes[e.i]
		if n.x >= minX && n.x <= maxX && n.y >= minY && n.y <= maxY {
			ids = append(ids, e.i)
		}
	}
	sort.Ints(ids)
	return ids
}

// Generation returns the generation minted by the Build that produced idx.
func (idx *Index) Generation() Generation { return idx.gen }

// Len returns the number of indexed points.
func (idx *Index) Len() int { return len(idx.points) }

// Skipped returns the number of input points dropped for bad coordinates.
func (idx *Index) Skipped() int { return idx.skipped }

// Options returns the effective options.
func (idx *Index) Options() Options { return idx.opts }

func (idx *Index) limitZoom(z float64) int {
	if math.IsNaN(z) {
		return idx.opts.MinZoom
	}
	fz := math.Floor(z)
	if fz < float64(idx.opts.MinZoom) {
		return idx.opts.MinZoom
	}
	if fz > float64(idx.opts.MaxZoom+1) {
		return idx.opts.MaxZoom + 1
	}
	return int(fz)
}

// QueryVisible returns the clusters and points inside b at zoom. The order
// is fixed for a given index, bound and zoom.
func (idx *Index) QueryVisible(b orb.Bound, zoom float64) []Feature {
	minLng := math.Mod(math.Mod(b.Min.Lon()+180, 360)+360, 360) - 180
	minLat := math.Max(-90, math.Min(90, b.Min.Lat()))
	maxLng := 180.0
	if b.Max.Lon() != 180 {
		maxLng = math.Mod(math.Mod(b.Max.Lon()+180, 360)+360, 360) - 180
	}
	maxLat := math.Max(-90, math.Min(90, b.Max.Lat()))

	if b.Max.Lon()-b.Min.Lon() >= 360 {
		minLng, maxLng = -180, 180
	} else if minLng > maxLng {
		east := idx.QueryVisible(orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{180, maxLat}}, zoom)
		west := idx.QueryVisible(orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{maxLng, maxLat}}, zoom)
		return append(east, west...)
	}

	l := idx.levels[idx.limitZoom(zoom)]
	ids := l.rangeQuery(lngX(minLng), latY(maxLat), lngX(maxLng), latY(minLat))
	out := make([]Feature, 0, len(ids))
	for _, i := range ids {
		out = append(out, idx.feature(l.nodes[i]))
	}
	return out
}

func (idx *Index) feature(n *node) Feature {
	if n.isCluster() {
		return Feature{
			Position: orb.Point{xLng(n.x), yLat(n.y)},
			Count:    n.count,
			Cluster:  Handle{gen: idx.gen, id: n.id},
		}
	}
	p := idx.points[n.leaf]
	return Feature{Position: p.Position, Count: 1, Point: &p}
}

// origin finds the node a cluster was created from and the level holding it.
func (idx *Index) origin(h Handle) (*node, int, error) {
	if h.gen != idx.gen {
		return nil, 0, fmt.Errorf("cluster %s: %w (current generation %d)", h, ErrStaleHandle, idx.gen)
	}
	i, z := unpackID(h.id)
	if z <= idx.opts.MinZoom || z >= len(idx.levels) {
		return nil, 0, fmt.Errorf("cluster %s: %w", h, ErrUnknownCluster)
	}
	nodes := idx.levels[z].nodes
	if i < 0 || i >= len(nodes) || nodes[i].parent != h.id {
		return nil, 0, fmt.Errorf("cluster %s: %w", h, ErrUnknownCluster)
	}
	return nodes[i], z, nil
}

// Children returns the clusters and points one zoom level below h.
func (idx *Index) Children(h Handle) ([]Feature, error) {
	o, z, err := idx.origin(h)
	if err != nil {
		return nil, err
	}
	l := idx.levels[z]
	r := idx.opts.Radius / (float64(idx.opts.Extent) * math.Pow(2, float64(z-1)))
	var children []Feature
	for _, i := range l.within(o.x, o.y, r) {
		if n := l.nodes[i]; n.parent == h.id {
			children = append(children, idx.feature(n))
		}
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("cluster %s: %w", h, ErrUnknownCluster)
	}
	return children, nil
}

// ExpansionZoom returns the zoom at which h splits into more than one
// feature.
func (idx *Index) ExpansionZoom(h Handle) (int, error) {
	_, z, err := idx.origin(h)
	if err != nil {
		return 0, err
	}
	expansion := z - 1
	for expansion <= idx.opts.MaxZoom {
		children, err := idx.Children(h)
		if err != nil {
			return 0, err
		}
		expansion++
		if len(children) != 1 || !children[0].IsCluster() {
			break
		}
		h = children[0].Cluster
	}
	return expansion, nil
}

// Leaves returns up to limit points under h after skipping offset of them.
// A limit of zero or less returns every point.
func (idx *Index) Leaves(h Handle, limit, offset int) ([]Point, error) {
	if limit <= 0 {
		limit = math.MaxInt
	}
	var leaves []Point
	if _, err := idx.appendLeaves(&leaves, h, limit, offset, 0); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (idx *Index) appendLeaves(out *[]Point, h Handle, limit, offset, skipped int) (int, error) {
	children, err := idx.Children(h)
	if err != nil {
		return skipped, err
	}
	for _, c := range children {
		switch {
		case c.IsCluster():
			if skipped+c.Count <= offset {
				skipped += c.Count
			} else if skipped, err = idx.appendLeaves(out, c.Cluster, limit, offset, skipped); err != nil {
				return skipped, err
			}
		case skipped < offset:
			skipped++
		default:
			*out = append(*out, *c.Point)
		}
		if len(*out) == limit {
			break
		}
	}
	return skipped, nil
}
