// Package layer is the station icon layer: it keeps a cluster index in step
// with the station data and the clustering radius, and keeps the visible
// feature set in step with the camera's effective zoom.
//
// Update is the only entry point that changes state. It decides between the
// four transitions below, doing no more work than the transition requires:
//
//	Mount    first update: build the index and query the visible set
//	Rebuild  data reference, size scale or clustering mode changed
//	Requery  only floor(zoom) changed: query the existing index
//	None     nothing relevant changed
//
// A Layer is not safe for concurrent use.
package layer

import (
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/station"
)

// DefaultMaxZoom is the highest zoom that clusters are generated on.
const DefaultMaxZoom = 16

// World is the bounding box the visible set is always queried with.
var World = orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}

// Transition names what an Update did.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionMount
	TransitionRebuild
	TransitionRequery
)

func (t Transition) String() string {
	switch t {
	case TransitionMount:
		return "mount"
	case TransitionRebuild:
		return "rebuild"
	case TransitionRequery:
		return "requery"
	}
	return "none"
}

// Props are the layer inputs supplied by the map.
type Props struct {
	Data       *station.Collection
	SizeScale  float64
	Clustering bool
	Pickable   bool
	IconAtlas  string
	Icons      IconMapping
}

// Radius is the clustering radius for the props' size scale.
func (p Props) Radius() float64 {
	return p.SizeScale * math.Sqrt2
}

// RenderFeature is one icon to draw.
type RenderFeature struct {
	Position orb.Point
	Icon     string
	Size     float64
	Feature  cluster.Feature
}

// BuildObserver is told about every index build.
type BuildObserver func(points int, skipped int, d time.Duration)

// Layer holds the derived index and visible set.
type Layer struct {
	maxZoom  int
	log      *slog.Logger
	observer BuildObserver

	mounted       bool
	props         Props
	index         *cluster.Index
	visible       []cluster.Feature
	effectiveZoom int
	builds        int
}

// Option configures a Layer.
type Option func(*Layer)

// WithMaxZoom sets the index's maximum cluster zoom.
func WithMaxZoom(z int) Option {
	return func(l *Layer) { l.maxZoom = z }
}

// WithLogger sets the logger used for build and transition messages.
func WithLogger(log *slog.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// WithBuildObserver registers a callback run after each index build.
func WithBuildObserver(fn BuildObserver) Option {
	return func(l *Layer) { l.observer = fn }
}

// New returns an unmounted layer.
func New(opts ...Option) *Layer {
	l := &Layer{maxZoom: DefaultMaxZoom, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update applies new props and viewport and reports the transition taken.
func (l *Layer) Update(props Props, vp camera.Viewport) Transition {
	zoom := vp.EffectiveZoom()

	var t Transition
	switch {
	case !l.mounted:
		t = TransitionMount
	case props.Data != l.props.Data,
		props.SizeScale != l.props.SizeScale,
		props.Clustering != l.props.Clustering:
		t = TransitionRebuild
	case zoom != l.effectiveZoom:
		t = TransitionRequery
	default:
		l.props = props
		return TransitionNone
	}

	l.props = props
	l.mounted = true
	if t != TransitionRequery {
		l.build()
	}
	l.effectiveZoom = zoom
	l.query()

	l.log.Debug("layer transition",
		"transition", t.String(),
		"effective_zoom", zoom,
		"visible", len(l.visible),
	)
	return t
}

func (l *Layer) build() {
	if !l.props.Clustering {
		l.index = nil
		return
	}
	start := time.Now()
	l.index = cluster.Build(l.props.Data.Points(), cluster.Options{
		MaxZoom: l.maxZoom,
		Radius:  l.props.Radius(),
	})
	l.builds++
	d := time.Since(start)

	l.log.Debug("cluster index built",
		"generation", uint64(l.index.Generation()),
		"points", l.index.Len(),
		"skipped", l.index.Skipped(),
		"radius", l.props.Radius(),
		"duration", d,
	)
	if l.observer != nil {
		l.observer(l.index.Len(), l.index.Skipped(), d)
	}
}

func (l *Layer) query() {
	if l.index != nil {
		l.visible = l.index.QueryVisible(World, float64(l.effectiveZoom))
		return
	}
	// Plain mode: every station as its own icon.
	points := l.props.Data.Points()
	l.visible = make([]cluster.Feature, len(points))
	for i := range points {
		p := points[i]
		l.visible[i] = cluster.Feature{Position: p.Position, Count: 1, Point: &p}
	}
}

// Render maps the visible set to icons.
func (l *Layer) Render() []RenderFeature {
	out := make([]RenderFeature, len(l.visible))
	for i, f := range l.visible {
		rf := RenderFeature{Position: f.Position, Feature: f}
		if l.index == nil {
			rf.Icon, rf.Size = PlainIcon, 1
		} else {
			rf.Icon, rf.Size = IconName(f.Count), IconSize(f.Count)
		}
		out[i] = rf
	}
	return out
}

// Visible returns the current visible set.
func (l *Layer) Visible() []cluster.Feature { return l.visible }

// Index returns the current cluster index, nil when unmounted or when
// clustering is off.
func (l *Layer) Index() *cluster.Index { return l.index }

// EffectiveZoom returns the zoom level the visible set was queried at.
func (l *Layer) EffectiveZoom() int { return l.effectiveZoom }

// Props returns the props of the last update.
func (l *Layer) Props() Props { return l.props }

// Builds returns how many times the index has been built.
func (l *Layer) Builds() int { return l.builds }

// MaxZoom returns the index's maximum cluster zoom.
func (l *Layer) MaxZoom() int { return l.maxZoom }
