package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/metrics"
	"github.com/joeblew999/plat-moisture/internal/pick"
	"github.com/joeblew999/plat-moisture/internal/station"
)

// ErrStationNotFound is returned when a station id is not in the current
// collection.
var ErrStationNotFound = errors.New("station not found")

// SessionConfig holds the per-session map parameters.
type SessionConfig struct {
	InitialView   camera.Viewport
	MaxZoom       int
	SelectZoom    float64
	Tolerance     camera.Tolerance
	FlyDuration   time.Duration
	Easing        string
	FrameInterval time.Duration
	Icons         layer.IconMapping
}

// HoverInfo is the station under the pointer.
type HoverInfo struct {
	StationID string     `json:"stationId"`
	Name      string     `json:"name"`
	Pixel     pick.Pixel `json:"pixel"`
}

// PickRef names what the pointer is over: a cluster handle, a station id,
// or neither.
type PickRef struct {
	Cluster   cluster.Handle
	StationID string
	Pixel     pick.Pixel
}

// PickResult is the outcome of one pointer event.
type PickResult struct {
	Resolution pick.Resolution
	Handled    bool
	Viewport   camera.Viewport
}

// Kind names the resolution variant.
func (r PickResult) Kind() string { return ResolutionKind(r.Resolution) }

// ResolutionKind returns "none", "point" or "cluster".
func ResolutionKind(r pick.Resolution) string {
	switch r.(type) {
	case pick.PointPick:
		return "point"
	case pick.ClusterPick:
		return "cluster"
	}
	return "none"
}

// MapSession is the server-side state of one map view. Every method runs
// under the session lock, so index builds, queries and picks never
// interleave.
type MapSession struct {
	ID string

	mu       sync.Mutex
	cfg      SessionConfig
	stations *StationService
	settings *SettingsService
	log      *slog.Logger
	layer    *layer.Layer
	camera   *camera.Controller
	gate     *camera.FrameGate
	selected string
	hover    *HoverInfo
	lastSeen time.Time
	changes  uint64
}

func newMapSession(id string, cfg SessionConfig, stations *StationService, settings *SettingsService, log *slog.Logger) *MapSession {
	s := &MapSession{
		ID:       id,
		cfg:      cfg,
		stations: stations,
		settings: settings,
		log:      log.With("session", id),
		camera: camera.NewController(cfg.InitialView,
			camera.WithTolerance(cfg.Tolerance),
			camera.WithFlyDuration(cfg.FlyDuration),
			camera.WithEasing(cfg.Easing),
		),
		gate:     camera.NewFrameGate(cfg.FrameInterval),
		lastSeen: time.Now(),
	}
	s.layer = layer.New(
		layer.WithMaxZoom(cfg.MaxZoom),
		layer.WithLogger(s.log),
		layer.WithBuildObserver(metrics.ObserveBuild),
	)
	return s
}

func (s *MapSession) props() layer.Props {
	st := s.settings.Get()
	return layer.Props{
		Data:       s.stations.Collection(),
		SizeScale:  st.SizeScale,
		Clustering: st.Clustering,
		Pickable:   st.Pickable,
		IconAtlas:  st.IconAtlas,
		Icons:      s.cfg.Icons,
	}
}

// refresh runs the layer state machine against the current inputs.
func (s *MapSession) refresh() layer.Transition {
	t := s.layer.Update(s.props(), s.camera.Viewport())
	metrics.LayerTransitionsTotal.WithLabelValues(t.String()).Inc()
	if t != layer.TransitionNone {
		s.changes++
	}
	return t
}

// settle applies a sample still held by the frame gate and refreshes, so
// request paths that never Tick see the last gesture.
func (s *MapSession) settle() layer.Transition {
	if vp, ok := s.gate.Take(time.Now()); ok {
		s.offer(vp)
	}
	return s.refresh()
}

// Refresh brings the visible set up to date and reports the transition.
func (s *MapSession) Refresh() layer.Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settle()
}

// Tick releases a throttled viewport sample whose frame has ended and then
// refreshes. It is driven once per frame by the session's stream.
func (s *MapSession) Tick(now time.Time) layer.Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vp, ok := s.gate.Flush(now); ok {
		s.offer(vp)
	}
	return s.refresh()
}

// Features refreshes and returns the icons to draw.
func (s *MapSession) Features() []layer.RenderFeature {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	return s.layer.Render()
}

// OfferViewport applies a viewport sample from a gesture. Samples arriving
// faster than one per frame are held back and the latest is applied by the
// next Tick or request that reads the visible set. It reports whether the authoritative viewport changed now.
func (s *MapSession) OfferViewport(vp camera.Viewport, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
	next, ok := s.gate.Offer(vp, now)
	if !ok {
		metrics.ViewportSamplesTotal.WithLabelValues("deferred").Inc()
		return false
	}
	return s.offer(next)
}

func (s *MapSession) offer(vp camera.Viewport) bool {
	if !s.camera.Offer(vp) {
		metrics.ViewportSamplesTotal.WithLabelValues("coalesced").Inc()
		return false
	}
	metrics.ViewportSamplesTotal.WithLabelValues("accepted").Inc()
	return true
}

// Icons returns the atlas regions the session's icon names refer to.
func (s *MapSession) Icons() layer.IconMapping { return s.cfg.Icons }

// Viewport returns the authoritative viewport.
func (s *MapSession) Viewport() camera.Viewport {
	return s.camera.Viewport()
}

// SubscribeViewport returns a channel that receives the authoritative
// viewport after each accepted change.
func (s *MapSession) SubscribeViewport() chan camera.Viewport {
	return s.camera.Subscribe()
}

// UnsubscribeViewport releases a channel from SubscribeViewport.
func (s *MapSession) UnsubscribeViewport(ch chan camera.Viewport) {
	s.camera.Unsubscribe(ch)
}

// Presented returns the viewport to draw at now.
func (s *MapSession) Presented(now time.Time) camera.Viewport {
	return s.camera.Presented(now)
}

// Version changes whenever the camera, the visible set or the selection
// changes.
func (s *MapSession) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.Version() + s.changes
}

// EffectiveZoom returns the zoom the visible set was queried at.
func (s *MapSession) EffectiveZoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layer.EffectiveZoom()
}

// Pick resolves and dispatches a pointer event.
func (s *MapSession) Pick(mode pick.Mode, ref PickRef) (PickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.settle()

	if !s.layer.Props().Pickable {
		return PickResult{Resolution: pick.NoPick{Pixel: ref.Pixel}, Viewport: s.camera.Viewport()}, nil
	}

	raw, err := s.locate(ref)
	if err != nil {
		return PickResult{}, err
	}
	res, err := pick.Resolve(raw, s.layer.Index())
	if err != nil {
		if errors.Is(err, cluster.ErrStaleHandle) {
			s.log.Error("pick against superseded cluster index", "handle", ref.Cluster.String(), "error", err)
		}
		return PickResult{}, err
	}
	metrics.PicksTotal.WithLabelValues(string(mode), ResolutionKind(res)).Inc()

	handled := s.dispatcher().Dispatch(mode, res)
	if mode == pick.ModeClick && !handled {
		s.deselect()
	}
	return PickResult{Resolution: res, Handled: handled, Viewport: s.camera.Viewport()}, nil
}

func (s *MapSession) locate(ref PickRef) (pick.RawPick, error) {
	raw := pick.RawPick{Pixel: ref.Pixel}
	switch {
	case !ref.Cluster.IsZero():
		idx := s.layer.Index()
		if idx == nil || ref.Cluster.Generation() != idx.Generation() {
			return raw, fmt.Errorf("cluster %s: %w", ref.Cluster, cluster.ErrStaleHandle)
		}
		for _, f := range s.layer.Visible() {
			if f.IsCluster() && f.Cluster == ref.Cluster {
				raw.Feature = &f
				return raw, nil
			}
		}
		return raw, fmt.Errorf("cluster %s is not visible: %w", ref.Cluster, cluster.ErrUnknownCluster)
	case ref.StationID != "":
		st, ok := s.stations.Collection().Get(ref.StationID)
		if !ok {
			return raw, fmt.Errorf("%w: %s", ErrStationNotFound, ref.StationID)
		}
		p := pointOf(st)
		raw.Feature = &cluster.Feature{Position: p.Position, Count: 1, Point: &p}
	}
	return raw, nil
}

func pointOf(st station.Station) cluster.Point {
	return cluster.Point{ID: st.ID(), Position: st.Position(), Properties: st.Feature().Properties}
}

func (s *MapSession) dispatcher() pick.Dispatcher {
	return pick.Dispatcher{
		MaxZoom: s.layer.MaxZoom(),
		OnPointClick: func(p cluster.Point) {
			s.selected = p.ID
			s.changes++
			s.camera.FlyTo(p.Position.Lon(), p.Position.Lat(), s.cfg.SelectZoom)
		},
		OnPointHover: func(p *cluster.Point, at pick.Pixel) {
			if p == nil {
				s.hover = nil
				return
			}
			name, _ := p.Properties["station_name"].(string)
			s.hover = &HoverInfo{StationID: p.ID, Name: name, Pixel: at}
		},
		OnViewportChangeRequest: func(lon, lat, zoom float64) {
			s.camera.FlyTo(lon, lat, zoom)
		},
	}
}

// Select selects a station by id and flies to it, as the search box does.
func (s *MapSession) Select(id string) (station.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations.Collection().Get(id)
	if !ok {
		return station.Station{}, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	s.dispatcher().OnPointClick(pointOf(st))
	return st, nil
}

// Deselect clears the selection.
func (s *MapSession) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deselect()
}

func (s *MapSession) deselect() {
	if s.selected != "" {
		s.selected = ""
		s.changes++
	}
}

// Selected returns the selected station, if it is still loaded.
func (s *MapSession) Selected() (station.Station, bool) {
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		return station.Station{}, false
	}
	return s.stations.Collection().Get(id)
}

// Hover returns the hovered station, nil when none.
func (s *MapSession) Hover() *HoverInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hover == nil {
		return nil
	}
	h := *s.hover
	return &h
}

// Leaves lists the stations under a cluster of the current index.
func (s *MapSession) Leaves(h cluster.Handle, limit, offset int) ([]cluster.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	idx := s.layer.Index()
	if idx == nil {
		return nil, fmt.Errorf("cluster %s: %w", h, cluster.ErrStaleHandle)
	}
	return idx.Leaves(h, limit, offset)
}

// LastSeen returns when the session last handled a client request.
func (s *MapSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Touch marks the session as in use.
func (s *MapSession) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}
