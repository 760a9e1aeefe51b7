package api

import (
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/pick"
	"github.com/joeblew999/plat-moisture/internal/service"
	"github.com/joeblew999/plat-moisture/internal/station"
)

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type TransitionBody struct {
	DurationMs   int64     `json:"durationMs" doc:"Animation length in milliseconds" example:"1500"`
	Easing       string    `json:"easing" doc:"Easing curve" example:"cubic-in-out"`
	Interpolator string    `json:"interpolator" doc:"Interpolator" example:"fly-to"`
	Start        time.Time `json:"start" doc:"When the animation started"`
}

type ViewportBody struct {
	Longitude  float64         `json:"longitude" minimum:"-180" maximum:"180" doc:"Centre longitude" example:"172"`
	Latitude   float64         `json:"latitude" minimum:"-90" maximum:"90" doc:"Centre latitude" example:"-41"`
	Zoom       float64         `json:"zoom" minimum:"0" maximum:"24" doc:"Continuous zoom level" example:"5.3"`
	Bearing    float64         `json:"bearing,omitempty" doc:"Bearing in degrees"`
	Pitch      float64         `json:"pitch,omitempty" doc:"Pitch in degrees"`
	Transition *TransitionBody `json:"transition,omitempty" readOnly:"true" doc:"Animation towards this viewport, when one is running"`
}

func viewportBody(vp camera.Viewport) ViewportBody {
	b := ViewportBody{
		Longitude: vp.Longitude,
		Latitude:  vp.Latitude,
		Zoom:      vp.Zoom,
		Bearing:   vp.Bearing,
		Pitch:     vp.Pitch,
	}
	if t := vp.Transition; t != nil {
		b.Transition = &TransitionBody{
			DurationMs:   t.Duration.Milliseconds(),
			Easing:       t.Easing,
			Interpolator: t.Interpolator,
			Start:        t.Start,
		}
	}
	return b
}

func (b ViewportBody) viewport() camera.Viewport {
	return camera.Viewport{
		Longitude: b.Longitude,
		Latitude:  b.Latitude,
		Zoom:      b.Zoom,
		Bearing:   b.Bearing,
		Pitch:     b.Pitch,
	}
}

type PointBody struct {
	ID       string     `json:"id" doc:"Station identifier" example:"SM-001"`
	Name     string     `json:"name,omitempty" doc:"Station name" example:"Lincoln"`
	Position [2]float64 `json:"position" doc:"Longitude, latitude"`
}

func pointBody(p cluster.Point) PointBody {
	name, _ := p.Properties["station_name"].(string)
	return PointBody{ID: p.ID, Name: name, Position: [2]float64(p.Position)}
}

func pointBodies(points []cluster.Point) []PointBody {
	out := make([]PointBody, len(points))
	for i, p := range points {
		out[i] = pointBody(p)
	}
	return out
}

type FeatureBody struct {
	Position  [2]float64 `json:"position" doc:"Longitude, latitude"`
	Icon      string     `json:"icon" doc:"Icon name in the atlas" example:"marker-40"`
	Size      float64    `json:"size" doc:"Icon size multiplier" example:"1.47"`
	Count     int        `json:"count" doc:"Stations represented" example:"47"`
	Cluster   string     `json:"cluster,omitempty" doc:"Cluster handle for clusters"`
	StationID string     `json:"stationId,omitempty" doc:"Station id for single stations"`
	Name      string     `json:"name,omitempty" doc:"Station name for single stations"`
}

func featureBodies(features []layer.RenderFeature) []FeatureBody {
	out := make([]FeatureBody, len(features))
	for i, rf := range features {
		b := FeatureBody{
			Position: [2]float64(rf.Position),
			Icon:     rf.Icon,
			Size:     rf.Size,
			Count:    rf.Feature.Count,
		}
		if rf.Feature.IsCluster() {
			b.Cluster = rf.Feature.Cluster.String()
		} else {
			p := pointBody(*rf.Feature.Point)
			b.StationID, b.Name = p.ID, p.Name
		}
		out[i] = b
	}
	return out
}

type ClusterPickBody struct {
	Cluster       string      `json:"cluster" doc:"Cluster handle"`
	Center        [2]float64  `json:"center" doc:"Cluster centroid"`
	Count         int         `json:"count" doc:"Stations in the cluster"`
	ExpansionZoom int         `json:"expansionZoom" doc:"Zoom at which the cluster splits"`
	Leaves        []PointBody `json:"leaves" doc:"Up to 25 member stations"`
}

type PickResultBody struct {
	Kind     string           `json:"kind" enum:"none,point,cluster" doc:"What was picked"`
	Handled  bool             `json:"handled" doc:"Whether the event was consumed"`
	Cluster  *ClusterPickBody `json:"cluster,omitempty"`
	Station  *PointBody       `json:"station,omitempty"`
	Pixel    pick.Pixel       `json:"pixel"`
	Viewport ViewportBody     `json:"viewport" doc:"Authoritative viewport after the event"`
}

func pickResultBody(r service.PickResult) PickResultBody {
	b := PickResultBody{
		Kind:     r.Kind(),
		Handled:  r.Handled,
		Pixel:    r.Resolution.At(),
		Viewport: viewportBody(r.Viewport),
	}
	switch res := r.Resolution.(type) {
	case pick.PointPick:
		p := pointBody(res.Point)
		b.Station = &p
	case pick.ClusterPick:
		b.Cluster = &ClusterPickBody{
			Cluster:       res.Handle.String(),
			Center:        [2]float64(res.Center),
			Count:         res.Count,
			ExpansionZoom: res.ExpansionZoom,
			Leaves:        pointBodies(res.Leaves),
		}
	}
	return b
}

type StationBody struct {
	ID         string             `json:"id" doc:"Station identifier" example:"SM-001"`
	Name       string             `json:"name" doc:"Station name" example:"Lincoln"`
	Longitude  float64            `json:"longitude"`
	Latitude   float64            `json:"latitude"`
	Properties station.Properties `json:"properties"`
}

func stationBody(st station.Station) StationBody {
	p := st.Position()
	return StationBody{ID: st.ID(), Name: st.Name(), Longitude: p.Lon(), Latitude: p.Lat(), Properties: st.Properties()}
}

type SessionBody struct {
	ID            string            `json:"id" doc:"Session id"`
	Viewport      ViewportBody      `json:"viewport"`
	EffectiveZoom int               `json:"effectiveZoom" doc:"Integer zoom the visible set was queried at"`
	Settings      service.Settings  `json:"settings"`
	IconAtlas     string            `json:"iconAtlas,omitempty" doc:"Sprite sheet the icon names refer to"`
	IconMapping   layer.IconMapping `json:"iconMapping" doc:"Atlas region for every icon name the features endpoint returns"`
	Selected      *StationBody      `json:"selected,omitempty"`
}

// Actions lists what a client can do next with the session.
func (b SessionBody) Actions() []humastar.Action {
	base := "/api/v1/map/sessions/" + b.ID
	return []humastar.Action{
		{Rel: "features", Href: base + "/features", Method: "GET", Title: "Visible features"},
		{Rel: "viewport", Href: base + "/viewport", Method: "PUT", Title: "Report viewport"},
		{Rel: "pick", Href: base + "/pick", Method: "POST", Title: "Pick under pointer"},
		{Rel: "select", Href: base + "/select", Method: "POST", Title: "Select station"},
		{Rel: "stream", Href: base + "/stream", Method: "GET", Title: "Live updates"},
	}
}

func sessionBody(s *service.MapSession, settings service.Settings) SessionBody {
	b := SessionBody{
		ID:            s.ID,
		Viewport:      viewportBody(s.Viewport()),
		EffectiveZoom: s.EffectiveZoom(),
		Settings:      settings,
		IconAtlas:     settings.IconAtlas,
		IconMapping:   s.Icons(),
	}
	if st, ok := s.Selected(); ok {
		sb := stationBody(st)
		b.Selected = &sb
	}
	return b
}

// httpError maps domain errors to Huma status errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, cluster.ErrStaleHandle):
		return huma.Error409Conflict("cluster handle belongs to a superseded index; refresh features", err)
	case errors.Is(err, cluster.ErrUnknownCluster):
		return huma.Error404NotFound("cluster not found", err)
	case errors.Is(err, service.ErrStationNotFound):
		return huma.Error404NotFound("station not found", err)
	case errors.Is(err, service.ErrInvalidTile):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
