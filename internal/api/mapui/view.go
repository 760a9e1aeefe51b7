package mapui

import (
	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/service"
	"github.com/joeblew999/plat-moisture/internal/station"
)

// Fragment targets on the map page.
const (
	panelSelector   = "#station-panel"
	tooltipSelector = "#tooltip-layer"
	resultsSelector = "#search-results"
	statusSelector  = "#map-status"
	tooltipID       = "station-tooltip"
)

type stationCard struct {
	ID        string
	Name      string
	Longitude float64
	Latitude  float64
	Props     station.Properties
}

func cardOf(st station.Station) stationCard {
	p := st.Position()
	return stationCard{ID: st.ID(), Name: st.Name(), Longitude: p.Lon(), Latitude: p.Lat(), Props: st.Properties()}
}

type featureSignal struct {
	Position  [2]float64 `json:"position"`
	Icon      string     `json:"icon"`
	Size      float64    `json:"size"`
	Count     int        `json:"count"`
	Cluster   string     `json:"cluster,omitempty"`
	StationID string     `json:"stationId,omitempty"`
}

func featureSignals(features []layer.RenderFeature) []featureSignal {
	out := make([]featureSignal, len(features))
	for i, rf := range features {
		f := featureSignal{
			Position: [2]float64(rf.Position),
			Icon:     rf.Icon,
			Size:     rf.Size,
			Count:    rf.Feature.Count,
		}
		if rf.Feature.IsCluster() {
			f.Cluster = rf.Feature.Cluster.String()
		} else {
			f.StationID = rf.Feature.Point.ID
		}
		out[i] = f
	}
	return out
}

func viewportSignal(vp camera.Viewport) map[string]any {
	m := map[string]any{
		"longitude": vp.Longitude,
		"latitude":  vp.Latitude,
		"zoom":      vp.Zoom,
		"bearing":   vp.Bearing,
		"pitch":     vp.Pitch,
	}
	if t := vp.Transition; t != nil {
		m["transitionDuration"] = t.Duration.Milliseconds()
		m["transitionEasing"] = t.Easing
	}
	return m
}

// patchSelection shows the selected station's card, or empties the panel.
func (h *Handler) patchSelection(sse humastar.SSE, s *service.MapSession) {
	st, ok := s.Selected()
	if !ok {
		sse.Patch("", panelSelector)
		return
	}
	html, err := h.Renderer.Render("station-card", cardOf(st))
	if err != nil {
		h.log.Error("render station card", "station", st.ID(), "error", err)
		return
	}
	sse.Patch(html, panelSelector)
}

// patchHover shows the hover tooltip, or removes it.
func (h *Handler) patchHover(sse humastar.SSE, s *service.MapSession) {
	hv := s.Hover()
	if hv == nil {
		sse.Remove(tooltipID)
		return
	}
	html, err := h.Renderer.Render("station-tooltip", hv)
	if err != nil {
		h.log.Error("render tooltip", "station", hv.StationID, "error", err)
		return
	}
	sse.Patch(html, tooltipSelector)
}

func (h *Handler) patchStatus(sse humastar.SSE, s *service.MapSession, visible int) {
	html, err := h.Renderer.Render("map-status", map[string]any{
		"Zoom":     s.EffectiveZoom(),
		"Visible":  visible,
		"Stations": h.stations.Collection().Len(),
	})
	if err != nil {
		h.log.Error("render map status", "error", err)
		return
	}
	sse.Replace(html, statusSelector)
}
