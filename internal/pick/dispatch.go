package pick

import "github.com/joeblew999/plat-moisture/internal/cluster"

// Dispatcher runs the callbacks for a resolved pick. Nil callbacks are
// skipped.
type Dispatcher struct {
	// MaxZoom caps cluster expansion fly-tos. Zero means no cap.
	MaxZoom int

	OnPointClick            func(p cluster.Point)
	OnPointHover            func(p *cluster.Point, at Pixel)
	OnViewportChangeRequest func(lon, lat, zoom float64)
}

// Click handles a click. Clusters fly the camera to their expansion zoom,
// points are selected. It returns true when the event was consumed; an
// empty click is left to the caller, which deselects.
func (d Dispatcher) Click(r Resolution) bool {
	switch r := r.(type) {
	case ClusterPick:
		zoom := r.ExpansionZoom
		if d.MaxZoom > 0 {
			zoom = min(zoom, d.MaxZoom)
		}
		if d.OnViewportChangeRequest != nil {
			d.OnViewportChangeRequest(r.Center.Lon(), r.Center.Lat(), float64(zoom))
		}
		return true
	case PointPick:
		if d.OnPointClick != nil {
			d.OnPointClick(r.Point)
		}
		return true
	}
	return false
}

// Hover handles pointer movement. Clusters never show the point tooltip and
// report false; points and empty space report true, the latter clearing the
// tooltip.
func (d Dispatcher) Hover(r Resolution) bool {
	switch r := r.(type) {
	case ClusterPick:
		return false
	case PointPick:
		if d.OnPointHover != nil {
			p := r.Point
			d.OnPointHover(&p, r.Pixel)
		}
		return true
	case NoPick:
		if d.OnPointHover != nil {
			d.OnPointHover(nil, r.Pixel)
		}
		return true
	}
	return false
}

// Dispatch routes r by mode.
func (d Dispatcher) Dispatch(mode Mode, r Resolution) bool {
	if mode == ModeHover {
		return d.Hover(r)
	}
	return d.Click(r)
}
