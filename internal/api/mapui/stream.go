package mapui

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/service"
)

// frameState is what the client was last sent.
type frameState struct {
	sent     bool
	version  uint64
	selected string
}

// StreamSession drives one map page. Every frame it flushes throttled
// viewport samples, refreshes the layer, and pushes whatever changed.
// Settings and station reloads from the bus force a full push.
func (h *Handler) StreamSession(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)
		moved := s.SubscribeViewport()
		defer s.UnsubscribeViewport(moved)
		ticker := time.NewTicker(h.frame)
		defer ticker.Stop()

		var last frameState
		h.pushFrame(sse, s, &last, time.Now())

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				h.pushFrame(sse, s, &last, now)
			case <-moved:
				h.pushFrame(sse, s, &last, time.Now())
			case ev, ok := <-ch:
				if !ok {
					return
				}
				switch ev.Resource {
				case service.ResourceSessions:
					if ev.ID == s.ID && ev.Action != "created" {
						sse.Error("Map session ended")
						return
					}
				case service.ResourceSettings, service.ResourceStations:
					last.sent = false
					h.pushFrame(sse, s, &last, time.Now())
				}
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	})
}

func (h *Handler) pushFrame(sse humastar.SSE, s *service.MapSession, last *frameState, now time.Time) {
	s.Touch(now)
	s.Tick(now)

	if v := s.Version(); !last.sent || v != last.version {
		features := s.Features()
		sse.Signals(map[string]any{
			"viewport":      viewportSignal(s.Viewport()),
			"effectiveZoom": s.EffectiveZoom(),
			"features":      featureSignals(features),
		})
		h.patchStatus(sse, s, len(features))
		last.version = v
	}

	selected := ""
	if st, ok := s.Selected(); ok {
		selected = st.ID()
	}
	if !last.sent || selected != last.selected {
		h.patchSelection(sse, s)
		last.selected = selected
	}
	last.sent = true
}
