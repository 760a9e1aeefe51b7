package mapui

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/pick"
	"github.com/joeblew999/plat-moisture/internal/service"
)

const searchLimit = 10

// PickSignals handles pointer events from the map canvas. Signals: mode,
// cluster or stationId, x, y.
func (h *Handler) PickSignals(ctx context.Context, input *SignalsRequest) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	mode, err := pick.ParseMode(signals.String("mode"))
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	ref := service.PickRef{
		StationID: signals.String("stationId"),
		Pixel:     pick.Pixel{X: signals.Float("x"), Y: signals.Float("y")},
	}
	if c := signals.String("cluster"); c != "" {
		if ref.Cluster, err = cluster.ParseHandle(c); err != nil {
			return nil, huma.Error400BadRequest("invalid cluster handle", err)
		}
	}

	return h.Stream(func(sse humastar.SSE) {
		res, err := s.Pick(mode, ref)
		switch {
		case errors.Is(err, cluster.ErrStaleHandle):
			sse.Signals(map[string]any{"features": featureSignals(s.Features())})
			sse.Error("Stations changed, try again")
			return
		case err != nil:
			sse.Error(err.Error())
			return
		}

		if mode == pick.ModeHover {
			h.patchHover(sse, s)
			return
		}
		sse.Remove(tooltipID)
		h.patchSelection(sse, s)
		sse.Signals(map[string]any{
			"viewport": viewportSignal(res.Viewport),
			"picked":   res.Kind(),
		})
	}), nil
}

// SearchSignals lists stations matching the search box. Signals: q and an
// optional limit.
func (h *Handler) SearchSignals(ctx context.Context, input *SignalsRequest) (*huma.StreamResponse, error) {
	if _, err := h.session(input.ID); err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	q := signals.String("q")
	limit := signals.Int("limit")
	if limit <= 0 {
		limit = searchLimit
	}

	return h.Stream(func(sse humastar.SSE) {
		if q == "" {
			sse.Patch("", resultsSelector)
			return
		}
		found := service.Summarize(h.stations.Search(ctx, q, limit))
		items := make([]any, len(found))
		for i, f := range found {
			items[i] = f
		}
		sse.Patch(h.RenderList("station-option", items, "No stations", "Nothing matched "+q), resultsSelector)
	}), nil
}

// SelectSignals selects the station picked from the search results.
// Signal: stationId.
func (h *Handler) SelectSignals(ctx context.Context, input *SignalsRequest) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String("stationId")
	if id == "" {
		return nil, huma.Error400BadRequest("stationId is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if _, err := s.Select(id); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch("", resultsSelector)
		h.patchSelection(sse, s)
		sse.Signals(map[string]any{
			"viewport": viewportSignal(s.Viewport()),
			"q":        "",
		})
	}), nil
}

// DeselectSignals closes the station card.
func (h *Handler) DeselectSignals(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		s.Deselect()
		h.patchSelection(sse, s)
	}), nil
}
