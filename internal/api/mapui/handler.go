// Package mapui contains the Datastar SSE handlers that drive the map page.
package mapui

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/camera"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/service"
	"github.com/joeblew999/plat-moisture/internal/templates"
)

// Handler serves the session stream and the signal endpoints the map page
// posts to.
type Handler struct {
	humastar.Handler
	sessions *service.SessionManager
	stations *service.StationService
	bus      *service.EventBus
	frame    time.Duration
	log      *slog.Logger
}

// Options configures a Handler.
type Options struct {
	Sessions      *service.SessionManager
	Stations      *service.StationService
	Bus           *service.EventBus
	Renderer      *templates.Renderer
	FrameInterval time.Duration
	Logger        *slog.Logger
}

func New(opts Options) *Handler {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = camera.DefaultFrameInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: opts.Renderer},
		sessions: opts.Sessions,
		stations: opts.Stations,
		bus:      opts.Bus,
		frame:    opts.FrameInterval,
		log:      opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/map/sessions/{id}/stream", h.StreamSession, huma.OperationTags("mapui"))
	huma.Post(api, "/api/v1/map/sessions/{id}/signals/pick", h.PickSignals, huma.OperationTags("mapui"))
	huma.Post(api, "/api/v1/map/sessions/{id}/signals/search", h.SearchSignals, huma.OperationTags("mapui"))
	huma.Post(api, "/api/v1/map/sessions/{id}/signals/select", h.SelectSignals, huma.OperationTags("mapui"))
	huma.Post(api, "/api/v1/map/sessions/{id}/signals/deselect", h.DeselectSignals, huma.OperationTags("mapui"))
}

type SessionInput struct {
	ID string `path:"id" doc:"Map session id"`
}

// SignalsRequest carries a session id and the raw Datastar signals body.
type SignalsRequest struct {
	ID      string `path:"id" doc:"Map session id"`
	RawBody []byte
}

// MustParse parses the signals or returns a Huma 400 error.
func (r *SignalsRequest) MustParse() (humastar.Signals, error) {
	in := humastar.SignalsInput{RawBody: r.RawBody}
	return in.MustParse()
}

func (h *Handler) session(id string) (*service.MapSession, error) {
	s, ok := h.sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("map session not found")
	}
	return s, nil
}
