package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/pick"
	"github.com/joeblew999/plat-moisture/internal/service"
)

type SessionIDInput struct {
	ID string `path:"id" doc:"Map session id"`
}

type SessionOutput struct {
	Body SessionBody
}

type FeaturesBody struct {
	EffectiveZoom int           `json:"effectiveZoom" doc:"Integer zoom the visible set was queried at"`
	Transition    string        `json:"transition" enum:"none,mount,rebuild,requery" doc:"Layer transition taken by this request"`
	Features      []FeatureBody `json:"features"`
}

type ViewportInput struct {
	SessionIDInput
	Body ViewportBody
}

type ViewportResultBody struct {
	Accepted bool         `json:"accepted" doc:"False when the sample was within tolerance or deferred to the next frame"`
	Viewport ViewportBody `json:"viewport" doc:"Authoritative viewport"`
}

type PickInput struct {
	SessionIDInput
	Body struct {
		Mode      string  `json:"mode" enum:"click,hover" doc:"Pointer event kind"`
		Cluster   string  `json:"cluster,omitempty" doc:"Cluster handle under the pointer"`
		StationID string  `json:"stationId,omitempty" doc:"Station id under the pointer"`
		X         float64 `json:"x,omitempty" doc:"Pointer x in pixels"`
		Y         float64 `json:"y,omitempty" doc:"Pointer y in pixels"`
	}
}

type SelectInput struct {
	SessionIDInput
	Body struct {
		StationID string `json:"stationId" doc:"Station to select; empty clears the selection"`
	}
}

type LeavesInput struct {
	SessionIDInput
	Handle string `path:"handle" doc:"Cluster handle" example:"12-229"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"25" doc:"Page size; 0 lists every leaf"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Leaves to skip"`
}

// RegisterMap registers map session routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Post(api, "/api/v1/map/sessions", h.CreateSession, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/sessions/{id}", h.GetSession, huma.OperationTags("map"))
	huma.Delete(api, "/api/v1/map/sessions/{id}", h.DeleteSession, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/sessions/{id}/features", h.GetFeatures, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/map/sessions/{id}/viewport", h.PutViewport, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/sessions/{id}/pick", h.Pick, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/sessions/{id}/select", h.Select, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/sessions/{id}/clusters/{handle}/leaves", h.GetLeaves, huma.OperationTags("map"))
}

func (h *APIHandler) session(id string) (*service.MapSession, error) {
	s, ok := h.svc.Sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("map session not found")
	}
	return s, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	s := h.svc.Sessions.Create()
	return &SessionOutput{Body: sessionBody(s, h.svc.Settings.Get())}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: sessionBody(s, h.svc.Settings.Get())}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionIDInput) (*struct{ Body MessageBody }, error) {
	if !h.svc.Sessions.Close(input.ID) {
		return nil, huma.Error404NotFound("map session not found")
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session closed"}}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *SessionIDInput) (*struct{ Body FeaturesBody }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	t := s.Refresh()
	return &struct{ Body FeaturesBody }{Body: FeaturesBody{
		EffectiveZoom: s.EffectiveZoom(),
		Transition:    t.String(),
		Features:      featureBodies(s.Features()),
	}}, nil
}

func (h *APIHandler) PutViewport(ctx context.Context, input *ViewportInput) (*struct{ Body ViewportResultBody }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	accepted := s.OfferViewport(input.Body.viewport(), time.Now())
	return &struct{ Body ViewportResultBody }{Body: ViewportResultBody{
		Accepted: accepted,
		Viewport: viewportBody(s.Viewport()),
	}}, nil
}

func (h *APIHandler) Pick(ctx context.Context, input *PickInput) (*struct{ Body PickResultBody }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	mode, err := pick.ParseMode(input.Body.Mode)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	ref := service.PickRef{
		StationID: input.Body.StationID,
		Pixel:     pick.Pixel{X: input.Body.X, Y: input.Body.Y},
	}
	if input.Body.Cluster != "" {
		if ref.Cluster, err = cluster.ParseHandle(input.Body.Cluster); err != nil {
			return nil, huma.Error400BadRequest("invalid cluster handle", err)
		}
	}

	res, err := s.Pick(mode, ref)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body PickResultBody }{Body: pickResultBody(res)}, nil
}

func (h *APIHandler) Select(ctx context.Context, input *SelectInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Body.StationID == "" {
		s.Deselect()
	} else if _, err := s.Select(input.Body.StationID); err != nil {
		return nil, httpError(err)
	}
	return &SessionOutput{Body: sessionBody(s, h.svc.Settings.Get())}, nil
}

func (h *APIHandler) GetLeaves(ctx context.Context, input *LeavesInput) (*struct{ Body humastar.Page[PointBody] }, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	handle, err := cluster.ParseHandle(input.Handle)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid cluster handle", err)
	}
	all, err := s.Leaves(handle, 0, 0)
	if err != nil {
		return nil, httpError(err)
	}

	page := humastar.Page[PointBody]{Total: len(all), Offset: input.Offset, Limit: input.Limit, Data: []PointBody{}}
	if input.Offset < len(all) {
		end := len(all)
		if input.Limit > 0 {
			end = min(input.Offset+input.Limit, len(all))
		}
		page.Data = pointBodies(all[input.Offset:end])
	}
	return &struct{ Body humastar.Page[PointBody] }{Body: page}, nil
}
