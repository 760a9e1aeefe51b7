package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-moisture/internal/service"
)

type ObservationListOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type SearchInput struct {
	Q     string `query:"q" doc:"Name or id fragment" example:"lincoln"`
	Limit int    `query:"limit" minimum:"1" maximum:"100" default:"10" doc:"Maximum results"`
}

type NearestInput struct {
	Longitude float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude" example:"172.6"`
	Latitude  float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude" example:"-43.5"`
	K         int     `query:"k" minimum:"1" maximum:"100" default:"5" doc:"Number of stations"`
}

type StationIDInput struct {
	ID string `path:"id" doc:"Station id" example:"SM-001"`
}

type StationsOutput struct {
	Body []service.StationSummary
}

type ReloadBody struct {
	Stations int    `json:"stations" doc:"Stations loaded"`
	Skipped  int    `json:"skipped" doc:"Features dropped for bad geometry"`
	Origin   string `json:"origin" doc:"Where the stations came from"`
}

// RegisterStations registers station data routes.
func (h *APIHandler) RegisterStations(api huma.API) {
	huma.Get(api, "/api/data/observation/list", h.ListObservations, huma.OperationTags("stations"))
	huma.Get(api, "/api/v1/stations/search", h.SearchStations, huma.OperationTags("stations"))
	huma.Get(api, "/api/v1/stations/nearest", h.NearestStations, huma.OperationTags("stations"))
	huma.Get(api, "/api/v1/stations/{id}", h.GetStation, huma.OperationTags("stations"))
	huma.Post(api, "/api/v1/stations/reload", h.ReloadStations, huma.OperationTags("stations"))
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("stations"))
}

func (h *APIHandler) ListObservations(ctx context.Context, input *struct{}) (*ObservationListOutput, error) {
	data, err := h.svc.Stations.Collection().FeatureCollection().MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding stations", err)
	}
	return &ObservationListOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) SearchStations(ctx context.Context, input *SearchInput) (*StationsOutput, error) {
	found := h.svc.Stations.Search(ctx, input.Q, input.Limit)
	return &StationsOutput{Body: service.Summarize(found)}, nil
}

func (h *APIHandler) NearestStations(ctx context.Context, input *NearestInput) (*StationsOutput, error) {
	found := h.svc.Stations.Nearest(orb.Point{input.Longitude, input.Latitude}, input.K)
	return &StationsOutput{Body: service.Summarize(found)}, nil
}

func (h *APIHandler) GetStation(ctx context.Context, input *StationIDInput) (*struct{ Body StationBody }, error) {
	st, ok := h.svc.Stations.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("station not found")
	}
	return &struct{ Body StationBody }{Body: stationBody(st)}, nil
}

func (h *APIHandler) ReloadStations(ctx context.Context, input *struct{}) (*struct{ Body ReloadBody }, error) {
	if err := h.svc.Stations.Reload(ctx); err != nil {
		return nil, huma.Error502BadGateway("station reload failed", err)
	}
	c := h.svc.Stations.Collection()
	origin, _ := h.svc.Stations.Origin()
	return &struct{ Body ReloadBody }{Body: ReloadBody{Stations: c.Len(), Skipped: c.Skipped(), Origin: origin}}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Sources.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}
