// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Stations *service.StationService
	Settings *service.SettingsService
	Sessions *service.SessionManager
	Tiles    *service.TileService
	Sources  *service.SourceService
	Logger   *slog.Logger
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
	log *slog.Logger
}

func NewAPIHandler(svc *Services) *APIHandler {
	log := svc.Logger
	if log == nil {
		log = slog.Default()
	}
	return &APIHandler{svc: svc, log: log}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}
