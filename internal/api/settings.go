package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/service"
)

type SettingsOutput struct {
	Body service.Settings
}

// RegisterSettings registers layer settings routes.
func (h *APIHandler) RegisterSettings(api huma.API) {
	huma.Get(api, "/api/v1/map/settings", h.GetSettings, huma.OperationTags("settings"))
	huma.Put(api, "/api/v1/map/settings", h.PutSettings, huma.OperationTags("settings"))
}

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	return &SettingsOutput{Body: h.svc.Settings.Get()}, nil
}

func (h *APIHandler) PutSettings(ctx context.Context, input *struct{ Body service.Settings }) (*SettingsOutput, error) {
	updated, err := h.svc.Settings.Update(input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	h.log.Info("layer settings updated",
		"size_scale", updated.SizeScale,
		"clustering", updated.Clustering,
		"pickable", updated.Pickable,
	)
	return &SettingsOutput{Body: updated}, nil
}
