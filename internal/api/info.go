package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/service"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "1.0.0"

type InfoHandler struct {
	dataDir  string
	dbOK     bool
	stations *service.StationService
}

func NewInfoHandler(dataDir string, dbOK bool, stations *service.StationService) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, stations: stations}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name           string    `json:"name" doc:"Service name"`
	Version        string    `json:"version" doc:"Service version"`
	DataDir        string    `json:"data_dir" doc:"Data directory path"`
	DB             bool      `json:"db" doc:"Whether the station search store is available"`
	Stations       int       `json:"stations" doc:"Stations loaded"`
	Skipped        int       `json:"skipped" doc:"Features dropped for bad geometry"`
	StationsOrigin string    `json:"stations_origin" doc:"Where the stations were loaded from"`
	LoadedAt       time.Time `json:"loaded_at" doc:"When the stations were loaded"`
	Features       []string  `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-moisture",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Features: []string{"clustering", "vector-tiles", "datastar", "duckdb"},
	}
	if h.stations != nil {
		c := h.stations.Collection()
		body.Stations, body.Skipped = c.Len(), c.Skipped()
		body.StationsOrigin, body.LoadedAt = h.stations.Origin()
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
