package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-moisture/internal/api"
	"github.com/joeblew999/plat-moisture/internal/api/mapui"
	"github.com/joeblew999/plat-moisture/internal/config"
	"github.com/joeblew999/plat-moisture/internal/db"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/logger"
	"github.com/joeblew999/plat-moisture/internal/metrics"
	"github.com/joeblew999/plat-moisture/internal/service"
	"github.com/joeblew999/plat-moisture/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	DataDir     string
	WebDir      string // Path to web/ directory for static files and templates
	ConfigPath  string // Map configuration YAML; missing means defaults
	StationsURL string // Upstream data API; overrides the config file
}

// Server is the soil moisture map HTTP server.
type Server struct {
	config   Config
	mapCfg   config.Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	bus      *service.EventBus
	renderer *templates.Renderer
	log      *slog.Logger
}

// New creates a new map server. Stations are not loaded until Start.
func New(cfg Config) (*Server, error) {
	log := logger.L()

	mapCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.StationsURL != "" {
		mapCfg.Upstream.BaseURL = cfg.StationsURL
	}

	icons, err := layer.ResolveIconMapping(mapCfg.Layer.IconMapping)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-moisture API", api.Version)
	humaConfig.Info.Description = "Soil moisture station map: clustered station layer, map sessions, picking and vector tiles."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(api.Links()))

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mapCfg:  mapCfg,
		mux:     mux,
		humaAPI: humaAPI,
		bus:     service.NewEventBus(),
		log:     log,
	}

	// DuckDB backs station search; the map works without it.
	conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "stations"})
	if err != nil {
		log.Warn("duckdb unavailable, station search falls back to memory", "error", err)
	} else {
		s.db = conn
	}

	sources := service.NewSourceService(cfg.DataDir)
	settings := service.NewSettingsService(cfg.DataDir, service.Settings{
		SizeScale:  mapCfg.Layer.SizeScale,
		Clustering: mapCfg.Layer.Clustering,
		Pickable:   true,
		MapStyle:   mapCfg.Layer.MapStyle,
		IconAtlas:  mapCfg.Layer.IconAtlas,
	}, s.bus)
	stations := service.NewStationService(service.StationOptions{
		Sources:     sources,
		UpstreamURL: mapCfg.Upstream.BaseURL,
		Client:      &http.Client{Timeout: mapCfg.Upstream.Timeout},
		DB:          s.db,
		Bus:         s.bus,
		Logger:      log,
	})

	s.services = &api.Services{
		Stations: stations,
		Settings: settings,
		Sources:  sources,
		Tiles:    service.NewTileService(stations, settings, mapCfg.Layer.MaxZoom),
		Sessions: service.NewSessionManager(service.SessionConfig{
			InitialView:   mapCfg.InitialView.Viewport(),
			MaxZoom:       mapCfg.Layer.MaxZoom,
			SelectZoom:    mapCfg.Camera.SelectZoom,
			Tolerance:     mapCfg.Camera.Tolerance,
			FlyDuration:   mapCfg.Camera.FlyDuration,
			Easing:        mapCfg.Camera.Easing,
			FrameInterval: mapCfg.Camera.FrameInterval(),
			Icons:         icons,
		}, mapCfg.Sessions.IdleTTL, stations, settings, s.bus, log),
		Logger: log,
	}

	// Fragments from web/ override the embedded ones while developing.
	s.renderer, err = templates.New()
	if err != nil {
		return nil, err
	}
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if _, statErr := os.Stat(fragmentsDir); statErr == nil {
			if r, err := templates.NewFromDir(fragmentsDir); err == nil {
				s.renderer = r
				log.Info("loaded fragment templates", "dir", fragmentsDir)
			} else {
				log.Warn("fragment templates not loaded", "dir", fragmentsDir, "error", err)
			}
		}
	}

	s.routes()
	s.handler = logger.AccessMiddleware(log)(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Start loads the stations and runs the idle session sweeper until ctx is
// done. A failed initial load is logged; the map serves an empty layer
// until a reload succeeds.
func (s *Server) Start(ctx context.Context) {
	if err := s.services.Stations.Reload(ctx); err != nil {
		s.log.Error("initial station load failed", "error", err)
	} else {
		c := s.services.Stations.Collection()
		origin, _ := s.services.Stations.Origin()
		s.log.Info("stations loaded", "count", c.Len(), "skipped", c.Skipped(), "origin", origin)
	}
	go s.services.Sessions.Run(ctx)
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.Stations).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes for the map page
	mapui.New(mapui.Options{
		Sessions:      s.services.Sessions,
		Stations:      s.services.Stations,
		Bus:           s.bus,
		Renderer:      s.renderer,
		FrameInterval: s.mapCfg.Camera.FrameInterval(),
		Logger:        s.log,
	}).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())

	// Pre-rendered tiles written by `soilmap clusters --tiles`
	tilesDir := filepath.Join(s.config.DataDir, "tiles")
	s.mux.Handle("/tiles/", http.StripPrefix("/tiles/", s.handleTiles(tilesDir)))

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/map", s.handleMap)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service":  "plat-moisture",
		"status":   "running",
		"stations": s.services.Stations.Collection().Len(),
		"sessions": s.services.Sessions.Len(),
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.config.WebDir, "templates", "map.html"))
}

func (s *Server) handleTiles(tilesDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Encoding")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if filepath.Ext(r.URL.Path) == ".mvt" {
			w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
			w.Header().Set("Content-Encoding", "gzip")
		}
		http.FileServer(http.Dir(tilesDir)).ServeHTTP(w, r)
	})
}
