package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-moisture/internal/cluster"
	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/logger"
	"github.com/joeblew999/plat-moisture/internal/server"
	"github.com/joeblew999/plat-moisture/internal/station"
	"github.com/joeblew999/plat-moisture/internal/tiler"
)

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --data-dir, --web-dir, --config, --stations-url
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for station sources, settings and DuckDB" default:".data"`
	WebDir      string `doc:"Path to web/ directory" default:"web"`
	Config      string `doc:"Map configuration YAML" default:"soilmap.yaml"`
	StationsURL string `doc:"Upstream data API base URL; empty loads from data-dir/sources"`
}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		DataDir:     opts.DataDir,
		WebDir:      opts.WebDir,
		ConfigPath:  opts.Config,
		StationsURL: opts.StationsURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	// .env is optional
	_ = godotenv.Load()
	log := logger.Setup()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv := newServer(opts)
			defer srv.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv.Start(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-moisture map server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Map:     %s/map\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", "error", err)
				os.Exit(1)
			}
		})
	})

	cli.Root().Use = "soilmap"
	cli.Root().Short = "Soil moisture station map server"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// clusters subcommand: cluster a GeoJSON file offline
	clustersCmd := &cobra.Command{
		Use:   "clusters <stations.geojson>",
		Short: "Cluster a station GeoJSON file and print the features for one zoom",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			zoom, _ := cmd.Flags().GetFloat64("zoom")
			sizeScale, _ := cmd.Flags().GetFloat64("size-scale")
			maxZoom, _ := cmd.Flags().GetInt("max-zoom")
			tilesDir, _ := cmd.Flags().GetString("tiles")

			if err := runClusters(args[0], zoom, sizeScale, maxZoom, tilesDir); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	clustersCmd.Flags().Float64P("zoom", "z", 5, "Zoom to list clusters at")
	clustersCmd.Flags().Float64("size-scale", 30, "Icon size scale; the cluster radius is size-scale*sqrt(2)")
	clustersCmd.Flags().Int("max-zoom", 16, "Highest zoom clusters are built for")
	clustersCmd.Flags().String("tiles", "", "Also write {z}/{x}/{y}.mvt tiles for zooms 0..max-zoom into this directory")
	cli.Root().AddCommand(clustersCmd)

	cli.Run()
}

func runClusters(path string, zoom, sizeScale float64, maxZoom int, tilesDir string) error {
	c, err := station.LoadFile(path)
	if err != nil {
		return err
	}
	radius := layer.Props{SizeScale: sizeScale}.Radius()
	idx := cluster.Build(c.Points(), cluster.Options{MaxZoom: maxZoom, Radius: radius})

	world := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	fc := geojson.NewFeatureCollection()
	for _, f := range idx.QueryVisible(world, zoom) {
		gf := f.GeoJSON()
		gf.Properties["icon"] = layer.IconName(f.Count)
		gf.Properties["size"] = layer.IconSize(f.Count)
		fc.Append(gf)
	}
	out, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "%d stations (%d skipped), %d features at zoom %v\n",
		c.Len(), c.Skipped(), len(fc.Features), zoom)

	if tilesDir != "" {
		n, err := tiler.ExportDir(idx, tilesDir, 0, maxZoom, tiler.DefaultLayer)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d tiles to %s\n", n, tilesDir)
	}
	return nil
}
