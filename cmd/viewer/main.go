package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geo-viewer/internal/server"
	"github.com/joeblew999/geo-viewer/internal/service"
)

// Options defines all CLI flags and env vars for the viewer server.
// Flags: --host, --port, --web-dir, --data-dir, --views-file, --container, --initial-view,
// --strict-views, --wire-selector, --fetch-timeout, --debug
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_WEB_DIR, SERVICE_DATA_DIR, SERVICE_VIEWS_FILE, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	WebDir       string `doc:"Path to web/ directory" default:"web"`
	DataDir      string `doc:"Directory for the DuckDB layer mirror (empty keeps it in memory)"`
	ViewsFile    string `doc:"YAML file replacing the built-in views"`
	Container    string `doc:"Page element maps are bound to" default:"mapdiv"`
	InitialView  string `doc:"View loaded at startup (empty for none)" default:"mapa"`
	StrictViews  bool   `doc:"Reject unknown view IDs instead of ignoring them"`
	WireSelector bool   `doc:"Reload the map when the view selector changes"`
	FetchTimeout int    `doc:"Seconds allowed for a view's data fetch (0 for no limit)" default:"30"`
	Debug        bool   `doc:"Verbose per-feature logging and template reload"`
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		WebDir:       opts.WebDir,
		DataDir:      opts.DataDir,
		ViewsFile:    opts.ViewsFile,
		Container:    opts.Container,
		InitialView:  opts.InitialView,
		StrictViews:  opts.StrictViews,
		WireSelector: opts.WireSelector,
		FetchTimeout: time.Duration(opts.FetchTimeout) * time.Second,
		Debug:        opts.Debug,
	})
}

func mustServer(opts *Options) *server.Server {
	srv, err := newServer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

// renderSummary is what the render subcommand prints.
type renderSummary struct {
	View       string              `yaml:"view"`
	Generation uint64              `yaml:"generation"`
	URL        string              `yaml:"url"`
	Features   int                 `yaml:"features"`
	Error      string              `yaml:"error,omitempty"`
	Map        service.MapSnapshot `yaml:"map"`
}

// renderView loads id and waits for its render. A failed fetch is reported in
// the summary; only an unusable view is an error.
func renderView(ctx context.Context, srv *server.Server, id string) (*renderSummary, error) {
	load, err := srv.Viewer().LoadView(ctx, id)
	if err != nil {
		return nil, err
	}
	if load == nil {
		return nil, fmt.Errorf("unknown view %q", id)
	}
	res, err := load.Wait(ctx)
	if err != nil {
		return nil, err
	}

	summary := &renderSummary{
		View:       load.View.ID,
		Generation: res.Generation,
		URL:        res.URL,
		Features:   res.Features,
		Map:        srv.Viewer().Snapshot(),
	}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}
	return summary, nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := mustServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geo-viewer server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Views:   %d (initial %q)\n", len(srv.Viewer().Views().List()), opts.InitialView)
			fmt.Println()
			fmt.Printf("  Page:    %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if _, err := srv.LoadInitialView(context.Background()); err != nil {
				log.Printf("initial view: %v", err)
			}

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if err := srv.Close(); err != nil {
				log.Printf("shutdown: %v", err)
			}
		})
	})

	cli.Root().Use = "viewer"
	cli.Root().Short = "Web map viewer for GeoJSON station layers"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := mustServer(opts)
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

	// views subcommand: print the view registry as a views file
	viewsCmd := &cobra.Command{
		Use:   "views",
		Short: "Print the configured views as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			views, err := service.LoadViewRegistry(opts.ViewsFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			output, err := yaml.Marshal(views)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling views: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(output))
		}),
	}
	cli.Root().AddCommand(viewsCmd)

	// render subcommand: load one view headless and summarize the result
	renderCmd := &cobra.Command{
		Use:   "render <view>",
		Short: "Load a view, render its data and print a summary",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.InitialView = ""
			srv := mustServer(opts)

			summary, err := renderView(context.Background(), srv, args[0])
			if cerr := srv.Close(); cerr != nil {
				log.Printf("shutdown: %v", cerr)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			output, err := yaml.Marshal(summary)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling summary: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(output))
			if summary.Error != "" {
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(renderCmd)

	cli.Run()
}
