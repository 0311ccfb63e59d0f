package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/geo-viewer/internal/api"
	"github.com/joeblew999/geo-viewer/internal/api/viewer"
	"github.com/joeblew999/geo-viewer/internal/db"
	"github.com/joeblew999/geo-viewer/internal/debug"
	"github.com/joeblew999/geo-viewer/internal/humastar"
	"github.com/joeblew999/geo-viewer/internal/service"
	"github.com/joeblew999/geo-viewer/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	WebDir       string // Path to web/ directory for static files and templates
	DataDir      string // Keeps the DuckDB layer mirror on disk; empty for in-memory
	ViewsFile    string // Optional YAML views file replacing the built-in views
	Container    string
	InitialView  string
	StrictViews  bool
	WireSelector bool
	FetchTimeout time.Duration
	Debug        bool

	// Fetcher overrides the HTTP fetcher (tests).
	Fetcher service.Fetcher
}

// Server is the viewer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	bus      *service.EventBus
	viewer   *service.Viewer
	selector *service.Selector
	renderer *templates.Renderer
}

// New creates a new viewer server.
func New(cfg Config) (*Server, error) {
	if cfg.Debug {
		debug.SetOutput(os.Stderr)
	} else {
		debug.SetOutput(io.Discard)
	}

	views, err := service.LoadViewRegistry(cfg.ViewsFile)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("geo-viewer API", "1.0.0")
	humaConfig.Info.Description = "Map viewer API: views, the live map instance and its rendered GeoJSON layer."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = service.NewHTTPFetcher(cfg.FetchTimeout)
	}

	bus := service.NewEventBus()
	v := service.NewViewer(service.ViewerConfig{
		Container:    cfg.Container,
		StrictViews:  cfg.StrictViews,
		FetchTimeout: cfg.FetchTimeout,
	}, views, service.NewBasemapRegistry(), service.NewRenderer(fetcher), bus)

	selector := service.NewSelector(cfg.InitialView)
	if cfg.WireSelector {
		selector.OnChange(service.LoadViewHook(v))
	}

	// Initialize template renderer for viewer SSE handlers
	var renderer *templates.Renderer
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			renderer = r
			fmt.Printf("Loaded fragment templates from %s\n", fragmentsDir)
		} else {
			log.Printf("server: no fragment templates in %s: %v", fragmentsDir, err)
		}
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		bus:      bus,
		viewer:   v,
		selector: selector,
		renderer: renderer,
	}

	// DuckDB mirror of the live layer
	if conn, err := db.Open(db.Config{DataDir: cfg.DataDir}); err == nil {
		if table, err := db.NewFeatureTable(context.Background(), conn); err == nil {
			s.db = conn
			v.SetSink(table)
		} else {
			log.Printf("server: layer mirror disabled: %v", err)
			conn.Close()
		}
	} else {
		log.Printf("server: duckdb unavailable: %v", err)
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Viewer returns the view loader.
func (s *Server) Viewer() *service.Viewer {
	return s.viewer
}

// LoadInitialView loads the configured initial view, as the page does on load.
func (s *Server) LoadInitialView(ctx context.Context) (*service.Load, error) {
	if s.config.InitialView == "" {
		return nil, nil
	}
	return s.viewer.LoadView(ctx, s.config.InitialView)
}

// Close releases the map and database.
func (s *Server) Close() error {
	err := s.viewer.Close(context.Background())
	if s.db != nil {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, &api.Services{Viewer: s.viewer, Selector: s.selector})
	api.NewInfoHandler(s.viewer.Snapshot().Container, s.db != nil, s.config.StrictViews, s.config.WireSelector).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Register viewer SSE routes using Huma + Datastar SDK
	if s.renderer != nil {
		base := humastar.Handler{Renderer: s.renderer}
		viewer.NewEventHandler(s.viewer, s.bus, base).RegisterRoutes(s.humaAPI)
		viewer.NewSelectorHandler(s.selector, s.viewer, base).RegisterRoutes(s.humaAPI)
	}

	// Static files and templates
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/viewer", http.StatusFound)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir == "" {
		http.Error(w, "web directory not configured", http.StatusNotFound)
		return
	}
	if s.config.Debug && s.renderer != nil {
		if err := s.renderer.Reload(filepath.Join(s.config.WebDir, "templates", "fragments")); err != nil {
			log.Printf("server: reloading fragments: %v", err)
		}
	}
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}
