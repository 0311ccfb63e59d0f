// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-viewer/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Viewer   *service.Viewer
	Selector *service.Selector
}

// RegisterRoutes registers every REST route with Huma.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type ViewIDInput struct {
	ID string `path:"id" doc:"View ID" example:"mapa"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type LoadViewBody struct {
	Loaded bool                `json:"loaded" doc:"False when the view is unknown and nothing changed"`
	Map    service.MapSnapshot `json:"map" doc:"Map after the load"`
}

type MapFeaturesBody struct {
	Generation uint64                     `json:"generation" doc:"Generation the features belong to"`
	View       string                     `json:"view" doc:"View the features belong to"`
	Features   *geojson.FeatureCollection `json:"features" doc:"Rendered features; draw instructions under properties.leaflet"`
}

type TileURL struct {
	Z   uint32 `json:"z"`
	X   uint32 `json:"x"`
	Y   uint32 `json:"y"`
	URL string `json:"url"`
}

type MapTilesInput struct {
	Radius int  `query:"radius" minimum:"0" maximum:"4" default:"1" doc:"Tiles around the center tile"`
	Retina bool `query:"retina" doc:"Request @2x tiles"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterBasemaps registers basemap listing routes.
func (h *APIHandler) RegisterBasemaps(api huma.API) {
	huma.Get(api, "/api/v1/basemaps", h.GetBasemaps, huma.OperationTags("basemaps"))
}

// RegisterViews registers view listing and loading routes.
func (h *APIHandler) RegisterViews(api huma.API) {
	huma.Get(api, "/api/v1/views", h.GetViews, huma.OperationTags("views"))
	huma.Get(api, "/api/v1/views/{id}", h.GetView, huma.OperationTags("views"))
	huma.Post(api, "/api/v1/views/{id}/load", h.LoadView, huma.OperationTags("views"))
}

// RegisterMap registers current-map routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/features", h.GetMapFeatures, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/tiles", h.GetMapTiles, huma.OperationTags("map"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetBasemaps(ctx context.Context, input *struct{}) (*struct{ Body map[string]service.Basemap }, error) {
	return &struct{ Body map[string]service.Basemap }{Body: h.svc.Viewer.Basemaps().List()}, nil
}

func (h *APIHandler) GetViews(ctx context.Context, input *struct{}) (*struct{ Body []service.ViewConfig }, error) {
	return &struct{ Body []service.ViewConfig }{Body: h.svc.Viewer.Views().List()}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *ViewIDInput) (*struct{ Body service.ViewConfig }, error) {
	view, ok := h.svc.Viewer.Views().Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("view not found")
	}
	return &struct{ Body service.ViewConfig }{Body: view}, nil
}

func (h *APIHandler) LoadView(ctx context.Context, input *ViewIDInput) (*struct{ Body LoadViewBody }, error) {
	load, err := h.svc.Viewer.LoadView(ctx, input.ID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownView) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError("loading view", err)
	}
	return &struct{ Body LoadViewBody }{Body: LoadViewBody{
		Loaded: load != nil,
		Map:    h.svc.Viewer.Snapshot(),
	}}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *struct{}) (*struct{ Body service.MapSnapshot }, error) {
	return &struct{ Body service.MapSnapshot }{Body: h.svc.Viewer.Snapshot()}, nil
}

func (h *APIHandler) GetMapFeatures(ctx context.Context, input *struct{}) (*struct{ Body MapFeaturesBody }, error) {
	m, gen, ok := h.svc.Viewer.Live()
	if !ok {
		return nil, huma.Error404NotFound("no map loaded")
	}

	fc := geojson.NewFeatureCollection()
	for _, layer := range m.Layers() {
		fc.Features = append(fc.Features, layer.FeatureCollection().Features...)
	}
	return &struct{ Body MapFeaturesBody }{Body: MapFeaturesBody{
		Generation: gen,
		View:       m.View().ID,
		Features:   fc,
	}}, nil
}

func (h *APIHandler) GetMapTiles(ctx context.Context, input *MapTilesInput) (*struct{ Body []TileURL }, error) {
	m, ok := h.svc.Viewer.Current()
	if !ok {
		return nil, huma.Error404NotFound("no map loaded")
	}

	basemap := m.Basemap()
	var tiles []TileURL
	for _, t := range m.VisibleTiles(input.Radius) {
		tiles = append(tiles, TileURL{Z: uint32(t.Z), X: t.X, Y: t.Y, URL: basemap.TileURL(t, input.Retina)})
	}
	return &struct{ Body []TileURL }{Body: tiles}, nil
}
