package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	container    string
	dbOK         bool
	strictViews  bool
	wireSelector bool
}

func NewInfoHandler(container string, dbOK, strictViews, wireSelector bool) *InfoHandler {
	return &InfoHandler{container: container, dbOK: dbOK, strictViews: strictViews, wireSelector: wireSelector}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name         string   `json:"name" doc:"Service name"`
	Version      string   `json:"version" doc:"Service version"`
	Container    string   `json:"container" doc:"Page element maps are bound to"`
	DB           bool     `json:"db" doc:"Whether the DuckDB layer mirror is available"`
	StrictViews  bool     `json:"strict_views" doc:"Whether unknown views are rejected"`
	WireSelector bool     `json:"wire_selector" doc:"Whether selector changes reload the map"`
	Features     []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"geojson", "basemaps", "sse"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:         "geo-viewer",
		Version:      "0.1.0",
		Container:    h.container,
		DB:           h.dbOK,
		StrictViews:  h.strictViews,
		WireSelector: h.wireSelector,
		Features:     features,
	}}, nil
}
