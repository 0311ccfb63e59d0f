package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-viewer/internal/humastar"
	"github.com/joeblew999/geo-viewer/internal/service"
)

// SelectorHandler serves the view select control.
type SelectorHandler struct {
	humastar.Handler
	selector *service.Selector
	viewer   *service.Viewer
}

// NewSelectorHandler creates a new selector handler.
func NewSelectorHandler(selector *service.Selector, viewer *service.Viewer, handler humastar.Handler) *SelectorHandler {
	return &SelectorHandler{Handler: handler, selector: selector, viewer: viewer}
}

func (h *SelectorHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/views/select", h.ViewOptions, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/selector", h.Change, huma.OperationTags("viewer"))
}

// ViewOptions streams the known views as select options.
func (h *SelectorHandler) ViewOptions(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.RenderSelect(h.options()), "#view-select")
		sse.Signals(map[string]any{"view": h.selector.Value()})
	}), nil
}

// Change receives the {view} signal from the select's change event.
func (h *SelectorHandler) Change(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	value := signals.String("view")

	return h.Stream(func(sse humastar.SSE) {
		if err := h.selector.Change(ctx, value); err != nil {
			sse.Error(err.Error())
			return
		}
		snap := h.viewer.Snapshot()
		sse.Signals(stateSignals(snap))
		sse.Patch(h.Fragment("map-status", snap), "#map-status")
	}), nil
}

func (h *SelectorHandler) options() []humastar.SelectOptionData {
	current := h.selector.Value()
	views := h.viewer.Views().List()
	opts := make([]humastar.SelectOptionData, 0, len(views))
	for _, v := range views {
		label := v.Title
		if label == "" {
			label = v.ID
		}
		opts = append(opts, humastar.SelectOptionData{Value: v.ID, Label: label, Selected: v.ID == current})
	}
	return opts
}
