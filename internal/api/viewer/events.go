// Package viewer contains the Datastar SSE handlers behind the viewer page.
package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-viewer/internal/humastar"
	"github.com/joeblew999/geo-viewer/internal/service"
)

// EventHandler streams map lifecycle events to the viewer page via SSE.
type EventHandler struct {
	humastar.Handler
	viewer *service.Viewer
	bus    *service.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(viewer *service.Viewer, bus *service.EventBus, handler humastar.Handler) *EventHandler {
	return &EventHandler{Handler: handler, viewer: viewer, bus: bus}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events,
		huma.OperationTags("viewer"),
	)
}

// Events sends the current map state, then one update per map event until
// the client disconnects.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		h.sendState(sse)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Resource != "map" {
					continue
				}
				h.sendState(sse)
				sse.DispatchCustomEvent("map-changed", map[string]any{
					"action":     ev.Action,
					"id":         ev.ID,
					"generation": ev.Generation,
					"view":       ev.View,
				})
			}
		}
	}), nil
}

func (h *EventHandler) sendState(sse humastar.SSE) {
	snap := h.viewer.Snapshot()
	sse.Signals(stateSignals(snap))
	sse.Patch(h.Fragment("map-status", snap), "#map-status")
}

// stateSignals drive the page's map effect. rendered and features change when
// a fetch lands, so the effect re-runs without a new generation.
func stateSignals(snap service.MapSnapshot) map[string]any {
	return map[string]any{
		"generation": snap.Generation,
		"rendered":   snap.Rendered,
		"features":   snap.Features,
		"error":      snap.LastError,
	}
}
