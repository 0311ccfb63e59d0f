package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultContainer is the page element maps are bound to.
const DefaultContainer = "mapdiv"

// ViewerConfig configures the view loader.
type ViewerConfig struct {
	Container    string
	StrictViews  bool          // unknown view IDs return ErrUnknownView instead of doing nothing
	FetchTimeout time.Duration // zero disables the per-load deadline
}

// LayerSink mirrors the live rendered layer somewhere else.
// Calls are serialized with map lifecycle transitions.
type LayerSink interface {
	Replace(ctx context.Context, view string, gen uint64, layer *RenderedLayer) error
	Clear(ctx context.Context) error
}

// Viewer owns at most one live MapInstance and swaps it on every view load.
//
// Each load bumps a generation counter. A render that finishes after a newer
// load is discarded, so a slow fetch for an old view can never draw onto the
// current map.
type Viewer struct {
	cfg      ViewerConfig
	views    *ViewRegistry
	basemaps *BasemapRegistry
	renderer *Renderer
	bus      *EventBus
	sink     LayerSink

	mu         sync.Mutex
	state      MapState
	current    *MapInstance
	generation uint64
	cancel     context.CancelFunc
	lastErr    error
}

// NewViewer creates a viewer in the NoMap state. bus may be nil.
func NewViewer(cfg ViewerConfig, views *ViewRegistry, basemaps *BasemapRegistry, renderer *Renderer, bus *EventBus) *Viewer {
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}
	return &Viewer{
		cfg:      cfg,
		views:    views,
		basemaps: basemaps,
		renderer: renderer,
		bus:      bus,
		state:    StateNoMap,
	}
}

// SetSink registers a mirror for the live layer.
func (v *Viewer) SetSink(s LayerSink) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sink = s
}

// Load tracks one LoadView call until its render finishes.
type Load struct {
	View       ViewConfig
	Generation uint64
	Map        *MapInstance

	done   chan struct{}
	result RenderResult
}

// Done is closed once the render has finished, failed or been discarded.
func (l *Load) Done() <-chan struct{} { return l.done }

// Wait blocks until the render finishes or ctx ends.
func (l *Load) Wait(ctx context.Context) (RenderResult, error) {
	select {
	case <-l.done:
		return l.result, nil
	case <-ctx.Done():
		return RenderResult{}, ctx.Err()
	}
}

// LoadView replaces the current map with a new one for viewID and starts
// rendering its data. The returned Load completes asynchronously; the map is
// live (and empty) as soon as LoadView returns.
//
// An unknown viewID leaves everything untouched and returns (nil, nil), or
// ErrUnknownView when StrictViews is set.
func (v *Viewer) LoadView(ctx context.Context, viewID string) (*Load, error) {
	view, ok := v.views.Get(viewID)
	if !ok {
		if v.cfg.StrictViews {
			return nil, fmt.Errorf("%w: %q", ErrUnknownView, viewID)
		}
		log.Printf("viewer: ignoring unknown view %q", viewID)
		return nil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.teardownLocked(ctx); err != nil {
		log.Printf("viewer: teardown: %v", err)
	}

	v.generation++
	gen := v.generation
	m := newMapInstance(v.cfg.Container, view, v.basemaps.Default())
	v.current = m
	v.state = StateMapReady
	v.lastErr = nil

	fetchCtx, cancel := v.fetchContext(ctx)
	v.cancel = cancel

	load := &Load{View: view, Generation: gen, Map: m, done: make(chan struct{})}
	target := &generationTarget{viewer: v, gen: gen, m: m}
	go func() {
		defer cancel()
		res := v.renderer.FetchAndRender(fetchCtx, view.DataURL, target)
		res.Generation = gen
		v.finish(res)
		load.result = res
		close(load.done)
	}()

	if err := m.AddControl(Control{Kind: "layers", Basemaps: v.basemaps.Names()}); err != nil {
		log.Printf("viewer: attaching layers control: %v", err)
	}

	log.Printf("viewer: loaded view %q (generation %d, map %s)", view.ID, gen, m.ID())
	v.publish("created", m.ID(), gen, view.ID)
	return load, nil
}

// fetchContext detaches the fetch from the caller's cancellation so an HTTP
// request that triggered the load can return before the data arrives.
func (v *Viewer) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if v.cfg.FetchTimeout > 0 {
		return context.WithTimeout(base, v.cfg.FetchTimeout)
	}
	return context.WithCancel(base)
}

// teardownLocked moves MapReady to NoMap. From NoMap it reports ErrNoMap.
func (v *Viewer) teardownLocked(ctx context.Context) error {
	if v.state != StateMapReady || v.current == nil {
		return ErrNoMap
	}

	old := v.current
	v.current = nil
	v.state = StateNoMap
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.sink != nil {
		if err := v.sink.Clear(ctx); err != nil {
			log.Printf("viewer: clearing layer mirror: %v", err)
		}
	}

	if err := old.Destroy(); err != nil {
		return fmt.Errorf("destroying map %s: %w", old.ID(), err)
	}
	v.publish("destroyed", old.ID(), v.generation, old.View().ID)
	return nil
}

// Close tears down the current map, if any.
func (v *Viewer) Close(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	err := v.teardownLocked(ctx)
	if errors.Is(err, ErrNoMap) {
		return nil
	}
	return err
}

// generationTarget adds a layer only while its load is still the current one.
type generationTarget struct {
	viewer *Viewer
	gen    uint64
	m      *MapInstance
}

func (t *generationTarget) AddLayer(layer *RenderedLayer) error {
	v := t.viewer
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.gen != v.generation || v.current != t.m {
		return ErrStaleRender
	}
	if err := t.m.AddLayer(layer); err != nil {
		return err
	}
	if v.sink != nil {
		if err := v.sink.Replace(context.Background(), t.m.View().ID, t.gen, layer); err != nil {
			log.Printf("viewer: mirroring layer: %v", err)
		}
	}
	return nil
}

func (v *Viewer) finish(res RenderResult) {
	v.mu.Lock()
	defer v.mu.Unlock()

	current := res.Generation == v.generation && v.current != nil
	switch {
	case res.Stale || (!current && res.Err != nil):
		log.Printf("viewer: discarded render of %s (generation %d superseded by %d)", res.URL, res.Generation, v.generation)
	case res.Err != nil:
		v.lastErr = res.Err
		log.Printf("viewer: render of %s failed: %v", res.URL, res.Err)
		v.publish("error", v.current.ID(), res.Generation, v.current.View().ID)
	default:
		log.Printf("viewer: rendered %d features from %s", res.Features, res.URL)
		if current {
			v.publish("rendered", v.current.ID(), res.Generation, v.current.View().ID)
		}
	}
}

func (v *Viewer) publish(action, id string, gen uint64, view string) {
	if v.bus == nil {
		return
	}
	v.bus.Publish(Event{Resource: "map", Action: action, ID: id, Generation: gen, View: view})
}

// State returns the lifecycle state.
func (v *Viewer) State() MapState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Generation returns the number of view loads so far.
func (v *Viewer) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// Current returns the live map instance, if any.
func (v *Viewer) Current() (*MapInstance, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.current != nil
}

// Live returns the live map instance together with the generation it belongs to.
func (v *Viewer) Live() (*MapInstance, uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.generation, v.current != nil
}

// Snapshot describes the current map.
func (v *Viewer) Snapshot() MapSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil {
		return MapSnapshot{State: StateNoMap, Generation: v.generation, Controls: []Control{}}
	}
	s := v.current.snapshot(v.generation)
	if v.lastErr != nil {
		s.LastError = v.lastErr.Error()
	}
	return s
}

// Views returns the view registry.
func (v *Viewer) Views() *ViewRegistry { return v.views }

// Basemaps returns the basemap registry.
func (v *Viewer) Basemaps() *BasemapRegistry { return v.basemaps }
