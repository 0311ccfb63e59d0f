package service

import (
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"
)

// MapInstance is one live map bound to a page container.
// Layers and controls can only be added until Destroy is called.
type MapInstance struct {
	id        string
	container string
	view      ViewConfig
	basemap   Basemap

	mu        sync.RWMutex
	layers    []*RenderedLayer
	controls  []Control
	destroyed bool
}

func newMapInstance(container string, view ViewConfig, basemap Basemap) *MapInstance {
	return &MapInstance{
		id:        uuid.NewString(),
		container: container,
		view:      view,
		basemap:   basemap,
	}
}

// ID returns the instance identifier.
func (m *MapInstance) ID() string { return m.id }

// View returns the view the instance was created for.
func (m *MapInstance) View() ViewConfig { return m.view }

// Basemap returns the instance's base tile layer.
func (m *MapInstance) Basemap() Basemap { return m.basemap }

// AddLayer adds a rendered layer on top of the basemap.
func (m *MapInstance) AddLayer(layer *RenderedLayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrMapDestroyed
	}
	m.layers = append(m.layers, layer)
	return nil
}

// AddControl attaches an overlay control.
func (m *MapInstance) AddControl(c Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrMapDestroyed
	}
	m.controls = append(m.controls, c)
	return nil
}

// Destroy releases the instance's layers and controls.
func (m *MapInstance) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrMapDestroyed
	}
	m.destroyed = true
	m.layers = nil
	m.controls = nil
	return nil
}

// Destroyed reports whether Destroy has been called.
func (m *MapInstance) Destroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.destroyed
}

// Layers returns the rendered layers in the order they were added.
func (m *MapInstance) Layers() []*RenderedLayer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*RenderedLayer, len(m.layers))
	copy(result, m.layers)
	return result
}

// VisibleTiles returns the basemap tiles around the initial center at the
// initial zoom, radius tiles in each direction. Columns wrap around the
// antimeridian; rows are clamped to the world.
func (m *MapInstance) VisibleTiles(radius int) []maptile.Tile {
	z := maptile.Zoom(m.view.Zoom)
	center := maptile.At(m.view.Center.Point(), z)
	n := int64(1) << uint(z)

	var tiles []maptile.Tile
	seen := make(map[maptile.Tile]bool)
	for dy := -radius; dy <= radius; dy++ {
		y := int64(center.Y) + int64(dy)
		if y < 0 || y >= n {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := (int64(center.X) + int64(dx)%n + n) % n
			t := maptile.New(uint32(x), uint32(y), z)
			if !seen[t] {
				seen[t] = true
				tiles = append(tiles, t)
			}
		}
	}
	return tiles
}

func (m *MapInstance) snapshot(gen uint64) MapSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	features := 0
	for _, l := range m.layers {
		features += len(l.Features)
	}
	controls := make([]Control, len(m.controls))
	copy(controls, m.controls)

	return MapSnapshot{
		State:      StateMapReady,
		Generation: gen,
		ID:         m.id,
		Container:  m.container,
		View:       m.view.ID,
		Center:     m.view.Center,
		Zoom:       m.view.Zoom,
		MinZoom:    m.view.MinZoom,
		MaxZoom:    m.view.MaxZoom,
		Basemap:    m.basemap.Name,
		Controls:   controls,
		Layers:     len(m.layers),
		Features:   features,
		Rendered:   len(m.layers) > 0,
	}
}
