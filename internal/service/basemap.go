package service

import (
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// DefaultBasemap is the basemap every new map instance starts with.
const DefaultBasemap = "CartoDB"

// BasemapRegistry is the fixed set of named tile layers.
type BasemapRegistry struct {
	basemaps    map[string]Basemap
	defaultName string
}

// NewBasemapRegistry creates the registry with the built-in basemaps.
func NewBasemapRegistry() *BasemapRegistry {
	return &BasemapRegistry{
		basemaps: map[string]Basemap{
			DefaultBasemap: {
				Name:            DefaultBasemap,
				TileURLTemplate: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
				Attribution:     `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
				Subdomains:      "abcd",
			},
		},
		defaultName: DefaultBasemap,
	}
}

// List returns all basemaps keyed by name.
func (r *BasemapRegistry) List() map[string]Basemap {
	result := make(map[string]Basemap, len(r.basemaps))
	for k, v := range r.basemaps {
		result[k] = v
	}
	return result
}

// Names returns basemap names in sorted order.
func (r *BasemapRegistry) Names() []string {
	names := make([]string, 0, len(r.basemaps))
	for name := range r.basemaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a basemap by name.
func (r *BasemapRegistry) Get(name string) (Basemap, bool) {
	b, ok := r.basemaps[name]
	return b, ok
}

// Default returns the basemap new maps are created with.
func (r *BasemapRegistry) Default() Basemap {
	return r.basemaps[r.defaultName]
}

// TileURL expands the template for a single tile. The subdomain is picked
// round-robin from Subdomains by tile position, as Leaflet does.
func (b Basemap) TileURL(t maptile.Tile, retina bool) string {
	s := ""
	if b.Subdomains != "" {
		idx := int(t.X+t.Y) % len(b.Subdomains)
		s = b.Subdomains[idx : idx+1]
	}
	r := ""
	if retina {
		r = "@2x"
	}
	return strings.NewReplacer(
		"{s}", s,
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{r}", r,
	).Replace(b.TileURLTemplate)
}
