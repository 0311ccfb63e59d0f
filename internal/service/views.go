package service

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Built-in view data sources. Replace them with a views file for a real deployment.
const (
	AmtrakStationsURL  = "https://raw.githubusercontent.com/gisdata-us/transportation/main/Amtrak_Stations.geojson"
	TransitStationsURL = "https://raw.githubusercontent.com/gisdata-us/transportation/main/Transit_Stations_ZipCode.geojson"
)

// ViewRegistry is the closed set of views the selector can load.
type ViewRegistry struct {
	views map[string]ViewConfig
}

// NewViewRegistry creates a registry holding the built-in views.
func NewViewRegistry() *ViewRegistry {
	return newViewRegistry(defaultViews())
}

func newViewRegistry(views []ViewConfig) *ViewRegistry {
	r := &ViewRegistry{views: make(map[string]ViewConfig, len(views))}
	for _, v := range views {
		r.views[v.ID] = v
	}
	return r
}

func defaultViews() []ViewConfig {
	return []ViewConfig{
		{
			ID:      "mapa",
			Title:   "Amtrak stations",
			Center:  LatLon{Lat: 40.811562, Lon: -100.558817},
			Zoom:    4,
			MinZoom: 3,
			MaxZoom: 18,
			DataURL: AmtrakStationsURL,
		},
		{
			ID:      "mapb",
			Title:   "Transit stations",
			Center:  LatLon{Lat: 45.50, Lon: -73.58},
			Zoom:    3,
			MinZoom: 3,
			MaxZoom: 18,
			DataURL: TransitStationsURL,
		},
	}
}

// MaxViewZoom is the deepest zoom a view may use.
const MaxViewZoom = 22

func (v ViewConfig) validateViewport() error {
	switch {
	case v.MinZoom < 0 || v.MaxZoom > MaxViewZoom:
		return fmt.Errorf("zoom bounds [%d,%d] outside [0,%d]", v.MinZoom, v.MaxZoom, MaxViewZoom)
	case v.MinZoom > v.MaxZoom:
		return fmt.Errorf("minZoom %d > maxZoom %d", v.MinZoom, v.MaxZoom)
	case v.Zoom < v.MinZoom || v.Zoom > v.MaxZoom:
		return fmt.Errorf("zoom %d outside [%d,%d]", v.Zoom, v.MinZoom, v.MaxZoom)
	case v.Center.Lat < -90 || v.Center.Lat > 90 || v.Center.Lon < -180 || v.Center.Lon > 180:
		return fmt.Errorf("center %v,%v is not a valid position", v.Center.Lat, v.Center.Lon)
	}
	return nil
}

// viewsFile is the YAML layout accepted by LoadViewRegistry.
type viewsFile struct {
	Views []ViewConfig `yaml:"views"`
}

// LoadViewRegistry reads a YAML views file. An empty path yields the built-in views.
func LoadViewRegistry(path string) (*ViewRegistry, error) {
	if path == "" {
		return NewViewRegistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading views file: %w", err)
	}

	var f viewsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing views file: %w", err)
	}
	if len(f.Views) == 0 {
		return nil, fmt.Errorf("views file %s defines no views", path)
	}

	seen := make(map[string]bool, len(f.Views))
	for _, v := range f.Views {
		if v.ID == "" {
			return nil, fmt.Errorf("views file %s: view without id", path)
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("views file %s: duplicate view %q", path, v.ID)
		}
		if v.DataURL == "" {
			return nil, fmt.Errorf("views file %s: view %q has no dataUrl", path, v.ID)
		}
		if err := v.validateViewport(); err != nil {
			return nil, fmt.Errorf("views file %s: view %q: %w", path, v.ID, err)
		}
		seen[v.ID] = true
	}

	return newViewRegistry(f.Views), nil
}

// Get returns a view by ID.
func (r *ViewRegistry) Get(id string) (ViewConfig, bool) {
	v, ok := r.views[id]
	return v, ok
}

// List returns all views sorted by ID.
func (r *ViewRegistry) List() []ViewConfig {
	result := make([]ViewConfig, 0, len(r.views))
	for _, v := range r.views {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// MarshalYAML writes the registry in the views file layout.
func (r *ViewRegistry) MarshalYAML() (any, error) {
	return viewsFile{Views: r.List()}, nil
}
