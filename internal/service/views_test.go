package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewViewRegistry(t *testing.T) {
	r := NewViewRegistry()

	views := r.List()
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if views[0].ID != "mapa" || views[1].ID != "mapb" {
		t.Errorf("order = %s,%s", views[0].ID, views[1].ID)
	}

	a, ok := r.Get("mapa")
	if !ok {
		t.Fatal("mapa missing")
	}
	if a.Zoom != 4 || !strings.HasSuffix(a.DataURL, "Amtrak_Stations.geojson") {
		t.Errorf("unexpected mapa: %+v", a)
	}

	if _, ok := r.Get("nope"); ok {
		t.Error("unexpected view nope")
	}
}

func TestLoadViewRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	content := `views:
  - id: alps
    title: Alps huts
    center: {lat: 46.5, lon: 9.8}
    zoom: 7
    minZoom: 5
    maxZoom: 16
    dataUrl: https://example.com/huts.geojson
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadViewRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := r.Get("alps")
	if !ok {
		t.Fatal("alps missing")
	}
	if v.Center.Lat != 46.5 || v.Center.Lon != 9.8 || v.Zoom != 7 {
		t.Errorf("unexpected view: %+v", v)
	}
	if _, ok := r.Get("mapa"); ok {
		t.Error("file should replace the built-in views")
	}
}

func TestLoadViewRegistryEmptyPath(t *testing.T) {
	r, err := LoadViewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.List()) != 2 {
		t.Error("expected built-in views")
	}
}

func TestLoadViewRegistryRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"empty", "views: []\n", "no views"},
		{"missing id", "views:\n  - dataUrl: x\n", "without id"},
		{"duplicate", "views:\n  - {id: a, dataUrl: x}\n  - {id: a, dataUrl: y}\n", "duplicate"},
		{"no url", "views:\n  - {id: a}\n", "no dataUrl"},
		{"zoom", "views:\n  - {id: a, dataUrl: x, minZoom: 9, maxZoom: 3}\n", "minZoom"},
		{"zoom above max", "views:\n  - {id: a, dataUrl: x, zoom: 40, minZoom: 3, maxZoom: 18}\n", "zoom 40 outside"},
		{"zoom below min", "views:\n  - {id: a, dataUrl: x, zoom: 1, minZoom: 3, maxZoom: 18}\n", "zoom 1 outside"},
		{"negative min", "views:\n  - {id: a, dataUrl: x, zoom: 0, minZoom: -1, maxZoom: 18}\n", "zoom bounds"},
		{"max too deep", "views:\n  - {id: a, dataUrl: x, zoom: 4, minZoom: 3, maxZoom: 30}\n", "zoom bounds"},
		{"bad center", "views:\n  - {id: a, dataUrl: x, center: {lat: 95, lon: 0}}\n", "not a valid position"},
		{"yaml", "views: [\n", "parsing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "views.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadViewRegistry(path)
			if err == nil || !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("expected error containing %q, got %v", tt.errPart, err)
			}
		})
	}
}

func TestViewRegistryYAMLIsLoadable(t *testing.T) {
	out, err := yaml.Marshal(NewViewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "views.yaml")
	if err := os.WriteFile(path, out, 0644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadViewRegistry(path)
	if err != nil {
		t.Fatalf("reloading exported views: %v", err)
	}
	b, _ := r.Get("mapb")
	if b.Center.Lat != 45.50 || b.Zoom != 3 {
		t.Errorf("unexpected mapb: %+v", b)
	}
}

func TestBuiltinViewsHaveValidViewports(t *testing.T) {
	for _, v := range NewViewRegistry().List() {
		if err := v.validateViewport(); err != nil {
			t.Errorf("%s: %v", v.ID, err)
		}
	}
}
