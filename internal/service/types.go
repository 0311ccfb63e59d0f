// Package service contains the map viewer's state and rendering logic.
package service

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrUnknownView is returned by LoadView in strict mode when the view ID is not registered.
	ErrUnknownView = errors.New("unknown view")
	// ErrNoMap is the teardown error for a viewer that has no live map.
	ErrNoMap = errors.New("no map instance")
	// ErrMapDestroyed is returned when a destroyed map instance is used.
	ErrMapDestroyed = errors.New("map instance already destroyed")
	// ErrStaleRender is returned when a render finishes after a newer view was loaded.
	ErrStaleRender = errors.New("render superseded by a newer view")
)

// Basemap describes a tile layer drawn beneath the data overlays.
type Basemap struct {
	Name            string `json:"name" yaml:"name" doc:"Display name" example:"CartoDB"`
	TileURLTemplate string `json:"tileUrlTemplate" yaml:"tileUrlTemplate" doc:"Leaflet-style tile URL template"`
	Attribution     string `json:"attribution" yaml:"attribution" doc:"HTML attribution string"`
	Subdomains      string `json:"subdomains,omitempty" yaml:"subdomains,omitempty" doc:"Characters substituted for {s}" example:"abcd"`
}

// LatLon is a geographic position in latitude, longitude order.
type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat" doc:"Latitude"`
	Lon float64 `json:"lon" yaml:"lon" doc:"Longitude"`
}

// Point returns the position as an orb point (lon, lat).
func (p LatLon) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// ViewConfig is one selectable map view.
type ViewConfig struct {
	ID      string `json:"id" yaml:"id" doc:"View identifier" example:"mapa"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty" doc:"Label shown in the view selector"`
	Center  LatLon `json:"center" yaml:"center" doc:"Initial map center"`
	Zoom    int    `json:"zoom" yaml:"zoom" minimum:"0" maximum:"22" doc:"Initial zoom"`
	MinZoom int    `json:"minZoom" yaml:"minZoom" minimum:"0" maximum:"22" doc:"Minimum zoom"`
	MaxZoom int    `json:"maxZoom" yaml:"maxZoom" minimum:"0" maximum:"22" doc:"Maximum zoom"`
	DataURL string `json:"dataUrl" yaml:"dataUrl" doc:"GeoJSON document rendered on this view"`
}

// Shape is the drawable kind a feature is rendered as.
type Shape string

const (
	ShapeCircleMarker Shape = "circleMarker"
	ShapeGeometry     Shape = "geometry"
)

// Style is the per-feature path style handed to the map.
// Nil FillColor and DashArray serialize as null.
type Style struct {
	Stroke      bool    `json:"stroke" yaml:"stroke"`
	Color       string  `json:"color" yaml:"color"`
	Opacity     float64 `json:"opacity" yaml:"opacity"`
	Weight      float64 `json:"weight" yaml:"weight"`
	FillColor   *string `json:"fillColor" yaml:"fillColor"`
	FillOpacity float64 `json:"fillOpacity" yaml:"fillOpacity"`
	Radius      float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	DashArray   *string `json:"dashArray" yaml:"dashArray"`
}

// RenderedFeature is a feature converted into a drawable shape with its popup.
type RenderedFeature struct {
	Geometry   orb.Geometry
	Properties geojson.Properties
	Shape      Shape
	Style      Style
	Popup      string
}

// RenderedLayer is every shape derived from one fetched document.
type RenderedLayer struct {
	Source   string
	Features []RenderedFeature
}

// Control is an overlay widget attached to a map instance.
type Control struct {
	Kind     string   `json:"kind" yaml:"kind" doc:"Control kind" example:"layers"`
	Basemaps []string `json:"basemaps,omitempty" yaml:"basemaps,omitempty" doc:"Basemap names offered by a layers control"`
}

// MapState is the viewer lifecycle state.
type MapState string

const (
	StateNoMap    MapState = "no-map"
	StateMapReady MapState = "map-ready"
)

// MapSnapshot is a read-only copy of the viewer's current map.
type MapSnapshot struct {
	State      MapState  `json:"state" yaml:"state" enum:"no-map,map-ready" doc:"Viewer state"`
	Generation uint64    `json:"generation" yaml:"generation" doc:"Load counter; increments on every view switch"`
	ID         string    `json:"id,omitempty" yaml:"id,omitempty" doc:"Map instance identifier"`
	Container  string    `json:"container,omitempty" yaml:"container,omitempty" doc:"Page element the map is bound to"`
	View       string    `json:"view,omitempty" yaml:"view,omitempty" doc:"Loaded view"`
	Center     LatLon    `json:"center" yaml:"center" doc:"Map center"`
	Zoom       int       `json:"zoom" yaml:"zoom" doc:"Initial zoom"`
	MinZoom    int       `json:"minZoom" yaml:"minZoom" doc:"Minimum zoom"`
	MaxZoom    int       `json:"maxZoom" yaml:"maxZoom" doc:"Maximum zoom"`
	Basemap    string    `json:"basemap,omitempty" yaml:"basemap,omitempty" doc:"Active basemap"`
	Controls   []Control `json:"controls" yaml:"controls" doc:"Attached controls"`
	Layers     int       `json:"layers" yaml:"layers" doc:"Number of rendered layers"`
	Features   int       `json:"features" yaml:"features" doc:"Number of rendered features"`
	Rendered   bool      `json:"rendered" yaml:"rendered" doc:"Whether the view's data has been drawn"`
	LastError  string    `json:"lastError,omitempty" yaml:"lastError,omitempty" doc:"Fetch or render failure for the current view"`
}

// RenderResult is the outcome of one fetch-and-render.
type RenderResult struct {
	Generation uint64
	URL        string
	Features   int
	Stale      bool
	Err        error
}
