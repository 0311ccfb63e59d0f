package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-viewer/internal/debug"
)

// Feature property names read by the styling and popup rules.
const (
	PropZipCode    = "ZipCode"
	PropStationNam = "StationNam"
)

// LayerTarget receives a rendered layer. *MapInstance is one.
type LayerTarget interface {
	AddLayer(layer *RenderedLayer) error
}

// Renderer turns fetched documents into rendered layers.
type Renderer struct {
	fetcher Fetcher
}

// NewRenderer creates a renderer that fetches with f.
func NewRenderer(f Fetcher) *Renderer {
	return &Renderer{fetcher: f}
}

// FetchAndRender fetches url and adds the rendered features to target as a
// single layer. Failures are returned in the result, never panicked.
func (r *Renderer) FetchAndRender(ctx context.Context, url string, target LayerTarget) RenderResult {
	res := RenderResult{URL: url}

	fr := r.fetcher.Fetch(ctx, url)
	if fr.Err != nil {
		res.Err = fr.Err
		return res
	}
	if fr.Collection == nil {
		res.Err = &ParseError{URL: url, Err: errors.New("empty document")}
		return res
	}

	layer := Render(url, fr.Collection)
	if err := target.AddLayer(layer); err != nil {
		res.Stale = errors.Is(err, ErrStaleRender)
		res.Err = err
		return res
	}

	res.Features = len(layer.Features)
	return res
}

// Render converts every feature of fc.
func Render(source string, fc *geojson.FeatureCollection) *RenderedLayer {
	layer := &RenderedLayer{
		Source:   source,
		Features: make([]RenderedFeature, 0, len(fc.Features)),
	}
	for i, f := range fc.Features {
		rf := RenderFeature(f)
		debug.Log("feature %d: shape=%s fill=%s popup=%q", i, rf.Shape, fillColorString(rf.Style), rf.Popup)
		layer.Features = append(layer.Features, rf)
	}
	return layer
}

// RenderFeature applies the shape, style and popup rules to one feature.
func RenderFeature(f *geojson.Feature) RenderedFeature {
	return RenderedFeature{
		Geometry:   f.Geometry,
		Properties: f.Properties.Clone(),
		Shape:      ShapeFor(f),
		Style:      StyleFor(f),
		Popup:      PopupFor(f),
	}
}

// ShapeFor draws points as circle markers and everything else as its own geometry.
func ShapeFor(f *geojson.Feature) Shape {
	if isPoint(f) {
		return ShapeCircleMarker
	}
	return ShapeGeometry
}

// StyleFor returns the feature's path style. A string ZipCode property
// forces a green fill regardless of geometry.
func StyleFor(f *geojson.Feature) Style {
	s := Style{
		Stroke:      false,
		Color:       "#000",
		Opacity:     1,
		Weight:      1,
		FillOpacity: 0,
	}

	if isPoint(f) {
		s.FillColor = strPtr("#fff")
		s.FillOpacity = 0.5
		s.Stroke = true
		s.Radius = 9
	}

	if _, ok := f.Properties[PropZipCode].(string); ok {
		s.FillColor = strPtr("green")
	}

	return s
}

// PopupFor returns the station name, or "" when the feature has none.
func PopupFor(f *geojson.Feature) string {
	switch v := f.Properties[PropStationNam].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func isPoint(f *geojson.Feature) bool {
	if f.Geometry == nil {
		return false
	}
	_, ok := f.Geometry.(orb.Point)
	return ok
}

func strPtr(s string) *string { return &s }

func fillColorString(s Style) string {
	if s.FillColor == nil {
		return "null"
	}
	return *s.FillColor
}

// FeatureCollection returns the layer as GeoJSON. Each feature carries its
// draw instructions under the "leaflet" property.
func (l *RenderedLayer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rf := range l.Features {
		f := geojson.NewFeature(rf.Geometry)
		f.Properties = rf.Properties.Clone()
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["leaflet"] = map[string]any{
			"shape": rf.Shape,
			"style": rf.Style,
			"popup": rf.Popup,
		}
		fc.Append(f)
	}
	return fc
}
