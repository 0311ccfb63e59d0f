package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
)

const amtrakDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"StationNam": "Union Station", "Code": "CHI"},
     "geometry": {"type": "Point", "coordinates": [-87.6403, 41.8789]}},
    {"type": "Feature", "properties": {"StationNam": "Denver", "Code": "DEN"},
     "geometry": {"type": "Point", "coordinates": [-105.0002, 39.7530]}}
  ]
}`

const transitDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"StationNam": "Berri-UQAM", "ZipCode": "H2L"},
     "geometry": {"type": "Point", "coordinates": [-73.5617, 45.5152]}}
  ]
}`

// fakeFetcher serves canned documents. A gated URL blocks until its gate is
// closed, regardless of context cancellation.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	gates map[string]chan struct{}
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs: map[string]string{
			AmtrakStationsURL:  amtrakDoc,
			TransitStationsURL: transitDoc,
		},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) gate(url string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[url] = ch
	return ch
}

func (f *fakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) FetchResult {
	f.mu.Lock()
	f.calls[url]++
	gate := f.gates[url]
	doc, ok := f.docs[url]
	err := f.errs[url]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return FetchResult{Err: err}
	}
	if !ok {
		return FetchResult{Err: &FetchError{URL: url, Status: 404}}
	}
	fc, perr := geojson.UnmarshalFeatureCollection([]byte(doc))
	if perr != nil {
		return FetchResult{Err: &ParseError{URL: url, Err: perr}}
	}
	return FetchResult{Collection: fc}
}

func newTestViewer(t *testing.T, f Fetcher, cfg ViewerConfig) (*Viewer, *EventBus) {
	t.Helper()
	bus := NewEventBus()
	v := NewViewer(cfg, NewViewRegistry(), NewBasemapRegistry(), NewRenderer(f), bus)
	t.Cleanup(func() { v.Close(context.Background()) })
	return v, bus
}

func waitLoad(t *testing.T, l *Load) RenderResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := l.Wait(ctx)
	if err != nil {
		t.Fatalf("waiting for render of %s: %v", l.View.ID, err)
	}
	return res
}

func mustFeature(t *testing.T, raw string) *geojson.Feature {
	t.Helper()
	f, err := geojson.UnmarshalFeature([]byte(raw))
	if err != nil {
		t.Fatalf("parsing feature: %v", err)
	}
	return f
}
