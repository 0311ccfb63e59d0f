package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-viewer/internal/db"
	"github.com/joeblew999/geo-viewer/internal/service"
)

type docFetcher string

func (d docFetcher) Fetch(ctx context.Context, url string) service.FetchResult {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(d))
	if err != nil {
		return service.FetchResult{Err: err}
	}
	return service.FetchResult{Collection: fc}
}

const doc = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"StationNam":"Berri-UQAM","ZipCode":"H2L"},
   "geometry":{"type":"Point","coordinates":[-73.5617,45.5152]}}]}`

// gatedFetcher serves doc once gate is closed.
type gatedFetcher struct {
	gate chan struct{}
}

func (g gatedFetcher) Fetch(ctx context.Context, url string) service.FetchResult {
	select {
	case <-g.gate:
		return docFetcher(doc).Fetch(ctx, url)
	case <-ctx.Done():
		return service.FetchResult{Err: ctx.Err()}
	}
}

func newTestServer(t *testing.T, wire bool) *Server {
	t.Helper()
	return newTestServerWith(t, Config{WireSelector: wire, Fetcher: docFetcher(doc)})
}

func newTestServerWith(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Host = "localhost"
	cfg.Port = "0"
	cfg.WebDir = "../../web"
	cfg.InitialView = "mapa"
	cfg.FetchTimeout = 5 * time.Second
	srv, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func waitRendered(t *testing.T, load *service.Load) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := load.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Err != nil {
		t.Fatal(res.Err)
	}
}

func TestPages(t *testing.T) {
	srv := newTestServer(t, false)

	rec := serve(srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/viewer" {
		t.Fatalf("root: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}

	rec = serve(srv, http.MethodGet, "/viewer", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `id="mapdiv"`) {
		t.Fatalf("viewer: status=%d", rec.Code)
	}

	if rec := serve(srv, http.MethodGet, "/static/viewer.js", ""); rec.Code != http.StatusOK {
		t.Fatalf("static: status=%d", rec.Code)
	}
	if rec := serve(srv, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path: status=%d", rec.Code)
	}
}

func TestInitialView(t *testing.T) {
	srv := newTestServer(t, false)

	load, err := srv.LoadInitialView(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	waitRendered(t, load)

	snap := srv.Viewer().Snapshot()
	if snap.View != "mapa" || snap.Features != 1 || snap.Container != service.DefaultContainer {
		t.Fatalf("snapshot=%+v", snap)
	}

	rec := serve(srv, http.MethodGet, "/api/v1/map/stats", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Fatalf("stats: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t, false)

	paths := srv.OpenAPI().Paths
	for _, p := range []string{"/api/v1/views/{id}/load", "/api/v1/map/features", "/api/v1/viewer/events", "/api/v1/query"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
}

func TestViewSelectOptions(t *testing.T) {
	srv := newTestServer(t, false)

	rec := serve(srv, http.MethodGet, "/api/v1/viewer/views/select", "")
	body := rec.Body.String()
	if !strings.Contains(body, "datastar-patch-elements") {
		t.Fatalf("not a datastar stream: %s", body)
	}
	if !strings.Contains(body, `value="mapa" selected`) || !strings.Contains(body, `value="mapb"`) {
		t.Fatalf("options missing: %s", body)
	}
}

func TestSelectorUnwired(t *testing.T) {
	srv := newTestServer(t, false)

	serve(srv, http.MethodPost, "/api/v1/viewer/selector", `{"view":"mapb"}`)
	if srv.Viewer().State() != service.StateNoMap {
		t.Fatalf("state=%q, an unwired selector must not load a map", srv.Viewer().State())
	}
}

func TestSelectorWired(t *testing.T) {
	srv := newTestServer(t, true)

	rec := serve(srv, http.MethodPost, "/api/v1/viewer/selector", `{"view":"mapb"}`)
	if !strings.Contains(rec.Body.String(), "datastar-patch-signals") {
		t.Fatalf("no signals patch: %s", rec.Body.String())
	}
	snap := srv.Viewer().Snapshot()
	if snap.View != "mapb" || snap.Generation != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestEventsInitialState(t *testing.T) {
	srv := newTestServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/viewer/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") || !strings.Contains(body, "#map-status") {
		t.Fatalf("initial state missing: %s", body)
	}
}

func TestEventsReportRender(t *testing.T) {
	gate := make(chan struct{})
	srv := newTestServerWith(t, Config{Fetcher: gatedFetcher{gate: gate}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	if _, err := srv.LoadInitialView(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/viewer/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	nextSignals := func() string {
		t.Helper()
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "data: signals ") {
				return line
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	first := nextSignals()
	if !strings.Contains(first, `"rendered":false`) || !strings.Contains(first, `"generation":1`) {
		t.Fatalf("initial signals=%s", first)
	}

	close(gate)
	for {
		line := nextSignals()
		if strings.Contains(line, `"rendered":true`) {
			if !strings.Contains(line, `"features":1`) || !strings.Contains(line, `"generation":1`) {
				t.Fatalf("rendered signals=%s", line)
			}
			return
		}
	}
}

func TestDataDirKeepsMirrorOnDisk(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServerWith(t, Config{DataDir: dir, Fetcher: docFetcher(doc)})

	load, err := srv.LoadInitialView(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	waitRendered(t, load)

	if _, err := os.Stat(db.Config{DataDir: dir}.Path()); err != nil {
		t.Fatalf("mirror file: %v", err)
	}
	rec := serve(srv, http.MethodGet, "/api/v1/map/stats", "")
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Fatalf("stats body=%s", rec.Body.String())
	}
}
