package api

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/geo-viewer/internal/db"
	"github.com/joeblew999/geo-viewer/internal/service"
)

func TestDBUnavailable(t *testing.T) {
	_, api := humatest.New(t)
	NewDBHandler(nil).RegisterRoutes(api)

	for _, path := range []string{"/api/v1/tables", "/api/v1/map/stats"} {
		if resp := api.Get(path); resp.Code != 503 {
			t.Fatalf("%s status=%d, want 503", path, resp.Code)
		}
	}
	if resp := api.Post("/api/v1/query", map[string]any{"query": "SELECT 1"}); resp.Code != 503 {
		t.Fatalf("query status=%d, want 503", resp.Code)
	}
}

func TestDBMirror(t *testing.T) {
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	table, err := db.NewFeatureTable(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}

	_, api := humatest.New(t)
	NewDBHandler(conn).RegisterRoutes(api)

	v := service.NewViewer(service.ViewerConfig{}, service.NewViewRegistry(), service.NewBasemapRegistry(),
		service.NewRenderer(stubFetcher{}), nil)
	v.SetSink(table)
	t.Cleanup(func() { v.Close(context.Background()) })
	loadAndWait(t, v, "mapb")

	var tables TablesBody
	decode(t, api.Get("/api/v1/tables").Body.Bytes(), &tables)
	if !contains(tables.Tables, "features") {
		t.Fatalf("tables=%v, missing features", tables.Tables)
	}

	var stats StatsBody
	decode(t, api.Get("/api/v1/map/stats").Body.Bytes(), &stats)
	if stats.View != "mapb" || stats.Total != 2 {
		t.Fatalf("stats=%+v", stats)
	}
	fills := map[string]int64{}
	for _, b := range stats.Buckets {
		fills[b.FillColor] += b.Count
	}
	if fills["green"] != 1 || fills["#fff"] != 1 {
		t.Fatalf("fills=%v", fills)
	}

	resp := api.Post("/api/v1/query", map[string]any{
		"query": "SELECT popup FROM features ORDER BY idx",
		"limit": 1,
	})
	if resp.Code != 200 {
		t.Fatalf("query status=%d, body=%s", resp.Code, resp.Body.String())
	}
	var q QueryBody
	decode(t, resp.Body.Bytes(), &q)
	if q.Count != 1 || !q.Truncated || q.Rows[0]["popup"] != "Union Station" {
		t.Fatalf("query=%+v", q)
	}

	if resp := api.Post("/api/v1/query", map[string]any{"query": "SELEKT"}); resp.Code != 400 {
		t.Fatalf("bad query status=%d, want 400", resp.Code)
	}

	// Teardown empties the mirror.
	if err := v.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	decode(t, api.Get("/api/v1/map/stats").Body.Bytes(), &stats)
	if stats.Total != 0 {
		t.Fatalf("total after close=%d, want 0", stats.Total)
	}
}

func TestQueryRowFailure(t *testing.T) {
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	_, api := humatest.New(t)
	NewDBHandler(conn).RegisterRoutes(api)

	// The second row fails to cast; the partial result must not come back as a 200.
	resp := api.Post("/api/v1/query", map[string]any{
		"query": "SELECT CAST(x AS INTEGER) AS n FROM (VALUES ('1'), ('not a number')) t(x)",
	})
	if resp.Code == 200 {
		t.Fatalf("status=200 for a failing query, body=%s", resp.Body.String())
	}
}

func TestInfo(t *testing.T) {
	_, api := humatest.New(t)
	NewInfoHandler("mapdiv", true, false, true).RegisterRoutes(api)

	var info InfoBody
	decode(t, api.Get("/api/v1/info").Body.Bytes(), &info)
	if info.Name != "geo-viewer" || info.Container != "mapdiv" || !info.WireSelector {
		t.Fatalf("info=%+v", info)
	}
	if !contains(info.Features, "duckdb") {
		t.Fatalf("features=%v, missing duckdb", info.Features)
	}
}
