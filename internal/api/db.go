package api

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// DBHandler exposes the DuckDB mirror of the live rendered layer.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler. db may be nil.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
	huma.Get(api, "/api/v1/map/stats", h.Stats, huma.OperationTags("map"))
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

// ListTables returns all DuckDB tables. The live rendered layer is in "features".
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, rows.Err()
}

type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"SQL query to execute" example:"SELECT popup, fill_color FROM features WHERE shape = 'circleMarker'"`
		Limit int    `json:"limit,omitempty" minimum:"1" maximum:"10000" default:"1000" doc:"Maximum rows returned"`
	}
}

type QueryBody struct {
	Columns   []string         `json:"columns" doc:"Column names"`
	Rows      []map[string]any `json:"rows" doc:"Query results"`
	Count     int              `json:"count" doc:"Number of rows returned"`
	Truncated bool             `json:"truncated" doc:"Whether more rows were available than the limit"`
}

// Query executes a SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	limit := input.Body.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	body := QueryBody{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(body.Rows) == limit {
			body.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, huma.Error500InternalServerError("Failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		body.Rows = append(body.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to read rows", err)
	}
	body.Count = len(body.Rows)

	return &struct{ Body QueryBody }{Body: body}, nil
}

type StatBucket struct {
	Shape     string `json:"shape" doc:"Rendered shape"`
	FillColor string `json:"fillColor" doc:"Fill color, empty for none"`
	Count     int64  `json:"count" doc:"Number of features"`
}

type StatsBody struct {
	View    string       `json:"view,omitempty" doc:"View the rows belong to"`
	Total   int64        `json:"total" doc:"Rendered features"`
	Buckets []StatBucket `json:"buckets" doc:"Features grouped by shape and fill"`
}

// Stats summarizes the live layer by shape and fill color.
func (h *DBHandler) Stats(ctx context.Context, input *struct{}) (*struct{ Body StatsBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT any_value(view), shape, coalesce(fill_color, ''), count(*)
		FROM features
		GROUP BY shape, fill_color
		ORDER BY shape, fill_color`)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to summarize features", err)
	}
	defer rows.Close()

	body := StatsBody{Buckets: []StatBucket{}}
	for rows.Next() {
		var b StatBucket
		var view string
		if err := rows.Scan(&view, &b.Shape, &b.FillColor, &b.Count); err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("scanning bucket %d", len(body.Buckets)), err)
		}
		body.View = view
		body.Total += b.Count
		body.Buckets = append(body.Buckets, b)
	}
	return &struct{ Body StatsBody }{Body: body}, rows.Err()
}
