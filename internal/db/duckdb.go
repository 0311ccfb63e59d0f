// Package db mirrors the live rendered layer into an in-memory DuckDB table
// so it can be inspected with SQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/geo-viewer/internal/service"
)

// DefaultDBName is the database file name used when Config.DBName is empty.
const DefaultDBName = "viewer"

// Config holds database configuration.
// An empty DataDir opens an in-memory database.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file, or "" for an in-memory database.
func (c Config) Path() string {
	if c.DataDir == "" {
		return ""
	}
	name := c.DBName
	if name == "" {
		name = DefaultDBName
	}
	return filepath.Join(c.DataDir, "duckdb", name+".duckdb")
}

// Open opens a DuckDB connection.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.Path()
	if path == "" {
		return sql.Open("duckdb", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}
	return sql.Open("duckdb", path)
}

const createFeatures = `CREATE OR REPLACE TABLE features (
	generation BIGINT,
	view VARCHAR,
	idx INTEGER,
	geom_type VARCHAR,
	shape VARCHAR,
	lon DOUBLE,
	lat DOUBLE,
	fill_color VARCHAR,
	popup VARCHAR,
	properties VARCHAR
)`

// FeatureTable is a service.LayerSink backed by the "features" table.
type FeatureTable struct {
	db *sql.DB
}

// NewFeatureTable creates (or resets) the features table.
func NewFeatureTable(ctx context.Context, db *sql.DB) (*FeatureTable, error) {
	if _, err := db.ExecContext(ctx, createFeatures); err != nil {
		return nil, fmt.Errorf("creating features table: %w", err)
	}
	return &FeatureTable{db: db}, nil
}

// Clear removes every row.
func (t *FeatureTable) Clear(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, "DELETE FROM features")
	return err
}

// Replace swaps the table contents for layer.
func (t *FeatureTable) Replace(ctx context.Context, view string, gen uint64, layer *service.RenderedLayer) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM features"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO features VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range layer.Features {
		var geomType string
		var lon, lat float64
		if f.Geometry != nil {
			geomType = f.Geometry.GeoJSONType()
			c := f.Geometry.Bound().Center()
			lon, lat = c.Lon(), c.Lat()
		}

		var fill any
		if f.Style.FillColor != nil {
			fill = *f.Style.FillColor
		}

		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("feature %d properties: %w", i, err)
		}

		if _, err := stmt.ExecContext(ctx,
			int64(gen), view, i, geomType, string(f.Shape), lon, lat, fill, f.Popup, string(props),
		); err != nil {
			return fmt.Errorf("inserting feature %d: %w", i, err)
		}
	}

	return tx.Commit()
}
