package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBWriter stores runs in DuckDB tables for ad hoc analysis.
type DuckDBWriter struct {
	db *sql.DB
}

// NewDuckDBWriter opens (or creates) the database at dbPath and makes sure
// the tables exist.
func NewDuckDBWriter(dbPath string) (*DuckDBWriter, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	writer := &DuckDBWriter{db: db}

	if err := writer.createTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return writer, nil
}

var duckDBTables = []struct {
	name string
	ddl  string
}{
	{"runs", `
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR PRIMARY KEY,
			created_at TIMESTAMP,
			nodes INTEGER,
			edges INTEGER,
			snapshots INTEGER,
			flagged INTEGER,
			summary JSON
		)`},
	{"nodes", `
		CREATE TABLE IF NOT EXISTS nodes (
			run_id VARCHAR,
			code VARCHAR,
			label VARCHAR,
			PRIMARY KEY (run_id, code)
		)`},
	{"edges", `
		CREATE TABLE IF NOT EXISTS edges (
			run_id VARCHAR,
			source VARCHAR,
			target VARCHAR,
			year INTEGER,
			institution VARCHAR,
			PRIMARY KEY (run_id, source, target, year, institution)
		)`},
	{"snapshot_nodes", `
		CREATE TABLE IF NOT EXISTS snapshot_nodes (
			run_id VARCHAR,
			snapshot INTEGER,
			snapshot_year INTEGER,
			code VARCHAR,
			label VARCHAR,
			PRIMARY KEY (run_id, snapshot, code)
		)`},
	{"snapshot_edges", `
		CREATE TABLE IF NOT EXISTS snapshot_edges (
			run_id VARCHAR,
			snapshot INTEGER,
			snapshot_year INTEGER,
			source VARCHAR,
			target VARCHAR,
			year INTEGER,
			institution VARCHAR,
			PRIMARY KEY (run_id, snapshot, source, target, year)
		)`},
	{"flagged_groups", `
		CREATE TABLE IF NOT EXISTS flagged_groups (
			run_id VARCHAR,
			group_key VARCHAR,
			source VARCHAR,
			target VARCHAR,
			year INTEGER,
			institution VARCHAR,
			PRIMARY KEY (run_id, source, target, year, institution)
		)`},
	{"run_warnings", `
		CREATE TABLE IF NOT EXISTS run_warnings (
			run_id VARCHAR,
			seq INTEGER,
			logged_at TIMESTAMP,
			level VARCHAR,
			message VARCHAR,
			source VARCHAR,
			attributes JSON,
			PRIMARY KEY (run_id, seq)
		)`},
}

func (w *DuckDBWriter) createTables(ctx context.Context) error {
	for _, t := range duckDBTables {
		if _, err := w.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	return nil
}

// Name implements Sink.
func (w *DuckDBWriter) Name() string {
	return "duckdb"
}

// Export writes the whole dataset in one transaction.
func (w *DuckDBWriter) Export(ctx context.Context, ds *Dataset) error {
	summary, err := json.Marshal(ds.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	runID := ds.RunID.String()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, created_at, nodes, edges, snapshots, flagged, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, ds.CreatedAt, len(ds.Nodes), len(ds.Edges), len(ds.Snapshots), len(ds.Flagged), string(summary),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertRows(ctx, tx, `INSERT OR REPLACE INTO nodes (run_id, code, label) VALUES (?, ?, ?)`,
		len(ds.Nodes), func(i int) []any {
			n := ds.Nodes[i]
			return []any{runID, n.Code, n.Label}
		}); err != nil {
		return fmt.Errorf("failed to insert nodes: %w", err)
	}

	if err := insertRows(ctx, tx, `INSERT OR REPLACE INTO edges (run_id, source, target, year, institution) VALUES (?, ?, ?, ?, ?)`,
		len(ds.Edges), func(i int) []any {
			e := ds.Edges[i]
			return []any{runID, e.Source, e.Target, e.Year, e.Institution}
		}); err != nil {
		return fmt.Errorf("failed to insert edges: %w", err)
	}

	for _, snap := range ds.Snapshots {
		if err := insertRows(ctx, tx, `INSERT OR REPLACE INTO snapshot_nodes (run_id, snapshot, snapshot_year, code, label) VALUES (?, ?, ?, ?, ?)`,
			len(snap.Nodes), func(i int) []any {
				n := snap.Nodes[i]
				return []any{runID, snap.Index, snap.Year, n.Code, n.Label}
			}); err != nil {
			return fmt.Errorf("failed to insert nodes of snapshot %d: %w", snap.Index, err)
		}
		if err := insertRows(ctx, tx, `INSERT OR REPLACE INTO snapshot_edges (run_id, snapshot, snapshot_year, source, target, year, institution) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			len(snap.Edges), func(i int) []any {
				e := snap.Edges[i]
				return []any{runID, snap.Index, snap.Year, e.Source, e.Target, e.Year, e.Institution}
			}); err != nil {
			return fmt.Errorf("failed to insert edges of snapshot %d: %w", snap.Index, err)
		}
	}

	for _, g := range ds.Flagged {
		key := g.Key.String()
		if err := insertRows(ctx, tx, `INSERT OR REPLACE INTO flagged_groups (run_id, group_key, source, target, year, institution) VALUES (?, ?, ?, ?, ?, ?)`,
			len(g.Variants), func(i int) []any {
				e := g.Variants[i]
				return []any{runID, key, e.Source, e.Target, e.Year, e.Institution}
			}); err != nil {
			return fmt.Errorf("failed to insert flagged group %s: %w", key, err)
		}
	}

	if err := insertRows(ctx, tx, `INSERT OR REPLACE INTO run_warnings (run_id, seq, logged_at, level, message, source, attributes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(ds.Warnings), func(i int) []any {
			w := ds.Warnings[i]
			attrs, err := json.Marshal(w.Attrs)
			if err != nil {
				attrs = []byte("{}")
			}
			return []any{runID, i, w.Time, w.Level, w.Message, w.Source, string(attrs)}
		}); err != nil {
		return fmt.Errorf("failed to insert warnings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID        string
	Nodes     int
	Edges     int
	Snapshots int
	Flagged   int
}

// Runs lists stored runs, newest first.
func (w *DuckDBWriter) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT id, nodes, edges, snapshots, flagged FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Nodes, &r.Edges, &r.Snapshots, &r.Flagged); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (w *DuckDBWriter) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, query string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}
	return nil
}
