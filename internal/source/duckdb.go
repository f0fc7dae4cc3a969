package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reportal-io/reportal/internal/tabular"

	// duckdb driver.
	_ "github.com/marcboeker/go-duckdb"
)

func init() {
	Register("duckdb", func() Source { return NewDuckDBSource() })
}

// DuckDBSource implements Source for DuckDB databases.
type DuckDBSource struct {
	db  *sql.DB
	cfg Config
}

// NewDuckDBSource creates a new, unconnected DuckDB adapter.
func NewDuckDBSource() *DuckDBSource {
	return &DuckDBSource{}
}

// Connect opens the DuckDB database at cfg.Path. An empty path opens an
// in-memory database.
func (s *DuckDBSource) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	s.db = db
	s.cfg = cfg
	return nil
}

// Close closes the DuckDB connection.
func (s *DuckDBSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Query executes a read-only statement and returns its rows.
func (s *DuckDBSource) Query(ctx context.Context, query string, args ...any) (tabular.Result, error) {
	if s.db == nil {
		return tabular.Result{}, fmt.Errorf("database connection not established")
	}
	if err := ValidateReadOnly(query); err != nil {
		return tabular.Result{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return tabular.Result{}, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResult(rows, maxRows(s.cfg))
}

// Columns returns column metadata for a table via information_schema.
func (s *DuckDBSource) Columns(ctx context.Context, table string) ([]Column, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := scanColumnRows(rows)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return columns, nil
}

// TypeName returns "duckdb".
func (s *DuckDBSource) TypeName() string { return "duckdb" }

// scanColumnRows reads information_schema column rows shared by the duckdb
// and postgres adapters.
func scanColumnRows(rows *sql.Rows) ([]Column, error) {
	var columns []Column
	for rows.Next() {
		var name, dataType, nullable string
		var position int
		if err := rows.Scan(&name, &dataType, &nullable, &position); err != nil {
			return nil, err
		}
		columns = append(columns, Column{
			Name:     name,
			Type:     dataType,
			Nullable: nullable == "YES",
			Position: position,
		})
	}
	return columns, rows.Err()
}
