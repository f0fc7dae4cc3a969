package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/reportal-io/reportal/internal/tabular"

	// sqlite driver (pure Go).
	_ "modernc.org/sqlite"
)

func init() {
	Register("sqlite", func() Source { return NewSQLiteSource() })
}

// SQLiteSource implements Source for SQLite databases. It backs the default
// data source.
type SQLiteSource struct {
	db  *sql.DB
	cfg Config
}

// NewSQLiteSource creates a new, unconnected SQLite adapter.
func NewSQLiteSource() *SQLiteSource {
	return &SQLiteSource{}
}

// Connect opens the SQLite database at cfg.Path. Use ":memory:" for an
// in-memory database.
func (s *SQLiteSource) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.cfg = cfg
	return nil
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Query executes a read-only statement and returns its rows.
func (s *SQLiteSource) Query(ctx context.Context, query string, args ...any) (tabular.Result, error) {
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

// identPattern constrains table names interpolated into PRAGMA statements,
// which cannot be parameterized.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Columns returns column metadata for a table via PRAGMA table_info.
func (s *SQLiteSource) Columns(ctx context.Context, table string) ([]Column, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
			Position: cid,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return columns, nil
}

// TypeName returns "sqlite".
func (s *SQLiteSource) TypeName() string { return "sqlite" }
