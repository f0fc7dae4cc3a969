// Package source provides data-source adapters for report query execution.
// Adapters register themselves by type name; the sqlite adapter backs the
// default data source.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/reportal-io/reportal/internal/tabular"
)

// Config holds the configuration for connecting to a data source.
type Config struct {
	// Type specifies the source type (e.g., "sqlite", "duckdb", "postgres").
	Type string `koanf:"type"`

	// Path is the file path for file-based databases. Use ":memory:" for an
	// in-memory database.
	Path string `koanf:"path"`

	// Host is the hostname for network-based databases.
	Host string `koanf:"host"`

	// Port is the port number for network-based databases.
	Port int `koanf:"port"`

	// Database is the database name.
	Database string `koanf:"database"`

	// Username for authentication.
	Username string `koanf:"username"`

	// Password for authentication.
	Password string `koanf:"password"`

	// Options contains additional driver-specific options.
	Options map[string]string `koanf:"options"`

	// MaxRows caps the number of rows returned by a query. Zero means the
	// DefaultMaxRows cap applies.
	MaxRows int `koanf:"max_rows"`
}

// DefaultMaxRows is the row cap applied when Config.MaxRows is zero.
const DefaultMaxRows = 10000

// Column describes one column of a source table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Source is the interface all data-source adapters implement. Query only
// accepts read-only statements; see ValidateReadOnly.
type Source interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Query executes a SELECT statement and returns its rows as a tabular
	// result, capped at the configured row limit.
	Query(ctx context.Context, query string, args ...any) (tabular.Result, error)

	// Columns returns column metadata for a table.
	Columns(ctx context.Context, table string) ([]Column, error)

	// TypeName returns the source type name (e.g., "sqlite").
	TypeName() string
}

// Factory creates a new, unconnected adapter instance.
type Factory func() Source

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a source factory under a type name. Called from adapter
// init() functions.
func Register(typeName string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(typeName)] = factory
}

// IsRegistered reports whether a source type is available.
func IsRegistered(typeName string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(typeName)]
	return ok
}

// ListTypes returns the registered source type names, sorted.
func ListTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// New creates an unconnected adapter for the given type name.
func New(typeName string) (Source, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(typeName)]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownSourceError{Type: typeName, Available: ListTypes()}
	}
	return factory(), nil
}

// Open creates an adapter from the config and connects it.
func Open(ctx context.Context, cfg Config) (Source, error) {
	src, err := New(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err := src.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return src, nil
}

// UnknownSourceError reports a source type with no registered adapter.
type UnknownSourceError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source type %q (available: %s)",
		e.Type, strings.Join(e.Available, ", "))
}

// maxRows resolves the effective row cap for a config.
func maxRows(cfg Config) int {
	if cfg.MaxRows > 0 {
		return cfg.MaxRows
	}
	return DefaultMaxRows
}

// scanResult drains sql.Rows into a tabular.Result, capped at limit rows.
func scanResult(rows *sql.Rows, limit int) (tabular.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return tabular.Result{}, err
	}

	var out []tabular.Row
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return tabular.Result{}, err
		}

		row := make(tabular.Row, len(cols))
		for i, col := range cols {
			row[col] = tabular.FromAny(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return tabular.Result{}, err
	}

	return tabular.NewResult(cols, out), nil
}
