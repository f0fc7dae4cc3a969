package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/reportal-io/reportal/internal/tabular"

	// pgx stdlib driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() {
	Register("postgres", func() Source { return NewPostgresSource() })
}

// PostgresSource implements Source for PostgreSQL databases via the pgx
// stdlib driver.
type PostgresSource struct {
	db  *sql.DB
	cfg Config
}

// NewPostgresSource creates a new, unconnected PostgreSQL adapter.
func NewPostgresSource() *PostgresSource {
	return &PostgresSource{}
}

// buildPostgresDSN assembles a keyword/value DSN from the config.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if v, ok := cfg.Options["sslmode"]; ok {
		sslmode = v
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("dbname=%s", cfg.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	return strings.Join(parts, " ")
}

// Connect opens a connection to PostgreSQL.
func (s *PostgresSource) Connect(ctx context.Context, cfg Config) error {
	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.db = db
	s.cfg = cfg
	return nil
}

// Close closes the PostgreSQL connection.
func (s *PostgresSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Query executes a read-only statement and returns its rows. Structured
// report queries are built with "?" placeholders; they are rebound to the
// positional "$n" form PostgreSQL expects.
func (s *PostgresSource) Query(ctx context.Context, query string, args ...any) (tabular.Result, error) {
	if s.db == nil {
		return tabular.Result{}, fmt.Errorf("database connection not established")
	}
	if err := ValidateReadOnly(query); err != nil {
		return tabular.Result{}, err
	}

	rows, err := s.db.QueryContext(ctx, rebindPositional(query), args...)
	if err != nil {
		return tabular.Result{}, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResult(rows, maxRows(s.cfg))
}

// rebindPositional rewrites "?" placeholders to "$1".."$n".
func rebindPositional(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Columns returns column metadata for a table via information_schema.
func (s *PostgresSource) Columns(ctx context.Context, table string) ([]Column, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_name = $1
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

// TypeName returns "postgres".
func (s *PostgresSource) TypeName() string { return "postgres" }
