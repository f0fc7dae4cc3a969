// Package state persists report definitions in SQLite with database
// migrations.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reportal-io/reportal/internal/report"
)

// timeFormat is the stored timestamp layout.
const timeFormat = "2006-01-02 15:04:05"

// SQLiteStore implements report.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ report.Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens a connection to the SQLite database, creating parent
// directories as needed. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// List returns summaries of all reports, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]report.Summary, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, data_source, created_at, updated_at
		FROM report_configs
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []report.Summary{}
	for rows.Next() {
		var sum report.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description, &sum.DataSource,
			&sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Get returns the definition with the given id, or an error when absent.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*report.Definition, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var def report.Definition
	var layoutJSON, queryJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, data_source, layout_config, query_config, created_at, updated_at
		FROM report_configs
		WHERE id = ?
	`, id).Scan(&def.ID, &def.Name, &def.Description, &def.DataSource,
		&layoutJSON, &queryJSON, &def.CreatedAt, &def.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if layoutJSON.Valid && layoutJSON.String != "" {
		if err := json.Unmarshal([]byte(layoutJSON.String), &def.LayoutConfig); err != nil {
			return nil, fmt.Errorf("corrupt layout config for report %d: %w", id, err)
		}
	}
	if queryJSON.Valid && queryJSON.String != "" {
		if err := json.Unmarshal([]byte(queryJSON.String), &def.QueryConfig); err != nil {
			return nil, fmt.Errorf("corrupt query config for report %d: %w", id, err)
		}
	}
	return &def, nil
}

// Create inserts a new definition and returns the persisted copy with its
// assigned id and timestamps.
func (s *SQLiteStore) Create(ctx context.Context, def *report.Definition) (*report.Definition, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if def.Name == "" {
		return nil, fmt.Errorf("report name must not be empty")
	}
	if def.DataSource == "" {
		return nil, fmt.Errorf("report data source must not be empty")
	}

	layoutJSON, queryJSON, err := marshalConfigs(def)
	if err != nil {
		return nil, err
	}

	now := time.Now().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO report_configs (name, description, data_source, layout_config, query_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, def.Name, def.Description, def.DataSource, layoutJSON, queryJSON, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read report id: %w", err)
	}

	saved := *def
	saved.ID = id
	saved.CreatedAt = now
	saved.UpdatedAt = now
	return &saved, nil
}

// Update overwrites an existing definition and returns the persisted copy.
func (s *SQLiteStore) Update(ctx context.Context, id int64, def *report.Definition) (*report.Definition, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if def.Name == "" {
		return nil, fmt.Errorf("report name must not be empty")
	}

	layoutJSON, queryJSON, err := marshalConfigs(def)
	if err != nil {
		return nil, err
	}

	now := time.Now().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_configs
		SET name = ?, description = ?, layout_config = ?, query_config = ?, updated_at = ?
		WHERE id = ?
	`, def.Name, def.Description, layoutJSON, queryJSON, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("report %d not found", id)
	}

	return s.Get(ctx, id)
}

// Delete removes a definition. It reports whether a row was deleted.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM report_configs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func marshalConfigs(def *report.Definition) (string, string, error) {
	layoutJSON, err := json.Marshal(def.LayoutConfig)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode layout config: %w", err)
	}
	queryJSON, err := json.Marshal(def.QueryConfig)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode query config: %w", err)
	}
	return string(layoutJSON), string(queryJSON), nil
}
