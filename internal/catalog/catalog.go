// Package catalog exposes the table and column metadata of a data source,
// including the natural-language names used for query translation.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reportal-io/reportal/internal/source"
)

// TableInfo describes one queryable table.
type TableInfo struct {
	Name        string `json:"name"`
	NaturalName string `json:"naturalName,omitempty"`
	Description string `json:"description,omitempty"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name        string `json:"name"`
	NaturalName string `json:"naturalName,omitempty"`
	Type        string `json:"type,omitempty"`
}

// DisplayName returns the natural name when present, else the db name.
func (t TableInfo) DisplayName() string {
	if t.NaturalName != "" {
		return t.NaturalName
	}
	return t.Name
}

// DisplayName returns the natural name when present, else the db name.
func (c ColumnInfo) DisplayName() string {
	if c.NaturalName != "" {
		return c.NaturalName
	}
	return c.Name
}

// Catalog reads table and column metadata. The primary path is the
// table_mapping/column_mapping tables maintained alongside the data; when
// those are absent the column lookup falls back to driver metadata.
type Catalog struct {
	src    source.Source
	logger *slog.Logger
}

// New creates a catalog over a connected source.
func New(src source.Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{src: src, logger: logger}
}

// ListTables returns the tables declared in the mapping table. A missing
// mapping table yields an empty list, not an error.
func (c *Catalog) ListTables(ctx context.Context) ([]TableInfo, error) {
	res, err := c.src.Query(ctx, `
		SELECT tm.db_table_name, tm.natural_name, tm.description
		FROM table_mapping tm
		ORDER BY tm.id
	`)
	if err != nil {
		c.logger.Debug("table mapping unavailable", "error", err)
		return []TableInfo{}, nil
	}

	tables := make([]TableInfo, 0, len(res.Rows))
	for _, row := range res.Rows {
		name := row["db_table_name"].String()
		if name == "" {
			continue
		}
		tables = append(tables, TableInfo{
			Name:        name,
			NaturalName: row["natural_name"].String(),
			Description: row["description"].String(),
		})
	}
	return tables, nil
}

// ListColumns returns column metadata for a table. The mapping table wins;
// when it has no rows for the table the driver metadata is used instead.
func (c *Catalog) ListColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	res, err := c.src.Query(ctx, `
		SELECT cm.db_column_name, cm.natural_name, cm.data_type
		FROM column_mapping cm
		INNER JOIN table_mapping tm ON cm.table_id = tm.id
		WHERE tm.db_table_name = ?
		ORDER BY cm.id
	`, table)
	if err == nil && len(res.Rows) > 0 {
		columns := make([]ColumnInfo, 0, len(res.Rows))
		for _, row := range res.Rows {
			name := row["db_column_name"].String()
			if name == "" {
				continue
			}
			columns = append(columns, ColumnInfo{
				Name:        name,
				NaturalName: row["natural_name"].String(),
				Type:        row["data_type"].String(),
			})
		}
		return columns, nil
	}
	if err != nil {
		c.logger.Debug("column mapping unavailable", "table", table, "error", err)
	}

	cols, err := c.src.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", table, err)
	}
	columns := make([]ColumnInfo, 0, len(cols))
	for _, col := range cols {
		columns = append(columns, ColumnInfo{Name: col.Name, Type: col.Type})
	}
	return columns, nil
}
