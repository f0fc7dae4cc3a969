package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportal-io/reportal/internal/source"
	"github.com/reportal-io/reportal/internal/tabular"
)

type stubSource struct {
	queryFn   func(ctx context.Context, q string, args ...any) (tabular.Result, error)
	columnsFn func(ctx context.Context, table string) ([]source.Column, error)
}

func (s *stubSource) Connect(context.Context, source.Config) error { return nil }
func (s *stubSource) Close() error                                 { return nil }
func (s *stubSource) TypeName() string                             { return "stub" }

func (s *stubSource) Query(ctx context.Context, q string, args ...any) (tabular.Result, error) {
	return s.queryFn(ctx, q, args...)
}

func (s *stubSource) Columns(ctx context.Context, table string) ([]source.Column, error) {
	return s.columnsFn(ctx, table)
}

func TestListTables(t *testing.T) {
	src := &stubSource{
		queryFn: func(_ context.Context, q string, _ ...any) (tabular.Result, error) {
			require.Contains(t, q, "table_mapping")
			return tabular.NewResult(
				[]string{"db_table_name", "natural_name", "description"},
				[]tabular.Row{
					{"db_table_name": tabular.Str("orders"), "natural_name": tabular.Str("Orders"), "description": tabular.Str("sales orders")},
					{"db_table_name": tabular.Null(), "natural_name": tabular.Str("broken")},
				},
			), nil
		},
	}

	tables, err := New(src, nil).ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1, "rows without a db name are skipped")
	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, "Orders", tables[0].DisplayName())
	assert.Equal(t, "sales orders", tables[0].Description)
}

func TestListTablesMissingMapping(t *testing.T) {
	src := &stubSource{
		queryFn: func(context.Context, string, ...any) (tabular.Result, error) {
			return tabular.Result{}, errors.New("no such table: table_mapping")
		},
	}

	tables, err := New(src, nil).ListTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestListColumnsFromMapping(t *testing.T) {
	src := &stubSource{
		queryFn: func(_ context.Context, q string, args ...any) (tabular.Result, error) {
			require.Contains(t, q, "column_mapping")
			require.Equal(t, []any{"orders"}, args)
			return tabular.NewResult(
				[]string{"db_column_name", "natural_name", "data_type"},
				[]tabular.Row{
					{"db_column_name": tabular.Str("city"), "natural_name": tabular.Str("City"), "data_type": tabular.Str("TEXT")},
				},
			), nil
		},
		columnsFn: func(context.Context, string) ([]source.Column, error) {
			t.Fatal("driver metadata should not be consulted when the mapping has rows")
			return nil, nil
		},
	}

	cols, err := New(src, nil).ListColumns(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "city", cols[0].Name)
	assert.Equal(t, "City", cols[0].DisplayName())
	assert.Equal(t, "TEXT", cols[0].Type)
}

func TestListColumnsFallsBackToDriver(t *testing.T) {
	src := &stubSource{
		queryFn: func(context.Context, string, ...any) (tabular.Result, error) {
			return tabular.Result{}, errors.New("no such table: column_mapping")
		},
		columnsFn: func(_ context.Context, table string) ([]source.Column, error) {
			require.Equal(t, "orders", table)
			return []source.Column{{Name: "id", Type: "INTEGER"}, {Name: "city", Type: "TEXT"}}, nil
		},
	}

	cols, err := New(src, nil).ListColumns(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "id", cols[0].DisplayName(), "no natural name from driver metadata")
}

func TestListColumnsUnknownTable(t *testing.T) {
	src := &stubSource{
		queryFn: func(context.Context, string, ...any) (tabular.Result, error) {
			return tabular.Result{}, errors.New("query failed")
		},
		columnsFn: func(context.Context, string) ([]source.Column, error) {
			return nil, errors.New("no such table")
		},
	}

	_, err := New(src, nil).ListColumns(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
