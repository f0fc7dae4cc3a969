package nl2sql

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportal-io/reportal/internal/catalog"
)

type fakeLLM struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Chat(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.reply, f.err
}

type fakeCatalog struct{}

func (fakeCatalog) ListTables(context.Context) ([]catalog.TableInfo, error) {
	return []catalog.TableInfo{
		{Name: "orders", NaturalName: "Sales Orders", Description: "one row per order"},
	}, nil
}

func (fakeCatalog) ListColumns(_ context.Context, table string) ([]catalog.ColumnInfo, error) {
	return []catalog.ColumnInfo{
		{Name: "city", NaturalName: "City", Type: "TEXT"},
		{Name: "amount", Type: "REAL"},
	}, nil
}

func TestTranslate(t *testing.T) {
	llm := &fakeLLM{reply: "SELECT city FROM orders"}
	tr := New(llm, fakeCatalog{}, nil)

	sql, err := tr.Translate(context.Background(), "which cities have orders?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT city FROM orders", sql)
	assert.Equal(t, "which cities have orders?", llm.lastUser)

	// The schema with natural names is embedded in the system prompt.
	assert.Contains(t, llm.lastSystem, "Table: orders (known as: Sales Orders)")
	assert.Contains(t, llm.lastSystem, "city (known as: City) type: TEXT")
	assert.Contains(t, llm.lastSystem, "amount type: REAL")
}

func TestTranslateStripsFences(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"sql fence", "```sql\nSELECT city FROM orders\n```"},
		{"bare fence", "```\nSELECT city FROM orders\n```"},
		{"surrounding whitespace", "  \nSELECT city FROM orders\n  "},
		{"multiline body", "SELECT city\nFROM\n  orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(&fakeLLM{reply: tt.reply}, fakeCatalog{}, nil)
			sql, err := tr.Translate(context.Background(), "cities?")
			require.NoError(t, err)
			assert.Equal(t, "SELECT city FROM orders", sql)
		})
	}
}

func TestTranslateNormalizesPlaceholders(t *testing.T) {
	tr := New(&fakeLLM{reply: "SELECT city FROM orders WHERE city = %s"}, fakeCatalog{}, nil)
	sql, err := tr.Translate(context.Background(), "orders in NY?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT city FROM orders WHERE city = ?", sql)
}

func TestTranslateRejectsWrites(t *testing.T) {
	tr := New(&fakeLLM{reply: "DROP TABLE orders"}, fakeCatalog{}, nil)
	_, err := tr.Translate(context.Background(), "remove everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestTranslateEmptyQuestion(t *testing.T) {
	tr := New(&fakeLLM{}, fakeCatalog{}, nil)
	_, err := tr.Translate(context.Background(), "   ")
	assert.ErrorContains(t, err, "must not be empty")
}

func TestTranslateLLMFailure(t *testing.T) {
	tr := New(&fakeLLM{err: errors.New("timeout")}, fakeCatalog{}, nil)
	_, err := tr.Translate(context.Background(), "cities?")
	assert.ErrorContains(t, err, "translation failed")
}
