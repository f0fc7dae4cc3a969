// Package nl2sql translates natural-language questions into read-only SQL
// using a language model grounded on the data-source catalog.
package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/reportal-io/reportal/internal/catalog"
	"github.com/reportal-io/reportal/internal/llm"
	"github.com/reportal-io/reportal/internal/source"
)

// CatalogReader provides the schema description embedded in the prompt.
type CatalogReader interface {
	ListTables(ctx context.Context) ([]catalog.TableInfo, error)
	ListColumns(ctx context.Context, table string) ([]catalog.ColumnInfo, error)
}

// Translator converts questions into validated SELECT statements.
type Translator struct {
	llm     llm.Client
	catalog CatalogReader
	logger  *slog.Logger
}

// New creates a translator.
func New(client llm.Client, cat CatalogReader, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Translator{llm: client, catalog: cat, logger: logger}
}

const systemPromptTemplate = `You are an expert SQL generation assistant. Convert the user's natural-language question into a single SQLite SELECT statement.

%s

Rules:
1. Generate SELECT statements only. Never use DROP, DELETE, UPDATE, INSERT, ALTER, CREATE, or TRUNCATE.
2. Use the database table and column names shown above, not their natural-language names.
3. Use SQLite syntax: ? placeholders and SQLite date functions such as DATE().
4. Return only the SQL statement with no explanation and no markdown formatting.
5. Use JOIN when the question spans multiple tables.
6. Use LIKE for fuzzy matching, standard comparison operators for numbers, GROUP BY for aggregation, and ORDER BY for sorting.`

// Translate produces a validated SQL statement for a question.
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	schema, err := t.schemaPrompt(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to describe schema: %w", err)
	}

	raw, err := t.llm.Chat(ctx, fmt.Sprintf(systemPromptTemplate, schema), question)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}

	sql := cleanSQL(stripFences(raw))
	if err := source.ValidateReadOnly(sql); err != nil {
		return "", fmt.Errorf("generated statement was rejected: %w", err)
	}
	t.logger.Debug("translated query", "question", question, "sql", sql)
	return sql, nil
}

// schemaPrompt renders the catalog as prompt text, including natural-language
// names so the model can resolve the user's vocabulary.
func (t *Translator) schemaPrompt(ctx context.Context) (string, error) {
	tables, err := t.catalog.ListTables(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Database schema:\n")
	for _, table := range tables {
		fmt.Fprintf(&b, "\nTable: %s", table.Name)
		if table.NaturalName != "" && table.NaturalName != table.Name {
			fmt.Fprintf(&b, " (known as: %s)", table.NaturalName)
		}
		if table.Description != "" {
			fmt.Fprintf(&b, " - %s", table.Description)
		}
		b.WriteString("\nColumns:\n")

		cols, err := t.catalog.ListColumns(ctx, table.Name)
		if err != nil {
			t.logger.Warn("failed to list columns for prompt", "table", table.Name, "error", err)
			continue
		}
		for _, col := range cols {
			fmt.Fprintf(&b, "  - %s", col.Name)
			if col.NaturalName != "" && col.NaturalName != col.Name {
				fmt.Fprintf(&b, " (known as: %s)", col.NaturalName)
			}
			if col.Type != "" {
				fmt.Fprintf(&b, " type: %s", col.Type)
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```sql\\s*|^```\\s*")
	fenceClose = regexp.MustCompile("\\s*```\\s*$")
)

// stripFences removes a markdown code fence the model may wrap the SQL in.
func stripFences(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = fenceOpen.ReplaceAllString(sql, "")
	sql = fenceClose.ReplaceAllString(sql, "")
	return strings.TrimSpace(sql)
}

// cleanSQL collapses whitespace and normalizes placeholders to "?".
func cleanSQL(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	sql = strings.ReplaceAll(sql, "%s", "?")
	return strings.TrimSpace(sql)
}
