// Package interpret produces short natural-language summaries of query
// results.
package interpret

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reportal-io/reportal/internal/llm"
	"github.com/reportal-io/reportal/internal/tabular"
)

// promptRowLimit caps how many rows are shown to the model.
const promptRowLimit = 20

const systemPrompt = `You are a professional data analyst. Given a user's question and the query result, write a clear, accurate interpretation of the data.

Guidelines:
1. Summarize the main findings concisely.
2. Highlight key figures and trends, with concrete numbers and comparisons.
3. For time series, describe how values change over time.
4. For large results, focus on the overall picture.
5. If the result is empty, suggest likely reasons.
6. Keep the interpretation short, roughly 100 to 300 words.`

// Interpreter summarizes results with a language model.
type Interpreter struct {
	llm    llm.Client
	logger *slog.Logger
}

// New creates an interpreter.
func New(client llm.Client, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Interpreter{llm: client, logger: logger}
}

// Interpret returns a summary of the result, or "" when interpretation fails.
// A failed interpretation never fails the query that produced the result.
func (i *Interpreter) Interpret(ctx context.Context, question string, res tabular.Result) string {
	prompt := fmt.Sprintf("User question: %s\n\n%s\n\nPlease interpret this query result.",
		question, formatResult(res))

	summary, err := i.llm.Chat(ctx, systemPrompt, prompt)
	if err != nil {
		i.logger.Warn("result interpretation failed", "error", err)
		return ""
	}
	return summary
}

// formatResult renders the head of the result as a plain text table.
func formatResult(res tabular.Result) string {
	if len(res.Rows) == 0 {
		return "The query returned no rows."
	}

	var lines []string
	lines = append(lines, "Query result:", "")

	header := strings.Join(res.Columns, " | ")
	lines = append(lines, header, strings.Repeat("-", len(header)))

	shown := res.Rows
	if len(shown) > promptRowLimit {
		shown = shown[:promptRowLimit]
	}
	for _, row := range shown {
		values := make([]string, 0, len(res.Columns))
		for _, col := range res.Columns {
			v := row[col].String()
			if len(v) > 50 {
				v = v[:47] + "..."
			}
			values = append(values, v)
		}
		lines = append(lines, strings.Join(values, " | "))
	}
	if len(res.Rows) > promptRowLimit {
		lines = append(lines, "", fmt.Sprintf("(%d rows total, showing the first %d)", len(res.Rows), promptRowLimit))
	}
	return strings.Join(lines, "\n")
}
