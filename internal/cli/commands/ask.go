package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/reportal-io/reportal/internal/query"
	"github.com/reportal-io/reportal/internal/tabular"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	Format  string
	HideSQL bool
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [QUESTION]",
		Short: "Query the data source in natural language",
		Long: `Translate a natural-language question into SQL, execute it against the
configured data source, and render the result.

When invoked without arguments, enters interactive REPL mode.`,
		Example: `  # One-shot question
  reportal ask "total sales by city last month"

  # Output as JSON
  reportal ask "top ten customers by revenue" --format json

  # Interactive mode
  reportal ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().BoolVar(&opts.HideSQL, "hide-sql", false, "Do not print the generated SQL")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts *AskOptions) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	logger := LoggerFrom(cmd.Context())

	svcs, err := buildServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.Close()

	if len(args) == 0 {
		return runAskREPL(cmd, svcs, cfg.StatePath, opts)
	}

	question := strings.Join(args, " ")
	return askAndRender(cmd.Context(), cmd.OutOrStdout(), svcs.Query, question, opts)
}

func askAndRender(ctx context.Context, w io.Writer, svc *query.Service, question string, opts *AskOptions) error {
	resp := svc.Execute(ctx, question, !opts.HideSQL)
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}

	if resp.SQL != "" {
		_, _ = fmt.Fprintf(w, "SQL: %s\n\n", resp.SQL)
	}
	res := tabular.Result{Columns: resp.Columns, Rows: resp.Rows}
	if err := renderResult(w, res, opts.Format); err != nil {
		return err
	}
	if resp.Interpretation != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", resp.Interpretation)
	}
	return nil
}

func runAskREPL(cmd *cobra.Command, svcs *services, statePath string, opts *AskOptions) error {
	ctx := cmd.Context()

	historyFile := filepath.Join(filepath.Dir(statePath), "ask_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "reportal> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Reportal ask REPL")
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type a question in plain language, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := handleAskDotCommand(ctx, cmd, svcs, line, opts.Format); quit {
				break
			}
			continue
		}

		if err := askAndRender(ctx, cmd.OutOrStdout(), svcs.Query, line, opts); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

// handleAskDotCommand executes a dot-command and reports whether to quit.
func handleAskDotCommand(ctx context.Context, cmd *cobra.Command, svcs *services, line, format string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "Commands:")
		_, _ = fmt.Fprintln(out, "  .tables            List queryable tables")
		_, _ = fmt.Fprintln(out, "  .columns TABLE     Show columns of a table")
		_, _ = fmt.Fprintln(out, "  .quit              Exit the REPL")

	case ".tables":
		tables, err := svcs.Catalog.ListTables(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		for _, t := range tables {
			if t.NaturalName != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", t.Name, t.NaturalName)
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Name)
			}
		}

	case ".columns":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .columns TABLE")
			return false
		}
		cols, err := svcs.Catalog.ListColumns(ctx, parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		for _, c := range cols {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Name, c.Type)
		}

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command %s (try .help)\n", parts[0])
	}
	return false
}
