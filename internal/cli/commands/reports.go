package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/reportal-io/reportal/internal/tabular"
	"github.com/reportal-io/reportal/internal/viz"
)

// NewReportsCommand creates the reports command group.
func NewReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage saved report definitions",
	}

	cmd.AddCommand(newReportsListCommand())
	cmd.AddCommand(newReportsShowCommand())
	cmd.AddCommand(newReportsDeleteCommand())
	cmd.AddCommand(newReportsRunCommand())

	return cmd
}

func newReportsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig(cmd.Context())
			if err != nil {
				return err
			}
			svcs, err := buildServices(cmd.Context(), cfg, LoggerFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer svcs.Close()

			summaries, err := svcs.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No reports saved yet")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Description", "Source", "Updated"})
			for _, s := range summaries {
				t.AppendRow(table.Row{s.ID, s.Name, s.Description, s.DataSource, s.UpdatedAt})
			}
			t.Render()
			return nil
		},
	}
}

func newReportsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a report definition as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid report id %q", args[0])
			}
			cfg, err := requireConfig(cmd.Context())
			if err != nil {
				return err
			}
			svcs, err := buildServices(cmd.Context(), cfg, LoggerFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer svcs.Close()

			def, err := svcs.Store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(def)
		},
	}
}

func newReportsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid report id %q", args[0])
			}
			cfg, err := requireConfig(cmd.Context())
			if err != nil {
				return err
			}
			svcs, err := buildServices(cmd.Context(), cfg, LoggerFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer svcs.Close()

			deleted, err := svcs.Store.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("report %d not found", id)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %d\n", id)
			return nil
		},
	}
}

func newReportsRunCommand() *cobra.Command {
	var format string
	var chart string

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Execute a saved report's query",
		Long: `Execute the declarative query of a saved report and render the result.
With --chart, evaluate chart eligibility for the requested kind and print the
transformed series instead of the raw rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid report id %q", args[0])
			}
			cfg, err := requireConfig(cmd.Context())
			if err != nil {
				return err
			}
			svcs, err := buildServices(cmd.Context(), cfg, LoggerFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer svcs.Close()

			def, err := svcs.Store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			res, err := svcs.Query.ExecuteStructured(cmd.Context(), def.QueryConfig)
			if err != nil {
				return err
			}

			if chart == "" {
				return renderResult(cmd.OutOrStdout(), res, format)
			}

			eval, err := viz.Evaluate(res, tabular.Classify(res), viz.Kind(chart))
			if err != nil {
				return err
			}
			if !eval.Eligible {
				return fmt.Errorf("result is not eligible for a %s chart", chart)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(eval.Series)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVar(&chart, "chart", "", "Evaluate chart eligibility: pie, bar, or line")

	return cmd
}
