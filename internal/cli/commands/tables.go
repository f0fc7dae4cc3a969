package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables [TABLE]",
		Short: "List queryable tables, or the columns of one table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(cmd.Context())
			if err != nil {
				return err
			}
			svcs, err := buildServices(cmd.Context(), cfg, LoggerFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer svcs.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)

			if len(args) == 1 {
				cols, err := svcs.Catalog.ListColumns(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				t.AppendHeader(table.Row{"Column", "Natural Name", "Type"})
				for _, c := range cols {
					t.AppendRow(table.Row{c.Name, c.NaturalName, c.Type})
				}
				t.Render()
				return nil
			}

			tables, err := svcs.Catalog.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Table", "Natural Name", "Description"})
			for _, tb := range tables {
				t.AppendRow(table.Row{tb.Name, tb.NaturalName, tb.Description})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}
