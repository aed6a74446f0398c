package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kontrol/internal/schema"
)

func newSchemaCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:         "schema",
		Short:       "Show the column order of the control log",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cols := schema.VisibleColumns()
			if all {
				cols = schema.Columns()
			}
			rows := make([][]string, 0, len(cols))
			for _, c := range cols {
				pos, _ := schema.Position(c.Name)
				rows = append(rows, []string{
					strconv.Itoa(pos + 1),
					c.Name,
					c.Category.String(),
					string(c.Kind),
					c.Label,
					yesNo(c.Visible),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Column", "Category", "Type", "Label", "Visible"},
				rows,
				[]columnAlignment{alignRight},
				"", fmt.Sprintf("%d columns", len(schema.Header())), fmt.Sprintf("%d defects", schema.DefectCount()),
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include hidden legacy columns")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
