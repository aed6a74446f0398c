package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	var idsOnly bool

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List batches still open for inspection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			s, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := s.Refresh(cmd.Context()); err != nil {
				// The catalogue degrades to empty; report and carry on.
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			for _, m := range s.Malformed() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %v\n", m)
			}

			batches := s.Catalogue().Batches()
			if idsOnly {
				for _, b := range batches {
					fmt.Fprintln(out, b.ID)
				}
				return nil
			}

			rows := make([][]string, 0, len(batches))
			for i, b := range batches {
				rows = append(rows, []string{strconv.Itoa(i + 1), b.ID, b.Name})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Номер плавки", "Наименование отливки"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
			}
			fmt.Fprintf(out, "Доступно номеров плавок: %d\n", s.Available())
			return nil
		},
	}
	cmd.Flags().BoolVar(&idsOnly, "ids", false, "Print identifiers only, one per line")
	return cmd
}
