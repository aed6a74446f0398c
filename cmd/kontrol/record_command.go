package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kontrol/internal/record"
	"kontrol/internal/schema"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		batch       string
		cast        string
		date        string
		controllers []string
		defects     []string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Validate an inspection and append it to the control log",
		Example: `  kontrol record --batch 12/25 --cast 100 --controller Елхова \
    --defect Второй_сорт_раковины=2 --defect Второй_сорт_зарез=1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if len(controllers) > schema.MaxControllers {
				return fmt.Errorf("at most %d controllers may sign a record", schema.MaxControllers)
			}

			s, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Refresh(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			d := s.Draft()
			updates := [][2]string{
				{schema.BatchColumn, batch},
				{schema.CastColumn, cast},
			}
			if date != "" {
				updates = append(updates, [2]string{schema.DateColumn, date})
			}
			cols := schema.ControllerColumns()
			for i, name := range controllers {
				updates = append(updates, [2]string{cols[i], name})
			}
			for _, kv := range defects {
				name, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("--defect %q: want COLUMN=VALUE", kv)
				}
				updates = append(updates, [2]string{strings.TrimSpace(name), value})
			}
			for _, u := range updates {
				if err := d.Apply(u[0], u[1]); err != nil {
					return fmt.Errorf("%s: %w", u[0], err)
				}
			}

			out := cmd.OutOrStdout()
			if name := s.ResolveName(d.Batch()); name != "" {
				fmt.Fprintf(out, "%s: %s\n", d.Batch(), name)
			}

			counts := d.Defects()
			for _, c := range schema.DefectColumns() {
				if n := counts[c.Name]; n != 0 {
					fmt.Fprintf(out, "  %s: %d\n", c.Name, n)
				}
			}

			res, err := s.Commit(cmd.Context())
			if err != nil {
				var vf *record.ValidationFailure
				if errors.As(err, &vf) {
					return fmt.Errorf("record not saved: %w", vf)
				}
				return fmt.Errorf("record not saved, nothing was written: %w", err)
			}

			fmt.Fprintf(out, "Saved %s in row %d: accepted %d of %d\n", res.Batch, res.Row, res.Accepted, d.Cast())
			if res.RefreshErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", res.RefreshErr)
			} else {
				fmt.Fprintf(out, "Доступно номеров плавок: %d\n", s.Available())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&batch, "batch", "b", "", "Batch identifier (Номер_плавки)")
	f.StringVar(&cast, "cast", "", "Cast quantity")
	f.StringVar(&date, "date", "", "Acceptance date DD.MM.YYYY (default today)")
	f.StringArrayVar(&controllers, "controller", nil, "Controller name (repeat up to 3 times)")
	f.StringArrayVarP(&defects, "defect", "d", nil, "Defect count as COLUMN=VALUE (repeatable)")
	return cmd
}
