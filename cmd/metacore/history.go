package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"metacore/internal/persistence"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			history, err := persistence.Open(ctx, a.cfg.History)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()
			records, err := history.List(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tCREATED\tTYPES\tBLOCKING\tFINGERPRINT")
			for _, r := range records {
				fp := r.Fingerprint
				if len(fp) > 12 {
					fp = fp[:12]
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Types, r.Blocking, fp)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records, 0 for all")
	return cmd
}
