package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metacore/internal/export"
	"metacore/internal/persistence"
)

func (a *app) diffCmd() *cobra.Command {
	var (
		fromHistory bool
		format      string
	)
	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Compare two snapshots and report breaking changes",
		Long: `Diff compares two exported snapshots, given as files or, with --history, as
snapshot ids ("latest" names the newest). It exits with status 1 when a
change is breaking.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}
			ctx := cmd.Context()
			load := readSnapshot
			if fromHistory {
				history, err := persistence.Open(ctx, a.cfg.History)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer history.Close()
				p := export.Publisher{History: history}
				load = func(ctx context.Context, id string) (*export.Snapshot, error) {
					if id == "latest" {
						return p.Latest(ctx)
					}
					return p.Load(ctx, id)
				}
			}
			from, err := load(ctx, args[0])
			if err != nil {
				return err
			}
			to, err := load(ctx, args[1])
			if err != nil {
				return err
			}

			res := export.Diff(from, to)
			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(res)
			} else if len(res.Changes) == 0 {
				_, err = fmt.Fprintln(out, "no changes")
			} else {
				_, err = fmt.Fprint(out, res.Report())
			}
			if err != nil {
				return err
			}
			if res.HasBreaking() {
				return &exitError{code: 1, msg: "breaking changes found"}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromHistory, "history", false, "arguments are snapshot ids in the history")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

func readSnapshot(_ context.Context, path string) (*export.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap, err := export.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}
