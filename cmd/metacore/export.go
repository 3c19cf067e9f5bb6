package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metacore/internal/blob"
	"metacore/internal/export"
	"metacore/internal/persistence"
	"metacore/pkg/metamodel"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		patterns []string
		format   string
		output   string
		publish  bool
	)
	cmd := &cobra.Command{
		Use:   "export [dir]",
		Short: "Export the metamodel as a JSON or YAML snapshot",
		Long: `Export builds the metamodel like validate and writes it as a snapshot
document. With --publish the document is stored in the configured blob store
and recorded in the snapshot history instead of being written out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			ctx := cmd.Context()
			loader, err := a.buildLoader(ctx, source{dir: dir, patterns: patterns, mode: metamodel.ModeFull})
			if err != nil {
				return err
			}
			failures, err := initLoader(ctx, loader)
			if err != nil {
				return err
			}
			snap, err := export.Build(ctx, loader, failures, export.Options{
				Mode:       string(loader.Mode()),
				Deployment: string(loader.Deployment()),
				Select:     a.cfg.Introspection.Selects,
			})
			if err != nil {
				return err
			}

			if !publish {
				if output == "" || output == "-" {
					return export.Encode(cmd.OutOrStdout(), snap, f)
				}
				raw, err := export.Marshal(snap, f)
				if err != nil {
					return err
				}
				return os.WriteFile(output, raw, 0o644)
			}

			blobs, err := blob.Open(ctx, a.cfg.Blob)
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			history, err := persistence.Open(ctx, a.cfg.History)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()
			out, err := export.Publisher{Blob: blobs, History: history, Logger: a.entry("export")}.Publish(ctx, snap, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", out.ID, out.BlobKey, snap.Fingerprint)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&patterns, "pattern", "p", nil, "package patterns relative to dir (default introspection.patterns)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "document format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&publish, "publish", false, "store in the blob store and snapshot history")
	return cmd
}
