package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"metacore/internal/export"
	"metacore/pkg/metamodel"
	"metacore/pkg/metamodel/validation"
)

func (a *app) validateCmd() *cobra.Command {
	var (
		patterns []string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Build every domain type and report metamodel validation failures",
		Long: `Validate type-checks the Go packages under dir, builds the specification of
every domain type and runs the metamodel validators. It exits with status 1
when a blocking failure is found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
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
			types := len(loader.Specifications())
			if format == "json" {
				err = writeFailuresJSON(cmd.OutOrStdout(), types, failures)
			} else {
				err = writeFailuresText(cmd.OutOrStdout(), types, failures)
			}
			if err != nil {
				return err
			}
			if failures.HasBlocking() {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&patterns, "pattern", "p", nil, "package patterns relative to dir (default introspection.patterns)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

func writeFailuresText(w io.Writer, types int, failures *validation.Failures) error {
	for _, f := range failures.Items() {
		if _, err := fmt.Fprintf(w, "%-5s %s\n", f.Severity, f); err != nil {
			return err
		}
	}
	blocking := len(failures.WithSeverity(validation.SeverityBlock))
	warnings := len(failures.WithSeverity(validation.SeverityWarn))
	_, err := fmt.Fprintf(w, "%d types, %d blocking, %d warnings\n", types, blocking, warnings)
	return err
}

func writeFailuresJSON(w io.Writer, types int, failures *validation.Failures) error {
	out := struct {
		Types    int              `json:"types"`
		Blocking bool             `json:"blocking"`
		Failures []export.Failure `json:"failures"`
	}{Types: types, Blocking: failures.HasBlocking(), Failures: []export.Failure{}}
	for _, f := range failures.Items() {
		out.Failures = append(out.Failures, export.Failure{
			Identifier: f.Identifier.String(),
			Severity:   string(f.Severity),
			Message:    f.Message,
			Source:     f.Factory,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
