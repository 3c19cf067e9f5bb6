// Command metacore builds the metamodel of a Go domain, validates it,
// exports and compares snapshots of it, and serves it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"metacore/internal/config"
	"metacore/internal/logging"
)

// Set by the release build.
var (
	version   = "dev"
	buildTime = "unknown"
)

var exitFunc = os.Exit

// exitError carries a non-zero exit code for findings that are not
// failures of the command itself, such as blocking validation failures.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

// cli runs the command line and returns the process exit code: 0 on
// success, 1 for findings, 2 for errors.
func cli(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			_, _ = fmt.Fprintln(stderr, exit.msg)
		}
		return exit.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 2
}

type app struct {
	stdout, stderr io.Writer
	configPath     string
	logLevel       string
	cfg            *config.Config
	log            *logrus.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:           "metacore",
		Short:         "Build, validate and publish the metamodel of a Go domain",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default "+config.DefaultFile+" when present)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		a.validateCmd(),
		a.exportCmd(),
		a.diffCmd(),
		a.historyCmd(),
		a.serveCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "metacore %s (built %s)\n", version, buildTime)
			},
		},
	)
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.New(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, logger
	return nil
}

func (a *app) entry(command string) *logrus.Entry {
	return a.log.WithField("command", command)
}
