package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"metacore/internal/devmode"
	"metacore/internal/httpapi"
	"metacore/internal/metrics"
	"metacore/internal/persistence"
	"metacore/pkg/metamodel"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		patterns []string
		addr     string
		dev      bool
	)
	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve the metamodel, validation results and snapshot history over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Introspection.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			ctx := cmd.Context()
			log := a.entry("serve")

			collector := metrics.NewCollector("")
			recorder := metrics.Multi{collector, metrics.NewExpvarRecorder("")}
			live, err := devmode.NewLive(ctx, func(ctx context.Context) (*metamodel.Loader, error) {
				return a.buildLoader(ctx, source{dir: dir, patterns: patterns, metrics: recorder})
			}, log)
			if err != nil {
				return err
			}
			if err := collector.TrackSpecifications("", func() int { return len(live.Specifications()) }); err != nil {
				return err
			}

			history, err := persistence.Open(ctx, a.cfg.History)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()

			server := httpapi.New(live, httpapi.Options{
				History: history,
				Metrics: collector.Handler(),
				Gauge:   collector,
				Logger:  log,
				Select:  a.cfg.Introspection.Selects,
			})

			if dev || a.cfg.DevMode.Enabled {
				watcher, err := devmode.New(dir, live.Reload, devmode.Options{
					Debounce: a.cfg.DevMode.Debounce,
					Logger:   log,
				})
				if err != nil {
					return err
				}
				go func() {
					if err := watcher.Run(ctx); err != nil {
						log.WithError(err).Error("watcher stopped")
					}
				}()
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			log.WithField("addr", ln.Addr().String()).Info("listening")
			return httpapi.Serve(ctx, ln, server.Handler(), a.cfg.HTTP.ShutdownTimeout)
		},
	}
	cmd.Flags().StringSliceVarP(&patterns, "pattern", "p", nil, "package patterns relative to dir (default introspection.patterns)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr)")
	cmd.Flags().BoolVar(&dev, "dev", false, "reload the metamodel when Go sources change")
	return cmd
}
