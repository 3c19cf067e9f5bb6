package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel"
	"metacore/pkg/metamodel/validation"
)

// selecting narrows the domain types an introspector lists to those the
// include and exclude patterns accept. Types outside the selection still
// load when a selected type refers to them.
type selecting struct {
	introspect.Introspector
	classes []introspect.TypeRef
}

func (s selecting) Classes() []introspect.TypeRef { return s.classes }

type source struct {
	dir      string
	patterns []string
	mode     metamodel.Mode
	metrics  metamodel.MetricsRecorder
}

func (a *app) buildLoader(ctx context.Context, src source) (*metamodel.Loader, error) {
	patterns := src.patterns
	if len(patterns) == 0 {
		patterns = a.cfg.Introspection.Patterns
	}
	dir := src.dir
	if dir == "" {
		dir = a.cfg.Introspection.Dir
	}
	introspector, err := introspect.LoadSource(ctx, dir, patterns...)
	if err != nil {
		return nil, err
	}
	var classes []introspect.TypeRef
	for _, ref := range introspector.Classes() {
		if a.cfg.Introspection.Selects(ref.Key) {
			classes = append(classes, ref)
		}
	}
	mode := src.mode
	if mode == "" {
		mode = a.cfg.Mode()
	}
	a.log.WithFields(logrus.Fields{
		"dir":      dir,
		"patterns": patterns,
		"types":    len(classes),
		"mode":     mode,
	}).Debug("sources loaded")
	return metamodel.NewLoader(selecting{Introspector: introspector, classes: classes}, metamodel.Options{
		Mode:              mode,
		Deployment:        facet.DeploymentType(a.cfg.Deployment),
		Naming:            a.cfg.Naming,
		PublishingEnabled: a.cfg.Publishing,
		Logger:            logrus.NewEntry(a.log),
		Metrics:           src.metrics,
	})
}

// initLoader runs Init and returns the failures even when they block.
func initLoader(ctx context.Context, l *metamodel.Loader) (*validation.Failures, error) {
	failures, err := l.Init(ctx)
	if failures == nil {
		return nil, err
	}
	return failures, nil
}
