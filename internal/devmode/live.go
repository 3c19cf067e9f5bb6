package devmode

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"metacore/pkg/facet"
	"metacore/pkg/metamodel"
	"metacore/pkg/metamodel/validation"
)

// BuildFunc constructs a fresh loader from the current sources.
type BuildFunc func(ctx context.Context) (*metamodel.Loader, error)

// Live serves the most recently built loader. A reload that fails to build
// keeps the previous loader; one that builds with blocking failures replaces
// it so the failures become visible.
type Live struct {
	build   BuildFunc
	current atomic.Pointer[metamodel.Loader]
	reloads atomic.Uint64
	base    atomic.Uint64
	log     *logrus.Entry
}

// NewLive builds and initialises the first loader.
func NewLive(ctx context.Context, build BuildFunc, logger *logrus.Entry) (*Live, error) {
	if logger == nil {
		base := logrus.New()
		base.SetOutput(io.Discard)
		logger = logrus.NewEntry(base)
	}
	l := &Live{build: build, log: logger.WithField("component", "devmode")}
	loader, err := l.init(ctx)
	if err != nil {
		return nil, err
	}
	l.current.Store(loader)
	return l, nil
}

func (l *Live) init(ctx context.Context) (*metamodel.Loader, error) {
	loader, err := l.build(ctx)
	if err != nil {
		return nil, err
	}
	failures, err := loader.Init(ctx)
	if failures == nil {
		return nil, err
	}
	if failures.HasBlocking() {
		l.log.WithField("failures", failures.Len()).Warn("metamodel has blocking failures:\n" + failures.Report())
	}
	return loader, nil
}

// Reload rebuilds the loader. It has the ChangeFunc signature.
func (l *Live) Reload(ctx context.Context, paths []string) {
	next, err := l.init(ctx)
	if err != nil {
		l.log.WithError(err).WithField("files", len(paths)).Warn("reload failed, keeping previous metamodel")
		return
	}
	prev := l.current.Swap(next)
	prev.InvalidateAll()
	l.base.Add(prev.Generation())
	n := l.reloads.Add(1)
	l.log.WithFields(logrus.Fields{"reload": n, "types": len(next.Specifications())}).Info("metamodel reloaded")
}

// Loader returns the current loader.
func (l *Live) Loader() *metamodel.Loader { return l.current.Load() }

// Reloads counts successful reloads.
func (l *Live) Reloads() uint64 { return l.reloads.Load() }

func (l *Live) Specifications() []*metamodel.Specification {
	return l.current.Load().Specifications()
}

func (l *Live) Lookup(key string) (*metamodel.Specification, bool) {
	return l.current.Load().Lookup(key)
}

func (l *Live) LoadKey(ctx context.Context, key string) (*metamodel.Specification, error) {
	return l.current.Load().LoadKey(ctx, key)
}

func (l *Live) LoadDomain(ctx context.Context, selects func(key string) bool) error {
	return l.current.Load().LoadDomain(ctx, selects)
}

func (l *Live) Validate(ctx context.Context) (*validation.Failures, error) {
	return l.current.Load().Validate(ctx)
}

// Generation advances on every reload and every invalidation of the
// current loader.
func (l *Live) Generation() uint64 {
	return l.base.Load() + l.current.Load().Generation()
}

func (l *Live) Mode() metamodel.Mode { return l.current.Load().Mode() }

func (l *Live) Deployment() facet.DeploymentType { return l.current.Load().Deployment() }
