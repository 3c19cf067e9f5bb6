// Package metamodel builds and caches Specifications: the facet-decorated
// metamodel of domain types. The Loader runs the factory pipeline once per
// type, publishes the result and serves every later lookup from its cache.
package metamodel

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/factory"
	"metacore/pkg/metamodel/validation"
)

// Mode selects when member types are loaded.
type Mode string

const (
	// ModeFull loads every reachable member type eagerly and builds the
	// domain types during Init.
	ModeFull Mode = "FULL"
	// ModeLazy loads member types on first use.
	ModeLazy Mode = "LAZY"
	// ModeLazyUnlessProduction is lazy except in production deployments.
	ModeLazyUnlessProduction Mode = "LAZY_UNLESS_PRODUCTION"
)

// ParseMode parses a mode name case-insensitively. Empty selects
// ModeLazyUnlessProduction.
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(value))); m {
	case "":
		return ModeLazyUnlessProduction, nil
	case ModeFull, ModeLazy, ModeLazyUnlessProduction:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

// Options configures a Loader.
type Options struct {
	Mode              Mode
	Deployment        facet.DeploymentType
	Naming            factory.Naming
	PublishingEnabled bool
	// Types are the domain types built by Init in addition to those listed
	// by the introspector.
	Types   []introspect.TypeRef
	Plugins []Plugin
	Logger  *logrus.Entry
	Metrics MetricsRecorder
}

// Classes is implemented by introspectors that know their domain types.
type Classes interface {
	Classes() []introspect.TypeRef
}

type state int

const (
	stateLoading state = iota + 1
	stateLoaded
)

type entry struct {
	state state
	spec  *Specification
	owner *session
	done  chan struct{}
}

// session identifies one top-level lookup and the nested lookups it makes
// while building.
type session struct {
	id     uint64
	loader *Loader
}

type sessionKey struct{}

// Loader builds and caches specifications. It is safe for concurrent use.
type Loader struct {
	introspector introspect.Introspector
	model        *factory.ProgrammingModel
	engine       *ValidatorEngine
	plugins      []PluginMetadata
	mode         Mode
	deployment   facet.DeploymentType
	naming       factory.Naming
	types        []introspect.TypeRef
	log          *logrus.Entry
	metrics      MetricsRecorder
	sessions     atomic.Uint64

	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	waitFor    map[*session]*session
}

// NewLoader constructs a loader over introspector.
func NewLoader(introspector introspect.Introspector, opts Options) (*Loader, error) {
	if introspector == nil {
		return nil, fmt.Errorf("metamodel: introspector is required")
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	deployment := opts.Deployment
	if deployment == "" {
		deployment = facet.Prototyping
	}
	logger := opts.Logger
	if logger == nil {
		base := logrus.New()
		base.SetOutput(io.Discard)
		logger = logrus.NewEntry(base)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	model := factory.DefaultProgrammingModel(factory.Options{PublishingEnabled: opts.PublishingEnabled})
	engine := NewDefaultValidatorEngine()
	validators, plugins, err := installPlugins(model, opts.Plugins)
	if err != nil {
		return nil, err
	}
	for _, v := range validators {
		engine.Register(v)
	}

	return &Loader{
		introspector: introspector,
		model:        model,
		engine:       engine,
		plugins:      plugins,
		mode:         mode,
		deployment:   deployment,
		naming:       opts.Naming.WithDefaults(),
		types:        slices.Clone(opts.Types),
		log:          logger.WithField("component", "metamodel"),
		metrics:      metrics,
		entries:      make(map[string]*entry),
		waitFor:      make(map[*session]*session),
	}, nil
}

// Mode returns the configured introspection mode.
func (l *Loader) Mode() Mode { return l.mode }

// Deployment returns the configured deployment type.
func (l *Loader) Deployment() facet.DeploymentType { return l.deployment }

// Model returns the programming model used for builds.
func (l *Loader) Model() *factory.ProgrammingModel { return l.model }

// Plugins returns metadata of the installed plugins.
func (l *Loader) Plugins() []PluginMetadata { return slices.Clone(l.plugins) }

// Generation counts InvalidateAll calls.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

func (l *Loader) eager() bool {
	switch l.mode {
	case ModeFull:
		return true
	case ModeLazyUnlessProduction:
		return l.deployment == facet.Production
	default:
		return false
	}
}

func (l *Loader) session(ctx context.Context) (context.Context, *session) {
	if s, ok := ctx.Value(sessionKey{}).(*session); ok && s.loader == l {
		return ctx, s
	}
	s := &session{id: l.sessions.Add(1), loader: l}
	return context.WithValue(ctx, sessionKey{}, s), s
}

// Load returns the specification of a runtime type.
func (l *Loader) Load(ctx context.Context, t reflect.Type) (*Specification, error) {
	if t == nil {
		return nil, ErrInvalidRef
	}
	return l.LoadSpecification(ctx, introspect.RefOf(t))
}

// LoadValue returns the specification of the dynamic type of v.
func (l *Loader) LoadValue(ctx context.Context, v any) (*Specification, error) {
	if v == nil {
		return nil, ErrInvalidRef
	}
	return l.Load(ctx, reflect.TypeOf(v))
}

// LoadSpecification returns the specification for ref, building it on
// first use. Loaded specifications are returned as the same instance until
// invalidated. Concurrent callers for a key wait for the single build in
// flight; a lookup that would wait on itself, directly or through other
// waiting builds, receives the in-progress specification instead.
func (l *Loader) LoadSpecification(ctx context.Context, ref introspect.TypeRef) (*Specification, error) {
	if ref.IsZero() {
		return nil, ErrInvalidRef
	}
	ctx, s := l.session(ctx)
	for {
		l.mu.Lock()
		e, ok := l.entries[ref.Key]
		if !ok {
			e = &entry{
				state: stateLoading,
				spec:  newSpecification(l, ref, l.generation),
				owner: s,
				done:  make(chan struct{}),
			}
			l.entries[ref.Key] = e
			l.mu.Unlock()
			return l.build(ctx, ref, e)
		}
		if e.state == stateLoaded {
			l.mu.Unlock()
			return e.spec, nil
		}
		if l.reaches(e.owner, s) {
			spec := e.spec
			l.mu.Unlock()
			l.log.WithField("type", ref.Key).Debug("cyclic lookup served in-progress specification")
			return spec, nil
		}
		l.waitFor[s] = e.owner
		done := e.done
		l.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
		}

		l.mu.Lock()
		delete(l.waitFor, s)
		l.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// reaches reports whether following wait-for edges from "from" arrives at
// "to". Callers hold l.mu.
func (l *Loader) reaches(from, to *session) bool {
	for cur := from; cur != nil; cur = l.waitFor[cur] {
		if cur == to {
			return true
		}
	}
	return false
}

func (l *Loader) build(ctx context.Context, ref introspect.TypeRef, e *entry) (spec *Specification, err error) {
	start := time.Now()
	log := l.log.WithField("type", ref.Key)
	published := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metamodel: build %s: panic: %v", ref.Key, r)
		}
		if err != nil && !published {
			l.abandon(ref.Key, e)
			log.WithError(err).Warn("specification build failed")
			spec = nil
		}
		l.metrics.Observe(ctx, OpLoad, err == nil, time.Since(start))
	}()

	class, err := l.introspector.Introspect(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("metamodel: load %s: %w", ref.Key, err)
	}
	spec = e.spec
	spec.class = class

	env := &factory.Env{
		Ctx:      ctx,
		Naming:   l.naming,
		Types:    l,
		Remover:  factory.NewMethodRemover(class),
		Failures: spec.failures,
	}
	l.model.ProcessClass(factory.NewClassContext(env, class, spec.holder))
	if !class.Ref.IsValue() {
		l.buildMembers(env, spec)
	}
	spec.seal()

	l.mu.Lock()
	e.state = stateLoaded
	close(e.done)
	published = true
	l.mu.Unlock()
	log.WithFields(logrus.Fields{
		"members":  len(spec.members),
		"failures": spec.failures.Len(),
		"duration": time.Since(start),
	}).Debug("specification loaded")

	if l.eager() {
		l.loadMemberTypes(ctx, spec)
	}
	return spec, nil
}

// abandon drops a failed build so the next lookup retries it.
func (l *Loader) abandon(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[key] == e {
		delete(l.entries, key)
	}
	close(e.done)
}

func (l *Loader) buildMembers(env *factory.Env, spec *Specification) {
	class := spec.class
	for _, field := range class.Fields {
		feature := factory.FeatureProperty
		if field.Type.IsCollection() {
			feature = factory.FeatureCollection
		}
		id := factory.MemberName(field.Name)
		holder := facet.NewHolder(facet.MemberID(spec.key, id))
		l.model.ProcessField(factory.NewFieldContext(env, class, spec.holder, field, feature, holder))
		if holder.Contains(facets.TypeProgrammatic) {
			continue
		}
		m := member{spec: spec, id: id, goName: field.Name, holder: holder}
		if feature == factory.FeatureCollection {
			spec.addMember(&Collection{member: m, field: field})
		} else {
			spec.addMember(&Property{member: m, field: field})
		}
	}

	for _, method := range env.Remover.Remaining() {
		if l.naming.IsSupporting(method.Name) || env.Remover.Claimed(method.Name) {
			continue
		}
		env.Remover.Claim(method.Name)
		id := factory.MemberName(method.Name)
		holder := facet.NewHolder(facet.MemberID(spec.key, id))
		mctx := factory.NewMethodContext(env, class, spec.holder, method, holder)
		l.model.ProcessMethod(mctx)
		action := &Action{member: member{spec: spec, id: id, goName: method.Name, holder: holder}, method: method}
		for i, param := range mctx.Params() {
			ph := facet.NewHolder(facet.ParamID(spec.key, id, i))
			l.model.ProcessParam(factory.NewParamContext(env, class, spec.holder, method, holder, i, param, ph))
			action.params = append(action.params, &Parameter{action: action, index: i, ref: param, holder: ph})
		}
		spec.addMember(action)
	}

	spec.orphans = env.Remover.Remaining()
	sortMembers(spec.properties)
	sortMembers(spec.collections)
	sortMembers(spec.actions)
}

// sortMembers orders members with a MemberOrder by group and sequence ahead
// of the rest, keeping declaration order otherwise.
func sortMembers[M Member](members []M) {
	slices.SortStableFunc(members, func(a, b M) int {
		oa, okA := memberOrder(a.Holder())
		ob, okB := memberOrder(b.Holder())
		switch {
		case okA && okB:
			if c := strings.Compare(oa.Group, ob.Group); c != 0 {
				return c
			}
			return facets.CompareSequence(oa.Sequence, ob.Sequence)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
}

func (l *Loader) loadMemberTypes(ctx context.Context, spec *Specification) {
	var refs []introspect.TypeRef
	for _, p := range spec.properties {
		refs = append(refs, p.Type())
	}
	for _, c := range spec.collections {
		refs = append(refs, c.ElementType())
	}
	for _, a := range spec.actions {
		ret := a.Returns()
		if ret.IsCollection() && ret.Elem != nil {
			ret = *ret.Elem
		}
		refs = append(refs, ret)
		for _, p := range a.params {
			refs = append(refs, p.ref)
		}
	}
	for _, ref := range refs {
		if ref.IsZero() || ref.Package == "" || ref.IsCollection() || ref.Kind == introspect.KindInterface {
			continue
		}
		if _, err := l.LoadSpecification(ctx, ref); err != nil {
			l.log.WithError(err).WithField("type", ref.Key).Warn("eager load of member type failed")
		}
	}
}

// ClassFacets returns the class-level facets of ref, loading it if needed.
func (l *Loader) ClassFacets(ctx context.Context, ref introspect.TypeRef) (*facet.Holder, error) {
	spec, err := l.LoadSpecification(ctx, ref)
	if err != nil {
		return nil, err
	}
	return spec.holder, nil
}

// Lookup returns a loaded specification without building it.
func (l *Loader) Lookup(key string) (*Specification, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || e.state != stateLoaded {
		return nil, false
	}
	return e.spec, true
}

// Specifications returns the loaded specifications sorted by key.
func (l *Loader) Specifications() []*Specification {
	l.mu.Lock()
	out := make([]*Specification, 0, len(l.entries))
	for _, e := range l.entries {
		if e.state == stateLoaded {
			out = append(out, e.spec)
		}
	}
	l.mu.Unlock()
	slices.SortFunc(out, func(a, b *Specification) int { return strings.Compare(a.key, b.key) })
	return out
}

// Invalidate drops the cached specification for key. Holders of the old
// instance keep it; the next lookup builds a new one.
func (l *Loader) Invalidate(key string) bool {
	l.mu.Lock()
	_, ok := l.entries[key]
	delete(l.entries, key)
	l.mu.Unlock()
	if ok {
		l.log.WithField("type", key).Info("specification invalidated")
	}
	return ok
}

// InvalidateAll drops every cached specification and starts a new
// generation. Builds in flight finish against the old generation.
func (l *Loader) InvalidateAll() {
	l.mu.Lock()
	dropped := len(l.entries)
	l.entries = make(map[string]*entry)
	l.generation++
	generation := l.generation
	l.mu.Unlock()
	l.log.WithFields(logrus.Fields{"dropped": dropped, "generation": generation}).Info("metamodel invalidated")
}

// DomainTypes returns the configured types followed by those the
// introspector lists, without duplicates.
func (l *Loader) DomainTypes() []introspect.TypeRef {
	refs := slices.Clone(l.types)
	if c, ok := l.introspector.(Classes); ok {
		refs = append(refs, c.Classes()...)
	}
	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		if ref.IsZero() || seen[ref.Key] {
			continue
		}
		seen[ref.Key] = true
		out = append(out, ref)
	}
	return out
}

// LoadKey returns the specification for key, building it when key names a
// domain type that is not loaded yet.
func (l *Loader) LoadKey(ctx context.Context, key string) (*Specification, error) {
	if spec, ok := l.Lookup(key); ok {
		return spec, nil
	}
	for _, ref := range l.DomainTypes() {
		if ref.Key == key {
			return l.LoadSpecification(ctx, ref)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, key)
}

// LoadDomain builds every domain type whose key selects accepts. A nil
// selects accepts all of them.
func (l *Loader) LoadDomain(ctx context.Context, selects func(key string) bool) error {
	for _, ref := range l.DomainTypes() {
		if selects != nil && !selects(ref.Key) {
			continue
		}
		if _, err := l.LoadSpecification(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

// Init prepares the metamodel. In eager modes it builds every domain type;
// it then validates what is loaded. Blocking failures fail Init in
// prototyping and are logged in production.
func (l *Loader) Init(ctx context.Context) (*validation.Failures, error) {
	if l.eager() {
		if err := l.LoadDomain(ctx, nil); err != nil {
			return nil, err
		}
	}
	failures, err := l.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if !failures.HasBlocking() {
		return failures, nil
	}
	if l.deployment == facet.Production {
		l.log.WithField("failures", failures.Len()).Warn("metamodel has blocking failures:\n" + failures.Report())
		return failures, nil
	}
	return failures, failures.Err()
}

// Validate collects the build failures of every loaded specification and
// runs the metamodel validators.
func (l *Loader) Validate(ctx context.Context) (*validation.Failures, error) {
	start := time.Now()
	failures := validation.NewFailures()
	specs := l.Specifications()
	for _, spec := range specs {
		failures.Merge(spec.failures)
	}
	err := l.engine.Validate(ctx, l, failures)
	l.metrics.Observe(ctx, OpValidate, err == nil && !failures.HasBlocking(), time.Since(start))
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"types":    len(specs),
		"failures": failures.Len(),
		"blocking": failures.HasBlocking(),
	}).Info("metamodel validated")
	return failures, nil
}
