package metamodel

import (
	"fmt"
	"slices"

	"metacore/pkg/metamodel/factory"
)

// Plugin contributes facet factories and metamodel validators.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *Registry) error
}

type phasedFactory struct {
	phase   factory.Phase
	factory factory.Factory
}

// Registry accumulates plugin contributions during registration.
type Registry struct {
	factories  []phasedFactory
	removed    []string
	validators []Validator
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterFactory adds a factory to phase, after the built-in factories of
// that phase.
func (r *Registry) RegisterFactory(phase factory.Phase, f factory.Factory) {
	if f == nil {
		return
	}
	r.factories = append(r.factories, phasedFactory{phase: phase, factory: f})
}

// RemoveFactory drops a built-in factory by name.
func (r *Registry) RemoveFactory(name string) {
	if name == "" {
		return
	}
	r.removed = append(r.removed, name)
}

// RegisterValidator adds a post-build metamodel validator.
func (r *Registry) RegisterValidator(v Validator) {
	if v == nil {
		return
	}
	r.validators = append(r.validators, v)
}

// Validators returns a copy of registered validators.
func (r *Registry) Validators() []Validator {
	return slices.Clone(r.validators)
}

// FactoryNames returns the names of registered factories.
func (r *Registry) FactoryNames() []string {
	out := make([]string, len(r.factories))
	for i, f := range r.factories {
		out[i] = f.factory.Name()
	}
	return out
}

func (r *Registry) apply(pm *factory.ProgrammingModel) {
	for _, name := range r.removed {
		pm.Remove(name)
	}
	for _, f := range r.factories {
		pm.Add(f.phase, f.factory)
	}
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name       string
	Version    string
	Factories  []string
	Validators []string
}

func installPlugins(pm *factory.ProgrammingModel, plugins []Plugin) ([]Validator, []PluginMetadata, error) {
	var validators []Validator
	var meta []PluginMetadata
	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if p == nil {
			continue
		}
		if seen[p.Name()] {
			return nil, nil, fmt.Errorf("metamodel: plugin %s already installed", p.Name())
		}
		seen[p.Name()] = true
		registry := NewRegistry()
		if err := p.Register(registry); err != nil {
			return nil, nil, fmt.Errorf("metamodel: register plugin %s: %w", p.Name(), err)
		}
		registry.apply(pm)
		md := PluginMetadata{Name: p.Name(), Version: p.Version(), Factories: registry.FactoryNames()}
		for _, v := range registry.validators {
			md.Validators = append(md.Validators, v.Name())
		}
		validators = append(validators, registry.validators...)
		meta = append(meta, md)
	}
	return validators, meta, nil
}
