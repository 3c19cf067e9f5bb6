// Package factory contains the facet factory pipeline. Factories inspect
// the introspected structure of a type and install facets on the holders of
// the class, its members and action parameters. A ProgrammingModel fixes the
// order factories run in.
package factory

import (
	"fmt"
	"slices"
	"strings"
)

// FeatureType is the kind of model element a factory processes.
type FeatureType int

const (
	FeatureObject FeatureType = iota
	FeatureProperty
	FeatureCollection
	FeatureAction
	FeatureParameter
)

func (f FeatureType) String() string {
	switch f {
	case FeatureObject:
		return "object"
	case FeatureProperty:
		return "property"
	case FeatureCollection:
		return "collection"
	case FeatureAction:
		return "action"
	case FeatureParameter:
		return "parameter"
	default:
		return fmt.Sprintf("feature(%d)", int(f))
	}
}

// FeatureSet is a set of feature types.
type FeatureSet uint8

// Features builds a set.
func Features(types ...FeatureType) FeatureSet {
	var s FeatureSet
	for _, t := range types {
		s |= 1 << t
	}
	return s
}

// Members covers properties, collections and actions.
var Members = Features(FeatureProperty, FeatureCollection, FeatureAction)

// Has reports whether t is in the set.
func (s FeatureSet) Has(t FeatureType) bool {
	return s&(1<<t) != 0
}

func (s FeatureSet) String() string {
	var names []string
	for t := FeatureObject; t <= FeatureParameter; t++ {
		if s.Has(t) {
			names = append(names, t.String())
		}
	}
	return strings.Join(names, ",")
}

// Phase is a coarse position in the pipeline. Factories run by phase, then
// by the order they were added to the programming model.
type Phase int

const (
	PhaseFallbackDefaults Phase = iota
	PhaseObjectNaming
	PhaseMethodRemoving
	PhaseMemberModelling
	PhaseSupportingMethods
	PhaseAnnotations
	PhaseLayout
	PhaseValueTypes
	PhaseDerivedFromType
	PhaseFinally
)

var phaseNames = []string{
	"fallbackDefaults",
	"objectNaming",
	"methodRemoving",
	"memberModelling",
	"supportingMethods",
	"annotations",
	"layout",
	"valueTypes",
	"derivedFromType",
	"finally",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Factory is the common surface of every facet factory. A factory also
// implements one or more of the processor interfaces.
type Factory interface {
	Name() string
	FeatureTypes() FeatureSet
}

// ClassProcessor installs class-level facets and claims class-level
// supporting methods.
type ClassProcessor interface {
	ProcessClass(ctx *ClassContext)
}

// FieldProcessor processes a property or collection backed by a field.
type FieldProcessor interface {
	ProcessField(ctx *FieldContext)
}

// MethodProcessor processes an action.
type MethodProcessor interface {
	ProcessMethod(ctx *MethodContext)
}

// ParamProcessor processes an action parameter.
type ParamProcessor interface {
	ProcessParam(ctx *ParamContext)
}

// Registered pairs a factory with its phase.
type Registered struct {
	Phase   Phase
	Factory Factory
	index   int
}

// ProgrammingModel is the ordered set of factories.
type ProgrammingModel struct {
	entries []Registered
	next    int
}

// NewProgrammingModel returns an empty model.
func NewProgrammingModel() *ProgrammingModel {
	return &ProgrammingModel{}
}

// Add appends a factory to phase. Within a phase, earlier additions run
// first.
func (pm *ProgrammingModel) Add(phase Phase, f Factory) {
	if f == nil {
		return
	}
	pm.entries = append(pm.entries, Registered{Phase: phase, Factory: f, index: pm.next})
	pm.next++
	slices.SortStableFunc(pm.entries, func(a, b Registered) int {
		if a.Phase != b.Phase {
			return int(a.Phase) - int(b.Phase)
		}
		return a.index - b.index
	})
}

// Remove drops every factory with the given name.
func (pm *ProgrammingModel) Remove(name string) {
	pm.entries = slices.DeleteFunc(pm.entries, func(r Registered) bool {
		return r.Factory.Name() == name
	})
}

// Entries returns the factories in execution order.
func (pm *ProgrammingModel) Entries() []Registered {
	return slices.Clone(pm.entries)
}

// Factories returns the factories in execution order.
func (pm *ProgrammingModel) Factories() []Factory {
	out := make([]Factory, len(pm.entries))
	for i, e := range pm.entries {
		out[i] = e.Factory
	}
	return out
}

// ProcessClass runs the class processors.
func (pm *ProgrammingModel) ProcessClass(ctx *ClassContext) {
	for _, e := range pm.entries {
		p, ok := e.Factory.(ClassProcessor)
		if !ok || !e.Factory.FeatureTypes().Has(FeatureObject) {
			continue
		}
		ctx.factory = e.Factory.Name()
		p.ProcessClass(ctx)
	}
	ctx.factory = ""
}

// ProcessField runs the field processors registered for ctx.Feature.
func (pm *ProgrammingModel) ProcessField(ctx *FieldContext) {
	for _, e := range pm.entries {
		p, ok := e.Factory.(FieldProcessor)
		if !ok || !e.Factory.FeatureTypes().Has(ctx.Feature) {
			continue
		}
		ctx.factory = e.Factory.Name()
		p.ProcessField(ctx)
	}
	ctx.factory = ""
}

// ProcessMethod runs the action processors.
func (pm *ProgrammingModel) ProcessMethod(ctx *MethodContext) {
	for _, e := range pm.entries {
		p, ok := e.Factory.(MethodProcessor)
		if !ok || !e.Factory.FeatureTypes().Has(FeatureAction) {
			continue
		}
		ctx.factory = e.Factory.Name()
		p.ProcessMethod(ctx)
	}
	ctx.factory = ""
}

// ProcessParam runs the parameter processors.
func (pm *ProgrammingModel) ProcessParam(ctx *ParamContext) {
	for _, e := range pm.entries {
		p, ok := e.Factory.(ParamProcessor)
		if !ok || !e.Factory.FeatureTypes().Has(FeatureParameter) {
			continue
		}
		ctx.factory = e.Factory.Name()
		p.ProcessParam(ctx)
	}
	ctx.factory = ""
}
