// Package facet defines the atomic capability units attached to metamodel
// elements and the holder that owns them. A facet describes one concern of a
// class, member or parameter (visibility, validation, ordering, defaults) and
// is identified by its Type tag; a Holder keeps at most one active facet per
// tag and remembers the facets it displaced so the build can be inspected.
package facet

import (
	"errors"
	"fmt"
	"slices"
)

// Type identifies the concern a facet addresses. Exactly one facet of a given
// type is active per holder.
type Type string

func (t Type) String() string {
	return string(t)
}

// Facet is a single immutable unit of behaviour or metadata.
type Facet interface {
	Type() Type
	// SemanticEquals reports whether other would behave identically to the
	// receiver. Holders use it to turn redundant replacements into no-ops.
	SemanticEquals(other Facet) bool
}

// ErrSealed is returned when a facet is added to a holder that has already
// been published.
var ErrSealed = errors.New("facet: holder is sealed")

// ErrNilFacet is returned when a nil facet is supplied.
var ErrNilFacet = errors.New("facet: facet must not be nil")

// Holder stores the facets of one model element keyed by facet type. It is
// not safe for concurrent mutation; mutation is confined to the goroutine
// building the owning specification and stops once Seal is called.
type Holder struct {
	id       Identifier
	facets   map[Type]Facet
	order    []Type
	shadowed map[Type][]Facet
	sealed   bool
}

// NewHolder initialises an empty holder owned by the given element.
func NewHolder(id Identifier) *Holder {
	return &Holder{
		id:     id,
		facets: make(map[Type]Facet),
	}
}

// Identifier returns the element owning the holder.
func (h *Holder) Identifier() Identifier {
	return h.id
}

func (h *Holder) ensure() {
	if h.facets == nil {
		h.facets = make(map[Type]Facet)
	}
}

// Add registers f under its type and reports whether the holder changed.
// A facet semantically equal to the active one is ignored so callers keep
// the reference they already hold. Add panics on a sealed holder.
func (h *Holder) Add(f Facet) bool {
	changed, err := h.AddChecked(f)
	if err != nil {
		panic(fmt.Sprintf("%v: %s", err, h.id))
	}
	return changed
}

// AddChecked is Add returning an error instead of panicking.
func (h *Holder) AddChecked(f Facet) (bool, error) {
	if f == nil {
		return false, ErrNilFacet
	}
	if h.sealed {
		return false, ErrSealed
	}
	h.ensure()
	t := f.Type()
	existing, ok := h.facets[t]
	if ok {
		if existing.SemanticEquals(f) {
			return false, nil
		}
		if h.shadowed == nil {
			h.shadowed = make(map[Type][]Facet)
		}
		h.shadowed[t] = append(h.shadowed[t], existing)
		h.facets[t] = f
		return true, nil
	}
	h.facets[t] = f
	h.order = append(h.order, t)
	return true, nil
}

// Remove deletes the active facet of type t. Shadowed facets are kept.
func (h *Holder) Remove(t Type) {
	if h.sealed || h.facets == nil {
		return
	}
	if _, ok := h.facets[t]; !ok {
		return
	}
	delete(h.facets, t)
	h.order = slices.DeleteFunc(h.order, func(o Type) bool { return o == t })
}

// Facet returns the active facet of type t.
func (h *Holder) Facet(t Type) (Facet, bool) {
	if h == nil || h.facets == nil {
		return nil, false
	}
	f, ok := h.facets[t]
	return f, ok
}

// Contains reports whether a facet of type t is active.
func (h *Holder) Contains(t Type) bool {
	_, ok := h.Facet(t)
	return ok
}

// Types returns the active facet types in insertion order.
func (h *Holder) Types() []Type {
	if h == nil {
		return nil
	}
	return slices.Clone(h.order)
}

// Facets returns the active facets in insertion order.
func (h *Holder) Facets() []Facet {
	if h == nil {
		return nil
	}
	out := make([]Facet, 0, len(h.order))
	for _, t := range h.order {
		out = append(out, h.facets[t])
	}
	return out
}

// Shadowed returns the facets of type t displaced by later additions, oldest first.
func (h *Holder) Shadowed(t Type) []Facet {
	if h == nil || h.shadowed == nil {
		return nil
	}
	return slices.Clone(h.shadowed[t])
}

// Len returns the number of active facets.
func (h *Holder) Len() int {
	if h == nil {
		return 0
	}
	return len(h.order)
}

// Seal freezes the holder. Published holders are shared between goroutines
// without locking, so nothing may change afterwards.
func (h *Holder) Seal() {
	h.sealed = true
}

// Sealed reports whether Seal was called.
func (h *Holder) Sealed() bool {
	return h.sealed
}

// Lookup returns the active facet of type t asserted to T.
func Lookup[T Facet](h *Holder, t Type) (T, bool) {
	var zero T
	f, ok := h.Facet(t)
	if !ok {
		return zero, false
	}
	typed, ok := f.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
