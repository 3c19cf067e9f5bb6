package metamodel

import "errors"

var (
	// ErrNotInvocable is returned when a source-derived specification is
	// asked to run domain code.
	ErrNotInvocable = errors.New("metamodel: specification is not invocable")
	// ErrNoFacet is returned when a member lacks the facet an operation needs.
	ErrNoFacet = errors.New("metamodel: required facet missing")
	// ErrInvalidRef is returned for empty or unusable type references.
	ErrInvalidRef = errors.New("metamodel: invalid type reference")
	// ErrInvalidMode is returned for unknown introspection modes.
	ErrInvalidMode = errors.New("metamodel: invalid introspection mode")
	// ErrUnknownType is returned for keys that name no domain type.
	ErrUnknownType = errors.New("metamodel: unknown domain type")
)
