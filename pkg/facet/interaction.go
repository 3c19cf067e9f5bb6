package facet

import (
	"context"
	"slices"
)

// Where describes the rendering location an interaction happens in, or the
// set of locations a facet applies to.
type Where string

const (
	// WhereEverywhere applies to every location.
	WhereEverywhere Where = "everywhere"
	// WhereAnywhere is the interaction location when no specific one is known.
	WhereAnywhere Where = "anywhere"
	// WhereObjectForms is a single object rendered as a form.
	WhereObjectForms Where = "objectForms"
	// WhereAllTables covers both parented and standalone tables.
	WhereAllTables Where = "tables"
	// WhereParentedTables is a collection rendered within its parent.
	WhereParentedTables Where = "parentedTables"
	// WhereStandaloneTables is a list returned by an action.
	WhereStandaloneTables Where = "standaloneTables"
)

// ParseWhere maps an annotation value to a Where. Unknown or empty values
// mean everywhere.
func ParseWhere(value string) (Where, bool) {
	switch Where(value) {
	case "", WhereEverywhere, WhereAnywhere:
		return WhereEverywhere, true
	case WhereObjectForms, WhereAllTables, WhereParentedTables, WhereStandaloneTables:
		return Where(value), true
	default:
		return WhereEverywhere, false
	}
}

// Includes reports whether a facet scoped to w applies at location at.
func (w Where) Includes(at Where) bool {
	switch w {
	case WhereEverywhere, WhereAnywhere, "":
		return true
	case WhereAllTables:
		return at == WhereAllTables || at == WhereParentedTables || at == WhereStandaloneTables
	default:
		return w == at
	}
}

// Initiation distinguishes user-driven from programmatic interactions.
type Initiation int

const (
	// ByUser interactions are subject to every rule.
	ByUser Initiation = iota
	// Programmatic interactions originate from code, bypassing visibility and
	// usability rules but never validation.
	Programmatic
)

// DeploymentType selects prototyping or production behaviour.
type DeploymentType string

const (
	// Prototyping favours fast feedback: eager builds and fail-fast validation.
	Prototyping DeploymentType = "prototyping"
	// Production defers metamodel failures and builds lazily.
	Production DeploymentType = "production"
)

// User is the caller an interaction is evaluated for.
type User struct {
	Name  string
	Roles []string
}

// HasRole reports whether the user carries role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// InteractionContext replaces any ambient session: every query receives the
// user and rendering location explicitly.
type InteractionContext struct {
	User       User
	Where      Where
	Initiation Initiation
	Deployment DeploymentType
}

// UserInteraction returns a user-initiated context rendered anywhere.
func UserInteraction(user User) InteractionContext {
	return InteractionContext{User: user, Where: WhereAnywhere, Initiation: ByUser}
}

// At returns a copy of the context rendered at where.
func (ic InteractionContext) At(where Where) InteractionContext {
	ic.Where = where
	return ic
}

// VisibilityContext is passed to hiding advisors.
type VisibilityContext struct {
	Ctx         context.Context
	Interaction InteractionContext
	Identifier  Identifier
	Target      any
}

// UsabilityContext is passed to disabling advisors.
type UsabilityContext struct {
	Ctx         context.Context
	Interaction InteractionContext
	Identifier  Identifier
	Target      any
}

// ValidityContext is passed to validating advisors. Proposed is set for
// property and parameter checks, Args for whole argument sets. ArgIndex is
// the parameter position for parameter checks and -1 otherwise.
type ValidityContext struct {
	Ctx         context.Context
	Interaction InteractionContext
	Identifier  Identifier
	Target      any
	Proposed    any
	Args        []any
	ArgIndex    int
}
