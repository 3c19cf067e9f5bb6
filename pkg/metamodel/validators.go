package metamodel

import (
	"context"
	"fmt"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/metamodel/validation"
)

// View is the read-only set of loaded specifications handed to validators.
type View interface {
	Specifications() []*Specification
	Lookup(key string) (*Specification, bool)
}

// Validator checks the loaded metamodel as a whole and records failures.
type Validator interface {
	Name() string
	Validate(ctx context.Context, view View, failures *validation.Failures) error
}

// ValidatorEngine runs validators in registration order.
type ValidatorEngine struct {
	validators []Validator
}

// NewValidatorEngine constructs an empty engine.
func NewValidatorEngine() *ValidatorEngine {
	return &ValidatorEngine{}
}

// NewDefaultValidatorEngine builds an engine with the built-in validators.
func NewDefaultValidatorEngine() *ValidatorEngine {
	engine := NewValidatorEngine()
	engine.Register(OrphanedMethodsValidator{})
	engine.Register(DuplicateMembersValidator{})
	engine.Register(MemberOrderValidator{})
	engine.Register(TitleValidator{})
	return engine
}

// Register appends a validator.
func (e *ValidatorEngine) Register(v Validator) {
	e.validators = append(e.validators, v)
}

// Validate runs every validator against view.
func (e *ValidatorEngine) Validate(ctx context.Context, view View, failures *validation.Failures) error {
	for _, v := range e.validators {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.Validate(ctx, view, failures); err != nil {
			return fmt.Errorf("metamodel: validator %s: %w", v.Name(), err)
		}
	}
	return nil
}

// OrphanedMethodsValidator reports supporting methods whose member does not
// exist, typically a misspelt HideXxx or ValidateXxx.
type OrphanedMethodsValidator struct{}

func (OrphanedMethodsValidator) Name() string { return "orphanedMethods" }

func (v OrphanedMethodsValidator) Validate(_ context.Context, view View, failures *validation.Failures) error {
	for _, spec := range view.Specifications() {
		for _, m := range spec.Orphans() {
			failures.Addf(spec.Identifier(), validation.SeverityBlock, v.Name(),
				"supporting method %s does not match any member", m.Name)
		}
	}
	return nil
}

// DuplicateMembersValidator reports members whose ids collide, such as a
// field ID and a method Id.
type DuplicateMembersValidator struct{}

func (DuplicateMembersValidator) Name() string { return "duplicateMembers" }

func (v DuplicateMembersValidator) Validate(_ context.Context, view View, failures *validation.Failures) error {
	for _, spec := range view.Specifications() {
		seen := make(map[string]MemberKind)
		for _, m := range spec.Members() {
			if kind, dup := seen[m.ID()]; dup {
				failures.Addf(m.Identifier(), validation.SeverityBlock, v.Name(),
					"%s id collides with %s of the same name", m.Kind(), kind)
				continue
			}
			seen[m.ID()] = m.Kind()
		}
	}
	return nil
}

// MemberOrderValidator warns when two members of the same kind share a
// group and sequence.
type MemberOrderValidator struct{}

func (MemberOrderValidator) Name() string { return "memberOrder" }

func (v MemberOrderValidator) Validate(_ context.Context, view View, failures *validation.Failures) error {
	for _, spec := range view.Specifications() {
		seen := make(map[string]facet.Identifier)
		for _, m := range spec.Members() {
			order, ok := memberOrder(m.Holder())
			if !ok {
				continue
			}
			slot := fmt.Sprintf("%s/%s/%s", m.Kind(), order.Group, order.Sequence)
			if other, taken := seen[slot]; taken {
				failures.Addf(m.Identifier(), validation.SeverityWarn, v.Name(),
					"member order %s,%s already used by %s", order.Group, order.Sequence, other.Member)
				continue
			}
			seen[slot] = m.Identifier()
		}
	}
	return nil
}

// TitleValidator notes object types without a title source.
type TitleValidator struct{}

func (TitleValidator) Name() string { return "title" }

func (v TitleValidator) Validate(_ context.Context, view View, failures *validation.Failures) error {
	for _, spec := range view.Specifications() {
		if spec.IsValue() || spec.Holder().Contains(facets.TypeTitle) {
			continue
		}
		failures.Addf(spec.Identifier(), validation.SeverityLog, v.Name(),
			"no Title method or title annotation, objects render as %q", "Untitled "+spec.Name())
	}
	return nil
}
