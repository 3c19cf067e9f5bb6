package facet

import "fmt"

// HidingAdvisor is implemented by facets that may hide an element. A
// non-empty reason hides it.
type HidingAdvisor interface {
	Facet
	Hides(vc VisibilityContext) (string, error)
}

// DisablingAdvisor is implemented by facets that may make an element
// read-only or non-invokable. A non-empty reason disables it.
type DisablingAdvisor interface {
	Facet
	Disables(uc UsabilityContext) (string, error)
}

// ValidatingAdvisor is implemented by facets that may reject a proposed value
// or argument set. A non-empty reason invalidates it.
type ValidatingAdvisor interface {
	Facet
	Invalidates(vc ValidityContext) (string, error)
}

// AdvisorError wraps an error raised while an advisor was consulted. It is a
// programmer-error signal and is never turned into a veto.
type AdvisorError struct {
	Identifier Identifier
	Facet      Type
	Err        error
}

func (e *AdvisorError) Error() string {
	return fmt.Sprintf("%s: advisor %s failed: %v", e.Identifier, e.Facet, e.Err)
}

func (e *AdvisorError) Unwrap() error {
	return e.Err
}

// EvaluateVisibility consults every hiding advisor in h in order. The first
// veto short-circuits; later advisors are not invoked.
func EvaluateVisibility(h *Holder, vc VisibilityContext) (Consent, error) {
	return evaluate(h, vc.Identifier, func(f Facet) (string, bool, error) {
		adv, ok := f.(HidingAdvisor)
		if !ok {
			return "", false, nil
		}
		reason, err := adv.Hides(vc)
		return reason, true, err
	})
}

// EvaluateUsability consults every disabling advisor in h in order.
func EvaluateUsability(h *Holder, uc UsabilityContext) (Consent, error) {
	return evaluate(h, uc.Identifier, func(f Facet) (string, bool, error) {
		adv, ok := f.(DisablingAdvisor)
		if !ok {
			return "", false, nil
		}
		reason, err := adv.Disables(uc)
		return reason, true, err
	})
}

// EvaluateValidity consults every validating advisor in h in order.
func EvaluateValidity(h *Holder, vc ValidityContext) (Consent, error) {
	return evaluate(h, vc.Identifier, func(f Facet) (string, bool, error) {
		adv, ok := f.(ValidatingAdvisor)
		if !ok {
			return "", false, nil
		}
		reason, err := adv.Invalidates(vc)
		return reason, true, err
	})
}

func evaluate(h *Holder, id Identifier, consult func(Facet) (string, bool, error)) (Consent, error) {
	for _, f := range h.Facets() {
		reason, applicable, err := consult(f)
		if !applicable {
			continue
		}
		if err != nil {
			return Consent{}, &AdvisorError{Identifier: id, Facet: f.Type(), Err: err}
		}
		if reason != "" {
			return VetoFrom(f.Type(), reason), nil
		}
	}
	return Allow(), nil
}
