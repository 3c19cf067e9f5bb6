package facet

import "fmt"

// Consent is the verdict of an interaction check: either Allow or a Veto
// carrying a human readable reason. Consents are computed per call and never
// cached.
type Consent struct {
	vetoed bool
	reason string
	source Type
}

// Allow returns the allowing consent.
func Allow() Consent {
	return Consent{}
}

// Veto returns a vetoing consent with the given reason.
func Veto(reason string) Consent {
	if reason == "" {
		reason = "vetoed"
	}
	return Consent{vetoed: true, reason: reason}
}

// VetoFrom returns a veto attributed to the facet type that produced it.
func VetoFrom(source Type, reason string) Consent {
	c := Veto(reason)
	c.source = source
	return c
}

// IsAllowed reports whether the interaction may proceed.
func (c Consent) IsAllowed() bool {
	return !c.vetoed
}

// IsVetoed reports whether the interaction was vetoed.
func (c Consent) IsVetoed() bool {
	return c.vetoed
}

// Reason returns the veto reason, empty when allowed.
func (c Consent) Reason() string {
	return c.reason
}

// Source returns the facet type that vetoed, empty when unknown or allowed.
func (c Consent) Source() Type {
	return c.source
}

func (c Consent) String() string {
	if !c.vetoed {
		return "allow"
	}
	return "veto: " + c.reason
}

// Err converts a veto into a *VetoError and returns nil when allowed.
func (c Consent) Err(id Identifier, concern Concern) error {
	if !c.vetoed {
		return nil
	}
	return &VetoError{Identifier: id, Concern: concern, Reason: c.reason}
}

// Concern names the interaction aspect a consent was evaluated for.
type Concern string

const (
	// ConcernVisibility asks whether an element may be seen.
	ConcernVisibility Concern = "visibility"
	// ConcernUsability asks whether an element may be changed or invoked.
	ConcernUsability Concern = "usability"
	// ConcernValidity asks whether a proposed value or argument set is acceptable.
	ConcernValidity Concern = "validity"
)

// VetoError reports that an interaction was refused by a business rule. It
// is distinct from errors raised by supporting methods, which indicate bugs.
type VetoError struct {
	Identifier Identifier
	Concern    Concern
	Reason     string
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("%s vetoed (%s): %s", e.Identifier, e.Concern, e.Reason)
}
