package factory

// Options configures the default programming model.
type Options struct {
	// PublishingEnabled is the publishing default for objects and actions
	// without a publishing annotation.
	PublishingEnabled bool
}

// DefaultProgrammingModel returns the built-in factories in their phases.
// Explicit annotations run after the fallbacks and replace them; factories
// in later phases that must not override earlier facets check the holder
// first.
func DefaultProgrammingModel(opts Options) *ProgrammingModel {
	pm := NewProgrammingModel()

	pm.Add(PhaseFallbackDefaults, NewFallbackFactory())
	pm.Add(PhaseFallbackDefaults, NewMandatoryDerivedFactory())

	pm.Add(PhaseObjectNaming, NewLogicalTypeNameFactory())

	pm.Add(PhaseMethodRemoving, NewProgrammaticFactory())
	pm.Add(PhaseMethodRemoving, NewLifecycleFactory())

	pm.Add(PhaseMemberModelling, NewPropertyAccessorFactory())
	pm.Add(PhaseMemberModelling, NewCollectionAccessorFactory())
	pm.Add(PhaseMemberModelling, NewActionInvocationFactory())

	pm.Add(PhaseSupportingMethods, NewObjectSupportFactory())
	pm.Add(PhaseSupportingMethods, NewHideMethodFactory())
	pm.Add(PhaseSupportingMethods, NewDisableMethodFactory())
	pm.Add(PhaseSupportingMethods, NewValidateMethodFactory())
	pm.Add(PhaseSupportingMethods, NewDefaultMethodFactory())
	pm.Add(PhaseSupportingMethods, NewChoicesMethodFactory())
	pm.Add(PhaseSupportingMethods, NewModifyClearFactory())

	pm.Add(PhaseAnnotations, NewDescriptionFactory())
	pm.Add(PhaseAnnotations, NewHiddenAnnotationFactory())
	pm.Add(PhaseAnnotations, NewDisabledAnnotationFactory())
	pm.Add(PhaseAnnotations, NewImmutableFactory())
	pm.Add(PhaseAnnotations, NewRegExFactory())
	pm.Add(PhaseAnnotations, NewMaxLengthFactory())
	pm.Add(PhaseAnnotations, NewMandatoryAnnotationFactory())
	pm.Add(PhaseAnnotations, NewDefaultAnnotationFactory())
	pm.Add(PhaseAnnotations, NewChoicesAnnotationFactory())
	pm.Add(PhaseAnnotations, NewRolesFactory())
	pm.Add(PhaseAnnotations, NewPublishingAnnotationFactory())

	pm.Add(PhaseLayout, NewMemberOrderFactory())
	pm.Add(PhaseLayout, NewTitleAnnotationFactory())

	pm.Add(PhaseValueTypes, NewValueTypeFactory())

	pm.Add(PhaseDerivedFromType, NewDefaultDerivedFromTypeFactory())

	pm.Add(PhaseFinally, NewPublishingFromConfigFactory(opts.PublishingEnabled))
	pm.Add(PhaseFinally, NewDisabledFromImmutableFactory())
	return pm
}
