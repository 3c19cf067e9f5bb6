package metamodel

import (
	"strings"
	"testing"

	"metacore/testutil"
)

func TestPublicPackagesStayLayered(t *testing.T) {
	public := testutil.Rule{Reason: "public API", Forbid: testutil.Internal}
	for _, dir := range []string{".", "factory", "validation", "../facet", "../facet/facets", "../introspect"} {
		public.Imports(t, dir)
	}

	below := testutil.Rule{
		Reason: "sits below the loader",
		Forbid: testutil.Except(testutil.Within("metacore/pkg/metamodel"), "metacore/pkg/metamodel/validation"),
	}
	for _, dir := range []string{"../facet", "../facet/facets", "../introspect", "validation"} {
		below.Imports(t, dir)
	}

	testutil.Rule{
		Reason: "introspection has no metacore dependencies",
		Forbid: func(path string) bool { return strings.HasPrefix(path, "metacore/") },
	}.Imports(t, "../introspect")
}

func TestPublicPackagesNeverReachInternal(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the package graph")
	}
	testutil.Rule{Reason: "pkg must build without internal", Forbid: testutil.Internal}.Deps(t, "metacore/pkg/...")
}
