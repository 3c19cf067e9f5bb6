package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

type recordingT struct {
	testing.TB
	msg string
}

func (r *recordingT) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
}

func TestPredicates(t *testing.T) {
	metamodel := Within("metacore/pkg/metamodel")
	cases := []struct {
		pred func(string) bool
		in   string
		want bool
	}{
		{Internal, "metacore/internal/export", true},
		{Internal, "metacore/pkg/facet", false},
		{metamodel, "metacore/pkg/metamodel", true},
		{metamodel, "metacore/pkg/metamodel/factory", true},
		{metamodel, "metacore/pkg/metamodeler", false},
		{Except(metamodel, "metacore/pkg/metamodel/validation"), "metacore/pkg/metamodel/validation", false},
		{Except(metamodel, "metacore/pkg/metamodel/validation"), "metacore/pkg/metamodel/factory", true},
		{AnyOf(Internal, metamodel), "metacore/internal/x", true},
		{AnyOf(), "metacore/internal/x", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.pred(c.in), c.in)
	}
}

func TestImportsIgnoreTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	writeGo(t, dir, "x_test.go", "package tmp\nimport _ \"metacore/internal/export\"\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	rt := &recordingT{TB: t}
	Rule{Reason: "test files may import internal", Forbid: Internal}.Imports(rt, dir)
	assert.Empty(t, rt.msg)
}

func TestImportsReportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "x.go", "package tmp\nimport _ \"metacore/internal/export\"\n")

	rt := &recordingT{TB: t}
	Rule{Reason: "pkg must stay public", Forbid: Internal}.Imports(rt, dir)
	assert.Contains(t, rt.msg, "metacore/internal/export (in x.go)")
	assert.Contains(t, rt.msg, "pkg must stay public")
}

func TestDepsWalksTheImportGraph(t *testing.T) {
	orig := loadPackages
	defer func() { loadPackages = orig }()

	cfg := &packages.Package{PkgPath: "metacore/internal/config"}
	facet := &packages.Package{PkgPath: "metacore/pkg/facet", Imports: map[string]*packages.Package{
		"metacore/internal/config": cfg,
	}}
	root := &packages.Package{PkgPath: "metacore/pkg/x", Imports: map[string]*packages.Package{
		"fmt":                {PkgPath: "fmt"},
		"metacore/pkg/facet": facet,
	}}
	loadPackages = func(_ *packages.Config, patterns ...string) ([]*packages.Package, error) {
		assert.Equal(t, []string{"metacore/pkg/..."}, patterns)
		return []*packages.Package{root}, nil
	}

	rt := &recordingT{TB: t}
	Rule{Reason: "layering", Forbid: Internal}.Deps(rt, "metacore/pkg/...")
	assert.Contains(t, rt.msg, "metacore/internal/config")
	assert.False(t, strings.Contains(rt.msg, "pkg/facet"), rt.msg)
}
