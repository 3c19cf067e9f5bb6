// Package testutil checks the layering of the metacore packages from tests:
// the public pkg/ tree never reaches into internal/, and the facet,
// introspect and metamodel layers only depend downwards.
package testutil

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Rule forbids a set of import paths. Reason is reported on failure.
type Rule struct {
	Reason string
	Forbid func(importPath string) bool
}

var loadPackages = packages.Load

// Imports fails t when a non-test Go file directly in dir imports a
// forbidden path. Build constraints are not evaluated.
func (r Rule) Imports(t testing.TB, dir string) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	fset := token.NewFileSet()
	var found []string
	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", file, err)
		}
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			if r.Forbid(path) {
				found = append(found, path+" (in "+filepath.Base(file)+")")
			}
		}
	}
	r.report(t, dir, found)
}

// Deps fails t when a package matching patterns, or anything it depends on,
// has a forbidden path.
func (r Rule) Deps(t testing.TB, patterns ...string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	roots, err := loadPackages(cfg, patterns...)
	if err != nil {
		t.Fatalf("load %s: %v", strings.Join(patterns, " "), err)
	}
	var found []string
	packages.Visit(roots, func(p *packages.Package) bool {
		if r.Forbid(p.PkgPath) {
			found = append(found, p.PkgPath)
		}
		return true
	}, nil)
	sort.Strings(found)
	r.report(t, strings.Join(patterns, " "), found)
}

func (r Rule) report(t testing.TB, where string, found []string) {
	t.Helper()
	if len(found) == 0 {
		return
	}
	t.Fatalf("%s: forbidden imports (%s):\n  %s", where, r.Reason, strings.Join(found, "\n  "))
}

// Internal matches any path with an internal element.
func Internal(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasSuffix(path, "/internal")
}

// Within matches root and every package below it.
func Within(root string) func(string) bool {
	return func(path string) bool {
		return path == root || strings.HasPrefix(path, root+"/")
	}
}

// Except narrows match by letting the listed paths through.
func Except(match func(string) bool, allowed ...string) func(string) bool {
	return func(path string) bool {
		for _, a := range allowed {
			if path == a {
				return false
			}
		}
		return match(path)
	}
}

// AnyOf matches when one of preds does.
func AnyOf(preds ...func(string) bool) func(string) bool {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}
