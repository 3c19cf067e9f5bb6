package export

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"metacore/pkg/facet/facets"
)

// ChangeKind classifies a difference between two snapshots.
type ChangeKind string

const (
	TypeAdded        ChangeKind = "type added"
	TypeRemoved      ChangeKind = "type removed"
	MemberAdded      ChangeKind = "member added"
	MemberRemoved    ChangeKind = "member removed"
	MemberChanged    ChangeKind = "member changed"
	ParametersChange ChangeKind = "parameters changed"
	FacetAdded       ChangeKind = "facet added"
	FacetRemoved     ChangeKind = "facet removed"
	FacetChanged     ChangeKind = "facet changed"
)

// Change is one difference. Breaking changes can invalidate clients or data
// accepted by the older metamodel.
type Change struct {
	Kind     ChangeKind `json:"kind" yaml:"kind"`
	Path     string     `json:"path" yaml:"path"`
	Detail   string     `json:"detail,omitempty" yaml:"detail,omitempty"`
	Breaking bool       `json:"breaking" yaml:"breaking"`
}

func (c Change) String() string {
	prefix := ""
	if c.Breaking {
		prefix = "BREAKING "
	}
	if c.Detail == "" {
		return fmt.Sprintf("%s%s: %s", prefix, c.Kind, c.Path)
	}
	return fmt.Sprintf("%s%s: %s (%s)", prefix, c.Kind, c.Path, c.Detail)
}

// Result lists the changes from one snapshot to another.
type Result struct {
	From    string   `json:"from" yaml:"from"`
	To      string   `json:"to" yaml:"to"`
	Changes []Change `json:"changes" yaml:"changes"`
}

// HasBreaking reports whether any change is breaking.
func (r Result) HasBreaking() bool {
	return slices.ContainsFunc(r.Changes, func(c Change) bool { return c.Breaking })
}

// Report renders one change per line.
func (r Result) Report() string {
	var b strings.Builder
	for _, c := range r.Changes {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Diff compares two snapshots. Snapshots with equal fingerprints have no
// changes.
func Diff(from, to *Snapshot) Result {
	res := Result{From: from.ID, To: to.ID}
	if from.Fingerprint != "" && from.Fingerprint == to.Fingerprint {
		return res
	}
	old := indexTypes(from.Types)
	for _, nt := range to.Types {
		ot, ok := old[nt.Key]
		if !ok {
			res.add(TypeAdded, nt.Key, "", false)
			continue
		}
		delete(old, nt.Key)
		res.diffType(ot, nt)
	}
	for _, key := range sortedKeys(old) {
		res.add(TypeRemoved, key, "", true)
	}
	slices.SortStableFunc(res.Changes, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
	return res
}

func (r *Result) add(kind ChangeKind, path, detail string, breaking bool) {
	r.Changes = append(r.Changes, Change{Kind: kind, Path: path, Detail: detail, Breaking: breaking})
}

func (r *Result) diffType(ot, nt Type) {
	r.diffFacets(nt.Key, ot.Facets, nt.Facets)
	old := make(map[string]Member, len(ot.Members))
	for _, m := range ot.Members {
		old[m.ID] = m
	}
	for _, nm := range nt.Members {
		path := nt.Key + "#" + nm.ID
		om, ok := old[nm.ID]
		if !ok {
			// A new mandatory property rejects objects saved before it existed.
			r.add(MemberAdded, path, nm.Kind, nm.Kind == "property" && nm.Mandatory)
			continue
		}
		delete(old, nm.ID)
		if om.Kind != nm.Kind || om.Type != nm.Type {
			r.add(MemberChanged, path, fmt.Sprintf("%s %s -> %s %s", om.Kind, om.Type, nm.Kind, nm.Type), true)
		}
		if !om.Mandatory && nm.Mandatory {
			r.add(MemberChanged, path, "now mandatory", true)
		}
		if sig(om.Parameters) != sig(nm.Parameters) {
			r.add(ParametersChange, path, sig(om.Parameters)+" -> "+sig(nm.Parameters), true)
		}
		r.diffFacets(path, om.Facets, nm.Facets)
	}
	removed := make([]string, 0, len(old))
	for id := range old {
		removed = append(removed, id)
	}
	slices.Sort(removed)
	for _, id := range removed {
		r.add(MemberRemoved, nt.Key+"#"+id, old[id].Kind, true)
	}
}

func (r *Result) diffFacets(path string, before, after []Facet) {
	old := make(map[string]string, len(before))
	for _, f := range before {
		old[f.Type] = f.Detail
	}
	for _, f := range after {
		detail, ok := old[f.Type]
		switch {
		case !ok:
			r.add(FacetAdded, path, facetLabel(f.Type, f.Detail), tightens(f.Type, "", f.Detail))
		case detail != f.Detail:
			r.add(FacetChanged, path, fmt.Sprintf("%s: %q -> %q", f.Type, detail, f.Detail), tightens(f.Type, detail, f.Detail))
		}
		delete(old, f.Type)
	}
	for _, t := range sortedKeys(old) {
		r.add(FacetRemoved, path, facetLabel(t, old[t]), false)
	}
}

// tightens reports whether a facet change can reject input the old
// metamodel accepted.
func tightens(t, before, after string) bool {
	switch t {
	case facets.TypeRegEx.String(), facets.TypeValidateViaMethod.String():
		return after != ""
	case facets.TypeMaxLength.String():
		oldMax, err1 := strconv.Atoi(before)
		newMax, err2 := strconv.Atoi(after)
		return err1 != nil || err2 != nil || newMax < oldMax
	case facets.TypeMandatory.String():
		return after == "required"
	}
	return false
}

func facetLabel(t, detail string) string {
	if detail == "" {
		return t
	}
	return t + "=" + detail
}

func sig(params []Parameter) string {
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	return "(" + strings.Join(types, ", ") + ")"
}

func indexTypes(types []Type) map[string]Type {
	out := make(map[string]Type, len(types))
	for _, t := range types {
		out[t.Key] = t
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
