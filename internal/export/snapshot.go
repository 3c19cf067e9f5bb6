// Package export renders the loaded metamodel as a portable document,
// compares documents and publishes them to the blob store and the snapshot
// history.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/metamodel"
	"metacore/pkg/metamodel/validation"
)

// SchemaVersion is bumped when the document layout changes incompatibly.
const SchemaVersion = 1

// Snapshot is the exported metamodel.
type Snapshot struct {
	Schema      int       `json:"schema" yaml:"schema"`
	ID          string    `json:"id" yaml:"id"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Mode        string    `json:"mode" yaml:"mode"`
	Deployment  string    `json:"deployment" yaml:"deployment"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Types       []Type    `json:"types" yaml:"types"`
	Failures    []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Type is one object or value type.
type Type struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Plural      string   `json:"plural,omitempty" yaml:"plural,omitempty"`
	LogicalName string   `json:"logical_name" yaml:"logical_name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Value       bool     `json:"value,omitempty" yaml:"value,omitempty"`
	Facets      []Facet  `json:"facets,omitempty" yaml:"facets,omitempty"`
	Members     []Member `json:"members,omitempty" yaml:"members,omitempty"`
}

// Member is a property, collection or action.
type Member struct {
	ID         string      `json:"id" yaml:"id"`
	Kind       string      `json:"kind" yaml:"kind"`
	Name       string      `json:"name" yaml:"name"`
	Type       string      `json:"type" yaml:"type"`
	Mandatory  bool        `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Facets     []Facet     `json:"facets,omitempty" yaml:"facets,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Parameter is one action parameter.
type Parameter struct {
	Index     int     `json:"index" yaml:"index"`
	Name      string  `json:"name" yaml:"name"`
	Type      string  `json:"type" yaml:"type"`
	Mandatory bool    `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Facets    []Facet `json:"facets,omitempty" yaml:"facets,omitempty"`
}

// Facet names an installed facet and, where it has one, its configuration.
type Facet struct {
	Type   string `json:"type" yaml:"type"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Failure is one validation failure.
type Failure struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Severity   string `json:"severity" yaml:"severity"`
	Message    string `json:"message" yaml:"message"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Options describes the snapshot being built.
type Options struct {
	Mode       string
	Deployment string
	// Select filters type keys; nil keeps everything.
	Select func(key string) bool
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Build renders every specification in view, sorted by key.
func Build(ctx context.Context, view metamodel.View, failures *validation.Failures, opts Options) (*Snapshot, error) {
	now, newID := opts.Now, opts.NewID
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	snap := &Snapshot{
		Schema:     SchemaVersion,
		ID:         newID(),
		CreatedAt:  now().UTC(),
		Mode:       opts.Mode,
		Deployment: opts.Deployment,
	}
	for _, spec := range view.Specifications() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Select != nil && !opts.Select(spec.Key()) {
			continue
		}
		snap.Types = append(snap.Types, typeOf(spec))
	}
	slices.SortFunc(snap.Types, func(a, b Type) int { return strings.Compare(a.Key, b.Key) })
	for _, f := range failures.Items() {
		snap.Failures = append(snap.Failures, Failure{
			Identifier: f.Identifier.String(),
			Severity:   string(f.Severity),
			Message:    f.Message,
			Source:     f.Factory,
		})
	}
	fp, err := Fingerprint(snap.Types)
	if err != nil {
		return nil, err
	}
	snap.Fingerprint = fp
	return snap, nil
}

// Fingerprint hashes the structural part of a snapshot. Two metamodels with
// the same types, members and facets share a fingerprint regardless of when
// or where they were exported.
func Fingerprint(types []Type) (string, error) {
	raw, err := json.Marshal(types)
	if err != nil {
		return "", fmt.Errorf("export: fingerprint: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Blocking counts blocking failures.
func (s *Snapshot) Blocking() int {
	n := 0
	for _, f := range s.Failures {
		if f.Severity == string(validation.SeverityBlock) {
			n++
		}
	}
	return n
}

// Type returns the type with key.
func (s *Snapshot) Type(key string) (Type, bool) {
	i, ok := slices.BinarySearchFunc(s.Types, key, func(t Type, k string) int { return strings.Compare(t.Key, k) })
	if !ok {
		return Type{}, false
	}
	return s.Types[i], true
}

func typeOf(spec *metamodel.Specification) Type {
	t := Type{
		Key:         spec.Key(),
		Name:        spec.Name(),
		LogicalName: spec.LogicalTypeName(),
		Description: spec.Description(),
		Value:       spec.IsValue(),
		Facets:      facetsOf(spec.Holder()),
	}
	if !t.Value {
		t.Plural = spec.PluralName()
	}
	for _, m := range spec.Members() {
		t.Members = append(t.Members, memberOf(m))
	}
	return t
}

func memberOf(m metamodel.Member) Member {
	out := Member{
		ID:     m.ID(),
		Kind:   string(m.Kind()),
		Name:   m.Name(),
		Facets: facetsOf(m.Holder()),
	}
	switch m := m.(type) {
	case *metamodel.Property:
		out.Type = m.Type().String()
		out.Mandatory = m.IsMandatory()
	case *metamodel.Collection:
		out.Type = m.Type().String()
	case *metamodel.Action:
		out.Type = m.Returns().String()
		for _, p := range m.Parameters() {
			out.Parameters = append(out.Parameters, Parameter{
				Index:     p.Index(),
				Name:      p.Name(),
				Type:      p.Type().String(),
				Mandatory: p.IsMandatory(),
				Facets:    facetsOf(p.Holder()),
			})
		}
	}
	return out
}

func facetsOf(h *facet.Holder) []Facet {
	var out []Facet
	for _, f := range h.Facets() {
		out = append(out, Facet{Type: f.Type().String(), Detail: detail(f)})
	}
	slices.SortFunc(out, func(a, b Facet) int { return strings.Compare(a.Type, b.Type) })
	return out
}

// detail renders the configuration of facets whose settings matter to
// clients; behavioural facets report the method backing them.
func detail(f facet.Facet) string {
	switch f := f.(type) {
	case facets.RegEx:
		if f.CaseInsensitive {
			return "(?i)" + f.Pattern
		}
		return f.Pattern
	case facets.MaxLength:
		return strconv.Itoa(f.Max)
	case facets.Mandatory:
		if f.Optional {
			return "optional"
		}
		return "required"
	case facets.Hidden:
		return string(f.Where)
	case facets.Disabled:
		return strings.TrimSpace(string(f.Where) + " " + f.Reason)
	case facets.Immutable:
		return f.Reason
	case facets.Named:
		return f.Name
	case facets.DescribedAs:
		return f.Text
	case facets.Plural:
		return f.Name
	case facets.LogicalTypeName:
		return f.Name
	case facets.MemberOrder:
		return f.Group + "," + f.Sequence
	case facets.Roles:
		return strings.Join(f.Roles, ",")
	case facets.Publishing:
		return strconv.FormatBool(f.Enabled)
	case facets.DefaultLiteral:
		return fmt.Sprint(f.Value)
	case facets.HideViaMethod:
		return f.Method.String()
	case facets.DisableViaMethod:
		return f.Method.String()
	case facets.ValidateViaMethod:
		return f.Method.String()
	case facets.DefaultViaMethod:
		return f.Method.String()
	case facets.TitleViaMethod:
		return f.Method.String()
	case fmt.Stringer:
		return f.String()
	}
	return ""
}
