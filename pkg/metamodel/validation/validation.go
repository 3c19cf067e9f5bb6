// Package validation collects problems found while the metamodel is built:
// malformed supporting methods, invalid annotations and the findings of
// post-build validators.
package validation

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"metacore/pkg/facet"
)

// Severity captures how a failure affects startup.
type Severity string

const (
	// SeverityBlock fails Init in prototyping deployments.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported but never fails Init.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// ParseSeverity maps a configured value to a Severity.
func ParseSeverity(value string) (Severity, bool) {
	switch Severity(value) {
	case SeverityBlock, SeverityWarn, SeverityLog:
		return Severity(value), true
	}
	return "", false
}

func (s Severity) rank() int {
	switch s {
	case SeverityBlock:
		return 0
	case SeverityWarn:
		return 1
	default:
		return 2
	}
}

// Failure reports one metamodel problem.
type Failure struct {
	Identifier facet.Identifier
	Message    string
	Severity   Severity
	// Factory names the factory or validator that raised the failure.
	Factory string
}

func (f Failure) String() string {
	return f.Identifier.String() + ": " + f.Message
}

// Failures accumulates failures, dropping exact duplicates. It is safe for
// concurrent use.
type Failures struct {
	mu    sync.Mutex
	items []Failure
	seen  map[Failure]struct{}
}

// NewFailures constructs an empty collection.
func NewFailures() *Failures {
	return &Failures{seen: make(map[Failure]struct{})}
}

// Add records a failure.
func (f *Failures) Add(failure Failure) {
	if failure.Severity == "" {
		failure.Severity = SeverityBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[Failure]struct{})
	}
	if _, dup := f.seen[failure]; dup {
		return
	}
	f.seen[failure] = struct{}{}
	f.items = append(f.items, failure)
}

// Addf records a formatted failure.
func (f *Failures) Addf(id facet.Identifier, severity Severity, source, format string, args ...any) {
	f.Add(Failure{Identifier: id, Severity: severity, Factory: source, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the failures of other.
func (f *Failures) Merge(other *Failures) {
	if other == nil || other == f {
		return
	}
	for _, failure := range other.Items() {
		f.Add(failure)
	}
}

// Items returns the failures sorted by identifier, then message.
func (f *Failures) Items() []Failure {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	out := slices.Clone(f.items)
	f.mu.Unlock()
	slices.SortStableFunc(out, compare)
	return out
}

func compare(a, b Failure) int {
	if a.Identifier != b.Identifier {
		if a.Identifier.Less(b.Identifier) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Message, b.Message); c != 0 {
		return c
	}
	if a.Severity != b.Severity {
		return a.Severity.rank() - b.Severity.rank()
	}
	return strings.Compare(a.Factory, b.Factory)
}

// Len returns the number of distinct failures.
func (f *Failures) Len() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// HasBlocking reports whether any failure blocks startup.
func (f *Failures) HasBlocking() bool {
	return slices.ContainsFunc(f.Items(), func(failure Failure) bool {
		return failure.Severity == SeverityBlock
	})
}

// WithSeverity returns the failures of the given severity.
func (f *Failures) WithSeverity(severity Severity) []Failure {
	var out []Failure
	for _, failure := range f.Items() {
		if failure.Severity == severity {
			out = append(out, failure)
		}
	}
	return out
}

// Report renders one line per failure: "identifier: message".
func (f *Failures) Report() string {
	items := f.Items()
	lines := make([]string, len(items))
	for i, failure := range items {
		lines[i] = failure.String()
	}
	return strings.Join(lines, "\n")
}

// Err returns a *Error when blocking failures exist.
func (f *Failures) Err() error {
	blocking := f.WithSeverity(SeverityBlock)
	if len(blocking) == 0 {
		return nil
	}
	return &Error{Failures: blocking}
}

// Error is returned when the metamodel has blocking failures.
type Error struct {
	Failures []Failure
}

func (e *Error) Error() string {
	if len(e.Failures) == 1 {
		return "metamodel invalid: " + e.Failures[0].String()
	}
	return fmt.Sprintf("metamodel invalid: %d failures, first: %s", len(e.Failures), e.Failures[0])
}
