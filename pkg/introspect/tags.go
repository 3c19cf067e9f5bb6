package introspect

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Tags holds the annotations of a class, field or method, parsed from Go
// struct tag syntax: `hidden:"tables" regex:"\\d+"`. A key present with an
// empty value is still present.
type Tags map[string]string

// MemberTagger is implemented by domain types that annotate their methods.
// Keys are method names, values use struct tag syntax.
type MemberTagger interface {
	MemberTags() map[string]string
}

// MemberTagsMethod is the name of the MemberTagger method; it is never
// treated as a domain member.
const MemberTagsMethod = "MemberTags"

// ParseTags parses struct tag syntax. Malformed trailing input is ignored,
// mirroring reflect.StructTag.
func ParseTags(raw string) Tags {
	tags := Tags{}
	tag := raw
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}
		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		name := tag[:i]
		tag = tag[i+1:]

		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		qvalue := tag[:i+1]
		tag = tag[i+1:]
		value, err := strconv.Unquote(qvalue)
		if err != nil {
			break
		}
		tags[name] = value
	}
	return tags
}

// Lookup returns the value for key and whether it is present.
func (t Tags) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[key]
	return v, ok
}

// Has reports whether key is present.
func (t Tags) Has(key string) bool {
	_, ok := t.Lookup(key)
	return ok
}

// Get returns the value for key, empty when absent.
func (t Tags) Get(key string) string {
	v, _ := t.Lookup(key)
	return v
}

// Keys returns the sorted annotation keys.
func (t Tags) Keys() []string {
	keys := slices.Collect(maps.Keys(t))
	slices.Sort(keys)
	return keys
}

// Merge returns a copy of t overlaid with other.
func (t Tags) Merge(other Tags) Tags {
	out := make(Tags, len(t)+len(other))
	maps.Copy(out, t)
	maps.Copy(out, other)
	return out
}

// String renders the tags back into struct tag syntax in key order.
func (t Tags) String() string {
	parts := make([]string, 0, len(t))
	for _, k := range t.Keys() {
		parts = append(parts, k+":"+strconv.Quote(t[k]))
	}
	return strings.Join(parts, " ")
}
