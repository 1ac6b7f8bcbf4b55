// Package reconcile decides, field by field, whether an automated value may
// overwrite what a user's form currently holds.
package reconcile

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
)

// Reason explains a decision.
type Reason string

const (
	ReasonEmpty      Reason = "empty"
	ReasonDefault    Reason = "default"
	ReasonUnedited   Reason = "unedited_since_fill"
	ReasonManualEdit Reason = "manual_edit"
	ReasonNoValue    Reason = "no_incoming_value"
)

// Origin names where an incoming value came from. Only provider-sourced
// values are recorded in the snapshot; document extraction is applied
// under the same rule but leaves provenance untouched.
type Origin string

const (
	OriginProvider Origin = "provider"
	OriginDocument Origin = "document"
)

// Decision is the outcome for one field.
type Decision struct {
	Field  string            `json:"field"`
	Apply  bool              `json:"apply"`
	Reason Reason            `json:"reason"`
	Next   property.Snapshot `json:"next_api_snapshot"`
}

// Decide applies the overwrite rule to one field. The incoming value wins
// when the current value is empty, equals the field's default placeholder,
// or equals the last automated value written; otherwise the current value
// is a manual edit and is kept. Next is a copy of snapshot, updated with the
// incoming value when it is applied. An empty incoming value never applies.
func Decide(field string, incoming, current any, defaults map[string]any, snapshot property.Snapshot) Decision {
	return decide(field, incoming, current, defaults, snapshot, OriginProvider)
}

func decide(field string, incoming, current any, defaults map[string]any, snapshot property.Snapshot, origin Origin) Decision {
	d := Decision{Field: field, Next: snapshot.Clone()}
	switch {
	case IsEmpty(incoming):
		d.Reason = ReasonNoValue
		return d
	case IsEmpty(current):
		d.Apply, d.Reason = true, ReasonEmpty
	case hasDefault(defaults, field) && Same(current, defaults[field]):
		d.Apply, d.Reason = true, ReasonDefault
	case hasDefault(snapshot, field) && Same(current, snapshot[field]):
		d.Apply, d.Reason = true, ReasonUnedited
	default:
		d.Reason = ReasonManualEdit
		return d
	}
	if origin == OriginProvider {
		d.Next[field] = incoming
	}
	return d
}

// State is a form together with its defaults and provenance.
type State struct {
	Form     map[string]any    `json:"form"`
	Defaults map[string]any    `json:"defaults"`
	Snapshot property.Snapshot `json:"api_snapshot"`
}

// Outcome is the result of applying a batch of incoming values.
type Outcome struct {
	Applied   map[string]any    `json:"applied"`
	Decisions []Decision        `json:"decisions"`
	Form      map[string]any    `json:"form"`
	Snapshot  property.Snapshot `json:"next_api_snapshot"`
}

// ApplyAll decides every incoming field in key order against st, writing
// applied values into a copy of the form and threading the snapshot so each
// decision sees the provenance left by the previous one. st is not modified.
func ApplyAll(st State, incoming map[string]any, origin Origin) Outcome {
	out := Outcome{
		Applied:  make(map[string]any),
		Form:     make(map[string]any, len(st.Form)+len(incoming)),
		Snapshot: st.Snapshot.Clone(),
	}
	for k, v := range st.Form {
		out.Form[k] = v
	}

	keys := make([]string, 0, len(incoming))
	for k := range incoming {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		d := decide(k, incoming[k], out.Form[k], st.Defaults, out.Snapshot, origin)
		out.Decisions = append(out.Decisions, d)
		if !d.Apply {
			continue
		}
		out.Applied[k] = incoming[k]
		out.Form[k] = incoming[k]
		out.Snapshot = d.Next
	}
	return out
}

// IsEmpty reports whether v is nil or renders to a blank string.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return canonical(v) == ""
}

// Same compares two values after lower-casing and dropping whitespace and
// hyphens.
func Same(a, b any) bool {
	if IsEmpty(a) || IsEmpty(b) {
		return IsEmpty(a) && IsEmpty(b)
	}
	return canonical(a) == canonical(b)
}

func canonical(v any) string {
	s := normalize.ToString(v)
	if s == "" {
		if f, ok := v.(*float64); ok && f != nil {
			s = normalize.ToString(*f)
		}
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hasDefault(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}
