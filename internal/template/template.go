// Package template implements the one-shot "{{dotted.path}}" resolver
// described in spec.md §4.1. It is deliberately far smaller than the
// expression engine it is grounded on (internal/expression in the teacher
// repository this project started from): no scopes, no escaping, no
// functions, no nested braces - a string is a template iff it starts with
// "{{" and ends with "}}", and the path between is resolved against a plain
// context mapping.
package template

import "strings"

// Undefined is the sentinel value returned when a dotted path misses - the
// resolver is silent on missing segments (spec.md §4.1, §8 boundary
// behaviours), propagating the absence rather than erroring.
type Undefined struct{}

// IsTemplate reports whether s is a whole-string template: it starts with
// "{{" and ends with "}}".
func IsTemplate(s string) bool {
	return len(s) >= 4 && strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}")
}

// path extracts the dotted path out of a whole-string template.
func path(s string) string {
	return strings.TrimSpace(s[2 : len(s)-2])
}

// Resolve evaluates a whole-string template against ctx and returns the
// value at the dotted path, which may be of any type, or Undefined{} if any
// segment is missing or not traversable. Resolve does not check IsTemplate;
// callers resolve only after confirming the string is a template.
func Resolve(s string, ctx map[string]any) any {
	return ResolvePath(path(s), ctx)
}

// ResolvePath walks dotted path p (segments separated by ".") over ctx,
// treating []any slices as maps from stringified index to element, and
// returns Undefined{} at the first missing or non-traversable segment.
func ResolvePath(p string, ctx map[string]any) any {
	if p == "" {
		return Undefined{}
	}
	segments := strings.Split(p, ".")
	var cur any = ctx
	for _, seg := range segments {
		next, ok := step(cur, seg)
		if !ok {
			return Undefined{}
		}
		cur = next
	}
	return cur
}

// step resolves one path segment against cur, which may be a
// map[string]any or a []any; any other type (including other slice types)
// is not traversable.
func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[seg]
		return val, ok
	case []any:
		idx, ok := parseIndex(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

func parseIndex(seg string, length int) (int, bool) {
	if seg == "" {
		return 0, false
	}
	n := 0
	for _, c := range seg {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n < 0 || n >= length {
		return 0, false
	}
	return n, true
}

// RenderField resolves each map entry whose value is a whole-string
// template; non-string and non-template values pass through unchanged. This
// is the "field-wise resolution over a mapping" shape of spec.md §4.1,
// typically applied to a step's `input` map.
func RenderField(fields map[string]string, ctx map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsTemplate(v) {
			out[k] = Resolve(v, ctx)
		} else {
			out[k] = v
		}
	}
	return out
}

// RenderValue recursively renders templates found inside strings, maps, and
// slices of arbitrary shape. Non-template strings, and all other types, pass
// through unchanged. The pipeline runners do not call it: they resolve
// `forEach`/`runWhen` with Resolve/ResolvePath and step inputs with
// RenderField.
func RenderValue(v any, ctx map[string]any) any {
	switch val := v.(type) {
	case string:
		if IsTemplate(val) {
			return Resolve(val, ctx)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = RenderValue(item, ctx)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = RenderValue(item, ctx)
		}
		return out
	default:
		return v
	}
}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(Undefined)
	return ok
}

// Truthy implements the runWhen truthiness rule of spec.md §9: falsy iff
// missing, false, 0, empty string, or nil; everything else (including empty
// arrays/objects) is truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case Undefined:
		return false
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
