// Package placeholder implements the `{{name}}` substitution layer threaded
// through task env and plugin configuration (spec.md §4.1).
//
// This is deliberately not built on text/template (the pack's usual
// templating dependency, pkg/tplengine in compozy-compozy): text/template
// errors on an undefined key instead of preserving the token verbatim, and
// has no notion of "idempotent over already-resolved strings" without extra
// bookkeeping. Both are required invariants here (spec.md §4.1, §8), so a
// small hand-rolled literal-brace scanner is the correct tool — see
// DESIGN.md for this standard-library justification.
package placeholder

import "strings"

// Context is a key→value mapping of placeholder names to their
// substitution values.
type Context map[string]string

// New builds a Context from the given key/value map. A nil map yields an
// empty, non-nil Context.
func New(values map[string]string) Context {
	ctx := make(Context, len(values))
	for k, v := range values {
		ctx[k] = v
	}
	return ctx
}

// Set binds name to value, overwriting any existing binding.
func (c Context) Set(name, value string) {
	c[name] = value
}

// Resolve returns a copy of s with every occurrence of `{{name}}` replaced
// by its bound value, for every name present in c. Placeholders naming an
// unbound key are left verbatim. Resolve is pure (it never mutates c) and
// idempotent: once every `{{name}}` token in the result refers to an
// unbound or already-substituted name, re-resolving it is a no-op, since
// substituted text is copied in as plain text, never rescanned.
func (c Context) Resolve(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "{{")
		if start == -1 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])
		end := strings.Index(s[start+2:], "}}")
		if end == -1 {
			// Unterminated placeholder: copy the rest verbatim.
			b.WriteString(s[start:])
			break
		}
		end = start + 2 + end
		name := s[start+2 : end]
		if value, ok := c[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+2])
		}
		i = end + 2
	}
	return b.String()
}

// ResolveTable walks a nested key→value tree, resolving every string leaf
// against c and recursing into nested map[string]any subtables. All other
// value kinds (numbers, bools, slices, nil) pass through unchanged. The
// key set and every non-string leaf value is preserved exactly.
func (c Context) ResolveTable(t map[string]any) map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = c.resolveValue(v)
	}
	return out
}

func (c Context) resolveValue(v any) any {
	switch typed := v.(type) {
	case string:
		return c.Resolve(typed)
	case map[string]any:
		return c.ResolveTable(typed)
	default:
		return v
	}
}
