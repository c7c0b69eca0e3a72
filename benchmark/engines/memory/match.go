package memory

import (
	engine "dbeval/benchmark/engines/abstract"
	"strings"
	"time"
)

// Matches evaluates a filter against a record's fields with document-store
// semantics: paths traverse arrays of objects and array values match
// element-wise.
func Matches(fields map[string]any, filter engine.Filter) bool {
	for _, p := range filter {
		if !matchPredicate(resolve(fields, strings.Split(p.Field, ".")), p) {
			return false
		}
	}
	return true
}

func matchPredicate(values []any, p engine.Predicate) bool {
	if p.Op == engine.OpExists {
		return len(values) > 0
	}
	for _, v := range flatten(values) {
		if matchValue(v, p) {
			return true
		}
	}
	return false
}

func matchValue(v any, p engine.Predicate) bool {
	switch p.Op {
	case engine.OpEq:
		return equal(v, p.Value)
	case engine.OpGt:
		c, ok := compare(v, p.Value)
		return ok && c > 0
	case engine.OpGte:
		c, ok := compare(v, p.Value)
		return ok && c >= 0
	case engine.OpLt:
		c, ok := compare(v, p.Value)
		return ok && c < 0
	case engine.OpLte:
		c, ok := compare(v, p.Value)
		return ok && c <= 0
	case engine.OpBetween:
		lo, ok1 := compare(v, p.Value)
		hi, ok2 := compare(v, p.Upper)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case engine.OpAnyOf:
		for _, candidate := range p.Values {
			if equal(v, candidate) {
				return true
			}
		}
		return false
	case engine.OpContains:
		s, ok := v.(string)
		sub, ok2 := p.Value.(string)
		return ok && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	}
	return false
}

// resolve returns every value reachable through path, descending into arrays.
func resolve(v any, path []string) []any {
	if len(path) == 0 {
		if v == nil {
			return nil
		}
		return []any{v}
	}
	switch x := v.(type) {
	case map[string]any:
		next, ok := x[path[0]]
		if !ok {
			return nil
		}
		return resolve(next, path[1:])
	case []any:
		out := []any{}
		for _, elem := range x {
			out = append(out, resolve(elem, path)...)
		}
		return out
	case []map[string]any:
		out := []any{}
		for _, elem := range x {
			out = append(out, resolve(elem, path)...)
		}
		return out
	}
	return nil
}

// flatten expands array leaves so predicates apply to their elements.
func flatten(values []any) []any {
	out := []any{}
	for _, v := range values {
		switch x := v.(type) {
		case []any:
			out = append(out, x...)
		case []string:
			for _, s := range x {
				out = append(out, s)
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return false
}

func compare(a, b any) (int, bool) {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		if !ok {
			return 0, false
		}
		return sign(fa - fb), true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}
