package postgres

import (
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// builder accumulates positional arguments while a statement is built.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// target is the SQL expression an attribute path resolves to.
type target struct {
	expr  string
	json  bool
	child *child
}

func (t *table) resolve(field string) (target, error) {
	if field == t.key || field == "id" {
		return target{expr: t.name + "." + t.key}, nil
	}
	for _, c := range t.columns {
		if c.field == field {
			return target{expr: t.name + "." + c.name, json: c.json}, nil
		}
	}
	for i, ch := range t.children {
		prefix := ch.field + "."
		if !strings.HasPrefix(field, prefix) {
			continue
		}
		rest := strings.TrimPrefix(field, prefix)
		for _, c := range ch.columns {
			if c.field == rest {
				return target{expr: "c." + c.name, json: c.json, child: &t.children[i]}, nil
			}
		}
	}
	return target{}, fmt.Errorf("%s has no column for %q", t.name, field)
}

// where renders a filter as a WHERE clause (empty for an empty filter).
func (t *table) where(b *builder, filter engine.Filter) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}
	conds := []string{}
	for _, p := range filter {
		tg, err := t.resolve(p.Field)
		if err != nil {
			return "", err
		}
		cond, err := condition(b, tg, p)
		if err != nil {
			return "", err
		}
		if tg.child != nil {
			cond = fmt.Sprintf("EXISTS (SELECT 1 FROM %s c WHERE c.%s = %s.%s AND %s)",
				tg.child.table, tg.child.fk, t.name, t.key, cond)
		}
		conds = append(conds, cond)
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func condition(b *builder, tg target, p engine.Predicate) (string, error) {
	switch p.Op {
	case engine.OpEq:
		if tg.json {
			return fmt.Sprintf("%s @> %s::jsonb", tg.expr, b.arg(jsonText([]any{p.Value}))), nil
		}
		return fmt.Sprintf("%s = %s", tg.expr, b.arg(p.Value)), nil
	case engine.OpGt:
		return fmt.Sprintf("%s > %s", tg.expr, b.arg(p.Value)), nil
	case engine.OpGte:
		return fmt.Sprintf("%s >= %s", tg.expr, b.arg(p.Value)), nil
	case engine.OpLt:
		return fmt.Sprintf("%s < %s", tg.expr, b.arg(p.Value)), nil
	case engine.OpLte:
		return fmt.Sprintf("%s <= %s", tg.expr, b.arg(p.Value)), nil
	case engine.OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", tg.expr, b.arg(p.Value), b.arg(p.Upper)), nil
	case engine.OpExists:
		return fmt.Sprintf("%s IS NOT NULL", tg.expr), nil
	case engine.OpAnyOf:
		values := []string{}
		for _, v := range p.Values {
			values = append(values, fmt.Sprint(v))
		}
		if tg.json {
			return fmt.Sprintf("%s ?| %s", tg.expr, b.arg(pq.Array(values))), nil
		}
		return fmt.Sprintf("%s = ANY(%s)", tg.expr, b.arg(pq.Array(values))), nil
	case engine.OpContains:
		return fmt.Sprintf("%s ILIKE %s", tg.expr, b.arg("%"+escapeLike(fmt.Sprint(p.Value))+"%")), nil
	}
	return "", fmt.Errorf("unsupported operator %q", p.Op)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// set renders a mutation as a SET clause with a stable column order.
func (t *table) set(b *builder, mutation engine.Mutation) (string, error) {
	parts := []string{}
	for _, field := range sortedKeys(mutation.Inc) {
		tg, err := t.resolve(field)
		if err != nil || tg.child != nil {
			return "", fmt.Errorf("%s cannot increment %q", t.name, field)
		}
		col := columnName(tg.expr)
		parts = append(parts, fmt.Sprintf("%s = %s + %s", col, col, b.arg(mutation.Inc[field])))
	}
	for _, field := range sortedKeys(mutation.Set) {
		tg, err := t.resolve(field)
		if err != nil || tg.child != nil {
			return "", fmt.Errorf("%s cannot set %q", t.name, field)
		}
		value := mutation.Set[field]
		if tg.json {
			value = jsonText(value)
		}
		parts = append(parts, fmt.Sprintf("%s = %s", columnName(tg.expr), b.arg(value)))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty mutation")
	}
	return strings.Join(parts, ", "), nil
}

func columnName(expr string) string {
	return expr[strings.LastIndex(expr, ".")+1:]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonText(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

// row returns the column names and values of a record for an INSERT. With
// all set, missing attributes are returned as NULL; otherwise they are
// omitted so column defaults apply.
func (t *table) row(r generator.Record, all bool) ([]string, []any) {
	names := []string{t.key}
	values := []any{r.ID}
	for _, c := range t.columns {
		v, ok := generator.Lookup(r.Fields, c.field)
		if !ok && !all {
			continue
		}
		if c.json {
			v = jsonText(v)
		}
		names = append(names, c.name)
		values = append(values, v)
	}
	return names, values
}

// childRows returns the rows of one normalized nested attribute.
func (ch *child) rows(r generator.Record) [][]any {
	v, ok := r.Fields[ch.field]
	if !ok || v == nil {
		return nil
	}
	elems := []map[string]any{}
	switch x := v.(type) {
	case map[string]any:
		elems = append(elems, x)
	case []map[string]any:
		elems = x
	case []any:
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				elems = append(elems, m)
			}
		}
	}

	rows := [][]any{}
	for _, e := range elems {
		row := []any{r.ID}
		for _, c := range ch.columns {
			row = append(row, e[c.field])
		}
		rows = append(rows, row)
		if ch.one {
			break
		}
	}
	return rows
}

func (ch *child) columnNames() []string {
	names := []string{ch.fk}
	for _, c := range ch.columns {
		names = append(names, c.name)
	}
	return names
}

func insertStatement(table string, names []string) string {
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table,
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
}
