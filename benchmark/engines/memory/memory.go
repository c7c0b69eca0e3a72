package memory

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Memory is an in-process backend. Every rule of the schema catalog is
// checked by the adapter itself, so all guarantees are emulated.
type Memory struct {
	collections      map[string]*collection
	provisionFailure map[string]error
}

type collection struct {
	schema  engine.Schema
	records []generator.Record
}

func New() *Memory {
	return &Memory{
		collections:      map[string]*collection{},
		provisionFailure: map[string]error{},
	}
}

// FailProvision makes the next provisioning of schema fail with err.
func (m *Memory) FailProvision(schema string, err error) {
	m.provisionFailure[schema] = err
}

func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		SchemaMigrationRequired: false,
		NestedStructures:        engine.Native,
		Validation:              engine.Emulated,
		References:              engine.Emulated,
		CascadeDelete:           engine.Emulated,
		Transactions:            engine.Emulated,
	}
}

func (m *Memory) Provision(_ context.Context, schema string) error {
	delete(m.collections, schema)

	if err, ok := m.provisionFailure[schema]; ok {
		delete(m.provisionFailure, schema)
		return &engine.ProvisionError{Schema: schema, Cause: err}
	}

	s, err := engine.Lookup(schema)
	if err != nil {
		return &engine.ProvisionError{Schema: schema, Cause: err}
	}
	m.collections[schema] = &collection{schema: s}
	zlog.Debug().Str("backend", m.Name()).Str("schema", schema).Msg("provisioned")
	return nil
}

func (m *Memory) Drop(_ context.Context, schema string) {
	delete(m.collections, schema)
}

func (m *Memory) collection(schema string) (*collection, error) {
	c, ok := m.collections[schema]
	if !ok {
		return nil, fmt.Errorf("%s does not exist", schema)
	}
	return c, nil
}

func (m *Memory) InsertMany(_ context.Context, schema string, records []generator.Record) (int, error) {
	inserted := 0
	for _, r := range records {
		if err := m.insert(schema, r); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (m *Memory) InsertOne(_ context.Context, schema string, record generator.Record) engine.Outcome {
	return engine.Classify(m.insert(schema, record), nil)
}

func (m *Memory) insert(schema string, r generator.Record) error {
	c, err := m.collection(schema)
	if err != nil {
		return err
	}

	fields := copyMap(r.Fields)
	if c.schema.Key != "id" {
		if _, ok := fields[c.schema.Key]; !ok {
			fields[c.schema.Key] = r.ID
		}
	}

	if err := c.schema.Validate(fields); err != nil {
		return err
	}

	for _, existing := range c.records {
		if existing.ID == r.ID {
			return engine.Reject("%s: duplicate key %s", schema, r.ID)
		}
	}
	for _, rule := range c.schema.Rules {
		if !rule.Unique || rule.Field == c.schema.Key {
			continue
		}
		value, _ := generator.Lookup(fields, rule.Field)
		for _, existing := range c.records {
			if v, ok := existing.Get(rule.Field); ok && equal(v, value) {
				return engine.Reject("%s: duplicate %s %v", schema, rule.Field, value)
			}
		}
	}

	for _, ref := range c.schema.References {
		value, _ := generator.Lookup(fields, ref.Field)
		parent, err := m.collection(ref.Parent)
		if err != nil {
			return err
		}
		if !parent.any(engine.Where(engine.Eq(ref.ParentField, value))) {
			return engine.Reject("%s: %s %v references a missing %s record", schema, ref.Field, value, ref.Parent)
		}
	}

	c.records = append(c.records, generator.Record{ID: r.ID, Kind: r.Kind, Fields: fields})
	return nil
}

func (c *collection) any(filter engine.Filter) bool {
	for _, r := range c.records {
		if Matches(r.Fields, filter) {
			return true
		}
	}
	return false
}

func (m *Memory) Find(_ context.Context, schema string, filter engine.Filter, limit int) (int, error) {
	c, err := m.collection(schema)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range c.records {
		if limit > 0 && n >= limit {
			break
		}
		if Matches(r.Fields, filter) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Count(ctx context.Context, schema string, filter engine.Filter) (int64, error) {
	n, err := m.Find(ctx, schema, filter, 0)
	return int64(n), err
}

func (m *Memory) Update(_ context.Context, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	c, err := m.collection(schema)
	if err != nil {
		return 0, err
	}

	var modified int64
	for i, r := range c.records {
		if !Matches(r.Fields, filter) {
			continue
		}
		fields := copyMap(r.Fields)
		for field, inc := range mutation.Inc {
			current, _ := generator.Lookup(fields, field)
			setPath(fields, field, add(current, inc))
		}
		for field, value := range mutation.Set {
			setPath(fields, field, value)
		}
		if err := c.schema.Validate(fields); err != nil {
			return modified, err
		}
		c.records[i].Fields = fields
		modified++
	}
	return modified, nil
}

func (m *Memory) Delete(_ context.Context, schema string, filter engine.Filter) (int64, error) {
	return m.delete(schema, filter)
}

func (m *Memory) delete(schema string, filter engine.Filter) (int64, error) {
	c, err := m.collection(schema)
	if err != nil {
		return 0, err
	}

	kept := []generator.Record{}
	removed := []generator.Record{}
	for _, r := range c.records {
		if Matches(r.Fields, filter) {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}

	for _, dep := range engine.Dependents(schema) {
		child, ok := m.collections[dep.Schema]
		if !ok {
			continue
		}
		for _, r := range removed {
			value, _ := r.Get(dep.ParentField)
			childFilter := engine.Where(engine.Eq(dep.Field, value))
			if !dep.Cascade {
				if child.any(childFilter) {
					return 0, engine.Reject("%s: %v is still referenced by %s", schema, value, dep.Schema)
				}
				continue
			}
			if _, err := m.delete(dep.Schema, childFilter); err != nil {
				return 0, err
			}
		}
	}

	c.records = kept
	return int64(len(removed)), nil
}

// RunTransaction snapshots every collection and restores it if fn fails.
func (m *Memory) RunTransaction(ctx context.Context, fn engine.TxFunc) engine.Outcome {
	snapshot := m.snapshot()
	if err := fn(ctx, &tx{m: m}); err != nil {
		m.collections = snapshot
		return engine.Classify(errors.Wrap(err, "transaction rolled back"), nil)
	}
	return engine.Ok()
}

func (m *Memory) snapshot() map[string]*collection {
	snapshot := make(map[string]*collection, len(m.collections))
	for name, c := range m.collections {
		records := make([]generator.Record, len(c.records))
		for i, r := range c.records {
			records[i] = generator.Record{ID: r.ID, Kind: r.Kind, Fields: copyMap(r.Fields)}
		}
		snapshot[name] = &collection{schema: c.schema, records: records}
	}
	return snapshot
}

func (m *Memory) Stats(_ context.Context) (engine.Stats, error) {
	return engine.Stats{}, nil
}

func (m *Memory) Close(_ context.Context) error {
	m.collections = map[string]*collection{}
	return nil
}

type tx struct {
	m *Memory
}

func (t *tx) FindOne(_ context.Context, schema string, filter engine.Filter) (generator.Record, bool, error) {
	c, err := t.m.collection(schema)
	if err != nil {
		return generator.Record{}, false, err
	}
	for _, r := range c.records {
		if Matches(r.Fields, filter) {
			return generator.Record{ID: r.ID, Kind: r.Kind, Fields: copyMap(r.Fields)}, true, nil
		}
	}
	return generator.Record{}, false, nil
}

func (t *tx) Insert(_ context.Context, schema string, record generator.Record) error {
	return t.m.insert(schema, record)
}

func (t *tx) Update(ctx context.Context, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	return t.m.Update(ctx, schema, filter, mutation)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = copyMap(nested)
		}
		out[k] = v
	}
	return out
}

func setPath(fields map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := fields
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// add keeps integers integral so typed rules still hold after an increment.
func add(current any, inc any) any {
	ci, cInt := asInt(current)
	ii, iInt := asInt(inc)
	if cInt && iInt {
		return int(ci + ii)
	}
	if current == nil && iInt {
		return int(ii)
	}
	return generator.ToFloat(current) + generator.ToFloat(inc)
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

var _ engine.Engine = (*Memory)(nil)
