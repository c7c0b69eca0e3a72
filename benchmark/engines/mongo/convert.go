package mongo

import (
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// keyField returns the document attribute holding the record id.
func keyField(s engine.Schema, field string) string {
	if field == "id" || (field == s.Key && s.Key == "id") {
		return "_id"
	}
	return field
}

func toDocument(s engine.Schema, r generator.Record) bson.M {
	doc := bson.M{"_id": r.ID}
	for k, v := range r.Fields {
		doc[k] = v
	}
	if s.Key != "id" {
		if _, ok := doc[s.Key]; !ok {
			doc[s.Key] = r.ID
		}
	}
	return doc
}

func toFilter(s engine.Schema, filter engine.Filter) bson.D {
	conds := bson.A{}
	for _, p := range filter {
		conds = append(conds, bson.D{{Key: keyField(s, p.Field), Value: condition(p)}})
	}
	switch len(conds) {
	case 0:
		return bson.D{}
	case 1:
		return conds[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: conds}}
}

func condition(p engine.Predicate) any {
	switch p.Op {
	case engine.OpGt:
		return bson.M{"$gt": p.Value}
	case engine.OpGte:
		return bson.M{"$gte": p.Value}
	case engine.OpLt:
		return bson.M{"$lt": p.Value}
	case engine.OpLte:
		return bson.M{"$lte": p.Value}
	case engine.OpBetween:
		return bson.M{"$gte": p.Value, "$lte": p.Upper}
	case engine.OpExists:
		return bson.M{"$exists": true, "$ne": nil}
	case engine.OpAnyOf:
		return bson.M{"$in": bson.A(p.Values)}
	case engine.OpContains:
		return primitive.Regex{Pattern: regexp.QuoteMeta(p.Value.(string)), Options: "i"}
	}
	return p.Value
}

func toUpdate(mutation engine.Mutation) bson.M {
	update := bson.M{}
	if len(mutation.Inc) > 0 {
		update["$inc"] = bson.M(mutation.Inc)
	}
	if len(mutation.Set) > 0 {
		update["$set"] = bson.M(mutation.Set)
	}
	return update
}

// fromDocument converts a decoded document back into a record.
func fromDocument(s engine.Schema, doc bson.M) generator.Record {
	fields := normalize(doc).(map[string]any)
	id, _ := fields["_id"].(string)
	delete(fields, "_id")
	return generator.Record{ID: id, Fields: fields}
}

func normalize(v any) any {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return x.Time().UTC()
	case int32:
		return int(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

// validator builds the $jsonSchema document of a schema object's rules.
func validator(s engine.Schema) bson.M {
	root := bson.M{"bsonType": "object"}
	for _, rule := range s.Rules {
		parts := strings.Split(rule.Field, ".")
		obj := root
		for _, part := range parts[:len(parts)-1] {
			props := properties(obj)
			child, ok := props[part].(bson.M)
			if !ok {
				child = bson.M{"bsonType": "object"}
				props[part] = child
			}
			obj = child
		}

		name := parts[len(parts)-1]
		props := properties(obj)
		prop, ok := props[name].(bson.M)
		if !ok {
			prop = bson.M{}
			props[name] = prop
		}
		for k, v := range ruleSchema(rule) {
			prop[k] = v
		}
		if rule.Required {
			required, _ := obj["required"].(bson.A)
			obj["required"] = append(required, name)
		}
	}
	return bson.M{"$jsonSchema": root}
}

func properties(obj bson.M) bson.M {
	props, ok := obj["properties"].(bson.M)
	if !ok {
		props = bson.M{}
		obj["properties"] = props
	}
	return props
}

func ruleSchema(r engine.Rule) bson.M {
	m := bson.M{}
	switch r.Type {
	case engine.String:
		m["bsonType"] = "string"
	case engine.Int:
		m["bsonType"] = bson.A{"int", "long"}
	case engine.Number:
		m["bsonType"] = bson.A{"int", "long", "double", "decimal"}
	case engine.Date:
		m["bsonType"] = "date"
	case engine.Object:
		m["bsonType"] = "object"
	}
	if r.Pattern != "" {
		m["pattern"] = r.Pattern
	}
	if r.MinLength > 0 {
		m["minLength"] = r.MinLength
	}
	if r.MaxLength > 0 {
		m["maxLength"] = r.MaxLength
	}
	if len(r.Enum) > 0 {
		enum := bson.A{}
		for _, e := range r.Enum {
			enum = append(enum, e)
		}
		m["enum"] = enum
	}
	if r.Min != nil {
		m["minimum"] = *r.Min
	}
	return m
}
