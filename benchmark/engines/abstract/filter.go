package engine

type Op string

const (
	OpEq       Op = "eq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpBetween  Op = "between" // inclusive
	OpExists   Op = "exists"
	OpAnyOf    Op = "any_of"   // array attribute holds at least one of Values
	OpContains Op = "contains" // case-insensitive substring
)

// Predicate is a condition over one attribute. Field is a dotted path; a path
// through an array of objects matches if any element matches.
type Predicate struct {
	Field  string
	Op     Op
	Value  any
	Upper  any
	Values []any
}

// Filter is a conjunction of predicates. An empty filter matches everything.
type Filter []Predicate

func Where(predicates ...Predicate) Filter {
	return Filter(predicates)
}

// All matches every record.
var All = Filter{}

func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

func Gt(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpGt, Value: value}
}

func Gte(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpGte, Value: value}
}

func Lt(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpLt, Value: value}
}

func Lte(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpLte, Value: value}
}

func Between(field string, lower, upper any) Predicate {
	return Predicate{Field: field, Op: OpBetween, Value: lower, Upper: upper}
}

func Exists(field string) Predicate {
	return Predicate{Field: field, Op: OpExists}
}

func AnyOf(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpAnyOf, Values: values}
}

func Contains(field string, substring string) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: substring}
}

// Mutation describes an update: numeric increments and assignments.
type Mutation struct {
	Inc map[string]any
	Set map[string]any
}
