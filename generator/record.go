package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	Basic       Kind = "basic"
	Enhanced    Kind = "enhanced"
	Complex     Kind = "complex"
	Performance Kind = "performance"
	Customer    Kind = "customer"
	Inventory   Kind = "inventory"
	Order       Kind = "order"
	Payment     Kind = "payment"
	OrderItem   Kind = "order_item"
)

// Kinds lists the kinds accepted by Generate
var Kinds = []Kind{Basic, Enhanced, Complex, Performance, Customer, Inventory, Order, Payment}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// Record is a synthetic entity. Fields may hold nested map[string]any and
// []any values; the key attribute of the target schema object is ID.
type Record struct {
	ID     string         `json:"id" yaml:"id"`
	Kind   Kind           `json:"kind,omitempty" yaml:"kind,omitempty"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// FormatID returns prefix_i with i zero padded to width digits.
func FormatID(prefix string, i int, width int) string {
	return fmt.Sprintf("%s_%0*d", prefix, width, i)
}

// Get returns the value at a dotted path through nested maps.
func (r Record) Get(path string) (any, bool) {
	return Lookup(r.Fields, path)
}

func (r Record) String(field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func (r Record) Int(field string) int64 {
	return ToInt(r.Fields[field])
}

func (r Record) Float(field string) float64 {
	return ToFloat(r.Fields[field])
}

func (r Record) Time(field string) time.Time {
	if t, ok := r.Fields[field].(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Lookup walks a dotted path through nested maps.
func Lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ToInt converts the numeric representations returned by the drivers.
func ToInt(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float64:
		return int64(x)
	case float32:
		return int64(x)
	case []byte:
		return ToInt(string(x))
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(x, 64)
		return int64(f)
	}
	return 0
}

// ToFloat converts the numeric representations returned by the drivers.
func ToFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	case float32:
		return float64(x)
	case []byte:
		return ToFloat(string(x))
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}
