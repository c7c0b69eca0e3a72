package engine

import (
	"dbeval/generator"
	"fmt"
	"regexp"
	"time"
)

// Logical schema objects (collections or tables)
const (
	Products            = "products"
	ProductsEnhanced    = "products_enhanced"
	ProductsComplex     = "products_complex"
	PerformanceTest     = "performance_test"
	Customers           = "customers"
	Inventory           = "inventory"
	Orders              = "orders"
	OrderItems          = "order_items"
	Payments            = "payments"
	UnconstrainedOrders = "temp_no_constraints"
)

type FieldType string

const (
	String FieldType = "string"
	Int    FieldType = "int"
	Number FieldType = "number"
	Date   FieldType = "date"
	Object FieldType = "object"
)

// Rule declares the constraints of one attribute. Field may be a dotted path
// into a nested object.
type Rule struct {
	Field     string
	Type      FieldType
	Required  bool
	Unique    bool
	Pattern   string
	MinLength int
	MaxLength int
	Enum      []string
	Min       *float64
}

// Reference declares that Field must match ParentField of an existing record
// of Parent.
type Reference struct {
	Field       string
	Parent      string
	ParentField string
	Cascade     bool
}

type Schema struct {
	Name       string
	Key        string
	Rules      []Rule
	References []Reference
	Indexes    []string
}

func (s Schema) Constrained() bool {
	return len(s.Rules) > 0 || len(s.References) > 0
}

func atLeast(v float64) *float64 {
	return &v
}

const (
	emailPattern = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	phonePattern = `^\+?[0-9]{10,15}$`
)

var (
	orderStatuses   = []string{"pending", "confirmed", "shipped", "delivered", "cancelled"}
	paymentStatuses = []string{"pending", "completed", "failed", "refunded"}
	customerStatus  = []string{"active", "inactive", "suspended"}
)

var catalog = map[string]Schema{
	Products: {
		Name:    Products,
		Key:     "id",
		Indexes: []string{"price", "created_at"},
	},
	ProductsEnhanced: {
		Name:    ProductsEnhanced,
		Key:     "id",
		Indexes: []string{"category", "price"},
	},
	ProductsComplex: {
		Name:    ProductsComplex,
		Key:     "id",
		Indexes: []string{"price", "analytics.views"},
	},
	PerformanceTest: {
		Name:    PerformanceTest,
		Key:     "id",
		Indexes: []string{"category", "price", "rating", "created_at", "status"},
	},
	Customers: {
		Name: Customers,
		Key:  "customer_id",
		Rules: []Rule{
			{Field: "customer_id", Type: String, Required: true, Unique: true, Pattern: `^CUST_[0-9]{6}$`},
			{Field: "email", Type: String, Required: true, Unique: true, Pattern: emailPattern},
			{Field: "name", Type: String, Required: true, MinLength: 2, MaxLength: 100},
			{Field: "phone", Type: String, Pattern: phonePattern},
			{Field: "address", Type: Object},
			{Field: "address.street", Type: String, MinLength: 5},
			{Field: "address.city", Type: String, MinLength: 2},
			{Field: "status", Type: String, Enum: customerStatus},
			{Field: "created_at", Type: Date},
		},
		Indexes: []string{"status"},
	},
	Inventory: {
		Name: Inventory,
		Key:  "product_id",
		Rules: []Rule{
			{Field: "product_id", Type: String, Required: true, Unique: true, Pattern: `^PROD_[0-9]{6}$`},
			{Field: "product_name", Type: String, Required: true, MinLength: 1},
			{Field: "stock_quantity", Type: Int, Required: true, Min: atLeast(0)},
			{Field: "reserved_quantity", Type: Int, Min: atLeast(0)},
			{Field: "reorder_level", Type: Int, Min: atLeast(0)},
			{Field: "max_stock", Type: Int, Min: atLeast(1)},
			{Field: "last_updated", Type: Date},
		},
	},
	Orders: {
		Name: Orders,
		Key:  "order_id",
		Rules: []Rule{
			{Field: "order_id", Type: String, Required: true, Unique: true, Pattern: `^ORD_[A-Za-z0-9]{2,12}$`},
			{Field: "customer_id", Type: String, Required: true, Pattern: `^CUST_[0-9]{6}$`},
			{Field: "total_amount", Type: Number, Required: true, Min: atLeast(0)},
			{Field: "status", Type: String, Required: true, Enum: orderStatuses},
			{Field: "created_at", Type: Date},
			{Field: "updated_at", Type: Date},
		},
		References: []Reference{
			{Field: "customer_id", Parent: Customers, ParentField: "customer_id", Cascade: true},
		},
		Indexes: []string{"customer_id", "status"},
	},
	OrderItems: {
		Name: OrderItems,
		Key:  "item_id",
		Rules: []Rule{
			{Field: "item_id", Type: String, Required: true, Unique: true},
			{Field: "order_id", Type: String, Required: true},
			{Field: "product_id", Type: String, Required: true},
			{Field: "quantity", Type: Int, Required: true, Min: atLeast(1)},
			{Field: "unit_price", Type: Number, Required: true, Min: atLeast(0)},
			{Field: "total_price", Type: Number, Min: atLeast(0)},
		},
		References: []Reference{
			{Field: "order_id", Parent: Orders, ParentField: "order_id", Cascade: true},
			{Field: "product_id", Parent: Inventory, ParentField: "product_id"},
		},
		Indexes: []string{"order_id"},
	},
	Payments: {
		Name: Payments,
		Key:  "payment_id",
		Rules: []Rule{
			{Field: "payment_id", Type: String, Required: true, Unique: true, Pattern: `^PAY_[A-Za-z0-9]{2,12}$`},
			{Field: "order_id", Type: String, Required: true},
			{Field: "amount", Type: Number, Required: true, Min: atLeast(0)},
			{Field: "payment_method", Type: String, Required: true, Enum: generator.PaymentMethods},
			{Field: "status", Type: String, Required: true, Enum: paymentStatuses},
			{Field: "transaction_ref", Type: String},
			{Field: "created_at", Type: Date},
		},
		References: []Reference{
			{Field: "order_id", Parent: Orders, ParentField: "order_id", Cascade: true},
		},
		Indexes: []string{"order_id"},
	},
	UnconstrainedOrders: {
		Name: UnconstrainedOrders,
		Key:  "order_id",
	},
}

// Lookup returns the declaration of a schema object.
func Lookup(name string) (Schema, error) {
	s, ok := catalog[name]
	if !ok {
		return Schema{}, fmt.Errorf("unknown schema object %q", name)
	}
	return s, nil
}

// Dependent is a reference from a child schema object to a parent.
type Dependent struct {
	Schema string
	Reference
}

// Dependents returns the references pointing at parent.
func Dependents(parent string) []Dependent {
	deps := []Dependent{}
	// fixed order so cascades are deterministic
	for _, name := range []string{Orders, OrderItems, Payments} {
		for _, ref := range catalog[name].References {
			if ref.Parent == parent {
				deps = append(deps, Dependent{Schema: name, Reference: ref})
			}
		}
	}
	return deps
}

// Validate checks the declared rules of a schema object against the fields of
// a record, returning a rejection for the first violated rule.
func (s Schema) Validate(fields map[string]any) error {
	for _, rule := range s.Rules {
		value, ok := generator.Lookup(fields, rule.Field)
		if !ok || value == nil {
			if rule.Required {
				return Reject("%s: %s is required", s.Name, rule.Field)
			}
			continue
		}
		if err := rule.check(value); err != nil {
			return Reject("%s: %s %v", s.Name, rule.Field, err)
		}
	}
	return nil
}

func (r Rule) check(value any) error {
	switch r.Type {
	case String:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if r.Pattern != "" && !regexp.MustCompile(r.Pattern).MatchString(str) {
			return fmt.Errorf("does not match %s", r.Pattern)
		}
		if r.MinLength > 0 && len(str) < r.MinLength {
			return fmt.Errorf("shorter than %d", r.MinLength)
		}
		if r.MaxLength > 0 && len(str) > r.MaxLength {
			return fmt.Errorf("longer than %d", r.MaxLength)
		}
		if len(r.Enum) > 0 && !contains(r.Enum, str) {
			return fmt.Errorf("%q is not one of %v", str, r.Enum)
		}
	case Int, Number:
		switch value.(type) {
		case int, int32, int64:
		case float32, float64:
			if r.Type == Int {
				return fmt.Errorf("must be an integer")
			}
		default:
			return fmt.Errorf("must be numeric")
		}
		if r.Min != nil && generator.ToFloat(value) < *r.Min {
			return fmt.Errorf("must be at least %v", *r.Min)
		}
	case Date:
		if _, ok := value.(time.Time); !ok {
			return fmt.Errorf("must be a date")
		}
	case Object:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("must be an object")
		}
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
