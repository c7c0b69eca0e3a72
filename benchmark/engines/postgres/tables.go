package postgres

import (
	engine "dbeval/benchmark/engines/abstract"
	"fmt"
)

// column maps a record attribute (dotted path) to a table column.
type column struct {
	name  string
	field string
	json  bool
}

// child is a nested attribute normalized into its own table.
type child struct {
	table   string
	field   string
	fk      string
	columns []column
	one     bool // single object rather than an array
}

type table struct {
	name     string
	key      string
	columns  []column
	children []child
	create   []string
	drop     []string
}

func cols(names ...string) []column {
	out := []column{}
	for _, n := range names {
		out = append(out, column{name: n, field: n})
	}
	return out
}

func (t *table) relations() []string {
	rels := []string{t.name}
	for _, c := range t.children {
		rels = append(rels, c.table)
	}
	return rels
}

const (
	emailCheck = `'^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$'`
	phoneCheck = `'^\+?[0-9]{10,15}$'`
)

var tables = map[string]*table{
	engine.Products: {
		name:    engine.Products,
		key:     "id",
		columns: cols("name", "price", "created_at"),
		create: []string{
			`CREATE TABLE products (
				id VARCHAR(50) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				price DECIMAL(10,2),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			"CREATE INDEX idx_products_price ON products(price)",
			"CREATE INDEX idx_products_created_at ON products(created_at)",
		},
		drop: []string{"DROP TABLE IF EXISTS products CASCADE"},
	},
	engine.ProductsEnhanced: {
		name: engine.ProductsEnhanced,
		key:  "id",
		columns: append(cols("name", "price", "created_at", "category", "brand", "warranty_years",
			"author", "pages", "isbn", "material"),
			column{name: "weight_kg", field: "specifications.weight_kg"},
			column{name: "color", field: "specifications.color"},
			column{name: "genres", field: "genres", json: true},
			column{name: "sizes", field: "sizes", json: true},
			column{name: "colors", field: "colors", json: true},
		),
		create: []string{
			`CREATE TABLE products_enhanced (
				id VARCHAR(50) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				price DECIMAL(10,2),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				category VARCHAR(50),
				brand VARCHAR(100),
				warranty_years INTEGER,
				author VARCHAR(255),
				pages INTEGER,
				isbn VARCHAR(20),
				material VARCHAR(50),
				weight_kg DECIMAL(5,2),
				color VARCHAR(30),
				genres JSONB,
				sizes JSONB,
				colors JSONB
			)`,
			"CREATE INDEX idx_products_enhanced_category ON products_enhanced(category)",
			"CREATE INDEX idx_products_enhanced_price ON products_enhanced(price)",
		},
		drop: []string{"DROP TABLE IF EXISTS products_enhanced CASCADE"},
	},
	engine.ProductsComplex: {
		name:    engine.ProductsComplex,
		key:     "id",
		columns: cols("name", "price", "created_at"),
		children: []child{
			{
				table: "product_reviews", field: "reviews", fk: "product_id",
				columns: append(cols("reviewer", "rating", "comment", "verified"),
					column{name: "review_date", field: "date"}),
			},
			{
				table: "product_variants", field: "variants", fk: "product_id",
				columns: cols("sku", "color", "size", "stock", "price_modifier"),
			},
			{
				table: "product_analytics", field: "analytics", fk: "product_id", one: true,
				columns: cols("views", "purchases", "rating_average", "last_updated"),
			},
		},
		create: []string{
			`CREATE TABLE products_complex (
				id VARCHAR(50) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				price DECIMAL(10,2),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE product_reviews (
				id SERIAL PRIMARY KEY,
				product_id VARCHAR(50) NOT NULL REFERENCES products_complex(id) ON DELETE CASCADE,
				reviewer VARCHAR(100),
				rating INTEGER CHECK (rating BETWEEN 1 AND 5),
				comment TEXT,
				verified BOOLEAN DEFAULT FALSE,
				review_date TIMESTAMP
			)`,
			`CREATE TABLE product_variants (
				id SERIAL PRIMARY KEY,
				product_id VARCHAR(50) NOT NULL REFERENCES products_complex(id) ON DELETE CASCADE,
				sku VARCHAR(100) UNIQUE,
				color VARCHAR(30),
				size VARCHAR(10),
				stock INTEGER,
				price_modifier DECIMAL(10,2)
			)`,
			`CREATE TABLE product_analytics (
				product_id VARCHAR(50) PRIMARY KEY REFERENCES products_complex(id) ON DELETE CASCADE,
				views INTEGER,
				purchases INTEGER,
				rating_average DECIMAL(3,2),
				last_updated TIMESTAMP
			)`,
			"CREATE INDEX idx_product_reviews_product ON product_reviews(product_id, rating)",
			"CREATE INDEX idx_product_variants_product ON product_variants(product_id)",
			"CREATE INDEX idx_product_analytics_views ON product_analytics(views)",
		},
		drop: []string{
			"DROP TABLE IF EXISTS product_reviews CASCADE",
			"DROP TABLE IF EXISTS product_variants CASCADE",
			"DROP TABLE IF EXISTS product_analytics CASCADE",
			"DROP TABLE IF EXISTS products_complex CASCADE",
		},
	},
	engine.PerformanceTest: {
		name: engine.PerformanceTest,
		key:  "id",
		columns: append(cols("name", "price", "category", "description", "created_at", "stock", "rating", "status", "updated_at"),
			column{name: "tags", field: "tags", json: true}),
		create: []string{
			`CREATE TABLE performance_test (
				id VARCHAR(50) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				price DECIMAL(10,2),
				category VARCHAR(50),
				description TEXT,
				created_at TIMESTAMP,
				stock INTEGER,
				rating DECIMAL(2,1),
				tags JSONB,
				status VARCHAR(20) DEFAULT 'active',
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			"CREATE INDEX idx_perf_category ON performance_test(category)",
			"CREATE INDEX idx_perf_price ON performance_test(price)",
			"CREATE INDEX idx_perf_rating ON performance_test(rating)",
			"CREATE INDEX idx_perf_created_at ON performance_test(created_at)",
			"CREATE INDEX idx_perf_status ON performance_test(status)",
		},
		drop: []string{"DROP TABLE IF EXISTS performance_test CASCADE"},
	},
	engine.Customers: {
		name: engine.Customers,
		key:  "customer_id",
		columns: append(cols("email", "name", "phone", "status", "created_at"),
			column{name: "street", field: "address.street"},
			column{name: "city", field: "address.city"},
			column{name: "postal_code", field: "address.postal_code"},
			column{name: "country", field: "address.country"},
		),
		create: []string{
			"CREATE TYPE customer_status AS ENUM ('active', 'inactive', 'suspended')",
			fmt.Sprintf(`CREATE TABLE customers (
				customer_id VARCHAR(20) PRIMARY KEY CHECK (customer_id ~ '^CUST_[0-9]{6}$'),
				email VARCHAR(255) NOT NULL UNIQUE CHECK (email ~ %s),
				name VARCHAR(100) NOT NULL CHECK (length(name) >= 2),
				phone VARCHAR(20) CHECK (phone ~ %s),
				street VARCHAR(255) CHECK (length(street) >= 5),
				city VARCHAR(100) CHECK (length(city) >= 2),
				postal_code VARCHAR(20),
				country VARCHAR(50),
				status customer_status DEFAULT 'active',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`, emailCheck, phoneCheck),
			"CREATE INDEX idx_customers_status ON customers(status)",
		},
		drop: []string{
			"DROP TABLE IF EXISTS customers CASCADE",
			"DROP TYPE IF EXISTS customer_status CASCADE",
		},
	},
	engine.Inventory: {
		name:    engine.Inventory,
		key:     "product_id",
		columns: cols("product_name", "stock_quantity", "reserved_quantity", "reorder_level", "max_stock", "last_updated"),
		create: []string{
			`CREATE TABLE inventory (
				product_id VARCHAR(20) PRIMARY KEY CHECK (product_id ~ '^PROD_[0-9]{6}$'),
				product_name VARCHAR(255) NOT NULL,
				stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
				reserved_quantity INTEGER DEFAULT 0 CHECK (reserved_quantity >= 0),
				reorder_level INTEGER DEFAULT 10 CHECK (reorder_level >= 0),
				max_stock INTEGER DEFAULT 1000 CHECK (max_stock >= 1),
				last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				CHECK (stock_quantity >= reserved_quantity)
			)`,
		},
		drop: []string{"DROP TABLE IF EXISTS inventory CASCADE"},
	},
	engine.Orders: {
		name:    engine.Orders,
		key:     "order_id",
		columns: cols("customer_id", "total_amount", "status", "created_at", "updated_at"),
		create: []string{
			"CREATE TYPE order_status AS ENUM ('pending', 'confirmed', 'shipped', 'delivered', 'cancelled')",
			`CREATE TABLE orders (
				order_id VARCHAR(20) PRIMARY KEY CHECK (order_id ~ '^ORD_[A-Za-z0-9]{2,12}$'),
				customer_id VARCHAR(20) NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
				total_amount DECIMAL(10,2) NOT NULL CHECK (total_amount >= 0),
				status order_status NOT NULL DEFAULT 'pending',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			"CREATE INDEX idx_orders_customer ON orders(customer_id)",
			"CREATE INDEX idx_orders_status ON orders(status)",
		},
		drop: []string{
			"DROP TABLE IF EXISTS orders CASCADE",
			"DROP TYPE IF EXISTS order_status CASCADE",
		},
	},
	engine.OrderItems: {
		name:    engine.OrderItems,
		key:     "item_id",
		columns: cols("order_id", "product_id", "quantity", "unit_price", "total_price"),
		create: []string{
			`CREATE TABLE order_items (
				item_id VARCHAR(40) PRIMARY KEY,
				order_id VARCHAR(20) NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
				product_id VARCHAR(20) NOT NULL REFERENCES inventory(product_id),
				quantity INTEGER NOT NULL CHECK (quantity > 0),
				unit_price DECIMAL(10,2) NOT NULL CHECK (unit_price >= 0),
				total_price DECIMAL(10,2) CHECK (total_price >= 0)
			)`,
			"CREATE INDEX idx_order_items_order ON order_items(order_id)",
		},
		drop: []string{"DROP TABLE IF EXISTS order_items CASCADE"},
	},
	engine.Payments: {
		name:    engine.Payments,
		key:     "payment_id",
		columns: cols("order_id", "amount", "payment_method", "status", "transaction_ref", "created_at", "processed_at"),
		create: []string{
			"CREATE TYPE payment_method AS ENUM ('credit_card', 'debit_card', 'paypal', 'bank_transfer')",
			"CREATE TYPE payment_status AS ENUM ('pending', 'completed', 'failed', 'refunded')",
			`CREATE TABLE payments (
				payment_id VARCHAR(20) PRIMARY KEY CHECK (payment_id ~ '^PAY_[A-Za-z0-9]{2,12}$'),
				order_id VARCHAR(20) NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
				amount DECIMAL(10,2) NOT NULL CHECK (amount >= 0),
				payment_method payment_method NOT NULL,
				status payment_status NOT NULL DEFAULT 'pending',
				transaction_ref VARCHAR(100),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				processed_at TIMESTAMP
			)`,
			"CREATE INDEX idx_payments_order ON payments(order_id)",
		},
		drop: []string{
			"DROP TABLE IF EXISTS payments CASCADE",
			"DROP TYPE IF EXISTS payment_method CASCADE",
			"DROP TYPE IF EXISTS payment_status CASCADE",
		},
	},
	engine.UnconstrainedOrders: {
		name:    engine.UnconstrainedOrders,
		key:     "order_id",
		columns: cols("customer_id", "total_amount", "status", "created_at", "updated_at"),
		create: []string{
			`CREATE TABLE temp_no_constraints (
				order_id VARCHAR(50),
				customer_id VARCHAR(50),
				total_amount DECIMAL(10,2),
				status VARCHAR(20),
				created_at TIMESTAMP,
				updated_at TIMESTAMP
			)`,
		},
		drop: []string{"DROP TABLE IF EXISTS temp_no_constraints"},
	},
}

func lookupTable(schema string) (*table, error) {
	t, ok := tables[schema]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", schema)
	}
	return t, nil
}

// allRelations lists every table the harness creates, for size statistics.
func allRelations() []string {
	rels := []string{}
	for _, t := range tables {
		rels = append(rels, t.relations()...)
	}
	return rels
}
