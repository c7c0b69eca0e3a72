package postgres

import (
	"errors"
	"testing"
	"time"

	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereSimple(t *testing.T) {
	tbl, err := lookupTable(engine.PerformanceTest)
	require.NoError(t, err)

	b := &builder{}
	where, err := tbl.where(b, engine.Where(engine.Eq("category", "electronics"), engine.Gte("rating", 4.0)))
	require.NoError(t, err)
	assert.Equal(t, " WHERE performance_test.category = $1 AND performance_test.rating >= $2", where)
	assert.Equal(t, []any{"electronics", 4.0}, b.args)

	b = &builder{}
	where, err = tbl.where(b, engine.All)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, b.args)
}

func TestWhereJSONAndText(t *testing.T) {
	tbl, _ := lookupTable(engine.PerformanceTest)

	b := &builder{}
	where, err := tbl.where(b, engine.Where(engine.AnyOf("tags", "featured", "popular")))
	require.NoError(t, err)
	assert.Equal(t, " WHERE performance_test.tags ?| $1", where)
	assert.Equal(t, pq.Array([]string{"featured", "popular"}), b.args[0])

	b = &builder{}
	where, err = tbl.where(b, engine.Where(engine.Contains("name", "Product 1")))
	require.NoError(t, err)
	assert.Equal(t, " WHERE performance_test.name ILIKE $1", where)
	assert.Equal(t, "%Product 1%", b.args[0])
}

func TestWhereNestedPaths(t *testing.T) {
	enhanced, _ := lookupTable(engine.ProductsEnhanced)
	b := &builder{}
	where, err := enhanced.where(b, engine.Where(engine.Eq("specifications.color", "Black"), engine.Exists("sizes")))
	require.NoError(t, err)
	assert.Equal(t, " WHERE products_enhanced.color = $1 AND products_enhanced.sizes IS NOT NULL", where)

	complexTbl, _ := lookupTable(engine.ProductsComplex)
	b = &builder{}
	where, err = complexTbl.where(b, engine.Where(engine.Gte("reviews.rating", 4)))
	require.NoError(t, err)
	assert.Equal(t, " WHERE EXISTS (SELECT 1 FROM product_reviews c WHERE c.product_id = products_complex.id AND c.rating >= $1)", where)

	_, err = complexTbl.where(b, engine.Where(engine.Eq("reviews.unknown", 1)))
	assert.Error(t, err)
}

func TestSetClause(t *testing.T) {
	tbl, _ := lookupTable(engine.PerformanceTest)
	now := time.Now()

	b := &builder{}
	set, err := tbl.set(b, engine.Mutation{
		Inc: map[string]any{"price": 10},
		Set: map[string]any{"status": "review_needed", "updated_at": now},
	})
	require.NoError(t, err)
	assert.Equal(t, "price = price + $1, status = $2, updated_at = $3", set)
	assert.Equal(t, []any{10, "review_needed", now}, b.args)

	_, err = tbl.set(&builder{}, engine.Mutation{})
	assert.Error(t, err)
}

func TestRowAndChildren(t *testing.T) {
	records, err := generator.New(4).Generate(2, "complex", generator.Complex)
	require.NoError(t, err)
	tbl, _ := lookupTable(engine.ProductsComplex)

	names, values := tbl.row(records[0], true)
	assert.Equal(t, []string{"id", "name", "price", "created_at"}, names)
	assert.Equal(t, "complex_000001", values[0])

	reviews := tbl.children[0].rows(records[0])
	assert.Len(t, reviews, len(records[0].Fields["reviews"].([]any)))
	assert.Equal(t, "complex_000001", reviews[0][0])

	analytics := tbl.children[2].rows(records[0])
	require.Len(t, analytics, 1)
	assert.Equal(t, []string{"product_id", "views", "purchases", "rating_average", "last_updated"}, tbl.children[2].columnNames())
}

func TestRowOmitsMissingColumns(t *testing.T) {
	tbl, _ := lookupTable(engine.Payments)
	p := generator.NewPayment("PAY_1", "ORD_1", 10, "paypal", "TXN_1", time.Now())
	names, _ := tbl.row(p, false)
	assert.NotContains(t, names, "processed_at")
	assert.Equal(t, "INSERT INTO payments (a, b) VALUES ($1, $2)", insertStatement("payments", []string{"a", "b"}))
}

func TestRecordFromRow(t *testing.T) {
	tbl, _ := lookupTable(engine.Customers)
	r := tbl.record([]string{"customer_id", "street", "name"}, []any{[]byte("CUST_000001"), []byte("1 Main Street"), "Ann"})
	assert.Equal(t, "CUST_000001", r.ID)
	street, ok := r.Get("address.street")
	require.True(t, ok)
	assert.Equal(t, "1 Main Street", street)
	assert.Equal(t, "Ann", r.String("name"))
}

func TestIsRejection(t *testing.T) {
	assert.True(t, isRejection(&pq.Error{Code: "23505"}))
	assert.True(t, isRejection(&pq.Error{Code: "23503"}))
	assert.True(t, isRejection(&pq.Error{Code: "23514"}))
	assert.True(t, isRejection(&pq.Error{Code: "22P02"}))
	assert.False(t, isRejection(&pq.Error{Code: "08006"}))
	assert.False(t, isRejection(errors.New("connection refused")))
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, Database: "comparison_test", User: "postgres", Password: "p w", SSLMode: "require"}
	assert.Equal(t, "host=localhost port=5432 dbname=comparison_test user=postgres sslmode=require password='p w'", cfg.DSN())
}
