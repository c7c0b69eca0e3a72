package memory

import (
	"context"
	"testing"
	"time"

	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provision(t *testing.T, m *Memory, schemas ...string) {
	for _, s := range schemas {
		require.NoError(t, m.Provision(context.Background(), s))
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := New()
	provision(t, m, engine.Products)

	records, err := generator.New(1).Generate(5, "basic", generator.Basic)
	require.NoError(t, err)
	_, err = m.InsertMany(ctx, engine.Products, records)
	require.NoError(t, err)

	provision(t, m, engine.Products, engine.Products)
	n, err := m.Count(ctx, engine.Products, engine.All)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestProvisionFailure(t *testing.T) {
	m := New()
	m.FailProvision(engine.Orders, errors.New("malformed constraint"))
	err := m.Provision(context.Background(), engine.Orders)
	assert.True(t, engine.IsProvisionError(err))

	assert.True(t, engine.IsProvisionError(m.Provision(context.Background(), "widgets")))
}

func TestMatchesNestedAndArrays(t *testing.T) {
	fields := map[string]any{
		"price": 150.0,
		"tags":  []string{"sale", "featured"},
		"specifications": map[string]any{
			"color": "Black",
		},
		"reviews": []any{
			map[string]any{"rating": 2},
			map[string]any{"rating": 5},
		},
		"name": "Performance Test Product 12",
	}

	assert.True(t, Matches(fields, engine.Where(engine.Between("price", 100, 300))))
	assert.False(t, Matches(fields, engine.Where(engine.Gt("price", 300))))
	assert.True(t, Matches(fields, engine.Where(engine.Eq("specifications.color", "Black"))))
	assert.True(t, Matches(fields, engine.Where(engine.Gte("reviews.rating", 4))))
	assert.False(t, Matches(fields, engine.Where(engine.Gte("reviews.rating", 6))))
	assert.True(t, Matches(fields, engine.Where(engine.AnyOf("tags", "featured", "popular"))))
	assert.False(t, Matches(fields, engine.Where(engine.AnyOf("tags", "new"))))
	assert.True(t, Matches(fields, engine.Where(engine.Exists("tags"))))
	assert.False(t, Matches(fields, engine.Where(engine.Exists("sizes"))))
	assert.True(t, Matches(fields, engine.Where(engine.Contains("name", "product 1"))))
	assert.False(t, Matches(fields, engine.Where(engine.Eq("specifications", "Black"))))
	assert.True(t, Matches(fields, engine.All))
}

func TestReferencesAndCascade(t *testing.T) {
	ctx := context.Background()
	m := New()
	provision(t, m, engine.Customers, engine.Inventory, engine.Orders, engine.OrderItems, engine.Payments)
	now := time.Now()

	stock, err := generator.New(3).Generate(1, "PROD", generator.Inventory)
	require.NoError(t, err)
	_, err = m.InsertMany(ctx, engine.Inventory, stock)
	require.NoError(t, err)
	badItem := generator.NewOrderItem("ORD_CASCADE", 9, "PROD_INVALID", 1, 10)

	customer := generator.NewCustomer("CUST_999998", "Cascade Customer", "cascade@email.com", "+12345678905", now)
	require.True(t, m.InsertOne(ctx, engine.Customers, customer).Accepted())

	orphan := generator.NewOrder("ORD_ORPHAN01", "CUST_999997", 10, now)
	o := m.InsertOne(ctx, engine.Orders, orphan)
	assert.Equal(t, engine.StatusRejected, o.Status)

	order := generator.NewOrder("ORD_CASCADE", "CUST_999998", 10, now)
	require.True(t, m.InsertOne(ctx, engine.Orders, order).Accepted())
	require.True(t, m.InsertOne(ctx, engine.OrderItems, generator.NewOrderItem("ORD_CASCADE", 1, "PROD_000001", 1, 10)).Accepted())
	assert.Equal(t, engine.StatusRejected, m.InsertOne(ctx, engine.OrderItems, badItem).Status)
	_, err = m.Delete(ctx, engine.Inventory, engine.Where(engine.Eq("product_id", "PROD_000001")))
	assert.True(t, errors.Is(err, engine.ErrRejected))
	require.True(t, m.InsertOne(ctx, engine.Payments, generator.NewPayment("PAY_CASCADE", "ORD_CASCADE", 10, "paypal", "TXN_1", now)).Accepted())

	deleted, err := m.Delete(ctx, engine.Customers, engine.Where(engine.Eq("customer_id", "CUST_999998")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	for _, s := range []string{engine.Orders, engine.OrderItems, engine.Payments} {
		n, err := m.Count(ctx, s, engine.Where(engine.Eq("order_id", "ORD_CASCADE")))
		require.NoError(t, err)
		assert.Zero(t, n, s)
	}
}

func TestUniqueAndDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	m := New()
	provision(t, m, engine.Customers)
	now := time.Now()

	require.True(t, m.InsertOne(ctx, engine.Customers, generator.NewCustomer("CUST_000001", "First", "a@email.com", "+12345678901", now)).Accepted())
	assert.False(t, m.InsertOne(ctx, engine.Customers, generator.NewCustomer("CUST_000001", "Again", "b@email.com", "+12345678901", now)).Accepted())
	assert.False(t, m.InsertOne(ctx, engine.Customers, generator.NewCustomer("CUST_000002", "Other", "a@email.com", "+12345678901", now)).Accepted())
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	m := New()
	provision(t, m, engine.Customers, engine.Orders)
	now := time.Now()
	require.True(t, m.InsertOne(ctx, engine.Customers, generator.NewCustomer("CUST_000001", "First", "a@email.com", "+12345678901", now)).Accepted())

	o := m.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		if err := tx.Insert(ctx, engine.Orders, generator.NewOrder("ORD_ROLLBACK", "CUST_000001", 10, now)); err != nil {
			return err
		}
		return engine.Reject("insufficient stock")
	})
	assert.Equal(t, engine.StatusRejected, o.Status)

	n, err := m.Count(ctx, engine.Orders, engine.All)
	require.NoError(t, err)
	assert.Zero(t, n)

	o = m.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		if err := tx.Insert(ctx, engine.Orders, generator.NewOrder("ORD_COMMIT", "CUST_000001", 10, now)); err != nil {
			return err
		}
		_, err := tx.Update(ctx, engine.Orders, engine.Where(engine.Eq("order_id", "ORD_COMMIT")),
			engine.Mutation{Set: map[string]any{"status": "confirmed"}})
		return err
	})
	require.True(t, o.Accepted())

	rec, found, err := (&tx{m: m}).FindOne(ctx, engine.Orders, engine.Where(engine.Eq("order_id", "ORD_COMMIT")))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "confirmed", rec.String("status"))
}

func TestUpdateKeepsIntegers(t *testing.T) {
	ctx := context.Background()
	m := New()
	provision(t, m, engine.Inventory)
	records, err := generator.New(2).Generate(3, "PROD", generator.Inventory)
	require.NoError(t, err)
	_, err = m.InsertMany(ctx, engine.Inventory, records)
	require.NoError(t, err)

	n, err := m.Update(ctx, engine.Inventory, engine.Where(engine.Eq("product_id", "PROD_000001")),
		engine.Mutation{Inc: map[string]any{"reserved_quantity": 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, _, _ := (&tx{m: m}).FindOne(ctx, engine.Inventory, engine.Where(engine.Eq("product_id", "PROD_000001")))
	assert.Equal(t, 2, rec.Fields["reserved_quantity"])

	_, err = m.Update(ctx, engine.Inventory, engine.All, engine.Mutation{Inc: map[string]any{"reserved_quantity": -10}})
	assert.True(t, errors.Is(err, engine.ErrRejected))
}
