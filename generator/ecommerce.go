package generator

import (
	"dbeval/util"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func (g *Generator) customer(i int, id string) map[string]any {
	return NewCustomer(id, fmt.Sprintf("Customer %d", i), fmt.Sprintf("customer%d@email.com", i),
		fmt.Sprintf("+1234567%04d", i%10000), g.now()).Fields
}

func (g *Generator) inventory(i int, id string) map[string]any {
	return map[string]any{
		"product_id":        id,
		"product_name":      fmt.Sprintf("Product %d", i),
		"stock_quantity":    g.intn(10, 1000),
		"reserved_quantity": 0,
		"reorder_level":     10,
		"max_stock":         2000,
		"last_updated":      g.now().UTC().Truncate(time.Millisecond),
	}
}

func (g *Generator) order(_ int, id string) map[string]any {
	customerID := FormatID("CUST", g.intn(1, 50), idWidth)
	return NewOrder(id, customerID, util.Round(g.uniform(10, 500), 2), g.now()).Fields
}

func (g *Generator) payment(i int, id string) map[string]any {
	orderID := FormatID("ORD", i, idWidth)
	return NewPayment(id, orderID, util.Round(g.uniform(10, 500), 2), g.choice(PaymentMethods),
		g.TransactionRef(), g.now()).Fields
}

// TransactionRef returns TXN_ followed by 8 uppercase hex digits.
func (g *Generator) TransactionRef() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		id = uuid.New()
	}
	return "TXN_" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// PaymentMethod returns a random payment method.
func (g *Generator) PaymentMethod() string {
	return g.choice(PaymentMethods)
}

// OrderItems returns 1 to 3 items over the products PROD_000001..PROD_products
// and their total value.
func (g *Generator) OrderItems(orderID string, products int) ([]Record, float64) {
	items := []Record{}
	total := 0.
	nItems := g.intn(1, 3)
	for n := 1; n <= nItems; n++ {
		qty := g.intn(1, 3)
		price := util.Round(g.uniform(10, 100), 2)
		items = append(items, NewOrderItem(orderID, n, FormatID("PROD", g.intn(1, products), idWidth), qty, price))
		total += float64(qty) * price
	}
	return items, util.Round(total, 2)
}

func NewCustomer(id string, name string, email string, phone string, now time.Time) Record {
	n := strings.TrimPrefix(id, "CUST_")
	return Record{ID: id, Kind: Customer, Fields: map[string]any{
		"customer_id": id,
		"email":       email,
		"name":        name,
		"phone":       phone,
		"address": map[string]any{
			"street":      fmt.Sprintf("%s Main Street", n),
			"city":        "Springfield",
			"postal_code": "12345",
			"country":     "USA",
		},
		"status":     "active",
		"created_at": now.UTC().Truncate(time.Millisecond),
	}}
}

func NewOrder(id string, customerID string, total float64, now time.Time) Record {
	return Record{ID: id, Kind: Order, Fields: map[string]any{
		"order_id":     id,
		"customer_id":  customerID,
		"total_amount": total,
		"status":       "pending",
		"created_at":   now.UTC().Truncate(time.Millisecond),
		"updated_at":   now.UTC().Truncate(time.Millisecond),
	}}
}

func NewOrderItem(orderID string, n int, productID string, quantity int, unitPrice float64) Record {
	id := fmt.Sprintf("%s_%d", orderID, n)
	return Record{ID: id, Kind: OrderItem, Fields: map[string]any{
		"item_id":     id,
		"order_id":    orderID,
		"product_id":  productID,
		"quantity":    quantity,
		"unit_price":  unitPrice,
		"total_price": util.Round(float64(quantity)*unitPrice, 2),
	}}
}

func NewPayment(id string, orderID string, amount float64, method string, ref string, now time.Time) Record {
	return Record{ID: id, Kind: Payment, Fields: map[string]any{
		"payment_id":      id,
		"order_id":        orderID,
		"amount":          amount,
		"payment_method":  method,
		"status":          "pending",
		"transaction_ref": ref,
		"created_at":      now.UTC().Truncate(time.Millisecond),
	}}
}
