package integrity

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/worker"
	"fmt"
	"time"
)

const (
	validTransactions = 3
	rollbackOrder     = "ORD_ROLLBACK"
	rollbackPayment   = "PAY_ROLLBACK"
	rollbackProduct   = "PROD_000001"
	// more than any generated stock level
	rollbackQuantity = 99999
)

// orderRequest is the input of one order-processing transaction.
type orderRequest struct {
	order   generator.Record
	items   []generator.Record
	payment generator.Record
}

func (p *Phase) newOrderRequest(orderID, paymentID string) orderRequest {
	now := p.gen.Now()
	items, total := p.gen.OrderItems(orderID, 3)
	return orderRequest{
		order:   generator.NewOrder(orderID, probeCustomer, total, now),
		items:   items,
		payment: generator.NewPayment(paymentID, orderID, total, p.gen.PaymentMethod(), p.gen.TransactionRef(), now),
	}
}

func (p *Phase) rollbackRequest() orderRequest {
	now := p.gen.Now()
	item := generator.NewOrderItem(rollbackOrder, 1, rollbackProduct, rollbackQuantity, 25.99)
	total := item.Float("total_price")
	return orderRequest{
		order:   generator.NewOrder(rollbackOrder, probeCustomer, total, now),
		items:   []generator.Record{item},
		payment: generator.NewPayment(rollbackPayment, rollbackOrder, total, "credit_card", "TXN_ROLLBACK", now),
	}
}

// processOrder reserves the inventory of every item, stores the order, its
// items and its payment, then confirms the order and completes the payment.
// Insufficient stock aborts the whole unit with a rejection.
func processOrder(ctx context.Context, tx engine.Tx, req orderRequest, now time.Time) error {
	for _, item := range req.items {
		productID := item.String("product_id")
		quantity := item.Int("quantity")
		byProduct := engine.Where(engine.Eq("product_id", productID))

		stock, found, err := tx.FindOne(ctx, engine.Inventory, byProduct)
		if err != nil {
			return err
		}
		if !found {
			return engine.Reject("product %s not found in inventory", productID)
		}
		available := stock.Int("stock_quantity") - stock.Int("reserved_quantity")
		if available < quantity {
			return engine.Reject("insufficient stock for %s: %d available, %d requested", productID, available, quantity)
		}
		if _, err := tx.Update(ctx, engine.Inventory, byProduct, engine.Mutation{
			Inc: map[string]any{"reserved_quantity": int(quantity)},
			Set: map[string]any{"last_updated": now},
		}); err != nil {
			return err
		}
	}

	if err := tx.Insert(ctx, engine.Orders, req.order); err != nil {
		return err
	}
	for _, item := range req.items {
		if err := tx.Insert(ctx, engine.OrderItems, item); err != nil {
			return err
		}
	}
	if err := tx.Insert(ctx, engine.Payments, req.payment); err != nil {
		return err
	}

	if _, err := tx.Update(ctx, engine.Orders, engine.Where(engine.Eq("order_id", req.order.ID)),
		engine.Mutation{Set: map[string]any{"status": "confirmed", "updated_at": now}}); err != nil {
		return err
	}
	_, err := tx.Update(ctx, engine.Payments, engine.Where(engine.Eq("payment_id", req.payment.ID)),
		engine.Mutation{Set: map[string]any{"status": "completed", "processed_at": now}})
	return err
}

func (p *Phase) runOrder(ctx context.Context, db engine.Engine, w *worker.Worker, req orderRequest, t *metrics.Transactions) engine.Outcome {
	now := p.gen.Now().UTC().Truncate(time.Millisecond)
	o, r := measure(w, "order_transaction", func() engine.Outcome {
		return db.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
			return processOrder(ctx, tx, req, now)
		})
	})

	if o.Accepted() {
		t.SuccessfulTransactions++
		t.TransactionTimes = append(t.TransactionTimes, r.Duration)
		return o
	}
	t.FailedTransactions++
	t.RollbackTests++
	if o.Status == engine.StatusFatal {
		t.Errors = append(t.Errors, fmt.Sprintf("%s: %s", req.order.ID, o.Reason))
	}
	return o
}

// transactions runs the valid order transactions, then one that must roll
// back, and verifies nothing of the rolled back order is visible.
func (p *Phase) transactions(ctx context.Context, db engine.Engine, w *worker.Worker) *metrics.Transactions {
	t := &metrics.Transactions{TransactionTimes: []float64{}, RollbackViolations: []string{}}

	for i := 1; i <= validTransactions; i++ {
		req := p.newOrderRequest(fmt.Sprintf("ORD_T%07d", i), fmt.Sprintf("PAY_T%07d", i))
		if o := p.runOrder(ctx, db, w, req, t); !o.Accepted() {
			w.Logger().Warn().Str("order", req.order.ID).Str("outcome", o.String()).Msg("order transaction not committed")
		}
	}

	reservedBefore, err := reserved(ctx, db, rollbackProduct)
	if err != nil {
		t.Errors = append(t.Errors, "reading reserved quantity: "+err.Error())
	}
	o := p.runOrder(ctx, db, w, p.rollbackRequest(), t)
	if o.Accepted() {
		t.RollbackViolations = append(t.RollbackViolations, rollbackOrder+" committed despite insufficient stock")
	}
	t.RollbackViolations = append(t.RollbackViolations, verifyRollback(ctx, db, reservedBefore)...)

	w.Logger().Info().Int("successful", t.SuccessfulTransactions).Int("failed", t.FailedTransactions).
		Int("rollback_violations", len(t.RollbackViolations)).Msg("transaction probe completed")
	return t
}

// verifyRollback looks up the rollback probe's keys directly.
func verifyRollback(ctx context.Context, db engine.Engine, reservedBefore int64) []string {
	violations := []string{}
	for _, check := range []struct {
		schema string
		filter engine.Filter
	}{
		{engine.Orders, engine.Where(engine.Eq("order_id", rollbackOrder))},
		{engine.OrderItems, engine.Where(engine.Eq("order_id", rollbackOrder))},
		{engine.Payments, engine.Where(engine.Eq("payment_id", rollbackPayment))},
	} {
		n, err := db.Count(ctx, check.schema, check.filter)
		if err != nil {
			violations = append(violations, fmt.Sprintf("%s lookup failed: %v", check.schema, err))
			continue
		}
		if n != 0 {
			violations = append(violations, fmt.Sprintf("%d partial %s rows left after rollback", n, check.schema))
		}
	}

	after, err := reserved(ctx, db, rollbackProduct)
	if err != nil {
		violations = append(violations, "inventory lookup failed: "+err.Error())
	} else if after != reservedBefore {
		violations = append(violations, fmt.Sprintf("reserved quantity of %s changed from %d to %d",
			rollbackProduct, reservedBefore, after))
	}
	return violations
}

// reserved reads the reserved quantity of a product.
func reserved(ctx context.Context, db engine.Engine, productID string) (int64, error) {
	var qty int64
	o := db.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		stock, found, err := tx.FindOne(ctx, engine.Inventory, engine.Where(engine.Eq("product_id", productID)))
		if err != nil {
			return err
		}
		if !found {
			return engine.Reject("product %s not found in inventory", productID)
		}
		qty = stock.Int("reserved_quantity")
		return nil
	})
	if !o.Accepted() {
		return 0, outcomeError(o)
	}
	return qty, nil
}
