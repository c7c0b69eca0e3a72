package integrity

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/worker"
	"fmt"
)

const (
	// matches the customer_id pattern but has no customer record
	missingCustomer = "CUST_999997"
	cascadeCustomer = "CUST_999998"
	cascadeOrder    = "ORD_CASCADE"
	cascadePayment  = "PAY_CASCADE"
)

// payWithAmountCheck stores a payment only if its amount equals the total of
// the order it pays.
func payWithAmountCheck(ctx context.Context, db engine.Engine, payment generator.Record) engine.Outcome {
	return db.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		orderID := payment.String("order_id")
		order, found, err := tx.FindOne(ctx, engine.Orders, engine.Where(engine.Eq("order_id", orderID)))
		if err != nil {
			return err
		}
		if !found {
			return engine.Reject("order %s does not exist", orderID)
		}
		if amount, total := payment.Float("amount"), order.Float("total_amount"); amount != total {
			return engine.Reject("payment amount %.2f does not match order total %.2f", amount, total)
		}
		return tx.Insert(ctx, engine.Payments, payment)
	})
}

// referential attempts writes that would leave orphans, checks a business rule
// spanning two records, and deletes a customer to verify the cascade.
func (p *Phase) referential(ctx context.Context, db engine.Engine, w *worker.Worker) *metrics.Referential {
	caps := db.Capabilities()
	ref := &metrics.Referential{
		IntegrityViolations: []string{},
		References:          caps.References,
		CascadeDelete:       caps.CascadeDelete,
	}
	now := p.gen.Now()

	expectRejection := func(name string, orphan bool, write func() engine.Outcome) {
		o, _ := measure(w, "referential_probe", write)
		switch o.Status {
		case engine.StatusRejected:
			ref.ConstraintEnforcements++
			if orphan {
				ref.OrphanedRecordsPrevented++
			}
		case engine.StatusFatal:
			ref.IntegrityViolations = append(ref.IntegrityViolations, fmt.Sprintf("%s failed: %s", name, o.Reason))
		default:
			ref.IntegrityViolations = append(ref.IntegrityViolations, name+" accepted")
		}
	}

	expectRejection("order for a missing customer", true, func() engine.Outcome {
		return db.InsertOne(ctx, engine.Orders, generator.NewOrder("ORD_ORPHAN01", missingCustomer, 25.99, now))
	})
	expectRejection("order item for a missing product", true, func() engine.Outcome {
		return insertAll(ctx, db,
			write{engine.Orders, generator.NewOrder("ORD_BADPROD", probeCustomer, 25.99, now)},
			write{engine.OrderItems, generator.NewOrderItem("ORD_BADPROD", 1, "PROD_INVALID", 1, 25.99)})
	})
	expectRejection("payment for a missing order", true, func() engine.Outcome {
		return db.InsertOne(ctx, engine.Payments,
			generator.NewPayment("PAY_ORPHAN01", "ORD_NOEXIST", 100, "credit_card", "TXN_ORPHAN", now))
	})

	validOrder := insertAll(ctx, db,
		write{engine.Orders, generator.NewOrder("ORD_VALID001", probeCustomer, 100, now)},
		write{engine.OrderItems, generator.NewOrderItem("ORD_VALID001", 1, "PROD_000001", 2, 50)})
	if validOrder.Accepted() {
		expectRejection("payment amount differing from the order total", false, func() engine.Outcome {
			return payWithAmountCheck(ctx, db,
				generator.NewPayment("PAY_WRONG001", "ORD_VALID001", 150, "credit_card", "TXN_WRONG", now))
		})
	} else {
		ref.IntegrityViolations = append(ref.IntegrityViolations, "valid order ORD_VALID001 not stored: "+validOrder.String())
	}

	p.cascade(ctx, db, w, ref)

	w.Logger().Info().Int("constraint_enforcements", ref.ConstraintEnforcements).
		Int("orphans_prevented", ref.OrphanedRecordsPrevented).
		Int("cascade_deletes", ref.CascadeDeletesSuccessful).
		Str("references", string(ref.References)).Msg("referential probe completed")
	return ref
}

// cascade deletes a customer with an order, an item and a payment and
// verifies every dependent row is gone.
func (p *Phase) cascade(ctx context.Context, db engine.Engine, w *worker.Worker, ref *metrics.Referential) {
	now := p.gen.Now()
	setup := insertAll(ctx, db,
		write{engine.Customers, generator.NewCustomer(cascadeCustomer, "Cascade Customer", "cascade@test.com", "+1234567895", now)},
		write{engine.Orders, generator.NewOrder(cascadeOrder, cascadeCustomer, 25.99, now)},
		write{engine.OrderItems, generator.NewOrderItem(cascadeOrder, 1, "PROD_000001", 1, 25.99)},
		write{engine.Payments, generator.NewPayment(cascadePayment, cascadeOrder, 25.99, "credit_card", "TXN_CASCADE", now)})
	if !setup.Accepted() {
		ref.IntegrityViolations = append(ref.IntegrityViolations, "cascade setup not stored: "+setup.String())
		return
	}

	r := w.Measure("cascade_delete", func() (int, error) {
		n, err := db.Delete(ctx, engine.Customers, engine.Where(engine.Eq("customer_id", cascadeCustomer)))
		return int(n), err
	})
	if r.Failed() {
		ref.IntegrityViolations = append(ref.IntegrityViolations, "cascade delete failed: "+r.Error)
		return
	}

	left := []string{}
	for _, schema := range []string{engine.Orders, engine.OrderItems, engine.Payments} {
		n, err := db.Count(ctx, schema, engine.Where(engine.Eq("order_id", cascadeOrder)))
		if err != nil {
			left = append(left, fmt.Sprintf("%s lookup failed: %v", schema, err))
		} else if n > 0 {
			left = append(left, fmt.Sprintf("%d %s rows", n, schema))
		}
	}
	if len(left) > 0 {
		ref.IntegrityViolations = append(ref.IntegrityViolations, fmt.Sprintf("cascade left dependents: %v", left))
		return
	}
	ref.CascadeDeletesSuccessful++
}
