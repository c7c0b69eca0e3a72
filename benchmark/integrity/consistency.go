package integrity

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/util"
	"dbeval/worker"
	"fmt"

	"github.com/montanaflynn/stats"
)

// speedOrders returns the orders inserted with and without constraints.
func (p *Phase) speedOrders() []generator.Record {
	now := p.gen.Now()
	orders := make([]generator.Record, 0, p.opts.SpeedOrders)
	for i := 0; i < p.opts.SpeedOrders; i++ {
		customer := generator.FormatID("CUST", 1+p.gen.Rand().Intn(sampleCustomers), 6)
		total := util.Round(20+p.gen.Rand().Float64()*480, 2)
		orders = append(orders, generator.NewOrder(fmt.Sprintf("ORD_SPEED%03d", i), customer, total, now))
	}
	return orders
}

// consistency compares a bulk insert into the unconstrained scratch object
// with per-row inserts of the same orders into the constrained one, then
// times paired order and payment transactions.
func (p *Phase) consistency(ctx context.Context, db engine.Engine, w *worker.Worker) (*metrics.Consistency, error) {
	if err := db.Provision(ctx, engine.UnconstrainedOrders); err != nil {
		return nil, err
	}
	defer db.Drop(ctx, engine.UnconstrainedOrders)

	c := &metrics.Consistency{}
	orders := p.speedOrders()

	bulk := w.Measure("unconstrained_insert", func() (int, error) {
		return db.InsertMany(ctx, engine.UnconstrainedOrders, orders)
	})
	if bulk.Failed() {
		c.Errors = append(c.Errors, "unconstrained insert: "+bulk.Error)
	}
	c.UnconstrainedTime, c.UnconstrainedCount = bulk.Duration, bulk.Count

	constrained := w.Measure("constrained_inserts", func() (int, error) {
		for _, order := range orders {
			o := db.InsertOne(ctx, engine.Orders, order)
			switch o.Status {
			case engine.StatusOK:
				c.ConstrainedSuccesses++
			case engine.StatusFatal:
				c.ConstrainedFailures++
				c.Errors = append(c.Errors, order.ID+": "+o.Reason)
			default:
				c.ConstrainedFailures++
			}
		}
		return c.ConstrainedSuccesses, nil
	})
	c.ConstrainedTime = constrained.Duration
	c.OverheadPercent = util.Round(util.Overhead(c.ConstrainedTime, c.UnconstrainedTime), 2)

	times := []float64{}
	now := p.gen.Now()
	for i := 0; i < p.opts.PairedTransactions; i++ {
		orderID := fmt.Sprintf("ORD_PERF%03d", i)
		order := generator.NewOrder(orderID, probeCustomer, 25.99, now)
		payment := generator.NewPayment(fmt.Sprintf("PAY_PERF%03d", i), orderID, 25.99, "credit_card",
			fmt.Sprintf("TXN_PERF%03d", i), now)

		o, r := measure(w, "paired_transaction", func() engine.Outcome {
			return insertAll(ctx, db, write{engine.Orders, order}, write{engine.Payments, payment})
		})
		if o.Accepted() {
			c.TransactionsCommitted++
			times = append(times, r.Duration)
			continue
		}
		c.TransactionsFailed++
		if o.Status == engine.StatusFatal {
			c.Errors = append(c.Errors, orderID+": "+o.Reason)
		}
	}
	if mean, err := stats.Mean(times); err == nil {
		c.TransactionTime = mean
	}

	w.Logger().Info().Float64("overhead_percent", c.OverheadPercent).
		Int("constrained_failures", c.ConstrainedFailures).
		Int("transactions", c.TransactionsCommitted).Msg("consistency probe completed")
	return c, nil
}
