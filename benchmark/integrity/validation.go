package integrity

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/worker"
	"fmt"
)

type probe struct {
	id    string
	rule  string
	valid bool
	// performs the write
	run func(ctx context.Context, db engine.Engine) engine.Outcome
}

func insertProbe(id, rule string, valid bool, schema string, record generator.Record) probe {
	return probe{id: id, rule: rule, valid: valid, run: func(ctx context.Context, db engine.Engine) engine.Outcome {
		return db.InsertOne(ctx, schema, record)
	}}
}

// orderProbe inserts an order and its items as one transaction so a
// rejected item leaves no order behind.
func orderProbe(id, rule string, valid bool, order generator.Record, items ...generator.Record) probe {
	writes := []write{{engine.Orders, order}}
	for _, item := range items {
		writes = append(writes, write{engine.OrderItems, item})
	}
	return probe{id: id, rule: rule, valid: valid, run: func(ctx context.Context, db engine.Engine) engine.Outcome {
		return insertAll(ctx, db, writes...)
	}}
}

func (p *Phase) validationProbes() []probe {
	now := p.gen.Now()
	missingEmail := generator.NewCustomer("CUST_888886", "Invalid Customer 1", "invalid1@test.com", "+1234567891", now)
	delete(missingEmail.Fields, "email")

	return []probe{
		insertProbe("CUST_999999", "valid customer", true, engine.Customers,
			generator.NewCustomer("CUST_999999", "Valid Customer", "valid.customer@test.com", "+1234567890", now)),
		insertProbe("CUST_888886", "required email", false, engine.Customers, missingEmail),
		insertProbe("CUST_888888", "email format", false, engine.Customers,
			generator.NewCustomer("CUST_888888", "Invalid Customer 2", "not-an-email", "+1234567892", now)),
		insertProbe("INVALID_ID", "customer_id pattern", false, engine.Customers,
			generator.NewCustomer("INVALID_ID", "Invalid Customer 3", "invalid3@test.com", "+1234567893", now)),
		insertProbe("CUST_888887", "name length", false, engine.Customers,
			generator.NewCustomer("CUST_888887", "X", "invalid4@test.com", "+1234567894", now)),
		orderProbe("ORD_12345678", "valid order", true,
			generator.NewOrder("ORD_12345678", probeCustomer, 67.48, now),
			generator.NewOrderItem("ORD_12345678", 1, "PROD_000001", 2, 25.99),
			generator.NewOrderItem("ORD_12345678", 2, "PROD_000002", 1, 15.50)),
		orderProbe("ORD_87654321", "item quantity minimum", false,
			generator.NewOrder("ORD_87654321", probeCustomer, 25.99, now),
			generator.NewOrderItem("ORD_87654321", 1, "PROD_000001", -1, 25.99)),
	}
}

// validate attempts one write per probe and tallies the outcomes. Unexpected
// outcomes are recorded, never raised.
func (p *Phase) validate(ctx context.Context, db engine.Engine, w *worker.Worker) *metrics.Validation {
	v := &metrics.Validation{ValidationErrors: []string{}, Probes: []metrics.Probe{}}

	for _, pr := range p.validationProbes() {
		o, _ := measure(w, "validation_probe", func() engine.Outcome { return pr.run(ctx, db) })

		expected := "reject"
		if pr.valid {
			expected = "accept"
		} else {
			v.InvalidProbes++
		}
		v.Probes = append(v.Probes, metrics.Probe{ID: pr.id, Rule: pr.rule, Expected: expected, Outcome: o.String()})

		switch {
		case pr.valid && o.Accepted():
			v.ValidInsertions++
		case pr.valid:
			v.ValidationErrors = append(v.ValidationErrors, fmt.Sprintf("valid record %s (%s) not stored: %s", pr.id, pr.rule, o))
		case o.Status == engine.StatusRejected:
			v.InvalidInsertionsBlocked++
		case o.Status == engine.StatusFatal:
			v.ValidationErrors = append(v.ValidationErrors, fmt.Sprintf("invalid record %s (%s) failed: %s", pr.id, pr.rule, o.Reason))
		default:
			v.ValidationErrors = append(v.ValidationErrors, fmt.Sprintf("invalid record %s (%s) accepted", pr.id, pr.rule))
		}
	}

	w.Logger().Info().Int("valid_insertions", v.ValidInsertions).
		Int("invalid_insertions_blocked", v.InvalidInsertionsBlocked).
		Int("validation_errors", len(v.ValidationErrors)).Msg("validation probe completed")
	return v
}
