// Package integrity probes constraint enforcement, transaction atomicity,
// referential integrity and the cost of consistency on an e-commerce schema.
package integrity

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/worker"

	"github.com/cockroachdb/errors"
)

const Name = "data_integrity"

const (
	sampleCustomers = 50
	sampleProducts  = 100
	// the customer every probe order belongs to
	probeCustomer = "CUST_000001"
)

// Options sizes the cost-of-consistency probe.
type Options struct {
	SpeedOrders        int `yaml:"speedOrders"`
	PairedTransactions int `yaml:"pairedTransactions"`
}

var DefaultOptions = Options{SpeedOrders: 100, PairedTransactions: 10}

type Phase struct {
	gen  *generator.Generator
	opts Options
}

func New(gen *generator.Generator, opts Options) *Phase {
	if opts.SpeedOrders <= 0 {
		opts.SpeedOrders = DefaultOptions.SpeedOrders
	}
	if opts.PairedTransactions <= 0 {
		opts.PairedTransactions = DefaultOptions.PairedTransactions
	}
	return &Phase{gen: gen, opts: opts}
}

func (p *Phase) Name() string {
	return Name
}

// Run provisions the schema objects, inserts the sample data and runs the
// probes in order. Only provisioning and sample data failures are returned.
func (p *Phase) Run(ctx context.Context, db engine.Engine, result *metrics.Result) error {
	w := worker.NewWorker(db.Name(), Name)

	for _, schema := range []string{engine.Customers, engine.Inventory, engine.Orders, engine.OrderItems, engine.Payments} {
		if err := db.Provision(ctx, schema); err != nil {
			return err
		}
	}

	n, err := p.seed(ctx, db)
	if err != nil {
		return err
	}
	result.SampleRecords = n
	w.Logger().Info().Int("records", n).Msg("sample data inserted")

	result.DataValidation = p.validate(ctx, db, w)
	result.TransactionConsistency = p.transactions(ctx, db, w)
	result.ReferentialIntegrity = p.referential(ctx, db, w)

	consistency, err := p.consistency(ctx, db, w)
	if err != nil {
		return err
	}
	result.ConsistencyPerformance = consistency
	w.LogTotals()
	return nil
}

// seed inserts the reference customers and inventory the probes rely on.
func (p *Phase) seed(ctx context.Context, db engine.Engine) (int, error) {
	total := 0
	for _, s := range []struct {
		schema string
		prefix string
		kind   generator.Kind
		count  int
	}{
		{engine.Customers, "CUST", generator.Customer, sampleCustomers},
		{engine.Inventory, "PROD", generator.Inventory, sampleProducts},
	} {
		records, err := p.gen.Generate(s.count, s.prefix, s.kind)
		if err != nil {
			return total, errors.Wrapf(err, "generating %s", s.schema)
		}
		n, err := db.InsertMany(ctx, s.schema, records)
		if err != nil {
			return total, errors.Wrapf(err, "inserting sample %s", s.schema)
		}
		total += n
	}
	return total, nil
}

// outcomeError turns a non-accepted outcome into an error so the worker logs
// it as aborted.
func outcomeError(o engine.Outcome) error {
	if o.Accepted() {
		return nil
	}
	return errors.New(o.String())
}

// measure runs a write through the worker and returns its outcome.
func measure(w *worker.Worker, name string, write func() engine.Outcome) (engine.Outcome, worker.TimedResult) {
	var o engine.Outcome
	r := w.Measure(name, func() (int, error) {
		o = write()
		if err := outcomeError(o); err != nil {
			return 0, err
		}
		return 1, nil
	})
	// a panic inside the write leaves the outcome unset
	if o.Status == engine.StatusOK && r.Failed() {
		o = engine.Fatal(errors.New(r.Error))
	}
	return o, r
}

// insertAll inserts the records, in order, inside one transaction.
func insertAll(ctx context.Context, db engine.Engine, writes ...write) engine.Outcome {
	return db.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		for _, wr := range writes {
			if err := tx.Insert(ctx, wr.schema, wr.record); err != nil {
				return err
			}
		}
		return nil
	})
}

type write struct {
	schema string
	record generator.Record
}
