// Package crud measures create, read, update and delete throughput over
// growing dataset sizes.
package crud

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/util"
	"dbeval/worker"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	Name      = "crud_performance"
	readLimit = 100
	// records created before now minus this age are deleted
	deleteAge = 300 * 24 * time.Hour
)

var DefaultSizes = []int{1000, 5000, 10000}

type read struct {
	name   string
	filter engine.Filter
}

var reads = []read{
	{"category", engine.Where(engine.Eq("category", "electronics"))},
	{"price_range", engine.Where(engine.Between("price", 100, 500))},
	{"name_contains", engine.Where(engine.Contains("name", "Product 1"))},
	{"category_rating", engine.Where(engine.Eq("category", "electronics"), engine.Gte("rating", 4.0))},
	{"tags", engine.Where(engine.AnyOf("tags", "featured", "popular"))},
}

type Phase struct {
	gen   *generator.Generator
	sizes []int
}

// New returns the phase over the given dataset sizes, run in ascending order.
func New(gen *generator.Generator, sizes []int) *Phase {
	sorted := append([]int{}, sizes...)
	sort.Ints(sorted)
	return &Phase{gen: gen, sizes: sorted}
}

func (p *Phase) Name() string {
	return Name
}

func (p *Phase) Run(ctx context.Context, db engine.Engine, result *metrics.Result) error {
	w := worker.NewWorker(db.Name(), Name)
	result.CrudPerformance = map[int]*metrics.CrudSize{}

	for _, size := range p.sizes {
		if err := db.Provision(ctx, engine.PerformanceTest); err != nil {
			return err
		}
		records, err := p.gen.Generate(size, fmt.Sprintf("perf_%d", size), generator.Performance)
		if err != nil {
			return errors.Wrapf(err, "generating %d records", size)
		}

		cs := p.runSize(ctx, db, w, records)
		result.CrudPerformance[size] = cs
		w.Logger().Info().Int("size", size).Float64("create_rate", cs.CreateRate).
			Float64("avg_read_time", cs.AvgReadTime).Int64("deleted", cs.DocumentsDeleted).Msg("size completed")
	}
	w.LogTotals()
	return nil
}

func (p *Phase) runSize(ctx context.Context, db engine.Engine, w *worker.Worker, records []generator.Record) *metrics.CrudSize {
	schema := engine.PerformanceTest
	cs := &metrics.CrudSize{ReadQueries: []metrics.Query{}}
	fail := func(step string, r worker.TimedResult) {
		if r.Failed() {
			cs.Errors = append(cs.Errors, step+": "+r.Error)
		}
	}

	create := w.Measure("create", func() (int, error) {
		return db.InsertMany(ctx, schema, records)
	})
	fail("create", create)
	cs.CreateTime, cs.CreateCount, cs.CreateRate = create.Duration, create.Count, create.Rate()

	for _, q := range reads {
		r := w.Measure("read_"+q.name, func() (int, error) {
			return db.Find(ctx, schema, q.filter, readLimit)
		})
		fail("read "+q.name, r)
		cs.ReadQueries = append(cs.ReadQueries, metrics.NewQuery(q.name, r))
	}
	cs.AvgReadTime = metrics.AvgQueryTime(cs.ReadQueries)

	single := w.Measure("single_update", func() (int, error) {
		n, err := db.Update(ctx, schema, engine.Where(engine.Eq("category", "electronics")),
			engine.Mutation{Inc: map[string]any{"price": 10}})
		return int(n), err
	})
	fail("single update", single)
	cs.SingleUpdateTime, cs.SingleUpdateCount = single.Duration, int64(single.Count)

	now := p.gen.Now().UTC().Truncate(time.Millisecond)
	bulk := w.Measure("bulk_update", func() (int, error) {
		n, err := db.Update(ctx, schema, engine.Where(engine.Lt("rating", 3.0)),
			engine.Mutation{Set: map[string]any{"status": "review_needed", "updated_at": now}})
		return int(n), err
	})
	fail("bulk update", bulk)
	cs.BulkUpdateTime, cs.BulkUpdateCount = bulk.Duration, int64(bulk.Count)

	before, err := db.Count(ctx, schema, engine.All)
	if err != nil {
		cs.Errors = append(cs.Errors, "count before delete: "+err.Error())
	}
	cutoff := now.Add(-deleteAge)
	del := w.Measure("delete", func() (int, error) {
		n, err := db.Delete(ctx, schema, engine.Where(engine.Lt("created_at", cutoff)))
		return int(n), err
	})
	fail("delete", del)
	after, err := db.Count(ctx, schema, engine.All)
	if err != nil {
		cs.Errors = append(cs.Errors, "count after delete: "+err.Error())
	}

	cs.DeleteTime = del.Duration
	cs.DocumentsBeforeDelete = before
	cs.DocumentsAfterDelete = after
	cs.DocumentsDeleted = int64(del.Count)
	cs.DeletionPercentage = util.Round(util.Percentage(cs.DocumentsDeleted, before), 2)
	return cs
}
