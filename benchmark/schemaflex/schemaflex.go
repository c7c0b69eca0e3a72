// Package schemaflex measures how each backend stores records of increasing
// structural complexity and how it queries nested and array attributes.
package schemaflex

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/worker"

	"github.com/cockroachdb/errors"
)

const Name = "schema_flexibility"

// Shape is one record structure inserted by the phase.
type Shape struct {
	Schema string
	Prefix string
	Kind   generator.Kind
	Count  int
}

var DefaultShapes = []Shape{
	{Schema: engine.Products, Prefix: "basic", Kind: generator.Basic, Count: 50},
	{Schema: engine.ProductsEnhanced, Prefix: "enhanced", Kind: generator.Enhanced, Count: 50},
	{Schema: engine.ProductsComplex, Prefix: "complex", Kind: generator.Complex, Count: 20},
}

type query struct {
	name   string
	schema string
	filter engine.Filter
}

var queries = []query{
	{"price_range", engine.Products, engine.Where(engine.Between("price", 100, 300))},
	{"category", engine.ProductsEnhanced, engine.Where(engine.Eq("category", "electronics"))},
	{"nested_attribute", engine.ProductsEnhanced, engine.Where(engine.Eq("specifications.color", "Black"))},
	{"array_exists", engine.ProductsEnhanced, engine.Where(engine.Exists("sizes"))},
	{"review_rating", engine.ProductsComplex, engine.Where(engine.Gte("reviews.rating", 4))},
	{"analytics_views", engine.ProductsComplex, engine.Where(engine.Gt("analytics.views", 1000))},
}

type Phase struct {
	gen    *generator.Generator
	shapes []Shape
}

func New(gen *generator.Generator) *Phase {
	return &Phase{gen: gen, shapes: DefaultShapes}
}

// WithCounts overrides the number of records inserted per shape, in
// basic, enhanced, complex order.
func (p *Phase) WithCounts(basic, enhanced, complex int) *Phase {
	shapes := make([]Shape, len(DefaultShapes))
	copy(shapes, DefaultShapes)
	shapes[0].Count, shapes[1].Count, shapes[2].Count = basic, enhanced, complex
	p.shapes = shapes
	return p
}

func (p *Phase) Name() string {
	return Name
}

func (p *Phase) Run(ctx context.Context, db engine.Engine, result *metrics.Result) error {
	w := worker.NewWorker(db.Name(), Name)

	insertions := make([]*metrics.Insertion, len(p.shapes))
	for i, shape := range p.shapes {
		if err := db.Provision(ctx, shape.Schema); err != nil {
			return err
		}
		records, err := p.gen.Generate(shape.Count, shape.Prefix, shape.Kind)
		if err != nil {
			return errors.Wrapf(err, "generating %s records", shape.Prefix)
		}

		r := w.Measure("insert_"+shape.Prefix, func() (int, error) {
			return db.InsertMany(ctx, shape.Schema, records)
		})
		insertions[i] = metrics.NewInsertion(r)
		w.Logger().Info().Str("shape", shape.Prefix).Int("count", r.Count).
			Float64("rate", r.Rate()).Msg("records inserted")
	}

	result.BasicInsertion = insertions[0]
	result.SchemaEvolution = insertions[1]
	result.ComplexNestedData = insertions[2]
	migration := db.Capabilities().SchemaMigrationRequired
	result.SchemaEvolution.MigrationRequired = &migration

	result.QueryFlexibility = runQueries(ctx, db, w)
	w.LogTotals()
	return nil
}

func runQueries(ctx context.Context, db engine.Engine, w *worker.Worker) *metrics.QueryFlexibility {
	qf := &metrics.QueryFlexibility{Queries: []metrics.Query{}, FailedQueries: []string{}}
	for _, q := range queries {
		r := w.Measure(q.name, func() (int, error) {
			return db.Find(ctx, q.schema, q.filter, 0)
		})
		qf.Queries = append(qf.Queries, metrics.NewQuery(q.name, r))
		if r.Failed() {
			qf.FailedQueries = append(qf.FailedQueries, q.name+": "+r.Error)
		}
	}
	qf.AvgQueryTime = metrics.AvgQueryTime(qf.Queries)
	return qf
}
