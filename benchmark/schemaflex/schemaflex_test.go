package schemaflex

import (
	"context"
	"testing"
	"time"

	engine "dbeval/benchmark/engines/abstract"
	"dbeval/benchmark/engines/memory"
	"dbeval/generator"
	"dbeval/metrics"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newGenerator() *generator.Generator {
	return generator.New(11).WithClock(func() time.Time { return fixedNow })
}

func TestInsertions(t *testing.T) {
	db := memory.New()
	result := metrics.NewResult(db.Name(), db.Capabilities())
	require.NoError(t, New(newGenerator()).Run(context.Background(), db, result))

	assert.Equal(t, 50, result.BasicInsertion.Count)
	assert.GreaterOrEqual(t, result.BasicInsertion.Time, 0.0)
	assert.Empty(t, result.BasicInsertion.Error)
	assert.Equal(t, 50, result.SchemaEvolution.Count)
	assert.Equal(t, 20, result.ComplexNestedData.Count)

	require.NotNil(t, result.SchemaEvolution.MigrationRequired)
	assert.False(t, *result.SchemaEvolution.MigrationRequired)
	assert.Nil(t, result.BasicInsertion.MigrationRequired)
}

func TestQueryBattery(t *testing.T) {
	db := memory.New()
	result := metrics.NewResult(db.Name(), db.Capabilities())
	require.NoError(t, New(newGenerator()).Run(context.Background(), db, result))

	// regenerate the same records to compute the expected counts
	gen := newGenerator()
	data := map[string][]generator.Record{}
	for _, shape := range DefaultShapes {
		records, err := gen.Generate(shape.Count, shape.Prefix, shape.Kind)
		require.NoError(t, err)
		data[shape.Schema] = records
	}

	qf := result.QueryFlexibility
	require.Len(t, qf.Queries, len(queries))
	assert.Empty(t, qf.FailedQueries)
	for i, q := range queries {
		expected := 0
		for _, r := range data[q.schema] {
			if memory.Matches(r.Fields, q.filter) {
				expected++
			}
		}
		assert.Equal(t, q.name, qf.Queries[i].Name)
		assert.Equal(t, expected, qf.Queries[i].Count, q.name)
	}
	assert.GreaterOrEqual(t, qf.AvgQueryTime, 0.0)
}

func TestWithCounts(t *testing.T) {
	db := memory.New()
	result := metrics.NewResult(db.Name(), db.Capabilities())
	require.NoError(t, New(newGenerator()).WithCounts(5, 6, 7).Run(context.Background(), db, result))

	assert.Equal(t, 5, result.BasicInsertion.Count)
	assert.Equal(t, 6, result.SchemaEvolution.Count)
	assert.Equal(t, 7, result.ComplexNestedData.Count)
	assert.Equal(t, 50, DefaultShapes[0].Count)
}

func TestProvisionFailureIsHard(t *testing.T) {
	db := memory.New()
	db.FailProvision(engine.ProductsEnhanced, errors.New("permission denied"))
	result := metrics.NewResult(db.Name(), db.Capabilities())

	err := New(newGenerator()).Run(context.Background(), db, result)
	require.Error(t, err)
	assert.True(t, engine.IsProvisionError(err))
	assert.Nil(t, result.BasicInsertion)
	assert.Nil(t, result.QueryFlexibility)
}
