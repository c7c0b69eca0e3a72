package crud

import (
	"context"
	"fmt"
	"testing"
	"time"

	engine "dbeval/benchmark/engines/abstract"
	"dbeval/benchmark/engines/memory"
	"dbeval/generator"
	"dbeval/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newGenerator() *generator.Generator {
	return generator.New(5).WithClock(func() time.Time { return fixedNow })
}

func count(records []generator.Record, filter engine.Filter) int {
	n := 0
	for _, r := range records {
		if memory.Matches(r.Fields, filter) {
			n++
		}
	}
	return n
}

func TestSizesRunAscending(t *testing.T) {
	p := New(newGenerator(), []int{300, 100, 200})
	assert.Equal(t, []int{100, 200, 300}, p.sizes)
}

func TestCrudPhase(t *testing.T) {
	db := memory.New()
	result := metrics.NewResult(db.Name(), db.Capabilities())
	sizes := []int{200, 100}
	require.NoError(t, New(newGenerator(), sizes).Run(context.Background(), db, result))
	require.Len(t, result.CrudPerformance, 2)

	gen := newGenerator()
	for _, size := range []int{100, 200} {
		records, err := gen.Generate(size, fmt.Sprintf("perf_%d", size), generator.Performance)
		require.NoError(t, err)
		cs := result.CrudPerformance[size]
		require.NotNil(t, cs)
		assert.Empty(t, cs.Errors)

		assert.Equal(t, size, cs.CreateCount)
		assert.GreaterOrEqual(t, cs.CreateRate, 0.0)

		require.Len(t, cs.ReadQueries, len(reads))
		for i, q := range reads {
			expected := count(records, q.filter)
			if expected > readLimit {
				expected = readLimit
			}
			assert.Equal(t, expected, cs.ReadQueries[i].Count, q.name)
		}

		assert.Equal(t, int64(count(records, engine.Where(engine.Eq("category", "electronics")))), cs.SingleUpdateCount)
		assert.Equal(t, int64(count(records, engine.Where(engine.Lt("rating", 3.0)))), cs.BulkUpdateCount)

		old := count(records, engine.Where(engine.Lt("created_at", fixedNow.Add(-deleteAge))))
		assert.Equal(t, int64(size), cs.DocumentsBeforeDelete)
		assert.Equal(t, int64(old), cs.DocumentsDeleted)
		assert.Equal(t, cs.DocumentsBeforeDelete-cs.DocumentsDeleted, cs.DocumentsAfterDelete)
		assert.InDelta(t, float64(old)/float64(size)*100, cs.DeletionPercentage, 0.01)
	}
}

func TestUpdatesApplied(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	result := metrics.NewResult(db.Name(), db.Capabilities())
	require.NoError(t, New(newGenerator(), []int{50}).Run(ctx, db, result))

	flagged, err := db.Count(ctx, engine.PerformanceTest, engine.Where(engine.Eq("status", "review_needed")))
	require.NoError(t, err)
	stillLow, err := db.Count(ctx, engine.PerformanceTest, engine.Where(engine.Lt("rating", 3.0)))
	require.NoError(t, err)
	assert.Equal(t, stillLow, flagged)
}
