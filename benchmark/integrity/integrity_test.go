package integrity

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

func newPhase() *Phase {
	return New(generator.New(3).WithClock(func() time.Time { return fixedNow }), Options{})
}

func run(t *testing.T, db engine.Engine) *metrics.Result {
	result := metrics.NewResult(db.Name(), db.Capabilities())
	require.NoError(t, newPhase().Run(context.Background(), db, result))
	return result
}

func TestSampleData(t *testing.T) {
	db := memory.New()
	result := run(t, db)
	assert.Equal(t, sampleCustomers+sampleProducts, result.SampleRecords)
}

func TestValidationProbe(t *testing.T) {
	v := run(t, memory.New()).DataValidation
	require.NotNil(t, v)

	assert.Equal(t, 2, v.ValidInsertions)
	assert.Equal(t, 5, v.InvalidProbes)
	assert.Equal(t, 5, v.InvalidInsertionsBlocked)
	assert.Empty(t, v.ValidationErrors)
	require.Len(t, v.Probes, 7)
	assert.Equal(t, "CUST_999999", v.Probes[0].ID)
	assert.Equal(t, "accept", v.Probes[0].Expected)
	assert.Equal(t, "ok", v.Probes[0].Outcome)
}

func TestRejectedOrderLeavesNothing(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	run(t, db)

	n, err := db.Count(ctx, engine.Orders, engine.Where(engine.Eq("order_id", "ORD_87654321")))
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = db.Count(ctx, engine.OrderItems, engine.Where(engine.Eq("order_id", "ORD_12345678")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTransactionProbe(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	tr := run(t, db).TransactionConsistency
	require.NotNil(t, tr)

	assert.Equal(t, 3, tr.SuccessfulTransactions)
	assert.Equal(t, 1, tr.FailedTransactions)
	assert.Equal(t, 1, tr.RollbackTests)
	assert.Len(t, tr.TransactionTimes, 3)
	assert.Empty(t, tr.RollbackViolations)
	assert.Empty(t, tr.Errors)

	for i, id := range []string{"ORD_T0000001", "ORD_T0000002", "ORD_T0000003"} {
		n, err := db.Count(ctx, engine.Orders, engine.Where(engine.Eq("order_id", id), engine.Eq("status", "confirmed")))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, i)
	}
	n, err := db.Count(ctx, engine.Payments, engine.Where(engine.Eq("status", "completed")))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	reservedTotal := int64(0)
	for _, id := range []string{"PROD_000001", "PROD_000002", "PROD_000003"} {
		qty, err := reserved(ctx, db, id)
		require.NoError(t, err)
		reservedTotal += qty
	}
	assert.Greater(t, reservedTotal, int64(0))
}

func TestVerifyRollbackDetectsPartialRows(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	run(t, db)

	before, err := reserved(ctx, db, rollbackProduct)
	require.NoError(t, err)
	assert.Empty(t, verifyRollback(ctx, db, before))

	require.True(t, db.InsertOne(ctx, engine.Orders, generator.NewOrder(rollbackOrder, probeCustomer, 1, fixedNow)).Accepted())
	violations := verifyRollback(ctx, db, before+1)
	assert.Len(t, violations, 2)
}

func TestReferentialProbe(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	ref := run(t, db).ReferentialIntegrity
	require.NotNil(t, ref)

	assert.Equal(t, 4, ref.ConstraintEnforcements)
	assert.Equal(t, 3, ref.OrphanedRecordsPrevented)
	assert.Equal(t, 1, ref.CascadeDeletesSuccessful)
	assert.Empty(t, ref.IntegrityViolations)
	assert.Equal(t, engine.Emulated, ref.References)
	assert.Equal(t, engine.Emulated, ref.CascadeDelete)

	n, err := db.Count(ctx, engine.Payments, engine.Where(engine.Eq("payment_id", "PAY_WRONG001")))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsistencyProbe(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	c := run(t, db).ConsistencyPerformance
	require.NotNil(t, c)

	assert.Equal(t, 100, c.UnconstrainedCount)
	assert.Equal(t, 100, c.ConstrainedSuccesses)
	assert.Zero(t, c.ConstrainedFailures)
	assert.Equal(t, 10, c.TransactionsCommitted)
	assert.Zero(t, c.TransactionsFailed)
	assert.Empty(t, c.Errors)

	// the scratch object is dropped afterwards
	_, err := db.Count(ctx, engine.UnconstrainedOrders, engine.All)
	assert.Error(t, err)
}

func TestProvisionFailureIsHard(t *testing.T) {
	db := memory.New()
	db.FailProvision(engine.Payments, errors.New("syntax error"))
	result := metrics.NewResult(db.Name(), db.Capabilities())
	err := newPhase().Run(context.Background(), db, result)
	assert.True(t, engine.IsProvisionError(err))
	assert.Nil(t, result.DataValidation)

	db = memory.New()
	db.FailProvision(engine.UnconstrainedOrders, errors.New("disk full"))
	result = metrics.NewResult(db.Name(), db.Capabilities())
	err = newPhase().Run(context.Background(), db, result)
	assert.True(t, engine.IsProvisionError(err))
	assert.NotNil(t, result.ReferentialIntegrity)
	assert.Nil(t, result.ConsistencyPerformance)
}

// flaky fails every single-record insert as if the connection dropped.
type flaky struct {
	*memory.Memory
}

func (f flaky) InsertOne(context.Context, string, generator.Record) engine.Outcome {
	return engine.Fatal(errors.New("connection reset by peer"))
}

func TestFatalOutcomesAreNotBlocks(t *testing.T) {
	db := flaky{memory.New()}
	result := metrics.NewResult(db.Name(), db.Capabilities())
	require.NoError(t, newPhase().Run(context.Background(), db, result))

	v := result.DataValidation
	assert.Equal(t, 1, v.ValidInsertions)
	// only the rejected order counts as blocked
	assert.Equal(t, 1, v.InvalidInsertionsBlocked)
	assert.Len(t, v.ValidationErrors, 5)

	ref := result.ReferentialIntegrity
	assert.Equal(t, 1, ref.OrphanedRecordsPrevented)
	assert.Len(t, ref.IntegrityViolations, 2)

	c := result.ConsistencyPerformance
	assert.Equal(t, 100, c.ConstrainedFailures)
	assert.Len(t, c.Errors, 100)
}
