package metrics

import (
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/worker"
)

// Insertion is the measurement of one bulk insert.
type Insertion struct {
	Time              float64 `json:"time" yaml:"time"`
	Count             int     `json:"count" yaml:"count"`
	Rate              float64 `json:"rate" yaml:"rate"`
	MigrationRequired *bool   `json:"migration_required,omitempty" yaml:"migration_required,omitempty"`
	Error             string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func NewInsertion(r worker.TimedResult) *Insertion {
	return &Insertion{Time: r.Duration, Count: r.Count, Rate: r.Rate(), Error: r.Error}
}

// Query is the measurement of one read in a query battery.
type Query struct {
	Name     string  `json:"name" yaml:"name"`
	Count    int     `json:"count" yaml:"count"`
	Duration float64 `json:"duration" yaml:"duration"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func NewQuery(name string, r worker.TimedResult) Query {
	return Query{Name: name, Count: r.Count, Duration: r.Duration, Error: r.Error}
}

// AvgQueryTime averages the durations of the successful queries (0 if none).
func AvgQueryTime(queries []Query) float64 {
	total, n := 0.0, 0
	for _, q := range queries {
		if q.Error != "" {
			continue
		}
		total += q.Duration
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

type QueryFlexibility struct {
	Queries       []Query  `json:"queries" yaml:"queries"`
	AvgQueryTime  float64  `json:"avg_query_time" yaml:"avg_query_time"`
	FailedQueries []string `json:"failed_queries" yaml:"failed_queries"`
}

// CrudSize holds the CRUD measurements of one dataset size.
type CrudSize struct {
	CreateTime            float64  `json:"create_time" yaml:"create_time"`
	CreateCount           int      `json:"create_count" yaml:"create_count"`
	CreateRate            float64  `json:"create_rate" yaml:"create_rate"`
	AvgReadTime           float64  `json:"avg_read_time" yaml:"avg_read_time"`
	ReadQueries           []Query  `json:"read_queries" yaml:"read_queries"`
	SingleUpdateTime      float64  `json:"single_update_time" yaml:"single_update_time"`
	SingleUpdateCount     int64    `json:"single_update_count" yaml:"single_update_count"`
	BulkUpdateTime        float64  `json:"bulk_update_time" yaml:"bulk_update_time"`
	BulkUpdateCount       int64    `json:"bulk_update_count" yaml:"bulk_update_count"`
	DeleteTime            float64  `json:"delete_time" yaml:"delete_time"`
	DocumentsBeforeDelete int64    `json:"documents_before_delete" yaml:"documents_before_delete"`
	DocumentsAfterDelete  int64    `json:"documents_after_delete" yaml:"documents_after_delete"`
	DocumentsDeleted      int64    `json:"documents_deleted" yaml:"documents_deleted"`
	DeletionPercentage    float64  `json:"deletion_percentage" yaml:"deletion_percentage"`
	Errors                []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Probe is the outcome of one validation probe record.
type Probe struct {
	ID       string `json:"id" yaml:"id"`
	Rule     string `json:"rule" yaml:"rule"`
	Expected string `json:"expected" yaml:"expected"`
	Outcome  string `json:"outcome" yaml:"outcome"`
}

type Validation struct {
	ValidInsertions          int      `json:"valid_insertions" yaml:"valid_insertions"`
	InvalidInsertionsBlocked int      `json:"invalid_insertions_blocked" yaml:"invalid_insertions_blocked"`
	InvalidProbes            int      `json:"invalid_probes" yaml:"invalid_probes"`
	ValidationErrors         []string `json:"validation_errors" yaml:"validation_errors"`
	Probes                   []Probe  `json:"probes" yaml:"probes"`
}

type Transactions struct {
	SuccessfulTransactions int       `json:"successful_transactions" yaml:"successful_transactions"`
	FailedTransactions     int       `json:"failed_transactions" yaml:"failed_transactions"`
	RollbackTests          int       `json:"rollback_tests" yaml:"rollback_tests"`
	TransactionTimes       []float64 `json:"transaction_times" yaml:"transaction_times"`
	RollbackViolations     []string  `json:"rollback_violations" yaml:"rollback_violations"`
	Errors                 []string  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type Referential struct {
	ConstraintEnforcements   int              `json:"constraint_enforcements" yaml:"constraint_enforcements"`
	OrphanedRecordsPrevented int              `json:"orphaned_records_prevented" yaml:"orphaned_records_prevented"`
	CascadeDeletesSuccessful int              `json:"cascade_deletes_successful" yaml:"cascade_deletes_successful"`
	IntegrityViolations      []string         `json:"integrity_violations" yaml:"integrity_violations"`
	References               engine.Guarantee `json:"references" yaml:"references"`
	CascadeDelete            engine.Guarantee `json:"cascade_delete" yaml:"cascade_delete"`
}

type Consistency struct {
	UnconstrainedTime     float64  `json:"unconstrained_time" yaml:"unconstrained_time"`
	UnconstrainedCount    int      `json:"unconstrained_count" yaml:"unconstrained_count"`
	ConstrainedTime       float64  `json:"constrained_time" yaml:"constrained_time"`
	ConstrainedSuccesses  int      `json:"constrained_successes" yaml:"constrained_successes"`
	ConstrainedFailures   int      `json:"constrained_failures" yaml:"constrained_failures"`
	OverheadPercent       float64  `json:"overhead_percent" yaml:"overhead_percent"`
	TransactionTime       float64  `json:"transaction_time" yaml:"transaction_time"`
	TransactionsCommitted int      `json:"transactions_committed" yaml:"transactions_committed"`
	TransactionsFailed    int      `json:"transactions_failed" yaml:"transactions_failed"`
	Errors                []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Result is the metrics map of one backend. Sections of phases that did not
// run (or did not complete) are nil.
type Result struct {
	Backend      string              `json:"backend" yaml:"backend"`
	Capabilities engine.Capabilities `json:"capabilities" yaml:"capabilities"`

	BasicInsertion    *Insertion        `json:"basic_insertion,omitempty" yaml:"basic_insertion,omitempty"`
	SchemaEvolution   *Insertion        `json:"schema_evolution,omitempty" yaml:"schema_evolution,omitempty"`
	ComplexNestedData *Insertion        `json:"complex_nested_data,omitempty" yaml:"complex_nested_data,omitempty"`
	QueryFlexibility  *QueryFlexibility `json:"query_flexibility,omitempty" yaml:"query_flexibility,omitempty"`

	CrudPerformance map[int]*CrudSize `json:"crud_performance,omitempty" yaml:"crud_performance,omitempty"`

	SampleRecords          int           `json:"sample_records,omitempty" yaml:"sample_records,omitempty"`
	DataValidation         *Validation   `json:"data_validation,omitempty" yaml:"data_validation,omitempty"`
	TransactionConsistency *Transactions `json:"transaction_consistency,omitempty" yaml:"transaction_consistency,omitempty"`
	ReferentialIntegrity   *Referential  `json:"referential_integrity,omitempty" yaml:"referential_integrity,omitempty"`
	ConsistencyPerformance *Consistency  `json:"consistency_performance,omitempty" yaml:"consistency_performance,omitempty"`

	Storage engine.Stats `json:"storage" yaml:"storage"`
	// Phases that completed, in run order
	Completed []string `json:"completed_phases" yaml:"completed_phases"`
	// Cause of the hard failure that stopped the run, if any
	Failure string `json:"failure,omitempty" yaml:"failure,omitempty"`
}

func NewResult(backend string, caps engine.Capabilities) *Result {
	return &Result{Backend: backend, Capabilities: caps, Completed: []string{}}
}
