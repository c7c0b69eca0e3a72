package metrics

import (
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/util"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
)

const (
	Linear    = "linear"
	Degrading = "degrades with scale"
	// the smallest size's create rate must exceed this share of the largest's
	linearThreshold = 0.8
)

type TransactionTimes struct {
	Count   int     `json:"count" yaml:"count"`
	Average float64 `json:"average" yaml:"average"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Total   float64 `json:"total" yaml:"total"`
}

// Check is one capability verdict.
type Check struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

type BackendSummary struct {
	Backend               string           `json:"backend" yaml:"backend"`
	TotalRecords          int64            `json:"total_records" yaml:"total_records"`
	Transactions          TransactionTimes `json:"transactions" yaml:"transactions"`
	ConstraintOverhead    float64          `json:"constraint_overhead_percent" yaml:"constraint_overhead_percent"`
	AvgQueryTime          float64          `json:"avg_query_time" yaml:"avg_query_time"`
	BestInsertRate        float64          `json:"best_insert_rate" yaml:"best_insert_rate"`
	FastestUpdate         float64          `json:"fastest_update_time" yaml:"fastest_update_time"`
	AvgDeletionPercentage float64          `json:"avg_deletion_percentage" yaml:"avg_deletion_percentage"`
	Sizes                 []int            `json:"sizes" yaml:"sizes"`
	Scaling               string           `json:"scaling,omitempty" yaml:"scaling,omitempty"`
	StorageBytes          int64            `json:"storage_bytes" yaml:"storage_bytes"`
	Checks                []Check          `json:"checks" yaml:"checks"`
	Passed                int              `json:"passed" yaml:"passed"`
	Failed                int              `json:"failed" yaml:"failed"`
	Anomalies             []string         `json:"anomalies" yaml:"anomalies"`
	Failure               string           `json:"failure,omitempty" yaml:"failure,omitempty"`
}

type Summary struct {
	Backends []BackendSummary `json:"backends" yaml:"backends"`
}

// Aggregate derives the summary of every backend's result. It performs no I/O.
func Aggregate(results []*Result) Summary {
	s := Summary{Backends: []BackendSummary{}}
	for _, r := range results {
		if r != nil {
			s.Backends = append(s.Backends, summarize(r))
		}
	}
	return s
}

func summarize(r *Result) BackendSummary {
	b := BackendSummary{
		Backend:      r.Backend,
		StorageBytes: r.Storage.StorageBytes,
		Sizes:        []int{},
		Checks:       []Check{},
		Anomalies:    []string{},
		Failure:      r.Failure,
	}

	for _, ins := range []*Insertion{r.BasicInsertion, r.SchemaEvolution, r.ComplexNestedData} {
		if ins != nil {
			b.TotalRecords += int64(ins.Count)
			if ins.Error != "" {
				b.Anomalies = append(b.Anomalies, "bulk insert failed: "+ins.Error)
			}
		}
	}
	if r.QueryFlexibility != nil {
		b.AvgQueryTime = r.QueryFlexibility.AvgQueryTime
		b.Anomalies = append(b.Anomalies, prefixed("query failed: ", r.QueryFlexibility.FailedQueries)...)
	}

	summarizeCrud(r, &b)

	b.TotalRecords += int64(r.SampleRecords)
	if t := r.TransactionConsistency; t != nil {
		b.Transactions = transactionTimes(t.TransactionTimes)
	}
	if c := r.ConsistencyPerformance; c != nil {
		b.ConstraintOverhead = c.OverheadPercent
		b.TotalRecords += int64(c.UnconstrainedCount + c.ConstrainedSuccesses)
		b.Anomalies = append(b.Anomalies, prefixed("consistency probe: ", c.Errors)...)
	}

	b.Checks = checks(r)
	for _, c := range b.Checks {
		if c.Passed {
			b.Passed++
		} else {
			b.Failed++
		}
	}
	b.Anomalies = append(b.Anomalies, anomalies(r)...)
	return b
}

func summarizeCrud(r *Result, b *BackendSummary) {
	if len(r.CrudPerformance) == 0 {
		return
	}
	for size := range r.CrudPerformance {
		b.Sizes = append(b.Sizes, size)
	}
	sort.Ints(b.Sizes)

	rates, updates, deletions := []float64{}, []float64{}, []float64{}
	for _, size := range b.Sizes {
		cs := r.CrudPerformance[size]
		b.TotalRecords += int64(cs.CreateCount)
		rates = append(rates, cs.CreateRate)
		updates = append(updates, cs.SingleUpdateTime)
		deletions = append(deletions, cs.DeletionPercentage)
		b.Anomalies = append(b.Anomalies, prefixed(fmt.Sprintf("crud %d: ", size), cs.Errors)...)
	}

	b.BestInsertRate, _ = stats.Max(rates)
	b.FastestUpdate, _ = stats.Min(updates)
	if avg, err := stats.Mean(deletions); err == nil {
		b.AvgDeletionPercentage = util.Round(avg, 1)
	}
	b.Scaling = Scaling(rates)
}

// Scaling labels create rates ordered by ascending dataset size.
func Scaling(rates []float64) string {
	if len(rates) < 2 {
		return ""
	}
	if rates[0] > rates[len(rates)-1]*linearThreshold {
		return Linear
	}
	return Degrading
}

func transactionTimes(times []float64) TransactionTimes {
	t := TransactionTimes{Count: len(times)}
	if len(times) == 0 {
		return t
	}
	t.Average, _ = stats.Mean(times)
	t.Min, _ = stats.Min(times)
	t.Max, _ = stats.Max(times)
	t.Total, _ = stats.Sum(times)
	return t
}

// checks evaluates the capability categories whose probes ran.
func checks(r *Result) []Check {
	out := []Check{}
	if r.SchemaEvolution != nil && r.SchemaEvolution.MigrationRequired != nil {
		required := *r.SchemaEvolution.MigrationRequired
		detail := "new attributes stored without a schema change"
		if required {
			detail = "new attributes require a schema migration"
		}
		out = append(out, Check{Name: "schema evolution without migration", Passed: !required, Detail: detail})
	}
	if v := r.DataValidation; v != nil {
		out = append(out, Check{
			Name:   "validation enforced",
			Passed: v.InvalidInsertionsBlocked == v.InvalidProbes && len(v.ValidationErrors) == 0,
			Detail: fmt.Sprintf("%d/%d invalid records blocked, %d valid accepted (%s)",
				v.InvalidInsertionsBlocked, v.InvalidProbes, v.ValidInsertions, r.Capabilities.Validation),
		})
	}
	if t := r.TransactionConsistency; t != nil {
		out = append(out, Check{
			Name:   "transactions ACID",
			Passed: t.SuccessfulTransactions > 0 && t.RollbackTests > 0 && len(t.RollbackViolations) == 0,
			Detail: fmt.Sprintf("%d committed, %d rolled back, %d rollback violations (%s)",
				t.SuccessfulTransactions, t.RollbackTests, len(t.RollbackViolations), r.Capabilities.Transactions),
		})
	}
	if ref := r.ReferentialIntegrity; ref != nil {
		out = append(out, Check{
			Name:   "referential integrity",
			Passed: len(ref.IntegrityViolations) == 0 && ref.CascadeDeletesSuccessful > 0,
			Detail: fmt.Sprintf("%d orphans prevented, %d cascades (references %s, cascade %s)",
				ref.OrphanedRecordsPrevented, ref.CascadeDeletesSuccessful, ref.References, ref.CascadeDelete),
		})
	}
	return out
}

// anomalies collects the soft mismatches recorded by the integrity probes.
func anomalies(r *Result) []string {
	out := []string{}
	if v := r.DataValidation; v != nil {
		out = append(out, prefixed("validation: ", v.ValidationErrors)...)
	}
	if t := r.TransactionConsistency; t != nil {
		out = append(out, prefixed("rollback: ", t.RollbackViolations)...)
		out = append(out, prefixed("transaction: ", t.Errors)...)
	}
	if ref := r.ReferentialIntegrity; ref != nil {
		out = append(out, prefixed("referential: ", ref.IntegrityViolations)...)
	}
	return out
}

func prefixed(prefix string, items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, prefix+item)
	}
	return out
}

// Guarantees lists the capability guarantees of a result in a fixed order.
func Guarantees(c engine.Capabilities) [][2]string {
	return [][2]string{
		{"nested structures", string(c.NestedStructures)},
		{"validation", string(c.Validation)},
		{"references", string(c.References)},
		{"cascade delete", string(c.CascadeDelete)},
		{"transactions", string(c.Transactions)},
	}
}
