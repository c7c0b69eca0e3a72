// Package report renders the aggregated metrics as text tables and reads and
// writes the result-summary file.
package report

import (
	"dbeval/metrics"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func seconds(s float64) string {
	return fmt.Sprintf("%.4fs", s)
}

func rate(r float64) string {
	return humanize.Comma(int64(r)) + " rec/s"
}

func percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// Generate writes the comparison tables of the summary. It is presentation
// only.
func Generate(w io.Writer, summary metrics.Summary) {
	if len(summary.Backends) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}

	header := []string{"metric"}
	for _, b := range summary.Backends {
		header = append(header, b.Backend)
	}
	rows := []struct {
		name  string
		value func(b metrics.BackendSummary) string
	}{
		{"total records", func(b metrics.BackendSummary) string { return humanize.Comma(b.TotalRecords) }},
		{"best insert rate", func(b metrics.BackendSummary) string { return rate(b.BestInsertRate) }},
		{"avg query time", func(b metrics.BackendSummary) string { return seconds(b.AvgQueryTime) }},
		{"fastest update", func(b metrics.BackendSummary) string { return seconds(b.FastestUpdate) }},
		{"avg deletion", func(b metrics.BackendSummary) string { return percent(b.AvgDeletionPercentage) }},
		{"scaling", func(b metrics.BackendSummary) string { return orNA(b.Scaling) }},
		{"transactions", func(b metrics.BackendSummary) string { return fmt.Sprint(b.Transactions.Count) }},
		{"avg transaction", func(b metrics.BackendSummary) string { return seconds(b.Transactions.Average) }},
		{"min/max transaction", func(b metrics.BackendSummary) string {
			return seconds(b.Transactions.Min) + " / " + seconds(b.Transactions.Max)
		}},
		{"constraint overhead", func(b metrics.BackendSummary) string { return percent(b.ConstraintOverhead) }},
		{"storage", func(b metrics.BackendSummary) string { return humanize.IBytes(uint64(b.StorageBytes)) }},
		{"checks passed", func(b metrics.BackendSummary) string {
			return fmt.Sprintf("%d/%d", b.Passed, b.Passed+b.Failed)
		}},
	}

	fmt.Fprintln(w, "SUMMARY")
	table := newTable(w, header)
	for _, row := range rows {
		line := []string{row.name}
		for _, b := range summary.Backends {
			line = append(line, row.value(b))
		}
		table.Append(line)
	}
	table.Render()

	fmt.Fprintln(w, "\nCAPABILITY CHECKS")
	table = newTable(w, []string{"backend", "check", "result", "detail"})
	for _, b := range summary.Backends {
		for _, c := range b.Checks {
			result := "FAIL"
			if c.Passed {
				result = "PASS"
			}
			table.Append([]string{b.Backend, c.Name, result, c.Detail})
		}
	}
	table.Render()

	for _, b := range summary.Backends {
		if b.Failure != "" {
			fmt.Fprintf(w, "\n%s stopped: %s\n", b.Backend, b.Failure)
		}
		if len(b.Anomalies) > 0 {
			fmt.Fprintf(w, "\n%s anomalies (%d):\n", b.Backend, len(b.Anomalies))
			for _, a := range b.Anomalies {
				fmt.Fprintf(w, "  - %s\n", a)
			}
		}
	}
}

// Details writes the per-backend guarantees and the CRUD measurements of
// every dataset size.
func Details(w io.Writer, results []*metrics.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "\n%s\n", r.Backend)

		table := newTable(w, []string{"guarantee", "enforcement"})
		for _, g := range metrics.Guarantees(r.Capabilities) {
			table.Append([]string{g[0], orNA(g[1])})
		}
		table.Render()

		if len(r.CrudPerformance) == 0 {
			continue
		}
		sizes := []int{}
		for size := range r.CrudPerformance {
			sizes = append(sizes, size)
		}
		sort.Ints(sizes)

		table = newTable(w, []string{"size", "create rate", "avg read", "single update", "bulk update", "deleted"})
		for _, size := range sizes {
			cs := r.CrudPerformance[size]
			table.Append([]string{
				humanize.Comma(int64(size)),
				rate(cs.CreateRate),
				seconds(cs.AvgReadTime),
				fmt.Sprintf("%s (%d)", seconds(cs.SingleUpdateTime), cs.SingleUpdateCount),
				fmt.Sprintf("%s (%d)", seconds(cs.BulkUpdateTime), cs.BulkUpdateCount),
				fmt.Sprintf("%d (%s)", cs.DocumentsDeleted, percent(cs.DeletionPercentage)),
			})
		}
		table.Render()
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
