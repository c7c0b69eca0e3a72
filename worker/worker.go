package worker

import (
	"dbeval/util"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// TimedResult is a single measurement of one operation.
type TimedResult struct {
	Duration float64 `json:"duration" yaml:"duration"` // seconds
	Count    int     `json:"count" yaml:"count"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r TimedResult) Failed() bool {
	return r.Error != ""
}

// Rate returns count/duration, or 0 if the duration is 0.
func (r TimedResult) Rate() float64 {
	return util.Rate(r.Count, r.Duration)
}

// An operation returns the number of records it produced or touched.
type Operation func() (int, error)

// Measure times a single call of op. Errors and panics are captured in the result.
func Measure(op Operation) (result TimedResult) {
	start := util.EpochSeconds()
	defer func() {
		if p := recover(); p != nil {
			result = TimedResult{Duration: elapsed(start), Error: fmt.Sprint(p)}
		}
	}()

	count, err := op()
	rt := elapsed(start)
	if err != nil {
		return TimedResult{Duration: rt, Error: err.Error()}
	}
	return TimedResult{Duration: rt, Count: count}
}

func elapsed(start float64) float64 {
	rt := util.EpochSeconds() - start
	if rt < 0 {
		return 0
	}
	return rt
}

type Metric struct {
	Rts           []float64 // list of the response times (seconds) of completed operations
	TotalRt       float64   // sum of the response time of all completed operations
	CompleteCount int       // number of completed operations
	AbortCount    int       // number of failed operations
}

// Worker measures the operations of one phase against one backend and keeps
// per-operation metrics.
type Worker struct {
	backend    string
	phase      string
	logger     zerolog.Logger
	Operations map[string]*Metric // operation name -> Metric
	order      []string
}

func NewWorker(backend string, phase string) *Worker {
	return &Worker{
		backend:    backend,
		phase:      phase,
		logger:     zlog.With().Str("backend", backend).Str("phase", phase).Logger(),
		Operations: map[string]*Metric{},
	}
}

func (w *Worker) Logger() *zerolog.Logger {
	return &w.logger
}

// Measure runs op once under the given name, logs it and records its metric.
func (w *Worker) Measure(name string, op Operation) TimedResult {
	result := Measure(op)

	metric, ok := w.Operations[name]
	if !ok {
		metric = &Metric{}
		w.Operations[name] = metric
		w.order = append(w.order, name)
	}

	if result.Failed() {
		metric.AbortCount++
		w.logger.Debug().Str("operation", name).Float64("rt", result.Duration).
			Str("error", result.Error).Time("real_time", time.Now()).Msg("aborted")
	} else {
		metric.CompleteCount++
		metric.Rts = append(metric.Rts, result.Duration)
		metric.TotalRt += result.Duration
		w.logger.Debug().Str("operation", name).Float64("rt", result.Duration).
			Int("count", result.Count).Time("real_time", time.Now()).Msg("completed")
	}

	return result
}

// Names returns the measured operation names in first-seen order.
func (w *Worker) Names() []string {
	return w.order
}

// Totals returns the number of completed and failed operations.
func (w *Worker) Totals() (completed int, aborted int) {
	for _, m := range w.Operations {
		completed += m.CompleteCount
		aborted += m.AbortCount
	}
	return completed, aborted
}

func (w *Worker) LogTotals() {
	completed, aborted := w.Totals()
	w.logger.Info().Strs("operations", w.Names()).Int("completed", completed).
		Int("aborted", aborted).Msg("operations measured")
}
