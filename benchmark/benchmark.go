package benchmark

import (
	"context"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/metrics"
	"dbeval/util"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrConnection marks failures to reach a backend.
var ErrConnection = errors.New("backend unreachable")

type Phase interface {
	// Returns the phase name (e.g., "crud_performance")
	Name() string
	// Runs the phase against the backend, storing its metrics in result. A returned error is a
	// hard failure that stops the run; everything else is folded into the metrics
	Run(ctx context.Context, db engine.Engine, result *metrics.Result) error
}

// Backend opens the handle of one configured backend.
type Backend struct {
	Name string
	Open func(ctx context.Context) (engine.Engine, error)
}

// Run runs every phase, in order, against each backend in turn. On a hard
// failure the run stops and the results gathered so far are returned with
// the error.
func Run(ctx context.Context, backends []Backend, phases []Phase) ([]*metrics.Result, error) {
	results := []*metrics.Result{}
	for _, b := range backends {
		result, err := RunBackend(ctx, b, phases)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// RunBackend opens the backend and runs the phases against it. The returned
// result is never nil.
func RunBackend(ctx context.Context, b Backend, phases []Phase) (*metrics.Result, error) {
	db, err := b.Open(ctx)
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "opening %s", b.Name), ErrConnection)
		result := metrics.NewResult(b.Name, engine.Capabilities{})
		result.Failure = err.Error()
		zlog.Error().Err(err).Str("backend", b.Name).Msg("connection failed")
		return result, err
	}
	defer func() {
		if err := db.Close(ctx); err != nil {
			zlog.Warn().Err(err).Str("backend", b.Name).Msg("close failed")
		}
	}()

	result := metrics.NewResult(db.Name(), db.Capabilities())
	for _, phase := range phases {
		logger := zlog.With().Str("backend", db.Name()).Str("phase", phase.Name()).Logger()
		logger.Info().Msg("phase started")

		start := util.EpochSeconds()
		if err := phase.Run(ctx, db, result); err != nil {
			err = errors.Wrapf(err, "%s phase on %s", phase.Name(), db.Name())
			result.Failure = err.Error()
			logger.Error().Err(err).Msg("phase failed")
			return result, err
		}
		result.Completed = append(result.Completed, phase.Name())
		logger.Info().Float64("duration", util.EpochSeconds()-start).Msg("phase completed")
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		zlog.Warn().Err(err).Str("backend", db.Name()).Msg("storage statistics unavailable")
	}
	result.Storage = stats
	return result, nil
}

// Hard reports whether err must stop the run.
func Hard(err error) bool {
	return errors.Is(err, ErrConnection) || engine.IsProvisionError(err)
}
