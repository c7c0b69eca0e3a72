package main

import (
	"bufio"
	"context"
	"dbeval/benchmark"
	"dbeval/benchmark/crud"
	engine "dbeval/benchmark/engines/abstract"
	"dbeval/benchmark/engines/memory"
	"dbeval/benchmark/engines/mongo"
	"dbeval/benchmark/engines/postgres"
	"dbeval/benchmark/integrity"
	"dbeval/benchmark/schemaflex"
	"dbeval/config"
	"dbeval/generator"
	"dbeval/metrics"
	"dbeval/report"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Prepare zerolog
func setupLogging(disableLog bool, level string) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zlevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	if disableLog {
		zlevel = zerolog.Disabled
	}
	zerolog.SetGlobalLevel(zlevel)

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{
			Out:        colorable.NewColorableStdout(),
			TimeFormat: time.RFC3339Nano,
		})
	} else {
		zlog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zlog.Error().Err(err).Msg("dbeval failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		disableLog bool
		level      string
	)

	root := &cobra.Command{
		Use:   "dbeval",
		Short: "Document store vs relational store comparison harness",
		Long: `dbeval runs the same schema flexibility, CRUD and data integrity
workloads against MongoDB and PostgreSQL and reports the measurements side
by side.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging(disableLog, level)
		},
	}
	flags := root.PersistentFlags()
	flags.BoolVar(&disableLog, "no-log", false, "Disables the log")
	flags.StringVar(&level, "level", "info", "Log level (debug|info|warn|error)")

	root.AddCommand(newRunCmd(), newReportCmd(), newGenerateCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configFile string
		seed       int64
		output     string
		details    bool
		backends   []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every phase against each configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backends") {
				cfg.Backends = backends
			}
			if seed != 0 {
				cfg.Seed = seed
			}
			if output != "" {
				cfg.ResultFile = output
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runHarness(ctx, cmd.OutOrStdout(), cfg, details)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (YAML)")
	flags.Int64Var(&seed, "seed", 0, "Random seed (0 = config value or random)")
	flags.StringVarP(&output, "output", "o", "", "Result file (.json, .yaml or .yml)")
	flags.BoolVar(&details, "details", false, "Print the per-size CRUD tables")
	flags.StringSliceVar(&backends, "backends", nil, "Backends to run (mongodb,postgresql,memory)")
	return cmd
}

func backendsOf(cfg *config.Config) []benchmark.Backend {
	out := []benchmark.Backend{}
	for _, name := range cfg.Backends {
		b := benchmark.Backend{Name: name}
		switch name {
		case config.MongoDB:
			b.Open = func(ctx context.Context) (engine.Engine, error) { return mongo.Open(ctx, cfg.Mongo) }
		case config.PostgreSQL:
			b.Open = func(ctx context.Context) (engine.Engine, error) { return postgres.Open(ctx, cfg.Postgres) }
		case config.Memory:
			b.Open = func(context.Context) (engine.Engine, error) { return memory.New(), nil }
		}
		out = append(out, b)
	}
	return out
}

func newGenerator(seed int64) *generator.Generator {
	if seed == 0 {
		return generator.NewRandom()
	}
	return generator.New(seed)
}

func runHarness(ctx context.Context, w io.Writer, cfg *config.Config, details bool) error {
	gen := newGenerator(cfg.Seed)
	phases := []benchmark.Phase{
		schemaflex.New(gen),
		crud.New(gen, cfg.Sizes),
		integrity.New(gen, cfg.Integrity),
	}

	zlog.Info().Strs("backends", cfg.Backends).Ints("sizes", cfg.Sizes).Msg("Run started")
	results, runErr := benchmark.Run(ctx, backendsOf(cfg), phases)

	summary := metrics.Aggregate(results)
	doc := report.NewDocument(results, summary, time.Now())
	if err := report.WriteFile(cfg.ResultFile, doc); err != nil {
		zlog.Error().Err(err).Msg("result file not written")
	} else {
		zlog.Info().Str("file", cfg.ResultFile).Msg("results written")
	}

	report.Generate(w, summary)
	if details {
		report.Details(w, results)
	}

	if runErr != nil {
		if benchmark.Hard(runErr) {
			return errors.Wrap(runErr, "run stopped")
		}
		return runErr
	}
	zlog.Info().Msg("Run ended")
	return nil
}

func newReportCmd() *cobra.Command {
	var details bool
	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Render the tables of a result file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := report.ReadFile(args[0])
			if err != nil {
				return err
			}
			report.Generate(cmd.OutOrStdout(), doc.Summary)
			if details {
				report.Details(cmd.OutOrStdout(), doc.Ordered())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "Print the per-size CRUD tables")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		kind   string
		count  int
		prefix string
		seed   int64
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic records as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := generator.ParseKind(kind)
			if err != nil {
				return err
			}
			records, err := newGenerator(seed).Generate(count, prefix, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "creating %s", output)
				}
				defer f.Close()
				out = f
			}
			return writeRecords(out, cmd.ErrOrStderr(), records)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&kind, "kind", string(generator.Basic), "Record kind")
	flags.IntVar(&count, "count", 100, "Number of records")
	flags.StringVar(&prefix, "prefix", "rec", "Identifier prefix")
	flags.Int64Var(&seed, "seed", 0, "Random seed (0 = random)")
	flags.StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

// writeRecords encodes one record per line, reporting progress on progress.
func writeRecords(out io.Writer, progress io.Writer, records []generator.Record) error {
	bar := pb.New(len(records)).SetWriter(progress).Start()
	defer bar.Finish()

	buf := bufio.NewWriter(out)
	enc := json.NewEncoder(buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return errors.Wrapf(err, "encoding %s", r.ID)
		}
		bar.Increment()
	}
	return errors.Wrap(buf.Flush(), "writing records")
}
