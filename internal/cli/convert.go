package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nmslite/drivetemp/internal/config"
	"github.com/nmslite/drivetemp/internal/metrics"
	"github.com/nmslite/drivetemp/internal/sink"
	"github.com/nmslite/drivetemp/internal/source"
)

// ErrRecordErrors is returned in strict mode when any matched element was
// skipped.
var ErrRecordErrors = errors.New("record errors in strict mode")

func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a health dump to CSV",
		Long: `Read a JSON health dump from a file, stdin or a remote appliance over SSH
and write one CSV line per drive temperature element.`,
		Example: `  drivetemp convert --filename health.json
  cat health.json | drivetemp convert --header
  drivetemp convert --config drivetemp.yaml --store --alerts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := a.applyConvertFlags(cmd, cfg); err != nil {
				return err
			}
			return a.runConvert(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("filename", "f", "", "health dump to read (- for stdin)")
	flags.StringP("output", "o", "", "write CSV to this file instead of stdout")
	flags.Bool("header", false, "write the CSV header line first")
	flags.Bool("debug", false, "mirror every CSV line to stderr")
	flags.Int("workers", 0, "number of parallel extraction workers")
	flags.String("mapping", "", "element mapping (flat or hri)")
	flags.Bool("store", false, "store records in PostgreSQL")
	flags.Bool("alerts", false, "send SNMP traps for abnormal drives")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file")
	flags.Bool("strict", false, "exit non-zero when any record is skipped")
	a.v.BindPFlags(flags)

	return cmd
}

// applyConvertFlags layers flags and their DRIVETEMP_* variables over the
// loaded configuration, then validates the result again.
func (a *app) applyConvertFlags(cmd *cobra.Command, cfg *config.Config) error {
	v := a.v
	if v.IsSet("filename") {
		path := v.GetString("filename")
		cfg.Source.Path = path
		if path == "" || path == "-" {
			cfg.Source.Kind = "stdin"
		} else {
			cfg.Source.Kind = "file"
		}
	}
	if v.IsSet("output") {
		cfg.Output.Path = v.GetString("output")
	}
	if v.IsSet("header") {
		cfg.Output.Header = v.GetBool("header")
	}
	if v.IsSet("debug") {
		cfg.Output.Debug = v.GetBool("debug")
	}
	if v.IsSet("workers") {
		cfg.Pipeline.Workers = v.GetInt("workers")
	}
	if v.IsSet("mapping") {
		cfg.Pipeline.Mapping = v.GetString("mapping")
	}
	if v.IsSet("store") {
		cfg.Database.Enabled = v.GetBool("store")
	}
	if v.IsSet("alerts") {
		cfg.Alerts.Enabled = v.GetBool("alerts")
	}
	if v.IsSet("metrics-textfile") {
		cfg.Metrics.TextfilePath = v.GetString("metrics-textfile")
	}
	if v.IsSet("strict") {
		cfg.Pipeline.Strict = v.GetBool("strict")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (a *app) runConvert(ctx context.Context, cfg *config.Config) error {
	logger, closeLog, err := a.logger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	src, err := source.FromConfig(cfg.Source, a.stdin)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg.Pipeline)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(cfg.Metrics.Namespace)
	runID := uuid.New()
	startedAt := time.Now()

	doc, err := src.Fetch(ctx)
	if err != nil {
		recorder.ObserveRun(nil, time.Since(startedAt), err)
		a.writeTextfile(cfg, recorder, logger)
		return err
	}

	res, err := p.Run(ctx, doc)
	recorder.ObserveRun(res, time.Since(startedAt), err)
	if err != nil {
		a.writeTextfile(cfg, recorder, logger)
		return err
	}

	out, closeOut, err := a.output(cfg.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	sinks := []sink.Sink{sink.NewCSVWriter(out, cfg.Output.Header)}
	if cfg.Output.Debug {
		sinks = append(sinks, sink.NewCSVWriter(a.stderr, false))
	}
	sinks = append(sinks, sink.NewDiagnostics(logger))

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()
	sinks = append(sinks, be.sinks...)

	batch := sink.Batch{
		RunID:     runID,
		Source:    src.Name(),
		StartedAt: startedAt,
		Result:    res,
	}
	sinkErr := sink.Fanout(ctx, batch, sinks...)

	a.writeTextfile(cfg, recorder, logger)

	if sinkErr != nil {
		return sinkErr
	}
	if cfg.Pipeline.Strict && len(res.Errors) > 0 {
		return fmt.Errorf("%w: %d of %d matched elements skipped", ErrRecordErrors, len(res.Errors), res.Matched)
	}
	return nil
}

// output opens the CSV destination.
func (a *app) output(cfg config.OutputConfig) (io.Writer, func() error, error) {
	if cfg.Path == "" || cfg.Path == "-" {
		return a.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

func (a *app) writeTextfile(cfg *config.Config, recorder *metrics.Recorder, logger *slog.Logger) {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := recorder.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		logger.Warn("Failed to write metrics textfile", "path", cfg.Metrics.TextfilePath, "error", err)
	}
}
