package sink

import (
	"context"
	"log/slog"
)

// Diagnostics logs every per-record error at warn level and a run summary
// at info level.
type Diagnostics struct {
	logger *slog.Logger
}

func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	return &Diagnostics{logger: logger}
}

func (d *Diagnostics) Name() string { return "diagnostics" }

func (d *Diagnostics) Write(ctx context.Context, b Batch) error {
	if b.Result == nil {
		return nil
	}
	res := b.Result

	for _, re := range res.Errors {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "record skipped",
			slog.String("run_id", b.RunID.String()),
			slog.Int("index", re.Index),
			slog.String("kind", re.Kind),
			slog.String("field", re.Field),
			slog.String("error", re.Message),
		)
	}

	d.logger.Info("conversion finished",
		"run_id", b.RunID.String(),
		"source", b.Source,
		"scanned", res.Scanned,
		"matched", res.Matched,
		"emitted", len(res.Lines),
		"record_errors", len(res.Errors),
	)
	return nil
}
