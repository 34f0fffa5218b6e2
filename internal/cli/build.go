package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmslite/drivetemp/internal/config"
	"github.com/nmslite/drivetemp/internal/database"
	"github.com/nmslite/drivetemp/internal/element"
	"github.com/nmslite/drivetemp/internal/pipeline"
	"github.com/nmslite/drivetemp/internal/sink"
	"github.com/nmslite/drivetemp/internal/timestamp"
)

// newPipeline builds a pipeline from the pipeline section.
func newPipeline(cfg config.PipelineConfig) (*pipeline.Pipeline, error) {
	mapping, err := element.MappingByName(cfg.Mapping, element.MappingOptions{
		TargetType: cfg.TargetType,
		HRISuffix:  cfg.HRISuffix,
	})
	if err != nil {
		return nil, err
	}

	resolution, err := timestamp.ParseResolution(cfg.TimestampResolution)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		pipeline.WithMapping(mapping),
		pipeline.WithNormalizer(timestamp.New(resolution)),
		pipeline.WithWorkers(cfg.Workers),
	), nil
}

// backends holds the optional sinks and the resources behind them.
type backends struct {
	sinks   []sink.Sink
	pool    *pgxpool.Pool
	closers []func() error
}

// openBackends connects the database and SNMP sinks that are enabled.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		b.sinks = append(b.sinks, sink.NewPostgresSink(pool, cfg.Database.Table, logger))
		logger.Info("Database sink enabled", "host", cfg.Database.Host, "table", cfg.Database.Table)
	}

	if cfg.Alerts.Enabled {
		traps, err := sink.NewTrapSink(cfg.Alerts, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to open SNMP trap sink: %w", err)
		}
		b.closers = append(b.closers, traps.Close)
		b.sinks = append(b.sinks, traps)
		logger.Info("SNMP trap sink enabled", "target", cfg.Alerts.Target, "port", cfg.Alerts.Port)
	}

	return b, nil
}

// Ready pings the database when one is configured.
func (b *backends) Ready(ctx context.Context) error {
	if b.pool == nil {
		return nil
	}
	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}
