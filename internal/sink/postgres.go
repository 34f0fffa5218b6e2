package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nmslite/drivetemp/internal/element"
	"github.com/nmslite/drivetemp/internal/pipeline"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var recordColumns = []string{
	"run_id", "ts", "system_serial", "component_type", "drive_serial",
	"wwn", "status", "severity", "units", "value", "value_num", "ts_text",
}

const insertRun = `INSERT INTO conversion_runs
	(run_id, source, scanned, matched, emitted, record_errors, started_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// PostgresSink stores records with the COPY protocol and one summary row
// per run, in a single transaction.
type PostgresSink struct {
	db     TxBeginner
	table  pgx.Identifier
	logger *slog.Logger
}

// NewPostgresSink writes records into table, which may be schema-qualified.
func NewPostgresSink(db TxBeginner, table string, logger *slog.Logger) *PostgresSink {
	return &PostgresSink{
		db:     db,
		table:  pgx.Identifier(strings.Split(table, ".")),
		logger: logger,
	}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Write(ctx context.Context, b Batch) error {
	if b.Result == nil {
		return nil
	}
	records := b.Result.Records

	rows, err := recordRows(b, records)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	start := time.Now()
	if len(rows) > 0 {
		copyCount, err := tx.CopyFrom(ctx, p.table, recordColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("COPY operation failed: %w", err)
		}
		if copyCount != int64(len(rows)) {
			return fmt.Errorf("COPY count mismatch: expected %d, got %d", len(rows), copyCount)
		}
	}

	errorsJSON, err := json.Marshal(recordErrorsOrEmpty(b.Result.Errors))
	if err != nil {
		return fmt.Errorf("failed to marshal record errors: %w", err)
	}
	if _, err := tx.Exec(ctx, insertRun,
		b.RunID,
		b.Source,
		b.Result.Scanned,
		b.Result.Matched,
		len(records),
		errorsJSON,
		b.StartedAt,
	); err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.Debug("records stored",
		"run_id", b.RunID.String(),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func recordRows(b Batch, records []element.Record) ([][]any, error) {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rec := rec
		ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("record %s/%s has invalid timestamp %q: %w",
				rec.SystemSerial, rec.ComponentSerial, rec.Timestamp, err)
		}

		var valueNum *float64
		if f, err := strconv.ParseFloat(rec.Value, 64); err == nil {
			valueNum = &f
		}

		var wwn *string
		if rec.WWN != "" {
			wwn = &rec.WWN
		}

		rows = append(rows, []any{
			b.RunID,
			ts,
			rec.SystemSerial,
			rec.ComponentType,
			rec.ComponentSerial,
			wwn,
			rec.Status,
			rec.Severity,
			rec.Units,
			rec.Value,
			valueNum,
			rec.Timestamp,
		})
	}
	return rows, nil
}

func recordErrorsOrEmpty(errs []pipeline.RecordError) []pipeline.RecordError {
	if errs == nil {
		return []pipeline.RecordError{}
	}
	return errs
}
