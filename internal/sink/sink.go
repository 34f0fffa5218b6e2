// Package sink delivers the outcome of a conversion run: CSV lines to a
// writer, rows to PostgreSQL, SNMP traps for abnormal drives and per-record
// diagnostics to the log.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nmslite/drivetemp/internal/pipeline"
)

// Batch is one finished run.
type Batch struct {
	RunID     uuid.UUID
	Source    string
	StartedAt time.Time
	Result    *pipeline.Result
}

// Sink consumes finished runs.
type Sink interface {
	Name() string
	Write(ctx context.Context, b Batch) error
}

// Fanout writes b to every sink in order and joins their failures.
func Fanout(ctx context.Context, b Batch, sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Write(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
