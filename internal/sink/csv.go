package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/nmslite/drivetemp/internal/csvline"
)

// CSVWriter writes newline-terminated lines, optionally preceded once by
// the header.
type CSVWriter struct {
	w           io.Writer
	header      bool
	wroteHeader bool
}

func NewCSVWriter(w io.Writer, header bool) *CSVWriter {
	return &CSVWriter{w: w, header: header}
}

func (c *CSVWriter) Name() string { return "csv" }

func (c *CSVWriter) Write(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bw := bufio.NewWriter(c.w)
	if c.header && !c.wroteHeader {
		if _, err := bw.WriteString(csvline.Header + "\n"); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		c.wroteHeader = true
	}
	if b.Result != nil {
		for _, line := range b.Result.Lines {
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("failed to write line: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
