// Package csvline renders records as single CSV lines.
package csvline

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/nmslite/drivetemp/internal/element"
)

// HeaderFields are the suggested column names, in record order.
var HeaderFields = []string{
	"timestamp",
	"system_serial",
	"component_type",
	"drive_serial",
	"status",
	"severity",
	"units",
	"value",
}

// Header is the suggested header line. It is never emitted implicitly.
var Header = Join(HeaderFields)

// Emit returns r as one CSV line without the line terminator.
func Emit(r element.Record) string {
	return Join(r.Fields())
}

// Join quotes fields that contain a comma, a quote, CR/LF or a leading
// space, doubling inner quotes.
func Join(fields []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writing to a bytes.Buffer cannot fail.
	_ = w.Write(fields)
	w.Flush()
	return strings.TrimSuffix(buf.String(), "\n")
}
