package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nmslite/drivetemp/internal/element"
)

// ErrDocumentParse is the kind of the one whole-run fatal failure.
var ErrDocumentParse = errors.New("document parse error")

// DocumentParseError reports input that is not a JSON array of objects.
type DocumentParseError struct {
	Reason string
	Err    error
}

func (e *DocumentParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDocumentParse.Error(), e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDocumentParse.Error(), e.Reason)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

func (e *DocumentParseError) Is(target error) bool { return target == ErrDocumentParse }

// Record error kinds.
const (
	KindTimestamp    = "TimestampError"
	KindMissingField = "MissingFieldError"
)

// RecordError is a per-record failure. The record is skipped and the run
// continues.
type RecordError struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e RecordError) Error() string {
	return fmt.Sprintf("element %d: %s: %s", e.Index, e.Kind, e.Message)
}

func (e RecordError) Unwrap() error { return e.Err }

func newRecordError(index int, m element.Mapping, err error) RecordError {
	re := RecordError{Index: index, Message: err.Error(), Err: err}

	var fe *element.FieldError
	switch {
	case errors.As(err, &fe):
		re.Kind = KindMissingField
		re.Field = strings.Join(fe.Fields, ",")
	case errors.Is(err, element.ErrTimestamp):
		re.Kind = KindTimestamp
		re.Field = m.TimestampField()
	default:
		re.Kind = KindMissingField
	}
	return re
}
