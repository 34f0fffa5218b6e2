// Package element classifies raw health dump elements and projects the
// matching ones into fixed-order output records.
//
// Elements are inspected as generic maps rather than bound to a concrete
// struct, so unknown or evolving element shapes are skipped instead of
// failing the decode.
package element

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nmslite/drivetemp/internal/timestamp"
)

const (
	// DefaultTargetType is the component type label of temperature-bearing drives.
	DefaultTargetType = "Drive"
	// Unknown replaces an absent status or severity.
	Unknown = "Unknown"
)

// ErrMissingField is the kind of every required-field failure.
var ErrMissingField = errors.New("missing required field")

// ErrTimestamp is the kind of every timestamp normalization failure.
var ErrTimestamp = timestamp.ErrInvalid

// Element is one decoded object of a health dump. Numbers are json.Number
// when decoded with UseNumber, which keeps their source text.
type Element map[string]any

// Lookup returns the value under key when it is present and not null.
func (e Element) Lookup(key string) (any, bool) {
	v, ok := e[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the value under key as a string when it is a JSON string.
func (e Element) String(key string) (string, bool) {
	s, ok := e[key].(string)
	return s, ok
}

// FieldError reports required fields that are absent or unusable.
type FieldError struct {
	Fields []string
	Reason string
}

func (e *FieldError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", ErrMissingField.Error(), strings.Join(e.Fields, ", "))
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *FieldError) Unwrap() error { return ErrMissingField }

// Record is one output row. Field order is fixed; see Fields.
type Record struct {
	Timestamp       string `json:"timestamp"`
	SystemSerial    string `json:"system_serial"`
	ComponentType   string `json:"component_type"`
	ComponentSerial string `json:"component_serial"`
	Status          string `json:"status"`
	Severity        string `json:"severity"`
	Units           string `json:"units"`
	Value           string `json:"value"`
	// WWN is the drive world wide name when the mapping exposes one. It is
	// not part of the emitted line.
	WWN string `json:"wwn,omitempty"`
}

// Fields returns the record in emission order:
// timestamp, system_serial, component_type, component_serial, status,
// severity, units, value.
func (r Record) Fields() []string {
	return []string{
		r.Timestamp,
		r.SystemSerial,
		r.ComponentType,
		r.ComponentSerial,
		r.Status,
		r.Severity,
		r.Units,
		r.Value,
	}
}

// Draft is an extracted record whose timestamp is still in native form.
type Draft struct {
	Record
	RawTimestamp any
}

// Finalize normalizes the native timestamp and returns the finished record.
func (d Draft) Finalize(n *timestamp.Normalizer) (Record, error) {
	ts, err := n.Normalize(d.RawTimestamp)
	if err != nil {
		return Record{}, fmt.Errorf("failed to normalize timestamp: %w", err)
	}
	r := d.Record
	r.Timestamp = ts
	return r, nil
}

// IsNumeric reports whether v is a measured value: a JSON number, a Go
// numeric kind, or a string that parses as a finite float.
func IsNumeric(v any) bool {
	switch val := v.(type) {
	case json.Number:
		return isFiniteText(val.String())
	case string:
		return isFiniteText(strings.TrimSpace(val))
	case float64:
		return !math.IsNaN(val) && !math.IsInf(val, 0)
	case float32:
		return !math.IsNaN(float64(val)) && !math.IsInf(float64(val), 0)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isFiniteText(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValueText renders a numeric value in its source text form. json.Number and
// strings are kept as written; Go floats use the shortest exact form.
func ValueText(v any) string {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ValueFloat converts a numeric value to float64.
func ValueFloat(v any) (float64, error) {
	switch val := v.(type) {
	case json.Number:
		return val.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse string '%s' as float: %w", val, err)
		}
		return f, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// scalarText returns a non-empty identifier from a string or number.
func scalarText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case json.Number:
		return val.String(), true
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return ValueText(val), true
	default:
		return "", false
	}
}

// labelOr returns the string under key, or fallback when absent or null.
// Non-string labels are rendered with their textual form.
func labelOr(e Element, key, fallback string) string {
	v, ok := e.Lookup(key)
	if !ok {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := scalarText(v); ok {
		return s
	}
	return fallback
}

// identifiers returns the usable identifiers under keys and the keys whose
// values are absent, null, empty or not scalar.
func identifiers(e Element, keys ...string) (map[string]string, []string) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, key := range keys {
		v, ok := e.Lookup(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		s, ok := scalarText(v)
		if !ok {
			missing = append(missing, key)
			continue
		}
		out[key] = s
	}
	return out, missing
}
