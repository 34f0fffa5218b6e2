// Package timestamp converts appliance-native collection times into the
// canonical form used by every emitted record.
//
// The canonical form is ISO-8601 in UTC with exactly nine fractional digits:
//
//	2023-04-19T15:43:20.000000000Z
//
// Numeric inputs are counts of Resolution units since the Unix epoch. The
// health service encodes collection times as nanoseconds, so
// DefaultResolution is time.Nanosecond. Conversions are exact: a value that
// would need sub-nanosecond precision is rejected instead of truncated.
package timestamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical output layout.
const Layout = "2006-01-02T15:04:05.000000000Z"

// DefaultResolution is the unit of raw numeric timestamps in health dumps.
const DefaultResolution = time.Nanosecond

// ErrInvalid is the kind shared by every normalization failure.
var ErrInvalid = errors.New("invalid timestamp")

// Error describes why a native timestamp could not be normalized.
type Error struct {
	Value  any
	Reason string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %s", ErrInvalid.Error(), describe(e.Value), e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalid }

func invalid(v any, format string, args ...any) error {
	return &Error{Value: v, Reason: fmt.Sprintf(format, args...)}
}

// string layouts tried in order; zone-less layouts are read as UTC
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
}

var (
	decimalPattern  = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	fractionPattern = regexp.MustCompile(`:\d{2}[.,](\d+)`)
)

// Normalizer turns native timestamps into canonical strings.
type Normalizer struct {
	// Resolution is the unit of numeric inputs. Zero means DefaultResolution.
	Resolution time.Duration
}

// New returns a Normalizer for numeric inputs expressed in resolution units.
func New(resolution time.Duration) *Normalizer {
	return &Normalizer{Resolution: resolution}
}

// Normalize parses v and formats it with Layout.
func (n *Normalizer) Normalize(v any) (string, error) {
	t, err := n.Parse(v)
	if err != nil {
		return "", err
	}
	return Format(t)
}

// Parse converts v into an instant. Supported inputs are json.Number, Go
// integer and float kinds, numeric strings, date/time strings and time.Time.
func (n *Normalizer) Parse(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, invalid(v, "value is null")
	case time.Time:
		return val.UTC(), nil
	case json.Number:
		return n.fromDecimal(v, val.String())
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, invalid(v, "value is empty")
		}
		if decimalPattern.MatchString(s) {
			return n.fromDecimal(v, s)
		}
		return parseString(v, s)
	case float64:
		return n.fromFloat(v, val)
	case float32:
		return n.fromFloat(v, float64(val))
	case int:
		return n.fromInt(v, big.NewInt(int64(val)))
	case int8:
		return n.fromInt(v, big.NewInt(int64(val)))
	case int16:
		return n.fromInt(v, big.NewInt(int64(val)))
	case int32:
		return n.fromInt(v, big.NewInt(int64(val)))
	case int64:
		return n.fromInt(v, big.NewInt(val))
	case uint:
		return n.fromInt(v, new(big.Int).SetUint64(uint64(val)))
	case uint8:
		return n.fromInt(v, new(big.Int).SetUint64(uint64(val)))
	case uint16:
		return n.fromInt(v, new(big.Int).SetUint64(uint64(val)))
	case uint32:
		return n.fromInt(v, new(big.Int).SetUint64(uint64(val)))
	case uint64:
		return n.fromInt(v, new(big.Int).SetUint64(val))
	default:
		return time.Time{}, invalid(v, "unsupported type %T", v)
	}
}

func (n *Normalizer) resolution() time.Duration {
	if n == nil || n.Resolution <= 0 {
		return DefaultResolution
	}
	return n.Resolution
}

// fromFloat uses the shortest decimal text of f so that 1681919000.5 is
// read the way it was written, not as its binary approximation.
func (n *Normalizer) fromFloat(orig any, f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, invalid(orig, "value is not finite")
	}
	return n.fromDecimal(orig, strconv.FormatFloat(f, 'g', -1, 64))
}

func (n *Normalizer) fromInt(orig any, units *big.Int) (time.Time, error) {
	return n.fromRat(orig, new(big.Rat).SetInt(units))
}

func (n *Normalizer) fromDecimal(orig any, s string) (time.Time, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return time.Time{}, invalid(orig, "not a number")
	}
	return n.fromRat(orig, r)
}

func (n *Normalizer) fromRat(orig any, units *big.Rat) (time.Time, error) {
	nanos := new(big.Rat).Mul(units, new(big.Rat).SetInt64(int64(n.resolution())))
	if !nanos.IsInt() {
		return time.Time{}, invalid(orig, "precision finer than one nanosecond at resolution %s", n.resolution())
	}
	num := nanos.Num()
	if !num.IsInt64() {
		return time.Time{}, invalid(orig, "out of range")
	}
	return time.Unix(0, num.Int64()).UTC(), nil
}

func parseString(orig any, s string) (time.Time, error) {
	if m := fractionPattern.FindStringSubmatch(s); m != nil && len(m[1]) > 9 {
		if strings.Trim(m[1][9:], "0") != "" {
			return time.Time{}, invalid(orig, "precision finer than one nanosecond")
		}
		// time.Parse truncates past nine digits; the excess is zeros here
		s = strings.Replace(s, m[1], m[1][:9], 1)
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == time.RFC1123 {
			// abbreviations other than GMT/UTC parse with a made-up zero offset
			if name, _ := t.Zone(); name != "GMT" && name != "UTC" {
				return time.Time{}, invalid(orig, "ambiguous zone abbreviation %q", name)
			}
		}
		return t.UTC(), nil
	}
	return time.Time{}, invalid(orig, "unrecognized time format")
}

// Format renders t in UTC with Layout. Years outside 0000-9999 cannot be
// written with four digits and fail.
func Format(t time.Time) (string, error) {
	u := t.UTC()
	if y := u.Year(); y < 0 || y > 9999 {
		return "", invalid(t, "year %d out of range", y)
	}
	return u.Format(Layout), nil
}

// ParseResolution maps a config unit name to a duration.
func ParseResolution(unit string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "ns", "nanosecond", "nanoseconds":
		return time.Nanosecond, nil
	case "us", "µs", "microsecond", "microseconds":
		return time.Microsecond, nil
	case "ms", "millisecond", "milliseconds":
		return time.Millisecond, nil
	case "s", "second", "seconds":
		return time.Second, nil
	default:
		return 0, fmt.Errorf("unknown timestamp resolution %q", unit)
	}
}

func describe(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.String()
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
