package element

import (
	"fmt"
	"strings"
)

// Mapping binds the classifier and extractor to one set of source field
// names. Renaming upstream fields means adding a Mapping, not migrating data.
type Mapping interface {
	// Name identifies the mapping in configuration.
	Name() string
	// IsTarget reports whether e is a valued element of the target family.
	// Only the type and value fields are inspected.
	IsTarget(e Element) bool
	// Extract projects an accepted element into a Draft.
	Extract(e Element) (Draft, error)
	// TimestampField names the source field holding the collection time.
	TimestampField() string
}

// Mapping names accepted by MappingByName.
const (
	MappingFlat = "flat"
	MappingHRI  = "hri"
)

// MappingOptions tune the mapping chosen by MappingByName. Empty values take
// the mapping's defaults.
type MappingOptions struct {
	// TargetType applies to the flat mapping.
	TargetType string
	// HRISuffix applies to the hri mapping.
	HRISuffix string
}

// MappingByName resolves a configured mapping.
func MappingByName(name string, opts MappingOptions) (Mapping, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MappingFlat:
		return NewFlatMapping(opts.TargetType), nil
	case MappingHRI:
		return NewHRIMapping(opts.HRISuffix), nil
	default:
		return nil, fmt.Errorf("unknown element mapping %q", name)
	}
}

// Flat field names.
const (
	FieldType            = "type"
	FieldValue           = "value"
	FieldUnits           = "units"
	FieldStatus          = "status"
	FieldSeverity        = "severity"
	FieldTimestamp       = "timestamp"
	FieldSystemSerial    = "system_serial"
	FieldComponentSerial = "component_serial"
)

// FlatMapping reads elements whose fields are named as in the health
// service's flat export:
//
//	{"type":"Drive","value":26,"units":"Celsius","status":"Normal",
//	 "severity":"Normal","timestamp":1681919000000000000,
//	 "system_serial":"ZZ0001C8","component_serial":"HLK031P10000822150Z3"}
type FlatMapping struct {
	TargetType string
}

// NewFlatMapping returns a FlatMapping matching targetType exactly.
func NewFlatMapping(targetType string) *FlatMapping {
	if targetType == "" {
		targetType = DefaultTargetType
	}
	return &FlatMapping{TargetType: targetType}
}

func (m *FlatMapping) Name() string { return MappingFlat }

func (m *FlatMapping) TimestampField() string { return FieldTimestamp }

func (m *FlatMapping) IsTarget(e Element) bool {
	t, ok := e.String(FieldType)
	if !ok || t != m.TargetType {
		return false
	}
	v, ok := e.Lookup(FieldValue)
	return ok && IsNumeric(v)
}

func (m *FlatMapping) Extract(e Element) (Draft, error) {
	rawTS, hasTS := timestampField(e, FieldTimestamp)
	ids, missing := identifiers(e, FieldSystemSerial, FieldComponentSerial)
	if !hasTS {
		missing = append([]string{FieldTimestamp}, missing...)
	}
	if len(missing) > 0 {
		return Draft{}, &FieldError{Fields: missing}
	}

	value, ok := e.Lookup(FieldValue)
	if !ok || !IsNumeric(value) {
		return Draft{}, &FieldError{Fields: []string{FieldValue}, Reason: "not a numeric value"}
	}

	componentType, _ := e.String(FieldType)

	return Draft{
		RawTimestamp: rawTS,
		Record: Record{
			SystemSerial:    ids[FieldSystemSerial],
			ComponentType:   componentType,
			ComponentSerial: ids[FieldComponentSerial],
			Status:          labelOr(e, FieldStatus, Unknown),
			Severity:        labelOr(e, FieldSeverity, Unknown),
			Units:           labelOr(e, FieldUnits, ""),
			Value:           ValueText(value),
		},
	}, nil
}

// timestampField returns the native timestamp unless it is absent, null or
// an empty string. Any other shape is left to the normalizer to judge.
func timestampField(e Element, key string) (any, bool) {
	v, ok := e.Lookup(key)
	if !ok {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}
