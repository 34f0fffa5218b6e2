package element

import "strings"

// HRI field names, as exported by the appliance's health report.
const (
	FieldHRI           = "HRI"
	FieldDate          = "Date"
	FieldHRIValue      = "Value"
	FieldHRIUnits      = "Units"
	FieldHRIStatus     = "Status"
	FieldHRISeverity   = "Severity"
	FieldComponentType = "ComponentType"
	FieldComponentName = "ComponentName"
)

// DefaultHRISuffix selects temperature sensors by their HRI path.
const DefaultHRISuffix = "/temperature"

const minHRISegments = 5

// HRIMapping reads elements addressed by a hierarchical resource identifier:
//
//	{"HRI":"/appliance/ZZ0001C8/naa.5000cca0bc1a2b3c/disk/temperature",
//	 "ComponentName":"Drive HLK031P10000822150Z3","Value":26,
//	 "Units":"Celsius","Status":"Normal","Severity":"Normal",
//	 "Date":"2023-04-19T15:43:20Z"}
//
// The system serial is the second path segment and the drive WWN the third.
// The drive serial is the second word of ComponentName.
type HRIMapping struct {
	Suffix string
}

// NewHRIMapping returns an HRIMapping selecting paths ending in suffix.
// Empty means DefaultHRISuffix.
func NewHRIMapping(suffix string) *HRIMapping {
	if suffix == "" {
		suffix = DefaultHRISuffix
	}
	return &HRIMapping{Suffix: suffix}
}

func (m *HRIMapping) Name() string { return MappingHRI }

func (m *HRIMapping) TimestampField() string { return FieldDate }

func (m *HRIMapping) IsTarget(e Element) bool {
	hri, ok := e.String(FieldHRI)
	if !ok || !strings.HasSuffix(hri, m.Suffix) {
		return false
	}
	v, ok := e.Lookup(FieldHRIValue)
	return ok && IsNumeric(v)
}

func (m *HRIMapping) Extract(e Element) (Draft, error) {
	hri, _ := e.String(FieldHRI)
	segments := strings.Split(strings.TrimPrefix(hri, "/"), "/")
	if len(segments) < minHRISegments || segments[1] == "" {
		return Draft{}, &FieldError{Fields: []string{FieldHRI}, Reason: "expected at least 5 path segments"}
	}

	rawTS, hasTS := timestampField(e, FieldDate)
	ids, missing := identifiers(e, FieldComponentName)
	if !hasTS {
		missing = append([]string{FieldDate}, missing...)
	}
	if len(missing) > 0 {
		return Draft{}, &FieldError{Fields: missing}
	}

	value, _ := e.Lookup(FieldHRIValue)

	driveSerial := "unknown"
	if words := strings.Fields(ids[FieldComponentName]); len(words) > 1 {
		driveSerial = words[1]
	}

	return Draft{
		RawTimestamp: rawTS,
		Record: Record{
			WWN:             strings.TrimPrefix(segments[2], "naa."),
			SystemSerial:    segments[1],
			ComponentType:   labelOr(e, FieldComponentType, DefaultTargetType),
			ComponentSerial: driveSerial,
			Status:          labelOr(e, FieldHRIStatus, Unknown),
			Severity:        labelOr(e, FieldHRISeverity, Unknown),
			Units:           labelOr(e, FieldHRIUnits, ""),
			Value:           ValueText(value),
		},
	}, nil
}
