package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmslite/drivetemp/internal/element"
	"github.com/nmslite/drivetemp/internal/timestamp"
)

const sampleDoc = `[{"type":"Drive","value":26,"units":"Celsius","status":"Normal","severity":"Normal","timestamp":1681919000000000000,"system_serial":"ZZ0001C8","component_serial":"HLK031P10000822150Z3"}]`

const sampleLine = "2023-04-19T15:43:20.000000000Z,ZZ0001C8,Drive,HLK031P10000822150Z3,Normal,Normal,Celsius,26"

func TestRunSample(t *testing.T) {
	res, err := New().Run(context.Background(), []byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, []string{sampleLine}, res.Lines)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Matched)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "HLK031P10000822150Z3", res.Records[0].ComponentSerial)
	assert.NoError(t, res.Err())
}

func TestRunSkipsNonTargets(t *testing.T) {
	doc := `[
		{"type":"Fan","status":"Normal","severity":"Normal","timestamp":1681919000000000000,"system_serial":"ZZ0001C8"},
		{"type":"Drive","status":"Normal","system_serial":"ZZ0001C8"},
		{"type":"PSU","value":230}
	]`
	res, err := New().Run(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.Empty(t, res.Lines)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 0, res.Matched)
}

func TestRunMissingSystemSerial(t *testing.T) {
	doc := `[
		{"type":"Fan"},
		{"type":"Drive","value":26,"timestamp":1681919000000000000,"component_serial":"HLK031P10000822150Z3"}
	]`
	res, err := New().Run(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.Empty(t, res.Lines)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, KindMissingField, res.Errors[0].Kind)
	assert.Equal(t, element.FieldSystemSerial, res.Errors[0].Field)
	assert.ErrorIs(t, res.Errors[0], element.ErrMissingField)
	assert.Error(t, res.Err())
}

func TestRunSeveralMissingFields(t *testing.T) {
	doc := `[{"type":"Drive","value":26,"component_serial":"HLK031P10000822150Z3"}]`
	res, err := New().Run(context.Background(), []byte(doc))
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindMissingField, res.Errors[0].Kind)
	assert.Equal(t, "timestamp,system_serial", res.Errors[0].Field)
}

func TestRunTimestampError(t *testing.T) {
	doc := `[{"type":"Drive","value":26,"timestamp":"not a time","system_serial":"S","component_serial":"C"}]`
	res, err := New().Run(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.Empty(t, res.Lines)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindTimestamp, res.Errors[0].Kind)
	assert.Equal(t, element.FieldTimestamp, res.Errors[0].Field)
	assert.ErrorIs(t, res.Errors[0], timestamp.ErrInvalid)
}

func TestRunDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"object top level", `{}`},
		{"string top level", `"drives"`},
		{"null top level", `null`},
		{"empty document", ``},
		{"truncated", `[{"type":"Drive"`},
		{"not json", `type=Drive`},
		{"non object item", `[{"type":"Fan"}, 42]`},
		{"trailing data", `[] []`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Run(context.Background(), []byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrDocumentParse)

			var dpe *DocumentParseError
			assert.True(t, errors.As(err, &dpe))
		})
	}
}

func TestRunEmptyArray(t *testing.T) {
	res, err := New().Run(context.Background(), []byte(` [ ] `))
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Equal(t, 0, res.Scanned)
}

func TestRunQuotesFields(t *testing.T) {
	doc := `[{"type":"Drive","value":26,"timestamp":0,"system_serial":"ZZ,01","component_serial":"C\"1","status":"Degraded"}]`
	res, err := New().Run(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, `1970-01-01T00:00:00.000000000Z,"ZZ,01",Drive,"C""1",Degraded,Unknown,,26`, res.Lines[0])
}

func mixedDocument(n int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		switch i % 4 {
		case 0:
			fmt.Fprintf(&b, `{"type":"Drive","value":%d,"units":"Celsius","status":"Normal","severity":"Normal","timestamp":%d,"system_serial":"SYS%d","component_serial":"DRV%d"}`,
				20+i%30, 1681919000000000000+int64(i), i%3, i)
		case 1:
			fmt.Fprintf(&b, `{"type":"Fan","value":%d,"system_serial":"SYS"}`, 4000+i)
		case 2:
			fmt.Fprintf(&b, `{"type":"Drive","value":%d,"timestamp":%d,"component_serial":"DRV%d"}`, i, i, i)
		default:
			fmt.Fprintf(&b, `{"type":"Drive","value":"%d.5","timestamp":"bad-%d","system_serial":"S","component_serial":"DRV%d"}`, i, i, i)
		}
	}
	b.WriteString("]")
	return b.String()
}

func TestRunOrderAndErrors(t *testing.T) {
	res, err := New().Run(context.Background(), []byte(mixedDocument(40)))
	require.NoError(t, err)

	assert.Equal(t, 40, res.Scanned)
	assert.Equal(t, 30, res.Matched)
	require.Len(t, res.Lines, 10)
	require.Len(t, res.Errors, 20)

	for i, line := range res.Lines {
		assert.True(t, strings.HasSuffix(strings.Split(line, ",")[3], fmt.Sprintf("DRV%d", i*4)), "line %d: %s", i, line)
	}
	for i := 1; i < len(res.Errors); i++ {
		assert.Less(t, res.Errors[i-1].Index, res.Errors[i].Index)
	}
}

func TestRunIdempotent(t *testing.T) {
	doc := []byte(mixedDocument(25))
	p := New()

	first, err := p.Run(context.Background(), doc)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	doc := []byte(mixedDocument(500))

	seq, err := New().Run(context.Background(), doc)
	require.NoError(t, err)

	for _, workers := range []int{2, 8, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			par, err := New(WithWorkers(workers)).Run(context.Background(), doc)
			require.NoError(t, err)
			assert.Equal(t, seq.Lines, par.Lines)
			assert.Equal(t, seq.Errors, par.Errors)
			assert.Equal(t, seq.Matched, par.Matched)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, []byte(sampleDoc))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = New(WithWorkers(4)).Run(ctx, []byte(sampleDoc))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunOptions(t *testing.T) {
	doc := `[{"HRI":"/appliance/ZZ0001C8/naa.5000cca0bc1a2b3c/disk/temperature","ComponentName":"Drive HLK031P10000822150Z3","Value":26,"Units":"Celsius","Status":"Normal","Severity":"Normal","Date":1681919000}]`

	p := New(
		WithMapping(element.NewHRIMapping("")),
		WithNormalizer(timestamp.New(time.Second)),
	)
	res, err := p.Run(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{sampleLine}, res.Lines)
	assert.Equal(t, "5000cca0bc1a2b3c", res.Records[0].WWN)
	assert.Equal(t, element.MappingHRI, p.Mapping().Name())
}

func TestRunReader(t *testing.T) {
	res, err := New().RunReader(context.Background(), strings.NewReader(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, []string{sampleLine}, res.Lines)
}
