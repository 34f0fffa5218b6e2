// Package pipeline drives classification, extraction, timestamp
// normalization and emission over a whole health dump.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/nmslite/drivetemp/internal/csvline"
	"github.com/nmslite/drivetemp/internal/element"
	"github.com/nmslite/drivetemp/internal/timestamp"
)

// Pipeline converts health dumps into CSV lines. It holds no state between
// runs and is safe for concurrent use.
type Pipeline struct {
	mapping    element.Mapping
	normalizer *timestamp.Normalizer
	workers    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMapping selects the classifier/extractor pair. Default is the flat
// mapping targeting Drive elements.
func WithMapping(m element.Mapping) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.mapping = m
		}
	}
}

// WithNormalizer sets the timestamp normalizer.
func WithNormalizer(n *timestamp.Normalizer) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.normalizer = n
		}
	}
}

// WithWorkers processes elements on up to n goroutines. Output order is
// unaffected.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		mapping:    element.NewFlatMapping(element.DefaultTargetType),
		normalizer: timestamp.New(timestamp.DefaultResolution),
		workers:    1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Mapping returns the configured mapping.
func (p *Pipeline) Mapping() element.Mapping { return p.mapping }

// Result is the outcome of one run.
type Result struct {
	Lines   []string
	Records []element.Record
	Errors  []RecordError
	// Scanned counts elements in the document, Matched those accepted by
	// the classifier.
	Scanned int
	Matched int
}

// Err joins the per-record errors, or returns nil when there are none.
func (r *Result) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Run processes doc.
func (p *Pipeline) Run(ctx context.Context, doc []byte) (*Result, error) {
	return p.RunReader(ctx, bytes.NewReader(doc))
}

// RunReader reads the whole document from r and processes it. The only
// errors returned are a *DocumentParseError, a read error or ctx's error.
func (p *Pipeline) RunReader(ctx context.Context, r io.Reader) (*Result, error) {
	elements, err := Decode(r)
	if err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(elements))
	if p.workers == 1 {
		for i, e := range elements {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = p.process(i, e)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for i, e := range elements {
			i, e := i, e
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = p.process(i, e)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	res := &Result{Scanned: len(elements)}
	for _, o := range outcomes {
		if !o.matched {
			continue
		}
		res.Matched++
		if o.err != nil {
			res.Errors = append(res.Errors, *o.err)
			continue
		}
		res.Records = append(res.Records, o.record)
		res.Lines = append(res.Lines, o.line)
	}
	return res, nil
}

type outcome struct {
	matched bool
	record  element.Record
	line    string
	err     *RecordError
}

func (p *Pipeline) process(index int, e element.Element) outcome {
	if !p.mapping.IsTarget(e) {
		return outcome{}
	}

	draft, err := p.mapping.Extract(e)
	if err != nil {
		re := newRecordError(index, p.mapping, err)
		return outcome{matched: true, err: &re}
	}

	rec, err := draft.Finalize(p.normalizer)
	if err != nil {
		re := newRecordError(index, p.mapping, err)
		return outcome{matched: true, err: &re}
	}

	return outcome{matched: true, record: rec, line: csvline.Emit(rec)}
}

// Decode reads one JSON document whose top level must be an array of
// objects. Numbers are kept as json.Number.
func Decode(r io.Reader) ([]element.Element, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DocumentParseError{Reason: "document is empty"}
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DocumentParseError{Reason: "invalid JSON", Err: err}
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DocumentParseError{Reason: "unexpected data after the top-level value"}
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, &DocumentParseError{Reason: fmt.Sprintf("top level is %s, not an array", kindOf(doc))}
	}

	elements := make([]element.Element, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &DocumentParseError{Reason: fmt.Sprintf("item %d is %s, not an object", i, kindOf(item))}
		}
		elements[i] = element.Element(m)
	}
	return elements, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
