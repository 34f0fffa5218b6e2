// Package metrics exposes conversion counters and the latest drive
// temperatures in Prometheus format.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nmslite/drivetemp/internal/element"
	"github.com/nmslite/drivetemp/internal/pipeline"
)

// Run outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeRecordError = "record_errors"
	OutcomeFailed      = "failed"
)

// Recorder owns a private registry so several recorders can coexist.
type Recorder struct {
	registry *prometheus.Registry

	scanned     prometheus.Counter
	emitted     prometheus.Counter
	recordErrs  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	temperature *prometheus.GaugeVec
}

// NewRecorder registers all collectors under namespace.
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = "drivetemp"
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_scanned_total",
			Help:      "Elements read from health dumps.",
		}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "CSV records emitted.",
		}),
		recordErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_errors_total",
			Help:      "Matched elements skipped because of a record error.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Conversion runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one conversion run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drive_temperature",
			Help:      "Latest reported drive temperature.",
		}, []string{"system_serial", "drive_serial", "units"}),
	}

	r.registry.MustRegister(r.scanned, r.emitted, r.recordErrs, r.runs, r.duration, r.temperature)
	return r
}

// ObserveRun records a finished run. res may be nil when the run failed
// before producing a result.
func (r *Recorder) ObserveRun(res *pipeline.Result, elapsed time.Duration, err error) {
	r.duration.Observe(elapsed.Seconds())

	switch {
	case err != nil || res == nil:
		r.runs.WithLabelValues(OutcomeFailed).Inc()
		return
	case len(res.Errors) > 0:
		r.runs.WithLabelValues(OutcomeRecordError).Inc()
	default:
		r.runs.WithLabelValues(OutcomeOK).Inc()
	}

	r.scanned.Add(float64(res.Scanned))
	r.emitted.Add(float64(len(res.Lines)))
	for _, re := range res.Errors {
		r.recordErrs.WithLabelValues(re.Kind).Inc()
	}
	for _, rec := range res.Records {
		r.observeRecord(rec)
	}
}

func (r *Recorder) observeRecord(rec element.Record) {
	v, err := element.ValueFloat(rec.Value)
	if err != nil {
		return
	}
	r.temperature.WithLabelValues(rec.SystemSerial, rec.ComponentSerial, rec.Units).Set(v)
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry for node_exporter's textfile collector.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
