package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmslite/drivetemp/internal/middleware"
	"github.com/nmslite/drivetemp/internal/pipeline"
	"github.com/nmslite/drivetemp/internal/sink"
)

// ConvertResponse is the JSON form of a conversion.
type ConvertResponse struct {
	RunID   uuid.UUID              `json:"run_id"`
	Lines   []string               `json:"lines"`
	Errors  []pipeline.RecordError `json:"errors"`
	Scanned int                    `json:"scanned"`
	Matched int                    `json:"matched"`
}

type ConvertHandler struct {
	deps   *Dependencies
	logger *slog.Logger
}

func NewConvertHandler(deps *Dependencies) *ConvertHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertHandler{deps: deps, logger: logger}
}

// Convert handles POST /api/v1/convert. The body is one health dump; the
// response is CSV unless JSON is asked for with ?format=json or Accept.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.deps.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
	}

	runID := uuid.New()
	startedAt := time.Now()
	res, err := h.deps.Pipeline.RunReader(r.Context(), body)
	elapsed := time.Since(startedAt)
	if h.deps.Metrics != nil {
		h.deps.Metrics.ObserveRun(res, elapsed, err)
	}

	if err != nil {
		var dpe *pipeline.DocumentParseError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			SendError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Health dump exceeds the size limit", nil)
		case errors.As(err, &dpe):
			SendError(w, r, http.StatusUnprocessableEntity, "INVALID_DOCUMENT", dpe.Error(), nil)
		default:
			h.logger.Error("conversion failed",
				"request_id", middleware.RequestIDFrom(r.Context()),
				"run_id", runID.String(),
				"error", err,
			)
			SendError(w, r, http.StatusInternalServerError, "CONVERSION_FAILED", "Failed to convert health dump", nil)
		}
		return
	}

	batch := sink.Batch{
		RunID:     runID,
		Source:    "http:" + middleware.RequestIDFrom(r.Context()),
		StartedAt: startedAt,
		Result:    res,
	}
	if err := sink.Fanout(r.Context(), batch, h.deps.Sinks...); err != nil {
		h.logger.Error("sink delivery failed", "run_id", runID.String(), "error", err)
		w.Header().Set("X-Sink-Errors", "true")
	}

	w.Header().Set("X-Run-ID", runID.String())
	w.Header().Set("X-Record-Errors", strconv.Itoa(len(res.Errors)))

	if wantsJSON(r) {
		errs := res.Errors
		if errs == nil {
			errs = []pipeline.RecordError{}
		}
		lines := res.Lines
		if lines == nil {
			lines = []string{}
		}
		SendJSON(w, http.StatusOK, ConvertResponse{
			RunID:   runID,
			Lines:   lines,
			Errors:  errs,
			Scanned: res.Scanned,
			Matched: res.Matched,
		})
		return
	}

	header, _ := strconv.ParseBool(r.URL.Query().Get("header"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	out := sink.NewCSVWriter(w, header)
	if err := out.Write(r.Context(), batch); err != nil {
		h.logger.Warn("failed to write CSV response", "run_id", runID.String(), "error", err)
	}
}

func wantsJSON(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "json":
		return true
	case "csv":
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
