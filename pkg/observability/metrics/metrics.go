package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	extractionsByKind   sync.Map // kind -> *outcomeCounters
	fieldsExtracted     atomic.Int64
	predictionsServed   atomic.Int64
	predictionsFailed   atomic.Int64
	eventsPublished     atomic.Int64
	eventsFailed        atomic.Int64
	auditRowsWritten    atomic.Int64
	confidenceHundredth atomic.Int64
)

type outcomeCounters struct {
	succeeded atomic.Int64
	failed    atomic.Int64
}

func countersFor(kind string) *outcomeCounters {
	if kind == "" {
		kind = "unknown"
	}
	c, _ := extractionsByKind.LoadOrStore(kind, &outcomeCounters{})
	return c.(*outcomeCounters)
}

// ObserveExtraction records one finished upload. Confidence is accumulated in
// hundredths so that the exported sum stays an integer counter.
func ObserveExtraction(kind string, fields int, confidence float64, failed bool) {
	c := countersFor(kind)
	if failed {
		c.failed.Add(1)
		return
	}
	c.succeeded.Add(1)
	fieldsExtracted.Add(int64(fields))
	confidenceHundredth.Add(int64(confidence*100 + 0.5))
}

func ObservePrediction(failed bool) {
	if failed {
		predictionsFailed.Add(1)
		return
	}
	predictionsServed.Add(1)
}

func ObserveEvent(failed bool) {
	if failed {
		eventsFailed.Add(1)
		return
	}
	eventsPublished.Add(1)
}

func ObserveAuditRow() {
	auditRowsWritten.Add(1)
}

// Handler serves the Prometheus text exposition.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		WritePrometheus(w)
	})
}

func WritePrometheus(w io.Writer) {
	var kinds []string
	extractionsByKind.Range(func(k, _ interface{}) bool {
		kinds = append(kinds, k.(string))
		return true
	})
	sort.Strings(kinds)

	fmt.Fprintf(w, "# HELP intake_extractions_total Uploads processed by the extraction pipeline.\n")
	fmt.Fprintf(w, "# TYPE intake_extractions_total counter\n")
	for _, kind := range kinds {
		c := countersFor(kind)
		fmt.Fprintf(w, "intake_extractions_total{kind=%q,outcome=\"succeeded\"} %d\n", kind, c.succeeded.Load())
		fmt.Fprintf(w, "intake_extractions_total{kind=%q,outcome=\"failed\"} %d\n", kind, c.failed.Load())
	}

	writeCounter(w, "intake_fields_extracted_total", "Canonical fields recovered across successful uploads.", fieldsExtracted.Load())
	writeCounter(w, "intake_confidence_hundredths_total", "Sum of extraction confidence in hundredths.", confidenceHundredth.Load())
	writeCounter(w, "intake_predictions_total", "Prediction requests answered by the prediction service.", predictionsServed.Load())
	writeCounter(w, "intake_predictions_failed_total", "Prediction requests that failed.", predictionsFailed.Load())
	writeCounter(w, "intake_events_published_total", "Events written to Kafka.", eventsPublished.Load())
	writeCounter(w, "intake_events_failed_total", "Events that could not be written to Kafka.", eventsFailed.Load())
	writeCounter(w, "intake_audit_rows_total", "Audit rows persisted.", auditRowsWritten.Load())
}

func writeCounter(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
