package extraction

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/schema"
)

// Result is the envelope handed to the form pre-fill layer. It is built once
// per upload and never mutated afterwards.
type Result struct {
	Kind          Kind          `json:"kind,omitempty"`
	Features      schema.Record `json:"features"`
	Confidence    float64       `json:"confidence"`
	MissingFields []schema.Key  `json:"missing_fields"`
	Errors        []string      `json:"errors"`
	Unmapped      []string      `json:"unmapped_columns,omitempty"`
	RowsIgnored   int           `json:"rows_ignored,omitempty"`
}

// Failed reports whether the upload produced nothing usable.
func (r Result) Failed() bool {
	return len(r.Features) == 0
}

// Populated is the number of canonical fields recovered.
func (r Result) Populated() int {
	return r.Features.Populated()
}

// Confidence scales a source reliability by extraction completeness. It only
// reaches base when all canonical fields were recovered.
func Confidence(base float64, populated int) float64 {
	completeness := float64(populated) / float64(schema.FieldCount)
	return base * (0.5 + 0.5*completeness)
}

// roundConfidence keeps two decimals, the precision the wizard displays.
func roundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

type Orchestrator struct {
	tabular Extractor
	text    Extractor
}

func NewOrchestrator(tabular, text Extractor) *Orchestrator {
	return &Orchestrator{tabular: tabular, text: text}
}

// Extract runs the pipeline for one upload. It never returns an error: every
// failure is reported through the envelope with an empty record, zero
// confidence and the full list of canonical keys as missing.
func (o *Orchestrator) Extract(ctx context.Context, up Upload) Result {
	log := logger.WithUpload(up.ID, up.Name)
	kind := DetectKind(up.MediaType, up.Name, up.Data)

	extractor, err := o.extractorFor(kind)
	if err != nil {
		log.WithField("media_type", up.MediaType).Warn("rejected upload of unsupported type")
		return failure(kind, err, nil)
	}

	outcome, err := extractor.Extract(ctx, kind, up)
	if err != nil {
		log.WithError(err).WithField("kind", kind).Warn("extraction failed")
		return failure(kind, err, outcome.Errors)
	}

	result := Result{
		Kind:          kind,
		Features:      outcome.Features,
		Confidence:    roundConfidence(Confidence(extractor.Reliability(), outcome.Features.Populated())),
		MissingFields: missingKeys(outcome.Features),
		Errors:        nonNil(outcome.Errors),
		Unmapped:      outcome.Unmapped,
		RowsIgnored:   outcome.RowsIgnored,
	}

	log.WithFields(map[string]interface{}{
		"kind":       kind,
		"fields":     result.Populated(),
		"confidence": result.Confidence,
		"warnings":   len(result.Errors),
	}).Info("extraction completed")

	return result
}

func (o *Orchestrator) extractorFor(kind Kind) (Extractor, error) {
	switch {
	case kind.Tabular() && o.tabular != nil:
		return o.tabular, nil
	case kind == KindPDF && o.text != nil:
		return o.text, nil
	case kind == KindUnknown:
		return nil, ErrUnsupportedFile
	}
	return nil, fmt.Errorf("%w: no extractor configured for %s", ErrUnsupportedFile, kind)
}

func failure(kind Kind, err error, diagnostics []string) Result {
	errs := []string{Guidance(err)}
	if !errors.Is(err, ErrUnsupportedFile) {
		errs = append(errs, diagnostics...)
	}
	return Result{
		Kind:          kind,
		Features:      schema.Record{},
		Confidence:    0,
		MissingFields: schema.Keys(),
		Errors:        errs,
	}
}

func missingKeys(r schema.Record) []schema.Key {
	missing := r.Missing()
	if missing == nil {
		return []schema.Key{}
	}
	return missing
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
