package extraction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/schema"
)

type fakeParser struct {
	rows []Row
	err  error
	kind Kind
}

func (f *fakeParser) ParseRows(_ context.Context, kind Kind, _ Upload) ([]Row, error) {
	f.kind = kind
	return f.rows, f.err
}

type fakeReader struct {
	text string
	err  error
}

func (f fakeReader) ReadText(context.Context, Upload) (string, error) {
	return f.text, f.err
}

func newTestOrchestrator(p *fakeParser, r fakeReader) *Orchestrator {
	return NewOrchestrator(NewTabularExtractor(p, nil), NewTextExtractor(r))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.4, Confidence(TabularReliability, 0), 1e-9)
	assert.InDelta(t, 0.8, Confidence(TabularReliability, schema.FieldCount), 1e-9)
	assert.InDelta(t, 0.6, Confidence(TabularReliability, 16), 1e-9)
	assert.InDelta(t, 0.45, Confidence(TabularReliability, 4), 1e-9)
	assert.InDelta(t, 0.225, Confidence(TextReliability, 4), 1e-9)
	assert.InDelta(t, 0.22, roundConfidence(Confidence(TextReliability, 3)), 1e-9)
}

func TestConfidenceIsMonotonic(t *testing.T) {
	for _, base := range []float64{TextReliability, TabularReliability} {
		prev := -1.0
		for n := 0; n <= schema.FieldCount; n++ {
			c := Confidence(base, n)
			assert.Greater(t, c, prev)
			assert.LessOrEqual(t, c, base)
			prev = c
		}
	}
	assert.Less(t, Confidence(TextReliability, schema.FieldCount), Confidence(TabularReliability, schema.FieldCount))
}

func TestOrchestratorTabular(t *testing.T) {
	p := &fakeParser{rows: []Row{
		row("Age", "72", "Sex", "Female", "BMI", "27.4", "smoking", "Yes"),
		row("Age", "60"),
	}}
	res := newTestOrchestrator(p, fakeReader{}).Extract(context.Background(), Upload{Name: "patient.csv", MediaType: "text/csv"})

	require.False(t, res.Failed())
	assert.Equal(t, KindCSV, p.kind)
	assert.Equal(t, KindCSV, res.Kind)
	assert.Equal(t, 4, res.Populated())
	assert.InDelta(t, 0.45, res.Confidence, 1e-9)
	assert.Len(t, res.MissingFields, schema.FieldCount-4)
	assert.NotContains(t, res.MissingFields, schema.Age)
	assert.Equal(t, []string{}, res.Errors)
	assert.Equal(t, 1, res.RowsIgnored)
}

func TestOrchestratorLogsCarryUploadID(t *testing.T) {
	hook := logtest.NewLocal(logger.Log)
	defer hook.Reset()

	p := &fakeParser{rows: []Row{row("Age", 70)}}
	res := newTestOrchestrator(p, fakeReader{}).Extract(context.Background(),
		Upload{ID: "upload-42", Name: "patient.csv"})
	require.False(t, res.Failed())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "extraction completed", entry.Message)
	assert.Equal(t, "upload-42", entry.Data["upload_id"])
	assert.Equal(t, "patient.csv", entry.Data["file_name"])
}

func TestOrchestratorDocument(t *testing.T) {
	r := fakeReader{text: "Clinic note. Patient age: 80. MMSE: 19. BMI 24.5"}
	res := newTestOrchestrator(&fakeParser{}, r).Extract(context.Background(), Upload{Name: "note.pdf"})

	require.False(t, res.Failed())
	assert.Equal(t, KindPDF, res.Kind)
	assert.Equal(t, schema.Record{schema.Age: 80, schema.MMSE: 19, schema.BMI: 24.5}, res.Features)
	assert.InDelta(t, 0.22, res.Confidence, 1e-9)
}

func assertFailureEnvelope(t *testing.T, res Result) {
	t.Helper()
	assert.True(t, res.Failed())
	assert.Empty(t, res.Features)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, schema.Keys(), res.MissingFields)
	require.NotEmpty(t, res.Errors)
}

func TestOrchestratorUnsupportedFile(t *testing.T) {
	res := newTestOrchestrator(&fakeParser{}, fakeReader{}).Extract(context.Background(),
		Upload{Name: "scan.docx", MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"})

	assertFailureEnvelope(t, res)
	assert.Contains(t, res.Errors[0], "Unsupported file type")
}

func TestOrchestratorNoData(t *testing.T) {
	res := newTestOrchestrator(&fakeParser{}, fakeReader{}).Extract(context.Background(), Upload{Name: "empty.csv"})

	assertFailureEnvelope(t, res)
	assert.Contains(t, res.Errors[0], "No data found")
}

func TestOrchestratorNoFeaturesKeepsConversionErrors(t *testing.T) {
	p := &fakeParser{rows: []Row{row("Age", "unknown", "Comments", "none")}}
	res := newTestOrchestrator(p, fakeReader{}).Extract(context.Background(), Upload{Name: "patient.xlsx"})

	assertFailureEnvelope(t, res)
	assert.Equal(t, KindExcel, res.Kind)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "No recognizable patient features")
	assert.Contains(t, res.Errors[1], "Failed to convert Age")
}

func TestOrchestratorParseFailure(t *testing.T) {
	p := &fakeParser{err: fmt.Errorf("%w: record on line 3: wrong quote", ErrDecode)}
	res := newTestOrchestrator(p, fakeReader{}).Extract(context.Background(), Upload{Name: "patient.csv"})

	assertFailureEnvelope(t, res)
	assert.Contains(t, res.Errors[0], "could not be parsed")
	assert.Contains(t, res.Errors[0], "manual entry")
}

func TestOrchestratorDocumentFailures(t *testing.T) {
	cases := []struct {
		name   string
		reader fakeReader
		want   string
	}{
		{"scanned", fakeReader{text: "   \n  "}, "scanned or image-only"},
		{"encrypted", fakeReader{err: ErrEncryptedDocument}, "encrypted"},
		{"corrupt", fakeReader{err: fmt.Errorf("%w: %v", ErrCorruptDocument, errors.New("malformed xref"))}, "corrupted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newTestOrchestrator(&fakeParser{}, tc.reader).Extract(context.Background(),
				Upload{Name: "report.pdf", MediaType: "application/pdf"})

			assertFailureEnvelope(t, res)
			assert.Contains(t, res.Errors[0], tc.want)
		})
	}
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		mediaType string
		name      string
		data      []byte
		want      Kind
	}{
		{"text/csv; charset=utf-8", "upload", nil, KindCSV},
		{"", "Patient.CSV", nil, KindCSV},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "x", nil, KindExcel},
		{"application/vnd.ms-excel", "", nil, KindExcel},
		{"", "legacy.xls", nil, KindExcel},
		{"application/pdf", "", nil, KindPDF},
		{"", "report.pdf", nil, KindPDF},
		{"application/octet-stream", "blob", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"), KindPDF},
		{"image/png", "photo.png", []byte("\x89PNG\r\n\x1a\n"), KindUnknown},
		{"", "notes.txt", nil, KindUnknown},
		// Kinds are tried csv, excel, pdf; either signal is enough.
		{"application/pdf", "x.csv", nil, KindCSV},
		{"application/pdf", "x.xlsx", nil, KindExcel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectKind(tc.mediaType, tc.name, tc.data), "%s %s", tc.mediaType, tc.name)
	}
}
