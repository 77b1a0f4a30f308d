package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/neurotrace/intake/pkg/schema"
)

// Source reliabilities used as the base of the confidence score.
const (
	TabularReliability = 0.8
	TextReliability    = 0.4
)

// minDocumentText is the shortest document text treated as readable.
const minDocumentText = 10

// Upload is a single user-submitted file.
type Upload struct {
	// ID correlates log entries for one extraction call.
	ID        string
	Name      string
	MediaType string
	Data      []byte
	Mode      string
}

// TabularParser turns a delimited-text or spreadsheet upload into rows keyed by
// the header row.
type TabularParser interface {
	ParseRows(ctx context.Context, kind Kind, up Upload) ([]Row, error)
}

// TextReader returns the concatenated page text of a document in reading order.
type TextReader interface {
	ReadText(ctx context.Context, up Upload) (string, error)
}

// Extractor is one source-specific extraction strategy.
type Extractor interface {
	Extract(ctx context.Context, kind Kind, up Upload) (Outcome, error)
	Reliability() float64
}

var (
	_ Extractor = (*TabularExtractor)(nil)
	_ Extractor = (*TextExtractor)(nil)
)

type TabularExtractor struct {
	parser   TabularParser
	resolver *schema.Resolver
}

func NewTabularExtractor(parser TabularParser, resolver *schema.Resolver) *TabularExtractor {
	if resolver == nil {
		resolver = schema.DefaultResolver()
	}
	return &TabularExtractor{parser: parser, resolver: resolver}
}

func (e *TabularExtractor) Extract(ctx context.Context, kind Kind, up Upload) (Outcome, error) {
	rows, err := e.parser.ParseRows(ctx, kind, up)
	if err != nil {
		return Outcome{}, err
	}
	return ExtractRows(rows, e.resolver)
}

func (e *TabularExtractor) Reliability() float64 {
	return TabularReliability
}

type TextExtractor struct {
	reader TextReader
}

func NewTextExtractor(reader TextReader) *TextExtractor {
	return &TextExtractor{reader: reader}
}

func (e *TextExtractor) Extract(ctx context.Context, _ Kind, up Upload) (Outcome, error) {
	text, err := e.reader.ReadText(ctx, up)
	if err != nil {
		return Outcome{}, err
	}
	if len(strings.TrimSpace(text)) < minDocumentText {
		return Outcome{}, fmt.Errorf("%w: %d characters extracted", ErrScannedDocument, len(strings.TrimSpace(text)))
	}
	return ExtractText(text), nil
}

func (e *TextExtractor) Reliability() float64 {
	return TextReliability
}
