// Package tabular parses delimited-text and spreadsheet uploads into header
// keyed rows for the structured extractor.
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/neurotrace/intake/pkg/extraction"
)

var _ extraction.TabularParser = (*Parser)(nil)

// Parser reads CSV and XLSX payloads. The zero value is ready to use.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) ParseRows(ctx context.Context, kind extraction.Kind, up extraction.Upload) ([]extraction.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(up.Data)) == 0 {
		return nil, extraction.ErrNoData
	}

	switch kind {
	case extraction.KindCSV:
		return parseCSV(up.Data)
	case extraction.KindExcel:
		return parseXLSX(up.Data)
	default:
		return nil, fmt.Errorf("%w: %s is not tabular", extraction.ErrUnsupportedFile, kind)
	}
}

func parseCSV(data []byte) ([]extraction.Row, error) {
	// Spreadsheet exports often carry a UTF-8 or UTF-16 byte order mark.
	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, extraction.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extraction.ErrDecode, err)
	}

	var rows []extraction.Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", extraction.ErrDecode, err)
		}
		values := make([]interface{}, len(record))
		for i, v := range record {
			values[i] = v
		}
		if row := buildRow(header, values); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func parseXLSX(data []byte) ([]extraction.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v (legacy .xls workbooks must be saved as .xlsx)", extraction.ErrDecode, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, extraction.ErrNoData
	}
	sheet := sheets[0]

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", extraction.ErrDecode, sheet, err)
	}
	if len(grid) == 0 {
		return nil, extraction.ErrNoData
	}

	header := grid[0]
	var rows []extraction.Row
	for r, cells := range grid[1:] {
		values := make([]interface{}, len(cells))
		for c, raw := range cells {
			values[c] = cellValue(f, sheet, c+1, r+2, raw)
		}
		if row := buildRow(header, values); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// cellValue returns numeric cells as float64 and everything else as text.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) interface{} {
	if raw == "" {
		return raw
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return raw
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}

// buildRow pairs values with header names. Cells past the header are dropped
// and a row with no non-blank value yields nil.
func buildRow(header []string, values []interface{}) extraction.Row {
	row := make(extraction.Row, 0, len(header))
	blank := true
	for i, name := range header {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		if !isBlank(v) {
			blank = false
		}
		row = append(row, extraction.Cell{Column: strings.TrimSpace(name), Value: v})
	}
	if blank {
		return nil
	}
	return row
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
