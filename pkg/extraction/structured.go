package extraction

import (
	"fmt"
	"strings"

	"github.com/neurotrace/intake/pkg/schema"
)

// Cell is one column of a parsed row, in source column order.
type Cell struct {
	Column string
	Value  interface{}
}

// Row is a parsed record keyed by header name.
type Row []Cell

// Outcome is what either extractor variant produces before confidence scoring.
type Outcome struct {
	Features    schema.Record
	Errors      []string
	Unmapped    []string
	RowsIgnored int
}

// ExtractRows maps the first row onto the canonical schema. Only one patient
// per file is supported; later rows are counted in RowsIgnored and dropped.
func ExtractRows(rows []Row, resolver *schema.Resolver) (Outcome, error) {
	if len(rows) == 0 {
		return Outcome{}, ErrNoData
	}
	if resolver == nil {
		resolver = schema.DefaultResolver()
	}

	out := Outcome{
		Features:    make(schema.Record),
		RowsIgnored: len(rows) - 1,
	}

	for _, cell := range rows[0] {
		column := strings.TrimSpace(cell.Column)
		key, ok := resolver.Resolve(column)
		if !ok {
			if column != "" {
				out.Unmapped = append(out.Unmapped, column)
			}
			continue
		}
		if !present(cell.Value) {
			continue
		}
		v, err := Normalize(key, cell.Value)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("Failed to convert %s: %v", column, err))
			continue
		}
		out.Features[key] = v
	}

	if len(out.Features) == 0 {
		return out, ErrNoFeatures
	}
	return out, nil
}

func present(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	default:
		return true
	}
}
