package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotrace/intake/pkg/schema"
)

func row(pairs ...interface{}) Row {
	r := make(Row, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		r = append(r, Cell{Column: pairs[i].(string), Value: pairs[i+1]})
	}
	return r
}

func TestExtractRowsMapsAliasesAndNormalizes(t *testing.T) {
	out, err := ExtractRows([]Row{row("Age", "72", "Sex", "Female", "BMI", "27.4", "smoking", "Yes")}, nil)
	require.NoError(t, err)

	assert.Equal(t, schema.Record{
		schema.Age:     72,
		schema.Gender:  0,
		schema.BMI:     27.4,
		schema.Smoking: 1,
	}, out.Features)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Unmapped)
	assert.Zero(t, out.RowsIgnored)
}

func TestExtractRowsFirstRowOnly(t *testing.T) {
	rows := []Row{
		row("Age", 70, "MMSE", 25),
		row("Age", 81, "MMSE", 18),
		row("Age", 66, "MMSE", 29),
	}
	out, err := ExtractRows(rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 70.0, out.Features[schema.Age])
	assert.Equal(t, 25.0, out.Features[schema.MMSE])
	assert.Equal(t, 2, out.RowsIgnored)
}

func TestExtractRowsCollectsConversionErrors(t *testing.T) {
	out, err := ExtractRows([]Row{row("Age", "seventy", "BMI", 24.1, "Diabetes", "maybe")}, nil)
	require.NoError(t, err)

	assert.Equal(t, schema.Record{schema.BMI: 24.1}, out.Features)
	require.Len(t, out.Errors, 2)
	assert.Contains(t, out.Errors[0], "Failed to convert Age")
	assert.Contains(t, out.Errors[1], "Failed to convert Diabetes")
}

func TestExtractRowsSkipsBlankAndReportsUnmapped(t *testing.T) {
	out, err := ExtractRows([]Row{row("PatientID", "A-17", "Age", "", "hdl", "55", "Notes", nil)}, nil)
	require.NoError(t, err)

	assert.Equal(t, schema.Record{schema.CholesterolHDL: 55}, out.Features)
	assert.Equal(t, []string{"PatientID", "Notes"}, out.Unmapped)
	assert.Empty(t, out.Errors)
}

func TestExtractRowsEmptyInput(t *testing.T) {
	_, err := ExtractRows(nil, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestExtractRowsNoRecognizableColumns(t *testing.T) {
	out, err := ExtractRows([]Row{row("foo", 1, "bar", 2)}, nil)
	assert.ErrorIs(t, err, ErrNoFeatures)
	assert.Empty(t, out.Features)
	assert.Equal(t, []string{"foo", "bar"}, out.Unmapped)
}
