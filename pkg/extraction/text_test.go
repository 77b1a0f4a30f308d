package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neurotrace/intake/pkg/schema"
)

const clinicLetter = `Referral summary
Patient age: 72
BMI: 27.4
Blood pressure systolic 145 / diastolic 90
MMSE: 22
Total cholesterol: 210
Diabetes: yes
Hypertension: present`

func TestExtractTextReport(t *testing.T) {
	out := ExtractText(clinicLetter)

	assert.Equal(t, schema.Record{
		schema.Age:              72,
		schema.BMI:              27.4,
		schema.SystolicBP:       145,
		schema.DiastolicBP:      90,
		schema.MMSE:             22,
		schema.CholesterolTotal: 210,
		schema.Diabetes:         1,
		schema.Hypertension:     1,
	}, out.Features)
	assert.Empty(t, out.Errors)
}

func TestExtractTextFlagsNeedAffirmation(t *testing.T) {
	out := ExtractText("Diabetes: no. Hypertension: negative.")
	assert.Empty(t, out.Features)
}

func TestExtractTextIgnoresOutOfDomainCaptures(t *testing.T) {
	out := ExtractText("MMSE: 45, age 68")

	assert.Equal(t, schema.Record{schema.Age: 68}, out.Features)
	if assert.Len(t, out.Errors, 1) {
		assert.Contains(t, out.Errors[0], "MMSE")
	}
}

func TestExtractTextNoMatches(t *testing.T) {
	out := ExtractText("The quick brown fox jumps over the lazy dog.")
	assert.Empty(t, out.Features)
	assert.Empty(t, out.Errors)
}
