package extraction

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/neurotrace/intake/pkg/schema"
)

type numericPattern struct {
	key schema.Key
	re  *regexp.Regexp
}

// Report wording seen in clinic letters. Each pattern targets a different key,
// so evaluation order does not matter.
var (
	numericPatterns = []numericPattern{
		{key: schema.Age, re: regexp.MustCompile(`(?:age|Age|AGE)[\s:]*(\d{1,3})`)},
		{key: schema.BMI, re: regexp.MustCompile(`(?i)(?:bmi|body mass index)[\s:]*(\d{1,2}\.?\d*)`)},
		{key: schema.SystolicBP, re: regexp.MustCompile(`(?i)(?:systolic|SBP)[\s:]*(\d{2,3})`)},
		{key: schema.DiastolicBP, re: regexp.MustCompile(`(?i)(?:diastolic|DBP)[\s:]*(\d{2,3})`)},
		{key: schema.MMSE, re: regexp.MustCompile(`(?i)(?:mmse|mini.mental)[\s:]*(\d{1,2})`)},
		{key: schema.CholesterolTotal, re: regexp.MustCompile(`(?i)(?:total cholesterol|cholesterol)[\s:]*(\d{2,4})`)},
	}

	flagPatterns = map[schema.Key]*regexp.Regexp{
		schema.Diabetes:     regexp.MustCompile(`(?i)diabetes[\s:]*(?:yes|positive|present)`),
		schema.Hypertension: regexp.MustCompile(`(?i)(?:hypertension|high blood pressure)[\s:]*(?:yes|positive|present)`),
	}
)

// ExtractText recovers the few fields that free-text reports state reliably.
// It never fails: unmatched patterns leave their key unset and captures
// outside the key's domain are reported in Errors.
func ExtractText(text string) Outcome {
	out := Outcome{Features: make(schema.Record)}

	for _, p := range numericPatterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if reason := schema.CheckValue(p.key, v); reason != "" {
			out.Errors = append(out.Errors, fmt.Sprintf("Ignored %s value %q found in text: %s", p.key, m[1], reason))
			continue
		}
		out.Features[p.key] = v
	}

	for key, re := range flagPatterns {
		if re.MatchString(text) {
			out.Features[key] = 1
		}
	}

	return out
}
