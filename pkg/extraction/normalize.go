package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/neurotrace/intake/pkg/schema"
)

var (
	genderTokens = map[string]float64{
		"male": 1, "m": 1, "1": 1, "man": 1,
		"female": 0, "f": 0, "0": 0, "woman": 0,
	}
	binaryTokens = map[string]float64{
		"yes": 1, "true": 1, "1": 1, "positive": 1, "present": 1,
		"no": 0, "false": 0, "0": 0, "negative": 0, "absent": 0,
	}
)

type substringRule struct {
	tokens []string
	value  float64
}

// Tested in order; the first rule with a matching token wins.
var educationRules = []substringRule{
	{tokens: []string{"no", "none"}, value: 0},
	{tokens: []string{"primary", "elementary"}, value: 1},
	{tokens: []string{"high", "secondary"}, value: 2},
	{tokens: []string{"bachelor", "undergraduate"}, value: 3},
	{tokens: []string{"master", "graduate"}, value: 4},
	{tokens: []string{"doctor", "phd", "doctorate"}, value: 5},
}

var ethnicityRules = []substringRule{
	{tokens: []string{"caucasian", "white"}, value: 0},
	{tokens: []string{"african", "black"}, value: 1},
	{tokens: []string{"asian"}, value: 2},
}

const ethnicityOther = 3

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Normalize converts a raw cell value for key into its canonical numeric
// form and checks it against the key's domain. Failures are *ConversionError.
func Normalize(key schema.Key, raw interface{}) (float64, error) {
	if _, ok := schema.Lookup(key); !ok {
		return 0, &ConversionError{Key: key, Value: raw, Reason: "unknown feature"}
	}
	v, err := decode(key, raw)
	if err != nil {
		return 0, err
	}
	if reason := schema.CheckValue(key, v); reason != "" {
		return 0, &ConversionError{Key: key, Value: raw, Reason: reason}
	}
	return v, nil
}

func decode(key schema.Key, raw interface{}) (float64, error) {
	if v, ok := numeric(raw); ok {
		return v, nil
	}

	// Text cells go through the token rules before any numeric parse, so a
	// numeric-looking Ethnicity string still falls back to Other.
	s := strings.ToLower(strings.TrimSpace(stringValue(raw)))

	switch {
	case key == schema.Gender:
		if v, ok := genderTokens[s]; ok {
			return v, nil
		}
	case schema.IsBinary(key):
		if v, ok := binaryTokens[s]; ok {
			return v, nil
		}
	case key == schema.EducationLevel:
		if v, ok := matchSubstring(s, educationRules); ok {
			return v, nil
		}
	case key == schema.Ethnicity:
		if v, ok := matchSubstring(s, ethnicityRules); ok {
			return v, nil
		}
		return ethnicityOther, nil
	}

	if m := leadingNumber.FindString(s); m != "" {
		if v, ok := parseNumber(m); ok {
			return v, nil
		}
	}
	return 0, &ConversionError{Key: key, Value: raw}
}

func matchSubstring(s string, rules []substringRule) (float64, bool) {
	for _, rule := range rules {
		for _, token := range rule.tokens {
			if strings.Contains(s, token) {
				return rule.value, true
			}
		}
	}
	return 0, false
}

func numeric(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stringValue(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
