package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidateRecord returns the form-layer violations of r. Unknown keys are
// reported; with requireComplete every canonical key must be present.
func ValidateRecord(r Record, requireComplete bool) []string {
	var problems []string
	for _, f := range features {
		v, ok := r[f.Key]
		if !ok {
			if requireComplete && f.Required {
				problems = append(problems, fmt.Sprintf("%s is required", f.Label))
			}
			continue
		}
		problems = append(problems, checkValue(f, v)...)
	}
	for _, k := range r.SortedKeys() {
		if Index(k) < 0 {
			problems = append(problems, fmt.Sprintf("%s is not a known feature", k))
		}
	}
	return problems
}

// CheckValue reports why v is outside key's domain, or "" when it is valid.
func CheckValue(key Key, v float64) string {
	f, ok := Lookup(key)
	if !ok {
		return fmt.Sprintf("%s is not a known feature", key)
	}
	return strings.Join(checkValue(f, v), "; ")
}

func checkValue(f Feature, v float64) []string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []string{fmt.Sprintf("%s must be a finite number", f.Label)}
	}
	if len(f.Options) > 0 {
		if f.Contains(v) {
			return nil
		}
		valid := make([]string, len(f.Options))
		for i, opt := range f.Options {
			valid[i] = strconv.FormatFloat(opt.Value, 'f', -1, 64)
		}
		return []string{fmt.Sprintf("%s must be one of: %s", f.Label, strings.Join(valid, ", "))}
	}
	var out []string
	if v < f.Min {
		out = append(out, fmt.Sprintf("%s must be at least %s", f.Label, strconv.FormatFloat(f.Min, 'f', -1, 64)))
	}
	if v > f.Max {
		out = append(out, fmt.Sprintf("%s must not exceed %s", f.Label, strconv.FormatFloat(f.Max, 'f', -1, 64)))
	}
	return out
}
