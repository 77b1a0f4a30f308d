package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record maps canonical keys to numeric values. Any subset of keys is a valid
// partial record; a complete record carries all 32.
type Record map[Key]float64

var ErrIncomplete = errors.New("record is incomplete")

func (r Record) Complete() bool {
	for _, f := range features {
		if _, ok := r[f.Key]; !ok {
			return false
		}
	}
	return true
}

// Missing lists canonical keys not present in r, in submission order.
func (r Record) Missing() []Key {
	var out []Key
	for _, f := range features {
		if _, ok := r[f.Key]; !ok {
			out = append(out, f.Key)
		}
	}
	return out
}

// Populated counts the canonical keys present in r; unknown keys are ignored.
func (r Record) Populated() int {
	n := 0
	for k := range r {
		if _, ok := byKey[k]; ok {
			n++
		}
	}
	return n
}

// Ordered returns the values of a complete record in submission order.
func (r Record) Ordered() ([]float64, error) {
	if missing := r.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, joinKeys(missing))
	}
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = r[f.Key]
	}
	return out, nil
}

// FormString serializes a complete record as the comma-separated form payload
// the prediction service accepts.
func FormString(r Record) (string, error) {
	values, err := r.Ordered()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ","), nil
}

// ParseFormString is the inverse of FormString.
func ParseFormString(s string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != len(features) {
		return nil, fmt.Errorf("form data has %d values, want %d", len(parts), len(features))
	}
	out := make(Record, len(features))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("form data value %d (%s): %w", i, features[i].Key, err)
		}
		out[features[i].Key] = v
	}
	return out, nil
}

// DefaultRecord is the starting point of a blank manual-entry form.
func DefaultRecord() Record {
	out := make(Record, len(features))
	for _, f := range features {
		out[f.Key] = f.Default()
	}
	return out
}

// SortedKeys returns the keys of r in submission order; unknown keys sort last by name.
func (r Record) SortedKeys() []Key {
	keys := make([]Key, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := Index(keys[i]), Index(keys[j])
		switch {
		case a >= 0 && b >= 0:
			return a < b
		case a >= 0:
			return true
		case b >= 0:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

func joinKeys(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
