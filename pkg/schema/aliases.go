package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// synonyms are the alternate spellings seen in exported clinic spreadsheets.
// Every key additionally resolves from itself and its lower_snake_case form.
var synonyms = map[Key][]string{
	Age:                      {"AGE", "patient_age", "PatientAge"},
	Gender:                   {"GENDER", "sex", "Sex", "patient_gender"},
	BMI:                      {"body_mass_index", "BodyMassIndex"},
	SystolicBP:               {"systolic", "sbp"},
	DiastolicBP:              {"diastolic", "dbp"},
	CholesterolTotal:         {"total_cholesterol"},
	CholesterolLDL:           {"ldl_cholesterol", "ldl"},
	CholesterolHDL:           {"hdl_cholesterol", "hdl"},
	CholesterolTriglycerides: {"triglycerides"},
	MMSE:                     {"mmse_score", "mini_mental_state"},
	ADL:                      {"activities_daily_living"},
	EducationLevel:           {"education"},
}

// Resolver maps source column names to canonical keys. It is immutable once
// built and safe for concurrent use.
type Resolver struct {
	aliases map[string]Key
}

var defaultResolver = func() *Resolver {
	r, err := newResolver(nil)
	if err != nil {
		panic(err)
	}
	return r
}()

// DefaultResolver resolves the built-in alias table.
func DefaultResolver() *Resolver {
	return defaultResolver
}

// Resolve trims name and looks it up exactly; there is no fuzzy matching.
func (r *Resolver) Resolve(name string) (Key, bool) {
	key, ok := r.aliases[strings.TrimSpace(name)]
	return key, ok
}

// Aliases returns every spelling that resolves to key, sorted.
func (r *Resolver) Aliases(key Key) []string {
	out := []string{}
	for alias, k := range r.aliases {
		if k == key {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// Len is the number of distinct aliases.
func (r *Resolver) Len() int {
	return len(r.aliases)
}

func newResolver(extra map[Key][]string) (*Resolver, error) {
	r := &Resolver{aliases: make(map[string]Key, 4*len(features))}
	for _, f := range features {
		if err := r.add(f.Key, string(f.Key)); err != nil {
			return nil, err
		}
		if err := r.add(f.Key, SnakeCase(string(f.Key))); err != nil {
			return nil, err
		}
		for _, alias := range synonyms[f.Key] {
			if err := r.add(f.Key, alias); err != nil {
				return nil, err
			}
		}
	}
	for key, list := range extra {
		if Index(key) < 0 {
			return nil, fmt.Errorf("alias file: unknown feature %q", key)
		}
		for _, alias := range list {
			if err := r.add(key, alias); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Resolver) add(key Key, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil
	}
	if existing, ok := r.aliases[alias]; ok && existing != key {
		return fmt.Errorf("alias %q maps to both %s and %s", alias, existing, key)
	}
	r.aliases[alias] = key
	return nil
}

type aliasFile struct {
	Aliases map[Key][]string `yaml:"aliases"`
}

// LoadAliases builds a resolver from the built-in table plus the aliases in a
// YAML file. An empty path yields the default resolver.
func LoadAliases(path string) (*Resolver, error) {
	if path == "" {
		return DefaultResolver(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var file aliasFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(file.Aliases) == 0 {
		return nil, errors.New("alias file declares no aliases")
	}
	return newResolver(file.Aliases)
}

// SnakeCase converts a CamelCase key to lower_snake_case, keeping acronyms
// together: "SystolicBP" -> "systolic_bp", "ADL" -> "adl".
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
