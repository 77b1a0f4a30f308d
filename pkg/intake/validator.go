package intake

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errMissingFile = errors.New("file is required")
	errInvalidMode = errors.New("invalid mode")
)

// Entry modes offered by the wizard.
const (
	ModeDoctor  = "doctor"
	ModePatient = "patient"
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func invalid(err error) error {
	return ValidationError{reason: err}
}

// normalizeMode accepts an empty mode as doctor entry.
func normalizeMode(mode string) (string, error) {
	m := strings.TrimSpace(strings.ToLower(mode))
	switch m {
	case "":
		return ModeDoctor, nil
	case ModeDoctor, ModePatient:
		return m, nil
	}
	return "", invalid(fmt.Errorf("mode '%s' not supported: %w", mode, errInvalidMode))
}
