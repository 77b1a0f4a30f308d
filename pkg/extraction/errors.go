package extraction

import (
	"errors"
	"fmt"

	"github.com/neurotrace/intake/pkg/schema"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrNoData          = errors.New("no data found")
	ErrNoFeatures      = errors.New("no recognizable features found")
	ErrDecode          = errors.New("file could not be decoded")

	ErrScannedDocument   = errors.New("document has no readable text")
	ErrEncryptedDocument = errors.New("document is encrypted")
	ErrCorruptDocument   = errors.New("document is corrupted")
)

// ConversionError is a non-fatal failure to normalize one source value.
type ConversionError struct {
	Key    schema.Key
	Value  interface{}
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("Cannot use value %q for field %s: %s", fmt.Sprint(e.Value), e.Key, e.Reason)
	}
	return fmt.Sprintf("Cannot convert value %q to numeric for field %s", fmt.Sprint(e.Value), e.Key)
}

func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

const fallbackAdvice = "Please re-upload the data as a CSV or Excel file, or continue with manual entry."

// Guidance turns a fatal extraction error into the message shown to the user.
// Every message points at a way forward.
func Guidance(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFile):
		return "Unsupported file type. Please use PDF, CSV, or Excel files, or enter the data manually."
	case errors.Is(err, ErrNoData):
		return "No data found in file. " + fallbackAdvice
	case errors.Is(err, ErrNoFeatures):
		return "No recognizable patient features found in the file. Please check the column names or use manual entry."
	case errors.Is(err, ErrEncryptedDocument):
		return "The PDF is encrypted, so its text cannot be read. " + fallbackAdvice
	case errors.Is(err, ErrScannedDocument):
		return "No readable text found in the PDF. It looks like a scanned or image-only document; " +
			"make sure the PDF contains selectable text. " + fallbackAdvice
	case errors.Is(err, ErrCorruptDocument):
		return fmt.Sprintf("The PDF appears to be corrupted or malformed (%v). %s", err, fallbackAdvice)
	case errors.Is(err, ErrDecode):
		return fmt.Sprintf("The file could not be parsed (%v). %s", err, fallbackAdvice)
	default:
		return fmt.Sprintf("Extraction failed: %v. %s", err, fallbackAdvice)
	}
}
