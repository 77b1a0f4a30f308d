package prediction

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the largest handwriting image accepted.
const MaxImageBytes = 10 * 1024 * 1024

var ErrInvalidImage = errors.New("invalid image")

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/bmp"}

// Image is a handwriting sample attached to a submission.
type Image struct {
	Name string
	Data []byte
}

// ValidateImage checks size and sniffed content type and returns the detected
// media type. The declared type of the upload is not trusted.
func ValidateImage(img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrInvalidImage)
	}
	if len(img.Data) > MaxImageBytes {
		return "", fmt.Errorf("%w: Image file size must be less than 10MB", ErrInvalidImage)
	}
	detected := mimetype.Detect(img.Data)
	for _, t := range allowedImageTypes {
		if detected.Is(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: Please upload a valid image file (JPEG, PNG, or BMP), got %s", ErrInvalidImage, detected.String())
}
