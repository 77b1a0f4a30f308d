// Package document reads the text layer of PDF uploads for the unstructured
// extractor. It does no OCR; image-only pages contribute nothing.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/extraction"
)

// DefaultMaxPages bounds the pages read from a single upload.
const DefaultMaxPages = 50

var _ extraction.TextReader = (*Reader)(nil)

type Reader struct {
	maxPages int
}

func NewReader(maxPages int) *Reader {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Reader{maxPages: maxPages}
}

// ReadText returns the page text joined with newlines in page order. Pages
// that fail to decode are skipped; the document only fails as a whole when it
// cannot be opened.
func (r *Reader) ReadText(ctx context.Context, up extraction.Upload) (text string, err error) {
	if len(up.Data) == 0 {
		return "", extraction.ErrNoData
	}

	// The parser panics on some malformed object streams.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", extraction.ErrCorruptDocument, rec)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(up.Data), int64(len(up.Data)))
	if err != nil {
		return "", classify(err)
	}

	log := logger.WithUpload(up.ID, up.Name)
	total := doc.NumPage()
	pages := total
	if pages > r.maxPages {
		log.WithField("pages", total).Warnf("reading first %d pages only", r.maxPages)
		pages = r.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			log.WithError(err).WithField("page", i).Debug("skipping unreadable page")
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

func classify(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return fmt.Errorf("%w: %v", extraction.ErrEncryptedDocument, err)
	}
	return fmt.Errorf("%w: %v", extraction.ErrCorruptDocument, err)
}
