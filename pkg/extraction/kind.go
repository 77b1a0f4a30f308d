package extraction

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Kind string

const (
	KindUnknown Kind = ""
	KindCSV     Kind = "csv"
	KindExcel   Kind = "excel"
	KindPDF     Kind = "pdf"
)

// Tabular reports whether the kind is parsed into rows rather than text.
func (k Kind) Tabular() bool {
	return k == KindCSV || k == KindExcel
}

// DetectKind classifies an upload from its declared media type and file name.
// When neither is conclusive the payload itself is sniffed.
func DetectKind(mediaType, name string, data []byte) Kind {
	mt := baseMediaType(mediaType)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case mt == "text/csv" || ext == ".csv":
		return KindCSV
	case strings.Contains(mt, "spreadsheet") || strings.Contains(mt, "excel") || ext == ".xlsx" || ext == ".xls":
		return KindExcel
	case mt == "application/pdf" || ext == ".pdf":
		return KindPDF
	}

	if len(data) == 0 || (mt != "" && mt != "application/octet-stream") {
		return KindUnknown
	}
	return sniffKind(data)
}

func sniffKind(data []byte) Kind {
	detected := mimetype.Detect(data)
	switch {
	case detected.Is("text/csv"):
		return KindCSV
	case detected.Is("application/pdf"):
		return KindPDF
	case detected.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
		detected.Is("application/vnd.ms-excel"):
		return KindExcel
	}
	return KindUnknown
}

func baseMediaType(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
