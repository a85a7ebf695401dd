package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// NormalizedText is the ingestor's output: whitespace-normalized,
// case-preserved text plus the word-level tokens the similarity engine
// consumes. Token boundaries are defined once, here.
type NormalizedText struct {
	Text   string
	Tokens []Token
}

type Ingestor struct {
	log *logger.Logger
}

func New(baseLog *logger.Logger) *Ingestor {
	return &Ingestor{log: baseLog.With("component", "Ingestor")}
}

// ParseFormat maps a declared format onto the allow-list. Anything else is
// ErrUnsupportedFormat; no job is created for such uploads.
func ParseFormat(declared string) (domain.DocumentFormat, error) {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "pdf":
		return domain.FormatPDF, nil
	case "docx":
		return domain.FormatDOCX, nil
	case "txt", "text", "plain":
		return domain.FormatTXT, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, declared)
	}
}

// Ingest extracts normalized plain text from raw document bytes. Extraction
// failures are terminal for the revision: there is no partial extraction.
func (i *Ingestor) Ingest(raw []byte, declaredFormat string) (*NormalizedText, error) {
	format, err := ParseFormat(declaredFormat)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrExtraction)
	}

	var text string
	switch format {
	case domain.FormatPDF:
		if !isPDFHeader(raw) {
			return nil, fmt.Errorf("%w: bytes are not a pdf container", domain.ErrExtraction)
		}
		text, err = extractPDF(raw)
	case domain.FormatDOCX:
		if !isZipHeader(raw) {
			return nil, fmt.Errorf("%w: bytes are not a docx container", domain.ErrExtraction)
		}
		text, err = extractDOCX(raw)
	case domain.FormatTXT:
		text = string(raw)
	}
	if err != nil {
		return nil, err
	}

	norm := Normalize(text)
	if norm.Text == "" {
		return nil, fmt.Errorf("%w: no extractable text", domain.ErrExtraction)
	}
	return norm, nil
}

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && bytes.HasPrefix(b, []byte("%PDF-"))
}

func isZipHeader(b []byte) bool {
	return len(b) >= 4 && bytes.HasPrefix(b, []byte("PK\x03\x04"))
}
