package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/clearcite/integrity-engine/internal/domain"
)

// extractPDF reads the plain text stream of a PDF. The parser panics on some
// malformed files, so the whole call is fenced and surfaces ErrExtraction.
func extractPDF(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: pdf parse panic: %v", domain.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: corrupt pdf: %v", domain.ErrExtraction, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text extraction: %v", domain.ErrExtraction, err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: pdf text read: %v", domain.ErrExtraction, err)
	}
	return string(data), nil
}
