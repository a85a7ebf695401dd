package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/clearcite/integrity-engine/internal/domain"
)

// extractDOCX pulls the text runs out of word/document.xml. Structure beyond
// paragraph breaks (tables, headers, styling) is flattened.
func extractDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: corrupt docx container: %v", domain.ErrExtraction, err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: open document.xml: %v", domain.ErrExtraction, err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: docx missing word/document.xml", domain.ErrExtraction)
	}
	defer docXML.Close()

	var b strings.Builder
	dec := xml.NewDecoder(docXML)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed document.xml: %v", domain.ErrExtraction, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
