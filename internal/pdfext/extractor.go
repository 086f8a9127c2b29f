// Package pdfext extracts plain text from uploaded PDF bank statements.
package pdfext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls text content out of PDF documents for downstream
// transaction extraction.
type Extractor struct{}

// NewExtractor creates a PDF text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText returns the concatenated text of every page in the document.
// Pages that fail to decode are skipped; the document is only rejected when
// it cannot be opened at all or yields no text anywhere.
func (e *Extractor) ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	extracted := strings.TrimSpace(sb.String())
	if extracted == "" {
		return "", fmt.Errorf("no extractable text in PDF")
	}
	return extracted, nil
}
