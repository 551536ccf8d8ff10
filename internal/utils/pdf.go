package utils

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	// MaxPDFPages limits the number of pages to process
	MaxPDFPages = 50

	// MaxExtractedTextSize limits the extracted text size (1MB)
	MaxExtractedTextSize = 1024 * 1024
)

// PDFMetadata contains information about an uploaded policy document
type PDFMetadata struct {
	PageCount int
	Text      string
}

// ValidatePDF checks if a file is a valid PDF by attempting to open it
func ValidatePDF(data []byte) error {
	reader := bytes.NewReader(data)
	_, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	return nil
}

// ExtractPDFText extracts plain text from a policy PDF. The text is kept
// as a grounding fallback for analysis when no rasterized pages are
// supplied with the upload.
func ExtractPDFText(data []byte) (*PDFMetadata, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	totalPages := pdfReader.NumPage()
	if totalPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if totalPages > MaxPDFPages {
		return nil, fmt.Errorf("PDF has too many pages (%d), max allowed is %d", totalPages, MaxPDFPages)
	}

	var textBuilder strings.Builder
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages with extraction errors, don't fail completely
			continue
		}

		cleaned := cleanPDFText(text)
		if cleaned != "" {
			textBuilder.WriteString(fmt.Sprintf("\n--- Page %d ---\n", pageNum))
			textBuilder.WriteString(cleaned)
			textBuilder.WriteString("\n")
		}

		if textBuilder.Len() > MaxExtractedTextSize {
			textBuilder.WriteString("\n... [Content truncated - size limit reached]")
			break
		}
	}

	return &PDFMetadata{
		PageCount: totalPages,
		Text:      textBuilder.String(),
	}, nil
}

// cleanPDFText cleans extracted PDF text
func cleanPDFText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = normalizeWhitespace(text)
	return strings.TrimSpace(text)
}

// normalizeWhitespace collapses runs of whitespace, preserving newlines
func normalizeWhitespace(text string) string {
	var result strings.Builder
	lastWasSpace := false

	for _, r := range text {
		if unicode.IsSpace(r) {
			if r == '\n' {
				result.WriteRune('\n')
				lastWasSpace = false
			} else if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// TextPreview returns the first maxChars characters of text, breaking at
// a word boundary where possible.
func TextPreview(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	preview := text[:maxChars]
	lastSpace := strings.LastIndex(preview, " ")
	if lastSpace > maxChars/2 {
		preview = preview[:lastSpace]
	}

	return preview + "..."
}
