package sources

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF reads the plain text of a PDF bulletin and parses the NOTAMs in it
func ExtractPDF(path string) ([]RawRecord, error) {
	text, err := PDFText(path)
	if err != nil {
		return nil, err
	}
	return ParseICAO(text)
}

// PDFText returns the plain text content of a PDF file
func PDFText(path string) (text string, err error) {
	defer func() {
		// the PDF reader panics on some malformed cross-reference tables
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read text from %s: %w", path, err)
	}
	return string(data), nil
}
