package extract

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// pdfText extracts plain text and the page count from a PDF.
func pdfText(b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, nil
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", 0, err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", 0, err
	}
	return string(out), pdfReader.NumPage(), nil
}
