// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMECSV      = "text/csv"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyText         = errors.New("no text could be extracted")
)

// SupportedExtensions lists the file extensions Extract understands.
var SupportedExtensions = []string{".pdf", ".docx", ".txt", ".md", ".csv"}

var extensionTypes = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".txt":  MIMEText,
	".md":   MIMEMarkdown,
	".csv":  MIMECSV,
}

// Result is the extracted text plus what the extractor learned on the way.
type Result struct {
	Text     string
	MIMEType string
	Metadata map[string]any
}

// Extract pulls text out of data. The declared MIME type wins when it is
// specific; otherwise the file extension and then the content decide.
func Extract(ctx context.Context, data []byte, fileName, declaredType string) (*Result, error) {
	mimeType := DetectMIME(data, fileName, declaredType)

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		// the pdf reader panics on some malformed files
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("extract %s as %s failed: %v", fileName, mimeType, r)}
			}
		}()
		res, err := extract(data, fileName, mimeType)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("extract %s: %w", fileName, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		if strings.TrimSpace(out.res.Text) == "" {
			return nil, fmt.Errorf("extract %s: %w", fileName, ErrEmptyText)
		}
		return out.res, nil
	}
}

func extract(data []byte, fileName, mimeType string) (*Result, error) {
	var (
		text string
		meta = map[string]any{}
		err  error
	)
	switch mimeType {
	case MIMEPDF:
		var pages int
		text, pages, err = pdfText(data)
		meta["pages"] = pages
		meta["format"] = "pdf"
	case MIMEDOCX:
		text, err = docxText(data)
		meta["format"] = "docx"
	case MIMECSV:
		var rows int
		text, rows, err = csvText(data)
		meta["rows"] = rows
		meta["format"] = "csv"
	case MIMEText:
		text = plainText(data)
		meta["format"] = "text"
	case MIMEMarkdown:
		text = plainText(data)
		meta["format"] = "markdown"
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, mimeType, fileName)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s as %s failed: %w", fileName, mimeType, err)
	}
	return &Result{Text: text, MIMEType: mimeType, Metadata: meta}, nil
}

// DetectMIME resolves the media type used to pick an extractor.
func DetectMIME(data []byte, fileName, declared string) string {
	if t := normalize(declared); t != "" && t != "application/octet-stream" && t != "application/zip" {
		if canon, ok := supportedType(t); ok {
			return canon
		}
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return t
	}
	if len(data) > 0 {
		detected := normalize(mimetype.Detect(data).String())
		if t, ok := supportedType(detected); ok {
			return t
		}
		return detected
	}
	return normalize(declared)
}

// IsSupportedFile reports whether the file name has an extension Extract handles.
func IsSupportedFile(fileName string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

func supportedType(t string) (string, bool) {
	switch t {
	case MIMEPDF, MIMEDOCX, MIMEText, MIMEMarkdown, MIMECSV:
		return t, true
	case "text/x-markdown":
		return MIMEMarkdown, true
	}
	return "", false
}

func normalize(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		return strings.ToLower(parsed)
	}
	return strings.ToLower(t)
}
