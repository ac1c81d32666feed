package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func plainText(b []byte) string {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// csvText renders each record as "header: value" pairs so rows stay
// readable once chunked away from the header line.
func csvText(b []byte) (string, int, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return "", 0, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", 0, nil
	}

	header := records[0]
	var out strings.Builder
	out.WriteString(strings.Join(header, ", "))
	out.WriteString("\n\n")
	for _, rec := range records[1:] {
		parts := make([]string, 0, len(rec))
		for i, v := range rec {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				parts = append(parts, strings.TrimSpace(header[i])+": "+v)
			} else {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			out.WriteString(strings.Join(parts, "; "))
			out.WriteString(".\n")
		}
	}
	return out.String(), len(records) - 1, nil
}
