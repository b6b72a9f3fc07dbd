// Package ingest turns uploaded files into embedded chunks in the vector
// store: extract → detect language → chunk → embed → upsert.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Sentinel errors for caller-side classification (the API layer maps
// these to 400 responses).
var (
	ErrUnsupportedFileType = fmt.Errorf("unsupported file type")
	ErrFileTooLarge        = fmt.Errorf("file too large")
	ErrNoContent           = fmt.Errorf("no text content")
)

// fileType returns the lowercase extension of filename without the dot.
func fileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// ExtractText converts raw file bytes to plain text. Supported types:
// txt, md (verbatim), json (flattened key paths), csv (rows joined).
func ExtractText(filename string, data []byte) (string, error) {
	switch ft := fileType(filename); ft {
	case "txt", "md":
		return string(data), nil
	case "json":
		return extractJSON(data)
	case "csv":
		return extractCSV(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ft)
	}
}

// extractJSON flattens a JSON document into "path: value" lines so nested
// values stay searchable as text.
func extractJSON(data []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}

	var lines []string
	flattenJSON("", doc, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenJSON(path string, v any, lines *[]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			flattenJSON(childPath, child, lines)
		}
	case []any:
		for i, child := range val {
			flattenJSON(fmt.Sprintf("%s[%d]", path, i), child, lines)
		}
	case nil:
		*lines = append(*lines, fmt.Sprintf("%s: null", path))
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", path, val))
	}
}

// extractCSV renders each record as "header: value" pairs, one row per
// paragraph, so chunk boundaries fall between rows.
func extractCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	header := records[0]
	var rows []string
	for _, record := range records[1:] {
		var fields []string
		for i, cell := range record {
			if i < len(header) {
				fields = append(fields, header[i]+": "+cell)
			} else {
				fields = append(fields, cell)
			}
		}
		rows = append(rows, strings.Join(fields, ", "))
	}
	if len(rows) == 0 {
		return strings.Join(header, ", "), nil
	}
	return strings.Join(rows, "\n\n"), nil
}
