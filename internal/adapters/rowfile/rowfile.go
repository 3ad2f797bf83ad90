// Package rowfile reads listing import files (CSV with a header row, or JSON) into
// generic records for the import mapper.
package rowfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

var ErrEmpty = errors.New("rowfile: no header row")

// FormatOf picks the format from the file extension; anything that isn't .json is CSV.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return CSV
}

func ReadFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rowfile: open %q: %w", path, err)
	}
	defer f.Close()
	return Read(f, FormatOf(path))
}

func Read(r io.Reader, f Format) ([]map[string]any, error) {
	if f == JSON {
		return readJSON(r)
	}
	return readCSV(r)
}

// readCSV keys each record by its lower-cased header. Empty cells are omitted so the
// mapper sees them as missing.
func readCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("rowfile: header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []map[string]any
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("rowfile: record %d: %w", len(rows)+1, err)
		}
		row := make(map[string]any, len(header))
		for i, v := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				row[header[i]] = v
			}
		}
		rows = append(rows, row)
	}
}

// readJSON accepts a top-level array or an object wrapping one under "listings" or "data".
func readJSON(r io.Reader) ([]map[string]any, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rowfile: read: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, ErrEmpty
	}

	if b[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, fmt.Errorf("rowfile: decode array: %w", err)
		}
		return rows, nil
	}

	var wrap struct {
		Listings []map[string]any `json:"listings"`
		Data     []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(b, &wrap); err != nil {
		return nil, fmt.Errorf("rowfile: decode object: %w", err)
	}
	if wrap.Listings != nil {
		return wrap.Listings, nil
	}
	return wrap.Data, nil
}
