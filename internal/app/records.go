package app

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ReadRecords decodes CSV or JSON input depending on the file extension.
func ReadRecords(name string, r io.Reader) ([]map[string]any, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".ndjson", ".jsonl":
		return ReadJSON(r)
	default:
		return ReadCSV(r)
	}
}

// ReadCSV maps each row to header -> cell. Empty cells are omitted.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var out []map[string]any
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				rec[header[i]] = cell
			}
		}
		out = append(out, rec)
	}
}

// ReadJSON accepts an array of records, an object wrapping one under
// "properties" or "items", or newline-delimited objects.
func ReadJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	var out []map[string]any
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		switch t := v.(type) {
		case []any:
			out = appendObjects(out, t)
		case map[string]any:
			if list, ok := t["properties"].([]any); ok {
				out = appendObjects(out, list)
			} else if list, ok := t["items"].([]any); ok {
				out = appendObjects(out, list)
			} else {
				out = append(out, t)
			}
		default:
			return nil, fmt.Errorf("decode json: unexpected %T", v)
		}
	}
}

func appendObjects(out []map[string]any, list []any) []map[string]any {
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
