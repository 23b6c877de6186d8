// Package dataset reads evaluation inputs and reads/writes JSONL run data.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// ErrEmpty is returned when an input file contains no rows.
var ErrEmpty = errors.New("dataset contains no rows")

// maxLine bounds a single JSONL row; orchestrator articles run long.
const maxLine = 16 << 20

// ReadInputs loads {request, instructions} rows from a .jsonl file or a YAML list.
func ReadInputs(path string) ([]models.Input, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return readYAMLInputs(path)
	default:
		var inputs []models.Input
		err := readJSONL(path, func(line int, raw []byte) error {
			var in models.Input
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("%s:%d: %w", path, line, err)
			}
			if strings.TrimSpace(in.Request) == "" {
				return fmt.Errorf("%s:%d: missing request", path, line)
			}
			inputs = append(inputs, in)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(inputs) == 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
		}
		return inputs, nil
	}
}

func readYAMLInputs(path string) ([]models.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	var inputs []models.Input
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, in := range inputs {
		if strings.TrimSpace(in.Request) == "" {
			return nil, fmt.Errorf("%s: row %d: missing request", path, i+1)
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return inputs, nil
}

// ReadRecords loads run records written by WriteRecords.
func ReadRecords(path string) ([]models.RunRecord, error) {
	var records []models.RunRecord
	err := readJSONL(path, func(line int, raw []byte) error {
		var rec models.RunRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return records, nil
}

// WriteRecords writes run records as JSONL, one record per line.
func WriteRecords(path string, records []models.RunRecord) error {
	rows := make([]any, len(records))
	for i := range records {
		rows[i] = records[i]
	}
	return WriteJSONL(path, rows)
}

// WriteJSONL writes each row as one JSON line, replacing any existing file.
// The file is written to a temp sibling first and renamed into place.
func WriteJSONL(path string, rows []any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeJSONL(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// EncodeJSONL writes rows to w, one compact JSON value per line.
func EncodeJSONL(w io.Writer, rows []any) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// readJSONL calls fn for each non-blank line with its 1-based line number.
func readJSONL(path string, fn func(line int, raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := fn(line, raw); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
