package granule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the batch wire encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeBatch reads a batch of the form {"name": {"ETag": ..., "Last-Modified": ...}}.
func DecodeBatch(r io.Reader, format Format) (Batch, error) {
	batch := Batch{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&batch); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml batch: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&batch); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode json batch: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported batch format %q", format)
	}
	if _, ok := batch[""]; ok {
		return nil, errors.New("batch contains an empty granule name")
	}
	return batch, nil
}

// ReadBatchFile decodes a batch from path, or from stdin when path is "-" or empty.
func ReadBatchFile(path string, stdin io.Reader) (Batch, error) {
	if path == "" || path == "-" {
		return DecodeBatch(stdin, FormatJSON)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	return DecodeBatch(f, FormatForPath(path))
}

// EncodeBatch writes the batch as indented JSON.
func EncodeBatch(w io.Writer, batch Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return nil
}
