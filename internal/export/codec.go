package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for unsupported formats.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat maps a flag value to a Format, defaulting to JSON.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(value) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Extension returns the file extension of the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Encode writes snap to w.
func Encode(w io.Writer, snap *Snapshot, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Marshal encodes snap into a byte slice.
func Marshal(snap *Snapshot, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a snapshot in either format; JSON is recognised by its
// leading brace.
func Decode(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	format := FormatYAML
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("export: empty document")
			}
			return nil, err
		}
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			continue
		}
		if b == '{' {
			format = FormatJSON
		}
		if err := br.UnreadByte(); err != nil {
			return nil, err
		}
		break
	}
	var snap Snapshot
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(br).Decode(&snap); err != nil {
			return nil, fmt.Errorf("export: decode json: %w", err)
		}
	default:
		if err := yaml.NewDecoder(br).Decode(&snap); err != nil {
			return nil, fmt.Errorf("export: decode yaml: %w", err)
		}
	}
	if snap.Schema > SchemaVersion {
		return nil, fmt.Errorf("export: document schema %d is newer than supported %d", snap.Schema, SchemaVersion)
	}
	return &snap, nil
}
