package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is an artifact encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// FormatFor picks the encoding from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported model artifact extension %q (want .json, .msgpack or .mpk)", filepath.Ext(path))
	}
}

// Decode parses and validates an artifact.
func Decode(data []byte, format Format) (*Artifact, error) {
	var a Artifact
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &a)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &a)
	default:
		return nil, fmt.Errorf("unsupported model format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s model: %w", format, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Encode serializes an artifact.
func Encode(a *Artifact, format Format) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(a, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(a)
	default:
		return nil, fmt.Errorf("unsupported model format %q", format)
	}
}

// Load reads an artifact from disk.
func Load(path string) (*Artifact, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Decode(data, format)
}

// Save writes an artifact to disk, replacing any existing file.
func Save(a *Artifact, path string) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(a, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}
