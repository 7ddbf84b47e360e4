// Package codec reads and writes board export files.
package codec

import (
	"io"
	"path/filepath"
	"strings"

	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
)

// Importer decodes an export file into an envelope
type Importer interface {
	Parse(r io.Reader) (board.Envelope, error)
	Format() string
}

// Exporter encodes an envelope
type Exporter interface {
	Export(env board.Envelope, w io.Writer) error
	Format() string
}

var (
	importers = map[string]Importer{
		"json": NewJSONCodec(),
		"yaml": NewYAMLCodec(),
	}
	exporters = map[string]Exporter{
		"json":     NewJSONCodec(),
		"yaml":     NewYAMLCodec(),
		"markdown": NewMarkdownCodec(),
	}
)

// ImporterFor returns the importer for a format name
func ImporterFor(format string) (Importer, error) {
	if imp, ok := importers[normalizeFormat(format)]; ok {
		return imp, nil
	}
	return nil, pkgerrors.NewValidationError("unsupported import format").WithDetail("format", format)
}

// ExporterFor returns the exporter for a format name
func ExporterFor(format string) (Exporter, error) {
	if exp, ok := exporters[normalizeFormat(format)]; ok {
		return exp, nil
	}
	return nil, pkgerrors.NewValidationError("unsupported export format").WithDetail("format", format)
}

// FormatFromPath guesses the format from a file extension, defaulting to json
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "json"
	}
}

// ContentType returns the MIME type for a format
func ContentType(format string) string {
	switch normalizeFormat(format) {
	case "yaml":
		return "application/yaml"
	case "markdown":
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

func normalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "json":
		return "json"
	case "yml", "yaml":
		return "yaml"
	case "md", "markdown":
		return "markdown"
	default:
		return f
	}
}

func malformed(err error) error {
	return pkgerrors.NewValidationError("import file could not be decoded").
		WithCode(pkgerrors.CodeMalformedImport).
		WithCause(err)
}
