// Package extract turns local documents into plain text.
// Each supported format is a pure parser from file bytes to text, registered
// in a table keyed by lowercase file extension. The Extractor dispatches on
// the extension of the path it is given.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when no parser is registered for the
	// file's extension.
	ErrUnsupportedFormat = errors.New("extract: unsupported format")

	// ErrRead wraps every I/O, decoding, or parse failure for a supported file.
	ErrRead = errors.New("extract: read failed")
)

// Parser converts the raw bytes of one document into plain text.
type Parser func(data []byte) (string, error)

// Extractor dispatches a file to the parser registered for its extension.
// It holds no mutable state after construction and is safe for concurrent use.
type Extractor struct {
	// parsers maps a lowercase extension (with leading dot) to its parser.
	parsers map[string]Parser
}

// New returns an Extractor with the built-in .txt, .pdf and .docx parsers.
func New() *Extractor {
	return &Extractor{
		parsers: map[string]Parser{
			".txt":  ParseText,
			".pdf":  ParsePDF,
			".docx": ParseDOCX,
		},
	}
}

// Register adds or replaces the parser for ext. ext is normalised to a
// lowercase value with a leading dot.
func (e *Extractor) Register(ext string, p Parser) {
	e.parsers[normaliseExt(ext)] = p
}

// Extensions returns the supported extensions in sorted order.
func (e *Extractor) Extensions() []string {
	exts := make([]string, 0, len(e.parsers))
	for ext := range e.parsers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supports reports whether path has an extension with a registered parser.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.parsers[normaliseExt(filepath.Ext(path))]
	return ok
}

// Extract reads path and returns its plain-text content.
// Unsupported extensions yield ErrUnsupportedFormat; any other failure is
// wrapped with ErrRead and names the file.
func (e *Extractor) Extract(path string) (string, error) {
	ext := normaliseExt(filepath.Ext(path))
	parse, ok := e.parsers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRead, filepath.Base(path), err)
	}

	text, err := parse(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRead, filepath.Base(path), err)
	}
	return text, nil
}

// normaliseExt lowercases ext and ensures it starts with a dot.
func normaliseExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
