// Package codec reads source documents into ordered text units and writes
// condensed units back out as a document of the same shape. Chapter ordering
// is authoritative input: codecs never reorder units.
package codec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bookforge/abridge/internal/types"
)

// Sentinel errors for the codec package.
var (
	// ErrUnsupportedFormat is returned for a path no codec can handle.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNoUnits is returned when a source yields zero text units.
	ErrNoUnits = errors.New("no text units extracted")
)

// Reader splits a source document into an ordered list of text units.
type Reader interface {
	Split(ctx context.Context, path string) ([]types.TextUnit, error)
}

// Writer merges unit outcomes, in index order, into an output document.
type Writer interface {
	Merge(ctx context.Context, units []types.UnitOutcome, outPath string) error
}

// ReaderFor selects a reader by path: a directory of text files, or a file
// by extension (.epub, .pdf, .txt).
func ReaderFor(path string) (Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return &TextDirReader{}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return &EPUBReader{}, nil
	case ".pdf":
		return &PDFReader{}, nil
	case ".txt", ".text", ".md":
		return &TextFileReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// WriterFor selects a writer by output path extension: .epub for an EPUB
// document, anything else is written as a directory of chapter text files.
func WriterFor(outPath string) (Writer, error) {
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".epub":
		return &EPUBWriter{}, nil
	case "", ".txt", ".text":
		return &TextDirWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(outPath))
	}
}
