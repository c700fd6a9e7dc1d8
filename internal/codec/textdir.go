package codec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bookforge/abridge/internal/types"
)

// TextFileReader treats a single plain-text file as a one-unit document.
type TextFileReader struct{}

var _ Reader = (*TextFileReader)(nil)

func (r *TextFileReader) Split(ctx context.Context, path string) ([]types.TextUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	body := strings.TrimSpace(string(data))
	if body == "" {
		return nil, ErrNoUnits
	}

	return []types.TextUnit{{
		Index: 0,
		Title: titleFromFilename(path),
		Body:  body,
	}}, nil
}

// TextDirReader reads a directory of chapter text files, one unit per file,
// ordered by filename. This is the inverse of TextDirWriter's layout.
type TextDirReader struct{}

var _ Reader = (*TextDirReader)(nil)

func (r *TextDirReader) Split(ctx context.Context, path string) ([]types.TextUnit, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".txt" || ext == ".text" || ext == ".md" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	units := make([]types.TextUnit, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		body := strings.TrimSpace(string(data))
		if body == "" {
			continue
		}
		units = append(units, types.TextUnit{
			Index: len(units),
			Title: titleFromFilename(name),
			Body:  body,
		})
	}

	if len(units) == 0 {
		return nil, ErrNoUnits
	}
	return units, nil
}

// TextDirWriter writes unit outcomes as plain text. A path ending in .txt
// gets a single concatenated file; any other path becomes a directory with
// one numbered chapter file per unit.
type TextDirWriter struct{}

var _ Writer = (*TextDirWriter)(nil)

func (w *TextDirWriter) Merge(ctx context.Context, units []types.UnitOutcome, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(units) == 0 {
		return ErrNoUnits
	}

	ordered := make([]types.UnitOutcome, len(units))
	copy(ordered, units)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	ext := strings.ToLower(filepath.Ext(outPath))
	if ext == ".txt" || ext == ".text" {
		return w.writeSingleFile(ordered, outPath)
	}
	return w.writeDirectory(ordered, outPath)
}

func (w *TextDirWriter) writeSingleFile(units []types.UnitOutcome, outPath string) error {
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var sb strings.Builder
	for i, unit := range units {
		if i > 0 {
			sb.WriteString("\n\n\n")
		}
		if unit.Title != "" {
			sb.WriteString(unit.Title)
			sb.WriteString("\n\n")
		}
		sb.WriteString(unit.Body)
	}
	sb.WriteString("\n")

	if err := os.WriteFile(outPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func (w *TextDirWriter) writeDirectory(units []types.UnitOutcome, outPath string) error {
	if err := os.MkdirAll(outPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, unit := range units {
		name := fmt.Sprintf("%04d_%s.txt", unit.Index, sanitizeFilename(unit.Title))
		content := unit.Body
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		if err := os.WriteFile(filepath.Join(outPath, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// titleFromFilename derives a display title from a chapter filename: strips
// the extension and any numeric ordering prefix, and restores spaces.
func titleFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if i := strings.IndexByte(name, '_'); i > 0 && isDigits(name[:i]) {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "_", " ")

	if name == "" {
		return "Untitled"
	}
	return name
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// sanitizeFilename reduces a title to a safe filename fragment.
func sanitizeFilename(title string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.Trim(sb.String(), "_")
	if name == "" {
		return "untitled"
	}
	if len(name) > 60 {
		name = strings.Trim(name[:60], "_")
	}
	return name
}
