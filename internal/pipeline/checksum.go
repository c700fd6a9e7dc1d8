package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SourceChecksum fingerprints a source document so cached unit artifacts are
// keyed to exact content. For a directory source, the hash covers every
// regular file's relative path and content in lexical walk order.
func SourceChecksum(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat source: %w", err)
	}

	h := sha256.New()
	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open source: %w", err)
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("failed to hash source: %w", err)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		io.WriteString(h, rel)
		h.Write([]byte{0})

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		h.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash source directory: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
