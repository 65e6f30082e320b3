package zip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrInvalidArchive is wrapped by Extract when the archive cannot be read
var ErrInvalidArchive = errors.New("invalid archive")

// Filter decides which entries are extracted
type Filter func(name string) bool

// SanitizeEntryPath turns an archive entry name into a relative slash path
// that cannot leave the extraction root: "..", "." and empty segments are
// dropped and both separator styles are accepted. An empty result means the
// entry has no usable name.
func SanitizeEntryPath(name string) string {
	segments := strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	kept := segments[:0]
	for _, s := range segments {
		if s == ".." || s == "." || strings.ContainsRune(s, ':') {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, "/")
}

// Extract writes every regular entry of archivePath accepted by filter under
// destDir and returns the relative paths written.
func Extract(archivePath, destDir string, filter Filter) ([]string, error) {
	// a reader returned alongside an error only flags unsafe entry names,
	// which are sanitized below
	reader, err := zip.OpenReader(archivePath)
	if reader == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, archivePath, err)
	}
	defer reader.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if filter != nil && !filter(entry.Name) {
			continue
		}

		rel := SanitizeEntryPath(entry.Name)
		if rel == "" {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return written, fmt.Errorf("entry %q escapes %s", entry.Name, root)
		}

		if err := extractFile(entry, target); err != nil {
			return written, err
		}
		written = append(written, rel)
	}

	return written, nil
}

// extractFile copies one entry to target, creating parent directories
func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open entry %s: %v", ErrInvalidArchive, entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	return dst.Close()
}
