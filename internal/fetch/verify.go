package fetch

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ippclub/craftsync/internal/apperr"
)

// chunkSize bounds the buffer used to stream files through the digest
const chunkSize = 64 * 1024

// UnknownSize disables the size comparison of Check
const UnknownSize int64 = -1

// Check returns nil if the file at path has the expected size and, when digest
// is non-empty, the expected SHA-1. A file whose digest does not match is
// deleted before the DigestMismatch error is returned. A valid file is left
// untouched.
func Check(path string, size int64, digest string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if size != UnknownSize && info.Size() != size {
		return apperr.Errorf(apperr.FileSizeMismatch, path, "want %d bytes, got %d", size, info.Size())
	}
	if digest == "" {
		return nil
	}

	got, err := HashFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, digest) {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to remove corrupt file: %w", rmErr)
		}
		return apperr.Errorf(apperr.DigestMismatch, path, "want %s, got %s", digest, got)
	}
	return nil
}

// HashFile returns the hex SHA-1 of the file, streamed in fixed-size chunks
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha1.New()
	if _, err := io.CopyBuffer(hasher, file, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
