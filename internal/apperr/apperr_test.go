package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := New(DigestMismatch, "libraries/a.jar", errors.New("want abc, got def"))
	wrapped := fmt.Errorf("failed to fetch: %w", base)

	assert.Equal(t, DigestMismatch, KindOf(base))
	assert.Equal(t, DigestMismatch, KindOf(wrapped))
	assert.Equal(t, Unknown, KindOf(os.ErrNotExist))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", New(InvalidArchive, "x.jar", nil))

	assert.True(t, errors.Is(err, InvalidArchive))
	assert.False(t, errors.Is(err, MissingArtifact))
}

func TestErrorMessage(t *testing.T) {
	err := Errorf(VersionNotFound, "1.99", "no entry in version list")
	assert.Equal(t, "version_not_found (1.99): no entry in version list", err.Error())
	assert.Equal(t, "invalid_directory", New(InvalidDirectory, "", nil).Error())
}

func TestUnwrapReachesCause(t *testing.T) {
	err := New(DirectoryCreationFailed, "/root/x", os.ErrPermission)
	assert.True(t, errors.Is(err, os.ErrPermission))
}
