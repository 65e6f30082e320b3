package zip

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, body := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestSanitizeEntryPath(t *testing.T) {
	tests := map[string]string{
		"liblwjgl.dylib":              "liblwjgl.dylib",
		"../../evil.dylib":            "evil.dylib",
		"/abs/path/lib.so":            "abs/path/lib.so",
		"a//b///c.so":                 "a/b/c.so",
		`windows\x64\lwjgl.dll`:       "windows/x64/lwjgl.dll",
		"./a/./b/../c.so":             "a/b/c.so",
		`C:\Windows\system32\bad.dll`: "Windows/system32/bad.dll",
		"..":                          "",
		"":                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeEntryPath(in), in)
	}
}

func TestExtractFiltersAndContainsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "natives.jar")
	writeArchive(t, archive, map[string]string{
		"META-INF/MANIFEST.MF":    "Manifest-Version: 1.0",
		"liblwjgl.dylib":          "lwjgl",
		"macos/arm64/libgl.dylib": "gl",
		"../../evil.dylib":        "evil",
	})

	natives := filepath.Join(dir, "versions", "1.21", "1.21-natives")
	written, err := Extract(archive, natives, func(name string) bool {
		return strings.HasSuffix(name, ".dylib")
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"liblwjgl.dylib", "macos/arm64/libgl.dylib", "evil.dylib"}, written)

	data, err := os.ReadFile(filepath.Join(natives, "evil.dylib"))
	require.NoError(t, err)
	assert.Equal(t, "evil", string(data))

	assert.NoFileExists(t, filepath.Join(dir, "evil.dylib"))
	assert.NoFileExists(t, filepath.Join(dir, "versions", "evil.dylib"))
	assert.NoFileExists(t, filepath.Join(natives, "META-INF", "MANIFEST.MF"))
	assert.FileExists(t, filepath.Join(natives, "macos", "arm64", "libgl.dylib"))
}

func TestExtractOverwritesPreviousExtraction(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.jar")
	writeArchive(t, archive, map[string]string{"lib.so": "new"})

	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "lib.so"), []byte("old and longer"), 0644))

	_, err := Extract(archive, out, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "lib.so"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestExtractInvalidArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "broken.jar")
	require.NoError(t, os.WriteFile(archive, []byte("this is not a zip"), 0644))

	_, err := Extract(archive, filepath.Join(dir, "out"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArchive))

	_, err = Extract(filepath.Join(dir, "missing.jar"), filepath.Join(dir, "out"), nil)
	assert.True(t, errors.Is(err, ErrInvalidArchive))
}
