package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/triangle/utility/kar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressListExtract(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "triangle.vert.spv"), []byte("vertex"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "triangle.frag.spv"), []byte("fragment"), 0o644))

	archive := filepath.Join(t.TempDir(), "shaders.kar")
	require.NoError(t, compressDir(src, archive, kar.Header{Author: "tester", Version: 3}))

	var listing bytes.Buffer
	require.NoError(t, listArchive(&listing, archive))
	assert.Contains(t, listing.String(), "author: tester, version: 3")
	assert.Contains(t, listing.String(), "nested/triangle.frag.spv")
	assert.Contains(t, listing.String(), "triangle.vert.spv")

	dst := t.TempDir()
	require.NoError(t, extractArchive(archive, dst))
	data, err := os.ReadFile(filepath.Join(dst, "nested", "triangle.frag.spv"))
	require.NoError(t, err)
	assert.Equal(t, "fragment", string(data))
	data, err = os.ReadFile(filepath.Join(dst, "triangle.vert.spv"))
	require.NoError(t, err)
	assert.Equal(t, "vertex", string(data))
}

func TestCompressWillNotOverwrite(t *testing.T) {
	src := t.TempDir()
	existing := filepath.Join(t.TempDir(), "out.kar")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))

	assert.Error(t, compressDir(src, existing, kar.Header{}))
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestListNotAnArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.kar")
	require.NoError(t, os.WriteFile(bad, []byte("not an archive at all"), 0o644))
	err := listArchive(&bytes.Buffer{}, bad)
	assert.ErrorIs(t, err, kar.ErrFileFormat)
}
