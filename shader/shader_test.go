package shader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/core/coretest"
	"github.com/devblok/triangle/shader"
	"github.com/devblok/triangle/utility/kar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	cases := []struct {
		file string
		name string
		typ  shader.ShaderType
		ok   bool
	}{
		{"triangle.vert.spv", "triangle", shader.VertexShaderType, true},
		{"dir/triangle.frag.spv", "triangle", shader.FragmentShaderType, true},
		{"triangle.geom.spv", "", shader.UnknownShaderType, false},
		{"triangle.vert", "", shader.UnknownShaderType, false},
		{"a.b.vert.spv", "", shader.UnknownShaderType, false},
		{".vert.spv", "", shader.UnknownShaderType, false},
	}
	for _, c := range cases {
		name, typ, ok := shader.TypeOf(c.file)
		assert.Equal(t, c.ok, ok, c.file)
		assert.Equal(t, c.name, name, c.file)
		assert.Equal(t, c.typ, typ, c.file)
	}
}

func TestBundled(t *testing.T) {
	p, err := shader.Bundled("")
	require.NoError(t, err)
	assert.Equal(t, shader.DefaultProgram, p.Name)

	version := core.MakeVersion(1, 0, 0)
	require.NoError(t, core.ValidateSPIRV(p.Vertex, version))
	require.NoError(t, core.ValidateSPIRV(p.Fragment, version))
	assert.NotEqual(t, p.Vertex, p.Fragment)

	code := p.Code()
	assert.Equal(t, p.Vertex, code.Vertex)
	assert.Equal(t, p.Fragment, code.Fragment)
}

func TestBundledUnknownProgram(t *testing.T) {
	_, err := shader.Bundled("square")
	assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
}

func writeFiles(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func TestFromDirectory(t *testing.T) {
	vert, frag := coretest.SPIRV(0x00010000), coretest.SPIRV(0x00010300)
	dir := writeFiles(t, map[string][]byte{
		"triangle.vert.spv":        vert,
		"nested/triangle.frag.spv": frag,
		"triangle.vert":            []byte("#version 450"),
		"other.vert.spv":           []byte("x"),
	})

	p, err := shader.FromDirectory(dir, "triangle")
	require.NoError(t, err)
	assert.Equal(t, vert, p.Vertex)
	assert.Equal(t, frag, p.Fragment)
}

func TestFromDirectoryMissingStage(t *testing.T) {
	dir := writeFiles(t, map[string][]byte{
		"triangle.vert.spv": coretest.SPIRV(0x00010000),
	})
	_, err := shader.FromDirectory(dir, "triangle")
	assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
}

func TestFromDirectoryDuplicateStage(t *testing.T) {
	dir := writeFiles(t, map[string][]byte{
		"a/triangle.vert.spv": coretest.SPIRV(0x00010000),
		"b/triangle.vert.spv": coretest.SPIRV(0x00010000),
		"triangle.frag.spv":   coretest.SPIRV(0x00010000),
	})
	_, err := shader.FromDirectory(dir, "triangle")
	assert.True(t, core.IsKind(err, core.ShaderCompilationError), "%v", err)
}

func TestFromMissingDirectory(t *testing.T) {
	_, err := shader.FromDirectory(filepath.Join(t.TempDir(), "nope"), "")
	assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
}

func writeArchive(t *testing.T, files map[string][]byte) string {
	t.Helper()
	builder, err := kar.NewBuilder(kar.Header{Author: "test", Version: 1})
	require.NoError(t, err)
	defer builder.Close()
	for name, data := range files {
		require.NoError(t, builder.Add(name, bytes.NewReader(data)))
	}
	path := filepath.Join(t.TempDir(), "shaders.kar")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = builder.WriteTo(f)
	require.NoError(t, err)
	return path
}

func TestOpenArchive(t *testing.T) {
	vert, frag := coretest.SPIRV(0x00010000), coretest.SPIRV(0x00010300)
	path := writeArchive(t, map[string][]byte{
		"shaders/triangle.vert.spv": vert,
		"shaders/triangle.frag.spv": frag,
	})

	p, err := shader.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, vert, p.Vertex)
	assert.Equal(t, frag, p.Fragment)
}

func TestOpenArchiveNotAnArchive(t *testing.T) {
	dir := writeFiles(t, map[string][]byte{"bad.kar": []byte("definitely not")})
	_, err := shader.OpenArchive(filepath.Join(dir, "bad.kar"), "")
	assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
	assert.ErrorIs(t, err, kar.ErrFileFormat)
}

func TestLoadDirectory(t *testing.T) {
	dir := writeFiles(t, map[string][]byte{
		"triangle.vert.spv": coretest.SPIRV(0x00010000),
		"triangle.frag.spv": coretest.SPIRV(0x00010000),
	})
	_, err := shader.Load(dir, "")
	require.NoError(t, err)
}
