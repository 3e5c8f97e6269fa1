//go:generate glslc assets/triangle.vert -o assets/triangle.vert.spv
//go:generate glslc assets/triangle.frag -o assets/triangle.frag.spv

// Package shader finds compiled SPIR-V programs in the bundled assets,
// a directory or a kar archive.
package shader

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/utility/kar"
	"github.com/gobuffalo/packr"
	"golang.org/x/exp/mmap"
)

// DefaultProgram is the program drawn when none is named.
const DefaultProgram = "triangle"

const shaderSuffix = ".spv"

// ShaderType tells the pipeline stage a file is compiled for.
type ShaderType int

// Shader types
const (
	UnknownShaderType ShaderType = iota
	VertexShaderType
	FragmentShaderType
)

func (t ShaderType) String() string {
	switch t {
	case VertexShaderType:
		return "vert"
	case FragmentShaderType:
		return "frag"
	}
	return "unknown"
}

// TypeOf splits a file name like "triangle.vert.spv" into the program
// name and the stage. Only compiled shaders have the .spv suffix, and
// the name must not contain more dots.
func TypeOf(filename string) (string, ShaderType, bool) {
	base := path.Base(filepath.ToSlash(filename))
	if !strings.HasSuffix(base, shaderSuffix) {
		return "", UnknownShaderType, false
	}
	nodes := strings.Split(strings.TrimSuffix(base, shaderSuffix), ".")
	if len(nodes) != 2 || nodes[0] == "" {
		return "", UnknownShaderType, false
	}
	switch nodes[1] {
	case "vert":
		return nodes[0], VertexShaderType, true
	case "frag":
		return nodes[0], FragmentShaderType, true
	}
	return "", UnknownShaderType, false
}

// Program is a vertex and fragment shader pair.
type Program struct {
	Name     string
	Vertex   []byte
	Fragment []byte
}

// Code returns the program in the form the renderer takes.
func (p Program) Code() core.ShaderCode {
	return core.ShaderCode{Vertex: p.Vertex, Fragment: p.Fragment}
}

// source is anything files can be listed and read from.
type source interface {
	list() ([]string, error)
	read(name string) ([]byte, error)
}

// load picks the named program out of src.
func load(op string, src source, name string) (Program, error) {
	if name == "" {
		name = DefaultProgram
	}
	files, err := src.list()
	if err != nil {
		return Program{}, core.Wrap(core.MissingDependencyError, op, err)
	}
	sort.Strings(files)

	program := Program{Name: name}
	var found [3]string
	for _, f := range files {
		prog, typ, ok := TypeOf(f)
		if !ok || prog != name {
			continue
		}
		if found[typ] != "" {
			return Program{}, core.Errorf(core.ShaderCompilationError, op, "%s and %s are both %s shaders of %s", found[typ], f, typ, name)
		}
		found[typ] = f
	}

	for _, typ := range []ShaderType{VertexShaderType, FragmentShaderType} {
		if found[typ] == "" {
			return Program{}, core.Errorf(core.MissingDependencyError, op, "no %s shader for %s", typ, name)
		}
		code, err := src.read(found[typ])
		if err != nil {
			return Program{}, core.Wrap(core.MissingDependencyError, op, err)
		}
		if typ == VertexShaderType {
			program.Vertex = code
		} else {
			program.Fragment = code
		}
	}
	return program, nil
}

type boxSource struct {
	box packr.Box
}

func (b boxSource) list() ([]string, error)          { return b.box.List(), nil }
func (b boxSource) read(name string) ([]byte, error) { return b.box.Find(name) }

// Bundled returns a program compiled into the binary.
func Bundled(name string) (Program, error) {
	return load("shader.Bundled", boxSource{box: packr.NewBox("./assets")}, name)
}

type dirSource struct {
	dir string
}

func (d dirSource) list() ([]string, error) {
	var shaders []string
	err := filepath.Walk(d.dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !f.IsDir() && strings.HasSuffix(f.Name(), shaderSuffix) {
			shaders = append(shaders, path)
		}
		return nil
	})
	return shaders, err
}

func (d dirSource) read(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// FromDirectory walks dir for name.vert.spv and name.frag.spv.
func FromDirectory(dir, name string) (Program, error) {
	return load("shader.FromDirectory", dirSource{dir: dir}, name)
}

type archiveSource struct {
	archive *kar.Archive
}

func (a archiveSource) list() ([]string, error)          { return a.archive.Names(), nil }
func (a archiveSource) read(name string) ([]byte, error) { return a.archive.ReadAll(name) }

// OpenArchive memory maps a kar archive and reads the program from it.
func OpenArchive(file, name string) (Program, error) {
	const op = "shader.OpenArchive"
	r, err := mmap.Open(file)
	if err != nil {
		return Program{}, core.Wrap(core.MissingDependencyError, op, err)
	}
	defer r.Close()

	archive, err := kar.Open(r)
	if err != nil {
		return Program{}, core.Wrap(core.MissingDependencyError, op, err)
	}
	return load(op, archiveSource{archive: archive}, name)
}

// Load reads a program from location: the bundled assets when it is
// empty, a kar archive when it ends in .kar, a directory otherwise.
func Load(location, name string) (Program, error) {
	switch {
	case location == "":
		return Bundled(name)
	case strings.HasSuffix(location, ".kar"):
		return OpenArchive(location, name)
	}
	return FromDirectory(location, name)
}
