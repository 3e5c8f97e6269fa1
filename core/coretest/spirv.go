package coretest

import (
	"encoding/binary"

	"github.com/devblok/triangle/core"
)

// SPIRV returns a module header with the given version word followed by
// an OpCapability Shader instruction. It passes core.ValidateSPIRV and
// nothing more.
func SPIRV(version uint32) []byte {
	words := []uint32{
		core.SPIRVMagic,
		version,
		0,  // generator
		16, // id bound
		0,  // schema
		2<<16 | 17, 1,
	}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// Shaders is a valid pair of SPIR-V 1.0 modules.
func Shaders() core.ShaderCode {
	return core.ShaderCode{
		Vertex:   SPIRV(0x00010000),
		Fragment: SPIRV(0x00010000),
	}
}
