// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"encoding/binary"
	"unsafe"
)

// SPIR-V header layout
const (
	SPIRVMagic       = 0x07230203
	spirvHeaderWords = 5
)

// maxSPIRVVersion maps an API minor version to the newest
// SPIR-V version it consumes.
var maxSPIRVVersion = map[uint32]uint32{
	0: 0x00010000,
	1: 0x00010300,
	2: 0x00010500,
	3: 0x00010600,
	4: 0x00010600,
}

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// ValidateSPIRV checks that code looks like a SPIR-V module the given API
// version can consume. It does not validate the instruction stream.
func ValidateSPIRV(code []byte, apiVersion uint32) error {
	const op = "core.ValidateSPIRV"
	if len(code) == 0 {
		return Errorf(ShaderCompilationError, op, "empty bytecode")
	}
	if len(code)%4 != 0 {
		return Errorf(ShaderCompilationError, op, "bytecode size %d is not a multiple of 4", len(code))
	}
	if len(code) < spirvHeaderWords*4 {
		return Errorf(ShaderCompilationError, op, "bytecode too short for a header")
	}

	magic := binary.LittleEndian.Uint32(code[0:4])
	if magic != SPIRVMagic {
		return Errorf(ShaderCompilationError, op, "bad magic number 0x%08x", magic)
	}

	version := binary.LittleEndian.Uint32(code[4:8])
	if version&0xff0000ff != 0 || version>>16 != 1 {
		return Errorf(ShaderCompilationError, op, "malformed version word 0x%08x", version)
	}
	if VersionMajor(apiVersion) == 1 {
		if max, ok := maxSPIRVVersion[VersionMinor(apiVersion)]; ok && version > max {
			return Errorf(ShaderCompilationError, op, "SPIR-V %d.%d needs a newer API than %d.%d",
				version>>16, (version>>8)&0xff, VersionMajor(apiVersion), VersionMinor(apiVersion))
		}
	}

	if bound := binary.LittleEndian.Uint32(code[12:16]); bound == 0 {
		return Errorf(ShaderCompilationError, op, "id bound is zero")
	}
	return nil
}
