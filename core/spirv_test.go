package core_test

import (
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/core/coretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSPIRV(t *testing.T) {
	api12 := core.MakeVersion(1, 2, 0)
	require.NoError(t, core.ValidateSPIRV(coretest.SPIRV(0x00010000), api12))
	require.NoError(t, core.ValidateSPIRV(coretest.SPIRV(0x00010500), api12))

	cases := map[string][]byte{
		"empty":     nil,
		"unaligned": make([]byte, 22),
		"short":     make([]byte, 8),
		"magic":     append([]byte{1, 2, 3, 4}, coretest.SPIRV(0x00010000)[4:]...),
		"version":   coretest.SPIRV(0x00020000),
		"too new":   coretest.SPIRV(0x00010600),
	}
	for name, code := range cases {
		err := core.ValidateSPIRV(code, api12)
		assert.True(t, core.IsKind(err, core.ShaderCompilationError), "%s: %v", name, err)
	}

	zeroBound := coretest.SPIRV(0x00010000)
	zeroBound[12] = 0
	assert.True(t, core.IsKind(core.ValidateSPIRV(zeroBound, api12), core.ShaderCompilationError))
}

func TestValidateSPIRVOlderAPI(t *testing.T) {
	err := core.ValidateSPIRV(coretest.SPIRV(0x00010300), core.MakeVersion(1, 0, 0))
	assert.True(t, core.IsKind(err, core.ShaderCompilationError))
	assert.NoError(t, core.ValidateSPIRV(coretest.SPIRV(0x00010300), core.MakeVersion(1, 1, 0)))
}

func TestSliceUint32(t *testing.T) {
	words := core.SliceUint32(coretest.SPIRV(0x00010000))
	require.Len(t, words, 7)
	assert.Equal(t, uint32(core.SPIRVMagic), words[0])
	assert.Nil(t, core.SliceUint32([]byte{1, 2}))
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}
