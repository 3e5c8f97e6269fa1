// Package model holds the vertex data the renderer draws.
package model

import (
	"encoding/binary"
	"math"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Vertex is a model vertex, positions are in normalized device coordinates
type Vertex struct {
	Pos glm.Vec3
}

// VertexSize is the size of a Vertex in a vertex buffer
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// Triangle lists its vertices counter-clockwise as seen on screen,
// with Y pointing down: top, bottom left, bottom right.
var Triangle = []Vertex{
	{Pos: glm.Vec3{0.0, -0.5, 0.0}},
	{Pos: glm.Vec3{-0.5, 0.5, 0.0}},
	{Pos: glm.Vec3{0.5, 0.5, 0.0}},
}

// VertexBindingDescriptions return Vulkan Vertex descriptors
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(VertexSize),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions return Vulkan attribute descriptors
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{{
		Binding:  0,
		Location: 0,
		Format:   vk.FormatR32g32b32Sfloat,
		Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
	}}
}

// Bytes packs vertices the way the vertex buffer expects them:
// three little endian float32 per vertex, no padding.
func Bytes(vertices []Vertex) []byte {
	out := make([]byte, 0, len(vertices)*VertexSize)
	for _, v := range vertices {
		for _, c := range v.Pos {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(c))
		}
	}
	return out
}

// SignedArea returns twice the signed area of the triangle abc as seen
// on screen. Positive means counter-clockwise.
func SignedArea(a, b, c Vertex) float32 {
	ab := b.Pos.Sub(a.Pos)
	ac := c.Pos.Sub(a.Pos)
	// Y points down in clip space, flip it to get screen orientation
	return -(ab.X()*ac.Y() - ab.Y()*ac.X())
}
