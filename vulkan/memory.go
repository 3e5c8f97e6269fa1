// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"unsafe"

	"github.com/devblok/triangle/core"
	vk "github.com/vulkan-go/vulkan"
)

// Memory defines a usable memory region.
type Memory struct {
	mapped bool
	len    uint
	device vk.Device
	memory vk.DeviceMemory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint {
	return m.len
}

// Object wraps the memory for core.
func (m *Memory) Object() core.Object {
	return core.Object{Kind: core.ObjectMemory, Inner: m.memory}
}

// Map maps the entire memory region and returns a pointer to it.
func (m *Memory) Map() (unsafe.Pointer, error) {
	var mapped unsafe.Pointer
	if err := check(core.ResourceCreationFailure, "vk.MapMemory",
		vk.MapMemory(m.device, m.memory, 0, vk.DeviceSize(m.len), 0, &mapped)); err != nil {
		return nil, err
	}
	m.mapped = true
	return mapped, nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped {
		vk.UnmapMemory(m.device, m.memory)
		m.mapped = false
	}
}

// Write copies data to the start of the region.
func (m *Memory) Write(data []byte) error {
	if uint(len(data)) > m.len {
		return core.Errorf(core.ResourceCreationFailure, "vulkan.Memory.Write", "%d bytes do not fit into %d", len(data), m.len)
	}
	ptr, err := m.Map()
	if err != nil {
		return err
	}
	defer m.Unmap()
	vk.Memcopy(ptr, data)
	return nil
}

// Read copies n bytes out of the start of the region.
func (m *Memory) Read(n int) ([]byte, error) {
	if uint(n) > m.len {
		return nil, core.Errorf(core.ResourceCreationFailure, "vulkan.Memory.Read", "%d bytes exceed %d", n, m.len)
	}
	ptr, err := m.Map()
	if err != nil {
		return nil, err
	}
	defer m.Unmap()
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(ptr), n))
	return out, nil
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	m.Unmap()
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, physical vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &memProperties)
	memProperties.Deref()
	return &MemoryAllocator{
		device:        device,
		memProperties: memProperties,
	}
}

// MemoryAllocator returns usable memory for buffers and images.
type MemoryAllocator struct {
	device        vk.Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (*Memory, error) {
	memTypeIdx, ok := findMemoryType(ma.memProperties, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if !ok {
		return nil, core.Errorf(core.ResourceCreationFailure, "vk.AllocateMemory", "suitable memory type not found")
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}
	var memory vk.DeviceMemory
	if err := check(core.ResourceCreationFailure, "vk.AllocateMemory",
		vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return nil, err
	}
	return &Memory{
		len:    uint(req.Size),
		device: ma.device,
		memory: memory,
	}, nil
}

func findMemoryType(props vk.PhysicalDeviceMemoryProperties, filter uint32, prop vk.MemoryPropertyFlags) (uint32, bool) {
	for idx := uint32(0); idx < props.MemoryTypeCount; idx++ {
		props.MemoryTypes[idx].Deref()
		if filter&(1<<idx) != 0 && (props.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, true
		}
	}
	return 0, false
}

// Buffer is a buffer bound to memory of its own.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	memory *Memory
}

// NewBuffer creates, allocates and binds a host visible buffer.
func NewBuffer(dev vk.Device, size uint, usage vk.BufferUsageFlagBits, ma *MemoryAllocator) (*Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := check(core.ResourceCreationFailure, "vk.CreateBuffer",
		vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return nil, err
	}
	if err := check(core.ResourceCreationFailure, "vk.BindBufferMemory",
		vk.BindBufferMemory(dev, buffer, memory.memory, 0)); err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		memory.Release()
		return nil, err
	}
	return &Buffer{
		device: dev,
		buffer: buffer,
		memory: memory,
	}, nil
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return b.memory
}

// Object wraps the buffer for core.
func (b *Buffer) Object() core.Object {
	return core.Object{Kind: core.ObjectBuffer, Inner: b.buffer}
}

// Release destroys the buffer and memory associated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}
