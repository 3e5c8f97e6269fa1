// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core drives a single frame through the graphics API: context
// creation, pipeline construction, command recording, submission and
// teardown. It talks to the API only through the Driver interface.
package core

import (
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// ObjectKind identifies which API object an Object refers to.
type ObjectKind int

// Known object kinds
const (
	ObjectUnknown ObjectKind = iota
	ObjectInstance
	ObjectPhysicalDevice
	ObjectDevice
	ObjectQueue
	ObjectShaderModule
	ObjectPipelineLayout
	ObjectPipeline
	ObjectRenderPass
	ObjectImageView
	ObjectFramebuffer
	ObjectCommandPool
	ObjectCommandBuffer
	ObjectFence
	ObjectSemaphore
	ObjectBuffer
	ObjectMemory
)

var objectKindNames = map[ObjectKind]string{
	ObjectUnknown:        "unknown",
	ObjectInstance:       "instance",
	ObjectPhysicalDevice: "physical device",
	ObjectDevice:         "device",
	ObjectQueue:          "queue",
	ObjectShaderModule:   "shader module",
	ObjectPipelineLayout: "pipeline layout",
	ObjectPipeline:       "pipeline",
	ObjectRenderPass:     "render pass",
	ObjectImageView:      "image view",
	ObjectFramebuffer:    "framebuffer",
	ObjectCommandPool:    "command pool",
	ObjectCommandBuffer:  "command buffer",
	ObjectFence:          "fence",
	ObjectSemaphore:      "semaphore",
	ObjectBuffer:         "buffer",
	ObjectMemory:         "memory",
}

func (k ObjectKind) String() string {
	if name, ok := objectKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Object is an opaque reference to something owned by the graphics API.
// Inner holds the driver's own handle and must be comparable.
type Object struct {
	Kind  ObjectKind
	Inner interface{}

	// Owner is the inner handle of the pool the object
	// was allocated from, only set for command buffers.
	Owner interface{}
}

// Valid reports whether the object refers to anything.
func (o Object) Valid() bool {
	return o.Kind != ObjectUnknown && o.Inner != nil
}

// Is reports whether the object is valid and of the given kind.
func (o Object) Is(kind ObjectKind) bool {
	return o.Valid() && o.Kind == kind
}

// ApplicationInfo describes the application to the API runtime.
type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	APIVersion         uint32
}

// InstanceInfo is everything needed to create an instance.
type InstanceInfo struct {
	Application ApplicationInfo
	Extensions  []string
	Layers      []string
}

// QueueFamilyInfo describes one queue family of a physical device.
type QueueFamilyInfo struct {
	Index    uint32
	Count    uint32
	Graphics bool
	Compute  bool
	Transfer bool
}

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	APIVersion    uint32
	Name          string
	Type          vk.PhysicalDeviceType
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint
	QueueFamilies []QueueFamilyInfo

	Handle Object `json:"-"`
}

// HasExtension reports whether the device advertises the named extension.
func (p PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// DeviceInfo is everything needed to create a logical device.
type DeviceInfo struct {
	QueueFamily     uint32
	QueuePriorities []float32
	Extensions      []string
}

// ShaderStage binds one shader module into a pipeline.
type ShaderStage struct {
	Stage      vk.ShaderStageFlagBits
	Module     Object
	EntryPoint string
}

// GraphicsPipelineInfo is everything needed to create a graphics pipeline.
type GraphicsPipelineInfo struct {
	Stages     []ShaderStage
	Vertex     VertexLayout
	Fixed      FixedFunctionState
	Layout     Object
	RenderPass Object
	Subpass    uint32
}

// FramebufferInfo is everything needed to create a framebuffer.
type FramebufferInfo struct {
	RenderPass  Object
	Attachments []Object
	Extent      vk.Extent2D
	Layers      uint32
}

// SubmitInfo describes one batch submitted to a queue.
type SubmitInfo struct {
	CommandBuffers   []Object
	WaitSemaphores   []Object
	WaitStages       []vk.PipelineStageFlags
	SignalSemaphores []Object
}

// RenderPassBeginInfo starts a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  Object
	Framebuffer Object
	RenderArea  vk.Rect2D
	ClearColor  [4]float32
}

// Commands are the command recording primitives of the API.
type Commands interface {
	BeginCommandBuffer(cmd Object, usage vk.CommandBufferUsageFlagBits) error
	CmdBeginRenderPass(cmd Object, info RenderPassBeginInfo)
	CmdBindPipeline(cmd Object, pipeline Object)
	CmdSetViewport(cmd Object, viewport vk.Viewport)
	CmdSetScissor(cmd Object, scissor vk.Rect2D)
	CmdBindVertexBuffer(cmd Object, binding uint32, buffer Object, offset uint64)
	CmdDraw(cmd Object, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdEndRenderPass(cmd Object)
	EndCommandBuffer(cmd Object) error
}

// Driver is the contract with the host graphics API.
// Failures are returned as *Error values carrying the taxonomy kind.
type Driver interface {
	Commands

	// InstanceExtensions lists the instance extensions the runtime supports
	InstanceExtensions() ([]string, error)

	// InstanceLayers lists the instance layers the runtime supports
	InstanceLayers() ([]string, error)

	CreateInstance(info InstanceInfo) (Object, error)

	// PhysicalDevices enumerates devices in the order the runtime reports them
	PhysicalDevices(instance Object) ([]PhysicalDeviceInfo, error)

	CreateDevice(physical PhysicalDeviceInfo, info DeviceInfo) (Object, error)
	DeviceQueue(device Object, family, index uint32) (Object, error)

	CreateShaderModule(device Object, code []uint32) (Object, error)
	CreatePipelineLayout(device Object) (Object, error)
	CreateGraphicsPipeline(device Object, info GraphicsPipelineInfo) (Object, error)
	CreateFramebuffer(device Object, info FramebufferInfo) (Object, error)
	CreateCommandPool(device Object, family uint32) (Object, error)
	AllocateCommandBuffer(device Object, pool Object) (Object, error)
	CreateFence(device Object, signaled bool) (Object, error)

	ResetFence(device Object, fence Object) error

	// FenceSignaled polls the fence without blocking
	FenceSignaled(device Object, fence Object) (bool, error)

	// WaitForFence blocks until the fence signals or the timeout passes,
	// Infinite never times out
	WaitForFence(device Object, fence Object, timeout time.Duration) error

	QueueSubmit(queue Object, info SubmitInfo, fence Object) error

	// Destroy destroys or frees any object kind, device is
	// ignored for the instance and for the device itself
	Destroy(device Object, obj Object) error
}

// Infinite is the timeout of a wait that never gives up.
const Infinite = time.Duration(1<<63 - 1)
