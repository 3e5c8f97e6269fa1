// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vulkan implements core.Driver on top of the Vulkan API and
// provides an off-screen render target.
package vulkan

import (
	"fmt"
	"math"
	"time"

	"github.com/devblok/triangle/core"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Driver talks to the Vulkan loader. A loader must be
// installed with UseDefaultLoader or UseSDLLoader first.
type Driver struct {
	log *logrus.Entry
}

// NewDriver returns a driver, log defaults to the standard logger.
func NewDriver(log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{log: log.WithField("driver", "vulkan")}
}

var _ core.Driver = (*Driver)(nil)

// check turns a vk.Result into a classified error,
// device loss and memory exhaustion are marked retryable.
func check(kind core.Kind, op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	e := &core.Error{
		Kind: kind,
		Op:   op,
		Err:  errors.New(resultString(ret)),
	}
	switch ret {
	case vk.ErrorDeviceLost:
		e.Condition = core.DeviceLost
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		e.Condition = core.OutOfMemory
	}
	return e
}

func resultString(ret vk.Result) string {
	if err := vk.Error(ret); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("vulkan result %d", ret)
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

func handleOf(obj core.Object, kind core.ObjectKind, op string) error {
	if !obj.Is(kind) {
		return core.Errorf(core.MissingDependencyError, op, "want %s, got %s", kind, obj.Kind)
	}
	return nil
}

// InstanceExtensions implements core.Driver
func (d *Driver) InstanceExtensions() ([]string, error) {
	var count uint32
	if err := check(core.InitializationError, "vk.EnumerateInstanceExtensionProperties",
		vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := check(core.InitializationError, "vk.EnumerateInstanceExtensionProperties",
		vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range props[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// InstanceLayers implements core.Driver
func (d *Driver) InstanceLayers() ([]string, error) {
	var count uint32
	if err := check(core.InitializationError, "vk.EnumerateInstanceLayerProperties",
		vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, count)
	if err := check(core.InitializationError, "vk.EnumerateInstanceLayerProperties",
		vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range props[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// CreateInstance implements core.Driver
func (d *Driver) CreateInstance(info core.InstanceInfo) (core.Object, error) {
	app := info.Application
	extensions := safeStrings(info.Extensions)
	layers := safeStrings(info.Layers)
	instanceInfo := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         app.APIVersion,
			ApplicationVersion: app.ApplicationVersion,
			EngineVersion:      app.EngineVersion,
			PApplicationName:   safeString(app.ApplicationName),
			PEngineName:        safeString(app.EngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var instance vk.Instance
	if err := check(core.InitializationError, "vk.CreateInstance",
		vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return core.Object{}, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return core.Object{}, core.Wrap(core.InitializationError, "vk.InitInstance", err)
	}
	return core.Object{Kind: core.ObjectInstance, Inner: instance}, nil
}

// PhysicalDevices implements core.Driver
func (d *Driver) PhysicalDevices(instance core.Object) ([]core.PhysicalDeviceInfo, error) {
	const op = "vk.EnumeratePhysicalDevices"
	if err := handleOf(instance, core.ObjectInstance, op); err != nil {
		return nil, err
	}
	vkInstance := instance.Inner.(vk.Instance)

	var count uint32
	if err := check(core.InitializationError, op, vk.EnumeratePhysicalDevices(vkInstance, &count, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(core.InitializationError, op, vk.EnumeratePhysicalDevices(vkInstance, &count, devices)); err != nil {
		return nil, err
	}

	infos := make([]core.PhysicalDeviceInfo, 0, count)
	for _, pd := range devices[:count] {
		infos = append(infos, physicalDeviceInfo(pd))
	}
	return infos, nil
}

// physicalDeviceInfo gathers everything device selection and reporting
// need. Enumeration failures mark the device invalid instead of failing.
func physicalDeviceInfo(pd vk.PhysicalDevice) core.PhysicalDeviceInfo {
	info := core.PhysicalDeviceInfo{
		Handle: core.Object{Kind: core.ObjectPhysicalDevice, Inner: pd},
	}

	var numExtensions uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, nil) != vk.Success {
		info.Invalid = true
	}
	extensions := make([]vk.ExtensionProperties, numExtensions)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, extensions) != vk.Success {
		info.Invalid = true
	}
	for _, ext := range extensions[:numExtensions] {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	var numLayers uint32
	if vk.EnumerateDeviceLayerProperties(pd, &numLayers, nil) != vk.Success {
		info.Invalid = true
	}
	layers := make([]vk.LayerProperties, numLayers)
	if vk.EnumerateDeviceLayerProperties(pd, &numLayers, layers) != vk.Success {
		info.Invalid = true
	}
	for _, layer := range layers[:numLayers] {
		layer.Deref()
		info.Layers = append(info.Layers, vk.ToString(layer.LayerName[:]))
	}

	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memoryProperties)
	memoryProperties.Deref()
	for i := uint32(0); i < memoryProperties.MemoryHeapCount; i++ {
		memoryProperties.MemoryHeaps[i].Deref()
		info.Memory += uint(memoryProperties.MemoryHeaps[i].Size)
	}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	info.ID = int(properties.DeviceID)
	info.VendorID = int(properties.VendorID)
	info.DriverVersion = int(properties.DriverVersion)
	info.APIVersion = properties.ApiVersion
	info.Type = properties.DeviceType
	info.Name = vk.ToString(properties.DeviceName[:])

	var numFamilies uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &numFamilies, nil)
	families := make([]vk.QueueFamilyProperties, numFamilies)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &numFamilies, families)
	for i, family := range families[:numFamilies] {
		family.Deref()
		info.QueueFamilies = append(info.QueueFamilies, core.QueueFamilyInfo{
			Index:    uint32(i),
			Count:    family.QueueCount,
			Graphics: family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
			Compute:  family.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0,
			Transfer: family.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0,
		})
	}
	return info
}

// CreateDevice implements core.Driver
func (d *Driver) CreateDevice(physical core.PhysicalDeviceInfo, info core.DeviceInfo) (core.Object, error) {
	const op = "vk.CreateDevice"
	if err := handleOf(physical.Handle, core.ObjectPhysicalDevice, op); err != nil {
		return core.Object{}, err
	}
	extensions := safeStrings(info.Extensions)
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: info.QueueFamily,
		QueueCount:       uint32(len(info.QueuePriorities)),
		PQueuePriorities: info.QueuePriorities,
	}}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var device vk.Device
	if err := check(core.InitializationError, op,
		vk.CreateDevice(physical.Handle.Inner.(vk.PhysicalDevice), &dci, nil, &device)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectDevice, Inner: device}, nil
}

// DeviceQueue implements core.Driver
func (d *Driver) DeviceQueue(device core.Object, family, index uint32) (core.Object, error) {
	const op = "vk.GetDeviceQueue"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	var queue vk.Queue
	vk.GetDeviceQueue(device.Inner.(vk.Device), family, index, &queue)
	if queue == nil {
		return core.Object{}, core.Errorf(core.InitializationError, op, "no queue %d in family %d", index, family)
	}
	return core.Object{Kind: core.ObjectQueue, Inner: queue}, nil
}

// CreateShaderModule implements core.Driver
func (d *Driver) CreateShaderModule(device core.Object, code []uint32) (core.Object, error) {
	const op = "vk.CreateShaderModule"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := check(core.ShaderCompilationError, op,
		vk.CreateShaderModule(device.Inner.(vk.Device), &smci, nil, &module)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectShaderModule, Inner: module}, nil
}

// CreatePipelineLayout implements core.Driver, the layout is empty:
// the triangle uses no descriptors and no push constants.
func (d *Driver) CreatePipelineLayout(device core.Object) (core.Object, error) {
	const op = "vk.CreatePipelineLayout"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	plci := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	var layout vk.PipelineLayout
	if err := check(core.ResourceCreationFailure, op,
		vk.CreatePipelineLayout(device.Inner.(vk.Device), &plci, nil, &layout)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectPipelineLayout, Inner: layout}, nil
}

// CreateGraphicsPipeline implements core.Driver
func (d *Driver) CreateGraphicsPipeline(device core.Object, info core.GraphicsPipelineInfo) (core.Object, error) {
	const op = "vk.CreateGraphicsPipelines"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	if err := handleOf(info.Layout, core.ObjectPipelineLayout, op); err != nil {
		return core.Object{}, err
	}
	if err := handleOf(info.RenderPass, core.ObjectRenderPass, op); err != nil {
		return core.Object{}, err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for idx, stage := range info.Stages {
		if err := handleOf(stage.Module, core.ObjectShaderModule, op); err != nil {
			return core.Object{}, err
		}
		stages[idx] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage.Stage,
			Module: stage.Module.Inner.(vk.ShaderModule),
			PName:  safeString(stage.EntryPoint),
		}
	}

	fixed := info.Fixed
	blendEnable := vk.Bool32(vk.False)
	if fixed.BlendEnable {
		blendEnable = vk.True
	}
	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(info.Vertex.Bindings)),
			PVertexBindingDescriptions:      info.Vertex.Bindings,
			VertexAttributeDescriptionCount: uint32(len(info.Vertex.Attributes)),
			PVertexAttributeDescriptions:    info.Vertex.Attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: fixed.Topology,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: fixed.ViewportCount,
			ScissorCount:  fixed.ScissorCount,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: fixed.PolygonMode,
			CullMode:    fixed.CullMode,
			FrontFace:   fixed.FrontFace,
			LineWidth:   fixed.LineWidth,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: fixed.Samples,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: fixed.ColorWriteMask,
				BlendEnable:    blendEnable,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(fixed.DynamicStates)),
			PDynamicStates:    fixed.DynamicStates,
		},
		Layout:     info.Layout.Inner.(vk.PipelineLayout),
		RenderPass: info.RenderPass.Inner.(vk.RenderPass),
		Subpass:    info.Subpass,
	}}

	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, len(gpci))
	if err := check(core.ResourceCreationFailure, op,
		vk.CreateGraphicsPipelines(device.Inner.(vk.Device), cache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectPipeline, Inner: pipelines[0]}, nil
}

// CreateFramebuffer implements core.Driver
func (d *Driver) CreateFramebuffer(device core.Object, info core.FramebufferInfo) (core.Object, error) {
	const op = "vk.CreateFramebuffer"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	if err := handleOf(info.RenderPass, core.ObjectRenderPass, op); err != nil {
		return core.Object{}, err
	}
	attachments := make([]vk.ImageView, len(info.Attachments))
	for i, a := range info.Attachments {
		if err := handleOf(a, core.ObjectImageView, op); err != nil {
			return core.Object{}, err
		}
		attachments[i] = a.Inner.(vk.ImageView)
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      info.RenderPass.Inner.(vk.RenderPass),
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          info.Layers,
	}
	var framebuffer vk.Framebuffer
	if err := check(core.ResourceCreationFailure, op,
		vk.CreateFramebuffer(device.Inner.(vk.Device), &fci, nil, &framebuffer)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectFramebuffer, Inner: framebuffer}, nil
}

// CreateCommandPool implements core.Driver
func (d *Driver) CreateCommandPool(device core.Object, family uint32) (core.Object, error) {
	const op = "vk.CreateCommandPool"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}
	var pool vk.CommandPool
	if err := check(core.ResourceCreationFailure, op,
		vk.CreateCommandPool(device.Inner.(vk.Device), &cpci, nil, &pool)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectCommandPool, Inner: pool}, nil
}

// AllocateCommandBuffer implements core.Driver
func (d *Driver) AllocateCommandBuffer(device core.Object, pool core.Object) (core.Object, error) {
	const op = "vk.AllocateCommandBuffers"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	if err := handleOf(pool, core.ObjectCommandPool, op); err != nil {
		return core.Object{}, err
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.Inner.(vk.CommandPool),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := check(core.ResourceCreationFailure, op,
		vk.AllocateCommandBuffers(device.Inner.(vk.Device), &cbai, buffers)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectCommandBuffer, Inner: buffers[0], Owner: pool.Inner}, nil
}

// CreateFence implements core.Driver
func (d *Driver) CreateFence(device core.Object, signaled bool) (core.Object, error) {
	const op = "vk.CreateFence"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check(core.ResourceCreationFailure, op,
		vk.CreateFence(device.Inner.(vk.Device), &fci, nil, &fence)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectFence, Inner: fence}, nil
}

// CreateSemaphore creates a binary semaphore. Semaphores are no part of
// core.Driver since the frame itself never waits on or signals one.
func (d *Driver) CreateSemaphore(device core.Object) (core.Object, error) {
	const op = "vk.CreateSemaphore"
	if err := handleOf(device, core.ObjectDevice, op); err != nil {
		return core.Object{}, err
	}
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := check(core.ResourceCreationFailure, op,
		vk.CreateSemaphore(device.Inner.(vk.Device), &sci, nil, &semaphore)); err != nil {
		return core.Object{}, err
	}
	return core.Object{Kind: core.ObjectSemaphore, Inner: semaphore}, nil
}

// ResetFence implements core.Driver
func (d *Driver) ResetFence(device core.Object, fence core.Object) error {
	const op = "vk.ResetFences"
	if err := handleOf(fence, core.ObjectFence, op); err != nil {
		return err
	}
	return check(core.SubmissionError, op,
		vk.ResetFences(device.Inner.(vk.Device), 1, []vk.Fence{fence.Inner.(vk.Fence)}))
}

// FenceSignaled implements core.Driver
func (d *Driver) FenceSignaled(device core.Object, fence core.Object) (bool, error) {
	const op = "vk.GetFenceStatus"
	if err := handleOf(fence, core.ObjectFence, op); err != nil {
		return false, err
	}
	switch ret := vk.GetFenceStatus(device.Inner.(vk.Device), fence.Inner.(vk.Fence)); ret {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, check(core.SubmissionError, op, ret)
	}
}

// WaitForFence implements core.Driver
func (d *Driver) WaitForFence(device core.Object, fence core.Object, timeout time.Duration) error {
	const op = "vk.WaitForFences"
	if err := handleOf(fence, core.ObjectFence, op); err != nil {
		return err
	}
	nanos := uint64(math.MaxUint64)
	if timeout != core.Infinite {
		nanos = uint64(timeout.Nanoseconds())
	}
	ret := vk.WaitForFences(device.Inner.(vk.Device), 1, []vk.Fence{fence.Inner.(vk.Fence)}, vk.True, nanos)
	if ret == vk.Timeout {
		return core.Errorf(core.SyncTimeoutError, op, "fence not signaled after %s", timeout)
	}
	return check(core.SubmissionError, op, ret)
}

// QueueSubmit implements core.Driver
func (d *Driver) QueueSubmit(queue core.Object, info core.SubmitInfo, fence core.Object) error {
	const op = "vk.QueueSubmit"
	if err := handleOf(queue, core.ObjectQueue, op); err != nil {
		return err
	}
	if err := handleOf(fence, core.ObjectFence, op); err != nil {
		return err
	}
	commandBuffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cmd := range info.CommandBuffers {
		if err := handleOf(cmd, core.ObjectCommandBuffer, op); err != nil {
			return err
		}
		commandBuffers[i] = cmd.Inner.(vk.CommandBuffer)
	}
	wait, err := semaphores(op, info.WaitSemaphores)
	if err != nil {
		return err
	}
	signal, err := semaphores(op, info.SignalSemaphores)
	if err != nil {
		return err
	}

	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    info.WaitStages,
		CommandBufferCount:   uint32(len(commandBuffers)),
		PCommandBuffers:      commandBuffers,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}
	return check(core.SubmissionError, op,
		vk.QueueSubmit(queue.Inner.(vk.Queue), uint32(len(submit)), submit, fence.Inner.(vk.Fence)))
}

func semaphores(op string, objs []core.Object) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(objs))
	for i, s := range objs {
		if err := handleOf(s, core.ObjectSemaphore, op); err != nil {
			return nil, err
		}
		out[i] = s.Inner.(vk.Semaphore)
	}
	return out, nil
}

// Destroy implements core.Driver
func (d *Driver) Destroy(device core.Object, obj core.Object) error {
	if !obj.Valid() {
		return core.Errorf(core.MissingDependencyError, "vulkan.Driver.Destroy", "nothing to destroy")
	}
	switch obj.Kind {
	case core.ObjectInstance:
		vk.DestroyInstance(obj.Inner.(vk.Instance), nil)
		return nil
	case core.ObjectDevice:
		vk.DestroyDevice(obj.Inner.(vk.Device), nil)
		return nil
	}

	if err := handleOf(device, core.ObjectDevice, "vulkan.Driver.Destroy"); err != nil {
		return err
	}
	dev := device.Inner.(vk.Device)
	switch obj.Kind {
	case core.ObjectShaderModule:
		vk.DestroyShaderModule(dev, obj.Inner.(vk.ShaderModule), nil)
	case core.ObjectPipelineLayout:
		vk.DestroyPipelineLayout(dev, obj.Inner.(vk.PipelineLayout), nil)
	case core.ObjectPipeline:
		vk.DestroyPipeline(dev, obj.Inner.(vk.Pipeline), nil)
	case core.ObjectRenderPass:
		vk.DestroyRenderPass(dev, obj.Inner.(vk.RenderPass), nil)
	case core.ObjectImageView:
		vk.DestroyImageView(dev, obj.Inner.(vk.ImageView), nil)
	case core.ObjectFramebuffer:
		vk.DestroyFramebuffer(dev, obj.Inner.(vk.Framebuffer), nil)
	case core.ObjectCommandPool:
		vk.DestroyCommandPool(dev, obj.Inner.(vk.CommandPool), nil)
	case core.ObjectCommandBuffer:
		pool, ok := obj.Owner.(vk.CommandPool)
		if !ok {
			return core.Errorf(core.MissingDependencyError, "vk.FreeCommandBuffers", "command buffer has no pool")
		}
		vk.FreeCommandBuffers(dev, pool, 1, []vk.CommandBuffer{obj.Inner.(vk.CommandBuffer)})
	case core.ObjectFence:
		vk.DestroyFence(dev, obj.Inner.(vk.Fence), nil)
	case core.ObjectSemaphore:
		vk.DestroySemaphore(dev, obj.Inner.(vk.Semaphore), nil)
	case core.ObjectBuffer:
		vk.DestroyBuffer(dev, obj.Inner.(vk.Buffer), nil)
	case core.ObjectMemory:
		vk.FreeMemory(dev, obj.Inner.(vk.DeviceMemory), nil)
	default:
		return core.Errorf(core.UnknownError, "vulkan.Driver.Destroy", "cannot destroy %s", obj.Kind)
	}
	d.log.WithField("kind", obj.Kind.String()).Debug("destroyed")
	return nil
}
