// Package coretest provides an in-memory core.Driver and core.Target for
// exercising the frame sequence without a GPU.
package coretest

import (
	"fmt"
	"sync"
	"time"

	"github.com/devblok/triangle/core"
	vk "github.com/vulkan-go/vulkan"
)

// Handle is the inner value of every object the fake hands out.
type Handle struct {
	Kind core.ObjectKind
	ID   int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Kind, h.ID)
}

type entry struct {
	obj  core.Object
	deps []core.Object
	live bool
}

// Driver is a core.Driver that keeps every object in memory. It checks
// lifetimes the way validation layers would: destroying an object that
// a live object still depends on, or destroying twice, is an error.
type Driver struct {
	mu sync.Mutex

	// Extensions and Layers are what the runtime claims to support
	Extensions []string
	Layers     []string

	// Devices are enumerated in order
	Devices []core.PhysicalDeviceInfo

	// AutoSignal signals a fence as soon as it is submitted
	AutoSignal bool

	// SignalAfterWaits signals a pending fence on the n-th wait call,
	// zero disables it
	SignalAfterWaits int

	// Fail makes the named method return the error
	Fail map[string]error

	nextID  int
	objects map[Handle]*entry
	fences  map[Handle]bool
	pending map[Handle]bool
	waits   int

	calls     []string
	destroyed []core.Object

	Instances []core.InstanceInfo
	DeviceSet []core.DeviceInfo
	Pipelines []core.GraphicsPipelineInfo
	Submits   []core.SubmitInfo
	Draws     []core.DrawCall
	Viewports []vk.Viewport
	Scissors  []vk.Rect2D
	Passes    []core.RenderPassBeginInfo
}

// NewDriver returns a driver with one discrete GPU whose first queue
// family supports graphics, and fences that signal on submit.
func NewDriver() *Driver {
	d := &Driver{
		Extensions: []string{core.DebugUtilsExtension},
		Layers:     []string{core.ValidationLayer},
		AutoSignal: true,
		Fail:       map[string]error{},
		objects:    map[Handle]*entry{},
		fences:     map[Handle]bool{},
		pending:    map[Handle]bool{},
	}
	d.Devices = []core.PhysicalDeviceInfo{Device("Fake GPU", vk.PhysicalDeviceTypeDiscreteGpu)}
	return d
}

// Device describes a physical device with a single graphics queue family.
func Device(name string, kind vk.PhysicalDeviceType, extensions ...string) core.PhysicalDeviceInfo {
	return core.PhysicalDeviceInfo{
		Name:       name,
		Type:       kind,
		APIVersion: core.MakeVersion(1, 2, 0),
		Extensions: extensions,
		QueueFamilies: []core.QueueFamilyInfo{{
			Index:    0,
			Count:    1,
			Graphics: true,
			Compute:  true,
			Transfer: true,
		}},
	}
}

func (d *Driver) call(name string, format string, args ...interface{}) error {
	d.calls = append(d.calls, name+fmt.Sprintf(format, args...))
	if err, ok := d.Fail[name]; ok {
		return err
	}
	return nil
}

// NewObject creates a live object of kind, device and deps must outlive it.
func (d *Driver) NewObject(kind core.ObjectKind, device core.Object, deps ...core.Object) core.Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newObject(kind, device, deps...)
}

func (d *Driver) newObject(kind core.ObjectKind, device core.Object, deps ...core.Object) core.Object {
	d.nextID++
	h := Handle{Kind: kind, ID: d.nextID}
	obj := core.Object{Kind: kind, Inner: h}
	if device.Valid() {
		deps = append([]core.Object{device}, deps...)
	}
	d.objects[h] = &entry{obj: obj, deps: deps, live: true}
	return obj
}

func (d *Driver) lookup(obj core.Object) (*entry, error) {
	h, ok := obj.Inner.(Handle)
	if !ok {
		return nil, fmt.Errorf("foreign handle %v", obj.Inner)
	}
	e, ok := d.objects[h]
	if !ok || !e.live {
		return nil, fmt.Errorf("%s is not alive", h)
	}
	return e, nil
}

// InstanceExtensions implements core.Driver
func (d *Driver) InstanceExtensions() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("InstanceExtensions", ""); err != nil {
		return nil, err
	}
	return d.Extensions, nil
}

// InstanceLayers implements core.Driver
func (d *Driver) InstanceLayers() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("InstanceLayers", ""); err != nil {
		return nil, err
	}
	return d.Layers, nil
}

// CreateInstance implements core.Driver
func (d *Driver) CreateInstance(info core.InstanceInfo) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateInstance", "(%s)", info.Application.ApplicationName); err != nil {
		return core.Object{}, err
	}
	d.Instances = append(d.Instances, info)
	return d.newObject(core.ObjectInstance, core.Object{}), nil
}

// PhysicalDevices implements core.Driver
func (d *Driver) PhysicalDevices(instance core.Object) ([]core.PhysicalDeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("PhysicalDevices", ""); err != nil {
		return nil, err
	}
	if _, err := d.lookup(instance); err != nil {
		return nil, err
	}
	devices := make([]core.PhysicalDeviceInfo, len(d.Devices))
	for i, dev := range d.Devices {
		dev.Handle = core.Object{Kind: core.ObjectPhysicalDevice, Inner: Handle{Kind: core.ObjectPhysicalDevice, ID: -(i + 1)}}
		devices[i] = dev
	}
	return devices, nil
}

// CreateDevice implements core.Driver
func (d *Driver) CreateDevice(physical core.PhysicalDeviceInfo, info core.DeviceInfo) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateDevice", "(%s)", physical.Name); err != nil {
		return core.Object{}, err
	}
	d.DeviceSet = append(d.DeviceSet, info)
	return d.newObject(core.ObjectDevice, core.Object{}), nil
}

// DeviceQueue implements core.Driver
func (d *Driver) DeviceQueue(device core.Object, family, index uint32) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("DeviceQueue", "(%d,%d)", family, index); err != nil {
		return core.Object{}, err
	}
	d.nextID++
	return core.Object{Kind: core.ObjectQueue, Inner: Handle{Kind: core.ObjectQueue, ID: d.nextID}}, nil
}

// CreateShaderModule implements core.Driver
func (d *Driver) CreateShaderModule(device core.Object, code []uint32) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateShaderModule", "(%d words)", len(code)); err != nil {
		return core.Object{}, err
	}
	return d.newObject(core.ObjectShaderModule, device), nil
}

// CreatePipelineLayout implements core.Driver
func (d *Driver) CreatePipelineLayout(device core.Object) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreatePipelineLayout", ""); err != nil {
		return core.Object{}, err
	}
	return d.newObject(core.ObjectPipelineLayout, device), nil
}

// CreateGraphicsPipeline implements core.Driver
func (d *Driver) CreateGraphicsPipeline(device core.Object, info core.GraphicsPipelineInfo) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateGraphicsPipeline", ""); err != nil {
		return core.Object{}, err
	}
	for _, stage := range info.Stages {
		if _, err := d.lookup(stage.Module); err != nil {
			return core.Object{}, err
		}
	}
	if _, err := d.lookup(info.Layout); err != nil {
		return core.Object{}, err
	}
	d.Pipelines = append(d.Pipelines, info)
	return d.newObject(core.ObjectPipeline, device, info.Layout), nil
}

// CreateFramebuffer implements core.Driver
func (d *Driver) CreateFramebuffer(device core.Object, info core.FramebufferInfo) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateFramebuffer", "(%dx%d)", info.Extent.Width, info.Extent.Height); err != nil {
		return core.Object{}, err
	}
	deps := append([]core.Object{info.RenderPass}, info.Attachments...)
	return d.newObject(core.ObjectFramebuffer, device, deps...), nil
}

// CreateCommandPool implements core.Driver
func (d *Driver) CreateCommandPool(device core.Object, family uint32) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateCommandPool", "(%d)", family); err != nil {
		return core.Object{}, err
	}
	return d.newObject(core.ObjectCommandPool, device), nil
}

// AllocateCommandBuffer implements core.Driver
func (d *Driver) AllocateCommandBuffer(device core.Object, pool core.Object) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("AllocateCommandBuffer", ""); err != nil {
		return core.Object{}, err
	}
	obj := d.newObject(core.ObjectCommandBuffer, device, pool)
	obj.Owner = pool.Inner
	return obj, nil
}

// CreateFence implements core.Driver
func (d *Driver) CreateFence(device core.Object, signaled bool) (core.Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateFence", "(%t)", signaled); err != nil {
		return core.Object{}, err
	}
	obj := d.newObject(core.ObjectFence, device)
	d.fences[obj.Inner.(Handle)] = signaled
	return obj, nil
}

// ResetFence implements core.Driver
func (d *Driver) ResetFence(device core.Object, fence core.Object) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("ResetFence", ""); err != nil {
		return err
	}
	d.fences[fence.Inner.(Handle)] = false
	return nil
}

// FenceSignaled implements core.Driver
func (d *Driver) FenceSignaled(device core.Object, fence core.Object) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.Fail["FenceSignaled"]; ok {
		return false, err
	}
	return d.fences[fence.Inner.(Handle)], nil
}

// WaitForFence implements core.Driver. A pending fence sleeps for the
// timeout and reports a timeout; an infinite wait on a fence nothing will
// signal fails instead of hanging.
func (d *Driver) WaitForFence(device core.Object, fence core.Object, timeout time.Duration) error {
	d.mu.Lock()
	if err := d.call("WaitForFence", ""); err != nil {
		d.mu.Unlock()
		return err
	}
	h := fence.Inner.(Handle)
	d.waits++
	if d.SignalAfterWaits > 0 && d.waits >= d.SignalAfterWaits {
		d.fences[h] = true
	}
	signaled := d.fences[h]
	d.mu.Unlock()

	if signaled {
		return nil
	}
	if timeout == core.Infinite {
		return core.Errorf(core.SubmissionError, "coretest.WaitForFence", "%s would never signal", h)
	}
	time.Sleep(timeout)
	return core.Errorf(core.SyncTimeoutError, "coretest.WaitForFence", "%s timed out", h)
}

// QueueSubmit implements core.Driver
func (d *Driver) QueueSubmit(queue core.Object, info core.SubmitInfo, fence core.Object) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("QueueSubmit", "(%d)", len(info.CommandBuffers)); err != nil {
		return err
	}
	if h, ok := fence.Inner.(Handle); ok && d.fences[h] {
		return core.Errorf(core.SubmissionError, "coretest.QueueSubmit", "fence %s is already signaled", h)
	}
	d.Submits = append(d.Submits, info)
	if h, ok := fence.Inner.(Handle); ok {
		d.pending[h] = true
		if d.AutoSignal {
			d.fences[h] = true
		}
	}
	return nil
}

// Signal signals a fence by hand.
func (d *Driver) Signal(fence core.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[fence.Inner.(Handle)] = true
}

// Destroy implements core.Driver
func (d *Driver) Destroy(device core.Object, obj core.Object) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Destroy", "(%s)", obj.Kind); err != nil {
		return err
	}
	e, err := d.lookup(obj)
	if err != nil {
		return core.Wrap(core.UnknownError, "coretest.Destroy", err)
	}
	for _, other := range d.objects {
		if !other.live {
			continue
		}
		for _, dep := range other.deps {
			if dep == obj {
				return core.Errorf(core.UnknownError, "coretest.Destroy",
					"%s destroyed while %s still uses it", obj.Inner, other.obj.Inner)
			}
		}
	}
	if obj.Is(core.ObjectFence) {
		// destroying a fence the GPU will still signal is undefined
		if h := obj.Inner.(Handle); d.pending[h] && !d.fences[h] {
			return core.Errorf(core.UnknownError, "coretest.Destroy", "fence %s destroyed while pending", obj.Inner)
		}
	}
	e.live = false
	d.destroyed = append(d.destroyed, obj)
	return nil
}

// BeginCommandBuffer implements core.Commands
func (d *Driver) BeginCommandBuffer(cmd core.Object, usage vk.CommandBufferUsageFlagBits) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.call("BeginCommandBuffer", "(%d)", usage)
}

// CmdBeginRenderPass implements core.Commands
func (d *Driver) CmdBeginRenderPass(cmd core.Object, info core.RenderPassBeginInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdBeginRenderPass", "")
	d.Passes = append(d.Passes, info)
}

// CmdBindPipeline implements core.Commands
func (d *Driver) CmdBindPipeline(cmd core.Object, pipeline core.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdBindPipeline", "")
}

// CmdSetViewport implements core.Commands
func (d *Driver) CmdSetViewport(cmd core.Object, viewport vk.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdSetViewport", "")
	d.Viewports = append(d.Viewports, viewport)
}

// CmdSetScissor implements core.Commands
func (d *Driver) CmdSetScissor(cmd core.Object, scissor vk.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdSetScissor", "")
	d.Scissors = append(d.Scissors, scissor)
}

// CmdBindVertexBuffer implements core.Commands
func (d *Driver) CmdBindVertexBuffer(cmd core.Object, binding uint32, buffer core.Object, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdBindVertexBuffer", "(%d,%d)", binding, offset)
}

// CmdDraw implements core.Commands
func (d *Driver) CmdDraw(cmd core.Object, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdDraw", "(%d,%d,%d,%d)", vertexCount, instanceCount, firstVertex, firstInstance)
	d.Draws = append(d.Draws, core.DrawCall{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// CmdEndRenderPass implements core.Commands
func (d *Driver) CmdEndRenderPass(cmd core.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdEndRenderPass", "")
}

// EndCommandBuffer implements core.Commands
func (d *Driver) EndCommandBuffer(cmd core.Object) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.call("EndCommandBuffer", "")
}

// Calls returns every driver call so far, formatted as Name(args).
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CommandCalls returns only the recording calls, by name.
func (d *Driver) CommandCalls() []string {
	var out []string
	for _, c := range d.Calls() {
		for _, prefix := range []string{"BeginCommandBuffer", "Cmd", "EndCommandBuffer"} {
			if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Destroyed returns the destroyed objects in order.
func (d *Driver) Destroyed() []core.Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Object(nil), d.destroyed...)
}

// DestroyedKinds returns the kinds of the destroyed objects in order.
func (d *Driver) DestroyedKinds() []core.ObjectKind {
	var kinds []core.ObjectKind
	for _, obj := range d.Destroyed() {
		kinds = append(kinds, obj.Kind)
	}
	return kinds
}

// Live counts the objects of kind not destroyed yet.
func (d *Driver) Live(kind core.ObjectKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for h, e := range d.objects {
		if h.Kind == kind && e.live {
			n++
		}
	}
	return n
}

// Leaked counts every object not destroyed yet.
func (d *Driver) Leaked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.objects {
		if e.live {
			n++
		}
	}
	return n
}
