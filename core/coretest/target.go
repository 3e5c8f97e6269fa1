package coretest

import (
	"github.com/devblok/triangle/core"
	vk "github.com/vulkan-go/vulkan"
)

// Target supplies external objects created in a Driver.
type Target struct {
	Driver *Driver
	Extent vk.Extent2D

	// Omit* leave an input out of what Attach hands over
	OmitRenderPass   bool
	OmitImageViews   bool
	OmitVertexBuffer bool

	AttachErr    error
	CompletedErr error

	External  core.External
	Attached  bool
	Completes int
	Detached  bool
}

// NewTarget returns a 1x1 target.
func NewTarget(d *Driver) *Target {
	return &Target{
		Driver: d,
		Extent: vk.Extent2D{Width: 1, Height: 1},
	}
}

// Attach implements core.Target
func (t *Target) Attach(dc *core.DeviceContext) (core.External, error) {
	t.Attached = true
	if t.AttachErr != nil {
		return core.External{}, t.AttachErr
	}
	d := t.Driver
	ext := core.External{
		Extent: t.Extent,
		Semaphores: []core.Object{
			d.NewObject(core.ObjectSemaphore, dc.Device),
			d.NewObject(core.ObjectSemaphore, dc.Device),
		},
	}
	if !t.OmitRenderPass {
		ext.RenderPass = d.NewObject(core.ObjectRenderPass, dc.Device)
	}
	if !t.OmitImageViews {
		ext.ImageViews = []core.Object{d.NewObject(core.ObjectImageView, dc.Device)}
	}
	if !t.OmitVertexBuffer {
		ext.VertexMemory = d.NewObject(core.ObjectMemory, dc.Device)
		ext.VertexBuffer = d.NewObject(core.ObjectBuffer, dc.Device, ext.VertexMemory)
	}
	t.External = ext
	return ext, nil
}

// Completed implements core.Target
func (t *Target) Completed(dc *core.DeviceContext) error {
	t.Completes++
	return t.CompletedErr
}

// Detach implements core.Target, it destroys the render pass and views.
func (t *Target) Detach(dc *core.DeviceContext) {
	t.Detached = true
	for _, v := range t.External.ImageViews {
		if v.Valid() {
			t.Driver.Destroy(dc.Device, v)
		}
	}
	if t.External.RenderPass.Valid() {
		t.Driver.Destroy(dc.Device, t.External.RenderPass)
	}
}
