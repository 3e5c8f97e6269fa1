package core

import (
	vk "github.com/vulkan-go/vulkan"
)

// External is what a surrounding application supplies to the frame:
// the render pass, the attachments and the vertex data. The frame never
// creates any of these.
type External struct {
	RenderPass Object
	Subpass    uint32
	ImageViews []Object
	Extent     vk.Extent2D

	// VertexBuffer must already hold the triangle vertices
	VertexBuffer Object
	VertexMemory Object

	// Semaphores are handed over for presentation sync and released
	// with the frame
	Semaphores []Object
}

// Validate fails with MissingDependencyError on the first absent input.
func (e External) Validate() error {
	const op = "core.External.Validate"
	if !e.RenderPass.Is(ObjectRenderPass) {
		return Errorf(MissingDependencyError, op, "render pass is absent")
	}
	if err := validateImageViews(op, e.ImageViews); err != nil {
		return err
	}
	if e.Extent.Width == 0 || e.Extent.Height == 0 {
		return Errorf(MissingDependencyError, op, "extent %dx%d is empty", e.Extent.Width, e.Extent.Height)
	}
	if !e.VertexBuffer.Is(ObjectBuffer) {
		return Errorf(MissingDependencyError, op, "vertex buffer is absent")
	}
	if !e.VertexMemory.Is(ObjectMemory) {
		return Errorf(MissingDependencyError, op, "vertex buffer memory is absent")
	}
	for i, s := range e.Semaphores {
		if !s.Is(ObjectSemaphore) {
			return Errorf(MissingDependencyError, op, "semaphore %d is absent", i)
		}
	}
	return nil
}

func validateImageViews(op string, views []Object) error {
	if len(views) == 0 {
		return Errorf(MissingDependencyError, op, "no image views")
	}
	for i, v := range views {
		if !v.Is(ObjectImageView) {
			return Errorf(MissingDependencyError, op, "image view %d is absent", i)
		}
	}
	return nil
}

// Target supplies the external inputs of a frame once a device exists.
type Target interface {
	// Attach creates or looks up everything the frame needs from outside.
	// Ownership of the vertex buffer, its memory and the semaphores passes
	// to the frame, the rest stays with the target.
	Attach(dc *DeviceContext) (External, error)

	// Completed is called once the frame's fence has signaled.
	Completed(dc *DeviceContext) error

	// Detach releases what the target still owns. It runs after the
	// frame's objects are gone and before the device is destroyed.
	Detach(dc *DeviceContext)
}
