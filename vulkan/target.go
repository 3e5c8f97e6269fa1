// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"image"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/model"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// ColorFormat is the format of the off-screen color attachment.
const ColorFormat = vk.FormatR8g8b8a8Unorm

// OffscreenTarget renders into an image nobody presents and reads the
// result back into host memory once the frame completed.
type OffscreenTarget struct {
	driver *Driver
	log    *logrus.Entry

	Width  uint32
	Height uint32

	// Image holds the rendered frame after Completed
	Image *image.RGBA

	alloc       *MemoryAllocator
	image       vk.Image
	imageMemory *Memory
	view        core.Object
	renderPass  core.Object
	readback    *Buffer
}

var _ core.Target = (*OffscreenTarget)(nil)

// NewOffscreenTarget returns a target of the given size.
func NewOffscreenTarget(driver *Driver, width, height uint32) *OffscreenTarget {
	return &OffscreenTarget{
		driver: driver,
		log:    driver.log.WithField("target", "offscreen"),
		Width:  width,
		Height: height,
	}
}

func (t *OffscreenTarget) extent() vk.Extent2D {
	return vk.Extent2D{Width: t.Width, Height: t.Height}
}

// frameBytes is the size of one R8G8B8A8 frame.
func (t *OffscreenTarget) frameBytes() uint64 {
	return uint64(t.Width) * uint64(t.Height) * 4
}

// Attach implements core.Target. The vertex buffer, its memory and the
// semaphores are handed over; everything else stays with the target.
func (t *OffscreenTarget) Attach(dc *core.DeviceContext) (ext core.External, err error) {
	const op = "vulkan.OffscreenTarget.Attach"
	if t.Width == 0 || t.Height == 0 {
		return core.External{}, core.Errorf(core.MissingDependencyError, op, "extent %dx%d is empty", t.Width, t.Height)
	}
	dev := dc.Device.Inner.(vk.Device)
	t.alloc = NewMemoryAllocator(dev, dc.Physical.Handle.Inner.(vk.PhysicalDevice))

	var (
		vertex     *Buffer
		semaphores []core.Object
	)
	defer func() {
		if err == nil {
			return
		}
		for _, s := range semaphores {
			t.driver.Destroy(dc.Device, s)
		}
		if vertex != nil {
			vertex.Release()
		}
		t.Detach(dc)
		ext = core.External{}
	}()

	if err := t.createColorImage(dev); err != nil {
		return core.External{}, err
	}
	if err := t.createRenderPass(dev); err != nil {
		return core.External{}, err
	}

	data := model.Bytes(model.Triangle)
	if vertex, err = NewBuffer(dev, uint(len(data)), vk.BufferUsageVertexBufferBit, t.alloc); err != nil {
		return core.External{}, err
	}
	if err := vertex.Mem().Write(data); err != nil {
		return core.External{}, err
	}

	for i := 0; i < 2; i++ {
		s, err := t.driver.CreateSemaphore(dc.Device)
		if err != nil {
			return core.External{}, err
		}
		semaphores = append(semaphores, s)
	}

	if t.readback, err = NewBuffer(dev, uint(t.frameBytes()), vk.BufferUsageTransferDstBit, t.alloc); err != nil {
		return core.External{}, err
	}

	t.log.WithFields(logrus.Fields{
		"width":  t.Width,
		"height": t.Height,
	}).Debug("attached")

	return core.External{
		RenderPass:   t.renderPass,
		ImageViews:   []core.Object{t.view},
		Extent:       t.extent(),
		VertexBuffer: vertex.Object(),
		VertexMemory: vertex.Mem().Object(),
		Semaphores:   semaphores,
	}, nil
}

func (t *OffscreenTarget) createColorImage(dev vk.Device) error {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    ColorFormat,
		Extent: vk.Extent3D{
			Width:  t.Width,
			Height: t.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if err := check(core.ResourceCreationFailure, "vk.CreateImage", vk.CreateImage(dev, &ici, nil, &img)); err != nil {
		return err
	}
	t.image = img

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, img, &req)
	req.Deref()
	memory, err := t.alloc.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return err
	}
	t.imageMemory = memory
	if err := check(core.ResourceCreationFailure, "vk.BindImageMemory",
		vk.BindImageMemory(dev, img, memory.memory, 0)); err != nil {
		return err
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   ColorFormat,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := check(core.ResourceCreationFailure, "vk.CreateImageView",
		vk.CreateImageView(dev, &ivci, nil, &view)); err != nil {
		return err
	}
	t.view = core.Object{Kind: core.ObjectImageView, Inner: view}
	return nil
}

// createRenderPass leaves the attachment ready to be copied from.
func (t *OffscreenTarget) createRenderPass(dev vk.Device) error {
	attachments := []vk.AttachmentDescription{{
		Format:         ColorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutTransferSrcOptimal,
	}}
	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}, {
		SrcSubpass:    0,
		DstSubpass:    vk.SubpassExternal,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstAccessMask: vk.AccessFlags(vk.AccessTransferReadBit),
	}}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachmentRef)),
		PColorAttachments:    colorAttachmentRef,
	}
	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var renderPass vk.RenderPass
	if err := check(core.ResourceCreationFailure, "vk.CreateRenderPass",
		vk.CreateRenderPass(dev, &rpci, nil, &renderPass)); err != nil {
		return err
	}
	t.renderPass = core.Object{Kind: core.ObjectRenderPass, Inner: renderPass}
	return nil
}

// Completed implements core.Target, it copies the rendered image into
// Image. The copy is submitted with a fence of its own.
func (t *OffscreenTarget) Completed(dc *core.DeviceContext) error {
	const op = "vulkan.OffscreenTarget.Completed"
	if t.readback == nil || t.image == nil {
		return core.Errorf(core.MissingDependencyError, op, "target is not attached")
	}

	pool, err := t.driver.CreateCommandPool(dc.Device, dc.QueueFamily)
	if err != nil {
		return err
	}
	defer t.driver.Destroy(dc.Device, pool)

	cmd, err := t.driver.AllocateCommandBuffer(dc.Device, pool)
	if err != nil {
		return err
	}
	if err := t.driver.BeginCommandBuffer(cmd, vk.CommandBufferUsageOneTimeSubmitBit); err != nil {
		return err
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: t.Width, Height: t.Height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(commandBuffer(cmd), t.image, vk.ImageLayoutTransferSrcOptimal,
		t.readback.buffer, 1, []vk.BufferImageCopy{region})
	if err := t.driver.EndCommandBuffer(cmd); err != nil {
		return err
	}

	fence, err := t.driver.CreateFence(dc.Device, false)
	if err != nil {
		return err
	}
	defer t.driver.Destroy(dc.Device, fence)

	if err := t.driver.QueueSubmit(dc.Queue, core.SubmitInfo{CommandBuffers: []core.Object{cmd}}, fence); err != nil {
		return err
	}
	if err := t.driver.WaitForFence(dc.Device, fence, core.Infinite); err != nil {
		return err
	}

	size := int(t.frameBytes())
	pixels, err := t.readback.Mem().Read(size)
	if err != nil {
		return err
	}
	t.Image = &image.RGBA{
		Pix:    pixels,
		Stride: int(t.Width) * 4,
		Rect:   image.Rect(0, 0, int(t.Width), int(t.Height)),
	}
	t.log.WithField("bytes", size).Debug("frame read back")
	return nil
}

// Detach implements core.Target, releasing what the target still owns.
func (t *OffscreenTarget) Detach(dc *core.DeviceContext) {
	dev := dc.Device.Inner.(vk.Device)
	if t.readback != nil {
		t.readback.Release()
		t.readback = nil
	}
	if t.view.Valid() {
		t.driver.Destroy(dc.Device, t.view)
		t.view = core.Object{}
	}
	if t.renderPass.Valid() {
		t.driver.Destroy(dc.Device, t.renderPass)
		t.renderPass = core.Object{}
	}
	if t.image != nil {
		vk.DestroyImage(dev, t.image, nil)
		t.image = nil
	}
	if t.imageMemory != nil {
		t.imageMemory.Release()
		t.imageMemory = nil
	}
}
