package vulkan

import (
	"github.com/devblok/triangle/core"
	vk "github.com/vulkan-go/vulkan"
)

func commandBuffer(cmd core.Object) vk.CommandBuffer {
	return cmd.Inner.(vk.CommandBuffer)
}

// BeginCommandBuffer implements core.Commands
func (d *Driver) BeginCommandBuffer(cmd core.Object, usage vk.CommandBufferUsageFlagBits) error {
	const op = "vk.BeginCommandBuffer"
	if err := handleOf(cmd, core.ObjectCommandBuffer, op); err != nil {
		return err
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(usage),
	}
	return check(core.RecordingError, op, vk.BeginCommandBuffer(commandBuffer(cmd), &cbbi))
}

// CmdBeginRenderPass implements core.Commands
func (d *Driver) CmdBeginRenderPass(cmd core.Object, info core.RenderPassBeginInfo) {
	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor(info.ClearColor[:])
	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      info.RenderPass.Inner.(vk.RenderPass),
		Framebuffer:     info.Framebuffer.Inner.(vk.Framebuffer),
		RenderArea:      info.RenderArea,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(commandBuffer(cmd), &rpbi, vk.SubpassContentsInline)
}

// CmdBindPipeline implements core.Commands
func (d *Driver) CmdBindPipeline(cmd core.Object, pipeline core.Object) {
	vk.CmdBindPipeline(commandBuffer(cmd), vk.PipelineBindPointGraphics, pipeline.Inner.(vk.Pipeline))
}

// CmdSetViewport implements core.Commands
func (d *Driver) CmdSetViewport(cmd core.Object, viewport vk.Viewport) {
	vk.CmdSetViewport(commandBuffer(cmd), 0, 1, []vk.Viewport{viewport})
}

// CmdSetScissor implements core.Commands
func (d *Driver) CmdSetScissor(cmd core.Object, scissor vk.Rect2D) {
	vk.CmdSetScissor(commandBuffer(cmd), 0, 1, []vk.Rect2D{scissor})
}

// CmdBindVertexBuffer implements core.Commands
func (d *Driver) CmdBindVertexBuffer(cmd core.Object, binding uint32, buffer core.Object, offset uint64) {
	vk.CmdBindVertexBuffers(commandBuffer(cmd), binding, 1,
		[]vk.Buffer{buffer.Inner.(vk.Buffer)}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

// CmdDraw implements core.Commands
func (d *Driver) CmdDraw(cmd core.Object, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(commandBuffer(cmd), vertexCount, instanceCount, firstVertex, firstInstance)
}

// CmdEndRenderPass implements core.Commands
func (d *Driver) CmdEndRenderPass(cmd core.Object) {
	vk.CmdEndRenderPass(commandBuffer(cmd))
}

// EndCommandBuffer implements core.Commands
func (d *Driver) EndCommandBuffer(cmd core.Object) error {
	const op = "vk.EndCommandBuffer"
	if err := handleOf(cmd, core.ObjectCommandBuffer, op); err != nil {
		return err
	}
	return check(core.RecordingError, op, vk.EndCommandBuffer(commandBuffer(cmd)))
}
