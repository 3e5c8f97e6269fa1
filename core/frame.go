package core

import (
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// DrawCall is one recorded non-indexed draw.
type DrawCall struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// TriangleDraw draws a single non-indexed triangle.
var TriangleDraw = DrawCall{VertexCount: 3, InstanceCount: 1}

// OpaqueBlack is the clear value of the render pass.
var OpaqueBlack = [4]float32{0, 0, 0, 1}

// CommandRecorder guards a command buffer so commands reach the driver
// only in the order a single-draw frame allows:
// begin, begin render pass, bind pipeline, viewport and scissor,
// bind vertex buffer, draw, end render pass, end.
type CommandRecorder struct {
	cmds   Commands
	buffer Object

	began          bool
	inRenderPass   bool
	renderPassDone bool
	pipelineBound  bool
	viewportSet    bool
	scissorSet     bool
	vertexBound    bool
	ended          bool

	renderPass Object
	pipeline   *Pipeline
	draws      []DrawCall
}

// NewCommandRecorder wraps an allocated command buffer.
func NewCommandRecorder(cmds Commands, buffer Object) *CommandRecorder {
	return &CommandRecorder{
		cmds:   cmds,
		buffer: buffer,
	}
}

func (r *CommandRecorder) outOfOrder(step, reason string) error {
	return Errorf(RecordingError, "core.CommandRecorder."+step, "%s", reason)
}

// Begin starts recording for simultaneous use.
func (r *CommandRecorder) Begin() error {
	if !r.buffer.Is(ObjectCommandBuffer) {
		return Errorf(MissingDependencyError, "core.CommandRecorder.Begin", "command buffer is absent")
	}
	if r.began {
		return r.outOfOrder("Begin", "recording already started")
	}
	if err := r.cmds.BeginCommandBuffer(r.buffer, vk.CommandBufferUsageSimultaneousUseBit); err != nil {
		return classify(RecordingError, "core.CommandRecorder.Begin", err)
	}
	r.began = true
	return nil
}

// BeginRenderPass starts the single render pass instance.
func (r *CommandRecorder) BeginRenderPass(info RenderPassBeginInfo) error {
	switch {
	case !r.began || r.ended:
		return r.outOfOrder("BeginRenderPass", "not recording")
	case r.inRenderPass || r.renderPassDone:
		return r.outOfOrder("BeginRenderPass", "render pass already begun")
	}
	if !info.RenderPass.Is(ObjectRenderPass) {
		return Errorf(MissingDependencyError, "core.CommandRecorder.BeginRenderPass", "render pass is absent")
	}
	if !info.Framebuffer.Is(ObjectFramebuffer) {
		return Errorf(MissingDependencyError, "core.CommandRecorder.BeginRenderPass", "framebuffer is absent")
	}
	r.cmds.CmdBeginRenderPass(r.buffer, info)
	r.inRenderPass = true
	r.renderPass = info.RenderPass
	return nil
}

// BindPipeline binds the graphics pipeline. It must have been built for
// the render pass being recorded.
func (r *CommandRecorder) BindPipeline(p *Pipeline) error {
	switch {
	case !r.inRenderPass:
		return r.outOfOrder("BindPipeline", "outside of a render pass")
	case len(r.draws) > 0:
		return r.outOfOrder("BindPipeline", "pipeline bound after the draw")
	}
	if p == nil || !p.Handle.Is(ObjectPipeline) {
		return Errorf(MissingDependencyError, "core.CommandRecorder.BindPipeline", "pipeline is absent")
	}
	if p.RenderPass != r.renderPass {
		return r.outOfOrder("BindPipeline", "pipeline was built for a different render pass")
	}
	r.cmds.CmdBindPipeline(r.buffer, p.Handle)
	r.pipelineBound = true
	r.pipeline = p
	return nil
}

// SetViewport sets the dynamic viewport.
func (r *CommandRecorder) SetViewport(viewport vk.Viewport) error {
	if !r.pipelineBound || len(r.draws) > 0 {
		return r.outOfOrder("SetViewport", "viewport must be set between bind and draw")
	}
	r.cmds.CmdSetViewport(r.buffer, viewport)
	r.viewportSet = true
	return nil
}

// SetScissor sets the dynamic scissor.
func (r *CommandRecorder) SetScissor(scissor vk.Rect2D) error {
	if !r.pipelineBound || len(r.draws) > 0 {
		return r.outOfOrder("SetScissor", "scissor must be set between bind and draw")
	}
	r.cmds.CmdSetScissor(r.buffer, scissor)
	r.scissorSet = true
	return nil
}

// BindVertexBuffer binds buffer at slot 0, offset 0.
func (r *CommandRecorder) BindVertexBuffer(buffer Object) error {
	if !r.pipelineBound || len(r.draws) > 0 {
		return r.outOfOrder("BindVertexBuffer", "vertex buffer must be bound between bind pipeline and draw")
	}
	if !buffer.Is(ObjectBuffer) {
		return Errorf(MissingDependencyError, "core.CommandRecorder.BindVertexBuffer", "vertex buffer is absent")
	}
	r.cmds.CmdBindVertexBuffer(r.buffer, 0, buffer, 0)
	r.vertexBound = true
	return nil
}

// Draw issues the frame's only draw.
func (r *CommandRecorder) Draw(call DrawCall) error {
	switch {
	case !r.inRenderPass:
		return r.outOfOrder("Draw", "outside of a render pass")
	case !r.pipelineBound:
		return r.outOfOrder("Draw", "draw before bind pipeline")
	case !r.viewportSet || !r.scissorSet:
		return r.outOfOrder("Draw", "draw before dynamic viewport and scissor")
	case !r.vertexBound:
		return r.outOfOrder("Draw", "draw before bind vertex buffer")
	case len(r.draws) > 0:
		return r.outOfOrder("Draw", "frame already has its draw")
	}
	r.cmds.CmdDraw(r.buffer, call.VertexCount, call.InstanceCount, call.FirstVertex, call.FirstInstance)
	r.draws = append(r.draws, call)
	return nil
}

// EndRenderPass closes the render pass.
func (r *CommandRecorder) EndRenderPass() error {
	switch {
	case !r.inRenderPass:
		return r.outOfOrder("EndRenderPass", "no render pass to end")
	case len(r.draws) == 0:
		return r.outOfOrder("EndRenderPass", "render pass ended without a draw")
	}
	r.cmds.CmdEndRenderPass(r.buffer)
	r.inRenderPass = false
	r.renderPassDone = true
	return nil
}

// End finishes recording.
func (r *CommandRecorder) End() error {
	switch {
	case !r.began || r.ended:
		return r.outOfOrder("End", "not recording")
	case !r.renderPassDone:
		return r.outOfOrder("End", "render pass still open or never begun")
	}
	if err := r.cmds.EndCommandBuffer(r.buffer); err != nil {
		return classify(RecordingError, "core.CommandRecorder.End", err)
	}
	r.ended = true
	return nil
}

// Executable reports whether recording finished.
func (r *CommandRecorder) Executable() bool {
	return r.ended
}

// Draws returns the draws recorded so far.
func (r *CommandRecorder) Draws() []DrawCall {
	return append([]DrawCall(nil), r.draws...)
}

// Frame is one fully recorded command buffer and what it references.
type Frame struct {
	CommandBuffer Object
	Pipeline      *Pipeline
	Framebuffer   Object
	VertexBuffer  Object
	RenderArea    vk.Rect2D
	Draws         []DrawCall
}

// References lists every object the GPU reads while executing the frame.
func (f *Frame) References() []Object {
	refs := []Object{f.CommandBuffer, f.Framebuffer, f.VertexBuffer}
	if f.Pipeline != nil {
		refs = append(refs, f.Pipeline.Handle, f.Pipeline.Layout)
	}
	return refs
}

// CreateFramebuffer creates a single layer framebuffer over views.
func (d *DeviceContext) CreateFramebuffer(renderPass Object, views []Object, extent vk.Extent2D) (Object, error) {
	const op = "core.DeviceContext.CreateFramebuffer"
	if !renderPass.Is(ObjectRenderPass) {
		return Object{}, Errorf(MissingDependencyError, op, "render pass is absent")
	}
	if err := validateImageViews(op, views); err != nil {
		return Object{}, err
	}
	if extent.Width == 0 || extent.Height == 0 {
		return Object{}, Errorf(MissingDependencyError, op, "extent %dx%d is empty", extent.Width, extent.Height)
	}

	fb, err := d.Driver().CreateFramebuffer(d.Device, FramebufferInfo{
		RenderPass:  renderPass,
		Attachments: views,
		Extent:      extent,
		Layers:      1,
	})
	if err != nil {
		return Object{}, classify(ResourceCreationFailure, op, err)
	}
	d.Lifecycle().Track(fb, d.Device)
	return fb, nil
}

// CreateCommandPool creates a pool on the device's queue family.
func (d *DeviceContext) CreateCommandPool() (Object, error) {
	pool, err := d.Driver().CreateCommandPool(d.Device, d.QueueFamily)
	if err != nil {
		return Object{}, classify(ResourceCreationFailure, "core.DeviceContext.CreateCommandPool", err)
	}
	d.Lifecycle().Track(pool, d.Device)
	return pool, nil
}

// RecordFrame allocates a command buffer from pool and records one
// render pass with a single triangle draw over the full render area.
func (d *DeviceContext) RecordFrame(pool Object, p *Pipeline, framebuffer Object, begin RenderPassBeginInfo, vertexBuffer Object) (*Frame, error) {
	const op = "core.DeviceContext.RecordFrame"
	if !pool.Is(ObjectCommandPool) {
		return nil, Errorf(MissingDependencyError, op, "command pool is absent")
	}
	if p == nil {
		return nil, Errorf(MissingDependencyError, op, "pipeline is absent")
	}
	if p.recorded {
		return nil, Errorf(RecordingError, op, "pipeline already used by a recorded frame")
	}
	if !framebuffer.Is(ObjectFramebuffer) {
		return nil, Errorf(MissingDependencyError, op, "framebuffer is absent")
	}
	if !vertexBuffer.Is(ObjectBuffer) {
		return nil, Errorf(MissingDependencyError, op, "vertex buffer is absent")
	}
	if begin.RenderPass != p.RenderPass {
		return nil, Errorf(RecordingError, op, "pipeline was built for a different render pass")
	}

	cmd, err := d.Driver().AllocateCommandBuffer(d.Device, pool)
	if err != nil {
		return nil, classify(ResourceCreationFailure, op, err)
	}
	d.Lifecycle().Track(cmd, d.Device, pool)

	begin.Framebuffer = framebuffer
	area := begin.RenderArea
	rec := NewCommandRecorder(d.Driver(), cmd)
	steps := []func() error{
		rec.Begin,
		func() error { return rec.BeginRenderPass(begin) },
		func() error { return rec.BindPipeline(p) },
		func() error {
			return rec.SetViewport(vk.Viewport{
				X:        float32(area.Offset.X),
				Y:        float32(area.Offset.Y),
				Width:    float32(area.Extent.Width),
				Height:   float32(area.Extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			})
		},
		func() error { return rec.SetScissor(area) },
		func() error { return rec.BindVertexBuffer(vertexBuffer) },
		func() error { return rec.Draw(TriangleDraw) },
		rec.EndRenderPass,
		rec.End,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	p.recorded = true

	d.log().WithFields(logrus.Fields{
		"stage":  "record",
		"width":  area.Extent.Width,
		"height": area.Extent.Height,
	}).Info("frame recorded")

	return &Frame{
		CommandBuffer: cmd,
		Pipeline:      p,
		Framebuffer:   framebuffer,
		VertexBuffer:  vertexBuffer,
		RenderArea:    area,
		Draws:         rec.Draws(),
	}, nil
}
