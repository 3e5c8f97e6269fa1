package core

import (
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Vertex input the pipeline accepts: one binding of tightly packed
// 3×float32 positions.
const (
	PositionStride = 12
	PositionFormat = vk.FormatR32g32b32Sfloat
)

// VertexLayout describes how vertex buffers are read.
type VertexLayout struct {
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

// PositionLayout is the single binding, single attribute layout of a
// position-only vertex.
func PositionLayout() VertexLayout {
	return VertexLayout{
		Bindings: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    PositionStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		Attributes: []vk.VertexInputAttributeDescription{{
			Location: 0,
			Binding:  0,
			Format:   PositionFormat,
			Offset:   0,
		}},
	}
}

// Validate rejects anything but the position layout.
func (l VertexLayout) Validate() error {
	const op = "core.VertexLayout.Validate"
	if len(l.Bindings) != 1 {
		return Errorf(ResourceCreationFailure, op, "want 1 vertex binding, got %d", len(l.Bindings))
	}
	if len(l.Attributes) != 1 {
		return Errorf(ResourceCreationFailure, op, "want 1 vertex attribute, got %d", len(l.Attributes))
	}
	b, a := l.Bindings[0], l.Attributes[0]
	if b.Stride != PositionStride {
		return Errorf(ResourceCreationFailure, op, "vertex stride %d, want %d", b.Stride, PositionStride)
	}
	if b.InputRate != vk.VertexInputRateVertex {
		return Errorf(ResourceCreationFailure, op, "vertex binding must advance per vertex")
	}
	if a.Binding != b.Binding {
		return Errorf(ResourceCreationFailure, op, "attribute reads binding %d, only %d exists", a.Binding, b.Binding)
	}
	if a.Offset != 0 {
		return Errorf(ResourceCreationFailure, op, "attribute offset %d, want 0", a.Offset)
	}
	if a.Format != PositionFormat {
		return Errorf(ResourceCreationFailure, op, "attribute format %d, want R32G32B32_SFLOAT", a.Format)
	}
	return nil
}

// FixedFunctionState is the non-programmable part of the pipeline.
type FixedFunctionState struct {
	Topology       vk.PrimitiveTopology
	ViewportCount  uint32
	ScissorCount   uint32
	DynamicStates  []vk.DynamicState
	PolygonMode    vk.PolygonMode
	CullMode       vk.CullModeFlags
	FrontFace      vk.FrontFace
	LineWidth      float32
	Samples        vk.SampleCountFlagBits
	ColorWriteMask vk.ColorComponentFlags
	BlendEnable    bool
}

// DefaultFixedFunctionState is the only state pipelines are built with:
// triangle list, one dynamic viewport and scissor, filled, back faces
// culled, counter-clockwise front faces, single sample, opaque writes.
func DefaultFixedFunctionState() FixedFunctionState {
	return FixedFunctionState{
		Topology:      vk.PrimitiveTopologyTriangleList,
		ViewportCount: 1,
		ScissorCount:  1,
		DynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
		Samples:     vk.SampleCount1Bit,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable: false,
	}
}

// PipelineConfig is everything a pipeline is built from.
type PipelineConfig struct {
	VertexShader   []byte
	FragmentShader []byte
	EntryPoint     string

	RenderPass Object
	Subpass    uint32

	Vertex VertexLayout
}

// NewPipelineConfig fills in the entry point and the position layout.
func NewPipelineConfig(vertex, fragment []byte, renderPass Object, subpass uint32) PipelineConfig {
	return PipelineConfig{
		VertexShader:   vertex,
		FragmentShader: fragment,
		EntryPoint:     "main",
		RenderPass:     renderPass,
		Subpass:        subpass,
		Vertex:         PositionLayout(),
	}
}

// Validate checks the config before anything is created.
func (c PipelineConfig) Validate() error {
	const op = "core.PipelineConfig.Validate"
	if !c.RenderPass.Is(ObjectRenderPass) {
		return Errorf(MissingDependencyError, op, "render pass is absent")
	}
	if len(c.VertexShader) == 0 || len(c.FragmentShader) == 0 {
		return Errorf(ShaderCompilationError, op, "both vertex and fragment bytecode are required")
	}
	if c.EntryPoint == "" {
		return Errorf(ShaderCompilationError, op, "entry point is empty")
	}
	return c.Vertex.Validate()
}

// Pipeline is a built graphics pipeline together with what it was built from.
type Pipeline struct {
	Handle         Object
	Layout         Object
	VertexModule   Object
	FragmentModule Object

	RenderPass Object
	Subpass    uint32
	Fixed      FixedFunctionState

	dc       *DeviceContext
	recorded bool
}

// BuildPipeline creates both shader modules, an empty layout and the
// pipeline. Partially created objects stay tracked and are released with
// the rest of the frame.
func (d *DeviceContext) BuildPipeline(cfg PipelineConfig) (*Pipeline, error) {
	const op = "core.DeviceContext.BuildPipeline"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drv, lc := d.Driver(), d.Lifecycle()

	modules := make([]Object, 2)
	for i, code := range [][]byte{cfg.VertexShader, cfg.FragmentShader} {
		if err := ValidateSPIRV(code, d.Context.APIVersion); err != nil {
			return nil, err
		}
		module, err := drv.CreateShaderModule(d.Device, SliceUint32(code))
		if err != nil {
			return nil, classify(ShaderCompilationError, op, err)
		}
		lc.Track(module, d.Device)
		modules[i] = module
	}

	layout, err := drv.CreatePipelineLayout(d.Device)
	if err != nil {
		return nil, classify(ResourceCreationFailure, op, err)
	}
	lc.Track(layout, d.Device)

	fixed := DefaultFixedFunctionState()
	handle, err := drv.CreateGraphicsPipeline(d.Device, GraphicsPipelineInfo{
		Stages: []ShaderStage{
			{Stage: vk.ShaderStageVertexBit, Module: modules[0], EntryPoint: cfg.EntryPoint},
			{Stage: vk.ShaderStageFragmentBit, Module: modules[1], EntryPoint: cfg.EntryPoint},
		},
		Vertex:     cfg.Vertex,
		Fixed:      fixed,
		Layout:     layout,
		RenderPass: cfg.RenderPass,
		Subpass:    cfg.Subpass,
	})
	if err != nil {
		return nil, classify(ResourceCreationFailure, op, err)
	}
	lc.Track(handle, d.Device, layout)

	d.log().WithFields(logrus.Fields{
		"stage":   "pipeline",
		"subpass": cfg.Subpass,
	}).Info("pipeline created")

	return &Pipeline{
		Handle:         handle,
		Layout:         layout,
		VertexModule:   modules[0],
		FragmentModule: modules[1],
		RenderPass:     cfg.RenderPass,
		Subpass:        cfg.Subpass,
		Fixed:          fixed,
		dc:             d,
	}, nil
}

// ReleaseShaderModules destroys both shader modules. The pipeline does
// not need them once it exists.
func (p *Pipeline) ReleaseShaderModules() error {
	lc := p.dc.Lifecycle()
	for _, m := range []*Object{&p.VertexModule, &p.FragmentModule} {
		if !lc.Live(*m) {
			continue
		}
		if err := lc.Release(*m); err != nil {
			return err
		}
		*m = Object{}
	}
	return nil
}

// classify keeps a driver's own kind and falls back to kind otherwise.
func classify(kind Kind, op string, err error) error {
	if IsKind(err, UnknownError) {
		return Wrap(kind, op, err)
	}
	return err
}
