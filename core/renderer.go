// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ShaderCode is the SPIR-V of the two programmable stages.
type ShaderCode struct {
	Vertex   []byte
	Fragment []byte
}

// Report summarises a rendered frame.
type Report struct {
	Device   PhysicalDeviceInfo
	Draws    []DrawCall
	Released []Object
	Timings  *FrameTimings
}

// Renderer runs the frame sequence: context, device, pipeline, recording,
// submission, wait, teardown.
type Renderer struct {
	driver Driver
	cfg    Configuration
	log    *logrus.Entry
}

// NewRenderer creates a renderer, log defaults to the standard logger.
func NewRenderer(driver Driver, cfg Configuration, log *logrus.Entry) *Renderer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Renderer{
		driver: driver,
		cfg:    cfg,
		log:    log,
	}
}

// Run renders one frame into target. Everything created on the way is
// released before Run returns, on failure too. Objects a pending
// submission still uses are never released; they are reported and leaked.
func (r *Renderer) Run(ctx context.Context, target Target, shaders ShaderCode) (report *Report, err error) {
	timings := NewFrameTimings()
	lifecycle := NewLifecycle(r.driver, r.log)
	var (
		dc       *DeviceContext
		attached bool
	)

	defer func() {
		terr := r.teardown(lifecycle, target, dc, attached)
		timings.Mark(StageTeardown)
		if err == nil && terr != nil {
			report, err = nil, terr
		}
		if report != nil {
			report.Released = lifecycle.Released()
		}
		r.log.WithFields(timings.Fields()).Debug("frame timings")
	}()

	gc, err := NewGraphicsContext(r.driver, r.cfg.Instance, lifecycle, r.log)
	if err != nil {
		return nil, err
	}
	timings.Mark(StageContext)

	dc, err = gc.SelectDevice(r.cfg.Device)
	if err != nil {
		return nil, err
	}
	timings.Mark(StageDevice)

	ext, err := target.Attach(dc)
	attached = true
	if err != nil {
		return nil, err
	}

	// the frame owns the vertex data and the semaphores from here on
	lifecycle.Track(ext.VertexMemory, dc.Device)
	lifecycle.Track(ext.VertexBuffer, dc.Device, ext.VertexMemory)
	for _, s := range ext.Semaphores {
		lifecycle.Track(s, dc.Device)
	}

	pipeline, err := dc.BuildPipeline(NewPipelineConfig(shaders.Vertex, shaders.Fragment, ext.RenderPass, ext.Subpass))
	if err != nil {
		return nil, err
	}
	if r.cfg.Renderer.ReleaseShaderModules {
		if err := pipeline.ReleaseShaderModules(); err != nil {
			return nil, err
		}
	}
	timings.Mark(StagePipeline)

	framebuffer, err := dc.CreateFramebuffer(ext.RenderPass, ext.ImageViews, ext.Extent)
	if err != nil {
		return nil, err
	}
	pool, err := dc.CreateCommandPool()
	if err != nil {
		return nil, err
	}

	begin := RenderPassBeginInfo{
		RenderPass:  ext.RenderPass,
		Framebuffer: framebuffer,
		ClearColor:  OpaqueBlack,
	}
	begin.RenderArea.Extent = ext.Extent
	frame, err := dc.RecordFrame(pool, pipeline, framebuffer, begin, ext.VertexBuffer)
	if err != nil {
		return nil, err
	}
	timings.Mark(StageRecord)

	submission, err := dc.Submit(frame, r.cfg.Sync)
	if err != nil {
		return nil, err
	}
	timings.Mark(StageSubmit)

	if err := submission.Wait(ctx); err != nil {
		return nil, err
	}
	timings.Mark(StageWait)

	if err := target.Completed(dc); err != nil {
		return nil, err
	}
	timings.Mark(StageReadback)

	return &Report{
		Device:  dc.Physical,
		Draws:   frame.Draws,
		Timings: timings,
	}, nil
}

func (r *Renderer) teardown(lifecycle *Lifecycle, target Target, dc *DeviceContext, attached bool) error {
	inFlight, err := lifecycle.InFlight()
	if err != nil {
		r.log.WithError(err).Error("cannot query pending submissions")
		return err
	}
	if inFlight {
		err := Errorf(ResourceInUseError, "core.Renderer.teardown", "submission still pending, leaking the device")
		r.log.WithError(err).Error("teardown skipped")
		return err
	}

	ferr := lifecycle.ReleaseFrame()
	if attached && dc != nil {
		target.Detach(dc)
	}
	terr := lifecycle.Teardown()
	if ferr != nil {
		return ferr
	}
	return terr
}
