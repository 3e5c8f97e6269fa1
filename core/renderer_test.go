package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/core/coretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererRun(t *testing.T) {
	drv := coretest.NewDriver()
	target := coretest.NewTarget(drv)
	r := core.NewRenderer(drv, core.DefaultConfiguration(), quietLog())

	report, err := r.Run(context.Background(), target, coretest.Shaders())
	require.NoError(t, err)
	assert.Equal(t, "Fake GPU", report.Device.Name)
	assert.Equal(t, []core.DrawCall{core.TriangleDraw}, report.Draws)
	assert.Equal(t, 1, target.Completes)
	assert.True(t, target.Detached)
	assert.Zero(t, drv.Leaked())

	assert.Equal(t, []core.ObjectKind{
		core.ObjectFence,
		core.ObjectCommandBuffer,
		core.ObjectFramebuffer,
		core.ObjectPipeline,
		core.ObjectPipelineLayout,
		core.ObjectShaderModule,
		core.ObjectShaderModule,
		core.ObjectBuffer,
		core.ObjectMemory,
		core.ObjectSemaphore,
		core.ObjectSemaphore,
		core.ObjectImageView,
		core.ObjectRenderPass,
		core.ObjectCommandPool,
		core.ObjectDevice,
		core.ObjectInstance,
	}, drv.DestroyedKinds())

	require.NotNil(t, report.Timings)
	for _, stage := range []string{core.StagePipeline, core.StageRecord, core.StageWait, core.StageTeardown} {
		found := false
		for _, s := range report.Timings.Stages {
			found = found || s.Stage == stage
		}
		assert.True(t, found, stage)
	}
}

func TestRendererClearsToOpaqueBlack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triangle.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nclear_color = [1.0, 0.0, 0.0, 0.0]\n"), 0644))
	cfg, err := core.LoadConfiguration(path, "")
	require.NoError(t, err)

	drv := coretest.NewDriver()
	_, err = core.NewRenderer(drv, cfg, quietLog()).Run(context.Background(), coretest.NewTarget(drv), coretest.Shaders())
	require.NoError(t, err)
	require.Len(t, drv.Passes, 1)
	assert.Equal(t, core.OpaqueBlack, drv.Passes[0].ClearColor)
}

func TestRendererReleasesShaderModulesEarly(t *testing.T) {
	drv := coretest.NewDriver()
	cfg := core.DefaultConfiguration()
	cfg.Renderer.ReleaseShaderModules = true
	r := core.NewRenderer(drv, cfg, quietLog())

	_, err := r.Run(context.Background(), coretest.NewTarget(drv), coretest.Shaders())
	require.NoError(t, err)

	kinds := drv.DestroyedKinds()
	require.True(t, len(kinds) > 2)
	assert.Equal(t, []core.ObjectKind{core.ObjectShaderModule, core.ObjectShaderModule}, kinds[:2])
	assert.Zero(t, drv.Leaked())
}

func TestRendererMissingExternals(t *testing.T) {
	cases := map[string]func(*coretest.Target){
		"render pass":   func(tg *coretest.Target) { tg.OmitRenderPass = true },
		"image views":   func(tg *coretest.Target) { tg.OmitImageViews = true },
		"vertex buffer": func(tg *coretest.Target) { tg.OmitVertexBuffer = true },
	}
	for name, omit := range cases {
		t.Run(name, func(t *testing.T) {
			drv := coretest.NewDriver()
			target := coretest.NewTarget(drv)
			omit(target)
			r := core.NewRenderer(drv, core.DefaultConfiguration(), quietLog())

			_, err := r.Run(context.Background(), target, coretest.Shaders())
			assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
			assert.Empty(t, drv.Submits)
			assert.True(t, target.Detached)
			assert.Zero(t, drv.Leaked())
		})
	}
}

func TestExternalValidate(t *testing.T) {
	drv := coretest.NewDriver()
	dc := newDevice(t, drv)
	target := coretest.NewTarget(drv)
	ext, err := target.Attach(dc)
	require.NoError(t, err)
	require.NoError(t, ext.Validate())

	missing := []func(*core.External){
		func(e *core.External) { e.RenderPass = core.Object{} },
		func(e *core.External) { e.ImageViews = []core.Object{{}} },
		func(e *core.External) { e.Extent.Width = 0 },
		func(e *core.External) { e.VertexBuffer = core.Object{} },
		func(e *core.External) { e.VertexMemory = core.Object{} },
		func(e *core.External) { e.Semaphores = []core.Object{{}} },
	}
	for i, modify := range missing {
		e := ext
		modify(&e)
		assert.True(t, core.IsKind(e.Validate(), core.MissingDependencyError), "case %d", i)
	}
}

func TestRendererFailureStillTearsDown(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Fail["CreateGraphicsPipeline"] = assert.AnError
	target := coretest.NewTarget(drv)
	r := core.NewRenderer(drv, core.DefaultConfiguration(), quietLog())

	_, err := r.Run(context.Background(), target, coretest.Shaders())
	assert.True(t, core.IsKind(err, core.ResourceCreationFailure), "%v", err)
	assert.True(t, target.Detached)
	assert.Zero(t, drv.Leaked())
}

func TestRendererTimeoutLeavesPendingObjects(t *testing.T) {
	drv := coretest.NewDriver()
	drv.AutoSignal = false
	target := coretest.NewTarget(drv)
	cfg := core.DefaultConfiguration()
	cfg.Sync.Timeout = core.Duration(10 * time.Millisecond)
	cfg.Sync.PollInterval = core.Duration(2 * time.Millisecond)
	r := core.NewRenderer(drv, cfg, quietLog())

	_, err := r.Run(context.Background(), target, coretest.Shaders())
	assert.True(t, core.IsKind(err, core.SyncTimeoutError), "%v", err)

	// nothing the GPU may still read was destroyed
	assert.Empty(t, drv.Destroyed())
	assert.False(t, target.Detached)
	assert.Zero(t, target.Completes)
}

func TestRendererRetriesDeviceLoss(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Fail["QueueSubmit"] = core.Errorf(core.SubmissionError, "vk.QueueSubmit", "lost").WithCondition(core.DeviceLost)
	r := core.NewRenderer(drv, core.DefaultConfiguration(), quietLog())

	attempts := 0
	err := core.Retry(2, func(attempt int) error {
		attempts++
		if attempt == 1 {
			delete(drv.Fail, "QueueSubmit")
		}
		_, err := r.Run(context.Background(), coretest.NewTarget(drv), coretest.Shaders())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Zero(t, drv.Leaked())
}
