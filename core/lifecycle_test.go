package core_test

import (
	"context"
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseRejectedWhileSubmissionPending(t *testing.T) {
	f, frame := recordedFixture(t)
	f.drv.AutoSignal = false
	lc := f.dc.Lifecycle()

	s, err := f.dc.Submit(frame, core.SyncConfiguration{})
	require.NoError(t, err)

	for _, obj := range []core.Object{f.pipeline.Handle, f.framebuffer, f.vertexBuffer, s.Fence, frame.CommandBuffer} {
		err := lc.Release(obj)
		assert.True(t, core.IsKind(err, core.ResourceInUseError), "%s: %v", obj.Kind, err)
		assert.True(t, lc.Live(obj))
	}

	err = lc.ReleaseFrame()
	assert.True(t, core.IsKind(err, core.ResourceInUseError), "%v", err)
	assert.Empty(t, f.drv.Destroyed())

	inFlight, err := lc.InFlight()
	require.NoError(t, err)
	assert.True(t, inFlight)

	f.drv.Signal(s.Fence)
	require.NoError(t, lc.ReleaseFrame())
	assert.False(t, lc.Live(f.pipeline.Handle))
}

func TestReleaseFrameOrder(t *testing.T) {
	f, frame := recordedFixture(t)
	lc := f.dc.Lifecycle()
	sem := f.drv.NewObject(core.ObjectSemaphore, f.dc.Device)
	lc.Track(sem, f.dc.Device)

	_, err := f.dc.SubmitAndWait(context.Background(), frame, core.SyncConfiguration{})
	require.NoError(t, err)
	require.NoError(t, lc.ReleaseFrame())

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
	}, f.drv.DestroyedKinds())
	assert.Equal(t, f.drv.Destroyed(), lc.Released())

	// pool, device and instance outlive the frame
	assert.Equal(t, 1, f.drv.Live(core.ObjectCommandPool))
	assert.Equal(t, 1, f.drv.Live(core.ObjectDevice))
}

func TestLayoutOutlivesPipeline(t *testing.T) {
	f := newFrameFixture(t)
	lc := f.dc.Lifecycle()

	err := lc.Release(f.pipeline.Layout)
	assert.True(t, core.IsKind(err, core.ResourceInUseError), "%v", err)
	assert.True(t, lc.Live(f.pipeline.Layout))

	require.NoError(t, lc.Release(f.pipeline.Handle))
	require.NoError(t, lc.Release(f.pipeline.Layout))

	destroyed := f.drv.DestroyedKinds()
	assert.Equal(t, []core.ObjectKind{core.ObjectPipeline, core.ObjectPipelineLayout}, destroyed)
}

func TestMemoryOutlivesBuffer(t *testing.T) {
	f := newFrameFixture(t)
	lc := f.dc.Lifecycle()
	memory := f.drv.NewObject(core.ObjectMemory, f.dc.Device)
	buffer := f.drv.NewObject(core.ObjectBuffer, f.dc.Device, memory)
	lc.Track(memory, f.dc.Device)
	lc.Track(buffer, f.dc.Device, memory)

	assert.True(t, core.IsKind(lc.Release(memory), core.ResourceInUseError))
	require.NoError(t, lc.Release(buffer))
	require.NoError(t, lc.Release(memory))
}

func TestReleaseTwice(t *testing.T) {
	f := newFrameFixture(t)
	lc := f.dc.Lifecycle()

	require.NoError(t, lc.Release(f.pipeline.VertexModule))
	err := lc.Release(f.pipeline.VertexModule)
	assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
}

func TestTeardownDestroysDeviceAndInstanceLast(t *testing.T) {
	f, frame := recordedFixture(t)
	lc := f.dc.Lifecycle()
	_, err := f.dc.SubmitAndWait(context.Background(), frame, core.SyncConfiguration{})
	require.NoError(t, err)

	require.NoError(t, lc.ReleaseFrame())
	// the fixture's render pass and image view belong to the caller
	require.NoError(t, f.drv.Destroy(f.dc.Device, f.view))
	require.NoError(t, f.drv.Destroy(f.dc.Device, f.pipeline.RenderPass))
	require.NoError(t, lc.Teardown())

	kinds := f.drv.DestroyedKinds()
	require.True(t, len(kinds) >= 3)
	assert.Equal(t, []core.ObjectKind{
		core.ObjectCommandPool,
		core.ObjectDevice,
		core.ObjectInstance,
	}, kinds[len(kinds)-3:])
	assert.Zero(t, f.drv.Leaked())
}
