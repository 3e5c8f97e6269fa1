package core_test

import (
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/core/coretest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func quietLog() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func newDevice(t *testing.T, drv *coretest.Driver) *core.DeviceContext {
	t.Helper()
	cfg := core.DefaultConfiguration()
	gc, err := core.NewGraphicsContext(drv, cfg.Instance, nil, quietLog())
	require.NoError(t, err)
	dc, err := gc.SelectDevice(cfg.Device)
	require.NoError(t, err)
	return dc
}

func TestNewGraphicsContext(t *testing.T) {
	drv := coretest.NewDriver()
	cfg := core.DefaultConfiguration().Instance
	cfg.DebugMode = true

	gc, err := core.NewGraphicsContext(drv, cfg, nil, quietLog())
	require.NoError(t, err)
	assert.True(t, gc.Instance.Is(core.ObjectInstance))
	assert.Equal(t, core.MakeVersion(1, 2, 0), gc.APIVersion)

	require.Len(t, drv.Instances, 1)
	info := drv.Instances[0]
	assert.Equal(t, "Triangle", info.Application.ApplicationName)
	assert.Contains(t, info.Extensions, core.DebugUtilsExtension)
	assert.Contains(t, info.Layers, core.ValidationLayer)
}

func TestNewGraphicsContextUnsupportedExtension(t *testing.T) {
	drv := coretest.NewDriver()
	cfg := core.DefaultConfiguration().Instance
	cfg.Extensions = []string{"VK_KHR_imaginary"}

	_, err := core.NewGraphicsContext(drv, cfg, nil, quietLog())
	assert.True(t, core.IsKind(err, core.InitializationError), "%v", err)
	assert.Empty(t, drv.Instances)
}

func TestNewGraphicsContextUnsupportedLayer(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Layers = nil
	cfg := core.DefaultConfiguration().Instance
	cfg.DebugMode = true

	_, err := core.NewGraphicsContext(drv, cfg, nil, quietLog())
	assert.True(t, core.IsKind(err, core.InitializationError), "%v", err)
}

func TestNewGraphicsContextRuntimeUnavailable(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Fail["InstanceExtensions"] = assert.AnError

	_, err := core.NewGraphicsContext(drv, core.DefaultConfiguration().Instance, nil, quietLog())
	assert.True(t, core.IsKind(err, core.InitializationError), "%v", err)
}

func TestSelectDeviceFirst(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Devices = []core.PhysicalDeviceInfo{
		coretest.Device("integrated", vk.PhysicalDeviceTypeIntegratedGpu),
		coretest.Device("discrete", vk.PhysicalDeviceTypeDiscreteGpu),
	}

	dc := newDevice(t, drv)
	assert.Equal(t, "integrated", dc.Physical.Name)
	assert.Equal(t, uint32(0), dc.QueueFamily)
	assert.True(t, dc.Queue.Is(core.ObjectQueue))

	require.Len(t, drv.DeviceSet, 1)
	assert.Equal(t, []float32{1.0}, drv.DeviceSet[0].QueuePriorities)
	assert.Empty(t, drv.DeviceSet[0].Extensions)
}

func TestSelectDeviceFirstWithoutDevices(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Devices = nil
	gc, err := core.NewGraphicsContext(drv, core.DefaultConfiguration().Instance, nil, quietLog())
	require.NoError(t, err)

	_, err = gc.SelectDevice(core.DeviceConfiguration{Selection: core.SelectFirst})
	assert.True(t, core.IsKind(err, core.NoSuitableDeviceError), "%v", err)
}

func TestSelectDeviceScore(t *testing.T) {
	drv := coretest.NewDriver()
	noGraphics := coretest.Device("compute only", vk.PhysicalDeviceTypeDiscreteGpu, "VK_KHR_swapchain")
	noGraphics.QueueFamilies[0].Graphics = false
	drv.Devices = []core.PhysicalDeviceInfo{
		coretest.Device("cpu", vk.PhysicalDeviceTypeCpu, "VK_KHR_swapchain"),
		noGraphics,
		coretest.Device("discrete without swapchain", vk.PhysicalDeviceTypeDiscreteGpu),
		coretest.Device("integrated", vk.PhysicalDeviceTypeIntegratedGpu, "VK_KHR_swapchain"),
	}
	gc, err := core.NewGraphicsContext(drv, core.DefaultConfiguration().Instance, nil, quietLog())
	require.NoError(t, err)

	dc, err := gc.SelectDevice(core.DeviceConfiguration{
		Selection:  core.SelectScore,
		Extensions: []string{"VK_KHR_swapchain"},
	})
	require.NoError(t, err)
	assert.Equal(t, "integrated", dc.Physical.Name)
	assert.Equal(t, []string{"VK_KHR_swapchain"}, drv.DeviceSet[0].Extensions)
}

func TestSelectDeviceScoreNoneQualify(t *testing.T) {
	drv := coretest.NewDriver()
	gc, err := core.NewGraphicsContext(drv, core.DefaultConfiguration().Instance, nil, quietLog())
	require.NoError(t, err)

	_, err = gc.SelectDevice(core.DeviceConfiguration{
		Selection:  core.SelectScore,
		Extensions: []string{"VK_KHR_swapchain"},
	})
	assert.True(t, core.IsKind(err, core.NoSuitableDeviceError), "%v", err)
	assert.Empty(t, drv.DeviceSet)
}

func TestSelectDeviceCreationFailure(t *testing.T) {
	drv := coretest.NewDriver()
	drv.Fail["CreateDevice"] = assert.AnError
	gc, err := core.NewGraphicsContext(drv, core.DefaultConfiguration().Instance, nil, quietLog())
	require.NoError(t, err)

	_, err = gc.SelectDevice(core.DeviceConfiguration{})
	assert.True(t, core.IsKind(err, core.InitializationError), "%v", err)
}
