package vulkan_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/shader"
	"github.com/devblok/triangle/vulkan"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// renderTriangle draws the bundled triangle on whatever device the
// system loader offers, skipping when there is none.
func renderTriangle(t *testing.T, width, height uint32) *vulkan.OffscreenTarget {
	t.Helper()
	if testing.Short() {
		t.Skip("needs a Vulkan device")
	}
	if err := vulkan.UseDefaultLoader(); err != nil {
		t.Skipf("no Vulkan loader: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	entry := logrus.NewEntry(log)

	program, err := shader.Bundled("")
	require.NoError(t, err)

	cfg := core.DefaultConfiguration()
	cfg.Instance.APIVersion = "1.0"
	cfg.Renderer.Width, cfg.Renderer.Height = width, height

	driver := vulkan.NewDriver(entry)
	target := vulkan.NewOffscreenTarget(driver, width, height)
	_, err = core.NewRenderer(driver, cfg, entry).Run(context.Background(), target, program.Code())
	if core.IsKind(err, core.InitializationError) || core.IsKind(err, core.NoSuitableDeviceError) {
		t.Skipf("no usable Vulkan device: %v", err)
	}
	require.NoError(t, err)
	require.NotNil(t, target.Image)
	return target
}

func TestRenderTriangle(t *testing.T) {
	target := renderTriangle(t, 64, 64)
	img := target.Image

	center := img.RGBAAt(32, 40)
	assert.Equal(t, uint8(255), center.R, "%v", center)
	assert.Zero(t, center.G)
	assert.Zero(t, center.B)

	for _, p := range [][2]int{{0, 0}, {63, 0}, {0, 63}, {63, 63}} {
		corner := img.RGBAAt(p[0], p[1])
		assert.Zero(t, corner.R, "%v at %v", corner, p)
		assert.Equal(t, uint8(255), corner.A)
	}
}

func TestRenderTriangleSinglePixel(t *testing.T) {
	target := renderTriangle(t, 1, 1)
	assert.Equal(t, 1, target.Image.Bounds().Dx())
	// the pixel center is NDC (0,0), inside the triangle
	assert.Equal(t, color.RGBA{R: 255, A: 255}, target.Image.RGBAAt(0, 0))
}
