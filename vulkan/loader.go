package vulkan

import (
	"github.com/devblok/triangle/core"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"
)

// Loader names
const (
	LoaderDefault = "default"
	LoaderSDL     = "sdl"
)

// UseDefaultLoader resolves vkGetInstanceProcAddr from the system loader.
func UseDefaultLoader() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return core.Wrap(core.InitializationError, "vk.SetDefaultGetInstanceProcAddr", err)
	}
	if err := vk.Init(); err != nil {
		return core.Wrap(core.InitializationError, "vk.Init", err)
	}
	return nil
}

// UseSDLLoader lets SDL load the Vulkan library and hand out
// vkGetInstanceProcAddr. The returned func unloads it again.
func UseSDLLoader() (func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, core.Wrap(core.InitializationError, "sdl.Init", err)
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, core.Wrap(core.InitializationError, "sdl.VulkanLoadLibrary", err)
	}
	unload := func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}

	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		unload()
		return nil, core.Wrap(core.InitializationError, "vk.Init", err)
	}
	return unload, nil
}

// UseLoader installs the named loader.
func UseLoader(name string) (func(), error) {
	switch name {
	case "", LoaderDefault:
		return func() {}, UseDefaultLoader()
	case LoaderSDL:
		return UseSDLLoader()
	}
	return nil, core.Errorf(core.InitializationError, "vulkan.UseLoader", "unknown loader %q", name)
}
