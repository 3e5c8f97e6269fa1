// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sort"

	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Extensions and layers switched on in debug mode
const (
	DebugUtilsExtension = "VK_EXT_debug_utils"
	ValidationLayer     = "VK_LAYER_KHRONOS_validation"
)

// GraphicsContext owns the instance and creates devices from it.
type GraphicsContext struct {
	driver    Driver
	lifecycle *Lifecycle
	log       *logrus.Entry

	Instance   Object
	APIVersion uint32
	Extensions []string
	Layers     []string
}

// NewGraphicsContext creates the instance. Every requested extension and
// layer is checked against what the runtime reports before creation.
func NewGraphicsContext(driver Driver, cfg InstanceConfiguration, lifecycle *Lifecycle, log *logrus.Entry) (*GraphicsContext, error) {
	const op = "core.NewGraphicsContext"
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if lifecycle == nil {
		lifecycle = NewLifecycle(driver, log)
	}

	apiVersion, err := ParseAPIVersion(cfg.APIVersion)
	if err != nil {
		return nil, Wrap(InitializationError, op, err)
	}

	extensions := append([]string{}, cfg.Extensions...)
	layers := append([]string{}, cfg.Layers...)
	if cfg.DebugMode {
		extensions = appendUnique(extensions, DebugUtilsExtension)
		layers = appendUnique(layers, ValidationLayer)
	}

	available, err := driver.InstanceExtensions()
	if err != nil {
		return nil, Wrap(InitializationError, op, err)
	}
	if missing := missingNames(extensions, available); len(missing) > 0 {
		return nil, Errorf(InitializationError, op, "unsupported instance extensions %v", missing)
	}

	if len(layers) > 0 {
		availableLayers, err := driver.InstanceLayers()
		if err != nil {
			return nil, Wrap(InitializationError, op, err)
		}
		if missing := missingNames(layers, availableLayers); len(missing) > 0 {
			return nil, Errorf(InitializationError, op, "unsupported instance layers %v", missing)
		}
	}

	instance, err := driver.CreateInstance(InstanceInfo{
		Application: ApplicationInfo{
			ApplicationName:    cfg.ApplicationName,
			ApplicationVersion: MakeVersion(1, 0, 0),
			EngineName:         cfg.EngineName,
			EngineVersion:      MakeVersion(1, 0, 0),
			APIVersion:         apiVersion,
		},
		Extensions: extensions,
		Layers:     layers,
	})
	if err != nil {
		return nil, classify(InitializationError, op, err)
	}
	lifecycle.Track(instance, Object{})

	log.WithFields(logrus.Fields{
		"stage":      "instance",
		"api":        cfg.APIVersion,
		"extensions": extensions,
		"layers":     layers,
	}).Info("instance created")

	return &GraphicsContext{
		driver:     driver,
		lifecycle:  lifecycle,
		log:        log,
		Instance:   instance,
		APIVersion: apiVersion,
		Extensions: extensions,
		Layers:     layers,
	}, nil
}

// Lifecycle returns the tracker owning everything created through the context.
func (g *GraphicsContext) Lifecycle() *Lifecycle {
	return g.lifecycle
}

// PhysicalDevices lists the physical devices in enumeration order.
func (g *GraphicsContext) PhysicalDevices() ([]PhysicalDeviceInfo, error) {
	devices, err := g.driver.PhysicalDevices(g.Instance)
	if err != nil {
		return nil, Wrap(InitializationError, "core.GraphicsContext.PhysicalDevices", err)
	}
	return devices, nil
}

// DeviceContext is a logical device with its graphics queue, the value
// every later stage of the frame is built from.
type DeviceContext struct {
	Context     *GraphicsContext
	Physical    PhysicalDeviceInfo
	Device      Object
	Queue       Object
	QueueFamily uint32
	Extensions  []string
}

// Driver returns the driver the device was created through.
func (d *DeviceContext) Driver() Driver {
	return d.Context.driver
}

// Lifecycle returns the tracker owning the device's objects.
func (d *DeviceContext) Lifecycle() *Lifecycle {
	return d.Context.lifecycle
}

func (d *DeviceContext) log() *logrus.Entry {
	return d.Context.log.WithField("device", d.Physical.Name)
}

// SelectDevice picks a physical device by the configured policy and
// creates a logical device with one queue of priority 1.0.
func (g *GraphicsContext) SelectDevice(cfg DeviceConfiguration) (*DeviceContext, error) {
	const op = "core.GraphicsContext.SelectDevice"
	devices, err := g.PhysicalDevices()
	if err != nil {
		return nil, err
	}

	var (
		physical PhysicalDeviceInfo
		family   uint32
	)
	switch cfg.Selection {
	case SelectFirst, "":
		physical, family, err = selectFirst(devices)
	case SelectScore:
		physical, family, err = selectScored(devices, cfg.Extensions)
	default:
		return nil, Errorf(InitializationError, op, "unknown selection policy %q", cfg.Selection)
	}
	if err != nil {
		return nil, err
	}

	device, err := g.driver.CreateDevice(physical, DeviceInfo{
		QueueFamily:     family,
		QueuePriorities: []float32{1.0},
		Extensions:      cfg.Extensions,
	})
	if err != nil {
		return nil, classify(InitializationError, op, err)
	}
	g.lifecycle.Track(device, Object{}, g.Instance)

	queue, err := g.driver.DeviceQueue(device, family, 0)
	if err != nil {
		return nil, Wrap(InitializationError, op, err)
	}

	g.log.WithFields(logrus.Fields{
		"stage":  "device",
		"device": physical.Name,
		"type":   DeviceTypeName(physical.Type),
		"family": family,
	}).Info("device selected")

	return &DeviceContext{
		Context:     g,
		Physical:    physical,
		Device:      device,
		Queue:       queue,
		QueueFamily: family,
		Extensions:  cfg.Extensions,
	}, nil
}

// selectFirst takes the first device and its first queue family.
func selectFirst(devices []PhysicalDeviceInfo) (PhysicalDeviceInfo, uint32, error) {
	if len(devices) == 0 {
		return PhysicalDeviceInfo{}, 0, Errorf(NoSuitableDeviceError, "core.selectFirst", "no physical devices")
	}
	return devices[0], 0, nil
}

var deviceTypeScore = map[vk.PhysicalDeviceType]int{
	vk.PhysicalDeviceTypeDiscreteGpu:   4,
	vk.PhysicalDeviceTypeIntegratedGpu: 3,
	vk.PhysicalDeviceTypeVirtualGpu:    2,
	vk.PhysicalDeviceTypeCpu:           1,
}

// selectScored keeps devices with a graphics queue family and every
// required extension, and prefers discrete over integrated over
// virtual over CPU devices. Ties keep enumeration order.
func selectScored(devices []PhysicalDeviceInfo, required []string) (PhysicalDeviceInfo, uint32, error) {
	type candidate struct {
		info   PhysicalDeviceInfo
		family uint32
		score  int
	}

	var candidates []candidate
	for _, d := range devices {
		if d.Invalid {
			continue
		}
		family, ok := graphicsFamily(d)
		if !ok {
			continue
		}
		if len(missingNames(required, d.Extensions)) > 0 {
			continue
		}
		candidates = append(candidates, candidate{
			info:   d,
			family: family,
			score:  deviceTypeScore[d.Type],
		})
	}
	if len(candidates) == 0 {
		return PhysicalDeviceInfo{}, 0, Errorf(NoSuitableDeviceError, "core.selectScored",
			"none of %d devices has a graphics queue and extensions %v", len(devices), required)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates[0].info, candidates[0].family, nil
}

func graphicsFamily(d PhysicalDeviceInfo) (uint32, bool) {
	for _, f := range d.QueueFamilies {
		if f.Graphics && f.Count > 0 {
			return f.Index, true
		}
	}
	return 0, false
}

// DeviceTypeName is a short name for the device type.
func DeviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

func missingNames(wanted, available []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, a := range available {
		have[a] = struct{}{}
	}
	var missing []string
	for _, w := range wanted {
		if _, ok := have[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

func appendUnique(list []string, name string) []string {
	for _, s := range list {
		if s == name {
			return list
		}
	}
	return append(list, name)
}
