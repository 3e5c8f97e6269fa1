// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command vkinfo prints the physical devices as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/vulkan"
	log "github.com/sirupsen/logrus"
)

var (
	loader = flag.String("loader", vulkan.LoaderDefault, "Vulkan loader: default or sdl")
	debug  = flag.Bool("debug", false, "Enable the validation layer")
	indent = flag.Bool("indent", true, "Indent the output")
)

type deviceReport struct {
	core.PhysicalDeviceInfo
	TypeName       string  `json:"TypeName"`
	APIVersion     string  `json:"APIVersionString"`
	GraphicsFamily *uint32 `json:"GraphicsFamily,omitempty"`
}

func report(devices []core.PhysicalDeviceInfo) []deviceReport {
	out := make([]deviceReport, 0, len(devices))
	for _, d := range devices {
		r := deviceReport{
			PhysicalDeviceInfo: d,
			TypeName:           core.DeviceTypeName(d.Type),
			APIVersion:         fmt.Sprintf("%d.%d", core.VersionMajor(d.APIVersion), core.VersionMinor(d.APIVersion)),
		}
		for _, f := range d.QueueFamilies {
			if f.Graphics {
				idx := f.Index
				r.GraphicsFamily = &idx
				break
			}
		}
		out = append(out, r)
	}
	return out
}

func main() {
	flag.Parse()
	log.SetLevel(log.WarnLevel)

	unload, err := vulkan.UseLoader(*loader)
	if err != nil {
		log.WithError(err).Fatal("cannot load Vulkan")
	}
	defer unload()

	cfg := core.DefaultConfiguration().Instance
	cfg.ApplicationName = "vkinfo"
	cfg.DebugMode = *debug

	driver := vulkan.NewDriver(nil)
	lifecycle := core.NewLifecycle(driver, nil)
	gc, err := core.NewGraphicsContext(driver, cfg, lifecycle, nil)
	if err != nil {
		log.WithError(err).Fatal("cannot create instance")
	}
	defer lifecycle.Teardown()

	devices, err := gc.PhysicalDevices()
	if err != nil {
		log.WithError(err).Fatal("cannot enumerate devices")
	}

	var bytes []byte
	if *indent {
		bytes, err = json.MarshalIndent(report(devices), "", "  ")
	} else {
		bytes, err = json.Marshal(report(devices))
	}
	if err != nil {
		log.WithError(err).Fatal("cannot encode report")
	}
	fmt.Printf("%s\n", bytes)
}
