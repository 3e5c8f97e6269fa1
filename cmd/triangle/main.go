// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command triangle renders a single triangle off-screen and optionally
// writes the frame to an image file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"

	"github.com/devblok/triangle/core"
	"github.com/devblok/triangle/shader"
	"github.com/devblok/triangle/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func init() {
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "", "TOML configuration file")
	envPath    = flag.String("env", "", "dotenv file with TRIANGLE_* overrides")
	verbose    = flag.Bool("v", false, "Log debug output")
	loader     = flag.String("loader", "", "Vulkan loader: default or sdl")
	shaders    = flag.String("shaders", "", "Shader directory or .kar archive, bundled shaders when empty")
	program    = flag.String("program", "", "Shader program name")
	snapshot   = flag.String("o", "", "Write the frame to this .png or .bmp file")
	width      = flag.Uint("width", 0, "Frame width")
	height     = flag.Uint("height", 0, "Frame height")
	selection  = flag.String("device", "", "Device selection policy: first or score")
	debug      = flag.Bool("debug", false, "Enable the validation layer")
	timeout    = flag.Duration("timeout", 0, "Fence wait timeout, zero waits forever")
)

// configuration loads files and environment, flags that were set win.
func configuration() (core.Configuration, error) {
	cfg, err := core.LoadConfiguration(*configPath, *envPath)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			if *verbose {
				cfg.App.LogLevel = log.DebugLevel.String()
			}
		case "loader":
			cfg.App.Loader = *loader
		case "shaders":
			cfg.App.Shaders = *shaders
		case "program":
			cfg.App.Program = *program
		case "o":
			cfg.App.Snapshot = *snapshot
		case "width":
			cfg.Renderer.Width = uint32(*width)
		case "height":
			cfg.Renderer.Height = uint32(*height)
		case "device":
			cfg.Device.Selection = *selection
		case "debug":
			cfg.Instance.DebugMode = *debug
		case "timeout":
			cfg.Sync.Timeout = core.Duration(*timeout)
		}
	})
	return cfg, cfg.Validate()
}

// useLoader is swapped out in tests.
var useLoader = vulkan.UseLoader

func main() {
	flag.Parse()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := configuration()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	level, _ := log.ParseLevel(cfg.App.LogLevel)
	log.SetLevel(level)
	entry := log.WithField("app", cfg.Instance.ApplicationName)

	if err := run(cfg, entry); err != nil {
		entry.WithField("kind", core.KindOf(err).String()).WithError(err).Error("triangle failed")
		os.Exit(1)
	}
}

// run renders the frame. Everything it sets up is undone before it
// returns, so main can exit on the error.
func run(cfg core.Configuration, entry *log.Entry) error {
	unload, err := useLoader(cfg.App.Loader)
	if err != nil {
		return errors.Wrap(err, "loading Vulkan")
	}
	defer unload()

	prog, err := shader.Load(cfg.App.Shaders, cfg.App.Program)
	if err != nil {
		return errors.Wrap(err, "loading shaders")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := vulkan.NewDriver(entry)
	renderer := core.NewRenderer(driver, cfg, entry)

	var (
		report *core.Report
		target *vulkan.OffscreenTarget
	)
	err = core.Retry(cfg.Renderer.Retries, func(attempt int) error {
		if attempt > 0 {
			entry.WithField("attempt", attempt+1).Warn("retrying frame")
		}
		target = vulkan.NewOffscreenTarget(driver, cfg.Renderer.Width, cfg.Renderer.Height)
		var err error
		report, err = renderer.Run(ctx, target, prog.Code())
		return err
	})
	if err != nil {
		return errors.Wrap(err, "frame failed")
	}

	entry.WithFields(log.Fields{
		"device":   report.Device.Name,
		"draws":    len(report.Draws),
		"released": len(report.Released),
		"total":    report.Timings.Total,
	}).Info("frame rendered")

	if cfg.App.Snapshot != "" {
		if err := writeSnapshot(cfg.App.Snapshot, target.Image); err != nil {
			return errors.Wrap(err, "writing snapshot")
		}
		entry.WithField("file", cfg.App.Snapshot).Info("snapshot written")
	}
	return nil
}
