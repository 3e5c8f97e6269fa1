// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Configuration defines the renderer configuration
type Configuration struct {
	Instance InstanceConfiguration `toml:"instance"`
	Device   DeviceConfiguration   `toml:"device"`
	Renderer RendererConfiguration `toml:"renderer"`
	Sync     SyncConfiguration     `toml:"sync"`
	App      AppConfiguration      `toml:"app"`
}

// AppConfiguration holds what only the command line tools read
type AppConfiguration struct {
	LogLevel string `toml:"log_level"`

	// Loader is "default" or "sdl"
	Loader string `toml:"loader"`

	// Shaders is a directory or a .kar archive, empty means bundled
	Shaders string `toml:"shaders"`
	Program string `toml:"program"`

	// Snapshot is where the rendered frame is written, .png or .bmp
	Snapshot string `toml:"snapshot"`
}

// InstanceConfiguration is used to configure instance creation
type InstanceConfiguration struct {
	ApplicationName string `toml:"application_name"`
	EngineName      string `toml:"engine_name"`

	// APIVersion is "major.minor", defaults to 1.2
	APIVersion string `toml:"api_version"`

	// DebugMode enables the validation layer and debug utils extension
	DebugMode bool `toml:"debug"`

	Extensions []string `toml:"extensions"`
	Layers     []string `toml:"layers"`
}

// MaxExtent bounds the render area on each axis. It is the
// maxFramebufferWidth/Height every desktop driver reports.
const MaxExtent = 16384

// Device selection policies
const (
	SelectFirst = "first"
	SelectScore = "score"
)

// DeviceConfiguration is used to configure device selection
type DeviceConfiguration struct {
	Selection  string   `toml:"selection"`
	Extensions []string `toml:"extensions"`
}

// RendererConfiguration is used to configure the frame
type RendererConfiguration struct {
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`

	// ReleaseShaderModules destroys the shader modules as
	// soon as the pipeline exists
	ReleaseShaderModules bool `toml:"release_shader_modules"`

	// Retries is how many times a frame is attempted when the
	// device is lost or runs out of memory
	Retries int `toml:"retries"`
}

// SyncConfiguration is used to configure fence handling
type SyncConfiguration struct {
	// Timeout bounds the fence wait, zero waits forever
	Timeout Duration `toml:"timeout"`

	// PollInterval is the slice a bounded or cancellable wait is cut into
	PollInterval Duration `toml:"poll_interval"`

	// FenceSignaled creates the fence in the signaled state,
	// it is reset before use
	FenceSignaled bool `toml:"fence_signaled"`
}

// Duration is a time.Duration that reads as "250ms" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultConfiguration returns the configuration used when nothing is set.
func DefaultConfiguration() Configuration {
	return Configuration{
		Instance: InstanceConfiguration{
			ApplicationName: "Triangle",
			EngineName:      "Koru3D",
			APIVersion:      "1.2",
		},
		Device: DeviceConfiguration{
			Selection: SelectFirst,
		},
		Renderer: RendererConfiguration{
			Width:   256,
			Height:  256,
			Retries: 1,
		},
		Sync: SyncConfiguration{
			PollInterval: Duration(50 * time.Millisecond),
		},
		App: AppConfiguration{
			LogLevel: "info",
			Loader:   "default",
			Program:  "triangle",
		},
	}
}

// LoadConfiguration reads the defaults, then the TOML file at path,
// then the dotenv file at envFile, and finally TRIANGLE_* environment
// variables. Empty paths are skipped.
func LoadConfiguration(path, envFile string) (Configuration, error) {
	cfg := DefaultConfiguration()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "reading configuration")
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", path)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, errors.Wrapf(err, "loading %s", envFile)
		}
	}

	if err := applyEnvironment(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnvironment(cfg *Configuration) error {
	envy.Reload()
	if v := envy.Get("TRIANGLE_APP_NAME", ""); v != "" {
		cfg.Instance.ApplicationName = v
	}
	if v := envy.Get("TRIANGLE_API_VERSION", ""); v != "" {
		cfg.Instance.APIVersion = v
	}
	if v := envy.Get("TRIANGLE_DEBUG", ""); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "TRIANGLE_DEBUG")
		}
		cfg.Instance.DebugMode = debug
	}
	if v := envy.Get("TRIANGLE_INSTANCE_EXTENSIONS", ""); v != "" {
		cfg.Instance.Extensions = splitList(v)
	}
	if v := envy.Get("TRIANGLE_DEVICE_SELECTION", ""); v != "" {
		cfg.Device.Selection = v
	}
	if v := envy.Get("TRIANGLE_DEVICE_EXTENSIONS", ""); v != "" {
		cfg.Device.Extensions = splitList(v)
	}
	if v := envy.Get("TRIANGLE_FENCE_TIMEOUT", ""); v != "" {
		if err := cfg.Sync.Timeout.UnmarshalText([]byte(v)); err != nil {
			return errors.Wrap(err, "TRIANGLE_FENCE_TIMEOUT")
		}
	}
	if v := envy.Get("TRIANGLE_RETRIES", ""); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "TRIANGLE_RETRIES")
		}
		cfg.Renderer.Retries = retries
	}
	if v := envy.Get("TRIANGLE_LOG_LEVEL", ""); v != "" {
		cfg.App.LogLevel = v
	}
	if v := envy.Get("TRIANGLE_LOADER", ""); v != "" {
		cfg.App.Loader = v
	}
	if v := envy.Get("TRIANGLE_SHADERS", ""); v != "" {
		cfg.App.Shaders = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values that can never work.
func (c Configuration) Validate() error {
	if _, err := ParseAPIVersion(c.Instance.APIVersion); err != nil {
		return err
	}
	switch c.Device.Selection {
	case SelectFirst, SelectScore:
	default:
		return errors.Errorf("unknown device selection policy %q", c.Device.Selection)
	}
	if c.Renderer.Width == 0 || c.Renderer.Height == 0 {
		return errors.Errorf("render area %dx%d is empty", c.Renderer.Width, c.Renderer.Height)
	}
	if c.Renderer.Width > MaxExtent || c.Renderer.Height > MaxExtent {
		return errors.Errorf("render area %dx%d is larger than %d", c.Renderer.Width, c.Renderer.Height, MaxExtent)
	}
	if c.Sync.Timeout < 0 || c.Sync.PollInterval < 0 {
		return errors.New("negative sync durations")
	}
	if _, err := logrus.ParseLevel(c.App.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseAPIVersion turns "1.2" into a packed API version number.
func ParseAPIVersion(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Errorf("bad api version %q", s)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 10)
		if err != nil {
			return 0, errors.Wrapf(err, "bad api version %q", s)
		}
		nums[i] = uint32(n)
	}
	return MakeVersion(nums[0], nums[1], nums[2]), nil
}

// MakeVersion packs a version the way the API expects it.
func MakeVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}

// VersionMajor and VersionMinor unpack an API version.
func VersionMajor(v uint32) uint32 { return v >> 22 }
func VersionMinor(v uint32) uint32 { return (v >> 12) & 0x3ff }
