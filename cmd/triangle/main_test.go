package main

import (
	"path/filepath"
	"testing"

	"github.com/devblok/triangle/core"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLoader(t *testing.T, fn func(string) (func(), error)) {
	t.Helper()
	saved := useLoader
	useLoader = fn
	t.Cleanup(func() { useLoader = saved })
}

func TestRunUnloadsOnFailure(t *testing.T) {
	unloaded := 0
	withLoader(t, func(name string) (func(), error) {
		assert.Equal(t, "sdl", name)
		return func() { unloaded++ }, nil
	})

	cfg := core.DefaultConfiguration()
	cfg.App.Loader = "sdl"
	cfg.App.Shaders = filepath.Join(t.TempDir(), "missing")

	logger, _ := test.NewNullLogger()
	err := run(cfg, logrus.NewEntry(logger))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.MissingDependencyError), "%v", err)
	assert.Equal(t, 1, unloaded)
}

func TestRunLoaderFailure(t *testing.T) {
	withLoader(t, func(string) (func(), error) {
		return nil, core.Errorf(core.InitializationError, "test", "no loader")
	})

	logger, _ := test.NewNullLogger()
	err := run(core.DefaultConfiguration(), logrus.NewEntry(logger))
	assert.True(t, core.IsKind(err, core.InitializationError), "%v", err)
}
