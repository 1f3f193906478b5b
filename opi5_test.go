// SPDX-License-Identifier: MIT

package opi5_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/hyphen04/opi5"
	"github.com/hyphen04/opi5/sim"
)

func newGPIO(t *testing.T) (*opi5.GPIO, *sim.FS) {
	t.Helper()
	fs := sim.New()
	g := opi5.New(opi5.WithFilesystem(fs), opi5.WithWarner(func(string) {}))
	t.Cleanup(func() { g.Cleanup() })
	return g, fs
}

func TestNew(t *testing.T) {
	g := opi5.New(opi5.WithFilesystem(sim.New()))
	require.NotNil(t, g)
	assert.Nil(t, g.Mode())
}

func TestSetMode(t *testing.T) {
	g, _ := newGPIO(t)
	assert.Nil(t, g.Mode())
	g.SetMode(opi5.Board)
	assert.Equal(t, opi5.Board, g.Mode())
	g.SetMode(opi5.Raw)
	assert.Equal(t, opi5.Raw, g.Mode())
}

func TestSetup(t *testing.T) {
	g, fs := newGPIO(t)

	// scheme must be selected first
	err := g.Setup(7, opi5.IN)
	assert.Equal(t, opi5.ErrModeNotSet, err)

	g.SetMode(opi5.Board)
	err = g.Setup(7, opi5.IN)
	require.Nil(t, err)
	assert.True(t, fs.Exported(54))
	assert.Equal(t, opi5.IN, fs.Direction(54))

	// no channel may be configured twice
	err = g.Setup(7, opi5.OUT)
	assert.Equal(t, opi5.ErrAlreadyConfigured, err)

	// channel absent from the scheme
	err = g.Setup(4, opi5.IN)
	assert.Equal(t, opi5.ErrUnknownChannel, err)

	// direction is mandatory
	err = g.Setup(5, 0)
	assert.Equal(t, unix.EINVAL, err)
}

func TestSetupInitial(t *testing.T) {
	g, fs := newGPIO(t)
	g.SetMode(opi5.Raw)
	err := g.Setup(10, opi5.OUT, opi5.WithInitial(opi5.HIGH))
	require.Nil(t, err)
	assert.Equal(t, 1, fs.Level(10))

	err = g.Setup(11, opi5.OUT, opi5.WithInitial(opi5.LOW))
	require.Nil(t, err)
	assert.Equal(t, 0, fs.Level(11))

	// without an initial level the pin is left untouched
	err = g.Setup(12, opi5.OUT)
	require.Nil(t, err)
	assert.Equal(t, 0, fs.Level(12))
}

func TestSetupBusy(t *testing.T) {
	fs := sim.New()
	ww := []string(nil)
	g := opi5.New(opi5.WithFilesystem(fs),
		opi5.WithWarner(func(msg string) { ww = append(ww, msg) }))
	defer g.Cleanup()
	g.SetMode(opi5.Raw)
	fs.SetExportFailures(10, 1)
	err := g.Setup(10, opi5.IN)
	require.Nil(t, err)
	assert.True(t, fs.Exported(10))
	require.Len(t, ww, 1)
	assert.Contains(t, ww[0], "already in use")

	// warnings can be silenced
	g.SetWarnings(false)
	fs.SetExportFailures(11, 1)
	err = g.Setup(11, opi5.IN)
	require.Nil(t, err)
	assert.Len(t, ww, 1)
}

func TestSetupPullWarning(t *testing.T) {
	fs := sim.New()
	ww := []string(nil)
	g := opi5.New(opi5.WithFilesystem(fs),
		opi5.WithWarner(func(msg string) { ww = append(ww, msg) }))
	defer g.Cleanup()
	g.SetMode(opi5.Raw)
	err := g.Setup(10, opi5.IN, opi5.WithPullUp())
	require.Nil(t, err)
	require.Len(t, ww, 1)
	assert.Contains(t, ww[0], "pull up/down")
}

func TestSetupAll(t *testing.T) {
	g, fs := newGPIO(t)
	g.SetMode(opi5.Raw)
	err := g.SetupAll([]int{4, 5, 6}, opi5.OUT, opi5.WithInitial(opi5.HIGH))
	require.Nil(t, err)
	for _, pin := range []int{4, 5, 6} {
		assert.True(t, fs.Exported(pin))
		assert.Equal(t, 1, fs.Level(pin))
	}
}

func TestInput(t *testing.T) {
	g, fs := newGPIO(t)
	g.SetMode(opi5.Raw)

	_, err := g.Input(10)
	assert.Equal(t, opi5.ErrNotConfigured, err)

	require.Nil(t, g.Setup(10, opi5.IN))
	v, err := g.Input(10)
	require.Nil(t, err)
	assert.Equal(t, 0, v)
	fs.SetLevel(10, 1)
	v, err = g.Input(10)
	require.Nil(t, err)
	assert.Equal(t, 1, v)

	// reading an output returns the driven level
	require.Nil(t, g.Setup(11, opi5.OUT, opi5.WithInitial(opi5.HIGH)))
	v, err = g.Input(11)
	require.Nil(t, err)
	assert.Equal(t, 1, v)
}

func TestOutput(t *testing.T) {
	g, fs := newGPIO(t)
	g.SetMode(opi5.Raw)

	err := g.Output(10, opi5.HIGH)
	assert.Equal(t, opi5.ErrNotConfigured, err)

	require.Nil(t, g.Setup(10, opi5.IN))
	err = g.Output(10, opi5.HIGH)
	assert.Equal(t, opi5.ErrWrongDirection, err)

	require.Nil(t, g.Setup(11, opi5.OUT))
	require.Nil(t, g.Output(11, opi5.HIGH))
	assert.Equal(t, 1, fs.Level(11))
	require.Nil(t, g.Output(11, opi5.LOW))
	assert.Equal(t, 0, fs.Level(11))

	// any non-zero value drives high
	require.Nil(t, g.Output(11, 42))
	assert.Equal(t, 1, fs.Level(11))
}

func TestOutputAll(t *testing.T) {
	g, fs := newGPIO(t)
	g.SetMode(opi5.Raw)
	cc := []int{4, 5, 6}
	require.Nil(t, g.SetupAll(cc, opi5.OUT))

	// single value broadcast
	require.Nil(t, g.OutputAll(cc, opi5.HIGH))
	for _, pin := range cc {
		assert.Equal(t, 1, fs.Level(pin))
	}

	// pairwise values
	require.Nil(t, g.OutputAll(cc, 0, 1, 0))
	assert.Equal(t, 0, fs.Level(4))
	assert.Equal(t, 1, fs.Level(5))
	assert.Equal(t, 0, fs.Level(6))

	// mismatched lengths
	err := g.OutputAll(cc, 0, 1)
	assert.NotNil(t, err)
}

func TestCleanupChannel(t *testing.T) {
	g, fs := newGPIO(t)
	g.SetMode(opi5.Raw)
	require.Nil(t, g.Setup(10, opi5.IN))
	require.Nil(t, g.Setup(11, opi5.OUT))

	err := g.Cleanup(10)
	require.Nil(t, err)
	assert.False(t, fs.Exported(10))
	assert.True(t, fs.Exported(11))
	_, err = g.Input(10)
	assert.Equal(t, opi5.ErrNotConfigured, err)

	// released channels may be configured again
	require.Nil(t, g.Setup(10, opi5.OUT))

	err = g.Cleanup(12)
	assert.Equal(t, opi5.ErrNotConfigured, err)
}

func TestCleanupAll(t *testing.T) {
	fs := sim.New()
	ww := []string(nil)
	g := opi5.New(opi5.WithFilesystem(fs),
		opi5.WithWarner(func(msg string) { ww = append(ww, msg) }))
	g.SetMode(opi5.Raw)
	g.SetWarnings(false)
	require.Nil(t, g.Setup(10, opi5.IN))
	require.Nil(t, g.Setup(11, opi5.OUT))

	err := g.Cleanup()
	require.Nil(t, err)
	assert.False(t, fs.Exported(10))
	assert.False(t, fs.Exported(11))

	// full cleanup resets the scheme and re-enables warnings
	err = g.Setup(10, opi5.IN)
	assert.Equal(t, opi5.ErrModeNotSet, err)
	g.SetMode(opi5.Raw)
	fs.SetExportFailures(10, 1)
	require.Nil(t, g.Setup(10, opi5.IN))
	assert.Len(t, ww, 1)
	g.Cleanup()
}
