// SPDX-License-Identifier: MIT

package pwm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyphen04/opi5/pwm"
	"github.com/hyphen04/opi5/sim"
)

func newChannel(t *testing.T, fs *sim.FS, options ...pwm.Option) *pwm.Channel {
	t.Helper()
	c, err := pwm.New(fs, 0, 1, 1000, 50, options...)
	require.Nil(t, err)
	require.NotNil(t, c)
	return c
}

func TestNew(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	assert.Equal(t, []string{
		"export",
		"polarity=normal",
		"enable=1",
		"period=1000000",
	}, fs.PWMLog())
	assert.True(t, fs.PWMExported(0, 1))
	assert.True(t, fs.PWMEnabled(0, 1))
}

func TestNewInverted(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs, pwm.WithInvertedPolarity())
	defer c.Close()
	_, _, inverted := fs.PWMState(0, 1)
	assert.True(t, inverted)
	assert.Contains(t, fs.PWMLog(), "polarity=inversed")
}

func TestNewOutOfRange(t *testing.T) {
	fs := sim.New()
	patterns := []struct {
		name string
		freq float64
		duty float64
	}{
		{"dutyHigh", 1000, 101},
		{"dutyNegative", 1000, -1},
		{"freqZero", 0, 50},
		{"freqNegative", -100, 50},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			c, err := pwm.New(fs, 0, 1, p.freq, p.duty)
			assert.True(t, errors.Is(err, pwm.ErrOutOfRange))
			assert.Nil(t, c)
		}
		t.Run(p.name, tf)
	}
	assert.Empty(t, fs.PWMLog())
}

func TestNewBusy(t *testing.T) {
	fs := sim.New()
	fs.SetPWMExportFailures(0, 1, 1)
	ww := []string(nil)
	c, err := pwm.New(fs, 0, 1, 1000, 50,
		pwm.WithWarner(func(msg string) { ww = append(ww, msg) }))
	require.Nil(t, err)
	defer c.Close()
	require.Len(t, ww, 1)
	assert.Contains(t, ww[0], "already in use")
	assert.True(t, fs.PWMExported(0, 1))
}

func TestStartStop(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	fs.ClearPWMLog()

	require.Nil(t, c.Start())
	assert.Equal(t, []string{"duty_cycle=500000"}, fs.PWMLog())

	fs.ClearPWMLog()
	require.Nil(t, c.Stop())
	assert.Equal(t, []string{"duty_cycle=0"}, fs.PWMLog())

	// restart without reconfiguration
	fs.ClearPWMLog()
	require.Nil(t, c.Start())
	assert.Equal(t, []string{"duty_cycle=500000"}, fs.PWMLog())
}

func TestChangeFrequencyUp(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	require.Nil(t, c.Start())
	fs.ClearPWMLog()

	// a shorter period must be written before the matching duty cycle
	require.Nil(t, c.ChangeFrequency(2000))
	assert.Equal(t, []string{
		"period=500000",
		"duty_cycle=250000",
	}, fs.PWMLog())
}

func TestChangeFrequencyDown(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	require.Nil(t, c.Start())
	require.Nil(t, c.ChangeFrequency(2000))
	fs.ClearPWMLog()

	// a longer period must be written after the matching duty cycle
	require.Nil(t, c.ChangeFrequency(1000))
	assert.Equal(t, []string{
		"duty_cycle=500000",
		"period=1000000",
	}, fs.PWMLog())
}

func TestChangeFrequencyOutOfRange(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	fs.ClearPWMLog()
	err := c.ChangeFrequency(0)
	assert.True(t, errors.Is(err, pwm.ErrOutOfRange))
	assert.Empty(t, fs.PWMLog())
}

func TestSetDutyCycle(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	fs.ClearPWMLog()

	require.Nil(t, c.SetDutyCycle(25))
	assert.Equal(t, []string{"duty_cycle=250000"}, fs.PWMLog())

	// the new percentage sticks across frequency changes
	fs.ClearPWMLog()
	require.Nil(t, c.ChangeFrequency(2000))
	assert.Equal(t, []string{
		"period=500000",
		"duty_cycle=125000",
	}, fs.PWMLog())

	require.Nil(t, c.SetDutyCycle(0))
	require.Nil(t, c.SetDutyCycle(100))
	_, duty, _ := fs.PWMState(0, 1)
	assert.Equal(t, int64(500000), duty)

	err := c.SetDutyCycle(150)
	assert.True(t, errors.Is(err, pwm.ErrOutOfRange))
	err = c.SetDutyCycle(-1)
	assert.True(t, errors.Is(err, pwm.ErrOutOfRange))
}

func TestInvertPolarity(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	defer c.Close()
	fs.ClearPWMLog()

	// the output is disabled around the polarity change
	require.Nil(t, c.InvertPolarity())
	assert.Equal(t, []string{
		"enable=0",
		"polarity=inversed",
		"enable=1",
	}, fs.PWMLog())

	fs.ClearPWMLog()
	require.Nil(t, c.InvertPolarity())
	assert.Equal(t, []string{
		"enable=0",
		"polarity=normal",
		"enable=1",
	}, fs.PWMLog())
}

func TestClose(t *testing.T) {
	fs := sim.New()
	c := newChannel(t, fs)
	require.Nil(t, c.Close())
	assert.False(t, fs.PWMExported(0, 1))

	assert.Equal(t, pwm.ErrClosed, c.Close())
	assert.Equal(t, pwm.ErrClosed, c.Start())
	assert.Equal(t, pwm.ErrClosed, c.Stop())
	assert.Equal(t, pwm.ErrClosed, c.ChangeFrequency(2000))
	assert.Equal(t, pwm.ErrClosed, c.SetDutyCycle(25))
	assert.Equal(t, pwm.ErrClosed, c.InvertPolarity())

	// the released channel can be requested again
	c2, err := pwm.New(fs, 0, 1, 1000, 50)
	require.Nil(t, err)
	c2.Close()
}
