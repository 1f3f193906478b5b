// SPDX-License-Identifier: MIT

package mockup_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyphen04/opi5"
	"github.com/hyphen04/opi5/mockup"
)

// requireMockup skips unless the platform can load gpio-mockup.
func requireMockup(t *testing.T) *mockup.Mockup {
	t.Helper()
	if err := mockup.IsSupported(); err != nil {
		t.Skip(err)
	}
	if os.Geteuid() != 0 {
		t.Skip("requires root to load gpio-mockup")
	}
	m, err := mockup.New([]int{4, 8})
	if err != nil {
		t.Skip(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNew(t *testing.T) {
	m := requireMockup(t)
	require.Equal(t, 2, m.Chips())

	c, err := m.Chip(0)
	require.Nil(t, err)
	assert.Equal(t, "gpio-mockup-A", c.Label)
	assert.Equal(t, 4, c.Lines)

	c, err = m.Chip(1)
	require.Nil(t, err)
	assert.Equal(t, "gpio-mockup-B", c.Label)
	assert.Equal(t, 8, c.Lines)

	_, err = m.Chip(2)
	assert.NotNil(t, err)
	_, err = m.Chip(-1)
	assert.NotNil(t, err)
}

func TestChipValue(t *testing.T) {
	m := requireMockup(t)
	c, err := m.Chip(0)
	require.Nil(t, err)

	require.Nil(t, c.SetValue(2, 1))
	v, err := c.Value(2)
	require.Nil(t, err)
	assert.Equal(t, 1, v)

	require.Nil(t, c.SetValue(2, 0))
	v, err = c.Value(2)
	require.Nil(t, err)
	assert.Equal(t, 0, v)

	_, err = c.Value(4)
	assert.NotNil(t, err)
	err = c.SetValue(4, 1)
	assert.NotNil(t, err)
}

// Drives a mocked chip through the whole stack, sysfs included.
func TestEndToEnd(t *testing.T) {
	m := requireMockup(t)
	c, err := m.Chip(0)
	require.Nil(t, err)

	g := opi5.New()
	defer g.Cleanup()
	g.SetMode(opi5.Raw)
	pin := c.Pin(2)
	require.Nil(t, g.Setup(pin, opi5.IN))

	v, err := g.Input(pin)
	require.Nil(t, err)
	assert.Equal(t, 0, v)
	require.Nil(t, c.SetValue(2, 1))
	v, err = g.Input(pin)
	require.Nil(t, err)
	assert.Equal(t, 1, v)

	require.Nil(t, c.SetValue(2, 0))
	go func() {
		time.Sleep(100 * time.Millisecond)
		c.SetValue(2, 1)
	}()
	detected, err := g.WaitForEdge(pin, opi5.RISING, time.Second)
	require.Nil(t, err)
	assert.True(t, detected)
}
