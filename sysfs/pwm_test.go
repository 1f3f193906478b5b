// SPDX-License-Identifier: MIT

package sysfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyphen04/opi5/sysfs"
)

// fakePWMRoot lays out a pwmchip directory with the attribute files a
// kernel would provide for the channel.
func fakePWMRoot(t *testing.T, chip, pin string) string {
	t.Helper()
	root := t.TempDir()
	cdir := filepath.Join(root, chip)
	require.Nil(t, os.Mkdir(cdir, 0700))
	for _, name := range []string{"export", "unexport"} {
		err := os.WriteFile(filepath.Join(cdir, name), nil, 0600)
		require.Nil(t, err)
	}
	pdir := filepath.Join(cdir, pin)
	require.Nil(t, os.Mkdir(pdir, 0700))
	for _, name := range []string{"enable", "period", "duty_cycle", "polarity"} {
		err := os.WriteFile(filepath.Join(pdir, name), nil, 0600)
		require.Nil(t, err)
	}
	return root
}

func TestPWMExport(t *testing.T) {
	root := fakePWMRoot(t, "pwmchip0", "pwm1")
	fs := sysfs.New(sysfs.WithPWMRoot(root))
	require.Nil(t, fs.PWMExport(0, 1))
	assert.Equal(t, "1", readAttr(t, root, "pwmchip0", "export"))
	require.Nil(t, fs.PWMUnexport(0, 1))
	assert.Equal(t, "1", readAttr(t, root, "pwmchip0", "unexport"))
}

func TestPWMEnable(t *testing.T) {
	root := fakePWMRoot(t, "pwmchip0", "pwm1")
	fs := sysfs.New(sysfs.WithPWMRoot(root))
	require.Nil(t, fs.PWMEnable(0, 1))
	assert.Equal(t, "1", readAttr(t, root, "pwmchip0", "pwm1", "enable"))
	require.Nil(t, fs.PWMDisable(0, 1))
	assert.Equal(t, "0", readAttr(t, root, "pwmchip0", "pwm1", "enable"))
}

func TestPWMSetPeriod(t *testing.T) {
	root := fakePWMRoot(t, "pwmchip0", "pwm1")
	fs := sysfs.New(sysfs.WithPWMRoot(root))
	require.Nil(t, fs.PWMSetPeriod(0, 1, 1000000))
	assert.Equal(t, "1000000", readAttr(t, root, "pwmchip0", "pwm1", "period"))
	require.Nil(t, fs.PWMSetDutyCycle(0, 1, 500000))
	assert.Equal(t, "500000", readAttr(t, root, "pwmchip0", "pwm1", "duty_cycle"))
}

func TestPWMSetPolarity(t *testing.T) {
	root := fakePWMRoot(t, "pwmchip0", "pwm1")
	fs := sysfs.New(sysfs.WithPWMRoot(root))
	require.Nil(t, fs.PWMSetPolarity(0, 1, true))
	assert.Equal(t, "inversed", readAttr(t, root, "pwmchip0", "pwm1", "polarity"))
	require.Nil(t, fs.PWMSetPolarity(0, 1, false))
	assert.Equal(t, "normal", readAttr(t, root, "pwmchip0", "pwm1", "polarity"))
}
