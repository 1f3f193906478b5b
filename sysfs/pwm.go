// SPDX-License-Identifier: MIT

package sysfs

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// The PWM attribute layout is /sys/class/pwm/pwmchip<chip>/pwm<pin>/.

func (f *FS) pwmChipDir(chip int) string {
	return filepath.Join(f.pwmRoot, fmt.Sprintf("pwmchip%d", chip))
}

func (f *FS) pwmDir(chip, pin int) string {
	return filepath.Join(f.pwmChipDir(chip), fmt.Sprintf("pwm%d", pin))
}

// PWMExport asks the chip to expose the channel attribute directory.
//
// Exporting a channel already held elsewhere fails with unix.EBUSY.
func (f *FS) PWMExport(chip, pin int) error {
	err := writeAttr(filepath.Join(f.pwmChipDir(chip), "export"), strconv.Itoa(pin))
	return errors.Wrapf(err, "export pwmchip%d/pwm%d", chip, pin)
}

// PWMUnexport removes the channel attribute directory.
func (f *FS) PWMUnexport(chip, pin int) error {
	err := writeAttr(filepath.Join(f.pwmChipDir(chip), "unexport"), strconv.Itoa(pin))
	return errors.Wrapf(err, "unexport pwmchip%d/pwm%d", chip, pin)
}

// PWMEnable starts the channel output.
func (f *FS) PWMEnable(chip, pin int) error {
	err := writeAttr(filepath.Join(f.pwmDir(chip, pin), "enable"), "1")
	return errors.Wrapf(err, "enable pwmchip%d/pwm%d", chip, pin)
}

// PWMDisable stops the channel output.
func (f *FS) PWMDisable(chip, pin int) error {
	err := writeAttr(filepath.Join(f.pwmDir(chip, pin), "enable"), "0")
	return errors.Wrapf(err, "disable pwmchip%d/pwm%d", chip, pin)
}

// PWMSetPeriod sets the cycle period in nanoseconds.
//
// The kernel rejects a period shorter than the active duty cycle.
func (f *FS) PWMSetPeriod(chip, pin int, ns int64) error {
	err := writeAttr(filepath.Join(f.pwmDir(chip, pin), "period"),
		strconv.FormatInt(ns, 10))
	return errors.Wrapf(err, "set period pwmchip%d/pwm%d", chip, pin)
}

// PWMSetDutyCycle sets the active time per cycle in nanoseconds.
//
// The kernel rejects a duty cycle longer than the active period.
func (f *FS) PWMSetDutyCycle(chip, pin int, ns int64) error {
	err := writeAttr(filepath.Join(f.pwmDir(chip, pin), "duty_cycle"),
		strconv.FormatInt(ns, 10))
	return errors.Wrapf(err, "set duty cycle pwmchip%d/pwm%d", chip, pin)
}

// PWMSetPolarity sets the signal polarity. The channel must be disabled.
func (f *FS) PWMSetPolarity(chip, pin int, inverted bool) error {
	v := "normal"
	if inverted {
		v = "inversed"
	}
	err := writeAttr(filepath.Join(f.pwmDir(chip, pin), "polarity"), v)
	return errors.Wrapf(err, "set polarity pwmchip%d/pwm%d", chip, pin)
}
