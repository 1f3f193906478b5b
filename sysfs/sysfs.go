// SPDX-License-Identifier: MIT

// Package sysfs provides the raw file operations on the kernel pin-export
// interface, /sys/class/gpio and /sys/class/pwm.
//
// It is deliberately thin - it knows how to format and write the individual
// attribute files and nothing about channel numbering, ownership or edge
// multiplexing, which are handled by the opi5 package.
//
// Busy conditions (the kernel refusing an export because the pin is held
// elsewhere) surface as errors satisfying errors.Is(err, unix.EBUSY).
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Direction indicates how an exported pin is driven.
type Direction int

const (
	// In configures the pin as an input.
	In Direction = iota + 1

	// Out configures the pin as an output.
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Edge indicates the transitions reported by an edge-armed pin.
type Edge int

const (
	// None disables edge reporting.
	None Edge = iota

	// Rising reports inactive to active transitions.
	Rising

	// Falling reports active to inactive transitions.
	Falling

	// Both reports transitions in either direction.
	Both
)

func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case Both:
		return "both"
	default:
		return "none"
	}
}

// FS performs pin-export file operations rooted at a particular sysfs
// location.
//
// The zero value is not usable; construct with New.
type FS struct {
	root    string
	pwmRoot string
}

// Option defines the interface required to provide an FS option.
type Option interface {
	applyFSOption(*FS)
}

// RootOption overrides the GPIO class directory.
type RootOption string

// WithRoot sets the GPIO class directory, normally /sys/class/gpio.
func WithRoot(dir string) RootOption {
	return RootOption(dir)
}

func (o RootOption) applyFSOption(f *FS) {
	f.root = string(o)
}

// PWMRootOption overrides the PWM class directory.
type PWMRootOption string

// WithPWMRoot sets the PWM class directory, normally /sys/class/pwm.
func WithPWMRoot(dir string) PWMRootOption {
	return PWMRootOption(dir)
}

func (o PWMRootOption) applyFSOption(f *FS) {
	f.pwmRoot = string(o)
}

// New creates an FS over the standard sysfs locations.
func New(options ...Option) *FS {
	f := FS{
		root:    "/sys/class/gpio",
		pwmRoot: "/sys/class/pwm",
	}
	for _, option := range options {
		option.applyFSOption(&f)
	}
	return &f
}

func (f *FS) pinDir(pin int) string {
	return filepath.Join(f.root, fmt.Sprintf("gpio%d", pin))
}

func writeAttr(path, value string) error {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, err = file.WriteString(value)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Export asks the kernel to expose the pin under the class directory.
//
// Exporting a pin already held elsewhere fails with unix.EBUSY.
func (f *FS) Export(pin int) error {
	err := writeAttr(filepath.Join(f.root, "export"), strconv.Itoa(pin))
	return errors.Wrapf(err, "export gpio%d", pin)
}

// Unexport removes the pin from the class directory.
func (f *FS) Unexport(pin int) error {
	err := writeAttr(filepath.Join(f.root, "unexport"), strconv.Itoa(pin))
	return errors.Wrapf(err, "unexport gpio%d", pin)
}

// SetDirection sets the pin direction.
//
// udev applies group permissions to the attribute files asynchronously after
// an export, so a brief window exists where the files are not yet writable
// by unprivileged callers. Retry while that settles.
func (f *FS) SetDirection(pin int, d Direction) error {
	path := filepath.Join(f.pinDir(pin), "direction")
	var err error
	for i := 0; i < 10; i++ {
		err = writeAttr(path, d.String())
		if err == nil || !errors.Is(err, unix.EACCES) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.Wrapf(err, "set direction gpio%d", pin)
}

// ReadValue returns the pin level, 0 or 1.
func (f *FS) ReadValue(pin int) (int, error) {
	b, err := os.ReadFile(filepath.Join(f.pinDir(pin), "value"))
	if err != nil {
		return 0, errors.Wrapf(err, "read gpio%d", pin)
	}
	if len(b) > 0 && b[0] == '1' {
		return 1, nil
	}
	return 0, nil
}

// WriteValue sets the level of an output pin. Any non-zero value drives the
// pin high.
func (f *FS) WriteValue(pin int, value int) error {
	v := "0"
	if value != 0 {
		v = "1"
	}
	err := writeAttr(filepath.Join(f.pinDir(pin), "value"), v)
	return errors.Wrapf(err, "write gpio%d", pin)
}

// SetEdge arms or disarms edge reporting on an input pin.
func (f *FS) SetEdge(pin int, e Edge) error {
	err := writeAttr(filepath.Join(f.pinDir(pin), "edge"), e.String())
	return errors.Wrapf(err, "set edge gpio%d", pin)
}

// OpenEvent opens the pin's value attribute for readiness polling and
// returns the file descriptor. The descriptor is non-blocking; an edge on
// an armed pin makes it priority-readable.
func (f *FS) OpenEvent(pin int) (int, error) {
	fd, err := unix.Open(filepath.Join(f.pinDir(pin), "value"),
		unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "open event gpio%d", pin)
	}
	return fd, nil
}

// CloseEvent releases a descriptor returned by OpenEvent.
func (f *FS) CloseEvent(pin, fd int) error {
	return unix.Close(fd)
}
