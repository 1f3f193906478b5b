// SPDX-License-Identifier: MIT

// Package sim provides an in-process simulation of the kernel pin-export
// filesystem for testing code built on opi5 without GPIO hardware.
//
// The simulation keeps the readiness semantics of the real interface: an
// event descriptor is primed readable when opened, exactly as a sysfs value
// file is, and armed transitions driven through SetLevel make it readable
// again. Event descriptors are backed by pipes so the epoll paths in opi5
// run unmodified.
package sim

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/hyphen04/opi5/sysfs"
)

type pin struct {
	exported bool
	dir      sysfs.Direction
	value    int
	edge     sysfs.Edge

	// event pipe; rfd is handed to the watcher, wfd stays here.
	rfd, wfd int
	open     bool
}

// FS simulates the pin-export filesystem.
type FS struct {
	mu   sync.Mutex
	pins map[int]*pin

	// remaining injected EBUSY failures per pin on Export.
	busy map[int]int

	pwm     map[[2]int]*pwmChannel
	pwmBusy map[[2]int]int
	pwmLog  []string
}

// New creates an empty simulation. All pins are valid and unexported.
func New() *FS {
	return &FS{
		pins:    map[int]*pin{},
		busy:    map[int]int{},
		pwm:     map[[2]int]*pwmChannel{},
		pwmBusy: map[[2]int]int{},
	}
}

func (f *FS) pin(n int) *pin {
	p := f.pins[n]
	if p == nil {
		p = &pin{}
		f.pins[n] = p
	}
	return p
}

// Export marks the pin exported.
//
// An already-exported pin fails with unix.EBUSY, as the kernel does when
// the pin is held by another process.
func (f *FS) Export(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy[n] > 0 {
		f.busy[n]--
		return unix.EBUSY
	}
	p := f.pin(n)
	if p.exported {
		return unix.EBUSY
	}
	p.exported = true
	p.dir = sysfs.In
	p.edge = sysfs.None
	return nil
}

// Unexport removes the pin. Unexporting an unexported pin fails with
// unix.EINVAL, as the kernel does.
func (f *FS) Unexport(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.exported {
		return unix.EINVAL
	}
	f.closeEventLocked(p)
	p.exported = false
	p.edge = sysfs.None
	return nil
}

// SetDirection sets the pin direction.
func (f *FS) SetDirection(n int, d sysfs.Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.exported {
		return unix.ENOENT
	}
	p.dir = d
	return nil
}

// ReadValue returns the pin level.
func (f *FS) ReadValue(n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.exported {
		return 0, unix.ENOENT
	}
	return p.value, nil
}

// WriteValue sets the level of an output pin.
func (f *FS) WriteValue(n, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.exported {
		return unix.ENOENT
	}
	if p.dir != sysfs.Out {
		return unix.EPERM
	}
	if value != 0 {
		value = 1
	}
	p.value = value
	return nil
}

// SetEdge arms or disarms edge reporting on the pin.
func (f *FS) SetEdge(n int, e sysfs.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.exported {
		return unix.ENOENT
	}
	if p.dir != sysfs.In && e != sysfs.None {
		return unix.EIO
	}
	p.edge = e
	return nil
}

// OpenEvent returns a pollable descriptor for the pin, primed readable to
// match the initial readiness of a sysfs value file.
func (f *FS) OpenEvent(n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.exported {
		return 0, unix.ENOENT
	}
	if p.open {
		return 0, unix.EBUSY
	}
	fds := []int{0, 0}
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, err
	}
	p.rfd, p.wfd = fds[0], fds[1]
	p.open = true
	f.notifyLocked(p)
	return p.rfd, nil
}

// CloseEvent releases the descriptor returned by OpenEvent.
func (f *FS) CloseEvent(n, fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	if p == nil || !p.open || p.rfd != fd {
		return unix.EBADF
	}
	f.closeEventLocked(p)
	return nil
}

func (f *FS) closeEventLocked(p *pin) {
	if !p.open {
		return
	}
	unix.Close(p.rfd)
	unix.Close(p.wfd)
	p.open = false
}

func (f *FS) notifyLocked(p *pin) {
	b := byte('0')
	if p.value != 0 {
		b = '1'
	}
	unix.Write(p.wfd, []byte{b})
}

// SetLevel drives the pin level from the test, firing the event descriptor
// if the transition matches the armed edge.
func (f *FS) SetLevel(n, value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value != 0 {
		value = 1
	}
	p := f.pin(n)
	old := p.value
	p.value = value
	if old == value || !p.open {
		return
	}
	rising := old == 0 && value == 1
	switch p.edge {
	case sysfs.Both:
	case sysfs.Rising:
		if !rising {
			return
		}
	case sysfs.Falling:
		if rising {
			return
		}
	default:
		return
	}
	f.notifyLocked(p)
}

// SetExportFailures injects n unix.EBUSY failures into subsequent Export
// calls for the pin, regardless of its exported state.
func (f *FS) SetExportFailures(pin, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy[pin] = n
}

// Level returns the pin level.
func (f *FS) Level(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pin(n).value
}

// Exported reports whether the pin is currently exported.
func (f *FS) Exported(n int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pins[n]
	return p != nil && p.exported
}

// Direction returns the configured direction of the pin.
func (f *FS) Direction(n int) sysfs.Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pin(n).dir
}

// Edge returns the armed edge of the pin.
func (f *FS) Edge(n int) sysfs.Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pin(n).edge
}

type pwmChannel struct {
	exported bool
	enabled  bool
	inverted bool
	period   int64
	duty     int64
}

func (f *FS) pwmChan(chip, pin int) *pwmChannel {
	k := [2]int{chip, pin}
	c := f.pwm[k]
	if c == nil {
		c = &pwmChannel{}
		f.pwm[k] = c
	}
	return c
}

func (f *FS) pwmLogf(format string, args ...interface{}) {
	f.pwmLog = append(f.pwmLog, fmt.Sprintf(format, args...))
}

// PWMExport exposes the channel. An already-exported channel fails with
// unix.EBUSY.
func (f *FS) PWMExport(chip, pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int{chip, pin}
	if f.pwmBusy[k] > 0 {
		f.pwmBusy[k]--
		return unix.EBUSY
	}
	c := f.pwmChan(chip, pin)
	if c.exported {
		return unix.EBUSY
	}
	*c = pwmChannel{exported: true}
	f.pwmLogf("export")
	return nil
}

// PWMUnexport removes the channel.
func (f *FS) PWMUnexport(chip, pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	if c == nil || !c.exported {
		return unix.EINVAL
	}
	c.exported = false
	f.pwmLogf("unexport")
	return nil
}

// PWMEnable starts the channel output.
func (f *FS) PWMEnable(chip, pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	if c == nil || !c.exported {
		return unix.ENOENT
	}
	c.enabled = true
	f.pwmLogf("enable=1")
	return nil
}

// PWMDisable stops the channel output.
func (f *FS) PWMDisable(chip, pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	if c == nil || !c.exported {
		return unix.ENOENT
	}
	c.enabled = false
	f.pwmLogf("enable=0")
	return nil
}

// PWMSetPeriod sets the cycle period. A period shorter than the active duty
// cycle fails with unix.EINVAL, as the kernel enforces.
func (f *FS) PWMSetPeriod(chip, pin int, ns int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	if c == nil || !c.exported {
		return unix.ENOENT
	}
	if ns < c.duty {
		return unix.EINVAL
	}
	c.period = ns
	f.pwmLogf("period=%d", ns)
	return nil
}

// PWMSetDutyCycle sets the active time per cycle. A duty cycle longer than
// the active period fails with unix.EINVAL.
func (f *FS) PWMSetDutyCycle(chip, pin int, ns int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	if c == nil || !c.exported {
		return unix.ENOENT
	}
	if ns > c.period {
		return unix.EINVAL
	}
	c.duty = ns
	f.pwmLogf("duty_cycle=%d", ns)
	return nil
}

// PWMSetPolarity sets the signal polarity. Changing polarity on an enabled
// channel fails with unix.EBUSY.
func (f *FS) PWMSetPolarity(chip, pin int, inverted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	if c == nil || !c.exported {
		return unix.ENOENT
	}
	if c.enabled {
		return unix.EBUSY
	}
	c.inverted = inverted
	v := "normal"
	if inverted {
		v = "inversed"
	}
	f.pwmLogf("polarity=%s", v)
	return nil
}

// SetPWMExportFailures injects n unix.EBUSY failures into subsequent
// PWMExport calls for the channel.
func (f *FS) SetPWMExportFailures(chip, pin, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pwmBusy[[2]int{chip, pin}] = n
}

// PWMLog returns the attribute writes recorded so far, in order.
func (f *FS) PWMLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pwmLog...)
}

// ClearPWMLog discards the recorded attribute writes.
func (f *FS) ClearPWMLog() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pwmLog = nil
}

// PWMExported reports whether the channel is currently exported.
func (f *FS) PWMExported(chip, pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	return c != nil && c.exported
}

// PWMEnabled reports whether the channel output is running.
func (f *FS) PWMEnabled(chip, pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwm[[2]int{chip, pin}]
	return c != nil && c.enabled
}

// PWMState returns the active period and duty cycle in nanoseconds and the
// polarity flag.
func (f *FS) PWMState(chip, pin int) (period, duty int64, inverted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.pwmChan(chip, pin)
	return c.period, c.duty, c.inverted
}
