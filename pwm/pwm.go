// SPDX-License-Identifier: MIT

// Package pwm drives PWM channels through the sysfs pwmchip interface.
//
// A Channel owns one (chip, pin) pair exclusively from New until Close.
// Frequency changes honour the kernel rule that the active period must
// never be shorter than the active duty cycle at any intermediate step.
package pwm

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ChipFS is the set of pwmchip file operations consumed by Channel.
//
// It is implemented by sysfs.FS and by sim.FS for tests. A busy export is
// reported with an error satisfying errors.Is(err, unix.EBUSY).
type ChipFS interface {
	PWMExport(chip, pin int) error
	PWMUnexport(chip, pin int) error
	PWMEnable(chip, pin int) error
	PWMDisable(chip, pin int) error
	PWMSetPeriod(chip, pin int, ns int64) error
	PWMSetDutyCycle(chip, pin int, ns int64) error
	PWMSetPolarity(chip, pin int, inverted bool) error
}

var (
	// ErrOutOfRange indicates a duty cycle outside [0,100] or a
	// non-positive frequency.
	ErrOutOfRange = errors.New("out of range")

	// ErrClosed indicates the channel has already been closed.
	ErrClosed = errors.New("already closed")
)

// Channel represents an exclusively-owned PWM output.
type Channel struct {
	fs   ChipFS
	chip int
	pin  int

	// mu covers all that follows.
	mu       sync.Mutex
	freq     float64
	duty     float64 // percent
	inverted bool
	closed   bool
	warner   func(msg string)
}

// Option defines the interface required to provide a Channel option.
type Option interface {
	applyOption(*Channel)
}

// PolarityOption requests an inverted output signal.
type PolarityOption struct{}

// WithInvertedPolarity requests that the duty cycle measure the inactive
// portion of each period rather than the active one.
func WithInvertedPolarity() PolarityOption {
	return PolarityOption{}
}

func (o PolarityOption) applyOption(c *Channel) {
	c.inverted = true
}

// WarnerOption provides the receiver for advisory warnings.
type WarnerOption struct {
	w func(msg string)
}

// WithWarner provides the receiver for advisory warnings, replacing the
// default standard-library logger.
func WithWarner(w func(msg string)) WarnerOption {
	return WarnerOption{w}
}

func (o WarnerOption) applyOption(c *Channel) {
	c.warner = o.w
}

// New exports the (chip, pin) pair, applies polarity, enables the output
// and sets the initial frequency. The output idles at zero duty until
// Start.
//
// If the pair is held by another owner the export is force-released and
// retried once, with a warning.
func New(fs ChipFS, chip, pin int, freq, dutyPercent float64, options ...Option) (*Channel, error) {
	if dutyPercent < 0 || dutyPercent > 100 {
		return nil, errors.Wrapf(ErrOutOfRange, "duty cycle %v%%", dutyPercent)
	}
	if freq <= 0 || math.IsInf(freq, 0) || math.IsNaN(freq) {
		return nil, errors.Wrapf(ErrOutOfRange, "frequency %vHz", freq)
	}
	c := Channel{
		fs:   fs,
		chip: chip,
		pin:  pin,
		freq: freq,
		duty: dutyPercent,
		warner: func(msg string) {
			log.Print("pwm: " + msg)
		},
	}
	for _, option := range options {
		option.applyOption(&c)
	}
	err := fs.PWMExport(chip, pin)
	if errors.Is(err, unix.EBUSY) {
		c.warner(fmt.Sprintf("pwmchip%d pin %d is already in use, continuing anyway.", chip, pin))
		fs.PWMUnexport(chip, pin)
		err = fs.PWMExport(chip, pin)
	}
	if err != nil {
		return nil, err
	}
	// polarity precedes enable - it must never change while enabled.
	if err = fs.PWMSetPolarity(chip, pin, c.inverted); err != nil {
		fs.PWMUnexport(chip, pin)
		return nil, err
	}
	if err = fs.PWMEnable(chip, pin); err != nil {
		fs.PWMUnexport(chip, pin)
		return nil, err
	}
	if err = fs.PWMSetPeriod(chip, pin, periodNs(freq)); err != nil {
		fs.PWMUnexport(chip, pin)
		return nil, err
	}
	return &c, nil
}

func periodNs(freq float64) int64 {
	return int64(math.Round(1e9 / freq))
}

func dutyNs(period int64, percent float64) int64 {
	return int64(math.Round(float64(period) * percent / 100))
}

// Start drives the output at the configured duty cycle.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.fs.PWMSetDutyCycle(c.chip, c.pin, dutyNs(periodNs(c.freq), c.duty))
}

// Stop idles the output at zero duty. Enablement is unchanged, so Start
// resumes without reconfiguration.
func (c *Channel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.fs.PWMSetDutyCycle(c.chip, c.pin, 0)
}

// ChangeFrequency retargets the output to freq, preserving the configured
// duty percentage.
//
// The period and duty cycle writes are ordered so the kernel constraint
// period >= duty cycle holds at the intermediate step: a rising frequency
// writes the shorter period first, a falling frequency writes the duty
// cycle first.
func (c *Channel) ChangeFrequency(freq float64) error {
	if freq <= 0 || math.IsInf(freq, 0) || math.IsNaN(freq) {
		return errors.Wrapf(ErrOutOfRange, "frequency %vHz", freq)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	period := periodNs(freq)
	duty := dutyNs(period, c.duty)
	if period < periodNs(c.freq) {
		if err := c.fs.PWMSetPeriod(c.chip, c.pin, period); err != nil {
			return err
		}
		if err := c.fs.PWMSetDutyCycle(c.chip, c.pin, duty); err != nil {
			return err
		}
	} else {
		if err := c.fs.PWMSetDutyCycle(c.chip, c.pin, duty); err != nil {
			return err
		}
		if err := c.fs.PWMSetPeriod(c.chip, c.pin, period); err != nil {
			return err
		}
	}
	c.freq = freq
	return nil
}

// SetDutyCycle changes the duty cycle to percent of the period, applying it
// immediately. Values outside [0,100] fail with ErrOutOfRange.
func (c *Channel) SetDutyCycle(percent float64) error {
	if percent < 0 || percent > 100 {
		return errors.Wrapf(ErrOutOfRange, "duty cycle %v%%", percent)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.fs.PWMSetDutyCycle(c.chip, c.pin, dutyNs(periodNs(c.freq), percent)); err != nil {
		return err
	}
	c.duty = percent
	return nil
}

// InvertPolarity flips the signal polarity. The output is disabled around
// the change, as the kernel refuses polarity writes on an enabled channel.
func (c *Channel) InvertPolarity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.fs.PWMDisable(c.chip, c.pin); err != nil {
		return err
	}
	if err := c.fs.PWMSetPolarity(c.chip, c.pin, !c.inverted); err != nil {
		return err
	}
	if err := c.fs.PWMEnable(c.chip, c.pin); err != nil {
		return err
	}
	c.inverted = !c.inverted
	return nil
}

// Close releases the (chip, pin) pair. The channel must not be used
// afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.fs.PWMUnexport(c.chip, c.pin)
}
