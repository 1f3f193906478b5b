// SPDX-License-Identifier: MIT

// Package opi5 is a library for accessing GPIO and PWM pins on single-board
// computers through the sysfs pin-export interface.
//
// Channels are numbered in an application-selected scheme (the physical
// board header, or a custom mapping) and translated to kernel GPIO numbers
// internally.
//
// Example of use:
//
//	g := opi5.New()
//	g.SetMode(opi5.Board)
//	if err := g.Setup(7, opi5.IN); err != nil {
//		panic(err)
//	}
//	detected, err := g.WaitForEdge(7, opi5.RISING, 5*time.Second)
//	if err != nil {
//		panic(err)
//	}
//	if detected {
//		fmt.Println("button pressed")
//	}
//	g.Cleanup()
package opi5

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/hyphen04/opi5/sysfs"
)

// Direction indicates how a channel is driven.
type Direction = sysfs.Direction

// Edge indicates the transition kind being watched for.
type Edge = sysfs.Edge

// Channel direction, level and edge constants, mirroring the conventional
// GPIO naming.
const (
	IN  = sysfs.In
	OUT = sysfs.Out

	LOW  = 0
	HIGH = 1

	RISING  = sysfs.Rising
	FALLING = sysfs.Falling
	BOTH    = sysfs.Both
)

// PinFS is the set of pin-export file operations consumed by GPIO.
//
// It is implemented by sysfs.FS and by sim.FS for tests. A busy export is
// reported with an error satisfying errors.Is(err, unix.EBUSY).
type PinFS interface {
	Export(pin int) error
	Unexport(pin int) error
	SetDirection(pin int, d Direction) error
	ReadValue(pin int) (int, error)
	WriteValue(pin int, value int) error
	SetEdge(pin int, e Edge) error
	OpenEvent(pin int) (fd int, err error)
	CloseEvent(pin, fd int) error
}

// Warner receives advisory warnings about non-fatal conditions.
type Warner func(msg string)

// EventHandler is a receiver for edge events, called with the originating
// channel.
type EventHandler func(channel int)

type export struct {
	pin int
	dir Direction
}

// GPIO holds the channel registry and edge-event state for a process.
//
// Independent instances are fully isolated; tests may run several against
// separate filesystems.
type GPIO struct {
	// mu covers the registry fields; the edge multiplexer has its own lock.
	mu       sync.Mutex
	fs       PinFS
	warner   Warner
	warnings bool
	scheme   Scheme
	exports  map[int]export

	mux *muxer
}

// New creates a GPIO over the standard sysfs location, or over the
// filesystem given with WithFilesystem.
func New(options ...Option) *GPIO {
	g := GPIO{
		warnings: true,
		warner: func(msg string) {
			log.Print("opi5: " + msg)
		},
		exports: map[int]export{},
	}
	for _, option := range options {
		option.applyOption(&g)
	}
	if g.fs == nil {
		g.fs = sysfs.New()
	}
	g.mux = newMuxer(g.fs)
	return &g
}

// SetMode selects the numbering scheme used to translate channels for all
// subsequent calls.
func (g *GPIO) SetMode(s Scheme) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scheme = s
}

// Mode returns the active numbering scheme, or nil if none has been
// selected.
func (g *GPIO) Mode() Scheme {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scheme
}

// SetWarnings enables or disables advisory warnings.
func (g *GPIO) SetWarnings(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.warnings = enabled
}

func (g *GPIO) warnf(format string, args ...interface{}) {
	g.mu.Lock()
	enabled, w := g.warnings, g.warner
	g.mu.Unlock()
	if enabled {
		w(fmt.Sprintf(format, args...))
	}
}

// require returns the export record for the channel, failing if the channel
// is not configured, or is configured for a direction other than want.
// A want of zero accepts either direction.
//
// Assumes g is locked.
func (g *GPIO) require(channel int, want Direction) (export, error) {
	ex, ok := g.exports[channel]
	if !ok {
		return export{}, ErrNotConfigured
	}
	if want != 0 && want != ex.dir {
		return ex, ErrWrongDirection
	}
	return ex, nil
}

// Setup configures a channel as an input or an output.
//
// A channel may only be set up once; it must be released with Cleanup
// before it can be configured again. If the kernel pin is held by another
// process the export is force-released and retried once, with a warning.
func (g *GPIO) Setup(channel int, dir Direction, options ...SetupOption) error {
	so := setupOptions{initial: -1}
	for _, option := range options {
		option.applySetupOption(&so)
	}
	return g.setup(channel, dir, so)
}

// SetupAll configures a set of channels identically in a single call.
func (g *GPIO) SetupAll(channels []int, dir Direction, options ...SetupOption) error {
	so := setupOptions{initial: -1}
	for _, option := range options {
		option.applySetupOption(&so)
	}
	for _, ch := range channels {
		if err := g.setup(ch, dir, so); err != nil {
			return err
		}
	}
	return nil
}

func (g *GPIO) setup(channel int, dir Direction, so setupOptions) error {
	if dir != IN && dir != OUT {
		return unix.EINVAL
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.scheme == nil {
		return ErrModeNotSet
	}
	if so.pull != pullNone && g.warnings {
		g.warner("pull up/down settings are not supported by the sysfs interface, continuing anyway. Use SetWarnings(false) to disable warnings.")
	}
	if _, ok := g.exports[channel]; ok {
		return ErrAlreadyConfigured
	}
	pin, err := g.scheme.Translate(channel)
	if err != nil {
		return err
	}
	err = g.fs.Export(pin)
	if errors.Is(err, unix.EBUSY) {
		if g.warnings {
			g.warner(fmt.Sprintf("channel %d is already in use, continuing anyway. Use SetWarnings(false) to disable warnings.", channel))
		}
		g.fs.Unexport(pin)
		err = g.fs.Export(pin)
	}
	if err != nil {
		return err
	}
	if err = g.fs.SetDirection(pin, dir); err != nil {
		return err
	}
	g.exports[channel] = export{pin: pin, dir: dir}
	if dir == OUT && so.initial >= 0 {
		return g.fs.WriteValue(pin, so.initial)
	}
	return nil
}

// Input reads the level of a channel. Reading an output channel returns the
// driven level.
func (g *GPIO) Input(channel int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ex, err := g.require(channel, 0)
	if err != nil {
		return 0, err
	}
	return g.fs.ReadValue(ex.pin)
}

// Output sets the level of an output channel. Any non-zero value drives the
// channel high.
func (g *GPIO) Output(channel, value int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ex, err := g.require(channel, OUT)
	if err != nil {
		return err
	}
	return g.fs.WriteValue(ex.pin, value)
}

// OutputAll sets the levels of a set of output channels. A single value is
// applied to every channel; otherwise values are applied pairwise and must
// match the channels in number.
func (g *GPIO) OutputAll(channels []int, values ...int) error {
	if len(values) != 1 && len(values) != len(channels) {
		return fmt.Errorf("%d values for %d channels", len(values), len(channels))
	}
	for i, ch := range channels {
		v := values[0]
		if len(values) > 1 {
			v = values[i]
		}
		if err := g.Output(ch, v); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup releases the given channels, removing any edge detection and
// unexporting their pins.
//
// With no arguments every configured channel is released, warnings are
// re-enabled, the numbering scheme is cleared and the background edge
// multiplexer is stopped.
func (g *GPIO) Cleanup(channels ...int) error {
	all := len(channels) == 0
	if all {
		g.mu.Lock()
		for ch := range g.exports {
			channels = append(channels, ch)
		}
		g.mu.Unlock()
	}
	var firstErr error
	for _, ch := range channels {
		if err := g.cleanupChannel(ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if all {
		g.mux.stop()
		g.mu.Lock()
		g.warnings = true
		g.scheme = nil
		g.mu.Unlock()
	}
	return firstErr
}

func (g *GPIO) cleanupChannel(channel int) error {
	g.mu.Lock()
	ex, err := g.require(channel, 0)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	delete(g.exports, channel)
	g.mu.Unlock()
	g.mux.cleanupPin(ex.pin)
	return g.fs.Unexport(ex.pin)
}

var (
	// ErrModeNotSet indicates no numbering scheme has been selected.
	ErrModeNotSet = errors.New("numbering scheme not set")

	// ErrUnknownChannel indicates the active numbering scheme has no
	// mapping for the channel.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrAlreadyConfigured indicates the channel already has an export
	// record.
	ErrAlreadyConfigured = errors.New("channel already configured")

	// ErrNotConfigured indicates the channel has no export record.
	ErrNotConfigured = errors.New("channel not configured")

	// ErrWrongDirection indicates the channel is configured for the other
	// direction.
	ErrWrongDirection = errors.New("channel configured for other direction")

	// ErrEventExists indicates the pin already has edge detection, or a
	// blocking wait in progress.
	ErrEventExists = errors.New("edge detection already enabled")

	// ErrNoEvent indicates the pin has no edge detection enabled.
	ErrNoEvent = errors.New("edge detection not enabled")
)
