// SPDX-License-Identifier: MIT

package opi5

import "time"

// Option defines the interface required to provide a GPIO option.
type Option interface {
	applyOption(*GPIO)
}

// FilesystemOption provides the pin-export filesystem backing a GPIO.
type FilesystemOption struct {
	fs PinFS
}

// WithFilesystem provides the pin-export filesystem backing the GPIO,
// replacing the default sysfs implementation.
func WithFilesystem(fs PinFS) FilesystemOption {
	return FilesystemOption{fs}
}

func (o FilesystemOption) applyOption(g *GPIO) {
	g.fs = o.fs
}

// WarnerOption provides the receiver for advisory warnings.
type WarnerOption struct {
	w Warner
}

// WithWarner provides the receiver for advisory warnings, replacing the
// default standard-library logger.
func WithWarner(w Warner) WarnerOption {
	return WarnerOption{w}
}

func (o WarnerOption) applyOption(g *GPIO) {
	g.warner = o.w
}

type pull int

const (
	pullNone pull = iota
	pullUp
	pullDown
)

type setupOptions struct {
	// initial output level; -1 leaves the pin untouched.
	initial int
	pull    pull
}

// SetupOption defines the interface required to provide a Setup option.
type SetupOption interface {
	applySetupOption(*setupOptions)
}

// InitialOption provides the level an output channel is reset to.
type InitialOption int

// WithInitial provides the level an output channel is reset to when set up.
func WithInitial(value int) InitialOption {
	if value != 0 {
		value = 1
	}
	return InitialOption(value)
}

func (o InitialOption) applySetupOption(s *setupOptions) {
	s.initial = int(o)
}

// PullOption requests an input bias.
//
// The sysfs interface cannot configure bias, so the request is inert and
// warned about.
type PullOption pull

// WithPullUp requests pull-up bias on an input channel.
func WithPullUp() PullOption {
	return PullOption(pullUp)
}

// WithPullDown requests pull-down bias on an input channel.
func WithPullDown() PullOption {
	return PullOption(pullDown)
}

func (o PullOption) applySetupOption(s *setupOptions) {
	s.pull = pull(o)
}

type eventOptions struct {
	handler  EventHandler
	debounce time.Duration
}

// EventOption defines the interface required to provide an AddEventDetect
// option.
type EventOption interface {
	applyEventOption(*eventOptions)
}

// CallbackOption provides a handler registered with the new watcher.
type CallbackOption struct {
	handler EventHandler
}

// WithCallback provides a handler invoked on each detected edge.
func WithCallback(h EventHandler) CallbackOption {
	return CallbackOption{h}
}

func (o CallbackOption) applyEventOption(e *eventOptions) {
	e.handler = o.handler
}

// BounceTimeOption requests software debouncing of detected edges.
//
// Debouncing is not implemented over the sysfs interface, so the request is
// inert and warned about.
type BounceTimeOption time.Duration

// WithBounceTime requests that edges within the period of a previous edge
// be suppressed.
func WithBounceTime(period time.Duration) BounceTimeOption {
	return BounceTimeOption(period)
}

func (o BounceTimeOption) applyEventOption(e *eventOptions) {
	e.debounce = time.Duration(o)
}
