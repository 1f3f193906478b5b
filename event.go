// SPDX-License-Identifier: MIT

package opi5

import (
	"time"

	"golang.org/x/sys/unix"
)

func validEdge(e Edge) bool {
	return e == RISING || e == FALLING || e == BOTH
}

// WaitForEdge blocks until a transition matching edge occurs on the input
// channel, or the timeout elapses. A negative timeout waits indefinitely.
//
// It returns true if an edge was detected and false on timeout. The channel
// is held for the duration of the wait; edge detection registered with
// AddEventDetect on the same channel, or a concurrent wait, is rejected
// with ErrEventExists.
func (g *GPIO) WaitForEdge(channel int, edge Edge, timeout time.Duration) (bool, error) {
	if !validEdge(edge) {
		return false, unix.EINVAL
	}
	g.mu.Lock()
	ex, err := g.require(channel, IN)
	g.mu.Unlock()
	if err != nil {
		return false, err
	}
	return g.mux.waitForEdge(ex.pin, channel, edge, timeout)
}

// AddEventDetect enables background edge detection on the input channel.
//
// Detected edges set a latch readable with EventDetected and are delivered
// to any handler registered here or with AddEventCallback. A channel has at
// most one detection registration; a second registration, or one over an
// in-progress WaitForEdge, fails with ErrEventExists.
func (g *GPIO) AddEventDetect(channel int, edge Edge, options ...EventOption) error {
	if !validEdge(edge) {
		return unix.EINVAL
	}
	eo := eventOptions{}
	for _, option := range options {
		option.applyEventOption(&eo)
	}
	g.mu.Lock()
	ex, err := g.require(channel, IN)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if eo.debounce != 0 {
		g.warnf("bouncetime is not supported by the sysfs interface, continuing anyway. Use SetWarnings(false) to disable warnings.")
	}
	return g.mux.add(ex.pin, channel, edge, eo.handler)
}

// AddEventCallback appends a handler to the channel's edge detection.
//
// Detection must already be enabled with AddEventDetect; handlers fire in
// registration order.
func (g *GPIO) AddEventCallback(channel int, handler EventHandler) error {
	g.mu.Lock()
	ex, err := g.require(channel, IN)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	return g.mux.addCallback(ex.pin, handler)
}

// EventDetected reports whether an edge has occurred on the channel since
// the last call. The latch is cleared by reading; two edges without an
// intervening call read as one.
func (g *GPIO) EventDetected(channel int) (bool, error) {
	g.mu.Lock()
	ex, err := g.require(channel, IN)
	g.mu.Unlock()
	if err != nil {
		return false, err
	}
	return g.mux.detected(ex.pin)
}

// RemoveEventDetect disables edge detection on the channel, discarding its
// handlers and detected latch.
//
// A handler dispatch already in flight may complete; no new dispatch starts
// once RemoveEventDetect returns.
func (g *GPIO) RemoveEventDetect(channel int) error {
	g.mu.Lock()
	ex, err := g.require(channel, IN)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	return g.mux.remove(ex.pin)
}
