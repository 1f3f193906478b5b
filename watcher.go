// SPDX-License-Identifier: MIT

package opi5

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hyphen04/opi5/sysfs"
)

// readiness events registered for pin descriptors.
//
// A sysfs value file is always level-readable, so edge-triggered
// registration is required - the descriptor then reports once when added
// and once per subsequent transition notification.
const eventFlags = unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLET

// callback pairs a handler with the channel it was registered against, so
// dispatch supplies the channel explicitly rather than relying on closure
// capture.
type callback struct {
	fn      EventHandler
	channel int
}

// watcher is the per-pin edge detection state.
type watcher struct {
	pin     int
	fd      int
	edge    Edge
	channel int

	// callbacks in registration order.
	cbs []callback

	// tokens from the loop to the runner, one per dispatch. Closed on
	// removal to stop the runner.
	events chan struct{}

	// latch set by the loop, cleared by detected().
	detected bool

	// the initial readiness report has been consumed.
	primed bool
}

// muxer owns the shared background poll across all watched pins, and the
// per-call waits used by WaitForEdge.
//
// The loop is started lazily on the first attach and runs until stop.
type muxer struct {
	fs PinFS

	// mu covers all that follows, including per-watcher state.
	mu      sync.Mutex
	running bool
	epfd    int

	// pipe to wake the loop for shutdown.
	donefds [2]int

	// closed once the loop exits.
	doneCh chan struct{}

	// watchers keyed by kernel pin, and the fd to pin index the loop uses.
	ww    map[int]*watcher
	fdpin map[int]int

	// pins held by in-progress blocking waits.
	waiting map[int]bool
}

func newMuxer(fs PinFS) *muxer {
	return &muxer{
		fs:      fs,
		ww:      map[int]*watcher{},
		fdpin:   map[int]int{},
		waiting: map[int]bool{},
	}
}

// drain consumes the pending readiness state of the descriptor - the
// current level for a sysfs value file - re-arming its edge-triggered
// registration.
func drain(fd int) {
	// value files need the offset reset; pipes in tests do not seek.
	unix.Seek(fd, 0, 0)
	buf := make([]byte, 64)
	unix.Read(fd, buf)
}

// start creates the epoll instance and wake pipe and launches the loop.
//
// Assumes m is locked.
func (m *muxer) start() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p := []int{0, 0}
	if err = unix.Pipe2(p, unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return err
	}
	epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(p[0])}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, p[0], &epv); err != nil {
		unix.Close(epfd)
		unix.Close(p[0])
		unix.Close(p[1])
		return err
	}
	m.epfd = epfd
	m.donefds[0], m.donefds[1] = p[0], p[1]
	m.doneCh = make(chan struct{})
	m.running = true
	go m.watch(epfd, p[0], m.doneCh)
	return nil
}

// stop detaches every watcher and shuts down the loop, if running.
func (m *muxer) stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	ww := make([]*watcher, 0, len(m.ww))
	for _, w := range m.ww {
		unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, w.fd, nil)
		m.fs.SetEdge(w.pin, sysfs.None)
		w.cbs = nil
		close(w.events)
		ww = append(ww, w)
	}
	m.ww = map[int]*watcher{}
	m.fdpin = map[int]int{}
	epfd, donefds, doneCh := m.epfd, m.donefds, m.doneCh
	m.mu.Unlock()

	unix.Write(donefds[1], []byte("bye"))
	<-doneCh
	// descriptors are closed only once the loop has exited, so it never
	// polls a reused fd.
	for _, w := range ww {
		m.fs.CloseEvent(w.pin, w.fd)
	}
	unix.Close(epfd)
	unix.Close(donefds[0])
	unix.Close(donefds[1])
}

func (m *muxer) watch(epfd, donefd int, doneCh chan struct{}) {
	defer close(doneCh)
	epollEvents := make([]unix.EpollEvent, 16)
	for {
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// fd closed underneath us so exit
			return
		}
		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			if fd == donefd {
				return
			}
			m.dispatch(fd)
		}
	}
}

// dispatch services one ready descriptor: latch the detected flag and hand
// the pin's runner a token.
//
// Callbacks are invoked by the per-pin runner, so a slow handler delays only
// callbacks queued behind it on the same pin, never detection on others.
func (m *muxer) dispatch(fd int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.fdpin[fd]
	if !ok {
		return
	}
	w := m.ww[pin]
	// the drain happens under the lock so the fd cannot be closed by a
	// concurrent remove while being read.
	drain(fd)
	if !w.primed {
		// initial readiness report from attaching, not a transition.
		w.primed = true
		return
	}
	w.detected = true
	select {
	case w.events <- struct{}{}:
	default:
		// the runner is behind; the edge-triggered registration already
		// coalesces transitions, so coalesce here too.
	}
}

// run invokes the watcher's callbacks, in registration order, once per
// dispatch token, until the watcher is removed.
func (m *muxer) run(w *watcher) {
	for range w.events {
		m.mu.Lock()
		cbs := append([]callback(nil), w.cbs...)
		m.mu.Unlock()
		for _, cb := range cbs {
			cb.fn(cb.channel)
		}
	}
}

// add creates a watcher for the pin and attaches it to the background loop.
func (m *muxer) add(pin, channel int, edge Edge, fn EventHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ww[pin] != nil || m.waiting[pin] {
		return ErrEventExists
	}
	if !m.running {
		if err := m.start(); err != nil {
			return err
		}
	}
	if err := m.fs.SetEdge(pin, edge); err != nil {
		return err
	}
	fd, err := m.fs.OpenEvent(pin)
	if err != nil {
		m.fs.SetEdge(pin, sysfs.None)
		return err
	}
	epv := unix.EpollEvent{Events: eventFlags, Fd: int32(fd)}
	if err = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &epv); err != nil {
		m.fs.CloseEvent(pin, fd)
		m.fs.SetEdge(pin, sysfs.None)
		return err
	}
	w := &watcher{
		pin:     pin,
		fd:      fd,
		edge:    edge,
		channel: channel,
		events:  make(chan struct{}, 16),
	}
	if fn != nil {
		w.cbs = append(w.cbs, callback{fn, channel})
	}
	m.ww[pin] = w
	m.fdpin[fd] = pin
	go m.run(w)
	return nil
}

// addCallback appends a handler to an existing watcher.
func (m *muxer) addCallback(pin int, fn EventHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.ww[pin]
	if w == nil {
		return ErrNoEvent
	}
	w.cbs = append(w.cbs, callback{fn, w.channel})
	return nil
}

// detected atomically reads and clears the pin's detected latch.
func (m *muxer) detected(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.ww[pin]
	if w == nil {
		return false, ErrNoEvent
	}
	d := w.detected
	w.detected = false
	return d, nil
}

// remove detaches the pin from the background loop and discards its
// callbacks and detected latch.
//
// A dispatch already in flight for the pin may complete; no new dispatch
// starts once remove returns.
func (m *muxer) remove(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.ww[pin]
	if w == nil {
		return ErrNoEvent
	}
	m.removeLocked(w)
	return nil
}

// Assumes m is locked.
func (m *muxer) removeLocked(w *watcher) {
	unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, w.fd, nil)
	delete(m.fdpin, w.fd)
	delete(m.ww, w.pin)
	// tokens already queued may still be received after the close;
	// emptying the callback list invalidates them, so no new dispatch
	// starts once removal returns.
	w.cbs = nil
	// dispatch only sends while the watcher is in the maps, and under the
	// same lock, so the close cannot race a send.
	close(w.events)
	m.fs.CloseEvent(w.pin, w.fd)
	m.fs.SetEdge(w.pin, sysfs.None)
}

// cleanupPin is remove for channel teardown: a missing watcher is not an
// error, and the pin's edge configuration is released regardless.
func (m *muxer) cleanupPin(pin int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.ww[pin]; w != nil {
		m.removeLocked(w)
		return
	}
	// best effort - the pin may not be armed, or not even an input.
	m.fs.SetEdge(pin, sysfs.None)
}

// waitForEdge blocks the caller until a matching transition on the pin or
// the timeout elapses. A negative timeout waits indefinitely.
//
// The wait uses its own epoll instance so the background loop neither sees
// the pin nor delays the caller. The pin is held for the duration; a
// registered watcher on the same pin, or a second wait, is rejected.
func (m *muxer) waitForEdge(pin, channel int, edge Edge, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	if m.ww[pin] != nil || m.waiting[pin] {
		m.mu.Unlock()
		return false, ErrEventExists
	}
	m.waiting[pin] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.waiting, pin)
		m.mu.Unlock()
	}()

	if err := m.fs.SetEdge(pin, edge); err != nil {
		return false, err
	}
	defer m.fs.SetEdge(pin, sysfs.None)
	fd, err := m.fs.OpenEvent(pin)
	if err != nil {
		return false, err
	}
	defer m.fs.CloseEvent(pin, fd)
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return false, err
	}
	defer unix.Close(epfd)
	epv := unix.EpollEvent{Events: eventFlags, Fd: int32(fd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &epv); err != nil {
		return false, err
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	epollEvents := make([]unix.EpollEvent, 1)
	primed := false
	for {
		msec := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			// round up so the deadline is never cut short.
			msec = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}
		n, err := unix.EpollWait(epfd, epollEvents, msec)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, err
		}
		if n > 0 {
			drain(fd)
			if !primed {
				// initial readiness report, not a transition.
				primed = true
				continue
			}
			return true, nil
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return false, nil
		}
	}
}
