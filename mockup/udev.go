// SPDX-License-Identifier: MIT

package mockup

import (
	"log"
	"sort"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/pkg/errors"
)

// udevMonitor watches for gpio-mockup chips registering with the kernel,
// so New can tell when the modprobe has taken effect.
type udevMonitor struct {
	conn  *netlink.UEventConn
	queue chan netlink.UEvent
	quit  chan struct{}
}

func newUdevMonitor() (*udevMonitor, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, errors.New("unable to connect to Netlink Kobject UEvent socket")
	}
	action := "add"
	matcher := &netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "gpio",
			"DEVPATH":   "/devices/platform/gpio-mockup\\.\\d+/gpiochip\\d+",
		},
	}
	queue := make(chan netlink.UEvent)
	errCh := make(chan error)
	quit := conn.Monitor(queue, errCh, matcher)
	mon := udevMonitor{conn: conn, queue: queue, quit: quit}
	go func() {
		for {
			select {
			case err := <-errCh:
				log.Printf("mockup: udev monitor error: %v", err)
			case <-quit:
				return
			}
		}
	}()
	return &mon, nil
}

// chipNames waits for n chip add events and returns the chardev names in
// device order.
func (m *udevMonitor) chipNames(n int) ([]string, error) {
	names := make([]string, n)
	for i := range names {
		select {
		case evt := <-m.queue:
			names[i] = evt.Env["DEVNAME"][len("/dev/"):]
		case <-time.After(time.Second):
			return nil, errors.New("timeout waiting for udev events")
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *udevMonitor) close() {
	m.quit <- struct{}{}
	m.conn.Close()
}
