// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A simple example that toggles an output pin.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyphen04/opi5"
)

// Toggles the level of header pin 7 at 1Hz until interrupted.
func main() {
	g := opi5.New()
	g.SetMode(opi5.Board)
	err := g.Setup(7, opi5.OUT, opi5.WithInitial(opi5.LOW))
	if err != nil {
		panic(err)
	}
	defer g.Cleanup()
	v := 0
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	fmt.Printf("Blinking pin 7...\n")
	for {
		select {
		case <-t.C:
			v ^= 1
			g.Output(7, v)
			fmt.Printf("Set pin 7 %s\n", levels[v])
		case <-sigdone:
			return
		}
	}
}

var levels = map[int]string{0: "inactive", 1: "active"}
