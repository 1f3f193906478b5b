// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A simple example that watches an input pin and reports edges detected.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyphen04/opi5"
)

// Watches header pin 7 and reports when it changes state.
func main() {
	g := opi5.New()
	g.SetMode(opi5.Board)
	err := g.Setup(7, opi5.IN)
	if err != nil {
		panic(err)
	}
	defer g.Cleanup()
	err = g.AddEventDetect(7, opi5.BOTH, opi5.WithCallback(func(channel int) {
		v, _ := g.Input(channel)
		fmt.Printf("pin 7 level %d at %s\n", v, time.Now().Format(time.RFC3339Nano))
	}))
	if err != nil {
		panic(err)
	}
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	fmt.Println("Watching pin 7...")
	<-sigdone
}
