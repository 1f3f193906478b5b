// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A monitor for edges on sysfs GPIO pins.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/keys"
	"github.com/warthog618/config/pflag"

	"github.com/hyphen04/opi5"
	"github.com/hyphen04/opi5/device/opi"
)

var version = "undefined"

func main() {
	shortFlags := map[byte]string{
		'h': "help",
		'v': "version",
		'n': "num-events",
		's': "silent",
		'f': "falling-edge",
		'r': "rising-edge",
	}
	defaults := dict.New(dict.WithMap(
		map[string]interface{}{
			"num-events":   0,
			"silent":       false,
			"falling-edge": false,
			"rising-edge":  false,
		}))
	flags := pflag.New(pflag.WithShortFlags(shortFlags),
		pflag.WithKeyReplacer(keys.NullReplacer()))
	cfg := config.New(flags, config.WithDefault(defaults))
	if v, err := cfg.Get("help"); err == nil && v.Bool() {
		printHelp()
		os.Exit(0)
	}
	if v, err := cfg.Get("version"); err == nil && v.Bool() {
		printVersion()
		os.Exit(0)
	}
	if flags.NArg() == 0 {
		die("at least one GPIO pin must be specified")
	}

	pp := []int(nil)
	for _, arg := range flags.Args() {
		p, err := opi.Pin(arg)
		if err != nil {
			die(fmt.Sprintf("can't parse pin '%s'", arg))
		}
		pp = append(pp, p)
	}
	falling := cfg.MustGet("falling-edge").Bool()
	rising := cfg.MustGet("rising-edge").Bool()
	edge := opi5.BOTH
	switch {
	case rising && !falling:
		edge = opi5.RISING
	case falling && !rising:
		edge = opi5.FALLING
	}
	g := opi5.New()
	g.SetMode(opi5.Raw)
	defer g.Cleanup()
	evtchan := make(chan int)
	eh := func(pin int) {
		evtchan <- pin
	}
	for _, p := range pp {
		if err := g.Setup(p, opi5.IN); err != nil {
			die("error requesting GPIO pin: " + err.Error())
		}
		if err := g.AddEventDetect(p, edge, opi5.WithCallback(eh)); err != nil {
			die("error watching GPIO pin: " + err.Error())
		}
	}
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	count := int64(0)
	num := cfg.MustGet("num-events").Int()
	silent := cfg.MustGet("silent").Bool()
	for {
		select {
		case pin := <-evtchan:
			if !silent {
				v, _ := g.Input(pin)
				fmt.Printf("event:%3d level %d %s\n", pin, v,
					time.Now().Format(time.RFC3339Nano))
			}
			count++
			if num > 0 && count >= num {
				return
			}
		case <-sigdone:
			return
		}
	}
}

func die(reason string) {
	fmt.Fprintln(os.Stderr, "opi5mon: "+reason)
	os.Exit(1)
}

func printHelp() {
	fmt.Printf("Usage: %s [OPTIONS] <pin 1> <pin 2>...\n", os.Args[0])
	fmt.Println("Wait for edges on sysfs GPIO pins and print them to standard output.")
	fmt.Println("")
	fmt.Println("Pins may be kernel GPIO numbers or port names such as PA7.")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -h, --help:\t\tdisplay this message and exit")
	fmt.Println("  -v, --version:\tdisplay the version and exit")
	fmt.Println("  -n, --num-events=NUM:\texit after processing NUM events")
	fmt.Println("  -s, --silent:\t\tdon't print event info")
	fmt.Println("  -r, --rising-edge:\tonly detect rising edge events")
	fmt.Println("  -f, --falling-edge:\tonly detect falling edge events")
}

func printVersion() {
	fmt.Printf("%s (opi5) %s\n", os.Args[0], version)
}
