// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyphen04/opi5"
)

func init() {
	monCmd.Flags().StringVarP(&monOpts.Edge, "edge", "e", "both", "select the edge detection.")
	monCmd.Flags().UintVarP(&monOpts.NumEvents, "num-events", "n", 0, "exit after n edges")
	monCmd.Flags().BoolVarP(&monOpts.Quiet, "quiet", "q", false, "don't display event details")
	monCmd.SetHelpTemplate(monCmd.HelpTemplate() + extendedMonHelp)
	rootCmd.AddCommand(monCmd)
}

var extendedMonHelp = `
Edges:
  both:         both rising and falling edge events are detected
                and reported
  rising:       only rising edge events are detected and reported
  falling:      only falling edge events are detected and reported
`

var (
	monCmd = &cobra.Command{
		Use:                   "mon [flags] <pin1>...",
		Short:                 "Monitor the level of a pin or pins",
		Long:                  `Wait for edges on GPIO pins and print them to standard output.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  mon,
		DisableFlagsInUseLine: true,
	}
	monOpts = struct {
		Edge      string
		Quiet     bool
		NumEvents uint
	}{}
)

func mon(cmd *cobra.Command, args []string) error {
	pp, err := parsePins(args)
	if err != nil {
		return err
	}
	g := opi5.New()
	g.SetMode(opi5.Raw)
	defer g.Cleanup()
	evtchan := make(chan int)
	eh := func(pin int) {
		evtchan <- pin
	}
	edge := parseEdge(monOpts.Edge)
	for _, p := range pp {
		if err = g.Setup(p, opi5.IN); err != nil {
			return fmt.Errorf("error requesting pin %d: %s", p, err)
		}
		if err = g.AddEventDetect(p, edge, opi5.WithCallback(eh)); err != nil {
			return fmt.Errorf("error watching pin %d: %s", p, err)
		}
	}
	monWait(g, evtchan)
	return nil
}

func monWait(g *opi5.GPIO, evtchan <-chan int) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	count := uint(0)
	for {
		select {
		case pin := <-evtchan:
			if !monOpts.Quiet {
				v, _ := g.Input(pin)
				t := time.Now()
				fmt.Printf("event:%3d level %d %s\n", pin, v, t.Format(time.RFC3339Nano))
			}
			count++
			if monOpts.NumEvents > 0 && count >= monOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		}
	}
}

func parseEdge(e string) opi5.Edge {
	switch strings.ToLower(e) {
	case "rising":
		return opi5.RISING
	case "falling":
		return opi5.FALLING
	default:
		return opi5.BOTH
	}
}
