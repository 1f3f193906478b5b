// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyphen04/opi5"
)

func init() {
	waitCmd.Flags().StringVarP(&waitOpts.Edge, "edge", "e", "both", "select the edge to wait for.")
	waitCmd.Flags().DurationVarP(&waitOpts.Timeout, "timeout", "t", -1, "exit if no edge occurs within this time")
	rootCmd.AddCommand(waitCmd)
}

var (
	waitCmd = &cobra.Command{
		Use:                   "wait [flags] <pin>",
		Short:                 "Wait for an edge on a pin",
		Long:                  `Block until an edge occurs on a GPIO pin, or the timeout elapses.`,
		Args:                  cobra.ExactArgs(1),
		RunE:                  wait,
		DisableFlagsInUseLine: true,
	}
	waitOpts = struct {
		Edge    string
		Timeout time.Duration
	}{}
)

func wait(cmd *cobra.Command, args []string) error {
	pp, err := parsePins(args)
	if err != nil {
		return err
	}
	g := opi5.New()
	g.SetMode(opi5.Raw)
	defer g.Cleanup()
	if err = g.Setup(pp[0], opi5.IN); err != nil {
		return fmt.Errorf("error requesting pin %d: %s", pp[0], err)
	}
	detected, err := g.WaitForEdge(pp[0], parseEdge(waitOpts.Edge), waitOpts.Timeout)
	if err != nil {
		return fmt.Errorf("error waiting on pin %d: %s", pp[0], err)
	}
	if !detected {
		return fmt.Errorf("timeout waiting on pin %d", pp[0])
	}
	fmt.Printf("event:%3d %s\n", pp[0], time.Now().Format(time.RFC3339Nano))
	return nil
}
