// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A utility to control GPIO and PWM pins through sysfs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyphen04/opi5/device/opi"
)

var rootCmd = &cobra.Command{
	Use:   "opi5ctl",
	Short: "opi5ctl is a utility to control GPIO and PWM pins",
	Long:  "opi5ctl is a utility to control GPIO and PWM pins through the Linux sysfs interface",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "opi5ctl %s: %s\n", cmd.Name(), err)
}

// parsePins converts pin arguments, either kernel GPIO numbers or port
// names such as PA7, to kernel GPIO numbers.
func parsePins(args []string) ([]int, error) {
	pp := []int(nil)
	for _, arg := range args {
		p, err := opi.Pin(arg)
		if err != nil {
			return nil, fmt.Errorf("can't parse pin '%s'", arg)
		}
		pp = append(pp, p)
	}
	return pp, nil
}
