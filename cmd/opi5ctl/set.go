// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyphen04/opi5"
)

func init() {
	rootCmd.AddCommand(setCmd)
}

var setCmd = &cobra.Command{
	Use:                   "set <pin1>=<level1>...",
	Short:                 "Set the level of a pin or pins",
	Long: `Drive a pin or pins through the sysfs interface.

The pins are left exported so the levels persist after exit.`,
	Args:                  cobra.MinimumNArgs(1),
	RunE:                  set,
	DisableFlagsInUseLine: true,
}

func set(cmd *cobra.Command, args []string) error {
	pp := []int(nil)
	vv := []int(nil)
	for _, arg := range args {
		f := strings.Split(arg, "=")
		if len(f) != 2 {
			return fmt.Errorf("invalid pin<->level mapping: %s", arg)
		}
		p, err := parsePins(f[:1])
		if err != nil {
			return err
		}
		v, err := strconv.ParseUint(f[1], 10, 1)
		if err != nil {
			return fmt.Errorf("can't parse level '%s'", f[1])
		}
		pp = append(pp, p[0])
		vv = append(vv, int(v))
	}
	g := opi5.New()
	g.SetMode(opi5.Raw)
	for i, p := range pp {
		if err := g.Setup(p, opi5.OUT, opi5.WithInitial(vv[i])); err != nil {
			return fmt.Errorf("error requesting pin %d: %s", p, err)
		}
	}
	return nil
}
