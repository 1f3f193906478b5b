// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyphen04/opi5"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:                   "get <pin1>...",
	Short:                 "Get the level of a pin or pins",
	Long:                  `Read the level of a pin or pins through the sysfs interface.`,
	Args:                  cobra.MinimumNArgs(1),
	RunE:                  get,
	DisableFlagsInUseLine: true,
}

func get(cmd *cobra.Command, args []string) error {
	pp, err := parsePins(args)
	if err != nil {
		return err
	}
	g := opi5.New()
	g.SetMode(opi5.Raw)
	defer g.Cleanup()
	vstr := ""
	for i, p := range pp {
		if err = g.Setup(p, opi5.IN); err != nil {
			return fmt.Errorf("error requesting pin %d: %s", p, err)
		}
		v, err := g.Input(p)
		if err != nil {
			return fmt.Errorf("error reading pin %d: %s", p, err)
		}
		if i > 0 {
			vstr += " "
		}
		vstr += fmt.Sprintf("%d", v)
	}
	fmt.Println(vstr)
	return nil
}
