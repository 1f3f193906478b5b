// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyphen04/opi5/pwm"
	"github.com/hyphen04/opi5/sysfs"
)

func init() {
	pwmCmd.Flags().IntVarP(&pwmOpts.Chip, "chip", "c", 0, "the pwmchip containing the pin")
	pwmCmd.Flags().Float64VarP(&pwmOpts.Freq, "frequency", "f", 1000, "output frequency in Hz")
	pwmCmd.Flags().Float64VarP(&pwmOpts.Duty, "duty", "d", 50, "duty cycle in percent")
	pwmCmd.Flags().BoolVarP(&pwmOpts.Inverted, "inverted", "i", false, "invert the output polarity")
	pwmCmd.Flags().DurationVarP(&pwmOpts.Time, "time", "t", 0, "run for this long then exit, 0 to run until interrupted")
	rootCmd.AddCommand(pwmCmd)
}

var (
	pwmCmd = &cobra.Command{
		Use:                   "pwm [flags] <pin>",
		Short:                 "Drive a PWM pin",
		Long:                  `Drive a PWM pin through the sysfs pwmchip interface.`,
		Args:                  cobra.ExactArgs(1),
		RunE:                  runPWM,
		DisableFlagsInUseLine: true,
	}
	pwmOpts = struct {
		Chip     int
		Freq     float64
		Duty     float64
		Inverted bool
		Time     time.Duration
	}{}
)

func runPWM(cmd *cobra.Command, args []string) error {
	pin, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("can't parse pin '%s'", args[0])
	}
	options := []pwm.Option(nil)
	if pwmOpts.Inverted {
		options = append(options, pwm.WithInvertedPolarity())
	}
	c, err := pwm.New(sysfs.New(), pwmOpts.Chip, pin, pwmOpts.Freq, pwmOpts.Duty, options...)
	if err != nil {
		return fmt.Errorf("error requesting pwmchip%d pin %d: %s", pwmOpts.Chip, pin, err)
	}
	defer c.Close()
	if err = c.Start(); err != nil {
		return err
	}
	defer c.Stop()
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	if pwmOpts.Time > 0 {
		select {
		case <-time.After(pwmOpts.Time):
		case <-sigdone:
		}
		return nil
	}
	<-sigdone
	return nil
}
