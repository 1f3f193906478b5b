// SPDX-License-Identifier: MIT

// Package opi maps Allwinner-style port names to kernel GPIO numbers for
// Orange Pi boards.
//
// Ports are banks of 32 pins named PA through PZ, so PA7 is kernel GPIO 7
// and PC4 is kernel GPIO 68. The resulting numbers are suitable for use in
// an opi5.Custom mapping or with the opi5.Raw scheme.
package opi

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalid indicates the pin name does not match a known pin.
var ErrInvalid = errors.New("invalid pin name")

const (
	maxBank     = 'z' - 'a'
	pinsPerBank = 32
)

// Port converts a bank letter and pin index within the bank to a kernel
// GPIO number.
func Port(bank rune, pin int) (int, error) {
	b := int(bank)
	if b >= 'a' && b <= 'z' {
		b -= 'a'
	} else if b >= 'A' && b <= 'Z' {
		b -= 'A'
	} else {
		return 0, ErrInvalid
	}
	if pin < 0 || pin >= pinsPerBank {
		return 0, ErrInvalid
	}
	return b*pinsPerBank + pin, nil
}

// Pin maps a pin string name to a kernel GPIO number.
//
// Pin names are case insensitive and may be of the form PA7, or a plain
// GPIO number.
func Pin(s string) (int, error) {
	s = strings.ToLower(s)
	if strings.HasPrefix(s, "p") && len(s) >= 3 {
		v, err := strconv.ParseInt(s[2:], 10, 8)
		if err != nil {
			return 0, ErrInvalid
		}
		return Port(rune(s[1]), int(v))
	}
	v, err := strconv.ParseInt(s, 10, 16)
	if err != nil || v < 0 || v > int64((maxBank+1)*pinsPerBank-1) {
		return 0, ErrInvalid
	}
	return int(v), nil
}

// MustPin converts the string to the corresponding kernel GPIO number or
// panics if that is not possible.
func MustPin(s string) int {
	v, err := Pin(s)
	if err != nil {
		panic(err)
	}
	return v
}
