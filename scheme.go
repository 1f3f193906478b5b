// SPDX-License-Identifier: MIT

package opi5

// Scheme translates an application channel into a kernel GPIO number.
//
// Exactly one scheme is active per GPIO at a time, selected with SetMode.
// Board and Raw are provided, Custom supports user mappings, and any other
// implementation of Translate may be supplied.
type Scheme interface {
	Translate(channel int) (pin int, err error)
}

// Custom is a user-supplied channel to kernel GPIO mapping.
type Custom map[int]int

// Translate looks the channel up in the mapping.
func (c Custom) Translate(channel int) (int, error) {
	pin, ok := c[channel]
	if !ok {
		return 0, ErrUnknownChannel
	}
	return pin, nil
}

type boardScheme struct{}

// Physical pin on the 26-way header to kernel GPIO number.
var boardPins = map[int]int{
	3:  47,
	5:  46,
	7:  54,
	8:  131,
	10: 132,
	11: 138,
	12: 29,
	13: 139,
	15: 28,
	16: 59,
	18: 58,
	19: 49,
	21: 48,
	22: 92,
	23: 50,
	24: 52,
	26: 35,
}

func (boardScheme) Translate(channel int) (int, error) {
	pin, ok := boardPins[channel]
	if !ok {
		return 0, ErrUnknownChannel
	}
	return pin, nil
}

// Board numbers channels by their physical position on the board header.
var Board Scheme = boardScheme{}

type rawScheme struct{}

func (rawScheme) Translate(channel int) (int, error) {
	if channel < 0 {
		return 0, ErrUnknownChannel
	}
	return channel, nil
}

// Raw numbers channels directly by kernel GPIO number.
var Raw Scheme = rawScheme{}
