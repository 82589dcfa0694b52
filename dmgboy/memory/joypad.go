package memory

import "github.com/pberg/dmgboy/bit"

// Button is one of the eight logical DMG inputs (spec.md §6).
type Button uint8

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

// Joypad models the 2x4 button matrix behind the P1 register: column
// select bits 4-5 choose which row of 4 buttons bits 0-3 expose, active
// low (spec.md §4.6).
type Joypad struct {
	buttons uint8 // A,B,Select,Start - bit cleared means pressed
	dpad    uint8 // Right,Left,Up,Down - bit cleared means pressed
	select_ uint8 // raw bits 4-5 as last written

	RequestJoypadInterrupt func()
}

func NewJoypad() *Joypad {
	return &Joypad{buttons: 0x0F, dpad: 0x0F}
}

// Read returns the P1 register: bits 6-7 always 1, bits 4-5 the current
// selection, bits 0-3 the AND of whichever row(s) are selected.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) | j.select_

	selectDpad := !bit.IsSet(4, j.select_)
	selectButtons := !bit.IsSet(5, j.select_)

	switch {
	case selectButtons && selectDpad:
		result |= j.buttons & j.dpad
	case selectButtons:
		result |= j.buttons
	case selectDpad:
		result |= j.dpad
	default:
		result |= 0x0F
	}
	return result
}

// Write sets the column-select bits (4-5); the other bits are read-only.
func (j *Joypad) Write(value uint8) {
	j.select_ = value & 0x30
}

func (j *Joypad) Press(btn Button) {
	before := j.buttons & j.dpad
	j.setBit(btn, false)
	if after := j.buttons & j.dpad; before&^after != 0 {
		if j.RequestJoypadInterrupt != nil {
			j.RequestJoypadInterrupt()
		}
	}
}

func (j *Joypad) Release(btn Button) {
	j.setBit(btn, true)
}

func (j *Joypad) setBit(btn Button, released bool) {
	switch btn {
	case ButtonRight:
		j.dpad = bit.SetTo(0, j.dpad, released)
	case ButtonLeft:
		j.dpad = bit.SetTo(1, j.dpad, released)
	case ButtonUp:
		j.dpad = bit.SetTo(2, j.dpad, released)
	case ButtonDown:
		j.dpad = bit.SetTo(3, j.dpad, released)
	case ButtonA:
		j.buttons = bit.SetTo(0, j.buttons, released)
	case ButtonB:
		j.buttons = bit.SetTo(1, j.buttons, released)
	case ButtonSelect:
		j.buttons = bit.SetTo(2, j.buttons, released)
	case ButtonStart:
		j.buttons = bit.SetTo(3, j.buttons, released)
	}
}
