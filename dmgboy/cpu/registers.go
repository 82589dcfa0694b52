package cpu

import "github.com/pberg/dmgboy/bit"

// Flag bit positions within the F register (spec.md §4.3).
const (
	flagZ uint8 = 7
	flagN uint8 = 6
	flagH uint8 = 5
	flagC uint8 = 4
)

// registers holds the DMG's eight 8-bit registers (paired into AF/BC/DE/HL)
// plus SP/PC, as plain fields — not a bit-struct/bitfield library, per
// spec.md's redesign note to keep register access as ordinary struct access.
type registers struct {
	a, f byte
	b, c byte
	d, e byte
	h, l byte

	sp uint16
	pc uint16
}

func (r *registers) af() uint16 { return bit.Combine(r.a, r.f&0xF0) }
func (r *registers) bc() uint16 { return bit.Combine(r.b, r.c) }
func (r *registers) de() uint16 { return bit.Combine(r.d, r.e) }
func (r *registers) hl() uint16 { return bit.Combine(r.h, r.l) }

func (r *registers) setAF(v uint16) { r.a = bit.High(v); r.f = bit.Low(v) & 0xF0 }
func (r *registers) setBC(v uint16) { r.b = bit.High(v); r.c = bit.Low(v) }
func (r *registers) setDE(v uint16) { r.d = bit.High(v); r.e = bit.Low(v) }
func (r *registers) setHL(v uint16) { r.h = bit.High(v); r.l = bit.Low(v) }

func (r *registers) flag(f uint8) bool       { return bit.IsSet(f, r.f) }
func (r *registers) setFlag(f uint8)         { r.f = bit.Set(f, r.f) }
func (r *registers) resetFlag(f uint8)       { r.f = bit.Reset(f, r.f) }
func (r *registers) setFlagTo(f uint8, on bool) {
	r.f = bit.SetTo(f, r.f, on)
}
func (r *registers) flagBit(f uint8) uint8 {
	if r.flag(f) {
		return 1
	}
	return 0
}
