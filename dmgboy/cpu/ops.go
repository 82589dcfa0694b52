package cpu

import "github.com/pberg/dmgboy/bit"

// This file collects the ALU/rotate/stack helpers shared by several opcode
// table entries, grounded on the teacher's jeebie/cpu/instructions.go.

func (c *CPU) pushStack(v uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(v))
	c.sp--
	c.bus.Write(c.sp, bit.Low(v))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

func (c *CPU) incVal(v uint8) uint8 {
	v++
	c.setFlagTo(flagZ, v == 0)
	c.setFlagTo(flagH, (v&0xF) == 0)
	c.resetFlag(flagN)
	return v
}

func (c *CPU) decVal(v uint8) uint8 {
	v--
	c.setFlagTo(flagZ, v == 0)
	c.setFlagTo(flagH, (v&0xF) == 0xF)
	c.setFlag(flagN)
	return v
}

func (c *CPU) addToA(value uint8) {
	a := c.a
	result := a + value
	c.setFlagTo(flagC, uint16(a)+uint16(value) > 0xFF)
	c.setFlagTo(flagH, (a&0xF)+(value&0xF) > 0xF)
	c.resetFlag(flagN)
	c.setFlagTo(flagZ, result == 0)
	c.a = result
}

func (c *CPU) adcToA(value uint8) {
	a := c.a
	carry := c.flagBit(flagC)
	result := uint16(a) + uint16(value) + uint16(carry)
	c.setFlagTo(flagH, (a&0xF)+(value&0xF)+carry > 0xF)
	c.setFlagTo(flagC, result > 0xFF)
	c.resetFlag(flagN)
	c.a = uint8(result)
	c.setFlagTo(flagZ, c.a == 0)
}

func (c *CPU) subFromA(value uint8) uint8 {
	a := c.a
	result := a - value
	c.setFlagTo(flagC, uint16(value) > uint16(a))
	c.setFlagTo(flagH, (value&0xF) > (a&0xF))
	c.setFlag(flagN)
	c.setFlagTo(flagZ, result == 0)
	return result
}

func (c *CPU) sub(value uint8) {
	c.a = c.subFromA(value)
}

func (c *CPU) sbcFromA(value uint8) {
	a := c.a
	carry := c.flagBit(flagC)
	result := int16(a) - int16(value) - int16(carry)
	c.setFlagTo(flagH, int16(a&0xF)-int16(value&0xF)-int16(carry) < 0)
	c.setFlagTo(flagC, result < 0)
	c.setFlag(flagN)
	c.a = uint8(result)
	c.setFlagTo(flagZ, c.a == 0)
}

func (c *CPU) cp(value uint8) {
	c.subFromA(value)
}

func (c *CPU) and(value uint8) {
	c.a &= value
	c.setFlagTo(flagZ, c.a == 0)
	c.resetFlag(flagN)
	c.setFlag(flagH)
	c.resetFlag(flagC)
}

func (c *CPU) or(value uint8) {
	c.a |= value
	c.setFlagTo(flagZ, c.a == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
	c.resetFlag(flagC)
}

func (c *CPU) xor(value uint8) {
	c.a ^= value
	c.setFlagTo(flagZ, c.a == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
	c.resetFlag(flagC)
}

func (c *CPU) addToHL(value uint16) {
	hl := c.hl()
	result := hl + value
	c.resetFlag(flagN)
	c.setFlagTo(flagC, uint32(hl)+uint32(value) > 0xFFFF)
	c.setFlagTo(flagH, (hl&0xFFF)+(value&0xFFF) > 0xFFF)
	c.setHL(result)
}

// addSPSigned computes SP + an 8-bit signed displacement, setting flags the
// way both ADD SP,e and LD HL,SP+e do (spec.md §4.3: Z and N always clear,
// H/C computed on the *unsigned low-byte* addition).
func (c *CPU) addSPSigned(offset uint8) uint16 {
	sp := c.sp
	signed := int16(int8(offset))
	result := uint16(int32(sp) + int32(signed))

	c.resetFlag(flagZ)
	c.resetFlag(flagN)
	c.setFlagTo(flagH, (sp&0xF)+(uint16(offset)&0xF) > 0xF)
	c.setFlagTo(flagC, (sp&0xFF)+uint16(offset) > 0xFF)
	return result
}

func (c *CPU) rlc(r *uint8) {
	v := *r
	carry := v > 0x7F
	v = (v << 1) | boolBit(carry)
	*r = v
	c.setFlagTo(flagC, carry)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) rl(r *uint8) {
	v := *r
	carryIn := c.flagBit(flagC)
	carryOut := v > 0x7F
	v = (v << 1) | carryIn
	*r = v
	c.setFlagTo(flagC, carryOut)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) rrc(r *uint8) {
	v := *r
	carry := v&1 == 1
	v = (v >> 1) | (boolBit(carry) << 7)
	*r = v
	c.setFlagTo(flagC, carry)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) rr(r *uint8) {
	v := *r
	carryIn := c.flagBit(flagC)
	carryOut := v&1 == 1
	v = (v >> 1) | (carryIn << 7)
	*r = v
	c.setFlagTo(flagC, carryOut)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) sla(r *uint8) {
	v := *r
	carry := v > 0x7F
	v <<= 1
	*r = v
	c.setFlagTo(flagC, carry)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) sra(r *uint8) {
	v := *r
	carry := v&1 == 1
	v = (v >> 1) | (v & 0x80)
	*r = v
	c.setFlagTo(flagC, carry)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) srl(r *uint8) {
	v := *r
	carry := v&1 == 1
	v >>= 1
	*r = v
	c.setFlagTo(flagC, carry)
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
}

func (c *CPU) swap(r *uint8) {
	v := *r
	v = (v << 4) | (v >> 4)
	*r = v
	c.setFlagTo(flagZ, v == 0)
	c.resetFlag(flagN)
	c.resetFlag(flagH)
	c.resetFlag(flagC)
}

func (c *CPU) bitTest(index uint8, value uint8) {
	c.setFlagTo(flagZ, !bit.IsSet(index, value))
	c.resetFlag(flagN)
	c.setFlag(flagH)
}

// daa implements the BCD-correction opcode, following the standard
// post-ADD/SUB adjustment table (spec.md §4.3).
func (c *CPU) daa() {
	a := c.a
	correction := uint8(0)
	carry := false

	if c.flag(flagH) || (!c.flag(flagN) && (a&0xF) > 9) {
		correction |= 0x06
	}
	if c.flag(flagC) || (!c.flag(flagN) && a > 0x99) {
		correction |= 0x60
		carry = true
	}

	if c.flag(flagN) {
		a -= correction
	} else {
		a += correction
	}

	c.a = a
	c.setFlagTo(flagZ, a == 0)
	c.resetFlag(flagH)
	c.setFlagTo(flagC, carry)
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
