package cpu

import "github.com/pberg/dmgboy/bit"

// mainTable is the 256-entry unprefixed opcode table. Most of the DMG's
// encoding space is regular (LD r,r'; ALU A,r; INC/DEC/LD-n rows; 16-bit
// register group; PUSH/POP; RST; conditional branch group) and is built
// by the init() loops below, following the same closure-table approach as
// opcodes_cb.go. The irregular remainder (control flow, immediate-operand
// ALU, the handful of one-off instructions, and the undefined bytes) is
// wired in explicitly.
//
// The teacher's jeebie/cpu/opcodes.go only implements the LD/ALU blocks in
// this style; its 0xC0-0xFF control-flow entries (RET/POP/CALL/PUSH/RST and
// most conditional branches) are stub functions that return a cycle count
// with no body. That block is written here from the documented DMG
// instruction set instead of being translated from the teacher.
var mainTable [256]func(*CPU) int

var conditions = [4]func(c *CPU) bool{
	func(c *CPU) bool { return !c.flag(flagZ) }, // NZ
	func(c *CPU) bool { return c.flag(flagZ) },  // Z
	func(c *CPU) bool { return !c.flag(flagC) }, // NC
	func(c *CPU) bool { return c.flag(flagC) },  // C
}

func init() {
	buildLoadRegisterBlock()
	buildALUBlock()
	buildIncDecLoadImmediateBlock()
	build16BitGroup()
	buildPushPopBlock()
	buildRSTBlock()
	buildBranchGroup()
	buildExplicitOpcodes()
	buildIllegalOpcodes()
}

// buildLoadRegisterBlock fills 0x40-0x7F: LD r,r' for all 8x8 combinations,
// except 0x76 which is HALT (handled explicitly).
func buildLoadRegisterBlock() {
	for dst := 0; dst < 8; dst++ {
		for src := 0; src < 8; src++ {
			opcode := 0x40 + dst*8 + src
			if opcode == 0x76 {
				continue
			}
			d := cbOperands[dst]
			s := cbOperands[src]
			cost := 4
			if d.isMem || s.isMem {
				cost = 8
			}
			mainTable[opcode] = func(c *CPU) int {
				d.set(c, s.get(c))
				return cost
			}
		}
	}
}

// buildALUBlock fills 0x80-0xBF: ADD/ADC/SUB/SBC/AND/XOR/OR/CP A,r.
func buildALUBlock() {
	ops := [8]func(c *CPU, v uint8){
		func(c *CPU, v uint8) { c.addToA(v) },
		func(c *CPU, v uint8) { c.adcToA(v) },
		func(c *CPU, v uint8) { c.sub(v) },
		func(c *CPU, v uint8) { c.sbcFromA(v) },
		func(c *CPU, v uint8) { c.and(v) },
		func(c *CPU, v uint8) { c.xor(v) },
		func(c *CPU, v uint8) { c.or(v) },
		func(c *CPU, v uint8) { c.cp(v) },
	}
	for row := 0; row < 8; row++ {
		op := ops[row]
		for slot := 0; slot < 8; slot++ {
			s := cbOperands[slot]
			opcode := 0x80 + row*8 + slot
			cost := 4
			if s.isMem {
				cost = 8
			}
			mainTable[opcode] = func(c *CPU) int {
				op(c, s.get(c))
				return cost
			}
		}
	}
}

// buildIncDecLoadImmediateBlock fills the +8-spaced row at 0x04/0x05/0x06
// (and its repeats through 0x3C/0x3D/0x3E): INC r, DEC r, LD r,n.
func buildIncDecLoadImmediateBlock() {
	for slot := 0; slot < 8; slot++ {
		s := cbOperands[slot]
		incOp := 0x04 + slot*8
		decOp := 0x05 + slot*8
		ldOp := 0x06 + slot*8
		cost := 4
		memCost := 12
		if s.isMem {
			cost = 12
		}
		mainTable[incOp] = func(c *CPU) int {
			s.set(c, c.incVal(s.get(c)))
			return cost
		}
		mainTable[decOp] = func(c *CPU) int {
			s.set(c, c.decVal(s.get(c)))
			return cost
		}
		mainTable[ldOp] = func(c *CPU) int {
			n := c.fetch()
			s.set(c, n)
			if s.isMem {
				return memCost
			}
			return 8
		}
	}
}

type wideReg struct {
	get func(c *CPU) uint16
	set func(c *CPU, v uint16)
}

var wideGroup = [4]wideReg{
	{get: func(c *CPU) uint16 { return c.bc() }, set: func(c *CPU, v uint16) { c.setBC(v) }},
	{get: func(c *CPU) uint16 { return c.de() }, set: func(c *CPU, v uint16) { c.setDE(v) }},
	{get: func(c *CPU) uint16 { return c.hl() }, set: func(c *CPU, v uint16) { c.setHL(v) }},
	{get: func(c *CPU) uint16 { return c.sp }, set: func(c *CPU, v uint16) { c.sp = v }},
}

// build16BitGroup fills the +0x10-spaced 16-bit register ops across
// BC/DE/HL/SP: LD rr,nn (0x01), ADD HL,rr (0x09), INC rr (0x03), DEC rr (0x0B).
func build16BitGroup() {
	for i := 0; i < 4; i++ {
		r := wideGroup[i]
		ldOp := 0x01 + i*0x10
		addOp := 0x09 + i*0x10
		incOp := 0x03 + i*0x10
		decOp := 0x0B + i*0x10

		mainTable[ldOp] = func(c *CPU) int {
			r.set(c, c.fetchWord())
			return 12
		}
		mainTable[addOp] = func(c *CPU) int {
			c.addToHL(r.get(c))
			return 8
		}
		mainTable[incOp] = func(c *CPU) int {
			r.set(c, r.get(c)+1)
			return 8
		}
		mainTable[decOp] = func(c *CPU) int {
			r.set(c, r.get(c)-1)
			return 8
		}
	}
}

// buildPushPopBlock fills the +0x10-spaced PUSH/POP rows across BC/DE/HL/AF.
func buildPushPopBlock() {
	group := [4]wideReg{
		wideGroup[0],
		wideGroup[1],
		wideGroup[2],
		{get: func(c *CPU) uint16 { return c.af() }, set: func(c *CPU, v uint16) { c.setAF(v) }},
	}
	for i := 0; i < 4; i++ {
		r := group[i]
		popOp := 0xC1 + i*0x10
		pushOp := 0xC5 + i*0x10
		mainTable[popOp] = func(c *CPU) int {
			r.set(c, c.popStack())
			return 12
		}
		mainTable[pushOp] = func(c *CPU) int {
			c.pushStack(r.get(c))
			return 16
		}
	}
}

// buildRSTBlock fills the +8-spaced RST vectors 0xC7/0xCF/.../0xFF.
func buildRSTBlock() {
	for n := 0; n < 8; n++ {
		vector := uint16(n * 8)
		opcode := 0xC7 + n*8
		mainTable[opcode] = func(c *CPU) int {
			c.pushStack(c.pc)
			c.pc = vector
			return 16
		}
	}
}

// buildBranchGroup fills the +8-spaced conditional JR/JP/CALL/RET rows
// across the four flag conditions NZ,Z,NC,C.
func buildBranchGroup() {
	for i := 0; i < 4; i++ {
		cond := conditions[i]

		jrOp := 0x20 + i*8
		mainTable[jrOp] = func(c *CPU) int {
			offset := c.fetch()
			if cond(c) {
				c.pc = uint16(int32(c.pc) + int32(int8(offset)))
				return 12
			}
			return 8
		}

		jpOp := 0xC2 + i*8
		mainTable[jpOp] = func(c *CPU) int {
			target := c.fetchWord()
			if cond(c) {
				c.pc = target
				return 16
			}
			return 12
		}

		callOp := 0xC4 + i*8
		mainTable[callOp] = func(c *CPU) int {
			target := c.fetchWord()
			if cond(c) {
				c.pushStack(c.pc)
				c.pc = target
				return 24
			}
			return 12
		}

		retOp := 0xC0 + i*8
		mainTable[retOp] = func(c *CPU) int {
			if cond(c) {
				c.pc = c.popStack()
				return 20
			}
			return 8
		}
	}
}

// buildExplicitOpcodes wires every remaining defined opcode that doesn't
// fit a regular block: control flow without a condition, the accumulator
// rotates, immediate-operand ALU, and the handful of one-off loads.
func buildExplicitOpcodes() {
	mainTable[0x00] = func(c *CPU) int { return 4 } // NOP

	mainTable[0x02] = func(c *CPU) int { c.bus.Write(c.bc(), c.a); return 8 }   // LD (BC),A
	mainTable[0x0A] = func(c *CPU) int { c.a = c.bus.Read(c.bc()); return 8 }  // LD A,(BC)
	mainTable[0x12] = func(c *CPU) int { c.bus.Write(c.de(), c.a); return 8 }  // LD (DE),A
	mainTable[0x1A] = func(c *CPU) int { c.a = c.bus.Read(c.de()); return 8 }  // LD A,(DE)

	mainTable[0x22] = func(c *CPU) int { // LD (HL+),A
		hl := c.hl()
		c.bus.Write(hl, c.a)
		c.setHL(hl + 1)
		return 8
	}
	mainTable[0x2A] = func(c *CPU) int { // LD A,(HL+)
		hl := c.hl()
		c.a = c.bus.Read(hl)
		c.setHL(hl + 1)
		return 8
	}
	mainTable[0x32] = func(c *CPU) int { // LD (HL-),A
		hl := c.hl()
		c.bus.Write(hl, c.a)
		c.setHL(hl - 1)
		return 8
	}
	mainTable[0x3A] = func(c *CPU) int { // LD A,(HL-)
		hl := c.hl()
		c.a = c.bus.Read(hl)
		c.setHL(hl - 1)
		return 8
	}

	mainTable[0x07] = func(c *CPU) int { c.rlc(&c.a); c.resetFlag(flagZ); return 4 } // RLCA
	mainTable[0x0F] = func(c *CPU) int { c.rrc(&c.a); c.resetFlag(flagZ); return 4 } // RRCA
	mainTable[0x17] = func(c *CPU) int { c.rl(&c.a); c.resetFlag(flagZ); return 4 }  // RLA
	mainTable[0x1F] = func(c *CPU) int { c.rr(&c.a); c.resetFlag(flagZ); return 4 }  // RRA

	mainTable[0x08] = func(c *CPU) int { // LD (nn),SP
		addr := c.fetchWord()
		c.bus.Write(addr, bit.Low(c.sp))
		c.bus.Write(addr+1, bit.High(c.sp))
		return 20
	}

	mainTable[0x10] = func(c *CPU) int { c.fetch(); return 4 } // STOP (operand byte is conventionally 0x00)

	mainTable[0x18] = func(c *CPU) int { // JR n (unconditional)
		offset := c.fetch()
		c.pc = uint16(int32(c.pc) + int32(int8(offset)))
		return 12
	}

	mainTable[0x27] = func(c *CPU) int { c.daa(); return 4 } // DAA
	mainTable[0x2F] = func(c *CPU) int {                     // CPL
		c.a = ^c.a
		c.setFlag(flagN)
		c.setFlag(flagH)
		return 4
	}
	mainTable[0x37] = func(c *CPU) int { // SCF
		c.resetFlag(flagN)
		c.resetFlag(flagH)
		c.setFlag(flagC)
		return 4
	}
	mainTable[0x3F] = func(c *CPU) int { // CCF
		c.resetFlag(flagN)
		c.resetFlag(flagH)
		c.setFlagTo(flagC, !c.flag(flagC))
		return 4
	}

	mainTable[0x76] = func(c *CPU) int { c.halt(); return 4 } // HALT

	mainTable[0xC3] = func(c *CPU) int { c.pc = c.fetchWord(); return 16 } // JP nn
	mainTable[0xC9] = func(c *CPU) int { c.pc = c.popStack(); return 16 } // RET
	mainTable[0xCD] = func(c *CPU) int { // CALL nn
		target := c.fetchWord()
		c.pushStack(c.pc)
		c.pc = target
		return 24
	}
	mainTable[0xD9] = func(c *CPU) int { // RETI
		c.pc = c.popStack()
		c.ime = true
		return 16
	}
	mainTable[0xE9] = func(c *CPU) int { c.pc = c.hl(); return 4 } // JP (HL)

	mainTable[0xC6] = func(c *CPU) int { c.addToA(c.fetch()); return 8 }  // ADD A,n
	mainTable[0xCE] = func(c *CPU) int { c.adcToA(c.fetch()); return 8 }  // ADC A,n
	mainTable[0xD6] = func(c *CPU) int { c.sub(c.fetch()); return 8 }     // SUB A,n
	mainTable[0xDE] = func(c *CPU) int { c.sbcFromA(c.fetch()); return 8 } // SBC A,n
	mainTable[0xE6] = func(c *CPU) int { c.and(c.fetch()); return 8 }     // AND A,n
	mainTable[0xEE] = func(c *CPU) int { c.xor(c.fetch()); return 8 }     // XOR A,n
	mainTable[0xF6] = func(c *CPU) int { c.or(c.fetch()); return 8 }      // OR A,n
	mainTable[0xFE] = func(c *CPU) int { c.cp(c.fetch()); return 8 }      // CP A,n

	mainTable[0xE0] = func(c *CPU) int { // LDH (n),A
		n := c.fetch()
		c.bus.Write(0xFF00+uint16(n), c.a)
		return 12
	}
	mainTable[0xF0] = func(c *CPU) int { // LDH A,(n)
		n := c.fetch()
		c.a = c.bus.Read(0xFF00 + uint16(n))
		return 12
	}
	mainTable[0xE2] = func(c *CPU) int { c.bus.Write(0xFF00+uint16(c.c), c.a); return 8 } // LD (C),A
	mainTable[0xF2] = func(c *CPU) int { c.a = c.bus.Read(0xFF00 + uint16(c.c)); return 8 } // LD A,(C)

	mainTable[0xEA] = func(c *CPU) int { c.bus.Write(c.fetchWord(), c.a); return 16 }  // LD (nn),A
	mainTable[0xFA] = func(c *CPU) int { c.a = c.bus.Read(c.fetchWord()); return 16 }  // LD A,(nn)

	mainTable[0xE8] = func(c *CPU) int { c.sp = c.addSPSigned(c.fetch()); return 16 } // ADD SP,e
	mainTable[0xF8] = func(c *CPU) int { c.setHL(c.addSPSigned(c.fetch())); return 12 } // LD HL,SP+e
	mainTable[0xF9] = func(c *CPU) int { c.sp = c.hl(); return 8 }                    // LD SP,HL

	mainTable[0xF3] = func(c *CPU) int { c.disableInterrupts(); return 4 }       // DI
	mainTable[0xFB] = func(c *CPU) int { c.enableInterruptsDelayed(); return 4 } // EI

	// 0xCB is intercepted in Step() before mainTable is consulted; this entry
	// only guards against a nil function value if the table is ever indexed
	// directly (e.g. from a disassembler or test).
	mainTable[0xCB] = func(c *CPU) int { return 4 }
}

// buildIllegalOpcodes wires the 11 byte values the Sharp LR35902 never
// defines. Hitting one is fatal (spec.md §4.3): the table entry still
// returns a cycle count but flags the CPU so Step() reports a DecodeError.
func buildIllegalOpcodes() {
	for _, opcode := range []int{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD} {
		mainTable[opcode] = illegalOp
	}
}
