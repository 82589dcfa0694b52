package cpu

import (
	"testing"

	"github.com/pberg/dmgboy/addr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mem    [0x10000]byte
	fetchPCs []uint16
}

func (b *fakeBus) Read(address uint16) byte         { return b.mem[address] }
func (b *fakeBus) Write(address uint16, value byte) { b.mem[address] = value }
func (b *fakeBus) NotifyFetch(pc uint16)             { b.fetchPCs = append(b.fetchPCs, pc) }

func newTestCPU() (*CPU, *fakeBus) {
	bus := &fakeBus{}
	c := New(bus)
	return c, bus
}

func loadAt(bus *fakeBus, pc uint16, bytes ...byte) {
	for i, b := range bytes {
		bus.mem[pc+uint16(i)] = b
	}
}

func TestNOPConsumesFourCycles(t *testing.T) {
	c, bus := newTestCPU()
	loadAt(bus, 0, 0x00)
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(1), c.PC())
}

func TestLDBNImmediate(t *testing.T) {
	c, bus := newTestCPU()
	loadAt(bus, 0, 0x06, 0x42) // LD B,n
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 8, cycles)
	assert.Equal(t, byte(0x42), c.b)
}

func TestLDRRCopiesRegister(t *testing.T) {
	c, bus := newTestCPU()
	c.b = 0x99
	loadAt(bus, 0, 0x41) // LD B,C (0x40=LD B,B, 0x41=LD B,C)
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, c.c, c.b)
}

func TestINCRegisterSetsHalfCarry(t *testing.T) {
	c, bus := newTestCPU()
	c.b = 0x0F
	loadAt(bus, 0, 0x04) // INC B
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), c.b)
	assert.True(t, c.flag(flagH))
	assert.False(t, c.flag(flagZ))
}

func TestDECRegisterToZeroSetsZeroFlag(t *testing.T) {
	c, bus := newTestCPU()
	c.b = 1
	loadAt(bus, 0, 0x05) // DEC B
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0), c.b)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagN))
}

func TestINCMemoryAtHL(t *testing.T) {
	c, bus := newTestCPU()
	c.setHL(0xC000)
	bus.mem[0xC000] = 0x7F
	loadAt(bus, 0, 0x34) // INC (HL)
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 12, cycles)
	assert.Equal(t, byte(0x80), bus.mem[0xC000])
}

func TestADDAWithCarryAndHalfCarry(t *testing.T) {
	c, bus := newTestCPU()
	c.a = 0xFF
	c.b = 0x01
	loadAt(bus, 0, 0x80) // ADD A,B
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0), c.a)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagC))
	assert.True(t, c.flag(flagH))
}

func TestCPDoesNotModifyAccumulator(t *testing.T) {
	c, bus := newTestCPU()
	c.a = 0x10
	c.b = 0x10
	loadAt(bus, 0, 0xB8) // CP B
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), c.a)
	assert.True(t, c.flag(flagZ))
}

func TestLDBCNNLoads16BitImmediate(t *testing.T) {
	c, bus := newTestCPU()
	loadAt(bus, 0, 0x01, 0x34, 0x12) // LD BC,0x1234
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 12, cycles)
	assert.Equal(t, uint16(0x1234), c.bc())
}

func TestPushPopRoundTrips(t *testing.T) {
	c, bus := newTestCPU()
	c.SetSP(0xFFFE)
	c.setBC(0xBEEF)
	loadAt(bus, 0, 0xC5, 0xD1) // PUSH BC; POP DE
	_, err := c.Step()
	require.NoError(t, err)
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), c.de())
	assert.Equal(t, uint16(0xFFFE), c.SP())
}

func TestJRUnconditionalBranchesBackward(t *testing.T) {
	c, bus := newTestCPU()
	c.SetPC(0x10)
	loadAt(bus, 0x10, 0x18, 0xFE) // JR -2
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 12, cycles)
	assert.Equal(t, uint16(0x10), c.PC())
}

func TestJPConditionalNotTakenStillAdvancesPastOperand(t *testing.T) {
	c, bus := newTestCPU()
	c.setFlag(flagZ)
	loadAt(bus, 0, 0xC2, 0x00, 0x20) // JP NZ,0x2000 (Z set, so NZ false)
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 12, cycles)
	assert.Equal(t, uint16(3), c.PC())
}

func TestCallAndRetRoundTrip(t *testing.T) {
	c, bus := newTestCPU()
	c.SetSP(0xFFFE)
	loadAt(bus, 0, 0xCD, 0x00, 0x30) // CALL 0x3000
	bus.mem[0x3000] = 0xC9          // RET
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3000), c.PC())

	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), c.PC())
}

func TestRSTPushesReturnAddressAndJumps(t *testing.T) {
	c, bus := newTestCPU()
	c.SetSP(0xFFFE)
	c.SetPC(0x150)
	loadAt(bus, 0x150, 0xFF) // RST 38h
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x38), c.PC())
	assert.Equal(t, uint16(0x151), c.popStack())
}

func TestCBPrefixedBitTest(t *testing.T) {
	c, bus := newTestCPU()
	c.b = 0x80
	loadAt(bus, 0, 0xCB, 0x78) // BIT 7,B
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 8, cycles)
	assert.False(t, c.flag(flagZ))
}

func TestCBPrefixedResOnMemoryCostsSixteen(t *testing.T) {
	c, bus := newTestCPU()
	c.setHL(0xC000)
	bus.mem[0xC000] = 0xFF
	loadAt(bus, 0, 0xCB, 0x86) // RES 0,(HL)
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 16, cycles)
	assert.Equal(t, byte(0xFE), bus.mem[0xC000])
}

func TestIllegalOpcodeReturnsDecodeError(t *testing.T) {
	c, bus := newTestCPU()
	loadAt(bus, 0, 0xD3)
	_, err := c.Step()
	require.Error(t, err)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, byte(0xD3), decodeErr.Opcode)
}

func TestEIDelaysInterruptEnableByOneInstruction(t *testing.T) {
	c, bus := newTestCPU()
	loadAt(bus, 0, 0xFB, 0x00, 0x00) // EI; NOP; NOP
	_, err := c.Step()               // EI
	require.NoError(t, err)
	assert.False(t, c.IME())

	_, err = c.Step() // first NOP after EI: IME still pending
	require.NoError(t, err)
	assert.True(t, c.IME())
}

func TestHaltWakesOnPendingInterruptEvenWithIMEDisabled(t *testing.T) {
	c, bus := newTestCPU()
	loadAt(bus, 0, 0x76) // HALT
	bus.Write(addr.IE, byte(addr.VBlankInterrupt))

	_, err := c.Step() // nothing pending yet: the CPU enters HALT
	require.NoError(t, err)
	require.True(t, c.Halted())

	bus.Write(addr.IF, byte(addr.VBlankInterrupt))
	_, err = c.Step() // IE&IF now non-zero: the CPU wakes even though IME is off
	require.NoError(t, err)
	assert.False(t, c.Halted())
}

func TestInterruptDispatchPushesPCAndJumpsToVector(t *testing.T) {
	c, bus := newTestCPU()
	c.SetSP(0xFFFE)
	c.SetPC(0x100)
	c.ime = true
	bus.Write(addr.IE, byte(addr.VBlankInterrupt))
	bus.Write(addr.IF, byte(addr.VBlankInterrupt))

	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x40), c.PC())
	assert.False(t, c.IME())
	assert.Equal(t, uint16(0x100), c.popStack())
}

func TestDAACorrectsAfterBCDAddition(t *testing.T) {
	c, bus := newTestCPU()
	c.a = 0x45
	c.b = 0x38
	loadAt(bus, 0, 0x80, 0x27) // ADD A,B; DAA -> 0x45 + 0x38 = 0x7D, BCD should read 0x83
	_, err := c.Step()
	require.NoError(t, err)
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x83), c.a)
}
