package dmgboy

import (
	"testing"

	"github.com/pberg/dmgboy/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildROM returns a minimal cartridge image: a valid header (NoMBC, no
// RAM) with the given entry-point code placed at 0x0100.
func buildROM(code ...byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], code)
	copy(rom[0x0134:0x0144], []byte("TESTROM"))
	rom[0x0147] = 0x00 // NoMBC, no RAM/battery
	rom[0x0148] = 0x00
	rom[0x0149] = 0x00
	return rom
}

func TestNewWithROMRejectsUndersizedImage(t *testing.T) {
	_, err := NewWithROM([]byte{1, 2, 3})
	require.Error(t, err)
	var loadErr *memory.LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestStepFrameRunsExactlyOneFramesWorthOfCycles(t *testing.T) {
	rom := buildROM(0x18, 0xFE) // JR -2: infinite loop, keeps StepFrame busy until budget exhausted
	e, err := NewWithROM(rom)
	require.NoError(t, err)

	cycles, err := e.StepFrame()
	require.NoError(t, err)
	assert.Equal(t, 70224, cycles)
}

func TestStepFrameStopsEarlyOnIllegalOpcode(t *testing.T) {
	rom := buildROM(0xD3) // illegal
	e, err := NewWithROM(rom)
	require.NoError(t, err)

	_, err = e.StepFrame()
	require.Error(t, err)
	var decodeErr *FatalDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, byte(0xD3), decodeErr.Opcode)
}

func TestPressRequestsJoypadInterruptOnNewPress(t *testing.T) {
	e := New()
	e.mmu.Write(0xFFFF, 0x10) // enable the Joypad interrupt in IE
	e.mmu.Write(0xFF00, 0x20) // select dpad row
	e.Press(memory.ButtonDown)
	assert.NotZero(t, e.PendingInterrupts()&0x10)
}

func TestFrameBufferStartsBlank(t *testing.T) {
	e := New()
	fb := e.FrameBuffer()
	require.NotNil(t, fb)
	for i := 0; i < 10; i++ {
		assert.Equal(t, uint8(0), fb.Pixels[i])
	}
}

func TestDrainAudioZeroPadsBeforeAnySamplesProduced(t *testing.T) {
	e := New()
	samples := e.DrainAudio(16)
	assert.Len(t, samples, 32)
}

func TestSerialBufferCapturesBlarggStyleTransfer(t *testing.T) {
	// LD A,'P' ; LDH (SC-equivalent via direct writes) is easiest done
	// through direct MMU pokes here, since synthesizing the full serial
	// handshake in CPU opcodes is exercised by memory/serial tests already.
	e := New()
	e.mmu.Write(0xFF01, 'P')
	e.mmu.Write(0xFF02, 0x81)
	assert.Equal(t, []byte{'P'}, e.SerialBuffer())
}

func TestWithBootROMResetsEntryPointToZero(t *testing.T) {
	e := New()
	boot := make([]byte, 256)
	boot[0] = 0x00 // NOP
	require.NoError(t, e.WithBootROM(boot))
	assert.Equal(t, uint16(0), e.cpu.PC())
}

func TestCartridgeMetadataExposesTitle(t *testing.T) {
	rom := buildROM(0x00)
	e, err := NewWithROM(rom)
	require.NoError(t, err)
	assert.Equal(t, "TESTROM", e.Cartridge().Title)
}
