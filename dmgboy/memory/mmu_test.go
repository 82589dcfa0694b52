package memory

import (
	"testing"

	"github.com/pberg/dmgboy/addr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMUUnusableRegionReadsZero(t *testing.T) {
	m := New()
	assert.Equal(t, byte(0x00), m.Read(0xFEA0)) // unusable region
}

func TestMMUWRAMEchoesIntoEchoRegion(t *testing.T) {
	m := New()
	m.Write(0xC005, 0x42)
	assert.Equal(t, byte(0x42), m.Read(0xE005))
}

func TestMMUBootROMOverlaysLowMemoryUntilPC0100(t *testing.T) {
	m := New()
	boot := make([]byte, 256)
	boot[0] = 0xAA
	require.NoError(t, m.LoadBootROM(boot))

	assert.Equal(t, byte(0xAA), m.Read(0x0000))
	m.NotifyFetch(0x0100)
	assert.NotEqual(t, byte(0xAA), m.Read(0x0000))
}

func TestMMUWritingLYResetsItToZero(t *testing.T) {
	m := New()
	m.WritePPURegister(addr.LY, 100)
	m.Write(addr.LY, 0xFF) // CPU write always resets to 0
	assert.Equal(t, byte(0), m.Read(addr.LY))
}

func TestMMUOAMDMACopiesFromSourcePage(t *testing.T) {
	m := New()
	for i := 0; i < 0xA0; i++ {
		m.Write(0xC100+uint16(i), byte(i))
	}
	m.Write(addr.DMA, 0xC1)
	for i := 0; i < 0xA0; i++ {
		assert.Equal(t, byte(i), m.Read(0xFE00+uint16(i)))
	}
}

func TestMMUInterruptFlagUpperBitsAlwaysRead1(t *testing.T) {
	m := New()
	m.RequestInterrupt(addr.VBlankInterrupt)
	assert.Equal(t, byte(0xE0|0x01), m.Read(addr.IF))
}

func TestMMUWriteToUnusableRegionRaisesBusWarning(t *testing.T) {
	m := New()
	var gotAddr uint16
	var gotDetail string
	m.OnBusWarning = func(address uint16, detail string) {
		gotAddr = address
		gotDetail = detail
	}

	m.Write(0xFEA0, 0x42)

	assert.Equal(t, uint16(0xFEA0), gotAddr)
	assert.NotEmpty(t, gotDetail)
	assert.Equal(t, byte(0x00), m.Read(0xFEA0)) // still a no-op otherwise
}

func TestMMUWriteToUnusableRegionWithoutHookIsHarmless(t *testing.T) {
	m := New()
	assert.NotPanics(t, func() { m.Write(0xFEA0, 0x42) })
}
