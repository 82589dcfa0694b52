package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDIVIncrementsWithSystemCounter(t *testing.T) {
	timer := &Timer{}
	timer.Tick(256) // one full DIV increment is every 256 T-cycles
	assert.Equal(t, byte(1), timer.Read(0xFF04))
}

func TestTimerWriteToDIVResetsCounter(t *testing.T) {
	timer := &Timer{}
	timer.Tick(512)
	timer.Write(0xFF04, 0xFF) // any write resets, value written is ignored
	assert.Equal(t, byte(0), timer.Read(0xFF04))
}

func TestTimerTIMAIncrementsAtSelectedRate(t *testing.T) {
	timer := &Timer{}
	timer.Write(0xFF07, 0x05) // enabled, rate select 01 -> bit 3 (262144Hz, every 16 cycles)
	timer.Tick(16)
	assert.Equal(t, byte(1), timer.Read(0xFF05))
}

func TestTimerOverflowReloadsFromTMAAfterDelayAndRaisesIRQ(t *testing.T) {
	var fired bool
	timer := &Timer{RequestTimerInterrupt: func() { fired = true }}
	timer.Write(0xFF06, 0x7F) // TMA
	timer.Write(0xFF07, 0x05)
	timer.tima = 0xFF

	timer.Tick(16) // crosses the falling edge, tima overflows to 0, 4-cycle delay starts
	require.Equal(t, byte(0), timer.Read(0xFF05))
	assert.False(t, fired)

	timer.Tick(4) // delay elapses, tima reloads and the IRQ is queued
	assert.Equal(t, byte(0x7F), timer.Read(0xFF05))

	timer.Tick(0) // the queued IRQ actually fires at the top of the next Tick
	assert.True(t, fired)
}

func TestTimerTACDisabledStopsTIMA(t *testing.T) {
	timer := &Timer{}
	timer.Write(0xFF07, 0x00) // disabled
	timer.Tick(1024)
	assert.Equal(t, byte(0), timer.Read(0xFF05))
}
