package audio

import (
	"testing"

	"github.com/pberg/dmgboy/addr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func powerOn(a *APU) {
	a.WriteRegister(addr.NR52, 0x80)
}

func TestAPUPoweredOffIgnoresRegisterWrites(t *testing.T) {
	a := New()
	a.WriteRegister(addr.NR11, 0xFF)
	assert.Equal(t, uint8(0), a.nr11)
}

func TestAPUPowerOnEnablesRegisterWrites(t *testing.T) {
	a := New()
	powerOn(a)
	a.WriteRegister(addr.NR11, 0b1000_0000)
	assert.Equal(t, uint8(0b1000_0000), a.nr11)
}

func TestAPUPowerOffClearsChannelRegisters(t *testing.T) {
	a := New()
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR52, 0x00)
	assert.Equal(t, uint8(0), a.nr12)
	assert.False(t, a.enabled)
}

func TestAPUSquare1TriggerEnablesChannelWhenDACOn(t *testing.T) {
	a := New()
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0) // volume 15, dac on
	a.WriteRegister(addr.NR14, 0x80) // trigger

	require.True(t, a.square1.dacEnabled)
	assert.True(t, a.square1.enabled)
}

func TestAPUSquare1TriggerWithZeroVolumeAndNoEnvelopeKeepsDACOff(t *testing.T) {
	a := New()
	powerOn(a)
	a.WriteRegister(addr.NR12, 0x00) // volume 0, envelope down => DAC off
	a.WriteRegister(addr.NR14, 0x80)

	assert.False(t, a.square1.dacEnabled)
	assert.False(t, a.square1.enabled)
}

func TestAPULengthCounterDisablesChannelAtZero(t *testing.T) {
	a := New()
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR11, 63) // length = 64-63 = 1
	a.WriteRegister(addr.NR14, 0xC0) // trigger + length enable

	require.True(t, a.square1.enabled)
	require.Equal(t, uint16(1), a.square1.length.counter)

	a.step = 0 // land on a length-clocking step
	a.tickLength()

	assert.False(t, a.square1.enabled)
}

func TestAPUPowerOnResetsFrameSequencerAndDutyPhase(t *testing.T) {
	a := New()
	powerOn(a)
	a.step = 5
	a.square1.dutyStep = 3
	a.square2.dutyStep = 6
	a.wave.waveIndex = 17
	a.wave.waveSample = 0x9

	a.WriteRegister(addr.NR52, 0x00) // power off
	a.WriteRegister(addr.NR52, 0x80) // power back on

	assert.Equal(t, 0, a.step)
	assert.Equal(t, uint8(0), a.square1.dutyStep)
	assert.Equal(t, uint8(0), a.square2.dutyStep)
	assert.Equal(t, uint8(0), a.wave.waveIndex)
	assert.Equal(t, uint8(0), a.wave.waveSample)
}

func TestAPUPowerOnDoesNotResetAlreadyPoweredChannel(t *testing.T) {
	a := New()
	powerOn(a)
	a.step = 5
	a.square1.dutyStep = 3

	a.WriteRegister(addr.NR11, 0x00) // ordinary write while already on

	assert.Equal(t, 5, a.step)
	assert.Equal(t, uint8(3), a.square1.dutyStep)
}

func TestAPUGetSamplesZeroPadsWhenStarved(t *testing.T) {
	a := New()
	samples := a.GetSamples(4)
	assert.Len(t, samples, 8)
	for _, s := range samples {
		assert.Equal(t, int16(0), s)
	}
}

func TestAPUSweepOverflowDisablesChannel(t *testing.T) {
	a := New()
	powerOn(a)
	a.WriteRegister(addr.NR12, 0xF0)        // volume 15, dac on
	a.WriteRegister(addr.NR10, 0b0001_0000) // period 1, shift 0: no overflow check at trigger
	a.WriteRegister(addr.NR13, 0xFF)
	a.WriteRegister(addr.NR14, 0x87) // trigger, upper freq bits 111
	require.True(t, a.square1.enabled)
	// shadow freq is 0x7FF; a sweep tick with shift=1 computes 0x7FF+0x3FF and overflows.
	a.WriteRegister(addr.NR10, 0b0001_0001) // period 1, shift 1
	a.sweep1.timer = 1
	a.tickSweep()

	assert.False(t, a.square1.enabled)
}

func TestAPUWaveChannelReadsHighNibbleFirst(t *testing.T) {
	w := waveChannel{}
	w.ram[0] = 0xA5
	assert.Equal(t, uint8(0xA), w.readSample(0))
	assert.Equal(t, uint8(0x5), w.readSample(1))
}

func TestAPUNoiseChannelLFSRAdvancesOnPeriodExpiry(t *testing.T) {
	n := noiseChannel{divider: 0, shift: 0}
	n.envelope.volume = 8
	n.lfsr = 0x7FFF
	before := n.lfsr
	n.step(8) // exactly one period (divider table[0]=8, shift 0)
	assert.NotEqual(t, before, n.lfsr)
}
