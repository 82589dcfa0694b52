// Package audio implements the DMG's four-channel APU: two square
// generators (one with frequency sweep), a programmable wave channel, and a
// noise generator, mixed through NR50/NR51 into a resampled PCM stream.
package audio

import (
	"github.com/pberg/dmgboy/addr"
	"github.com/pberg/dmgboy/bit"
	"github.com/pberg/dmgboy/timing"
)

const cyclesPerStep = 8192 // 512Hz frame sequencer tick, in CPU T-cycles

// APU is the Audio Processing Unit. Each channel is its own small struct
// built from the shared lengthCounter/envelopeUnit/sweepUnit pieces in
// channel.go, rather than one flat struct carrying every channel's fields.
type APU struct {
	enabled bool

	square1 squareChannel
	sweep1  sweepUnit
	square2 squareChannel
	wave    waveChannel
	noise   noiseChannel

	vinLeft, vinRight bool
	volLeft, volRight uint8

	mixLeftAcc     int64
	mixRightAcc    int64
	mixAccumCycles int
	pcmBuffer      []int16
	pcmCursor      int
	pcmCycleAcc    float64
	pcmPeriod      float64
	hostSampleRate int

	step   int
	cycles int

	nr10, nr11, nr12, nr13, nr14 uint8
	nr21, nr22, nr23, nr24       uint8
	nr30, nr31, nr32, nr33, nr34 uint8
	nr41, nr42, nr43, nr44       uint8
	nr50, nr51, nr52             uint8
}

func New() *APU {
	a := &APU{hostSampleRate: 44100}
	a.square1.sweep = &a.sweep1
	a.pcmPeriod = float64(timing.CPUFrequency) / float64(a.hostSampleRate)
	return a
}

// Tick advances every channel generator and the frame sequencer by `cycles`
// CPU T-cycles, accumulating mixed samples for GetSamples.
func (a *APU) Tick(cycles int) {
	if !a.enabled {
		return
	}

	a.tickGenerators(cycles)

	a.cycles += cycles
	for a.cycles >= cyclesPerStep {
		a.cycles -= cyclesPerStep
		a.tickSequence()
	}
}

func (a *APU) tickGenerators(cycles int) {
	if cycles <= 0 {
		return
	}

	var left, right int64
	add := func(level int64, ch interface{ pan() (bool, bool) }) {
		if level == 0 {
			return
		}
		l, r := ch.pan()
		if l {
			left += level
		}
		if r {
			right += level
		}
	}

	if a.square1.enabled && a.square1.dacEnabled {
		add(a.square1.step(cycles), &a.square1)
	}
	if a.square2.enabled && a.square2.dacEnabled {
		add(a.square2.step(cycles), &a.square2)
	}
	if a.wave.enabled && a.wave.dacEnabled {
		add(a.wave.step(cycles), &a.wave)
	}
	if a.noise.enabled && a.noise.dacEnabled {
		add(a.noise.step(cycles), &a.noise)
	}

	a.mixLeftAcc += left * int64(cycles)
	a.mixRightAcc += right * int64(cycles)
	a.mixAccumCycles += cycles
	a.flushMix(cycles)
}

func (c *squareChannel) pan() (bool, bool) { return c.left, c.right }
func (c *waveChannel) pan() (bool, bool)   { return c.left, c.right }
func (c *noiseChannel) pan() (bool, bool)  { return c.left, c.right }

func (a *APU) flushMix(cycles int) {
	if a.hostSampleRate <= 0 || a.pcmPeriod == 0 {
		return
	}
	a.pcmCycleAcc += float64(cycles)
	if a.pcmCycleAcc < a.pcmPeriod {
		return
	}
	a.pcmCycleAcc -= a.pcmPeriod

	left, right := a.exportSample()
	a.pcmBuffer = append(a.pcmBuffer, left, right)
}

const sampleScale = 32767.0 / 15.0

func (a *APU) exportSample() (int16, int16) {
	if a.mixAccumCycles == 0 {
		return 0, 0
	}
	leftAvg := float64(a.mixLeftAcc) / float64(a.mixAccumCycles)
	rightAvg := float64(a.mixRightAcc) / float64(a.mixAccumCycles)
	a.mixLeftAcc, a.mixRightAcc, a.mixAccumCycles = 0, 0, 0
	return scaleToPCM(leftAvg, a.volLeft), scaleToPCM(rightAvg, a.volRight)
}

func scaleToPCM(avg float64, masterVol uint8) int16 {
	gain := float64(masterVol+1) / 8.0
	v := avg * gain * sampleScale
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// tickSequence runs one 512Hz frame-sequencer step; length/sweep/envelope
// fire on the schedule documented in spec.md §4.5.
func (a *APU) tickSequence() {
	switch a.step {
	case 0, 4:
		a.tickLength()
	case 2, 6:
		a.tickLength()
		a.tickSweep()
	case 7:
		a.tickEnvelope()
	}
	a.step = (a.step + 1) % 8
}

func (a *APU) tickLength() {
	a.square1.length.tick(func() { a.square1.enabled = false })
	a.square2.length.tick(func() { a.square2.enabled = false })
	a.wave.length.tick(func() { a.wave.enabled = false })
	a.noise.length.tick(func() { a.noise.enabled = false })
}

func (a *APU) tickSweep() {
	s := &a.sweep1
	if !s.enabled {
		return
	}
	s.timer--
	if s.timer > 0 {
		return
	}
	s.timer = s.period
	if s.timer == 0 {
		s.timer = 8
	}
	if s.period == 0 {
		return
	}

	newFreq, overflow := s.calculate()
	if overflow {
		a.square1.enabled = false
		return
	}
	if s.down {
		s.negUsed = true
	}
	if s.shift == 0 {
		return
	}
	s.shadowFreq = newFreq
	a.square1.period = newFreq
	a.nr14 = (a.nr14 & 0b1111_1000) | uint8((newFreq>>8)&0b111)
	a.nr13 = uint8(newFreq)

	if _, overflow := s.calculate(); overflow {
		a.square1.enabled = false
	}
}

func (a *APU) tickEnvelope() {
	if a.square1.dacEnabled {
		a.square1.envelope.tick()
	}
	if a.square2.dacEnabled {
		a.square2.envelope.tick()
	}
	if a.noise.dacEnabled {
		a.noise.envelope.tick()
	}
}

func (a *APU) waveRAMLocked() bool {
	return a.enabled && a.wave.enabled && a.wave.dacEnabled
}

// ReadRegister returns the masked register value; write-only bits read 1,
// write-only registers read 0xFF.
func (a *APU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.NR10:
		return a.nr10 | 0b1000_0000
	case addr.NR11:
		return a.nr11 | 0b0011_1111
	case addr.NR12:
		return a.nr12
	case addr.NR13:
		return 0xFF
	case addr.NR14:
		return a.nr14 | 0b1011_1111
	case addr.NR21:
		return a.nr21 | 0b0011_1111
	case addr.NR22:
		return a.nr22
	case addr.NR23:
		return 0xFF
	case addr.NR24:
		return a.nr24 | 0b1011_1111
	case addr.NR30:
		return a.nr30 | 0b0111_1111
	case addr.NR31:
		return 0xFF
	case addr.NR32:
		return a.nr32 | 0b1001_1111
	case addr.NR33:
		return 0xFF
	case addr.NR34:
		return a.nr34 | 0b1011_1111
	case addr.NR41:
		return 0xFF
	case addr.NR42:
		return a.nr42
	case addr.NR43:
		return a.nr43
	case addr.NR44:
		return a.nr44 | 0b1011_1111
	case addr.NR50:
		return a.nr50
	case addr.NR51:
		return a.nr51
	case addr.NR52:
		status := uint8(0b0111_0000)
		if a.enabled {
			status = bit.Set(7, status)
		}
		if a.square1.enabled {
			status = bit.Set(0, status)
		}
		if a.square2.enabled {
			status = bit.Set(1, status)
		}
		if a.wave.enabled {
			status = bit.Set(2, status)
		}
		if a.noise.enabled {
			status = bit.Set(3, status)
		}
		return status
	}
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		if a.waveRAMLocked() {
			return a.wave.waveSample
		}
		return a.wave.ram[address-addr.WaveRAMStart]
	}
	return 0xFF
}

// WriteRegister stores the raw register byte (when the APU is powered, or
// the register is NR52/wave RAM) and re-derives channel state from it.
func (a *APU) WriteRegister(address uint16, value uint8) {
	isWaveRAM := address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd
	wasEnabled := a.enabled

	if !a.enabled && address != addr.NR52 && !isWaveRAM {
		return
	}

	switch address {
	case addr.NR10:
		a.nr10 = value
	case addr.NR11:
		a.nr11 = value
		a.square1.length.reload(64 - uint16(bit.ExtractBits(value, 5, 0)))
	case addr.NR12:
		a.nr12 = value
		a.square1.envelope.trigger()
	case addr.NR13:
		a.nr13 = value
	case addr.NR14:
		a.nr14 = value
	case addr.NR21:
		a.nr21 = value
		a.square2.length.reload(64 - uint16(bit.ExtractBits(value, 5, 0)))
	case addr.NR22:
		a.nr22 = value
		a.square2.envelope.trigger()
	case addr.NR23:
		a.nr23 = value
	case addr.NR24:
		a.nr24 = value
	case addr.NR30:
		a.nr30 = value
	case addr.NR31:
		a.nr31 = value
		a.wave.length.reload(256 - uint16(value))
	case addr.NR32:
		a.nr32 = value
	case addr.NR33:
		a.nr33 = value
	case addr.NR34:
		a.nr34 = value
	case addr.NR41:
		a.nr41 = value
		a.noise.length.reload(64 - uint16(bit.ExtractBits(value, 5, 0)))
	case addr.NR42:
		a.nr42 = value
		a.noise.envelope.trigger()
	case addr.NR43:
		a.nr43 = value
	case addr.NR44:
		a.nr44 = value
	case addr.NR50:
		a.nr50 = value
	case addr.NR51:
		a.nr51 = value
	case addr.NR52:
		a.nr52 = value
	}

	if isWaveRAM {
		offset := address - addr.WaveRAMStart
		if a.waveRAMLocked() {
			a.wave.ram[a.wave.waveIndex>>1] = value
			a.wave.waveSample = value
		} else {
			a.wave.ram[offset] = value
		}
	}

	a.mapRegistersToState()

	if address == addr.NR52 && !wasEnabled && a.enabled {
		a.powerOn()
	}
}

// powerOn resets the frame sequencer and each channel's running phase to
// their power-on state (spec.md §4.5): the next tickSequence call lands on
// step 0, duty generators restart from the first step, and the wave
// channel's sample pointer restarts from the beginning of wave RAM (the RAM
// contents themselves persist across a power cycle on real hardware).
// tickSequence switches on a.step before advancing it, so the field holds
// the step about to run, not the one just completed — setting it to 0
// directly (rather than 7) is what makes the next tick step 0.
func (a *APU) powerOn() {
	a.step = 0
	a.cycles = 0
	a.square1.dutyStep = 0
	a.square2.dutyStep = 0
	a.wave.waveIndex = 0
	a.wave.waveSample = 0
}

// handleLengthEnableTransition reproduces the documented obscure behavior
// around the second-half-of-period extra length clock (gbdev.io/pandocs
// Audio_details.html#obscure-behavior).
func (a *APU) handleLengthEnableTransition(l *lengthCounter, prevEnabled bool, lengthBefore uint16, triggered bool, maxLength uint16, disable func()) {
	lengthWasZero := lengthBefore == 0
	clockOnEnable := !prevEnabled && l.enabled && a.step%2 == 1 && lengthBefore > 0

	if triggered && (lengthWasZero || (clockOnEnable && lengthBefore == 1)) {
		l.counter = maxLength
	}

	if !l.enabled {
		return
	}

	forceClock := lengthWasZero && triggered && l.counter > 0
	if !forceClock && prevEnabled {
		return
	}

	if a.step%2 == 1 && l.counter > 0 {
		l.counter--
		if l.counter == 0 {
			disable()
		}
	}
}

func (a *APU) mapRegistersToState() {
	a.enabled = bit.IsSet(7, a.nr52)
	if !a.enabled {
		a.nr10, a.nr11, a.nr12, a.nr13, a.nr14 = 0, 0, 0, 0, 0
		a.nr21, a.nr22, a.nr23, a.nr24 = 0, 0, 0, 0
		a.nr30, a.nr31, a.nr32, a.nr33, a.nr34 = 0, 0, 0, 0, 0
		a.nr41, a.nr42, a.nr43, a.nr44 = 0, 0, 0, 0
		a.nr50, a.nr51 = 0, 0
		a.square1.enabled, a.square2.enabled, a.wave.enabled, a.noise.enabled = false, false, false, false
	}

	a.square1.right = bit.IsSet(0, a.nr51)
	a.square1.left = bit.IsSet(4, a.nr51)
	a.square2.right = bit.IsSet(1, a.nr51)
	a.square2.left = bit.IsSet(5, a.nr51)
	a.wave.right = bit.IsSet(2, a.nr51)
	a.wave.left = bit.IsSet(6, a.nr51)
	a.noise.right = bit.IsSet(3, a.nr51)
	a.noise.left = bit.IsSet(7, a.nr51)

	a.vinLeft, a.vinRight = bit.IsSet(7, a.nr50), bit.IsSet(3, a.nr50)
	a.volLeft, a.volRight = bit.ExtractBits(a.nr50, 6, 4), bit.ExtractBits(a.nr50, 2, 0)

	a.mapSquare1()
	a.mapSquare2()
	a.mapWave()
	a.mapNoise()

	if !a.square1.dacEnabled {
		a.square1.enabled = false
	}
	if !a.square2.dacEnabled {
		a.square2.enabled = false
	}
	if !a.wave.dacEnabled {
		a.wave.enabled = false
	}
	if !a.noise.dacEnabled {
		a.noise.enabled = false
	}
}

func (a *APU) mapSquare1() {
	s := &a.sweep1
	prevDown := s.down
	s.period = bit.ExtractBits(a.nr10, 6, 4)
	s.down = bit.IsSet(3, a.nr10)
	s.shift = bit.ExtractBits(a.nr10, 2, 0)
	if !s.down && prevDown && s.negUsed && (s.period > 0 || s.shift > 0) {
		a.square1.enabled = false
	}

	a.square1.duty = bit.ExtractBits(a.nr11, 7, 6)

	a.square1.envelope.volume = bit.ExtractBits(a.nr12, 7, 4)
	a.square1.envelope.up = bit.IsSet(3, a.nr12)
	a.square1.envelope.pace = bit.ExtractBits(a.nr12, 2, 0)
	a.square1.dacEnabled = a.square1.envelope.dacEnabled()

	a.square1.period = bit.Combine(a.nr14&0b111, a.nr13)

	prevLenEnable := a.square1.length.enabled
	lengthBefore := a.square1.length.counter
	triggered := bit.IsSet(7, a.nr14)
	a.square1.length.enabled = bit.IsSet(6, a.nr14)

	if triggered {
		if a.square1.dacEnabled {
			a.square1.enabled = true
		}
		a.square1.envelope.trigger()
		a.square1.dutyStep = 0
		a.square1.freqTimer = a.square1.periodCycles()
		s.trigger(a.square1.period)

		if s.shift != 0 {
			if s.down {
				s.negUsed = true
			}
			if _, overflow := s.calculate(); overflow {
				a.square1.enabled = false
			}
		}
		a.nr14 = bit.Reset(7, a.nr14)
	}
	a.handleLengthEnableTransition(&a.square1.length, prevLenEnable, lengthBefore, triggered, 64, func() { a.square1.enabled = false })
}

func (a *APU) mapSquare2() {
	a.square2.duty = bit.ExtractBits(a.nr21, 7, 6)

	a.square2.envelope.volume = bit.ExtractBits(a.nr22, 7, 4)
	a.square2.envelope.up = bit.IsSet(3, a.nr22)
	a.square2.envelope.pace = bit.ExtractBits(a.nr22, 2, 0)
	a.square2.dacEnabled = a.square2.envelope.dacEnabled()

	a.square2.period = bit.Combine(a.nr24&0b111, a.nr23)

	prevLenEnable := a.square2.length.enabled
	lengthBefore := a.square2.length.counter
	triggered := bit.IsSet(7, a.nr24)
	a.square2.length.enabled = bit.IsSet(6, a.nr24)

	if triggered {
		if a.square2.dacEnabled {
			a.square2.enabled = true
		}
		a.square2.envelope.trigger()
		a.square2.dutyStep = 0
		a.square2.freqTimer = a.square2.periodCycles()
		a.nr24 = bit.Reset(7, a.nr24)
	}
	a.handleLengthEnableTransition(&a.square2.length, prevLenEnable, lengthBefore, triggered, 64, func() { a.square2.enabled = false })
}

func (a *APU) mapWave() {
	a.wave.dacEnabled = bit.IsSet(7, a.nr30)
	a.wave.volumeShift = bit.ExtractBits(a.nr32, 6, 5)
	a.wave.period = bit.Combine(a.nr34&0b111, a.nr33)

	prevLenEnable := a.wave.length.enabled
	lengthBefore := a.wave.length.counter
	triggered := bit.IsSet(7, a.nr34)
	a.wave.length.enabled = bit.IsSet(6, a.nr34)

	if triggered {
		if a.wave.dacEnabled {
			a.wave.enabled = true
		}
		a.wave.freqTimer = a.wave.periodCycles()
		a.wave.waveIndex = 0
		a.wave.waveSample = a.wave.ram[0]
		a.nr34 = bit.Reset(7, a.nr34)
	}
	a.handleLengthEnableTransition(&a.wave.length, prevLenEnable, lengthBefore, triggered, 256, func() { a.wave.enabled = false })
}

func (a *APU) mapNoise() {
	a.noise.envelope.volume = bit.ExtractBits(a.nr42, 7, 4)
	a.noise.envelope.up = bit.IsSet(3, a.nr42)
	a.noise.envelope.pace = bit.ExtractBits(a.nr42, 2, 0)
	a.noise.dacEnabled = a.noise.envelope.dacEnabled()

	a.noise.shift = bit.ExtractBits(a.nr43, 7, 4)
	a.noise.use7bitLFSR = bit.IsSet(3, a.nr43)
	a.noise.divider = bit.ExtractBits(a.nr43, 2, 0)

	prevLenEnable := a.noise.length.enabled
	lengthBefore := a.noise.length.counter
	triggered := bit.IsSet(7, a.nr44)
	a.noise.length.enabled = bit.IsSet(6, a.nr44)

	if triggered {
		if a.noise.dacEnabled {
			a.noise.enabled = true
		}
		a.noise.envelope.trigger()
		a.noise.lfsr = 0x7FFF
		a.noise.noiseTimer = a.noise.periodCycles()
		a.nr44 = bit.Reset(7, a.nr44)
	}
	a.handleLengthEnableTransition(&a.noise.length, prevLenEnable, lengthBefore, triggered, 64, func() { a.noise.enabled = false })
}

// GetSamples returns `count` interleaved stereo samples, zero-padding if the
// producer hasn't kept up (spec.md §4.5: "audio is not hard-real-time").
func (a *APU) GetSamples(count int) []int16 {
	if count <= 0 {
		return nil
	}
	needed := count * 2
	available := len(a.pcmBuffer) - a.pcmCursor
	if available <= 0 {
		return make([]int16, needed)
	}

	out := make([]int16, needed)
	toCopy := min(available, needed)
	copy(out, a.pcmBuffer[a.pcmCursor:a.pcmCursor+toCopy])
	a.pcmCursor += toCopy

	if a.pcmCursor >= len(a.pcmBuffer) {
		a.pcmBuffer = a.pcmBuffer[:0]
		a.pcmCursor = 0
	}
	return out
}

// ChannelStatus reports whether each of the four channels is currently
// producing sound (NR52 bits 0-3).
func (a *APU) ChannelStatus() (ch1, ch2, ch3, ch4 bool) {
	return a.square1.enabled, a.square2.enabled, a.wave.enabled, a.noise.enabled
}
