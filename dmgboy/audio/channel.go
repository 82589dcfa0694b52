package audio

// lengthCounter is the length-timer unit shared by all four channels: when
// enabled it ticks down at 256Hz and disables the channel at zero. CH3's
// counter runs 0-256, the others 0-64 (spec.md §4.5's "composable sub-units,
// not a single flat channel struct" redesign note).
type lengthCounter struct {
	enabled bool
	counter uint16
	max     uint16
}

func (l *lengthCounter) tick(disable func()) {
	if l.enabled && l.counter > 0 {
		l.counter--
		if l.counter == 0 {
			disable()
		}
	}
}

// reload sets the counter, treating 0 as "full scale" (the NRx1 write
// already computed max-value before calling this).
func (l *lengthCounter) reload(value uint16) {
	l.counter = value
}

// envelopeUnit is the volume-envelope unit used by CH1/CH2/CH4: a pace
// counter that steps the channel's volume up or down at 64Hz until it hits
// 0 or 15, then latches.
type envelopeUnit struct {
	volume  uint8
	up      bool
	pace    uint8
	counter uint8
	latched bool
}

func (e *envelopeUnit) trigger() {
	e.latched = false
	if e.pace == 0 {
		e.counter = 8
	} else {
		e.counter = e.pace
	}
}

func (e *envelopeUnit) dacEnabled() bool {
	return e.volume > 0 || e.up
}

func (e *envelopeUnit) tick() {
	if e.latched {
		return
	}
	pace := e.pace
	if pace == 0 {
		pace = 8
	}
	if e.counter == 0 {
		e.counter = pace
	}
	e.counter--
	if e.counter > 0 {
		return
	}
	if e.up {
		if e.volume < 15 {
			e.volume++
			e.counter = pace
		} else {
			e.latched = true
			e.counter = 0
		}
	} else {
		if e.volume > 0 {
			e.volume--
			e.counter = pace
		} else {
			e.latched = true
			e.counter = 0
		}
	}
}

// sweepUnit is CH1's frequency-sweep unit: every `period` 128Hz ticks it
// shifts the shadow frequency by shadowFreq>>shift, up or down, disabling the
// channel on overflow past 2047.
type sweepUnit struct {
	period     uint8
	down       bool
	shift      uint8
	enabled    bool
	timer      uint8
	shadowFreq uint16
	negUsed    bool
}

// calculate computes the sweep target frequency without mutating state —
// used both for the periodic tick and the dummy trigger-time overflow check.
func (s *sweepUnit) calculate() (newFreq uint16, overflow bool) {
	change := s.shadowFreq >> s.shift
	if s.down {
		if change > s.shadowFreq {
			newFreq = 0
		} else {
			newFreq = s.shadowFreq - change
		}
	} else {
		newFreq = s.shadowFreq + change
	}
	return newFreq, newFreq > 2047
}

func (s *sweepUnit) trigger(period uint16) {
	s.shadowFreq = period
	s.enabled = s.period > 0 || s.shift > 0
	s.timer = s.period
	if s.timer == 0 {
		s.timer = 8
	}
	s.negUsed = false
}

var dutyPatterns = [4][8]int64{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

// squareChannel is the generator shared by CH1 and CH2; CH1 additionally
// carries a sweep unit (nil on CH2).
type squareChannel struct {
	length   lengthCounter
	envelope envelopeUnit
	sweep    *sweepUnit

	enabled    bool
	dacEnabled bool
	left       bool
	right      bool

	duty      uint8
	dutyStep  uint8
	period    uint16
	freqTimer int
}

func (c *squareChannel) periodCycles() int {
	period := 2048 - int(c.period&0x7FF)
	if period <= 0 {
		return 0
	}
	return period * 4
}

func (c *squareChannel) step(cycles int) int64 {
	period := c.periodCycles()
	if period == 0 {
		return 0
	}
	if c.freqTimer <= 0 {
		c.freqTimer = period
	}
	c.freqTimer -= cycles
	for c.freqTimer <= 0 {
		c.freqTimer += period
		c.dutyStep = (c.dutyStep + 1) & 0x7
	}

	if c.envelope.volume == 0 {
		return 0
	}
	level := int64(c.envelope.volume)
	if dutyPatterns[c.duty&0x3][c.dutyStep] == 0 {
		return -level
	}
	return level
}

// waveChannel is CH3: a 32-sample, 4-bit-per-sample waveform played back
// from the 16-byte wave RAM region.
type waveChannel struct {
	length lengthCounter

	enabled    bool
	dacEnabled bool
	left       bool
	right      bool

	volumeShift uint8 // 0=mute,1=100%,2=50%,3=25%
	period      uint16
	freqTimer   int
	waveIndex   uint8
	waveSample  uint8
	ram         [16]byte
}

func (c *waveChannel) periodCycles() int {
	period := 2048 - int(c.period&0x7FF)
	if period <= 0 {
		return 0
	}
	return period * 2
}

func (c *waveChannel) readSample(index uint8) uint8 {
	b := c.ram[index>>1]
	c.waveSample = b
	if index&1 == 0 {
		return b >> 4
	}
	return b & 0x0F
}

func (c *waveChannel) step(cycles int) int64 {
	period := c.periodCycles()
	if period == 0 {
		return 0
	}
	if c.freqTimer <= 0 {
		c.freqTimer = period
	}
	c.freqTimer -= cycles
	for c.freqTimer <= 0 {
		c.freqTimer += period
		c.waveIndex = (c.waveIndex + 1) & 0x1F
	}

	sample := int64(c.readSample(c.waveIndex)) - 8
	switch c.volumeShift & 0b11 {
	case 0:
		return 0
	case 1:
		return sample
	case 2:
		return sample / 2
	case 3:
		return sample / 4
	default:
		return sample
	}
}

var noiseDividers = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// noiseChannel is CH4: a 15- (or 7-)bit LFSR clocked at a rate derived from
// a divider and shift pair.
type noiseChannel struct {
	length   lengthCounter
	envelope envelopeUnit

	enabled    bool
	dacEnabled bool
	left       bool
	right      bool

	shift       uint8
	use7bitLFSR bool
	divider     uint8
	lfsr        uint16
	noiseTimer  int
}

func (c *noiseChannel) periodCycles() int {
	div := noiseDividers[c.divider&0x7]
	period := div << c.shift
	if period <= 0 {
		return 0
	}
	return period
}

func (c *noiseChannel) step(cycles int) int64 {
	period := c.periodCycles()
	if period == 0 {
		return 0
	}
	if c.lfsr == 0 {
		c.lfsr = 0x7FFF
	}
	if c.noiseTimer <= 0 {
		c.noiseTimer = period
	}
	c.noiseTimer -= cycles
	for c.noiseTimer <= 0 {
		c.noiseTimer += period
		feedback := (c.lfsr & 1) ^ ((c.lfsr >> 1) & 1)
		c.lfsr = (c.lfsr >> 1) | (feedback << 14)
		if c.use7bitLFSR {
			c.lfsr = (c.lfsr &^ (1 << 6)) | (feedback << 6)
		}
	}

	if c.envelope.volume == 0 {
		return 0
	}
	level := int64(c.envelope.volume)
	if c.lfsr&1 == 1 {
		return -level
	}
	return level
}
