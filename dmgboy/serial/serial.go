// Package serial implements the DMG serial link (SB/SC) as an observable
// sink: every byte shifted out with the internal clock is appended to a
// circular buffer the host can inspect. This is the mechanism the Blargg
// test ROMs use to report "Passed"/"Failed" without any real link partner.
package serial

import (
	"log/slog"

	"github.com/pberg/dmgboy/addr"
	"github.com/pberg/dmgboy/bit"
)

// bufferSize is the capacity of the circular serial-out buffer (spec.md §6).
const bufferSize = 256

// Port is the minimal interface for a serial device connected to SB/SC.
// Implementations must only accept reads/writes to addr.SB and addr.SC.
type Port interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// Sink is the default Port: it completes transfers immediately (no link
// partner is ever connected) and appends the transmitted byte to a
// fixed-size circular buffer.
type Sink struct {
	irqHandler func()

	sb, sc byte

	buf   [bufferSize]byte
	count int // number of valid bytes currently in buf (caps at bufferSize)
	head  int // index of the oldest byte
}

// New creates a serial sink. irq is called whenever a transfer completes,
// and should be wired to request the Serial interrupt.
func New(irq func()) *Sink {
	s := &Sink{irqHandler: irq}
	s.Reset()
	return s
}

func (s *Sink) Reset() {
	s.sb = 0x00
	s.sc = 0x7E // bits 1-6 always read back as 1 on DMG
	s.count = 0
	s.head = 0
}

func (s *Sink) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		return s.sc | 0x7E
	default:
		return 0xFF
	}
}

func (s *Sink) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		s.maybeTransfer()
	}
}

// Tick is a no-op for the immediate sink: transfers complete synchronously
// on write. It exists so Sink satisfies Port alongside timed implementations.
func (s *Sink) Tick(cycles int) {}

func (s *Sink) maybeTransfer() {
	// A transfer starts when bit 7 (start) and bit 0 (internal clock) of SC
	// are both set; real hardware would shift bits in from the peer, but
	// with no peer connected the received byte is always 0xFF.
	if !bit.IsSet(7, s.sc) || !bit.IsSet(0, s.sc) {
		return
	}

	s.push(s.sb)
	slog.Debug("serial transfer", "byte", s.sb)

	s.sb = 0xFF
	s.sc = bit.Reset(7, s.sc)
	if s.irqHandler != nil {
		s.irqHandler()
	}
}

func (s *Sink) push(b byte) {
	idx := (s.head + s.count) % bufferSize
	if s.count == bufferSize {
		// buffer full: drop the oldest byte to make room
		idx = s.head
		s.head = (s.head + 1) % bufferSize
	} else {
		s.count++
	}
	s.buf[idx] = b
}

// Buffer returns the bytes transmitted so far, oldest first.
func (s *Sink) Buffer() []byte {
	out := make([]byte, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%bufferSize]
	}
	return out
}

// String returns the buffered bytes decoded as a string, for substring
// checks like the Blargg "Passed"/"Failed" markers.
func (s *Sink) String() string {
	return string(s.Buffer())
}
