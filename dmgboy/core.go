// Package dmgboy implements the core of a Nintendo Game Boy (DMG)
// emulator: CPU, PPU, APU, MMU with cartridge bank controllers, joypad,
// serial link, and timers. It has no host surface of its own — no
// windowing, audio device, or file loading — callers drive it by feeding
// ROM bytes to a constructor and calling StepFrame in their own loop.
package dmgboy

import (
	"log/slog"

	"github.com/pberg/dmgboy/addr"
	"github.com/pberg/dmgboy/cpu"
	"github.com/pberg/dmgboy/memory"
	"github.com/pberg/dmgboy/timing"
	"github.com/pberg/dmgboy/video"
)

// Emulator owns every DMG component and drives one frame at a time. The
// ownership hierarchy matches spec.md §3: Emulator -> CPU -> MMU ->
// {cartridge, PPU, APU, joypad, serial, timers, WRAM, HRAM, IE/IF}.
type Emulator struct {
	cpu *cpu.CPU
	mmu *memory.MMU
	ppu *video.PPU
}

// newEmulator wires an MMU into a full Emulator, routing the MMU's
// non-fatal bus anomalies through slog.Warn as a *BusWarning (spec.md §7's
// "optional trace event" — these never interrupt emulation).
func newEmulator(mmu *memory.MMU) *Emulator {
	mmu.OnBusWarning = func(address uint16, detail string) {
		w := &BusWarning{Address: address, Detail: detail}
		slog.Warn("bus warning", "address", address, "detail", detail, "err", w)
	}
	e := &Emulator{
		mmu: mmu,
		ppu: video.NewPPU(mmu),
	}
	e.cpu = cpu.New(mmu)
	return e
}

// New creates an Emulator with no cartridge inserted, useful for running
// a boot ROM alone or for component-level tests.
func New() *Emulator {
	return newEmulator(memory.New())
}

// NewWithROM creates an Emulator with the given cartridge image loaded.
// Execution starts at 0x0100 as if the boot ROM had already run, with SP at
// 0xFFFE; every other register keeps the zero-value CPU state (spec.md's Non-goals
// explicitly exclude exact power-on register values beyond what the
// Blargg test ROMs check, which do not depend on them).
func NewWithROM(romData []byte) (*Emulator, error) {
	cart, err := memory.NewCartridge(romData)
	if err != nil {
		return nil, err
	}
	e := newEmulator(memory.NewWithCartridge(cart))
	e.cpu.SetPC(0x0100)
	e.cpu.SetSP(0xFFFE)
	slog.Info("cartridge loaded", "title", cart.Title)
	return e, nil
}

// WithBootROM installs a 256-byte boot ROM that overlays 0x0000-0x00FF
// and resets the CPU's entry point to 0x0000 so the boot sequence actually
// runs (spec.md §6). Call it before the first StepFrame.
func (e *Emulator) WithBootROM(data []byte) error {
	if err := e.mmu.LoadBootROM(data); err != nil {
		return err
	}
	e.cpu.SetPC(0x0000)
	e.cpu.SetSP(0x0000)
	return nil
}

// StepFrame runs CPU/PPU/APU/timers/serial until at least one frame's worth
// of cycles (70224, spec.md §3) has elapsed, and returns the number of
// T-cycles actually run: the instruction that crosses 70224 runs to
// completion, so the count can exceed 70224 by up to that instruction's cost. It never self-paces: callers that want real-time
// playback derive their own limiter from the timing package's constants.
// An undefined opcode aborts the frame early and returns *FatalDecodeError;
// the emulator must not be stepped again afterward.
func (e *Emulator) StepFrame() (int, error) {
	ran := 0
	for ran < timing.CyclesPerFrame {
		cycles, err := e.cpu.Step()
		if err != nil {
			if decodeErr, ok := err.(*cpu.DecodeError); ok {
				return ran, &FatalDecodeError{Opcode: decodeErr.Opcode, PC: decodeErr.PC}
			}
			return ran, err
		}

		e.mmu.Tick(cycles)
		e.ppu.Tick(cycles)
		e.mmu.APU.Tick(cycles)
		ran += cycles
	}
	return ran, nil
}

// FrameBuffer returns the PPU's current framebuffer: 160x144 2-bit DMG
// palette indices, updated incrementally as StepFrame renders each
// scanline (spec.md §6).
func (e *Emulator) FrameBuffer() *video.FrameBuffer {
	return e.ppu.FrameBuffer()
}

// DrainAudio pulls up to count stereo sample pairs (2*count int16 values,
// interleaved L/R) out of the APU's resampled output, zero-padding if the
// APU hasn't produced enough yet (spec.md §6).
func (e *Emulator) DrainAudio(count int) []int16 {
	return e.mmu.APU.GetSamples(count)
}

// Press/Release route a logical button edge to the joypad, requesting the
// Joypad interrupt on a 1->0 transition exactly as real hardware does
// (spec.md §4.6).
func (e *Emulator) Press(btn memory.Button)   { e.mmu.Joypad.Press(btn) }
func (e *Emulator) Release(btn memory.Button) { e.mmu.Joypad.Release(btn) }

// SerialBuffer returns every byte the cartridge has shifted out over the
// serial link so far, oldest first — the mechanism Blargg test ROMs use to
// report "Passed"/"Failed" without a real link partner (spec.md §6).
func (e *Emulator) SerialBuffer() []byte {
	return e.mmu.SerialBuffer()
}

// Cartridge exposes the loaded cartridge's header metadata (title,
// checksum), or nil if none was inserted.
func (e *Emulator) Cartridge() *memory.Cartridge {
	return e.mmu.Cartridge()
}

// PendingInterrupts returns IF & IE (the requested interrupts that are also
// enabled), read-only, for debugging tools built on top of this core; an
// interrupt requested while its IE bit is clear does not show here.
func (e *Emulator) PendingInterrupts() byte {
	return e.mmu.Read(addr.IF) & e.mmu.Read(addr.IE) & 0x1F
}
