// Package memory implements the DMG's cartridge header/bank-controller
// variants and the memory-mapped bus (MMU) that stitches cartridge, VRAM,
// work RAM, OAM, HRAM, joypad, serial, timers, and IE/IF together.
package memory

import (
	"fmt"
	"log/slog"

	"github.com/pberg/dmgboy/addr"
	"github.com/pberg/dmgboy/audio"
	"github.com/pberg/dmgboy/bit"
	"github.com/pberg/dmgboy/serial"
)

// region classifies the high byte of an address for dispatch, following
// the exhaustive map in spec.md §3.
type region uint8

const (
	regionBootROM region = iota
	regionROM
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnusable
	regionIO
	regionHRAM
	regionIE
)

func classify(addr uint16) region {
	switch {
	case addr <= 0x7FFF:
		return regionROM
	case addr <= 0x9FFF:
		return regionVRAM
	case addr <= 0xBFFF:
		return regionExtRAM
	case addr <= 0xDFFF:
		return regionWRAM
	case addr <= 0xFDFF:
		return regionEcho
	case addr <= 0xFE9F:
		return regionOAM
	case addr <= 0xFEFF:
		return regionUnusable
	case addr <= 0xFF7F:
		return regionIO
	case addr <= 0xFFFE:
		return regionHRAM
	default:
		return regionIE
	}
}

// MMU is the DMG memory bus: it owns every component except the CPU and
// exposes a single Read/Write surface, per spec.md §3's ownership model.
type MMU struct {
	cart *Cartridge
	mbc  MBC

	vram  [0x2000]byte
	wram  [0x2000]byte
	oam   [0xA0]byte
	hram  [0x7F]byte
	ioReg [0x80]byte // raw backing store for IO registers not otherwise modeled

	APU    *audio.APU
	Joypad *Joypad
	timer  Timer
	serial serial.Port

	ie byte
	// if register; upper 3 bits always read as 1 on real hardware.
	ifReg byte

	bootROM     []byte
	stillBoot   bool
	bootEnabled bool

	// OnBusWarning, if set, is called for a non-fatal bus anomaly (spec.md
	// §7's "optional trace event"). The core wires this to slog.Warn and
	// surfaces it as a *dmgboy.BusWarning.
	OnBusWarning func(address uint16, detail string)
}

// New creates an MMU with no cartridge inserted (all ROM/RAM reads 0xFF) —
// useful for isolated component tests.
func New() *MMU {
	m := &MMU{
		mbc:    NewNoMBC(nil),
		APU:    audio.New(),
		Joypad: NewJoypad(),
	}
	m.timer.Reset(0xABCC)
	m.timer.RequestTimerInterrupt = func() { m.RequestInterrupt(addr.TimerInterrupt) }
	m.Joypad.RequestJoypadInterrupt = func() { m.RequestInterrupt(addr.JoypadInterrupt) }
	m.serial = serial.New(func() { m.RequestInterrupt(addr.SerialInterrupt) })
	return m
}

// NewWithCartridge creates an MMU with the given cartridge's bank
// controller installed.
func NewWithCartridge(cart *Cartridge) *MMU {
	m := New()
	m.cart = cart
	m.mbc = cart.NewMBC()
	return m
}

// LoadBootROM installs a 256-byte boot ROM that overlays 0x0000-0x00FF
// until the CPU's first fetch from 0x0100 (spec.md §3, §6).
func (m *MMU) LoadBootROM(data []byte) error {
	if len(data) != 256 {
		return &LoadError{Reason: fmt.Sprintf("boot ROM must be exactly 256 bytes, got %d", len(data))}
	}
	m.bootROM = append([]byte(nil), data...)
	m.bootEnabled = true
	m.stillBoot = true
	return nil
}

// NotifyFetch tells the MMU a fetch occurred at `pc`, just before the byte
// there is executed. The boot overlay is torn down permanently the first
// time execution reaches 0x0100, per spec.md §3's invariant.
func (m *MMU) NotifyFetch(pc uint16) {
	if m.stillBoot && pc == 0x0100 {
		m.stillBoot = false
	}
}

func (m *MMU) bootActive() bool {
	return m.bootEnabled && m.stillBoot
}

// RequestInterrupt sets the IF bit for the given interrupt source.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.ifReg |= byte(interrupt)
}

// Tick advances timers and the serial sink by the given CPU T-cycles.
// The APU and PPU are ticked separately by the emulator loop (spec.md §4.8).
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	m.serial.Tick(cycles)
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) Read(address uint16) byte {
	if m.bootActive() && address <= 0x00FF {
		return m.bootROM[address]
	}

	switch classify(address) {
	case regionROM:
		return m.mbc.ReadROM(address)
	case regionVRAM:
		return m.vram[address-0x8000]
	case regionExtRAM:
		return m.mbc.ReadRAM(address)
	case regionWRAM:
		return m.wram[address-0xC000]
	case regionEcho:
		return m.wram[address-0xE000]
	case regionOAM:
		return m.oam[address-0xFE00]
	case regionUnusable:
		return 0
	case regionIO:
		return m.readIO(address)
	case regionHRAM:
		return m.hram[address-0xFF80]
	case regionIE:
		return m.ie
	default:
		return 0xFF
	}
}

func (m *MMU) Write(address uint16, value byte) {
	switch classify(address) {
	case regionROM:
		m.mbc.WriteROM(address, value)
	case regionVRAM:
		m.vram[address-0x8000] = value
	case regionExtRAM:
		m.mbc.WriteRAM(address, value)
	case regionWRAM:
		m.wram[address-0xC000] = value
	case regionEcho:
		m.wram[address-0xE000] = value
	case regionOAM:
		m.oam[address-0xFE00] = value
	case regionUnusable:
		// writes ignored, per spec.md §3
		if m.OnBusWarning != nil {
			m.OnBusWarning(address, "write to unusable memory region ignored")
		}
	case regionIO:
		m.writeIO(address, value)
	case regionHRAM:
		m.hram[address-0xFF80] = value
	case regionIE:
		m.ie = value
	}
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return m.Joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		return m.timer.Read(address)
	case address == addr.IF:
		return m.ifReg | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.APU.ReadRegister(address)
	default:
		return m.ioReg[address-0xFF00]
	}
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		m.Joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		m.timer.Write(address, value)
	case address == addr.IF:
		m.ifReg = value & 0x1F
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.APU.WriteRegister(address, value)
	case address == addr.DMA:
		m.doDMA(value)
		m.ioReg[address-0xFF00] = value
	case address == addr.BootOff:
		m.bootEnabled = false
	case address == addr.LY:
		// Real hardware resets LY to 0 on any write (spec.md §3); the PPU's
		// own internal line counter is the actual source of truth and will
		// overwrite this mirror on its next tick.
		m.ioReg[address-0xFF00] = 0
	default:
		m.ioReg[address-0xFF00] = value
	}
}

// doDMA performs the 160-byte OAM DMA transfer atomically on write to
// 0xFF46, per spec.md §4.2 (no bus-contention modeling).
func (m *MMU) doDMA(src byte) {
	base := uint16(src) << 8
	for i := uint16(0); i < 0xA0; i++ {
		m.oam[i] = m.Read(base + i)
	}
	if m.APU != nil {
		slog.Debug("OAM DMA", "source", fmt.Sprintf("0x%04X", base))
	}
}

// ReadPPURegister/WritePPURegister let the video package read/write its own
// registers through the same bus surface as everything else, keeping LCDC/
// STAT/SCX/.../WX as plain bytes in the IO register backing store.
func (m *MMU) ReadPPURegister(address uint16) byte  { return m.ioReg[address-0xFF00] }
func (m *MMU) WritePPURegister(address uint16, v byte) { m.ioReg[address-0xFF00] = v }

// Cartridge returns the loaded cartridge, or nil if none was provided.
func (m *MMU) Cartridge() *Cartridge { return m.cart }

// SerialBuffer returns every byte transmitted over the serial link so far.
func (m *MMU) SerialBuffer() []byte {
	if sink, ok := m.serial.(*serial.Sink); ok {
		return sink.Buffer()
	}
	return nil
}
