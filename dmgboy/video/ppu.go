package video

import (
	"github.com/pberg/dmgboy/addr"
	"github.com/pberg/dmgboy/bit"
)

// Bus is the narrow memory-bus surface the PPU needs: VRAM/OAM/register
// reads and writes, plus interrupt requests. memory.MMU implements it.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	ReadBit(index uint8, address uint16) bool
	RequestInterrupt(interrupt addr.Interrupt)
	WritePPURegister(address uint16, value byte)
}

// Mode is the PPU's current rendering stage; values match STAT bits 1-0.
type Mode uint8

const (
	ModeHBlank Mode = 0
	ModeVBlank Mode = 1
	ModeOAM    Mode = 2
	ModeVRAM   Mode = 3
)

const (
	oamCycles    = 80
	vramCycles   = 172
	hblankCycles = 204
	lineCycles   = oamCycles + vramCycles + hblankCycles // 456
	linesPerFrame = 154
	vblankStartLine = 144
)

// PPU implements the mode state machine and scanline compositor.
type PPU struct {
	bus Bus
	fb  *FrameBuffer

	mode       Mode
	line       int
	cycles     int
	windowLine int

	bgIndex [Width]uint8 // BG/window color index per pixel of current line, for sprite priority

	lineRendered bool
}

func NewPPU(bus Bus) *PPU {
	return &PPU{
		bus:  bus,
		fb:   NewFrameBuffer(),
		mode: ModeOAM,
	}
}

func (p *PPU) FrameBuffer() *FrameBuffer { return p.fb }

// Tick advances the PPU by `cycles` CPU T-cycles. It returns nothing: the
// VBlank and STAT interrupts are requested directly through
// bus.RequestInterrupt at the mode or line change that raises them, and
// the emulator loop does not merge any interrupt flags from the PPU.
func (p *PPU) Tick(cycles int) {
	if !p.lcdEnabled() {
		return
	}

	p.cycles += cycles
	for p.cycles >= p.modeLength() {
		p.cycles -= p.modeLength()
		p.advanceMode()
	}
}

func (p *PPU) modeLength() int {
	switch p.mode {
	case ModeOAM:
		return oamCycles
	case ModeVRAM:
		return vramCycles
	case ModeHBlank:
		return hblankCycles
	default: // ModeVBlank: one tick per scanline-worth of cycles
		return lineCycles
	}
}

func (p *PPU) advanceMode() {
	switch p.mode {
	case ModeOAM:
		p.setMode(ModeVRAM)
		p.renderLine()
	case ModeVRAM:
		p.setMode(ModeHBlank)
		p.statIRQIfEnabled(statHBlankIRQ)
	case ModeHBlank:
		p.setLine(p.line + 1)
		if p.line == vblankStartLine {
			p.setMode(ModeVBlank)
			p.windowLine = 0
			p.bus.RequestInterrupt(addr.VBlankInterrupt)
			p.statIRQIfEnabled(statVBlankIRQ)
		} else {
			p.setMode(ModeOAM)
			p.statIRQIfEnabled(statOAMIRQ)
		}
	case ModeVBlank:
		p.setLine(p.line + 1)
		if p.line >= linesPerFrame {
			p.setLine(0)
			p.setMode(ModeOAM)
			p.statIRQIfEnabled(statOAMIRQ)
		}
	}
}

func (p *PPU) setMode(mode Mode) {
	p.mode = mode
	stat := p.bus.Read(addr.STAT)
	stat = (stat &^ 0x03) | byte(mode)
	p.bus.Write(addr.STAT, stat)
}

func (p *PPU) setLine(line int) {
	p.line = line
	p.bus.WritePPURegister(addr.LY, byte(line))
	p.compareLYC()
}

func (p *PPU) compareLYC() {
	ly := p.bus.Read(addr.LY)
	lyc := p.bus.Read(addr.LYC)
	stat := p.bus.Read(addr.STAT)
	if ly == lyc {
		stat = bit.Set(statLYCCondition, stat)
		if bit.IsSet(statLYCIRQ, stat) {
			p.bus.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	} else {
		stat = bit.Reset(statLYCCondition, stat)
	}
	p.bus.Write(addr.STAT, stat)
}

func (p *PPU) statIRQIfEnabled(bitIndex uint8) {
	if p.bus.ReadBit(bitIndex, addr.STAT) {
		p.bus.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

// STAT bit assignments (spec.md §4.4).
const (
	statLYCIRQ      uint8 = 6
	statOAMIRQ      uint8 = 5
	statVBlankIRQ   uint8 = 4
	statHBlankIRQ   uint8 = 3
	statLYCCondition uint8 = 2
)

// LCDC bit assignments.
const (
	lcdcEnable         uint8 = 7
	lcdcWindowMap      uint8 = 6
	lcdcWindowEnable   uint8 = 5
	lcdcTileData       uint8 = 4
	lcdcBGMap          uint8 = 3
	lcdcObjSize        uint8 = 2
	lcdcObjEnable      uint8 = 1
	lcdcBGEnable       uint8 = 0
)

func (p *PPU) lcdEnabled() bool { return p.bus.ReadBit(lcdcEnable, addr.LCDC) }

func (p *PPU) renderLine() {
	if p.line >= Height {
		return
	}
	lcdc := p.bus.Read(addr.LCDC)

	if bit.IsSet(lcdcBGEnable, lcdc) {
		p.drawBackground(lcdc)
	} else {
		for x := 0; x < Width; x++ {
			p.fb.set(x, p.line, 0)
			p.bgIndex[x] = 0
		}
	}

	if bit.IsSet(lcdcWindowEnable, lcdc) {
		p.drawWindow(lcdc)
	}

	if bit.IsSet(lcdcObjEnable, lcdc) {
		p.drawSprites(lcdc)
	}
}

func (p *PPU) tileAddr(lcdc byte, tileIndex byte, signed bool) uint16 {
	if signed {
		return uint16(int(addr.TileData2) + int(int8(tileIndex))*16)
	}
	return addr.TileData0 + uint16(tileIndex)*16
}

func applyPalette(palette byte, colorIndex byte) uint8 {
	return (palette >> (colorIndex * 2)) & 0x03
}

func (p *PPU) drawBackground(lcdc byte) {
	signed := !bit.IsSet(lcdcTileData, lcdc)
	mapBase := addr.TileMap0
	if bit.IsSet(lcdcBGMap, lcdc) {
		mapBase = addr.TileMap1
	}

	scx := p.bus.Read(addr.SCX)
	scy := p.bus.Read(addr.SCY)
	bgp := p.bus.Read(addr.BGP)

	y := (p.line + int(scy)) & 0xFF
	tileRow := y / 8
	pixelY := y % 8

	for x := 0; x < Width; x++ {
		mapX := (x + int(scx)) & 0xFF
		tileCol := mapX / 8
		pixelX := mapX % 8

		tileIdxAddr := mapBase + uint16(tileRow*32+tileCol)
		tileIndex := p.bus.Read(tileIdxAddr)
		base := p.tileAddr(lcdc, tileIndex, signed) + uint16(pixelY*2)

		low := p.bus.Read(base)
		high := p.bus.Read(base + 1)
		bitPos := uint8(7 - pixelX)
		colorIdx := colorIndexFromPlanes(low, high, bitPos)

		p.bgIndex[x] = colorIdx
		p.fb.set(x, p.line, applyPalette(bgp, colorIdx))
	}
}

func (p *PPU) drawWindow(lcdc byte) {
	wy := p.bus.Read(addr.WY)
	wx := int(p.bus.Read(addr.WX)) - 7

	if int(wy) > p.line || wx >= Width {
		return
	}

	signed := !bit.IsSet(lcdcTileData, lcdc)
	mapBase := addr.TileMap0
	if bit.IsSet(lcdcWindowMap, lcdc) {
		mapBase = addr.TileMap1
	}
	bgp := p.bus.Read(addr.BGP)

	tileRow := p.windowLine / 8
	pixelY := p.windowLine % 8

	for x := 0; x < Width; x++ {
		bufferX := x + wx
		if bufferX < 0 || bufferX >= Width {
			continue
		}
		tileCol := x / 8
		pixelX := x % 8

		tileIdxAddr := mapBase + uint16(tileRow*32+tileCol)
		tileIndex := p.bus.Read(tileIdxAddr)
		base := p.tileAddr(lcdc, tileIndex, signed) + uint16(pixelY*2)

		low := p.bus.Read(base)
		high := p.bus.Read(base + 1)
		colorIdx := colorIndexFromPlanes(low, high, uint8(7-pixelX))

		p.bgIndex[bufferX] = colorIdx
		p.fb.set(bufferX, p.line, applyPalette(bgp, colorIdx))
	}
	p.windowLine++
}

func (p *PPU) drawSprites(lcdc byte) {
	height := 8
	if bit.IsSet(lcdcObjSize, lcdc) {
		height = 16
	}

	var visible []int
	for i := 0; i < 40; i++ {
		oamAddr := addr.OAMStart + uint16(i*4)
		y := int(p.bus.Read(oamAddr)) - 16
		if p.line < y || p.line >= y+height {
			continue
		}
		visible = append(visible, i)
		if len(visible) >= 10 {
			break
		}
	}

	spriteX := func(i int) int {
		oamAddr := addr.OAMStart + uint16(i*4)
		return int(p.bus.Read(oamAddr+1)) - 8
	}
	sortByPriority(visible, spriteX)

	var drawn [Width]bool
	for _, i := range visible {
		oamAddr := addr.OAMStart + uint16(i*4)
		y := int(p.bus.Read(oamAddr)) - 16
		x := int(p.bus.Read(oamAddr+1)) - 8
		tile := p.bus.Read(oamAddr + 2)
		flags := p.bus.Read(oamAddr + 3)

		flipX := bit.IsSet(5, flags)
		flipY := bit.IsSet(6, flags)
		behindBG := bit.IsSet(7, flags)
		palette := addr.OBP0
		if bit.IsSet(4, flags) {
			palette = addr.OBP1
		}
		objPalette := p.bus.Read(palette)

		rowInSprite := p.line - y
		if flipY {
			rowInSprite = height - 1 - rowInSprite
		}

		tileNum := tile
		if height == 16 {
			tileNum &= 0xFE
			if rowInSprite >= 8 {
				tileNum++
				rowInSprite -= 8
			}
		}

		base := addr.TileData0 + uint16(tileNum)*16 + uint16(rowInSprite*2)
		low := p.bus.Read(base)
		high := p.bus.Read(base + 1)

		for dx := 0; dx < 8; dx++ {
			bufferX := x + dx
			if bufferX < 0 || bufferX >= Width || drawn[bufferX] {
				continue
			}
			bitPos := uint8(7 - dx)
			if flipX {
				bitPos = uint8(dx)
			}
			colorIdx := colorIndexFromPlanes(low, high, bitPos)
			if colorIdx == 0 {
				continue
			}
			drawn[bufferX] = true
			if behindBG && p.bgIndex[bufferX] != 0 {
				continue
			}
			p.fb.set(bufferX, p.line, applyPalette(objPalette, colorIdx))
		}
	}
}

func colorIndexFromPlanes(low, high byte, bitPos uint8) uint8 {
	var c uint8
	if bit.IsSet(bitPos, low) {
		c |= 1
	}
	if bit.IsSet(bitPos, high) {
		c |= 2
	}
	return c
}
