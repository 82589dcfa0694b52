package memory

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	titleAddress          = 0x0134
	titleLength           = 16
	cartridgeTypeAddress  = 0x0147
	romSizeAddress        = 0x0148
	ramSizeAddress        = 0x0149
	headerChecksumAddress = 0x014D
	minROMSize            = 0x8000
)

// MBCKind identifies which bank-controller family a cartridge header selects.
type MBCKind uint8

const (
	NoMBCKind MBCKind = iota
	MBC1Kind
	MBC3Kind
	MBC5Kind
)

// ramSizeCodeToBytes maps the 0x0149 header byte to external RAM size, per
// spec.md §4.1: {0,1,2,3,4,5} -> {0,2,8,32,128,64} KiB.
var ramSizeCodeToBytes = map[uint8]int{
	0x00: 0,
	0x01: 2 * 1024,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// LoadError describes a failure to load or recognize a cartridge image,
// surfaced to the host at construction time (spec.md §7).
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cartridge load error: %s", e.Reason)
}

// Cartridge owns the raw ROM image, derived header metadata, and the
// associated external RAM/bank-controller state.
type Cartridge struct {
	data           []byte
	Title          string
	HeaderChecksum uint8
	kind           MBCKind
	ramBytes       int
	hasBattery     bool
}

// typeTable maps the 0x0147 header byte to (MBCKind, hasBattery). Types not
// present here are unsupported; loading them is a fatal LoadError per
// spec.md §4.1.
var typeTable = map[uint8]struct {
	kind       MBCKind
	hasBattery bool
}{
	0x00: {NoMBCKind, false},
	0x01: {MBC1Kind, false},
	0x02: {MBC1Kind, false},
	0x03: {MBC1Kind, true},
	0x13: {MBC3Kind, true}, // MBC3+RAM+BATTERY
	0x19: {MBC5Kind, false},
	0x1B: {MBC5Kind, true}, // MBC5+RAM+BATTERY
}

// NewCartridge parses a raw ROM image into a Cartridge, selecting the MBC
// kind from the header. Returns a *LoadError for missing header bytes, an
// undersized image, or an unrecognized cartridge type byte.
func NewCartridge(data []byte) (*Cartridge, error) {
	if len(data) < minROMSize {
		return nil, &LoadError{Reason: fmt.Sprintf("ROM too small: %d bytes, need at least %d", len(data), minROMSize)}
	}
	if len(data) <= int(headerChecksumAddress) {
		return nil, &LoadError{Reason: "ROM too small to contain a header"}
	}

	typeByte := data[cartridgeTypeAddress]
	entry, ok := typeTable[typeByte]
	if !ok {
		return nil, &LoadError{Reason: fmt.Sprintf("unsupported cartridge type 0x%02X", typeByte)}
	}

	ramCode := data[ramSizeAddress]
	ramBytes, ok := ramSizeCodeToBytes[ramCode]
	if !ok {
		ramBytes = 0
	}

	cart := &Cartridge{
		data:           append([]byte(nil), data...),
		Title:          cleanTitle(data[titleAddress : titleAddress+titleLength]),
		HeaderChecksum: data[headerChecksumAddress],
		kind:           entry.kind,
		ramBytes:       ramBytes,
		hasBattery:     entry.hasBattery,
	}

	return cart, nil
}

// cleanTitle converts the raw 16-byte cartridge title field (NUL-padded,
// sometimes carrying manufacturer/CGB flag bytes in the final bytes) into a
// printable string, following original_source/src/cartridge.rs.
func cleanTitle(raw []byte) string {
	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		r := rune(b)
		switch {
		case r == 0:
			continue
		case unicode.IsPrint(r) && r < 128:
			runes = append(runes, r)
		}
	}
	return strings.TrimSpace(string(runes))
}

// NewMBC constructs the bank controller selected by the cartridge header.
func (c *Cartridge) NewMBC() MBC {
	switch c.kind {
	case MBC1Kind:
		return NewMBC1(c.data, c.ramBytes)
	case MBC3Kind:
		return NewMBC3(c.data, c.ramBytes)
	case MBC5Kind:
		return NewMBC5(c.data, c.ramBytes)
	default:
		return NewNoMBC(c.data)
	}
}
