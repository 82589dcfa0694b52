package dmgboy

import "fmt"

// FatalDecodeError wraps a cpu.DecodeError at the emulator boundary: the
// host receives this from StepFrame and must stop calling it (spec.md §7).
type FatalDecodeError struct {
	Opcode byte
	PC     uint16
}

func (e *FatalDecodeError) Error() string {
	return fmt.Sprintf("fatal: undefined opcode 0x%02X at 0x%04X", e.Opcode, e.PC)
}

// BusWarning is a non-fatal anomaly worth surfacing to a host that wants
// trace-level detail, without interrupting emulation (spec.md §7). The
// core only ever logs these via slog.Warn — e.g. a write into the
// unusable memory region (0xFEA0-0xFEFF), which is a documented no-op but
// still worth a trace line if a cartridge does it.
type BusWarning struct {
	Address uint16
	Detail  string
}

func (e *BusWarning) Error() string {
	return fmt.Sprintf("bus warning at 0x%04X: %s", e.Address, e.Detail)
}
