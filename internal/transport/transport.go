// Package transport defines the narrow external interfaces the memory
// proxy needs from the remote device and the disassembler/assembler
// toolchain, plus small in-memory fakes of each for tests and the
// bundled batch driver.
package transport

import "github.com/coastermelt/armsim/internal/instr"

// Port is the remote device transport: a bitbang-style backdoor able to
// peek/poke individual words or bytes, fill runs, read a block, and
// invoke compiled high-level-emulation code.
type Port interface {
	Peek(address uint32) (uint32, error)
	Poke(address uint32, value uint32) error
	PeekByte(address uint32) (uint8, error)
	PokeByte(address uint32, value uint8) error

	FillWords(address uint32, pattern uint32, count int) error
	FillBytes(address uint32, pattern uint8, count int) error

	BlockRead(address uint32, length int, maxRoundTrips int) ([]byte, error)

	// Blx invokes already-compiled code at entry on the device with r0
	// as its argument, returning the device's r0 on completion.
	Blx(entry uint32, r0 uint32) (uint32, error)
}

// Disassembler turns raw device bytes into instruction records, and a
// raw byte blob into the same; Assembler does the reverse, and compiles
// small named routines for HLE handlers.
type Disassembler interface {
	// Disassemble reads size bytes at addr from device and disassembles
	// them in the given ISA mode.
	Disassemble(device Port, addr uint32, size int, thumb bool) ([]byte, error)

	// DisassemblyLines decodes a raw byte blob (as returned by
	// Disassemble or BlockRead) into instruction records.
	DisassemblyLines(code []byte, addr uint32, thumb bool) ([]*instr.Record, error)

	// DisassembleString decodes a raw byte blob without touching the
	// device, used by tooling that already has the bytes in hand.
	DisassembleString(code []byte, address uint32, thumb bool) ([]*instr.Record, error)
}

// Assembler is the reverse half of the toolchain: encoding text source
// into machine code, and building small handler routines for HLE.
type Assembler interface {
	AssembleString(address uint32, source string, thumb bool) ([]byte, error)

	// CompileLibrary assembles a set of named routines starting at
	// codeAddress and returns each routine's entry address.
	CompileLibrary(device Port, codeAddress uint32, routines map[string]string) (map[string]uint32, error)
}
