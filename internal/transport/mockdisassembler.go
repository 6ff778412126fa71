package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/coastermelt/armsim/internal/instr"
)

// MockDisassembler stands in for the real disassembler toolchain. It
// never looks at actual machine code: "code" is a small line-oriented
// script, one instruction per line:
//
//	<address> <size> <mnemonic> <args...>
//
// Blank lines and lines starting with '#' are ignored. This is
// explicitly a test/demo fixture format, not a stand-in for real
// disassembly — see the CLI's "run <script>" command, which feeds a
// user-authored script straight through this same parser.
type MockDisassembler struct{}

// NewMockDisassembler returns a ready-to-use MockDisassembler; it holds
// no state.
func NewMockDisassembler() *MockDisassembler { return &MockDisassembler{} }

// Disassemble "reads" size bytes from the device starting at addr and
// returns them verbatim: for this mock, the device's contents at that
// range are assumed to already be script text (set up by a test via
// MockPort.WriteBytes).
func (d *MockDisassembler) Disassemble(device Port, addr uint32, size int, thumb bool) ([]byte, error) {
	return device.BlockRead(addr, size, 0)
}

// DisassemblyLines and DisassembleString share the same script parser;
// addr/thumb are accepted for interface conformance but ignored: the
// script's own per-line address column is used, and the script
// carries no mode column.
func (d *MockDisassembler) DisassemblyLines(code []byte, addr uint32, thumb bool) ([]*instr.Record, error) {
	return parseScript(code)
}

func (d *MockDisassembler) DisassembleString(code []byte, address uint32, thumb bool) ([]*instr.Record, error) {
	return parseScript(code)
}

func parseScript(code []byte) ([]*instr.Record, error) {
	// A block read off a MockPort is zero-padded out to the caller's
	// requested size; the script itself never contains a NUL, so
	// anything from the first one onward is padding, not a line.
	if i := bytes.IndexByte(code, 0); i >= 0 {
		code = code[:i]
	}

	var records []*instr.Record
	scanner := bufio.NewScanner(bytes.NewReader(code))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 4)
		if len(fields) < 3 {
			return nil, fmt.Errorf("transport: malformed script line %d: %q", lineNo, line)
		}
		address, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("transport: script line %d: bad address %q: %w", lineNo, fields[0], err)
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("transport: script line %d: bad size %q: %w", lineNo, fields[1], err)
		}
		op := fields[2]
		args := ""
		if len(fields) == 4 {
			args = strings.TrimSpace(fields[3])
		}
		records = append(records, &instr.Record{
			Address:     uint32(address),
			NextAddress: uint32(address) + uint32(size),
			Op:          op,
			Args:        args,
			SizeBytes:   uint8(size),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transport: reading script: %w", err)
	}
	return records, nil
}
