// Package operand parses the operand text the disassembler attaches
// to an instruction record into a small tagged variant, evaluated with
// a single switch rather than a closure per operand (see the
// dispatch-shape discussion in the design notes this module follows).
package operand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coastermelt/armsim/internal/armreg"
	"github.com/coastermelt/armsim/internal/shifter"
)

// Kind tags the variant held by an Operand.
type Kind uint8

const (
	KindImmediate Kind = iota
	KindRegister
	KindShiftedRegister
	KindAddress
)

// ShiftOp names the barrel-shifter operation a shifted-register operand applies.
type ShiftOp uint8

const (
	ShiftNone ShiftOp = iota
	ShiftLSL
	ShiftLSR
	ShiftASR
	ShiftROR
	ShiftROL
)

// AddressOperand describes an addressing-mode operand: [Rn], [Rn, off]
// or [Rn], off, with an optional sign flip and writeback marker.
type AddressOperand struct {
	Base      uint8
	HasOffset bool
	Offset    *Operand // immediate, register, or shifted register; nil when HasOffset is false
	Negative  bool
	PostIndex bool // true for "[Rn], offset" (offset applied after the access)
	Writeback bool // trailing '!'
}

// Operand is a parsed instruction operand.
type Operand struct {
	Kind Kind

	Immediate uint32

	Register uint8

	ShiftBase   uint8
	ShiftOp     ShiftOp
	ShiftAmount *Operand // either an immediate or a register; nil for non-shifted operands
	ShiftByReg  bool

	Address AddressOperand
}

// RegisterSource provides the live register values an Operand needs to
// evaluate itself; implemented by the CPU register file.
type RegisterSource interface {
	Get(index uint8) uint32
	Carry() bool
}

// Eval resolves the operand to (value, carryOut). carryOut only differs
// from the register source's existing carry for shifted operands; for
// plain immediates and registers it returns the unchanged carry.
func (o Operand) Eval(regs RegisterSource) (value uint32, carryOut uint32) {
	existingCarry := uint32(0)
	if regs.Carry() {
		existingCarry = 1
	}
	switch o.Kind {
	case KindImmediate:
		return o.Immediate, existingCarry
	case KindRegister:
		return regs.Get(o.Register), existingCarry
	case KindShiftedRegister:
		base := regs.Get(o.ShiftBase)
		var amount uint32
		if o.ShiftByReg {
			amount = regs.Get(o.ShiftAmount.Register) & 0xff
		} else {
			amount = o.ShiftAmount.Immediate
		}
		switch o.ShiftOp {
		case ShiftLSL:
			return shifter.LSL(base, amount)
		case ShiftLSR:
			return shifter.LSR(base, amount)
		case ShiftASR:
			return shifter.ASR(base, amount)
		case ShiftROR:
			return shifter.ROR(base, amount)
		case ShiftROL:
			return shifter.ROL(base, amount)
		default:
			return shifter.ROR(base, amount)
		}
	case KindAddress:
		addr, _ := o.EvalAddress(regs)
		return addr, existingCarry
	}
	return 0, existingCarry
}

// EvalAddress resolves an address operand to the effective address.
// For post-indexed operands it returns the base register's current
// value; the offset is reported separately via Offset so the caller
// can apply writeback after the access.
func (o Operand) EvalAddress(regs RegisterSource) (effective uint32, offset uint32) {
	base := regs.Get(o.Address.Base)
	if !o.Address.HasOffset {
		return base, 0
	}
	off, _ := o.Address.Offset.Eval(regs)
	if o.Address.Negative {
		off = -off
	}
	if o.Address.PostIndex {
		return base, off
	}
	return base + off, off
}

// RegisterList is a parsed {r0, r1, ...} register list.
type RegisterList struct {
	Registers []uint8
	Writeback bool
}

var shiftOpNames = map[string]ShiftOp{
	"lsl": ShiftLSL,
	"lsr": ShiftLSR,
	"asr": ShiftASR,
	"ror": ShiftROR,
	"rol": ShiftROL,
}

// ParseImmediate parses a "#literal" token, accepting decimal and 0x-hex.
func ParseImmediate(tok string) (uint32, error) {
	tok = strings.TrimSpace(tok)
	tok = strings.TrimPrefix(tok, "#")
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	v, err := strconv.ParseUint(tok, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parse immediate %q: %w", tok, err)
	}
	if neg {
		return -uint32(v), nil
	}
	return uint32(v), nil
}

// ParseOperand parses a single operand: a bare register, a literal, or
// a shifted register of the form "Rm, <op> <operand>". A shift operand
// whose second token doesn't name a recognised shift mnemonic is
// treated as an implicit ROR, matching the disassembler's convention
// for pre-rotated 32-bit literals.
func ParseOperand(text string) (Operand, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}
	if strings.HasPrefix(text, "#") {
		v, err := ParseImmediate(text)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: KindImmediate, Immediate: v}, nil
	}

	parts := strings.SplitN(text, ",", 2)
	regName := strings.TrimSpace(parts[0])
	reg, ok := armreg.Index(regName)
	if !ok {
		return Operand{}, fmt.Errorf("unrecognised operand %q", text)
	}
	if len(parts) == 1 {
		return Operand{Kind: KindRegister, Register: reg}, nil
	}

	rest := strings.TrimSpace(parts[1])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Operand{}, fmt.Errorf("malformed shift operand %q", text)
	}

	op, named := shiftOpNames[strings.ToLower(fields[0])]
	var amountText string
	if named {
		amountText = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
	} else {
		// No recognised shift mnemonic: the whole remainder is the
		// amount and an implicit ROR is assumed.
		op = ShiftROR
		amountText = rest
	}

	amount, byReg, err := parseShiftAmount(amountText)
	if err != nil {
		return Operand{}, err
	}
	return Operand{
		Kind:        KindShiftedRegister,
		ShiftBase:   reg,
		ShiftOp:     op,
		ShiftAmount: &amount,
		ShiftByReg:  byReg,
	}, nil
}

func parseShiftAmount(text string) (Operand, bool, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "#") {
		v, err := ParseImmediate(text)
		if err != nil {
			return Operand{}, false, err
		}
		return Operand{Kind: KindImmediate, Immediate: v}, false, nil
	}
	reg, ok := armreg.Index(text)
	if !ok {
		return Operand{}, false, fmt.Errorf("malformed shift amount %q", text)
	}
	return Operand{Kind: KindRegister, Register: reg}, true, nil
}

// ParseAddress parses an addressing-mode operand: "[Rn]", "[Rn, off]",
// or "[Rn], off" (post-indexed), with an optional trailing '!' for
// writeback and an optional leading '-' on the offset for a sign flip.
func ParseAddress(text string) (Operand, error) {
	text = strings.TrimSpace(text)
	writeback := false
	if strings.HasSuffix(text, "!") {
		writeback = true
		text = strings.TrimSuffix(text, "!")
		text = strings.TrimSpace(text)
	}

	open := strings.Index(text, "[")
	shut := strings.Index(text, "]")
	if open < 0 || shut < 0 || shut < open {
		return Operand{}, fmt.Errorf("malformed address operand %q", text)
	}
	inner := text[open+1 : shut]
	trailing := strings.TrimSpace(text[shut+1:])
	trailing = strings.TrimPrefix(trailing, ",")
	trailing = strings.TrimSpace(trailing)

	fields := strings.SplitN(inner, ",", 2)
	baseName := strings.TrimSpace(fields[0])
	base, ok := armreg.Index(baseName)
	if !ok {
		return Operand{}, fmt.Errorf("malformed address base %q", text)
	}

	addr := AddressOperand{Base: base, Writeback: writeback}

	if len(fields) == 2 {
		// Pre-indexed: "[Rn, offset]"
		off := strings.TrimSpace(fields[1])
		neg := strings.HasPrefix(off, "-")
		off = strings.TrimPrefix(off, "-")
		operand, err := ParseOperand(off)
		if err != nil {
			return Operand{}, err
		}
		addr.HasOffset = true
		addr.Negative = neg
		addr.Offset = &operand
	} else if trailing != "" {
		// Post-indexed: "[Rn], offset"
		neg := strings.HasPrefix(trailing, "-")
		trailing = strings.TrimPrefix(trailing, "-")
		operand, err := ParseOperand(trailing)
		if err != nil {
			return Operand{}, err
		}
		addr.HasOffset = true
		addr.Negative = neg
		addr.PostIndex = true
		addr.Offset = &operand
	}

	return Operand{Kind: KindAddress, Address: addr}, nil
}

// ParseRegisterList parses a "{r0, r1, r2}" register list, with an
// optional trailing '!' for writeback already stripped by the caller
// (load/store-multiple factories split the base register off first).
func ParseRegisterList(text string) (RegisterList, error) {
	text = strings.TrimSpace(text)
	writeback := false
	if strings.HasSuffix(text, "!") {
		writeback = true
		text = strings.TrimSuffix(text, "!")
		text = strings.TrimSpace(text)
	}
	text = strings.TrimPrefix(text, "{")
	text = strings.TrimSuffix(text, "}")

	var list RegisterList
	list.Writeback = writeback
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.Contains(tok, "-") {
			bounds := strings.SplitN(tok, "-", 2)
			lo, ok1 := armreg.Index(strings.TrimSpace(bounds[0]))
			hi, ok2 := armreg.Index(strings.TrimSpace(bounds[1]))
			if !ok1 || !ok2 || hi < lo {
				return RegisterList{}, fmt.Errorf("malformed register range %q", tok)
			}
			for r := lo; r <= hi; r++ {
				list.Registers = append(list.Registers, r)
			}
			continue
		}
		r, ok := armreg.Index(tok)
		if !ok {
			return RegisterList{}, fmt.Errorf("unrecognised register %q in list", tok)
		}
		list.Registers = append(list.Registers, r)
	}
	return list, nil
}

// SplitFixed splits off the first n top-level comma-separated fields
// (respecting bracket/brace nesting) and returns them along with
// whatever text remains, untouched. Used to pull "Rd, Rn" off the
// front of a data-processing operand string while leaving the
// trailing shifter-operand text (which may itself contain a comma,
// e.g. "r0, lsl #1") intact for ParseOperand.
func SplitFixed(args string, n int) (fixed []string, rest string) {
	depth := 0
	start := 0
	count := 0
	for i, ch := range args {
		switch ch {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 0 && count < n {
				fixed = append(fixed, strings.TrimSpace(args[start:i]))
				start = i + 1
				count++
			}
		}
	}
	rest = strings.TrimSpace(args[start:])
	return fixed, rest
}

// SplitArgs splits a comma-separated operand string, respecting
// bracketed and braced groups so "[r0, r1]" and "{r0, r1}" each count
// as a single argument.
func SplitArgs(args string) []string {
	var out []string
	depth := 0
	start := 0
	for i, ch := range args {
		switch ch {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(args[start:i]))
				start = i + 1
			}
		}
	}
	if start <= len(args) {
		tail := strings.TrimSpace(args[start:])
		if tail != "" {
			out = append(out, tail)
		}
	}
	return out
}
