package cpu

import (
	"fmt"

	"github.com/coastermelt/armsim/internal/armreg"
	"github.com/coastermelt/armsim/internal/instr"
	"github.com/coastermelt/armsim/internal/operand"
)

func init() {
	registerBase("mov", makeMoveLike("mov", false, true))
	registerBase("movs", makeMoveLike("mov", true, true))
	registerBase("mvn", makeMoveLike("mvn", false, true))
	// mvns: the source this is modeled on writes the shifter's carry-out
	// to a field the rest of the simulator never reads, so C is left
	// unchanged here. See DESIGN.md.
	registerBase("mvns", makeMoveLike("mvn", true, false))

	registerBase("bic", makeLogical("bic", false))
	registerBase("bics", makeLogical("bic", true))
	registerBase("orr", makeLogical("orr", false))
	registerBase("orrs", makeLogical("orr", true))
	registerBase("and", makeLogical("and", false))
	registerBase("ands", makeLogical("and", true))
	registerBase("eor", makeLogical("eor", false))
	registerBase("eors", makeLogical("eor", true))

	registerBase("tst", makeLogicalCompare("and"))
	registerBase("teq", makeLogicalCompare("eor"))

	registerBase("add", makeArith("add", false))
	registerBase("adds", makeArith("add", true))
	registerBase("adc", makeArith("adc", false))
	registerBase("adcs", makeArith("adc", true))
	registerBase("sub", makeArith("sub", false))
	registerBase("subs", makeArith("sub", true))
	registerBase("sbc", makeArith("sbc", false))
	registerBase("sbcs", makeArith("sbc", true))
	registerBase("rsb", makeArith("rsb", false))
	registerBase("rsbs", makeArith("rsb", true))

	registerBase("cmp", makeCompare("cmp"))
	registerBase("cmn", makeCompare("cmn"))

	registerBase("neg", makeNeg(false))
	registerBase("negs", makeNeg(true))

	registerBase("msr", makeMSR())
	registerBase("mrs", makeMRS())
	registerBase("nop", makeNop())
}

func parseReg(name string) (uint8, error) {
	r, ok := armreg.Index(name)
	if !ok {
		return 0, fmt.Errorf("not a register: %q", name)
	}
	return r, nil
}

// threeArg splits "Rd, Rn, operand" the way a two-operand data
// processing instruction is actually written, "Rd, operand" — which
// implicitly reuses Rd as Rn, matching _3arg's expansion in the
// source this follows.
func threeArg(args string) (fixed []string, rest string) {
	fixed, rest = operand.SplitFixed(args, 2)
	if len(fixed) == 1 {
		fixed = []string{fixed[0], fixed[0]}
	}
	return fixed, rest
}

// makeMoveLike builds mov/mvn: dst <- shifter(src), optionally inverted.
// writeCarryOnSet controls whether the s-variant stores the shifter's
// carry-out into C (true for movs, false for mvns — see DESIGN.md).
func makeMoveLike(mode string, setFlags, writeCarryOnSet bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("%s: expected \"Rd, operand\", got %q", mode, rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		src, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			val, carry := src.Eval(&s.Regs)
			if mode == "mvn" {
				val = ^val
			}
			if setFlags {
				s.Regs.N = val&0x80000000 != 0
				s.Regs.Z = val == 0
				if writeCarryOnSet {
					s.Regs.C = carry != 0
				}
			}
			s.WriteReg(rd, val)
		}, nil
	}
}

// makeLogical builds bic/orr/and/eor: dst <- Rn OP shifter(operand2),
// or the two-operand shorthand dst <- dst OP shifter(operand2).
func makeLogical(op string, setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := threeArg(rec.Args)
		if len(fixed) != 2 {
			return nil, fmt.Errorf("%s: expected \"Rd, Rn, operand\" or \"Rd, operand\", got %q", op, rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		rn, err := parseReg(fixed[1])
		if err != nil {
			return nil, err
		}
		rhs, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			a := s.Regs.Get(rn)
			b, carry := rhs.Eval(&s.Regs)
			result := combineLogical(op, a, b)
			if setFlags {
				n, z, c := logicalFlags(result, carry)
				s.Regs.N, s.Regs.Z, s.Regs.C = n, z, c
			}
			s.WriteReg(rd, result)
		}, nil
	}
}

func combineLogical(op string, a, b uint32) uint32 {
	switch op {
	case "and":
		return a & b
	case "orr":
		return a | b
	case "eor":
		return a ^ b
	case "bic":
		return a &^ b
	}
	return 0
}

// makeLogicalCompare builds tst/teq: compute, set flags, never write dst.
func makeLogicalCompare(op string) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("%s: expected \"Rn, operand\", got %q", op, rec.Args)
		}
		rn, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		rhs, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			a := s.Regs.Get(rn)
			b, carry := rhs.Eval(&s.Regs)
			result := combineLogical(op, a, b)
			n, z, c := logicalFlags(result, carry)
			s.Regs.N, s.Regs.Z, s.Regs.C = n, z, c
		}, nil
	}
}

// makeArith builds add/adc/sub/sbc/rsb: dst <- Rn (+/-) shifter(operand2),
// or the two-operand shorthand dst <- dst (+/-) shifter(operand2).
func makeArith(op string, setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := threeArg(rec.Args)
		if len(fixed) != 2 {
			return nil, fmt.Errorf("%s: expected \"Rd, Rn, operand\" or \"Rd, operand\", got %q", op, rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		rn, err := parseReg(fixed[1])
		if err != nil {
			return nil, err
		}
		rhs, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			a := s.Regs.Get(rn)
			b, _ := rhs.Eval(&s.Regs)
			result, n, z, c, v := arithResult(op, a, b, s.Regs.C)
			if setFlags {
				s.Regs.N, s.Regs.Z, s.Regs.C, s.Regs.V = n, z, c, v
			}
			s.WriteReg(rd, result)
		}, nil
	}
}

// makeCompare builds cmp/cmn: compute, always set flags, never write dst.
func makeCompare(op string) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("%s: expected \"Rn, operand\", got %q", op, rec.Args)
		}
		rn, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		rhs, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		arithOp := "add"
		if op == "cmp" {
			arithOp = "sub"
		}
		return func() {
			a := s.Regs.Get(rn)
			b, _ := rhs.Eval(&s.Regs)
			_, n, z, c, v := arithResult(arithOp, a, b, s.Regs.C)
			s.Regs.N, s.Regs.Z, s.Regs.C, s.Regs.V = n, z, c, v
		}, nil
	}
}

// makeNeg builds neg(s): dst <- 0 - Rm, equivalent to rsb Rd, Rm, #0.
func makeNeg(setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("neg: expected \"Rd, Rm\", got %q", rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		rm, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			b, _ := rm.Eval(&s.Regs)
			result, n, z, c, v := subWithFlags(0, b, 1)
			if setFlags {
				s.Regs.N, s.Regs.Z, s.Regs.C, s.Regs.V = n, z, c, v
			}
			s.WriteReg(rd, result)
		}, nil
	}
}

// arithResult dispatches to addWithFlags/subWithFlags with the right
// carry-in for each arithmetic mnemonic.
func arithResult(op string, a, b uint32, carryFlag bool) (result uint32, n, z, c, v bool) {
	carryIn := uint32(0)
	if carryFlag {
		carryIn = 1
	}
	switch op {
	case "add":
		return addWithFlags(a, b, 0)
	case "adc":
		return addWithFlags(a, b, carryIn)
	case "sub":
		return subWithFlags(a, b, 1)
	case "sbc":
		return subWithFlags(a, b, carryIn)
	case "rsb":
		return subWithFlags(b, a, 1)
	}
	return 0, false, false, false, false
}

// makeMSR builds msr: a stub with no effect on machine state, matching
// the source's treatment of the (unmodeled) program status register.
func makeMSR() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		return func() {}, nil
	}
}

// makeMRS builds mrs: returns the fixed status-register placeholder
// value the source uses in place of a real CPSR.
func makeMRS() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, _ := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("mrs: expected \"Rd, ...\", got %q", rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		return func() {
			s.WriteReg(rd, 0x5d5d5d5d)
		}, nil
	}
}

func makeNop() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		return func() {}, nil
	}
}
