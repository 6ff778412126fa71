package cpu

import (
	"fmt"

	"github.com/coastermelt/armsim/internal/instr"
	"github.com/coastermelt/armsim/internal/operand"
	"github.com/coastermelt/armsim/internal/shifter"
)

func init() {
	for _, name := range []string{"lsl", "lsr", "asr", "rol", "ror"} {
		registerBase(name, makeShift(name, false))
		registerBase(name+"s", makeShift(name, true))
	}
	registerBase("rrx", makeRRX(false))
	registerBase("rrxs", makeRRX(true))
}

// makeShift builds lsl/lsr/asr/rol/ror: "op Rd, Rm, amount" where
// amount is an immediate or a register.
func makeShift(op string, setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 2)
		if len(fixed) != 2 {
			return nil, fmt.Errorf("%s: expected \"Rd, Rm, amount\", got %q", op, rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		rm, err := parseReg(fixed[1])
		if err != nil {
			return nil, err
		}
		amountOperand, err := operand.ParseOperand(rest)
		if err != nil {
			return nil, err
		}
		shiftFn := shiftFuncFor(op)
		return func() {
			value := s.Regs.Get(rm)
			amount, _ := amountOperand.Eval(&s.Regs)
			result, carry := shiftFn(value, amount)
			if setFlags {
				s.Regs.N = result&0x80000000 != 0
				s.Regs.Z = result == 0
				s.Regs.C = carry != 0
			}
			s.WriteReg(rd, result)
		}, nil
	}
}

func shiftFuncFor(op string) func(uint32, uint32) (uint32, uint32) {
	switch op {
	case "lsl":
		return shifter.LSL
	case "lsr":
		return shifter.LSR
	case "asr":
		return shifter.ASR
	case "rol":
		return shifter.ROL
	case "ror":
		return shifter.ROR
	}
	return shifter.ROR
}

// makeRRX builds rrx: "rrx Rd, Rm", rotating Rm right by one bit
// through the current carry flag.
func makeRRX(setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("rrx: expected \"Rd, Rm\", got %q", rec.Args)
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
			value, _ := rm.Eval(&s.Regs)
			carryIn := uint32(0)
			if s.Regs.C {
				carryIn = 1
			}
			result, carry := shifter.RRX(value, 1, carryIn)
			if setFlags {
				s.Regs.N = result&0x80000000 != 0
				s.Regs.Z = result == 0
				s.Regs.C = carry != 0
			}
			s.WriteReg(rd, result)
		}, nil
	}
}
