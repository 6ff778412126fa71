package cpu

import (
	"fmt"

	"github.com/coastermelt/armsim/internal/instr"
	"github.com/coastermelt/armsim/internal/operand"
)

func init() {
	registerBase("mul", makeMul(false))
	registerBase("muls", makeMul(true))
	registerBase("mla", makeMla(false))
	registerBase("mlas", makeMla(true))
	registerBase("umull", makeUmull(false))
	registerBase("umulls", makeUmull(true))
	registerBase("clz", makeClz())
}

// makeMul builds mul(s): "mul Rd, Rm, Rs" -> Rd <- (Rm * Rs) mod 2^32.
// The s-variant sets N and Z only; C is left unaffected, matching the
// source's treatment (the ARM architecture calls the multiply carry
// flag "meaningless" after this instruction, so it simply isn't
// touched here).
func makeMul(setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		args := operand.SplitArgs(rec.Args)
		if len(args) != 3 {
			return nil, fmt.Errorf("mul: expected \"Rd, Rm, Rs\", got %q", rec.Args)
		}
		rd, err := parseReg(args[0])
		if err != nil {
			return nil, err
		}
		rm, err := parseReg(args[1])
		if err != nil {
			return nil, err
		}
		rs, err := parseReg(args[2])
		if err != nil {
			return nil, err
		}
		return func() {
			result := s.Regs.Get(rm) * s.Regs.Get(rs)
			if setFlags {
				s.Regs.N = result&0x80000000 != 0
				s.Regs.Z = result == 0
			}
			s.WriteReg(rd, result)
		}, nil
	}
}

// makeMla builds mla(s): "mla Rd, Rm, Rs, Rn" -> Rd <- Rm*Rs + Rn.
func makeMla(setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		args := operand.SplitArgs(rec.Args)
		if len(args) != 4 {
			return nil, fmt.Errorf("mla: expected \"Rd, Rm, Rs, Rn\", got %q", rec.Args)
		}
		rd, err := parseReg(args[0])
		if err != nil {
			return nil, err
		}
		rm, err := parseReg(args[1])
		if err != nil {
			return nil, err
		}
		rs, err := parseReg(args[2])
		if err != nil {
			return nil, err
		}
		rn, err := parseReg(args[3])
		if err != nil {
			return nil, err
		}
		return func() {
			result := s.Regs.Get(rm)*s.Regs.Get(rs) + s.Regs.Get(rn)
			if setFlags {
				s.Regs.N = result&0x80000000 != 0
				s.Regs.Z = result == 0
			}
			s.WriteReg(rd, result)
		}, nil
	}
}

// makeUmull builds umull(s): "umull RdLo, RdHi, Rm, Rs", a 32x32->64
// unsigned multiply. Register indices are resolved once at compile
// time and indexed by number, not by re-parsing the register name on
// every step (the corrected behavior called for in DESIGN.md).
func makeUmull(setFlags bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		args := operand.SplitArgs(rec.Args)
		if len(args) != 4 {
			return nil, fmt.Errorf("umull: expected \"RdLo, RdHi, Rm, Rs\", got %q", rec.Args)
		}
		rdLo, err := parseReg(args[0])
		if err != nil {
			return nil, err
		}
		rdHi, err := parseReg(args[1])
		if err != nil {
			return nil, err
		}
		rm, err := parseReg(args[2])
		if err != nil {
			return nil, err
		}
		rs, err := parseReg(args[3])
		if err != nil {
			return nil, err
		}
		return func() {
			product := uint64(s.Regs.Get(rm)) * uint64(s.Regs.Get(rs))
			lo := uint32(product)
			hi := uint32(product >> 32)
			if setFlags {
				s.Regs.N = hi&0x80000000 != 0
				s.Regs.Z = product == 0
			}
			s.WriteReg(rdLo, lo)
			s.WriteReg(rdHi, hi)
		}, nil
	}
}

// makeClz builds clz: "clz Rd, Rm". Reproduces the source's scan
// direction exactly: it walks up from bit 0 looking for the first set
// bit rather than scanning down from bit 31, so despite the mnemonic
// this returns the trailing, not leading, zero-bit count.
func makeClz() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("clz: expected \"Rd, Rm\", got %q", rec.Args)
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
			count := uint32(32)
			for i := 0; i < 32; i++ {
				if value&(1<<uint(i)) != 0 {
					count = uint32(i)
					break
				}
			}
			s.WriteReg(rd, count)
		}, nil
	}
}
