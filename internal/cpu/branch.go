package cpu

import (
	"fmt"
	"strings"

	"github.com/coastermelt/armsim/internal/armreg"
	"github.com/coastermelt/armsim/internal/instr"
	"github.com/coastermelt/armsim/internal/operand"
)

func init() {
	registerBase("b", makeB())
	registerBase("bl", makeBL())
	registerBase("bx", makeBX(false))
	registerBase("blx", makeBX(true))
}

// parseTarget accepts either a bare register name or a literal address
// (with or without a leading '#'), matching how branch targets are
// written once the disassembler has resolved a PC-relative offset to
// an absolute address.
func parseTarget(text string) (operand.Operand, error) {
	text = strings.TrimSpace(text)
	if reg, ok := armreg.Index(text); ok {
		return operand.Operand{Kind: operand.KindRegister, Register: reg}, nil
	}
	v, err := operand.ParseImmediate(text)
	if err != nil {
		return operand.Operand{}, fmt.Errorf("branch target %q: %w", text, err)
	}
	return operand.Operand{Kind: operand.KindImmediate, Immediate: v}, nil
}

func thumbLinkBit(thumb bool) uint32 {
	if thumb {
		return 1
	}
	return 0
}

// makeB builds b: branch to an absolute target, ISA mode unchanged.
func makeB() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		target, err := parseTarget(rec.Args)
		if err != nil {
			return nil, err
		}
		return func() {
			val, _ := target.Eval(&s.Regs)
			s.setBranch(val, s.Regs.Thumb)
		}, nil
	}
}

// makeBL builds bl: link then branch, ISA mode unchanged.
func makeBL() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		target, err := parseTarget(rec.Args)
		if err != nil {
			return nil, err
		}
		return func() {
			s.Regs.SetLR(rec.NextAddress | thumbLinkBit(s.Regs.Thumb))
			val, _ := target.Eval(&s.Regs)
			s.setBranch(val, s.Regs.Thumb)
		}, nil
	}
}

// makeBX builds bx/blx. A register target interworks normally (ISA
// mode taken from the target's low bit); per DESIGN.md, a literal
// target instead toggles the current ISA mode, matching the observed
// (and otherwise unexplained) behavior of the source this follows.
func makeBX(link bool) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		target, err := parseTarget(rec.Args)
		if err != nil {
			return nil, err
		}
		return func() {
			if link {
				s.Regs.SetLR(rec.NextAddress | thumbLinkBit(s.Regs.Thumb))
			}
			if target.Kind == operand.KindRegister {
				val := s.Regs.Get(target.Register)
				s.setBranch(val, val&1 != 0)
				return
			}
			s.setBranch(target.Immediate, !s.Regs.Thumb)
		}, nil
	}
}
