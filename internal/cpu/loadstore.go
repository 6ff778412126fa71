package cpu

import (
	"fmt"
	"strings"

	"github.com/coastermelt/armsim/internal/armreg"
	"github.com/coastermelt/armsim/internal/instr"
	"github.com/coastermelt/armsim/internal/operand"
)

func init() {
	registerBase("ldr", makeLoad("word"))
	registerBase("ldrh", makeLoad("half"))
	registerBase("ldrsh", makeLoad("shalf"))
	registerBase("ldrb", makeLoad("byte"))
	registerBase("str", makeStore("word"))
	registerBase("strh", makeStore("half"))
	registerBase("strb", makeStore("byte"))

	registerBase("push", makePush())
	registerBase("pop", makePop())

	for _, mode := range []string{"", "ia", "ib", "da", "db", "fd", "fa", "ed", "ea"} {
		registerBase("ldm"+mode, makeLdm(mode))
		registerBase("stm"+mode, makeStm(mode))
	}
}

// must panics with err so it unwinds through Simulator.execute's
// recover, which turns it back into the error Step returns. This
// mirrors the source's own model, where any memory exception during an
// opfunc propagates straight out of step().
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// makeLoad builds ldr/ldrh/ldrsh/ldrb: "op Rd, <address>".
func makeLoad(width string) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("ldr: expected \"Rd, address\", got %q", rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		addr, err := operand.ParseAddress(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			eff, off := addr.EvalAddress(&s.Regs)
			var value uint32
			switch width {
			case "word":
				value = must(s.Memory.Load(eff))
			case "half":
				value = uint32(must(s.Memory.LoadHalf(eff)))
			case "shalf":
				value = uint32(int32(int16(must(s.Memory.LoadHalf(eff)))))
			case "byte":
				value = uint32(must(s.Memory.LoadByte(eff)))
			}
			applyWriteback(s, addr, eff, off)
			s.WriteReg(rd, value)
		}, nil
	}
}

// makeStore builds str/strh/strb: "op Rd, <address>".
func makeStore(width string) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		fixed, rest := operand.SplitFixed(rec.Args, 1)
		if len(fixed) != 1 {
			return nil, fmt.Errorf("str: expected \"Rd, address\", got %q", rec.Args)
		}
		rd, err := parseReg(fixed[0])
		if err != nil {
			return nil, err
		}
		addr, err := operand.ParseAddress(rest)
		if err != nil {
			return nil, err
		}
		return func() {
			eff, off := addr.EvalAddress(&s.Regs)
			value := s.Regs.Get(rd)
			switch width {
			case "word":
				must0(s.Memory.Store(eff, value))
			case "half":
				must0(s.Memory.StoreHalf(eff, uint16(value)))
			case "byte":
				must0(s.Memory.StoreByte(eff, uint8(value)))
			}
			applyWriteback(s, addr, eff, off)
		}, nil
	}
}

func must0(err error) {
	if err != nil {
		panic(err)
	}
}

// applyWriteback updates the base register after a load/store when the
// address operand calls for it: post-indexed addressing always writes
// back (that's the only thing post-indexing means here), and
// pre-indexed addressing writes back only with an explicit '!'.
func applyWriteback(s *Simulator, addr operand.Operand, eff, off uint32) {
	if addr.Address.PostIndex {
		s.Regs.Set(addr.Address.Base, eff+off)
		return
	}
	if addr.Address.Writeback {
		s.Regs.Set(addr.Address.Base, eff)
	}
}

// makePush builds push: decrements sp by 4*count, then writes
// registers from the low address upward in list order.
func makePush() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		list, err := operand.ParseRegisterList(rec.Args)
		if err != nil {
			return nil, err
		}
		return func() {
			base := s.Regs.SP() - uint32(4*len(list.Registers))
			sp := base
			for _, r := range list.Registers {
				must0(s.Memory.Store(sp, s.Regs.Get(r)))
				sp += 4
			}
			s.Regs.SetSP(base)
		}, nil
	}
}

// makePop builds pop: reads registers from sp upward in list order,
// then advances sp; a pc in the list performs a branch.
func makePop() Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		list, err := operand.ParseRegisterList(rec.Args)
		if err != nil {
			return nil, err
		}
		return func() {
			sp := s.Regs.SP()
			for _, r := range list.Registers {
				value := must(s.Memory.Load(sp))
				sp += 4
				s.WriteReg(r, value)
			}
			s.Regs.SetSP(sp)
		}, nil
	}
}

// baseModeFor resolves a stack mnemonic (fd/fa/ed/ea) or a syntactic
// mode (ia/ib/da/db, default ia) to (increment, before) for a given
// direction (load or store) — stack mnemonics name the same traversal
// differently depending on whether the stack is being read or written.
func baseModeFor(mode string, isLoad bool) (increment bool, before bool) {
	switch mode {
	case "", "ia":
		return true, false
	case "ib":
		return true, true
	case "da":
		return false, false
	case "db":
		return false, true
	case "fd": // full descending
		if isLoad {
			return true, false // ldmfd == ldmia
		}
		return false, true // stmfd == stmdb
	case "fa": // full ascending
		if isLoad {
			return false, false // ldmfa == ldmda
		}
		return true, true // stmfa == stmib
	case "ed": // empty descending
		if isLoad {
			return true, true // ldmed == ldmib
		}
		return false, false // stmed == stmda
	case "ea": // empty ascending
		if isLoad {
			return false, true // ldmea == ldmdb
		}
		return true, false // stmea == stmia
	}
	return true, false
}

func makeLdm(mode string) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		base, list, err := parseMultipleArgs(rec.Args)
		if err != nil {
			return nil, err
		}
		increment, before := baseModeFor(mode, true)
		return func() {
			addr := s.Regs.Get(base)
			for _, r := range list.Registers {
				a := stepAddress(addr, increment, before, uint32(len(list.Registers)), indexOf(list.Registers, r))
				value := must(s.Memory.Load(a))
				s.WriteReg(r, value)
			}
			if list.Writeback {
				s.Regs.Set(base, finalAddress(addr, increment, uint32(len(list.Registers))))
			}
		}, nil
	}
}

func makeStm(mode string) Factory {
	return func(s *Simulator, rec *instr.Record) (instr.OpFunc, error) {
		base, list, err := parseMultipleArgs(rec.Args)
		if err != nil {
			return nil, err
		}
		increment, before := baseModeFor(mode, false)
		return func() {
			addr := s.Regs.Get(base)
			for _, r := range list.Registers {
				a := stepAddress(addr, increment, before, uint32(len(list.Registers)), indexOf(list.Registers, r))
				must0(s.Memory.Store(a, s.Regs.Get(r)))
			}
			if list.Writeback {
				s.Regs.Set(base, finalAddress(addr, increment, uint32(len(list.Registers))))
			}
		}, nil
	}
}

func parseMultipleArgs(args string) (uint8, operand.RegisterList, error) {
	parts := operand.SplitArgs(args)
	if len(parts) != 2 {
		return 0, operand.RegisterList{}, fmt.Errorf("ldm/stm: expected \"Rn{!}, {list}\", got %q", args)
	}
	baseText := strings.TrimSpace(parts[0])
	writeback := strings.HasSuffix(baseText, "!")
	baseText = strings.TrimSuffix(baseText, "!")
	base, ok := armreg.Index(strings.TrimSpace(baseText))
	if !ok {
		return 0, operand.RegisterList{}, fmt.Errorf("ldm/stm: malformed base register %q", parts[0])
	}
	list, err := operand.ParseRegisterList(parts[1])
	if err != nil {
		return 0, operand.RegisterList{}, err
	}
	list.Writeback = list.Writeback || writeback
	return base, list, nil
}

func indexOf(list []uint8, r uint8) int {
	for i, v := range list {
		if v == r {
			return i
		}
	}
	return -1
}

// stepAddress computes the address for the i'th register (in list
// order) of a load/store-multiple of the given traversal.
func stepAddress(base uint32, increment, before bool, count uint32, i int) uint32 {
	if increment {
		offset := uint32(i) * 4
		if before {
			offset += 4
		}
		return base + offset
	}
	if before {
		return base - (uint32(i)+1)*4
	}
	return base - uint32(i)*4
}

// finalAddress computes the base register's value after writeback.
func finalAddress(base uint32, increment bool, count uint32) uint32 {
	if increment {
		return base + count*4
	}
	return base - count*4
}
