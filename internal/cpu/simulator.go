package cpu

import (
	"fmt"
	"strings"

	"github.com/coastermelt/armsim/internal/instr"
)

// Simulator drives the step loop over a Memory implementation. It owns
// the register file and the scratch "next PC" slot every factory
// writes through instead of touching Regs.PC mid-instruction.
type Simulator struct {
	Regs   Registers
	Memory Memory

	branch *uint32 // set by WriteReg(pc, ...) and consumed at the end of Step
}

// NewSimulator wires a Memory implementation into a fresh Simulator.
func NewSimulator(mem Memory) *Simulator {
	return &Simulator{Memory: mem}
}

// Reset resets the register file to the given vector.
func (s *Simulator) Reset(vector uint32) {
	s.Regs.Reset(vector)
	s.branch = nil
}

// WriteReg writes a general register, special-casing writes to pc: per
// the architectural model this simulator follows, a write to pc never
// takes effect immediately (the opfunc may still be mid-instruction,
// and the driver needs the old pc to compute the architectural offset
// for any later operand in the same instruction). Instead it latches
// the target into the branch scratch slot, to be applied once the
// opfunc returns, and updates the ISA mode from the target's low bit.
func (s *Simulator) WriteReg(index uint8, value uint32) {
	if index == 15 {
		target := value &^ 1
		s.branch = &target
		s.Regs.Thumb = value&1 != 0
		return
	}
	s.Regs.Set(index, value)
}

// setBranch is used directly by branch factories, which compute a
// target without going through a general register write.
func (s *Simulator) setBranch(target uint32, thumb bool) {
	t := target &^ 1
	s.branch = &t
	s.Regs.Thumb = thumb
}

// AddressSanityError reports an access to an address the simulator
// considers implausible for this target, per the memory proxy's
// address-sanity ceiling.
type AddressSanityError struct {
	Address uint32
}

func (e *AddressSanityError) Error() string {
	return fmt.Sprintf("address %#08x doesn't look valid, simulator bug?", e.Address)
}

// architecturalPC computes the PC value an opfunc should observe
// during execution: the Thumb pipeline offset rounds the next
// instruction's address up to a word boundary and adds one word; the
// ARM offset is a flat two words ahead of the current instruction.
func architecturalPC(rec *instr.Record, thumb bool) uint32 {
	if thumb {
		return (rec.NextAddress + 3) &^ 3
	}
	return rec.Address + 8
}

// Step executes one instruction, honoring an optional hook at the
// current PC, HLE handlers, and conditional execution. It returns the
// error from a failing opfunc (with pc rewound to the instruction's
// address) or from fetch/memory failures.
func (s *Simulator) Step() error {
	s.Regs.StepCount++

	pc := s.Regs.PC()
	hook, hasHook := s.Memory.HookFor(pc)

	rec, err := s.Memory.Fetch(pc, s.Regs.Thumb)
	if err != nil {
		return err
	}

	if err := s.compile(rec); err != nil {
		return err
	}

	s.Regs.SetPC(architecturalPC(rec, s.Regs.Thumb))
	s.branch = nil

	if rec.Condition.Eval(s.Regs.N, s.Regs.Z, s.Regs.C, s.Regs.V) {
		if err := s.execute(rec); err != nil {
			s.Regs.SetPC(rec.Address)
			return err
		}
	}

	if s.branch != nil {
		s.Regs.SetPC(*s.branch)
	} else {
		s.Regs.SetPC(rec.NextAddress)
	}

	if rec.HLE != "" {
		r0, err := s.Memory.InvokeHLE(rec, s.Regs.Get(0))
		if err != nil {
			return err
		}
		s.Regs.Set(0, r0)
	}

	if hasHook {
		hook(s)
	}

	return nil
}

// execute recovers from a panicking opfunc (an out-of-range register
// index or similar programmer error in a factory) and turns it into an
// error, matching the "rewind pc, propagate" contract Step promises
// its caller regardless of how the opfunc failed.
func (s *Simulator) execute(rec *instr.Record) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if asErr, ok := r.(error); ok {
			err = asErr
			return
		}
		err = fmt.Errorf("cpu: instruction at %#08x (%s %s) panicked: %v", rec.Address, rec.Op, rec.Args, r)
	}()
	rec.OpFunc()
	return nil
}

// compile lazily resolves an instruction's mnemonic/condition and
// builds its opfunc, memoizing both on the record so repeated
// execution (loops) never re-parses the operand string.
func (s *Simulator) compile(rec *instr.Record) error {
	if rec.OpFunc != nil {
		return nil
	}
	mnemonic := strings.TrimSuffix(rec.Op, ".n")
	factory, cond, err := lookup(mnemonic)
	if err != nil {
		return err
	}
	fn, err := factory(s, rec)
	if err != nil {
		return fmt.Errorf("cpu: compiling %q %q at %#08x: %w", rec.Op, rec.Args, rec.Address, err)
	}
	rec.Mnemonic = mnemonic
	rec.Condition = cond
	rec.OpFunc = fn
	return nil
}

// Run steps the simulator until breakpoint is reached (if nonzero) or
// count steps have executed, whichever comes first. A negative count
// means "until breakpoint or error"; a count of 0 executes nothing.
func (s *Simulator) Run(count int, breakpoint uint32) error {
	for count != 0 {
		if err := s.Step(); err != nil {
			return err
		}
		if breakpoint != 0 && s.Regs.PC() == breakpoint {
			return nil
		}
		if count > 0 {
			count--
		}
	}
	return nil
}

// SummaryLine renders a single human-readable line describing the
// current machine state, in the spirit of the reference debugger's own
// one-line step summaries.
func (s *Simulator) SummaryLine() string {
	mode := "arm"
	if s.Regs.Thumb {
		mode = "thumb"
	}
	return fmt.Sprintf("pc=%#08x %s flags=%s steps=%d", s.Regs.PC(), mode, s.Regs.FlagsString(), s.Regs.StepCount)
}

// RegisterTraceLine renders all 16 registers on one line, the way the
// reference debugger's register_trace_line does.
func (s *Simulator) RegisterTraceLine() string {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "r%d=%08x ", i, s.Regs.Get(uint8(i)))
	}
	return strings.TrimSpace(b.String())
}
