package cpu

import (
	"testing"

	"github.com/coastermelt/armsim/internal/instr"
)

func TestAddsSetsOverflowOnSignedWraparound(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 0x7fffffff)
	s.Regs.Set(1, 1)
	compileAndRun(t, s, "adds", "r2, r0, r1")
	if s.Regs.Get(2) != 0x80000000 {
		t.Fatalf("r2 = %#x, want 0x80000000", s.Regs.Get(2))
	}
	if !s.Regs.V {
		t.Fatal("expected V set on signed overflow")
	}
	if !s.Regs.N {
		t.Fatal("expected N set, result is negative")
	}
	if s.Regs.C {
		t.Fatal("expected C clear, no unsigned carry out")
	}
}

func TestSubsSetsCarryWhenNoBorrow(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 5)
	s.Regs.Set(1, 3)
	compileAndRun(t, s, "subs", "r2, r0, r1")
	if s.Regs.Get(2) != 2 {
		t.Fatalf("r2 = %d, want 2", s.Regs.Get(2))
	}
	if !s.Regs.C {
		t.Fatal("expected C set: no borrow when minuend >= subtrahend")
	}
	if s.Regs.Z || s.Regs.N {
		t.Fatal("unexpected N/Z for a nonzero positive result")
	}
}

func TestSubsClearsCarryOnBorrow(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 1)
	s.Regs.Set(1, 2)
	compileAndRun(t, s, "subs", "r2, r0, r1")
	if s.Regs.C {
		t.Fatal("expected C clear: borrow occurred")
	}
	if !s.Regs.N {
		t.Fatal("expected N set: result wraps to a negative value")
	}
}

func TestMovsThreadsShifterCarry(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 0x80000001)
	compileAndRun(t, s, "movs", "r1, r0, lsl #1")
	if s.Regs.Get(1) != 2 {
		t.Fatalf("r1 = %#x, want 2", s.Regs.Get(1))
	}
	if !s.Regs.C {
		t.Fatal("expected C set from the bit shifted out of bit 31")
	}
}

func TestMvnsLeavesCarryUnchanged(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.C = true
	s.Regs.Set(0, 0x80000001)
	compileAndRun(t, s, "mvns", "r1, r0, lsl #1")
	if s.Regs.Get(1) != ^uint32(2) {
		t.Fatalf("r1 = %#x, want %#x", s.Regs.Get(1), ^uint32(2))
	}
	if !s.Regs.C {
		t.Fatal("mvns must not touch C even though the shift produced a carry-out")
	}
}

func TestCmpSetsFlagsWithoutWritingDest(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 5)
	s.Regs.Set(1, 5)
	compileAndRun(t, s, "cmp", "r0, r1")
	if !s.Regs.Z {
		t.Fatal("expected Z set for equal operands")
	}
	if s.Regs.Get(0) != 5 {
		t.Fatal("cmp must not write its source register")
	}
}

func TestAndsClearsNZOnZeroResult(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 0x0f0f0f0f)
	s.Regs.Set(1, 0xf0f0f0f0)
	compileAndRun(t, s, "ands", "r2, r0, r1")
	if s.Regs.Get(2) != 0 {
		t.Fatalf("r2 = %#x, want 0", s.Regs.Get(2))
	}
	if !s.Regs.Z {
		t.Fatal("expected Z set")
	}
}

func compileOnly(t *testing.T, s *Simulator, op, args string) *instr.Record {
	t.Helper()
	rec := &instr.Record{Op: op, Args: args, Address: 0, NextAddress: 4}
	if err := s.compile(rec); err != nil {
		t.Fatalf("compile %s %s: %v", op, args, err)
	}
	return rec
}

func TestConditionalSkipsWhenFlagsDontMatch(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 1)
	s.Regs.Z = false
	rec := compileOnly(t, s, "moveq", "r0, #99")
	if rec.Condition.Eval(s.Regs.N, s.Regs.Z, s.Regs.C, s.Regs.V) {
		t.Fatal("moveq must not be selected to fire when Z is clear")
	}
	if s.Regs.Get(0) != 1 {
		t.Fatalf("r0 = %d, want unchanged 1", s.Regs.Get(0))
	}
}

func TestConditionalFiresWhenFlagsMatch(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Z = true
	rec := compileOnly(t, s, "moveq", "r0, #99")
	if !rec.Condition.Eval(s.Regs.N, s.Regs.Z, s.Regs.C, s.Regs.V) {
		t.Fatal("moveq must be selected to fire when Z is set")
	}
	if err := s.execute(rec); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if s.Regs.Get(0) != 99 {
		t.Fatalf("r0 = %d, want 99", s.Regs.Get(0))
	}
}

func TestNegsComputesTwosComplement(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 5)
	compileAndRun(t, s, "negs", "r1, r0")
	if int32(s.Regs.Get(1)) != -5 {
		t.Fatalf("r1 = %d, want -5", int32(s.Regs.Get(1)))
	}
}

func TestAddsTwoOperandFormReusesDestAsSource(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 5)
	s.Regs.Set(1, 3)
	compileAndRun(t, s, "adds", "r0, r1")
	if s.Regs.Get(0) != 8 {
		t.Fatalf("r0 = %d, want 8 (r0 += r1)", s.Regs.Get(0))
	}
}

func TestAndTwoOperandFormReusesDestAsSource(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(4, 0x0f0f0f0f)
	s.Regs.Set(5, 0x0000ffff)
	compileAndRun(t, s, "and", "r4, r5")
	if s.Regs.Get(4) != 0x00000f0f {
		t.Fatalf("r4 = %#x, want 0x00000f0f", s.Regs.Get(4))
	}
}
