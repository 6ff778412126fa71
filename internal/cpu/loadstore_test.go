package cpu

import (
	"testing"

	"github.com/coastermelt/armsim/internal/instr"
)

// flatMemory is a minimal cpu.Memory backed by a flat byte slice, used
// only to exercise the load/store opfuncs in isolation.
type flatMemory struct {
	bytes [256]byte
}

func (m *flatMemory) Load(a uint32) (uint32, error) {
	return uint32(m.bytes[a]) | uint32(m.bytes[a+1])<<8 | uint32(m.bytes[a+2])<<16 | uint32(m.bytes[a+3])<<24, nil
}
func (m *flatMemory) LoadHalf(a uint32) (uint16, error) {
	return uint16(m.bytes[a]) | uint16(m.bytes[a+1])<<8, nil
}
func (m *flatMemory) LoadByte(a uint32) (uint8, error) { return m.bytes[a], nil }

func (m *flatMemory) Store(a uint32, v uint32) error {
	m.bytes[a] = byte(v)
	m.bytes[a+1] = byte(v >> 8)
	m.bytes[a+2] = byte(v >> 16)
	m.bytes[a+3] = byte(v >> 24)
	return nil
}
func (m *flatMemory) StoreHalf(a uint32, v uint16) error {
	m.bytes[a] = byte(v)
	m.bytes[a+1] = byte(v >> 8)
	return nil
}
func (m *flatMemory) StoreByte(a uint32, v uint8) error { m.bytes[a] = v; return nil }

func (m *flatMemory) Fetch(uint32, bool) (*instr.Record, error) { return nil, nil }
func (m *flatMemory) Flush() error                              { return nil }
func (m *flatMemory) HookFor(uint32) (Hook, bool)                { return nil, false }
func (m *flatMemory) InvokeHLE(*instr.Record, uint32) (uint32, error) { return 0, nil }

func newTestSim() (*Simulator, *flatMemory) {
	mem := &flatMemory{}
	s := NewSimulator(mem)
	return s, mem
}

func compileAndRun(t *testing.T, s *Simulator, op, args string) {
	t.Helper()
	rec := &instr.Record{Op: op, Args: args, Address: 0, NextAddress: 4}
	if err := s.compile(rec); err != nil {
		t.Fatalf("compile %s %s: %v", op, args, err)
	}
	if err := s.execute(rec); err != nil {
		t.Fatalf("execute %s %s: %v", op, args, err)
	}
}

func TestStrLdrRoundTrip(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.Set(0, 0xdeadbeef)
	s.Regs.Set(1, 0x10)
	compileAndRun(t, s, "str", "r0, [r1]")
	compileAndRun(t, s, "ldr", "r2, [r1]")
	if got := s.Regs.Get(2); got != 0xdeadbeef {
		t.Fatalf("ldr after str = %#x, want 0xdeadbeef", got)
	}
}

func TestLdrPreIndexedWriteback(t *testing.T) {
	s, mem := newTestSim()
	mem.bytes[20] = 0x7b
	s.Regs.Set(1, 0x10)
	compileAndRun(t, s, "ldr", "r0, [r1, #4]!")
	if got := s.Regs.Get(1); got != 0x14 {
		t.Fatalf("base after pre-indexed writeback = %#x, want 0x14", got)
	}
	if got := s.Regs.Get(0); got != 0x7b {
		t.Fatalf("loaded value = %#x, want 0x7b", got)
	}
}

func TestStrPostIndexed(t *testing.T) {
	s, mem := newTestSim()
	s.Regs.Set(0, 0x11223344)
	s.Regs.Set(1, 0x10)
	compileAndRun(t, s, "str", "r0, [r1], #4")
	if got := s.Regs.Get(1); got != 0x14 {
		t.Fatalf("base after post-indexed store = %#x, want 0x14", got)
	}
	v, _ := mem.Load(0x10)
	if v != 0x11223344 {
		t.Fatalf("stored value at original base = %#x, want 0x11223344", v)
	}
}

func TestLdrshSignExtends(t *testing.T) {
	s, mem := newTestSim()
	mem.bytes[0x10] = 0x80
	mem.bytes[0x11] = 0xff
	s.Regs.Set(1, 0x10)
	compileAndRun(t, s, "ldrsh", "r0, [r1]")
	if got := s.Regs.Get(0); got != 0xffffff80 {
		t.Fatalf("ldrsh sign extension = %#x, want 0xffffff80", got)
	}
}

func TestPushPop(t *testing.T) {
	s, _ := newTestSim()
	s.Regs.SetSP(0x100)
	s.Regs.Set(4, 0xaaaaaaaa)
	s.Regs.Set(5, 0xbbbbbbbb)
	compileAndRun(t, s, "push", "{r4, r5}")
	if got := s.Regs.SP(); got != 0xf8 {
		t.Fatalf("sp after push 2 regs = %#x, want 0xf8", got)
	}
	s.Regs.Set(4, 0)
	s.Regs.Set(5, 0)
	compileAndRun(t, s, "pop", "{r4, r5}")
	if got := s.Regs.SP(); got != 0x100 {
		t.Fatalf("sp after pop = %#x, want 0x100", got)
	}
	if s.Regs.Get(4) != 0xaaaaaaaa || s.Regs.Get(5) != 0xbbbbbbbb {
		t.Fatalf("pop did not restore registers: r4=%#x r5=%#x", s.Regs.Get(4), s.Regs.Get(5))
	}
}

func TestPopIntoPCBranches(t *testing.T) {
	s, mem := newTestSim()
	s.Regs.SetSP(0x10)
	mem.bytes[0x10] = 0x01 // thumb bit set
	rec := &instr.Record{Op: "pop", Args: "{pc}", Address: 0, NextAddress: 2}
	if err := s.compile(rec); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := s.execute(rec); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if s.branch == nil {
		t.Fatal("pop {pc} did not set branch target")
	}
	if *s.branch != 0 {
		t.Fatalf("branch target = %#x, want 0", *s.branch)
	}
	if !s.Regs.Thumb {
		t.Fatal("pop {pc} should have set thumb mode from loaded value's low bit")
	}
}

func TestStmiaStoresAscending(t *testing.T) {
	s, mem := newTestSim()
	s.Regs.Set(0, 0x20) // base
	s.Regs.Set(1, 0x11)
	s.Regs.Set(2, 0x22)
	compileAndRun(t, s, "stmia", "r0!, {r1, r2}")
	v1, _ := mem.Load(0x20)
	v2, _ := mem.Load(0x24)
	if v1 != 0x11 || v2 != 0x22 {
		t.Fatalf("stmia wrote v1=%#x v2=%#x, want 0x11, 0x22", v1, v2)
	}
	if got := s.Regs.Get(0); got != 0x28 {
		t.Fatalf("base after stmia! = %#x, want 0x28", got)
	}
}

func TestStmdbStoresDescending(t *testing.T) {
	s, mem := newTestSim()
	s.Regs.Set(0, 0x20)
	s.Regs.Set(1, 0x11)
	s.Regs.Set(2, 0x22)
	compileAndRun(t, s, "stmdb", "r0!, {r1, r2}")
	// db steps the address down before each store, walking the
	// register list in order: r1 lands closest to the original base,
	// r2 one word further down.
	v1, _ := mem.Load(0x1c)
	v2, _ := mem.Load(0x18)
	if v1 != 0x11 || v2 != 0x22 {
		t.Fatalf("stmdb wrote v1=%#x v2=%#x, want 0x11, 0x22", v1, v2)
	}
	if got := s.Regs.Get(0); got != 0x18 {
		t.Fatalf("base after stmdb! = %#x, want 0x18", got)
	}
}

func TestStmdaStoresDescendingFromBase(t *testing.T) {
	s, mem := newTestSim()
	s.Regs.Set(0, 0x20)
	s.Regs.Set(1, 0x11)
	s.Regs.Set(2, 0x22)
	compileAndRun(t, s, "stmda", "r0!, {r1, r2}")
	// da never steps before the first store: r1 lands at the
	// original base, r2 one word below it.
	v1, _ := mem.Load(0x20)
	v2, _ := mem.Load(0x1c)
	if v1 != 0x11 || v2 != 0x22 {
		t.Fatalf("stmda wrote v1=%#x v2=%#x, want 0x11, 0x22", v1, v2)
	}
	if got := s.Regs.Get(0); got != 0x18 {
		t.Fatalf("base after stmda! = %#x, want 0x18", got)
	}
}

func TestLdmdaMatchesStmdaOrdering(t *testing.T) {
	s, mem := newTestSim()
	mem.Store(0x20, 0x11)
	mem.Store(0x1c, 0x22)
	s.Regs.Set(0, 0x20)
	compileAndRun(t, s, "ldmda", "r0!, {r1, r2}")
	if s.Regs.Get(1) != 0x11 || s.Regs.Get(2) != 0x22 {
		t.Fatalf("ldmda loaded r1=%#x r2=%#x, want 0x11, 0x22", s.Regs.Get(1), s.Regs.Get(2))
	}
	if got := s.Regs.Get(0); got != 0x18 {
		t.Fatalf("base after ldmda! = %#x, want 0x18", got)
	}
}

func TestLdmfdMatchesLdmia(t *testing.T) {
	s, mem := newTestSim()
	mem.Store(0x20, 0x11)
	mem.Store(0x24, 0x22)
	s.Regs.Set(0, 0x20)
	compileAndRun(t, s, "ldmfd", "r0!, {r1, r2}")
	if s.Regs.Get(1) != 0x11 || s.Regs.Get(2) != 0x22 {
		t.Fatalf("ldmfd loaded r1=%#x r2=%#x, want 0x11, 0x22", s.Regs.Get(1), s.Regs.Get(2))
	}
	if got := s.Regs.Get(0); got != 0x28 {
		t.Fatalf("base after ldmfd! = %#x, want 0x28", got)
	}
}
