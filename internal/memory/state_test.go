package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/coastermelt/armsim/internal/cpu"
	"github.com/coastermelt/armsim/internal/transport"
)

func TestSaveLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "snapshot")

	p, _ := newTestProxy(t)
	p.LocalRAM(0x1000, 0x100F)
	if err := p.Store(0x1000, 0x12345678); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var regs cpu.Registers
	regs.Reset(0x8001) // thumb bit set
	regs.Set(0, 0xaaaaaaaa)
	regs.N = true
	regs.StepCount = 42

	if err := p.SaveState(base, &regs); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	p2, _ := newTestProxy(t)
	var regs2 cpu.Registers
	if err := p2.LoadState(base, &regs2); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if regs2.Get(0) != 0xaaaaaaaa {
		t.Fatalf("restored r0 = %#x, want 0xaaaaaaaa", regs2.Get(0))
	}
	if !regs2.N || regs2.StepCount != 42 || !regs2.Thumb {
		t.Fatalf("restored flags/state mismatch: N=%v thumb=%v steps=%d", regs2.N, regs2.Thumb, regs2.StepCount)
	}

	v, err := p2.Load(0x1000)
	if err != nil {
		t.Fatalf("Load after restore: %v", err)
	}
	if v != 0x12345678 {
		t.Fatalf("restored shadow value = %#x, want 0x12345678", v)
	}
}

func TestSaveStateStampsSessionID(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "snapshot")
	p := NewProxy(transport.NewMockPort(0x1000), transport.NewMockDisassembler(), DefaultOptions())
	var regs cpu.Registers
	regs.Reset(0)
	if err := p.SaveState(base, &regs); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	data, err := readCore(base)
	if err != nil {
		t.Fatalf("readCore: %v", err)
	}
	if data.SessionID == "" {
		t.Fatal("expected SaveState to stamp a non-empty session id")
	}
}

func readCore(base string) (CoreState, error) {
	var c CoreState
	data, err := os.ReadFile(base + ".core")
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(data, &c)
	return c, err
}
