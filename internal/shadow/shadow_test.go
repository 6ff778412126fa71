package shadow

import "testing"

func TestFillThenHasRun(t *testing.T) {
	m := New()
	if m.HasRun(0x1000, 4) {
		t.Fatal("empty cache should not report a run present")
	}
	m.Fill(0x1000, []byte{1, 2, 3, 4})
	if !m.HasRun(0x1000, 4) {
		t.Fatal("expected the filled run to be present")
	}
	if m.HasRun(0x1000, 5) {
		t.Fatal("should not report presence past the filled range")
	}
}

func TestReadWriteWordRoundTrip(t *testing.T) {
	m := New()
	m.WriteWord(0x2000, 0xdeadbeef)
	if got := m.ReadWord(0x2000); got != 0xdeadbeef {
		t.Fatalf("ReadWord = %#x, want 0xdeadbeef", got)
	}
	if !m.HasRun(0x2000, 4) {
		t.Fatal("WriteWord should mark its bytes present")
	}
}

func TestMarkPresentDoesNotTouchData(t *testing.T) {
	m := New()
	m.MarkPresent(0x3000, 0x3003)
	if !m.HasRun(0x3000, 4) {
		t.Fatal("expected marked range to be present")
	}
	if got := m.ReadWord(0x3000); got != 0 {
		t.Fatalf("ReadWord on freshly marked range = %#x, want 0", got)
	}
}

func TestAvailableStopsAtGap(t *testing.T) {
	m := New()
	m.Fill(0x4000, []byte{1, 2, 3})
	m.WriteByte(0x4005, 9) // leaves a gap at 0x4003-0x4004
	if got := m.Available(0x4000, 0x10); got != 3 {
		t.Fatalf("Available = %d, want 3", got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := New()
	m.Fill(0x5000, []byte{1, 2, 3, 4})
	snap := m.Snapshot()

	m2 := New()
	m2.Restore(snap)
	if !m2.HasRun(0x5000, 4) {
		t.Fatal("restored cache lost presence")
	}
	if got := m2.ReadWord(0x5000); got != 0x04030201 {
		t.Fatalf("restored ReadWord = %#x, want 0x04030201", got)
	}
}

func TestPageBoundaryCrossing(t *testing.T) {
	m := New()
	base := uint32(PageSize - 2)
	m.Fill(base, []byte{1, 2, 3, 4})
	if !m.HasRun(base, 4) {
		t.Fatal("run crossing a page boundary should still be reported present")
	}
	if got := m.ReadWord(base); got != 0x04030201 {
		t.Fatalf("ReadWord across page boundary = %#x, want 0x04030201", got)
	}
}
