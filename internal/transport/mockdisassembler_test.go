package transport

import "testing"

func TestMockDisassemblerParsesScript(t *testing.T) {
	script := []byte("# header comment\n0x1000 2 movs r0, #1\n0x1002 2 movs r1, #2\n\n0x1004 4 adds r2, r0, r1\n")
	d := NewMockDisassembler()
	records, err := d.DisassemblyLines(script, 0, true)
	if err != nil {
		t.Fatalf("DisassemblyLines: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Address != 0x1000 || records[0].Op != "movs" || records[0].Args != "r0, #1" {
		t.Fatalf("record 0 = %+v", records[0])
	}
	if records[2].NextAddress != 0x1008 {
		t.Fatalf("record 2 NextAddress = %#x, want 0x1008", records[2].NextAddress)
	}
}

func TestMockDisassemblerRejectsMalformedLine(t *testing.T) {
	d := NewMockDisassembler()
	if _, err := d.DisassemblyLines([]byte("garbage"), 0, false); err == nil {
		t.Fatal("expected an error for a malformed line")
	}
}
