package operand

import "testing"

type fakeRegs struct {
	regs  [16]uint32
	carry bool
}

func (f fakeRegs) Get(i uint8) uint32 { return f.regs[i] }
func (f fakeRegs) Carry() bool        { return f.carry }

func TestParseOperandImmediate(t *testing.T) {
	o, err := ParseOperand("#42")
	if err != nil {
		t.Fatal(err)
	}
	if o.Kind != KindImmediate || o.Immediate != 42 {
		t.Fatalf("got %+v", o)
	}
	o, err = ParseOperand("#0x2a")
	if err != nil || o.Immediate != 42 {
		t.Fatalf("hex immediate: got %+v, err %v", o, err)
	}
}

func TestParseOperandRegister(t *testing.T) {
	o, err := ParseOperand("r3")
	if err != nil {
		t.Fatal(err)
	}
	if o.Kind != KindRegister || o.Register != 3 {
		t.Fatalf("got %+v", o)
	}
	o, err = ParseOperand("sp")
	if err != nil || o.Register != 13 {
		t.Fatalf("sp alias: got %+v, err %v", o, err)
	}
}

func TestParseOperandShiftedRegisterExplicit(t *testing.T) {
	o, err := ParseOperand("r0, lsl #1")
	if err != nil {
		t.Fatal(err)
	}
	if o.Kind != KindShiftedRegister || o.ShiftOp != ShiftLSL || o.ShiftAmount.Immediate != 1 {
		t.Fatalf("got %+v", o)
	}
	regs := fakeRegs{regs: [16]uint32{0: 0x80000000}}
	v, carry := o.Eval(regs)
	if v != 0 || carry != 1 {
		t.Fatalf("Eval = (%#x, %d), want (0, 1)", v, carry)
	}
}

func TestParseOperandImplicitROR(t *testing.T) {
	// A shift operand with no recognised op name implies ROR.
	o, err := ParseOperand("r1, #4")
	if err != nil {
		t.Fatal(err)
	}
	if o.ShiftOp != ShiftROR {
		t.Fatalf("expected implicit ROR, got %v", o.ShiftOp)
	}
}

func TestParseAddressPreIndexed(t *testing.T) {
	o, err := ParseAddress("[r0, #4]")
	if err != nil {
		t.Fatal(err)
	}
	regs := fakeRegs{regs: [16]uint32{0: 0x1000}}
	eff, _ := o.EvalAddress(regs)
	if eff != 0x1004 {
		t.Fatalf("effective address = %#x, want 0x1004", eff)
	}
}

func TestParseAddressPostIndexed(t *testing.T) {
	o, err := ParseAddress("[r0], #4")
	if err != nil {
		t.Fatal(err)
	}
	regs := fakeRegs{regs: [16]uint32{0: 0x1000}}
	eff, off := o.EvalAddress(regs)
	if eff != 0x1000 || off != 4 {
		t.Fatalf("post-indexed Eval = (%#x, %d), want (0x1000, 4)", eff, off)
	}
}

func TestParseAddressNegativeOffset(t *testing.T) {
	o, err := ParseAddress("[r0, -r1]")
	if err != nil {
		t.Fatal(err)
	}
	regs := fakeRegs{regs: [16]uint32{0: 0x1000, 1: 4}}
	eff, _ := o.EvalAddress(regs)
	if eff != 0x0ffc {
		t.Fatalf("effective address = %#x, want 0xffc", eff)
	}
}

func TestParseAddressBareHasNoOffset(t *testing.T) {
	o, err := ParseAddress("[r0]")
	if err != nil {
		t.Fatal(err)
	}
	if o.Address.HasOffset {
		t.Fatalf("bare [Rn] should have no offset")
	}
}

func TestParseRegisterList(t *testing.T) {
	l, err := ParseRegisterList("{r0, r1, r2}")
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{0, 1, 2}
	if len(l.Registers) != len(want) {
		t.Fatalf("got %v, want %v", l.Registers, want)
	}
	for i, r := range want {
		if l.Registers[i] != r {
			t.Fatalf("got %v, want %v", l.Registers, want)
		}
	}
}

func TestParseRegisterListRange(t *testing.T) {
	l, err := ParseRegisterList("{r4-r6, lr}")
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{4, 5, 6, 14}
	if len(l.Registers) != len(want) {
		t.Fatalf("got %v, want %v", l.Registers, want)
	}
}

func TestSplitArgsRespectsBrackets(t *testing.T) {
	got := SplitArgs("r0, [r1, r2], #4")
	want := []string{"r0", "[r1, r2]", "#4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
