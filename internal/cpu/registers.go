// Package cpu implements the register file, condition flags, operation
// factories, and step driver of the simulated machine.
package cpu

import "github.com/coastermelt/armsim/internal/armreg"

// Registers holds the 16 general registers and the four condition
// flags. It implements operand.RegisterSource so parsed operands can
// evaluate themselves directly against it.
type Registers struct {
	r [16]uint32

	N, Z, C, V bool
	Thumb      bool

	StepCount uint64
}

// Get returns a register's value, satisfying operand.RegisterSource.
func (r *Registers) Get(index uint8) uint32 { return r.r[index] }

// Carry satisfies operand.RegisterSource.
func (r *Registers) Carry() bool { return r.C }

// Set writes a register's value.
func (r *Registers) Set(index uint8, value uint32) { r.r[index] = value }

// PC returns the raw program counter value (no architectural offset).
func (r *Registers) PC() uint32 { return r.r[armreg.PC] }

// SetPC sets the program counter directly.
func (r *Registers) SetPC(v uint32) { r.r[armreg.PC] = v }

// SP returns the stack pointer.
func (r *Registers) SP() uint32 { return r.r[armreg.SP] }

// SetSP sets the stack pointer.
func (r *Registers) SetSP(v uint32) { r.r[armreg.SP] = v }

// LR returns the link register.
func (r *Registers) LR() uint32 { return r.r[armreg.LR] }

// SetLR sets the link register.
func (r *Registers) SetLR(v uint32) { r.r[armreg.LR] = v }

// Reset zeroes all registers and flags, then sets pc/thumb from a
// vector whose low bit selects ISA mode, and lr to the simulator's
// sentinel return address.
func (r *Registers) Reset(vector uint32) {
	*r = Registers{}
	r.r[armreg.PC] = vector &^ 1
	r.Thumb = vector&1 != 0
	r.r[armreg.LR] = 0xFFFFFFFF
}

// FlagsString renders the NZCV flags the way the reference debugger's
// log lines do: uppercase when set, lowercase when clear.
func (r *Registers) FlagsString() string {
	buf := [4]byte{'n', 'z', 'c', 'v'}
	if r.N {
		buf[0] = 'N'
	}
	if r.Z {
		buf[1] = 'Z'
	}
	if r.C {
		buf[2] = 'C'
	}
	if r.V {
		buf[3] = 'V'
	}
	return string(buf[:])
}

// CopyFrom overwrites this register file with another's contents,
// without touching StepCount — mirroring copy_registers_from in the
// source this simulator is modeled on (used to snapshot/restore state
// around speculative execution such as HLE probing).
func (r *Registers) CopyFrom(other *Registers) {
	r.r = other.r
	r.N, r.Z, r.C, r.V = other.N, other.Z, other.C, other.V
	r.Thumb = other.Thumb
}
