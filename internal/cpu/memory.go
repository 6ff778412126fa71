package cpu

import "github.com/coastermelt/armsim/internal/instr"

// Hook is a user callback attached to a PC address. Hooks run after
// both the instruction's opfunc and any HLE handler it carries.
type Hook func(s *Simulator)

// Memory is the narrow interface the step driver needs from the
// memory proxy: fetch for instructions, load/store for data, flush to
// force any pending write-combining to materialise before an
// observable boundary, hook lookup, and HLE dispatch. The concrete
// implementation lives in package memory; cpu depends only on this
// interface so the two packages don't import each other.
type Memory interface {
	Load(address uint32) (uint32, error)
	LoadHalf(address uint32) (uint16, error)
	LoadByte(address uint32) (uint8, error)

	Store(address uint32, value uint32) error
	StoreHalf(address uint32, value uint16) error
	StoreByte(address uint32, value uint8) error

	Fetch(address uint32, thumb bool) (*instr.Record, error)
	Flush() error

	HookFor(pc uint32) (Hook, bool)
	InvokeHLE(rec *instr.Record, r0 uint32) (uint32, error)
}
