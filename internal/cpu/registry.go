package cpu

import (
	"fmt"
	"sync"

	"github.com/coastermelt/armsim/internal/instr"
)

// Factory parses an instruction's operands once and returns the
// zero-argument thunk that executes it, closing over pre-resolved
// register indices rather than re-parsing the operand string on every
// step.
type Factory func(s *Simulator, rec *instr.Record) (instr.OpFunc, error)

var baseFactories = map[string]Factory{}

// registerBase registers a base mnemonic (including any literal "s"
// flags-setting suffix, e.g. "movs") with its factory. Called from
// init() in each ops file, matching the self-registering pattern this
// module's ambient stack uses elsewhere.
func registerBase(name string, f Factory) {
	if _, exists := baseFactories[name]; exists {
		panic("cpu: duplicate base mnemonic registration: " + name)
	}
	baseFactories[name] = f
}

type binding struct {
	factory Factory
	cond    instr.Condition
}

var (
	dispatch     map[string]binding
	dispatchOnce sync.Once
)

// compileDispatch folds every (base mnemonic × condition suffix)
// combination into one lookup table, built once. This is where the 15
// conditions (17 suffix strings, counting the hs/lo aliases, plus the
// bare form) per mnemonic are represented — never as physically
// distinct closures; the factory itself still runs exactly
// once per cached instruction regardless of how many string keys
// resolve to it.
func compileDispatch() {
	dispatch = make(map[string]binding, len(baseFactories)*17)
	for name, f := range baseFactories {
		dispatch[name] = binding{factory: f, cond: instr.AL}
		for _, suffix := range instr.Suffixes() {
			cond, _ := instr.ConditionFromSuffix(suffix)
			dispatch[name+suffix] = binding{factory: f, cond: cond}
		}
	}
}

// lookup resolves a raw mnemonic (as given by the disassembler, with
// any trailing ".n" Thumb near-branch marker already stripped by the
// caller) to its factory and condition.
func lookup(mnemonic string) (Factory, instr.Condition, error) {
	dispatchOnce.Do(compileDispatch)
	b, ok := dispatch[mnemonic]
	if !ok {
		return nil, 0, &UnknownMnemonicError{Mnemonic: mnemonic}
	}
	return b.factory, b.cond, nil
}

// UnknownMnemonicError is returned when no op_<mnemonic> factory is
// registered for an instruction.
type UnknownMnemonicError struct {
	Mnemonic string
}

func (e *UnknownMnemonicError) Error() string {
	return fmt.Sprintf("cpu: no operation factory registered for mnemonic %q", e.Mnemonic)
}
