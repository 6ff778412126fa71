// Package armreg names the 16 general registers of the simulated
// machine and their procedure-call-standard aliases, shared by the
// operand parser and the register file so both agree on numbering.
package armreg

import "strings"

const (
	SP = 13
	LR = 14
	PC = 15
)

var canonical = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

// aliases maps every alternate spelling to its register index.
var aliases = map[string]uint8{
	"a1": 0, "a2": 1, "a3": 2, "a4": 3,
	"v1": 4, "v2": 5, "v3": 6, "v4": 7, "v5": 8,
	"sb": 9, "sl": 10, "fp": 11, "ip": 12,
	"sp": 13, "lr": 14, "pc": 15,
}

// Index resolves a register name (canonical "r0".."r15" or an alias)
// to its index. Matching is case-insensitive.
func Index(name string) (uint8, bool) {
	name = strings.ToLower(name)
	if n, ok := aliases[name]; ok {
		return n, true
	}
	if len(name) >= 2 && len(name) <= 3 && name[0] == 'r' {
		v := uint8(0)
		for _, ch := range name[1:] {
			if ch < '0' || ch > '9' {
				return 0, false
			}
			v = v*10 + uint8(ch-'0')
		}
		if v <= 15 {
			return v, true
		}
	}
	return 0, false
}

// Name returns the canonical name for a register index.
func Name(index uint8) string {
	if int(index) < len(canonical) {
		return canonical[index]
	}
	return "?"
}
