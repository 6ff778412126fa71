// Package shifter implements the ARM barrel shifter as a set of pure
// functions, each returning the shifted value together with the carry
// bit it would feed into the condition flags.
package shifter

// LSL performs a logical shift left. A zero amount is a no-op on the
// value and reports carry 0 — callers write that straight into C,
// clearing it, matching this shifter family's source.
func LSL(value uint32, amount uint32) (result uint32, carry uint32) {
	amount &= 31
	if amount == 0 {
		return value, 0
	}
	wide := uint64(value) << amount
	return uint32(wide), uint32((wide >> 32) & 1)
}

// LSR performs a logical shift right.
func LSR(value uint32, amount uint32) (result uint32, carry uint32) {
	amount &= 31
	if amount == 0 {
		return value, 0
	}
	return value >> amount, (value >> (amount - 1)) & 1
}

// ASR performs an arithmetic (sign-extending) shift right.
func ASR(value uint32, amount uint32) (result uint32, carry uint32) {
	amount &= 31
	if amount == 0 {
		return value, 0
	}
	wide := int64(int32(value))
	return uint32(wide >> amount), uint32((value >> (amount - 1)) & 1)
}

// ROR rotates right.
func ROR(value uint32, amount uint32) (result uint32, carry uint32) {
	amount &= 31
	if amount == 0 {
		return value, 0
	}
	result = (value >> amount) | (value << (32 - amount))
	carry = (value >> (amount - 1)) & 1
	return result, carry
}

// ROL rotates left.
func ROL(value uint32, amount uint32) (result uint32, carry uint32) {
	amount &= 31
	if amount == 0 {
		return value, 0
	}
	result = (value >> (32 - amount)) | (value << amount)
	carry = (value >> (32 - amount)) & 1
	return result, carry
}

// RRX rotates right through carry, treating carryIn as a 33rd bit.
func RRX(value uint32, amount uint32, carryIn uint32) (result uint32, carry uint32) {
	amount &= 31
	wide := uint64(value) | (uint64(carryIn&1) << 32)
	wide = (wide >> amount) | (wide << (33 - amount))
	return uint32(wide), uint32((wide >> 32) & 1)
}
