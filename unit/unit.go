// Package unit provides branch-free primitives over a single machine word.
//
// Every predicate returns a mask that is either all ones or all zeros so the
// result can be combined with AND/OR instead of being branched on.
package unit

import "math/bits"

type Unit = uint

const (
	Bits     = bits.UintSize
	HalfBits = Bits / 2
	Bytes    = Bits / 8

	Mask          Unit = ^Unit(0)
	LowerHalfMask Unit = Mask >> HalfBits
)

// Msb returns all ones if the top bit of a is set.
func Msb(a Unit) Unit {
	return -(a >> (Bits - 1))
}

func IsZero(a Unit) Unit {
	// (a | -a) has its top bit set iff a != 0.
	return ^Msb(a | -a)
}

func Eq(a, b Unit) Unit {
	return IsZero(a ^ b)
}

func Neq(a, b Unit) Unit {
	return ^Eq(a, b)
}

// Lt returns all ones if a < b.
func Lt(a, b Unit) Unit {
	_, borrow := bits.Sub(a, b, 0)
	return -borrow
}

func Gt(a, b Unit) Unit {
	return Lt(b, a)
}

func Lte(a, b Unit) Unit {
	return ^Lt(b, a)
}

func Gte(a, b Unit) Unit {
	return ^Lt(a, b)
}

// Select returns a if mask is all ones and b if mask is zero. Any other mask
// yields garbage.
func Select(mask, a, b Unit) Unit {
	return (mask & a) | (^mask & b)
}

// FromBit expands a 0/1 value into a mask.
func FromBit(bit Unit) Unit {
	return -(bit & 1)
}

// ToBit collapses a mask into 0/1.
func ToBit(mask Unit) Unit {
	return mask & 1
}

// HeavisideStep returns 1 if x != 0 and 0 otherwise.
func HeavisideStep(x Unit) Unit {
	return (x | -x) >> (Bits - 1)
}

// Clz counts leading zeros; bits.LeadingZeros is a single instruction on
// the supported targets.
func Clz(x Unit) int {
	return bits.LeadingZeros(x)
}

// MulHi returns the upper word of x*y.
func MulHi(x, y Unit) Unit {
	hi, _ := bits.Mul(x, y)
	return hi
}
