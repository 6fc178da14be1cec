// Package ccn implements fixed-width multi-precision unsigned integers.
//
// An integer is a little-endian []unit.Unit; its length is the public word
// count n and never changes. Unless noted otherwise every routine runs in
// time that depends on the slice lengths only, never on the values, and the
// output may alias any input. Condition arguments are 0 or 1.
package ccn

import (
	"math/bits"

	"github.com/moonfruit/go-corecrypto/unit"
)

type Unit = unit.Unit

// Nof returns the number of units needed for nbits bits.
func Nof(nbits int) int {
	return (nbits + unit.Bits - 1) / unit.Bits
}

// NofBytes returns the number of units needed for nbytes bytes.
func NofBytes(nbytes int) int {
	return (nbytes + unit.Bytes - 1) / unit.Bytes
}

// BitsOf returns the number of bits in n units.
func BitsOf(n int) int {
	return n * unit.Bits
}

func Set(r, a []Unit) {
	copy(r, a[:len(r)])
}

// SetN copies a into r and zero-extends it. len(a) must not exceed len(r).
func SetN(r, a []Unit) {
	copy(r, a)
	clear(r[len(a):])
}

// SetI sets r to the single-unit value v.
func SetI(r []Unit, v Unit) {
	clear(r)
	r[0] = v
}

func Clear(r []Unit) {
	clear(r)
}

// CondClear zeroes r if s is 1.
func CondClear(s Unit, r []Unit) {
	m := ^unit.FromBit(s)
	for i := range r {
		r[i] &= m
	}
}

// IsZeroBit returns 1 if a is zero.
func IsZeroBit(a []Unit) Unit {
	var acc Unit
	for _, w := range a {
		acc |= w
	}
	return unit.HeavisideStep(acc) ^ 1
}

func IsZero(a []Unit) bool {
	return IsZeroBit(a) == 1
}

// IsOneBit returns 1 if a is one.
func IsOneBit(a []Unit) Unit {
	acc := a[0] ^ 1
	for _, w := range a[1:] {
		acc |= w
	}
	return unit.HeavisideStep(acc) ^ 1
}

func IsOne(a []Unit) bool {
	return IsOneBit(a) == 1
}

func IsZeroOrOne(a []Unit) bool {
	acc := a[0] >> 1
	for _, w := range a[1:] {
		acc |= w
	}
	return acc == 0
}

// Mux sets r := a if s is 1 and r := b otherwise.
func Mux(s Unit, r, a, b []Unit) {
	m := unit.FromBit(s)
	a, b = a[:len(r)], b[:len(r)]
	for i := range r {
		r[i] = b[i] ^ ((a[i] ^ b[i]) & m)
	}
}

// CondSwap exchanges a and b if s is 1.
func CondSwap(s Unit, a, b []Unit) {
	m := unit.FromBit(s)
	b = b[:len(a)]
	for i := range a {
		t := (a[i] ^ b[i]) & m
		a[i] ^= t
		b[i] ^= t
	}
}

// CondNeg sets r := -a mod 2^(w·n) if s is 1 and r := a otherwise.
func CondNeg(s Unit, r, a []Unit) {
	m := unit.FromBit(s)
	a = a[:len(r)]
	c := s & 1
	for i := range r {
		r[i], c = bits.Add(a[i]^m, 0, c)
	}
}

// Cmp returns -1, 0 or 1. The scan always covers every unit.
func Cmp(a, b []Unit) int {
	b = b[:len(a)]
	var gt, lt Unit
	for i := range a {
		ne := unit.Neq(a[i], b[i])
		g := unit.Gt(a[i], b[i])
		gt = unit.Select(ne, g&1, gt)
		lt = unit.Select(ne, ^g&1, lt)
	}
	return int(gt) - int(lt)
}

// CmpN compares integers of different lengths.
func CmpN(a, b []Unit) int {
	n := max(len(a), len(b))
	var gt, lt Unit
	for i := 0; i < n; i++ {
		var x, y Unit
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		ne := unit.Neq(x, y)
		g := unit.Gt(x, y)
		gt = unit.Select(ne, g&1, gt)
		lt = unit.Select(ne, ^g&1, lt)
	}
	return int(gt) - int(lt)
}

// Equal reports whether a == b in constant time.
func Equal(a, b []Unit) bool {
	b = b[:len(a)]
	var acc Unit
	for i := range a {
		acc |= a[i] ^ b[i]
	}
	return acc == 0
}

// Add sets r := a + b and returns the carry.
func Add(r, a, b []Unit) Unit {
	a, b = a[:len(r)], b[:len(r)]
	var c Unit
	for i := range r {
		r[i], c = bits.Add(a[i], b[i], c)
	}
	return c
}

// Sub sets r := a - b and returns the borrow.
func Sub(r, a, b []Unit) Unit {
	a, b = a[:len(r)], b[:len(r)]
	var c Unit
	for i := range r {
		r[i], c = bits.Sub(a[i], b[i], c)
	}
	return c
}

// Add1 sets r := a + v.
func Add1(r, a []Unit, v Unit) Unit {
	a = a[:len(r)]
	c := v
	for i := range r {
		r[i], c = bits.Add(a[i], c, 0)
	}
	return c
}

// Sub1 sets r := a - v.
func Sub1(r, a []Unit, v Unit) Unit {
	a = a[:len(r)]
	c := v
	for i := range r {
		r[i], c = bits.Sub(a[i], c, 0)
	}
	return c
}

// AddN sets r := a + b where b may be shorter than a.
func AddN(r, a, b []Unit) Unit {
	nb := len(b)
	c := Add(r[:nb], a[:nb], b)
	return Add1(r[nb:], a[nb:len(r)], c)
}

// SubN sets r := a - b where b may be shorter than a.
func SubN(r, a, b []Unit) Unit {
	nb := len(b)
	c := Sub(r[:nb], a[:nb], b)
	return Sub1(r[nb:], a[nb:len(r)], c)
}

// CondAdd sets r := a + b if s is 1 and r := a otherwise; returns the carry
// of the addition actually performed.
func CondAdd(s Unit, r, a, b []Unit) Unit {
	m := unit.FromBit(s)
	a, b = a[:len(r)], b[:len(r)]
	var c Unit
	for i := range r {
		r[i], c = bits.Add(a[i], b[i]&m, c)
	}
	return c
}

// CondSub sets r := a - b if s is 1 and r := a otherwise.
func CondSub(s Unit, r, a, b []Unit) Unit {
	m := unit.FromBit(s)
	a, b = a[:len(r)], b[:len(r)]
	var c Unit
	for i := range r {
		r[i], c = bits.Sub(a[i], b[i]&m, c)
	}
	return c
}

// ShiftRight sets r := a >> k for 0 <= k < unit.Bits. A shift by the full
// word width yields zero in Go, which covers k == 0 without a branch.
func ShiftRight(r, a []Unit, k uint) {
	n := len(r)
	a = a[:n]
	for i := 0; i < n-1; i++ {
		r[i] = a[i]>>k | a[i+1]<<(unit.Bits-k)
	}
	r[n-1] = a[n-1] >> k
}

// ShiftLeft sets r := a << k mod 2^(w·n) for 0 <= k < unit.Bits.
func ShiftLeft(r, a []Unit, k uint) {
	n := len(r)
	a = a[:n]
	for i := n - 1; i > 0; i-- {
		r[i] = a[i]<<k | a[i-1]>>(unit.Bits-k)
	}
	r[0] = a[0] << k
}

// ShiftRightMulti shifts by any public k.
func ShiftRightMulti(r, a []Unit, k int) {
	n := len(r)
	words := k / unit.Bits
	if words >= n {
		clear(r)
		return
	}
	copy(r, a[words:n])
	clear(r[n-words:])
	ShiftRight(r, r, uint(k%unit.Bits))
}

// ShiftLeftMulti shifts by any public k.
func ShiftLeftMulti(r, a []Unit, k int) {
	n := len(r)
	words := k / unit.Bits
	if words >= n {
		clear(r)
		return
	}
	copy(r[words:], a[:n-words])
	clear(r[:words])
	ShiftLeft(r, r, uint(k%unit.Bits))
}

// CondShiftRight sets r := a >> k if s is 1 and r := a otherwise.
func CondShiftRight(s Unit, r, a []Unit, k uint) {
	CondShiftRightCarry(s, r, a, k, 0)
}

// CondShiftRightCarry behaves like CondShiftRight but shifts the low k bits
// of c in at the top.
func CondShiftRightCarry(s Unit, r, a []Unit, k uint, c Unit) {
	n := len(r)
	a = a[:n]
	m := unit.FromBit(s)
	sh := uint(Unit(k) & m)
	for i := 0; i < n-1; i++ {
		r[i] = a[i]>>sh | a[i+1]<<(unit.Bits-sh)
	}
	r[n-1] = a[n-1]>>sh | c<<(unit.Bits-sh)
}

// Bit returns bit i of a; bits past the end read as zero.
func Bit(a []Unit, i int) Unit {
	w := i / unit.Bits
	if i < 0 || w >= len(a) {
		return 0
	}
	return (a[w] >> (uint(i) % unit.Bits)) & 1
}

// SetBit sets bit i of a to v.
func SetBit(a []Unit, i int, v Unit) {
	w := i / unit.Bits
	b := uint(i) % unit.Bits
	a[w] = a[w]&^(1<<b) | (v&1)<<b
}

// Bitlen returns the position of the highest set bit plus one.
func Bitlen(a []Unit) int {
	var bl Unit
	for i, w := range a {
		nz := unit.FromBit(unit.HeavisideStep(w))
		l := Unit(i*unit.Bits + unit.Bits - unit.Clz(w))
		bl = unit.Select(nz, l, bl)
	}
	return int(bl)
}

// N returns the number of significant units of a.
func N(a []Unit) int {
	var n Unit
	for i, w := range a {
		nz := unit.FromBit(unit.HeavisideStep(w))
		n = unit.Select(nz, Unit(i+1), n)
	}
	return int(n)
}

// TrailingZeros returns the number of trailing zero bits; zero for a = 0.
func TrailingZeros(a []Unit) int {
	var tz, done Unit
	for i, w := range a {
		nz := unit.FromBit(unit.HeavisideStep(w))
		t := Unit(i*unit.Bits + bits.TrailingZeros(w))
		tz = unit.Select(nz&^done, t, tz)
		done |= nz
	}
	return int(tz)
}
