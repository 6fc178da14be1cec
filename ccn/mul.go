package ccn

import "math/bits"

// Mul1 sets r := a·v and returns the high unit.
func Mul1(r, a []Unit, v Unit) Unit {
	a = a[:len(r)]
	var c Unit
	for i := range r {
		hi, lo := bits.Mul(a[i], v)
		lo, cc := bits.Add(lo, c, 0)
		r[i] = lo
		c = hi + cc
	}
	return c
}

// AddMul1 sets r := r + a·v and returns the high unit.
func AddMul1(r, a []Unit, v Unit) Unit {
	a = a[:len(r)]
	var c Unit
	for i := range r {
		hi, lo := bits.Mul(a[i], v)
		lo, cc := bits.Add(lo, c, 0)
		hi += cc
		lo, cc = bits.Add(lo, r[i], 0)
		r[i] = lo
		c = hi + cc
	}
	return c
}

// Mul sets r := a·b where len(r) == 2·len(a) == 2·len(b). r must not alias
// a or b.
func Mul(r, a, b []Unit) {
	n := len(a)
	r = r[:2*n]
	b = b[:n]
	r[n] = Mul1(r[:n], a, b[0])
	for i := 1; i < n; i++ {
		r[n+i] = AddMul1(r[i:n+i], a, b[i])
	}
}

// Sqr sets r := a². r must not alias a.
func Sqr(r, a []Unit) {
	Mul(r, a, a)
}

// MulN sets r := a·b for operands of any lengths; len(r) must be
// len(a)+len(b).
func MulN(r, a, b []Unit) {
	na := len(a)
	r = r[:na+len(b)]
	clear(r)
	for i, w := range b {
		r[na+i] = AddMul1(r[i:na+i], a, w)
	}
}
