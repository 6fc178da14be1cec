package ccn

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

const (
	// ApproxSteps is the number of inner binary-GCD steps run on word
	// approximations between two full-width updates.
	ApproxSteps = unit.HalfBits - 1

	msbMask Unit = 1 << (unit.Bits - 1)
	// ApproxMaskHi and ApproxMaskLo select the parts of an approximation
	// taken from the top and from the bottom of the operand.
	ApproxMaskHi Unit = unit.Mask &^ (1<<(unit.HalfBits-1) - 1)
	ApproxMaskLo Unit = unit.LowerHalfMask >> 1
)

// Approximate builds one-unit approximations of u and v (same length): the
// top bits of the longer operand, aligned, with the low HalfBits-1 bits
// taken exactly.
func Approximate(u, v []Unit) (ua, va Unit) {
	n := len(u)
	v = v[:n]
	ua, va = u[n-1], v[n-1]

	for i := n - 2; i >= 0; i-- {
		// lzm = min(clz(ua), clz(va))
		lzm := uint(unit.Clz(ua | va | 1))

		nz := unit.HeavisideStep(ua | va)

		// s = max(lzm, 1), then s = nz ? w - s : 0
		s := lzm + uint((ua|va)>>(unit.Bits-1))
		s = (unit.Bits - s) & uint(-nz)

		ua = ua<<lzm | u[i]>>s
		va = va<<lzm | v[i]>>s
	}

	ua = ua&ApproxMaskHi | u[0]&ApproxMaskLo
	va = va&ApproxMaskHi | v[0]&ApproxMaskLo
	return ua, va
}

// AsrOne is an arithmetic right shift by s (0 or 1) of a two's complement
// update factor.
func AsrOne(f, s Unit) Unit {
	return f&msbMask | f>>s
}

// UpdateWorkspace is the scratch needed by Update for n-unit operands.
func UpdateWorkspace(n int) int {
	return 2 * (n + 1)
}

// Update sets r := |u·f + v·g| >> ApproxSteps for signed one-unit factors
// f and g and returns 1 if u·f + v·g was negative.
func Update(ws *workspace.Workspace, r, u []Unit, f Unit, v []Unit, g Unit) Unit {
	n := len(r)
	mark := ws.Mark()
	defer ws.Release(mark)

	t0 := ws.Alloc(n + 1)
	t1 := ws.Alloc(n + 1)

	fNeg := f >> (unit.Bits - 1)
	gNeg := g >> (unit.Bits - 1)

	// The multiplier has to be non-negative: negate f and u if f < 0.
	SetN(t0, u[:n])
	CondNeg(fNeg, t0, t0)
	f = (f ^ -fNeg) + fNeg

	SetN(t1, v[:n])
	CondNeg(gNeg, t1, t1)
	g = (g ^ -gNeg) + gNeg

	Mul1(t0, t0, f)
	AddMul1(t0, t1, g)

	neg := t0[n] >> (unit.Bits - 1)
	CondNeg(neg, t0, t0)

	ShiftRight(t0, t0, ApproxSteps)
	Set(r, t0)
	return neg
}

// GCDWorkspace returns the scratch units GCD needs for an n-unit result.
func GCDWorkspace(n int) int {
	return 3*n + UpdateWorkspace(n)
}

// GCD sets r to the odd part of gcd(s, t) and returns k such that
// gcd(s, t) = r·2^k. len(r) must be at least len(s) and len(t).
//
// The algorithm is a binary GCD that runs ApproxSteps iterations at a time
// on one-unit approximations of both operands, tracking the operations in a
// 2x2 matrix of update factors that is then applied to the full values. The
// iteration count depends only on len(s)+len(t).
func GCD(ws *workspace.Workspace, r, s, t []Unit) int {
	n := len(r)
	if len(s) > n || len(t) > n {
		panic("ccn: gcd result shorter than operands")
	}

	// Each step at least halves one of u, v, so the combined bit width
	// bounds the number of steps until one of them is zero.
	iterations := BitsOf(len(s) + len(t))
	outer := (iterations + ApproxSteps - 1) / ApproxSteps

	ws = workspace.Ensure(ws, GCDWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	u := ws.Alloc(n)
	v := ws.Alloc(n)
	tmp := ws.Alloc(n)

	SetN(u, s)
	SetN(v, t)

	var k Unit

	for i := 0; i < outer; i++ {
		ua, va := Approximate(u, v)

		f0, g1 := Unit(1)<<ApproxSteps, Unit(1)<<ApproxSteps
		var f1, g0 Unit

		for j := 0; j < ApproxSteps; j++ {
			bothOdd := ua & va & 1
			vLtU := ltBit(va, ua)
			vGeU := vLtU ^ 1

			// u := u - v, if both are odd and v < u.
			m := unit.FromBit(bothOdd & vLtU)
			ua -= va & m
			f0 -= f1 & m
			g0 -= g1 & m

			// v := v - u, if both are odd and v >= u.
			m = unit.FromBit(bothOdd & vGeU)
			va -= ua & m
			f1 -= f0 & m
			g1 -= g0 & m

			// Both even contributes a factor of two to the result.
			k += 1 ^ ((ua | va) & 1)

			uEven := (ua & 1) ^ 1
			vEven := (va & 1) ^ 1

			ua >>= uEven
			f0 = AsrOne(f0, uEven)
			g0 = AsrOne(g0, uEven)

			va >>= vEven
			f1 = AsrOne(f1, vEven)
			g1 = AsrOne(g1, vEven)
		}

		Update(ws, tmp, u, f0, v, g0)
		Update(ws, v, u, f1, v, g1)
		Set(u, tmp)
	}

	for i := range r {
		r[i] = u[i] | v[i]
	}
	return int(k)
}

// LCMWorkspace returns the scratch units LCM needs for n-unit operands.
func LCMWorkspace(n int) int {
	return 4*n + max(GCDWorkspace(n), DivModWorkspace(n))
}

// LCM sets r (2·n units) to lcm(s, t) for n-unit s and t. The result is
// zero if either operand is zero.
func LCM(ws *workspace.Workspace, r, s, t []Unit) error {
	n := len(s)
	if len(t) != n || len(r) != 2*n {
		return errors.WithMessage(ccerr.ErrParameter, "ccn: lcm operand sizes")
	}

	ws = workspace.Ensure(ws, LCMWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	g := ws.Alloc(n)
	prod := ws.Alloc(2 * n)
	q := ws.Alloc(n)

	if IsZero(s) || IsZero(t) {
		clear(r)
		return nil
	}

	k := GCD(ws, g, s, t)
	ShiftLeftMulti(g, g, k)

	// lcm = (s / gcd)·t
	if err := DivMod(ws, q, nil, s, g); err != nil {
		return err
	}
	MulN(prod, q, t)
	copy(r, prod)
	return nil
}
