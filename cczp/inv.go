package cczp

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// InvWorkspace returns the scratch units Inv needs with either inverter.
func InvWorkspace(n int) int {
	gcd := 5*n + max(MulWorkspace(n), ccn.UpdateWorkspace(n), 2*n+1)
	return max(gcd, PowerWorkspace(n))
}

// Inv sets r := x⁻¹ mod p. x must be below p. It fails with
// ccerr.ErrNoInverse when gcd(x, p) ≠ 1, which includes x = 0; r is zeroed
// on failure.
func (zp *ZP) Inv(ws *workspace.Workspace, r, x []Unit) error {
	if err := zp.CheckElement(x); err != nil {
		clear(r[:zp.n])
		return err
	}
	if zp.inverter == Fermat {
		return zp.invFermat(ws, r, x)
	}
	return zp.invBinaryGCD(ws, r, x)
}

// InvField sets r := x⁻¹ mod p as x^(p-2), regardless of the configured
// inverter. p must be prime.
func (zp *ZP) InvField(ws *workspace.Workspace, r, x []Unit) error {
	if err := zp.CheckElement(x); err != nil {
		clear(r[:zp.n])
		return err
	}
	return zp.invFermat(ws, r, x)
}

// invFermat computes x^(p-2), which is only an inverse for prime p.
func (zp *ZP) invFermat(ws *workspace.Workspace, r, x []Unit) error {
	if err := zp.Power(ws, r, x, zp.bitlen, zp.pMinus2); err != nil {
		return err
	}
	if ccn.IsZero(r[:zp.n]) {
		return errors.WithMessage(ccerr.ErrNoInverse, "cczp: inverse of zero")
	}
	return nil
}

// invBinaryGCD runs a binary extended GCD on (x, p) with a fixed iteration
// count. The inner loop works on one-unit approximations of u and v and
// records its steps in the update factors (f0 g0; f1 g1); every ApproxSteps
// steps those are applied to the full-width u, v and to the coefficients a,
// b, which keep u ≡ a·x and v ≡ b·x (mod p).
func (zp *ZP) invBinaryGCD(ws *workspace.Workspace, r, x []Unit) error {
	n := zp.n
	iterations := ccn.BitsOf(2 * n)
	outer := (iterations + ccn.ApproxSteps - 1) / ccn.ApproxSteps

	ws = workspace.Ensure(ws, InvWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	u := ws.Alloc(n)
	v := ws.Alloc(n)
	zp.From(ws, u, x)
	ccn.Set(v, zp.p)

	a := ws.Alloc(n)
	b := ws.Alloc(n)
	ccn.SetI(a, 1)
	ccn.Clear(b)

	tmp := ws.Alloc(n)

	for i := 0; i < outer; i++ {
		ua, va := ccn.Approximate(u, v)

		f0, g1 := Unit(1)<<ccn.ApproxSteps, Unit(1)<<ccn.ApproxSteps
		var f1, g0 Unit

		for j := 0; j < ccn.ApproxSteps; j++ {
			uEven := (ua & 1) ^ 1
			ua >>= uEven

			uOdd := uEven ^ 1
			swap := unit.FromBit(unit.ToBit(unit.Lt(ua, va)) & uOdd)
			ua, va = unit.Select(swap, va, ua), unit.Select(swap, ua, va)
			f0, f1 = unit.Select(swap, f1, f0), unit.Select(swap, f0, f1)
			g0, g1 = unit.Select(swap, g1, g0), unit.Select(swap, g0, g1)

			// u := (u - v)/2 when u was odd.
			m := unit.FromBit(uOdd)
			ua -= va & m
			ua >>= uOdd

			f0 -= f1 & m
			g0 -= g1 & m

			f0 = ccn.AsrOne(f0, 1)
			g0 = ccn.AsrOne(g0, 1)
		}

		negA := ccn.Update(ws, tmp, u, f0, v, g0)
		negB := ccn.Update(ws, v, u, f1, v, g1)
		ccn.Set(u, tmp)

		// Update returned |u|, |v|; flip the factors to match.
		ma, mb := unit.FromBit(negA), unit.FromBit(negB)
		f0 = unit.Select(ma, -f0, f0)
		g0 = unit.Select(ma, -g0, g0)
		f1 = unit.Select(mb, -f1, f1)
		g1 = unit.Select(mb, -g1, g1)

		zp.invUpdateRedc(ws, tmp, a, f0, b, g0)
		zp.invUpdateRedc(ws, b, a, f1, b, g1)
		ccn.Set(a, tmp)
	}

	if !ccn.IsOne(v) {
		clear(r[:n])
		return errors.WithMessage(ccerr.ErrNoInverse, "cczp: inverse")
	}
	zp.To(ws, r, b)
	return nil
}

// invUpdateRedc sets r := (a·f + b·g)/2^ApproxSteps mod p, dividing with a
// partial Montgomery reduction.
func (zp *ZP) invUpdateRedc(ws *workspace.Workspace, r, a []Unit, f Unit, b []Unit, g Unit) {
	n := zp.n
	mark := ws.Mark()
	defer ws.Release(mark)

	t0 := ws.Alloc(n + 1)
	t1 := ws.Alloc(n)

	fNeg := f >> (unit.Bits - 1)
	gNeg := g >> (unit.Bits - 1)

	// The multiplier has to be non-negative.
	zp.CondNegate(fNeg, t0[:n], a)
	f = (f ^ -fNeg) + fNeg

	zp.CondNegate(gNeg, t1, b)
	g = (g ^ -gNeg) + gNeg

	t0[n] = ccn.Mul1(t0[:n], t0[:n], f)
	t0[n] += ccn.AddMul1(t0[:n], t1, g)

	t0[n] += ccn.AddMul1(t0[:n], zp.p, (t0[0]*zp.p0inv)&ccn.ApproxMaskLo)
	ccn.ShiftRight(t0, t0, ccn.ApproxSteps)
	ccn.Set(r[:n], t0)

	// t0 < 2p here.
	borrow := ccn.SubN(t0, t0, zp.p)
	ccn.Mux(borrow, r[:n], r, t0)
}
