package cczp

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// SqrtWorkspace returns the scratch units Sqrt needs.
func SqrtWorkspace(n int) int {
	return 5*n + max(PowerFastWorkspace(n), MulWorkspace(n))
}

// IsQuadraticResidueWorkspace returns the scratch units IsQuadraticResidue
// needs.
func IsQuadraticResidueWorkspace(n int) int {
	return n + PowerWorkspace(n)
}

// Sqrt sets r to a square root of x mod p, for prime p. Both x and r are in
// the ring representation. It fails with ccerr.ErrNotSquare, zeroing r, if
// x is not a square.
//
// For p ≡ 3 (mod 4) the root is x^((p+1)/4). Otherwise a constant-time
// Tonelli-Shanks variant runs a fixed number of squarings determined by the
// 2-adic valuation of p-1. Either way the candidate is squared and compared
// with x before it is returned.
func (zp *ZP) Sqrt(ws *workspace.Workspace, r, x []Unit) error {
	n := zp.n
	if err := zp.CheckElement(x[:min(len(x), n)]); err != nil {
		clear(r[:n])
		return err
	}
	if zp.sqrtExp == nil && !zp.hasTSSqrt {
		clear(r[:n])
		return errors.WithMessage(ccerr.ErrParameter, "cczp: no square root for this modulus")
	}

	ws = workspace.Ensure(ws, SqrtWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	z := ws.Alloc(n)
	if zp.sqrtExp != nil {
		if err := zp.PowerFast(ws, z, x, zp.sqrtExp); err != nil {
			clear(r[:n])
			return err
		}
	} else if err := zp.tonelliShanks(ws, z, x); err != nil {
		clear(r[:n])
		return err
	}

	// Verify z² = x.
	check := ws.Alloc(n)
	zp.Sqr(ws, check, z)
	if !zp.Equal(check, x) {
		clear(r[:n])
		return errors.WithMessage(ccerr.ErrNotSquare, "cczp: sqrt")
	}
	ccn.Set(r[:n], z)
	return nil
}

// tonelliShanks follows the constant-time Tonelli-Shanks of RFC 9380,
// appendix I.4.
func (zp *ZP) tonelliShanks(ws *workspace.Workspace, z, x []Unit) error {
	n := zp.n
	mark := ws.Mark()
	defer ws.Release(mark)

	t := ws.Alloc(n)
	b := ws.Alloc(n)
	c := ws.Alloc(n)
	tmp := ws.Alloc(n)

	// z = x^c3, t = z²·x, z = z·x, b = t, c = c5
	if err := zp.PowerFast(ws, z, x, zp.tsC3); err != nil {
		return err
	}
	zp.Sqr(ws, t, z)
	zp.Mul(ws, t, t, x)
	zp.Mul(ws, z, z, x)
	ccn.Set(b, t)
	ccn.Set(c, zp.tsC5)

	for k := zp.tsC1; k >= 2; k-- {
		for j := 1; j <= k-2; j++ {
			zp.Sqr(ws, b, b)
		}
		isOne := equalBit(b, zp.one)

		// z = b == 1 ? z : z·c
		zp.Mul(ws, tmp, z, c)
		ccn.Mux(isOne, z, z, tmp)

		zp.Sqr(ws, c, c)

		// t = b == 1 ? t : t·c
		zp.Mul(ws, tmp, t, c)
		ccn.Mux(isOne, t, t, tmp)

		ccn.Set(b, t)
	}
	return nil
}

// equalBit returns 1 if a == b.
func equalBit(a, b []Unit) Unit {
	b = b[:len(a)]
	var acc Unit
	for i := range a {
		acc |= a[i] ^ b[i]
	}
	return unit.HeavisideStep(acc) ^ 1
}

// IsQuadraticResidue reports whether the nonzero x is a square mod p, by
// Euler's criterion. x is in the ring representation. Zero is rejected
// since it is neither a residue nor a non-residue.
func (zp *ZP) IsQuadraticResidue(ws *workspace.Workspace, x []Unit) (bool, error) {
	n := zp.n
	if err := zp.CheckElement(x[:min(len(x), n)]); err != nil {
		return false, err
	}
	if ccn.IsZero(x[:n]) {
		return false, errors.WithMessage(ccerr.ErrParameter, "cczp: quadratic residuosity of zero")
	}

	ws = workspace.Ensure(ws, IsQuadraticResidueWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	t := ws.Alloc(n)
	if err := zp.Power(ws, t, x, zp.bitlen, zp.halfPm1); err != nil {
		return false, err
	}
	return zp.IsOne(t), nil
}
