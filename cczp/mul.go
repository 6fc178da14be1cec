package cczp

import (
	"math/bits"

	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// MulWorkspace returns the scratch units Mul, Sqr, Mod and To need.
func MulWorkspace(n int) int {
	return 4 * n
}

// FromWorkspace returns the scratch units From needs.
func FromWorkspace(n int) int {
	return 2 * n
}

// ModnWorkspace returns the scratch units Modn needs.
func ModnWorkspace(n int) int {
	return ccn.DivModWorkspace(n)
}

// redc sets r := t·R⁻¹ mod p for t < p·R. t has 2n units and is clobbered.
func (zp *ZP) redc(r, t []Unit) {
	n := zp.n
	t = t[:2*n]

	var carry Unit
	for i := 0; i < n; i++ {
		m := t[i] * zp.p0inv
		c := ccn.AddMul1(t[i:i+n], zp.p, m)
		t[i+n], carry = bits.Add(t[i+n], c, carry)
	}

	// The result hi + carry·R is below 2p.
	lo, hi := t[:n], t[n:]
	b := ccn.Sub(lo, hi, zp.p)
	ccn.Mux(carry|(b^1), r[:n], lo, hi)
}

// Mod sets r := t mod p for a 2n-unit t < p², in the ring representation:
// for the Montgomery backend this is t·R⁻¹. t is clobbered.
func (zp *ZP) Mod(ws *workspace.Workspace, r, t []Unit) {
	if zp.backend == Montgomery {
		zp.redc(r, t)
		return
	}

	n := zp.n
	ws = workspace.Ensure(ws, MulWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	// REDC(REDC(t)·R²) = t mod p.
	u := ws.Alloc(2 * n)
	zp.redc(r, t)
	ccn.Mul(u, r[:n], zp.r2)
	zp.redc(r, u)
}

// Mul sets r := x·y mod p.
func (zp *ZP) Mul(ws *workspace.Workspace, r, x, y []Unit) {
	n := zp.n
	ws = workspace.Ensure(ws, MulWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	t := ws.Alloc(2 * n)
	ccn.Mul(t, x[:n], y[:n])
	zp.Mod(ws, r, t)
}

// Sqr sets r := x² mod p.
func (zp *ZP) Sqr(ws *workspace.Workspace, r, x []Unit) {
	zp.Mul(ws, r, x, x)
}

// To converts the canonical x < p into the ring representation.
func (zp *ZP) To(ws *workspace.Workspace, r, x []Unit) {
	if zp.backend == Montgomery {
		zp.Mul(ws, r, x, zp.r2)
		return
	}
	ccn.Set(r[:zp.n], x)
}

// From converts x from the ring representation to its canonical value.
func (zp *ZP) From(ws *workspace.Workspace, r, x []Unit) {
	n := zp.n
	if zp.backend != Montgomery {
		ccn.Set(r[:n], x)
		return
	}

	ws = workspace.Ensure(ws, FromWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	t := ws.Alloc(2 * n)
	ccn.SetN(t, x[:n])
	zp.redc(r, t)
}

// Modn sets r := x mod p for an x of any length. The result is canonical,
// not in the ring representation.
func (zp *ZP) Modn(ws *workspace.Workspace, r, x []Unit) error {
	return ccn.Mod(ws, r[:zp.n], x, zp.p)
}
