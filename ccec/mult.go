package ccec

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// MultWorkspace returns the scratch units Mult needs with either ladder.
func MultWorkspace(n int) int {
	m := cczp.MulWorkspace(n)
	coz := 4*n + max(DoubleWorkspace(n), 6*n+3*n+m, FullAddWorkspace(n))
	complete := 6*n + max(FullAddWorkspace(n), DoubleWorkspace(n))
	return max(coz, complete)
}

// Mult sets r := d·s, where d is the dbitlen low bits of d and
// 0 < dbitlen ≤ bitlen(q). It runs in time that depends on dbitlen and the
// curve only. s may be the point at infinity; r must not alias s.
func (cp *CurveParams) Mult(ws *workspace.Workspace, r *ProjectivePoint, d []Unit, dbitlen int, s *ProjectivePoint) error {
	if samePoint(r, s) {
		panic("ccec: Mult output aliases its input")
	}
	if dbitlen <= 0 || dbitlen > cp.OrderBitlen() {
		return errors.WithMessagef(ccerr.ErrParameter, "ccec: scalar bit length %d", dbitlen)
	}
	if len(d) < ccn.Nof(dbitlen) {
		return errors.WithMessage(ccerr.ErrParameter, "ccec: scalar too short")
	}

	ws = workspace.Ensure(ws, MultWorkspace(cp.n))
	if cp.mult == CompleteLadder {
		cp.multComplete(ws, r, d, dbitlen, s)
		return nil
	}
	return cp.multCoZ(ws, r, d, dbitlen, s)
}

// loadScalar copies the dbitlen low bits of d into the n-unit dt.
func loadScalar(dt, d []Unit, dbitlen int) {
	nd := ccn.Nof(dbitlen)
	ccn.SetN(dt, d[:nd])
	if rem := dbitlen % unit.Bits; rem != 0 {
		dt[nd-1] &= unit.Mask >> (unit.Bits - rem)
	}
}

// multComplete is a Montgomery ladder over FullAdd and Double. Both are
// complete, so no scalar or point needs special handling.
func (cp *CurveParams) multComplete(ws *workspace.Workspace, r *ProjectivePoint, d []Unit, dbitlen int, s *ProjectivePoint) {
	mark := ws.Mark()
	defer ws.Release(mark)

	r0 := cp.AllocPoint(ws)
	r1 := cp.AllocPoint(ws)
	cp.SetInfinity(r0)
	copyPoint(r1, s)

	for i := dbitlen - 1; i >= 0; i-- {
		b := ccn.Bit(d, i)
		condSwapPoints(b, r0, r1)
		cp.FullAdd(ws, r1, r0, r1)
		cp.Double(ws, r0, r0)
		condSwapPoints(b, r0, r1)
	}
	copyPoint(r, r0)
}

// multCoZ handles x(s) = 0, which the co-Z formulas cannot, by running the
// ladder on 2·s with d/2 and adding s back when d is odd.
func (cp *CurveParams) multCoZ(ws *workspace.Workspace, r *ProjectivePoint, d []Unit, dbitlen int, s *ProjectivePoint) error {
	n := cp.n
	mark := ws.Mark()
	defer ws.Release(mark)

	t := cp.AllocPoint(ws)
	dt := ws.Alloc(n)

	dblS := ccn.IsZeroBit(s.X)
	loadScalar(dt, d, dbitlen)
	ccn.CondShiftRight(dblS, dt, dt, 1)

	cp.Double(ws, t, s)
	muxPoint(dblS^1, t, s, t)

	if ccn.IsZero(t.X) {
		return errors.WithMessage(ccerr.ErrInternal, "ccec: x(2s) = 0")
	}

	cp.ladderCoZ(ws, r, dt, dbitlen, t)

	cp.FullAdd(ws, t, r, s)
	muxPoint(d[0]&dblS&1, r, t, r)
	return nil
}

// xyczAdd sets P := P + Q and Q := P', where P' is P rescaled to share the
// new Z. Both are (X | Y) buffers of 2n units.
func (cp *CurveParams) xyczAdd(ws *workspace.Workspace, P, Q []Unit) {
	n, zp := cp.n, cp.zp
	t1, t2, t3, t4 := P[:n], P[n:2*n], Q[:n], Q[n:2*n]

	mark := ws.Mark()
	defer ws.Release(mark)
	t5 := ws.Alloc(n)
	t6 := ws.Alloc(n)

	zp.Sub(t5, t3, t1)
	zp.Sqr(ws, t5, t5)     // A = (X2 - X1)²
	zp.Mul(ws, t6, t3, t5) // C = X2·A
	zp.Mul(ws, t3, t1, t5) // B = X1·A
	zp.Sub(t5, t4, t2)
	zp.Sqr(ws, t1, t5) // D = (Y2 - Y1)²
	zp.Sub(t1, t1, t3)

	zp.Sub(t1, t1, t6) // X3 = D - B - C
	zp.Sub(t6, t6, t3)
	zp.Mul(ws, t4, t2, t6) // Y1·(C - B)
	zp.Sub(t2, t3, t1)
	zp.Mul(ws, t2, t5, t2)
	zp.Sub(t2, t2, t4) // Y3 = (Y2 - Y1)·(B - X3) - Y1·(C - B)
}

// xyczAddC sets P := P + Q and Q := P - Q with a common Z.
func (cp *CurveParams) xyczAddC(ws *workspace.Workspace, P, Q []Unit) {
	n, zp := cp.n, cp.zp
	t1, t2, t3, t4 := P[:n], P[n:2*n], Q[:n], Q[n:2*n]

	mark := ws.Mark()
	defer ws.Release(mark)
	t5 := ws.Alloc(n)
	t6 := ws.Alloc(n)
	t7 := ws.Alloc(n)

	zp.Sub(t5, t3, t1)
	zp.Sqr(ws, t5, t5)     // A = (X2 - X1)²
	zp.Mul(ws, t6, t1, t5) // B = X1·A
	zp.Mul(ws, t1, t3, t5) // C = X2·A
	zp.Add(t5, t4, t2)     // Y2 + Y1
	zp.Sub(t4, t4, t2)     // Y2 - Y1
	zp.Sub(t3, t1, t6)
	zp.Mul(ws, t7, t2, t3) // Y1·(C - B)
	zp.Add(t3, t1, t6)     // C + B

	zp.Sqr(ws, t1, t4)
	zp.Sub(t1, t1, t3) // X3 = (Y2 - Y1)² - (C + B)
	zp.Sub(t2, t6, t1)
	zp.Mul(ws, t2, t4, t2)
	zp.Sub(t2, t2, t7) // Y3 = (Y2 - Y1)·(B - X3) - Y1·(C - B)

	zp.Sqr(ws, t4, t5)
	zp.Sub(t3, t4, t3) // X3' = (Y2 + Y1)² - (C + B)
	zp.Sub(t4, t3, t6)
	zp.Mul(ws, t4, t4, t5)
	zp.Sub(t4, t4, t7) // Y3' = (X3' - B)·(Y2 + Y1) - Y1·(C - B)
}

// xyczDouble sets twoP := 2·p and P := p rescaled to the same Z, for a = -3.
func (cp *CurveParams) xyczDouble(ws *workspace.Workspace, twoP, P []Unit, p *ProjectivePoint) {
	n, zp := cp.n, cp.zp
	t1, t2, t3, t4 := twoP[:n], twoP[n:2*n], P[:n], P[n:2*n]

	mark := ws.Mark()
	defer ws.Release(mark)
	t5 := ws.Alloc(n)
	t6 := ws.Alloc(n)
	t7 := ws.Alloc(n)

	zp.Sqr(ws, t7, p.X)
	zp.Add(t4, t7, t7)
	zp.Add(t7, t7, t4) // 3·X²
	zp.Sqr(ws, t3, p.Z)
	zp.Sqr(ws, t3, t3) // Z⁴

	zp.Add(t5, t3, t3)
	zp.Add(t5, t5, t3)
	zp.Sub(t7, t7, t5) // B = 3·X² - 3·Z⁴

	zp.Sqr(ws, t4, p.Y)
	zp.Add(t4, t4, t4)
	zp.Add(t5, t4, t4)
	zp.Mul(ws, t3, t5, p.X) // A = 4·Y²·X
	zp.Sqr(ws, t6, t7)

	zp.Sub(t6, t6, t3)
	zp.Sub(t1, t6, t3) // X2 = B² - 2·A
	zp.Sub(t6, t3, t1)

	zp.Mul(ws, t6, t6, t7)
	zp.Sqr(ws, t4, t4)
	zp.Add(t4, t4, t4) // Y1' = 8·Y⁴
	zp.Sub(t2, t6, t4) // Y2 = (A - X2)·B - 8·Y⁴
}

// recoverCoeff computes Z and the factors λX, λY that turn the final R0
// back into a Jacobian point with respect to the input point p.
func (cp *CurveParams) recoverCoeff(ws *workspace.Workspace, lambdaX, lambdaY, Z, R0, R1, Rb []Unit, p *ProjectivePoint) {
	n, zp := cp.n, cp.zp

	zp.Sub(Z, R0[:n], R1[:n])
	zp.Mul(ws, Z, Rb[n:2*n], Z)
	zp.Mul(ws, Z, p.X, Z)
	zp.Mul(ws, Z, p.Z, Z)

	zp.Mul(ws, lambdaY, Rb[:n], p.Y)
	zp.Sqr(ws, lambdaX, lambdaY)
	zp.Mul(ws, lambdaY, lambdaY, lambdaX)
}

// ladderCoZ computes r := d·s with the co-Z Montgomery ladder of Goundar,
// Rivain and others, for x(s) ≠ 0. The scalars 0, 1 and q-1 and s at
// infinity are fixed up at the end with constant-time moves.
func (cp *CurveParams) ladderCoZ(ws *workspace.Workspace, r *ProjectivePoint, d []Unit, dbitlen int, s *ProjectivePoint) {
	n, zp := cp.n, cp.zp
	mark := ws.Mark()
	defer ws.Release(mark)

	R0 := ws.Alloc(2 * n)
	R1 := ws.Alloc(2 * n)
	Rb := ws.Alloc(2 * n)

	// R0 := 2s, R1 := s
	cp.xyczDouble(ws, R0, R1, s)

	// Until the leading one bit, R0 and R1 cycle between (s, -2s) and
	// (-s, 2s); the first one bit negates once more and starts the real
	// ladder from (s, 2s) or (-s, -2s).
	L := max(dbitlen, 2)
	dbit := ccn.Bit(d, L-1)
	negate := dbit ^ 1
	seenMSB := dbit

	for i := L - 2; i > 0; i-- {
		di := ccn.Bit(d, i)

		zp.CondNegate(negate, R1[n:], R1[n:])
		ccn.CondSwap((seenMSB^1)|(dbit^di), R0, R1)

		cp.xyczAddC(ws, R0, R1)
		cp.xyczAdd(ws, R0, R1)

		negate = (seenMSB ^ 1) & di
		seenMSB |= di
		dbit = di
	}

	zp.CondNegate(negate, R1[n:], R1[n:])

	d0 := ccn.Bit(d, 0)
	dbit ^= d0
	ccn.CondSwap(dbit, R0, R1)
	cp.xyczAddC(ws, R0, R1)
	ccn.Set(Rb, R1)

	dbit = d0
	ccn.CondSwap(dbit, R0, R1)

	// R1 - R0 is -s for even d and s for odd d, which fixes Z.
	cp.recoverCoeff(ws, r.X, r.Y, r.Z, R0, R1, Rb, s)

	ccn.CondSwap(dbit, R0, R1)
	cp.xyczAdd(ws, R0, R1)
	ccn.Mux(dbit, R0, R1, R0)

	zp.Mul(ws, r.X, r.X, R0[:n])
	zp.Mul(ws, r.Y, r.Y, R0[n:])

	// r := s for d = 1, d = q-1 or s at infinity; then r := -s for q-1.
	qm1 := Rb[:n]
	ccn.Sub1(qm1, cp.zq.Prime(), 1)
	dIsQm1 := equalBit(d[:n], qm1)
	sAtInf := ccn.IsZeroBit(s.Z)
	muxPoint((seenMSB^1)|dIsQm1|sAtInf, r, s, r)
	zp.CondNegate(dIsQm1, r.Y, r.Y)

	// d = 0
	rAtInf := (seenMSB ^ 1) & (d0 ^ 1)
	cp.condSetInfinity(rAtInf|ccn.IsZeroBit(r.Z), r)
}

// MultBlindedWorkspace returns the scratch units MultBlinded needs.
func MultBlindedWorkspace(n int) int {
	return 10*n + 2 + max(ccn.DivModWorkspace(1), MultWorkspace(n), FullAddWorkspace(n))
}

// MultBlinded sets r := d·s for a secret scalar d < 2^bitlen(q), splitting
// d with a fresh 32-bit mask m as
//
//	d·s = (⌊d/m⌋·s)·m + (d mod m)·s
//
// so that no single ladder runs on d itself.
func (cp *CurveParams) MultBlinded(ws *workspace.Workspace, mg *ccrng.MaskGenerator, r *ProjectivePoint, d []Unit, s *ProjectivePoint) error {
	if mg == nil {
		return errors.WithMessage(ccerr.ErrParameter, "ccec: no mask generator")
	}
	n := cp.n
	qbits := cp.OrderBitlen()
	if len(d) < n || ccn.Bitlen(d[:n]) > qbits || !ccn.IsZero(d[n:]) {
		return errors.WithMessage(ccerr.ErrParameter, "ccec: scalar too large")
	}

	ws = workspace.Ensure(ws, MultBlindedWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	quo := ws.Alloc(n)
	rem := ws.Alloc(1)
	mask := ws.Alloc(1)
	mask[0] = Unit(mg.Next())

	if err := ccn.DivMod(ws, quo, rem, d[:n], mask); err != nil {
		return err
	}

	t1 := cp.AllocPoint(ws)
	t2 := cp.AllocPoint(ws)
	t3 := cp.AllocPoint(ws)

	// The mask has its top bit set, so the quotient has at most
	// bitlen(q) - 31 bits.
	if err := cp.Mult(ws, t1, quo, max(qbits-31, 1), s); err != nil {
		return err
	}
	if err := cp.Mult(ws, t2, mask, 32, t1); err != nil {
		return err
	}
	if err := cp.Mult(ws, t3, rem, 32, s); err != nil {
		return err
	}
	cp.FullAdd(ws, r, t2, t3)
	return nil
}
