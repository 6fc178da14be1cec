package ccec

import (
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// DoubleWorkspace returns the scratch units Double needs.
func DoubleWorkspace(n int) int {
	return max(5*n+cczp.MulWorkspace(n), FullAddWorkspace(n))
}

// Double sets r := 2·s. r may alias s. The point at infinity maps to
// itself.
func (cp *CurveParams) Double(ws *workspace.Workspace, r, s *ProjectivePoint) {
	if cp.repr == Homogeneous {
		cp.FullAdd(ws, r, s, s)
		return
	}

	n, zp := cp.n, cp.zp
	ws = workspace.Ensure(ws, DoubleWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	delta := ws.Alloc(n)
	gamma := ws.Alloc(n)
	beta := ws.Alloc(n)
	alpha := ws.Alloc(n)
	t := ws.Alloc(n)

	// dbl-2001-b, a = -3.
	zp.Sqr(ws, delta, s.Z)
	zp.Sqr(ws, gamma, s.Y)
	zp.Mul(ws, beta, s.X, gamma)

	// alpha = 3·(X - delta)·(X + delta)
	zp.Sub(t, s.X, delta)
	zp.Add(alpha, s.X, delta)
	zp.Mul(ws, alpha, t, alpha)
	zp.Add(t, alpha, alpha)
	zp.Add(alpha, t, alpha)

	// Z3 = (Y + Z)² - gamma - delta
	zp.Add(t, s.Y, s.Z)
	zp.Sqr(ws, t, t)
	zp.Sub(t, t, gamma)
	zp.Sub(r.Z, t, delta)

	// X3 = alpha² - 8·beta
	zp.Add(beta, beta, beta)
	zp.Add(beta, beta, beta)
	zp.Sqr(ws, t, alpha)
	zp.Sub(t, t, beta)
	zp.Sub(r.X, t, beta)

	// Y3 = alpha·(4·beta - X3) - 8·gamma²
	zp.Sub(t, beta, r.X)
	zp.Mul(ws, t, alpha, t)
	zp.Sqr(ws, gamma, gamma)
	zp.Add(gamma, gamma, gamma)
	zp.Add(gamma, gamma, gamma)
	zp.Add(gamma, gamma, gamma)
	zp.Sub(r.Y, t, gamma)

	cp.condSetInfinity(ccn.IsZeroBit(r.Z), r)
}

// FullAddWorkspace returns the scratch units FullAdd needs.
func FullAddWorkspace(n int) int {
	return 10*n + cczp.MulWorkspace(n)
}

// toHomogeneous writes the homogeneous X and Z of p: (X·Z, Z³) for
// Jacobian points, a plain copy otherwise. Y is the same in both systems.
func (cp *CurveParams) toHomogeneous(ws *workspace.Workspace, x, z []Unit, p *ProjectivePoint) {
	if cp.repr == Homogeneous {
		ccn.Set(x, p.X)
		ccn.Set(z, p.Z)
		return
	}

	zp := cp.zp
	mark := ws.Mark()
	defer ws.Release(mark)

	t := ws.Alloc(cp.n)
	zp.Mul(ws, x, p.X, p.Z)
	zp.Sqr(ws, t, p.Z)
	zp.Mul(ws, z, p.Z, t)
}

// fromHomogeneous maps r back to the curve's representation and
// canonicalizes the point at infinity.
func (cp *CurveParams) fromHomogeneous(ws *workspace.Workspace, r *ProjectivePoint) {
	if cp.repr == Jacobian {
		zp := cp.zp
		mark := ws.Mark()
		defer ws.Release(mark)

		t := ws.Alloc(cp.n)
		zp.Mul(ws, r.X, r.X, r.Z)
		zp.Sqr(ws, t, r.Z)
		zp.Mul(ws, r.Y, r.Y, t)
	}
	cp.condSetInfinity(ccn.IsZeroBit(r.Z), r)
}

// FullAdd sets r := s + t for any s and t, including equal, opposite and
// infinite points. It runs in constant time and r may alias either input.
//
// The sum uses the complete homogeneous addition law for a = -3 of Renes,
// Costello and Batina (12M + 2m_b + 29a); Jacobian points are mapped to
// homogeneous coordinates and back around it.
func (cp *CurveParams) FullAdd(ws *workspace.Workspace, r, s, t *ProjectivePoint) {
	n, zp, b := cp.n, cp.zp, cp.b
	ws = workspace.Ensure(ws, FullAddWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	t0 := ws.Alloc(n)
	t1 := ws.Alloc(n)
	t2 := ws.Alloc(n)
	t3 := ws.Alloc(n)
	t4 := ws.Alloc(n)

	X1 := ws.Alloc(n)
	Z1 := ws.Alloc(n)
	X2 := ws.Alloc(n)
	Z2 := ws.Alloc(n)
	Y1, Y2 := s.Y, t.Y
	X3, Y3, Z3 := r.X, r.Y, r.Z

	cp.toHomogeneous(ws, X1, Z1, s)
	cp.toHomogeneous(ws, X2, Z2, t)

	zp.Mul(ws, t0, X1, X2)
	zp.Mul(ws, t1, Y1, Y2)
	zp.Mul(ws, t2, Z1, Z2)

	zp.Add(t3, X1, Y1)
	zp.Add(t4, X2, Y2)
	zp.Mul(ws, t3, t3, t4)

	zp.Add(t4, t0, t1)
	zp.Sub(t3, t3, t4)
	zp.Add(t4, Y1, Z1)

	// Y1 is dead from here on; Y2 is read once more below.
	zp.Add(X3, Y2, Z2)
	zp.Mul(ws, t4, t4, X3)
	zp.Add(X3, t1, t2)

	zp.Sub(t4, t4, X3)
	zp.Add(X3, X1, Z1)
	zp.Add(Y3, X2, Z2)

	zp.Mul(ws, X3, X3, Y3)
	zp.Add(Y3, t0, t2)
	zp.Sub(Y3, X3, Y3)

	zp.Mul(ws, Z3, b, t2)
	zp.Sub(X3, Y3, Z3)
	zp.Add(Z3, X3, X3)

	zp.Add(X3, X3, Z3)
	zp.Sub(Z3, t1, X3)
	zp.Add(X3, t1, X3)

	zp.Mul(ws, Y3, b, Y3)
	zp.Add(t1, t2, t2)
	zp.Add(t2, t1, t2)

	zp.Sub(Y3, Y3, t2)
	zp.Sub(Y3, Y3, t0)
	zp.Add(t1, Y3, Y3)

	zp.Add(Y3, t1, Y3)
	zp.Add(t1, t0, t0)
	zp.Add(t0, t1, t0)

	zp.Sub(t0, t0, t2)
	zp.Mul(ws, t1, t4, Y3)
	zp.Mul(ws, t2, t0, Y3)

	zp.Mul(ws, Y3, X3, Z3)
	zp.Add(Y3, Y3, t2)
	zp.Mul(ws, X3, t3, X3)

	zp.Sub(X3, X3, t1)
	zp.Mul(ws, Z3, t4, Z3)
	zp.Mul(ws, t1, t3, t0)
	zp.Add(Z3, Z3, t1)

	cp.fromHomogeneous(ws, r)
}

// FullSubWorkspace returns the scratch units FullSub needs.
func FullSubWorkspace(n int) int {
	return 3*n + FullAddWorkspace(n)
}

// FullSub sets r := s - t with the same guarantees as FullAdd.
func (cp *CurveParams) FullSub(ws *workspace.Workspace, r, s, t *ProjectivePoint) {
	ws = workspace.Ensure(ws, FullSubWorkspace(cp.n))
	mark := ws.Mark()
	defer ws.Release(mark)

	nt := cp.AllocPoint(ws)
	copyPoint(nt, t)
	cp.zp.Negate(nt.Y, nt.Y)
	cp.FullAdd(ws, r, s, nt)
}

// AddNormalizedWorkspace returns the scratch units AddNormalized and
// SubNormalized need.
func AddNormalizedWorkspace(n int) int {
	return 3*n + max(cczp.MulWorkspace(n), DoubleWorkspace(n))
}

// AddNormalized sets r := s + t on a Jacobian curve, where t has Z = 1 and
// is not the point at infinity. r may alias s but not t.
//
// The formulas branch on the inputs, so this is only for public points;
// it is what the twin multiplication of signature verification runs on.
func (cp *CurveParams) AddNormalized(ws *workspace.Workspace, r, s, t *ProjectivePoint) {
	cp.addNormalized(ws, r, s, t, false)
}

// SubNormalized sets r := s - t under the conditions of AddNormalized.
func (cp *CurveParams) SubNormalized(ws *workspace.Workspace, r, s, t *ProjectivePoint) {
	cp.addNormalized(ws, r, s, t, true)
}

func (cp *CurveParams) addNormalized(ws *workspace.Workspace, r, s, t *ProjectivePoint, negate bool) {
	n, zp := cp.n, cp.zp
	ws = workspace.Ensure(ws, AddNormalizedWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	t1, t2, t3 := r.X, r.Y, r.Z
	X1, Y1, Z1 := s.X, s.Y, s.Z
	X2, Y2 := t.X, t.Y

	t4 := ws.Alloc(n)
	t5 := ws.Alloc(n)
	t6 := ws.Alloc(n)

	zp.Sqr(ws, t6, Z1)
	zp.Mul(ws, t4, X2, t6) // X2·Z1²
	zp.Mul(ws, t6, Z1, t6)
	zp.Mul(ws, t5, Y2, t6) // Y2·Z1³
	zp.Sub(t4, X1, t4)
	if negate {
		zp.Add(t5, Y1, t5)
	} else {
		zp.Sub(t5, Y1, t5)
	}

	if ccn.IsZero(t4) {
		if ccn.IsZero(t5) {
			// s = t for an addition, s = -t for a subtraction: 2·s either way.
			cp.Double(ws, r, s)
		} else {
			cp.SetInfinity(r)
		}
		return
	}

	zp.Add(t1, X1, X1)
	zp.Sub(t1, t1, t4) // X1 + X2·Z1²
	zp.Add(t2, Y1, Y1)
	zp.Sub(t2, t2, t5) // Y1 ± Y2·Z1³
	zp.Mul(ws, t3, Z1, t4)
	zp.Sqr(ws, t6, t4)
	zp.Mul(ws, t4, t4, t6)
	zp.Mul(ws, t6, t1, t6)
	zp.Sqr(ws, t1, t5)
	zp.Sub(t1, t1, t6)
	zp.Sub(t6, t6, t1)
	zp.Sub(t6, t6, t1)
	zp.Mul(ws, t5, t5, t6)
	zp.Mul(ws, t4, t2, t4)
	zp.Sub(t2, t5, t4)
	zp.Div2(t2, t2)
}

// FullAddNormalized is AddNormalized that also accepts s at infinity.
func (cp *CurveParams) FullAddNormalized(ws *workspace.Workspace, r, s, t *ProjectivePoint) {
	if cp.IsPointAtInfinity(s) {
		copyPoint(r, t)
		return
	}
	cp.AddNormalized(ws, r, s, t)
}

// FullSubNormalized is SubNormalized that also accepts s at infinity.
func (cp *CurveParams) FullSubNormalized(ws *workspace.Workspace, r, s, t *ProjectivePoint) {
	if cp.IsPointAtInfinity(s) {
		copyPoint(r, t)
		cp.zp.Negate(r.Y, r.Y)
		return
	}
	cp.SubNormalized(ws, r, s, t)
}
