package ccec

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// jsf recodes (k0, k1) into joint sparse form: one digit pair in {-1, 0, 1}
// per column, least significant first, nbits+1 columns.
// See Hankerson, Menezes and Vanstone, Algorithm 3.50.
func jsf(k0, k1 []Unit, nbits int) [][2]int8 {
	cols := make([][2]int8, nbits+1)
	k := [2][]Unit{k0, k1}

	var d [2]int
	for j := range cols {
		var l, u [2]int
		for i := range l {
			l[i] = d[i] + window(k[i], j)
		}
		for i := range u {
			if l[i]&1 == 0 {
				continue
			}
			u[i] = 2 - l[i]&3
			if m := l[i] & 7; (m == 3 || m == 5) && l[1-i]&3 == 2 {
				u[i] = -u[i]
			}
		}
		for i := range d {
			if 2*d[i] == 1+u[i] {
				d[i] = 1 - d[i]
			}
			cols[j][i] = int8(u[i])
		}
	}
	return cols
}

// window returns bits j..j+2 of k.
func window(k []Unit, j int) int {
	return int(ccn.Bit(k, j) | ccn.Bit(k, j+1)<<1 | ccn.Bit(k, j+2)<<2)
}

// Indices into the twin multiplication table {S, T, S+T, S-T}.
const (
	twinS = iota
	twinT
	twinSpT
	twinSmT
)

// twinEntry maps a nonzero column to a table entry and a sign.
func twinEntry(c [2]int8) (idx int, negative bool) {
	switch {
	case c[1] == 0:
		return twinS, c[0] < 0
	case c[0] == 0:
		return twinT, c[1] < 0
	case c[0] == c[1]:
		return twinSpT, c[0] < 0
	default:
		return twinSmT, c[0] < 0
	}
}

// TwinMultWorkspace returns the scratch units TwinMult needs.
func TwinMultWorkspace(n int) int {
	m := cczp.MulWorkspace(n)
	return 15*n + max(FullSubWorkspace(n), cczp.InvWorkspace(n), 2*n+m, DoubleWorkspace(n), AddNormalizedWorkspace(n))
}

// normalizeTwin sets the X and Y of r to those of s scaled to Z = 1, given
// e = (Z_s·a·b)⁻¹ and the product ab of the other two Zs.
func (cp *CurveParams) normalizeTwin(ws *workspace.Workspace, r, s *ProjectivePoint, e, a, b []Unit) {
	n, zp := cp.n, cp.zp
	mark := ws.Mark()
	defer ws.Release(mark)

	lambda := ws.Alloc(n)
	t := ws.Alloc(n)

	zp.Mul(ws, t, a, b)
	zp.Mul(ws, lambda, e, t)
	zp.Sqr(ws, t, lambda)
	zp.Mul(ws, r.X, t, s.X)
	zp.Mul(ws, t, t, lambda)
	zp.Mul(ws, r.Y, t, s.Y)
}

// TwinMult sets r := d0·s + d1·t with Shamir's trick over the joint sparse
// form of (d0, d1). It is variable time and meant for public inputs such
// as signature verification. Neither s nor t may be the point at infinity
// and s ≠ ±t; otherwise the table cannot be normalized and the inversion
// error is returned. Jacobian curves only.
func (cp *CurveParams) TwinMult(ws *workspace.Workspace, r *ProjectivePoint, d0 []Unit, s *ProjectivePoint, d1 []Unit, t *ProjectivePoint) error {
	if cp.repr != Jacobian {
		return errors.WithMessage(ccerr.ErrParameter, "ccec: twin multiplication needs Jacobian coordinates")
	}
	n, zp := cp.n, cp.zp
	ws = workspace.Ensure(ws, TwinMultWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	st := ws.Alloc(n)
	sptsmt := ws.Alloc(n)
	inv := ws.Alloc(n)

	var table [4]*ProjectivePoint
	for i := range table {
		table[i] = cp.AllocPoint(ws)
	}
	ns, nt, spt, smt := table[twinS], table[twinT], table[twinSpT], table[twinSmT]

	cp.FullAdd(ws, spt, s, t)
	cp.FullSub(ws, smt, s, t)
	zp.Mul(ws, st, s.Z, t.Z)
	zp.Mul(ws, sptsmt, spt.Z, smt.Z)
	zp.Mul(ws, inv, st, sptsmt)

	// One inversion of Z_s·Z_t·Z_(s+t)·Z_(s-t) normalizes all four.
	if err := zp.Inv(ws, inv, inv); err != nil {
		return errors.WithMessage(err, "ccec: twin mult")
	}

	cp.normalizeTwin(ws, ns, s, inv, t.Z, sptsmt)
	cp.normalizeTwin(ws, nt, t, inv, s.Z, sptsmt)
	cp.normalizeTwin(ws, spt, spt, inv, st, smt.Z)
	cp.normalizeTwin(ws, smt, smt, inv, st, spt.Z)
	for _, p := range table {
		ccn.Set(p.Z, zp.One())
	}

	nbits := max(ccn.Bitlen(d0[:n]), ccn.Bitlen(d1[:n]))
	cols := jsf(d0[:n], d1[:n], nbits)

	cp.SetInfinity(r)
	for k := nbits; k >= 0; k-- {
		cp.Double(ws, r, r)

		c := cols[k]
		if c[0] == 0 && c[1] == 0 {
			continue
		}
		idx, negative := twinEntry(c)
		if negative {
			cp.FullSubNormalized(ws, r, r, table[idx])
		} else {
			cp.FullAddNormalized(ws, r, r, table[idx])
		}
	}
	return nil
}

// CombinedMultWorkspace returns the scratch units CombinedMult needs.
func CombinedMultWorkspace(n int) int {
	separate := 6*n + max(MultWorkspace(n), FullAddWorkspace(n))
	return max(TwinMultWorkspace(n), separate, 2*n+cczp.MulWorkspace(n))
}

// CombinedMult sets r := d0·s + d1·t for scalars below q. It uses
// TwinMult when the curve allows it and s and t are distinct finite points
// with different x-coordinates, and two separate ladders plus FullAdd
// otherwise. The choice depends on the points, so s and t must be public.
func (cp *CurveParams) CombinedMult(ws *workspace.Workspace, r *ProjectivePoint, d0 []Unit, s *ProjectivePoint, d1 []Unit, t *ProjectivePoint) error {
	n := cp.n
	ws = workspace.Ensure(ws, CombinedMultWorkspace(n))

	if cp.TwinMultEnabled() && !cp.IsPointAtInfinity(s) && !cp.IsPointAtInfinity(t) && !cp.sameX(ws, s, t) {
		return cp.TwinMult(ws, r, d0, s, d1, t)
	}

	mark := ws.Mark()
	defer ws.Release(mark)

	qbits := cp.OrderBitlen()
	t0 := cp.AllocPoint(ws)
	t1 := cp.AllocPoint(ws)
	if err := cp.Mult(ws, t0, d0, qbits, s); err != nil {
		return err
	}
	if err := cp.Mult(ws, t1, d1, qbits, t); err != nil {
		return err
	}
	cp.FullAdd(ws, r, t0, t1)
	return nil
}

// sameX reports whether two finite Jacobian points share an affine x, that
// is s = ±t.
func (cp *CurveParams) sameX(ws *workspace.Workspace, s, t *ProjectivePoint) bool {
	n, zp := cp.n, cp.zp
	mark := ws.Mark()
	defer ws.Release(mark)

	a := ws.Alloc(n)
	b := ws.Alloc(n)
	zp.Sqr(ws, a, t.Z)
	zp.Mul(ws, a, a, s.X)
	zp.Sqr(ws, b, s.Z)
	zp.Mul(ws, b, b, t.X)
	return zp.Equal(a, b)
}
