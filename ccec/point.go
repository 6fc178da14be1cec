package ccec

import (
	"io"

	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// AffinePoint holds canonical coordinates, each N() units long.
type AffinePoint struct {
	X, Y []Unit
}

// ProjectivePoint holds ring-representation coordinates, each N() units
// long. The interpretation depends on the curve's Representation.
type ProjectivePoint struct {
	X, Y, Z []Unit
}

func (cp *CurveParams) NewAffinePoint() AffinePoint {
	n := cp.n
	buf := make([]Unit, 2*n)
	return AffinePoint{X: buf[:n:n], Y: buf[n:]}
}

func (cp *CurveParams) NewPoint() *ProjectivePoint {
	return splitPoint(make([]Unit, 3*cp.n), cp.n)
}

// AllocPoint carves a projective point out of ws.
func (cp *CurveParams) AllocPoint(ws *workspace.Workspace) *ProjectivePoint {
	return splitPoint(ws.Alloc(3*cp.n), cp.n)
}

func splitPoint(buf []Unit, n int) *ProjectivePoint {
	return &ProjectivePoint{X: buf[:n:n], Y: buf[n : 2*n : 2*n], Z: buf[2*n : 3*n : 3*n]}
}

func copyPoint(r, s *ProjectivePoint) {
	ccn.Set(r.X, s.X)
	ccn.Set(r.Y, s.Y)
	ccn.Set(r.Z, s.Z)
}

// muxPoint sets r := a if s is 1 and r := b otherwise.
func muxPoint(s Unit, r, a, b *ProjectivePoint) {
	ccn.Mux(s, r.X, a.X, b.X)
	ccn.Mux(s, r.Y, a.Y, b.Y)
	ccn.Mux(s, r.Z, a.Z, b.Z)
}

func condSwapPoints(s Unit, a, b *ProjectivePoint) {
	ccn.CondSwap(s, a.X, b.X)
	ccn.CondSwap(s, a.Y, b.Y)
	ccn.CondSwap(s, a.Z, b.Z)
}

func samePoint(a, b *ProjectivePoint) bool {
	return &a.X[0] == &b.X[0]
}

// SetInfinity sets r to the canonical point at infinity: (1 : 1 : 0) for
// Jacobian curves and (0 : 1 : 0) for homogeneous ones.
func (cp *CurveParams) SetInfinity(r *ProjectivePoint) {
	cp.condSetInfinity(1, r)
}

func (cp *CurveParams) condSetInfinity(s Unit, r *ProjectivePoint) {
	one := cp.zp.One()
	if cp.repr == Jacobian {
		ccn.Mux(s, r.X, one, r.X)
	} else {
		ccn.CondClear(s, r.X)
	}
	ccn.Mux(s, r.Y, one, r.Y)
	ccn.CondClear(s, r.Z)
}

// IsPointAtInfinity reports whether Z = 0.
func (cp *CurveParams) IsPointAtInfinity(p *ProjectivePoint) bool {
	return ccn.IsZero(p.Z)
}

// IsPointWorkspace returns the scratch units IsPoint needs.
func IsPointWorkspace(n int) int {
	return 4*n + cczp.MulWorkspace(n)
}

// IsPoint reports whether p satisfies the projective curve equation. The
// point at infinity is rejected.
func (cp *CurveParams) IsPoint(ws *workspace.Workspace, p *ProjectivePoint) bool {
	n, zp := cp.n, cp.zp
	ws = workspace.Ensure(ws, IsPointWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	t0 := ws.Alloc(n)
	t1 := ws.Alloc(n)
	t2 := ws.Alloc(n)
	t3 := ws.Alloc(n)

	if cp.repr == Jacobian {
		// Y² = X³ - 3·X·Z⁴ + b·Z⁶
		zp.Sqr(ws, t0, p.Z)
		zp.Sqr(ws, t1, t0)
		zp.Mul(ws, t2, t1, t0)
		zp.Mul(ws, t2, t2, cp.b)
		zp.Mul(ws, t1, t1, p.X)
	} else {
		// Y²·Z = X³ - 3·X·Z² + b·Z³
		zp.Sqr(ws, t0, p.Z)
		zp.Mul(ws, t1, t0, p.X)
		zp.Mul(ws, t2, t0, p.Z)
		zp.Mul(ws, t2, t2, cp.b)
	}
	zp.Add(t3, t1, t1)
	zp.Add(t1, t3, t1)

	zp.Sqr(ws, t3, p.X)
	zp.Mul(ws, t3, t3, p.X)
	zp.Sub(t3, t3, t1)
	zp.Add(t3, t3, t2)

	zp.Sqr(ws, t0, p.Y)
	if cp.repr == Homogeneous {
		zp.Mul(ws, t0, t0, p.Z)
	}

	onCurve := ccn.IsZeroBit(p.Z) ^ 1
	onCurve &= equalBit(t0, t3)
	return onCurve == 1
}

func equalBit(a, b []Unit) Unit {
	var acc Unit
	b = b[:len(a)]
	for i := range a {
		acc |= a[i] ^ b[i]
	}
	return unit.ToBit(unit.IsZero(acc))
}

// ProjectifyWorkspace returns the scratch units Projectify needs.
func ProjectifyWorkspace(n int) int {
	return n + max(cczp.MulWorkspace(n), cczp.GenerateRandomElementWorkspace(n))
}

// Projectify converts the affine point s into r. With a nil rng Z is 1;
// otherwise Z is a random nonzero field element, which blinds the
// coordinates against side channels in the following arithmetic.
func (cp *CurveParams) Projectify(ws *workspace.Workspace, r *ProjectivePoint, s AffinePoint, rng io.Reader) error {
	n, zp := cp.n, cp.zp
	ws = workspace.Ensure(ws, ProjectifyWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	if err := zp.SetElement(ws, r.X, s.X); err != nil {
		return errors.WithMessage(err, "ccec: projectify")
	}
	if err := zp.SetElement(ws, r.Y, s.Y); err != nil {
		return errors.WithMessage(err, "ccec: projectify")
	}

	if rng == nil {
		ccn.Set(r.Z, zp.One())
		return nil
	}

	if err := zp.GenerateNonZeroRandomElement(ws, r.Z, rng); err != nil {
		return errors.WithMessage(err, "ccec: projectify")
	}
	zp.To(ws, r.Z, r.Z)

	t := ws.Alloc(n)
	if cp.repr == Jacobian {
		zp.Sqr(ws, t, r.Z)
		zp.Mul(ws, r.X, r.X, t)
		zp.Mul(ws, t, t, r.Z)
		zp.Mul(ws, r.Y, r.Y, t)
	} else {
		zp.Mul(ws, r.X, r.X, r.Z)
		zp.Mul(ws, r.Y, r.Y, r.Z)
	}
	return nil
}

// AffinifyWorkspace returns the scratch units Affinify and AffinifyXOnly
// need.
func AffinifyWorkspace(n int) int {
	return 2*n + max(cczp.InvWorkspace(n), cczp.MulWorkspace(n), cczp.FromWorkspace(n))
}

// Affinify converts s into canonical affine coordinates. The point at
// infinity has no affine form and is rejected.
func (cp *CurveParams) Affinify(ws *workspace.Workspace, r AffinePoint, s *ProjectivePoint) error {
	n, zp := cp.n, cp.zp
	if cp.IsPointAtInfinity(s) {
		clearAffine(r)
		return errors.WithMessage(ccerr.ErrParameter, "ccec: affinify point at infinity")
	}

	ws = workspace.Ensure(ws, AffinifyWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	lambda := ws.Alloc(n)
	t := ws.Alloc(n)
	if err := zp.Inv(ws, lambda, s.Z); err != nil {
		clearAffine(r)
		return errors.WithMessage(err, "ccec: affinify")
	}
	cp.applyLambda(ws, r, s, lambda, t)
	return nil
}

// clearAffine zeroes r so failed conversions leave nothing behind.
func clearAffine(r AffinePoint) {
	clear(r.X)
	clear(r.Y)
}

// applyLambda sets r to the canonical affine form of s given λ = 1/Z.
func (cp *CurveParams) applyLambda(ws *workspace.Workspace, r AffinePoint, s *ProjectivePoint, lambda, t []Unit) {
	zp := cp.zp
	if cp.repr == Jacobian {
		zp.Sqr(ws, t, lambda)
		zp.Mul(ws, r.X, s.X, t)
		zp.Mul(ws, t, t, lambda)
		zp.Mul(ws, r.Y, s.Y, t)
	} else {
		zp.Mul(ws, r.X, s.X, lambda)
		zp.Mul(ws, r.Y, s.Y, lambda)
	}
	zp.From(ws, r.X, r.X)
	zp.From(ws, r.Y, r.Y)
}

// AffinifyXOnly sets x to the canonical affine x-coordinate of s.
func (cp *CurveParams) AffinifyXOnly(ws *workspace.Workspace, x []Unit, s *ProjectivePoint) error {
	n, zp := cp.n, cp.zp
	if cp.IsPointAtInfinity(s) {
		clear(x[:n])
		return errors.WithMessage(ccerr.ErrParameter, "ccec: affinify point at infinity")
	}

	ws = workspace.Ensure(ws, AffinifyWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	lambda := ws.Alloc(n)
	if cp.repr == Jacobian {
		t := ws.Alloc(n)
		zp.Sqr(ws, t, s.Z)
		if err := zp.Inv(ws, lambda, t); err != nil {
			clear(x[:n])
			return errors.WithMessage(err, "ccec: affinify")
		}
	} else if err := zp.Inv(ws, lambda, s.Z); err != nil {
		clear(x[:n])
		return errors.WithMessage(err, "ccec: affinify")
	}
	zp.Mul(ws, x[:n], s.X, lambda)
	zp.From(ws, x[:n], x[:n])
	return nil
}

// AffinifyPointsWorkspace returns the scratch units AffinifyPoints needs
// for count points.
func AffinifyPointsWorkspace(n, count int) int {
	return count*n + AffinifyWorkspace(n) + n
}

// AffinifyPoints converts every point of s with a single field inversion.
// The results equal those of Affinify one point at a time.
func (cp *CurveParams) AffinifyPoints(ws *workspace.Workspace, r []AffinePoint, s []*ProjectivePoint) error {
	n, zp := cp.n, cp.zp
	if len(r) != len(s) {
		return errors.WithMessage(ccerr.ErrParameter, "ccec: affinify points length mismatch")
	}
	if len(s) == 0 {
		return nil
	}
	for _, p := range s {
		if cp.IsPointAtInfinity(p) {
			clearAffinePoints(r)
			return errors.WithMessage(ccerr.ErrParameter, "ccec: affinify point at infinity")
		}
	}

	ws = workspace.Ensure(ws, AffinifyPointsWorkspace(n, len(s)))
	mark := ws.Mark()
	defer ws.Release(mark)

	// prods[i] = Z_0 · ... · Z_i
	prods := make([][]Unit, len(s))
	for i, p := range s {
		prods[i] = ws.Alloc(n)
		if i == 0 {
			ccn.Set(prods[0], p.Z)
		} else {
			zp.Mul(ws, prods[i], prods[i-1], p.Z)
		}
	}

	inv := ws.Alloc(n)
	lambda := ws.Alloc(n)
	t := ws.Alloc(n)
	if err := zp.Inv(ws, inv, prods[len(s)-1]); err != nil {
		clearAffinePoints(r)
		return errors.WithMessage(err, "ccec: affinify points")
	}

	for i := len(s) - 1; i >= 0; i-- {
		if i > 0 {
			zp.Mul(ws, lambda, inv, prods[i-1])
			zp.Mul(ws, inv, inv, s[i].Z)
		} else {
			ccn.Set(lambda, inv)
		}
		cp.applyLambda(ws, r[i], s[i], lambda, t)
	}
	return nil
}

func clearAffinePoints(r []AffinePoint) {
	for _, p := range r {
		clearAffine(p)
	}
}

// ImportPoint decodes an uncompressed point 0x04 || X || Y and checks that
// it lies on the curve.
func (cp *CurveParams) ImportPoint(data []byte) (AffinePoint, error) {
	size := cp.CoordinateSize()
	if len(data) != 1+2*size || data[0] != 4 {
		return AffinePoint{}, errors.WithMessage(ccerr.ErrParameter, "ccec: malformed point encoding")
	}

	p := cp.NewAffinePoint()
	if err := ccn.ReadUint(p.X, data[1:1+size]); err != nil {
		return AffinePoint{}, err
	}
	if err := ccn.ReadUint(p.Y, data[1+size:]); err != nil {
		return AffinePoint{}, err
	}

	n := cp.n
	ws := workspace.New(3*n + max(ProjectifyWorkspace(n), IsPointWorkspace(n)))
	q := cp.AllocPoint(ws)
	if err := cp.Projectify(ws, q, p, nil); err != nil {
		return AffinePoint{}, err
	}
	if !cp.IsPoint(ws, q) {
		return AffinePoint{}, errors.WithMessage(ccerr.ErrParameter, "ccec: point not on curve")
	}
	return p, nil
}

// ExportPoint encodes p uncompressed.
func (cp *CurveParams) ExportPoint(p AffinePoint) []byte {
	size := cp.CoordinateSize()
	out := make([]byte, 1+2*size)
	out[0] = 4
	ccn.WriteUint(p.X, out[1:1+size])
	ccn.WriteUint(p.Y, out[1+size:])
	return out
}
