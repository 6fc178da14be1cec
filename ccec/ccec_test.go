package ccec

import (
	"crypto/elliptic"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

func toUnits(n int, x *big.Int) []Unit {
	u := make([]Unit, n)
	if err := ccn.ReadUint(u, x.Bytes()); err != nil {
		panic(err)
	}
	return u
}

func toBig(u []Unit) *big.Int {
	b := make([]byte, len(u)*unit.Bytes)
	ccn.WriteUint(u, b)
	return new(big.Int).SetBytes(b)
}

func requireBig(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, want.Text(16), got.Text(16), msgAndArgs...)
}

func order(cp *CurveParams) *big.Int {
	return toBig(cp.ZQ().Prime())
}

func refCurve(cp *CurveParams) elliptic.Curve {
	switch cp.Name() {
	case "P-224":
		return elliptic.P224()
	case "P-256":
		return elliptic.P256()
	case "P-384":
		return elliptic.P384()
	case "P-521":
		return elliptic.P521()
	}
	b := cp.ZP().NewElement()
	cp.ZP().From(nil, b, cp.B())
	return &elliptic.CurveParams{
		P:       toBig(cp.ZP().Prime()),
		N:       order(cp),
		B:       toBig(b),
		Gx:      toBig(cp.G().X),
		Gy:      toBig(cp.G().Y),
		BitSize: cp.PrimeBitlen(),
		Name:    cp.Name(),
	}
}

func allCurves() []*CurveParams {
	return []*CurveParams{P192(), P224(), P256(), P384(), P521()}
}

func curveVariants(t *testing.T) []*CurveParams {
	t.Helper()
	homog, err := NamedCurveParams("P-256", WithRepresentation(Homogeneous))
	require.NoError(t, err)
	complete, err := NamedCurveParams("P-384", WithMultAlgorithm(CompleteLadder))
	require.NoError(t, err)
	return append(allCurves(), homog, complete)
}

func randScalar(t *testing.T, cp *CurveParams, rng *ccrng.DRBG) *big.Int {
	t.Helper()
	buf := make([]byte, cp.ScalarSize()+8)
	_, err := rng.Read(buf)
	require.NoError(t, err)
	k := new(big.Int).SetBytes(buf)
	return k.Mod(k, order(cp))
}

// affine projects p and returns its affine coordinates as big integers.
func affine(t *testing.T, cp *CurveParams, p *ProjectivePoint) (*big.Int, *big.Int) {
	t.Helper()
	a := cp.NewAffinePoint()
	require.NoError(t, cp.Affinify(nil, a, p))
	return toBig(a.X), toBig(a.Y)
}

func pointFromBig(t *testing.T, cp *CurveParams, x, y *big.Int) *ProjectivePoint {
	t.Helper()
	a := AffinePoint{X: toUnits(cp.N(), x), Y: toUnits(cp.N(), y)}
	p := cp.NewPoint()
	require.NoError(t, cp.Projectify(nil, p, a, nil))
	return p
}

func generator(t *testing.T, cp *CurveParams) *ProjectivePoint {
	t.Helper()
	p := cp.NewPoint()
	require.NoError(t, cp.Projectify(nil, p, cp.G(), nil))
	return p
}

func mult(t *testing.T, cp *CurveParams, k *big.Int, s *ProjectivePoint) *ProjectivePoint {
	t.Helper()
	r := cp.NewPoint()
	require.NoError(t, cp.Mult(nil, r, toUnits(cp.N(), k), cp.OrderBitlen(), s))
	return r
}

func TestNamedCurvesMatchStdlib(t *testing.T) {
	for _, cp := range allCurves() {
		ref := refCurve(cp).Params()
		require.Equal(t, ref.BitSize, cp.PrimeBitlen(), cp.Name())
		requireBig(t, ref.P, toBig(cp.ZP().Prime()), cp.Name())
		requireBig(t, ref.N, order(cp), cp.Name())
		requireBig(t, ref.Gx, toBig(cp.G().X), cp.Name())
		requireBig(t, ref.Gy, toBig(cp.G().Y), cp.Name())

		b := cp.ZP().NewElement()
		cp.ZP().From(nil, b, cp.B())
		requireBig(t, ref.B, toBig(b), cp.Name())

		require.Equal(t, ccn.Nof(cp.PrimeBitlen()), cp.N())
		require.Equal(t, Jacobian, cp.Representation())
		require.Equal(t, CoZLadder, cp.MultAlgorithm())
		require.True(t, cp.TwinMultEnabled())
		require.True(t, cp.IsPoint(nil, generator(t, cp)))
	}

	require.Same(t, P256(), P256())

	_, err := NamedCurveParams("P-255")
	require.True(t, errors.Is(err, ccerr.ErrParameter))
}

func TestNewCurveRejectsBadGenerator(t *testing.T) {
	c := p256
	gy := mustHex(c.y)
	gy[len(gy)-1] ^= 1
	_, err := NewCurve("bad", mustHex(c.p), mustHex(c.b), mustHex(c.x), gy, mustHex(c.q))
	require.True(t, errors.Is(err, ccerr.ErrParameter))
}

func TestHomogeneousForcesCompleteLadder(t *testing.T) {
	cp, err := NamedCurveParams("P-256", WithRepresentation(Homogeneous), WithMultAlgorithm(CoZLadder))
	require.NoError(t, err)
	require.Equal(t, Homogeneous, cp.Representation())
	require.Equal(t, CompleteLadder, cp.MultAlgorithm())
	require.False(t, cp.TwinMultEnabled())
	require.Equal(t, "homogeneous", cp.Representation().String())
	require.Equal(t, "complete", cp.MultAlgorithm().String())
}

func TestMultP256Vector(t *testing.T) {
	cp := P256()
	r := mult(t, cp, big.NewInt(7), generator(t, cp))
	x, y := affine(t, cp, r)
	requireBig(t, hexBig("8E533B6FA0BF7B4625BB30667C01FB607EF9F8B8A80FEF5B300628703187B2A3"), x)
	requireBig(t, hexBig("73EB1DBDE03318366D069F83A6F5900053C73633CB041B21C55E1A86C1F400B4"), y)
}

func hexBig(s string) *big.Int {
	x, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic(s)
	}
	return x
}

func TestMultMatchesReference(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(1)
	for _, cp := range curveVariants(t) {
		ref := refCurve(cp)
		q := order(cp)
		g := generator(t, cp)
		gx, gy := toBig(cp.G().X), toBig(cp.G().Y)

		scalars := []*big.Int{
			big.NewInt(1), big.NewInt(2), big.NewInt(3),
			new(big.Int).Sub(q, big.NewInt(1)),
			new(big.Int).Sub(q, big.NewInt(2)),
			new(big.Int).Rsh(q, 1),
		}
		for i := 0; i < 4; i++ {
			scalars = append(scalars, randScalar(t, cp, rng))
		}

		for _, k := range scalars {
			r := mult(t, cp, k, g)
			require.True(t, cp.IsPoint(nil, r), "%s k=%x", cp.Name(), k)
			x, y := affine(t, cp, r)
			wx, wy := ref.ScalarMult(gx, gy, k.Bytes())
			requireBig(t, wx, x, "%s %s k=%x", cp.Name(), cp.Representation(), k)
			requireBig(t, wy, y, "%s %s k=%x", cp.Name(), cp.Representation(), k)
		}
	}
}

func TestMultZeroAndOrder(t *testing.T) {
	for _, cp := range curveVariants(t) {
		g := generator(t, cp)
		for _, k := range []*big.Int{big.NewInt(0), order(cp)} {
			r := mult(t, cp, k, g)
			require.True(t, cp.IsPointAtInfinity(r), "%s k=%x", cp.Name(), k)
			require.False(t, cp.IsPoint(nil, r))

			a := cp.NewAffinePoint()
			require.True(t, errors.Is(cp.Affinify(nil, a, r), ccerr.ErrParameter))
		}
	}
}

func TestMultPointAtInfinity(t *testing.T) {
	for _, cp := range curveVariants(t) {
		inf := cp.NewPoint()
		cp.SetInfinity(inf)
		r := mult(t, cp, big.NewInt(12345), inf)
		require.True(t, cp.IsPointAtInfinity(r), cp.Name())
	}
}

func TestMultShortScalars(t *testing.T) {
	cp := P256()
	g := generator(t, cp)
	ref := refCurve(cp)

	// dbitlen 1 and 2.
	for _, tc := range []struct {
		k       int64
		dbitlen int
	}{{1, 1}, {0, 1}, {1, 2}, {2, 2}, {3, 2}, {5, 3}} {
		r := cp.NewPoint()
		require.NoError(t, cp.Mult(nil, r, toUnits(cp.N(), big.NewInt(tc.k)), tc.dbitlen, g))
		if tc.k == 0 {
			require.True(t, cp.IsPointAtInfinity(r))
			continue
		}
		x, y := affine(t, cp, r)
		wx, wy := ref.ScalarMult(ref.Params().Gx, ref.Params().Gy, big.NewInt(tc.k).Bytes())
		requireBig(t, wx, x, "k=%d", tc.k)
		requireBig(t, wy, y, "k=%d", tc.k)
	}

	// Bits above dbitlen are ignored.
	r := cp.NewPoint()
	require.NoError(t, cp.Mult(nil, r, toUnits(cp.N(), big.NewInt(0x103)), 8, g))
	x, _ := affine(t, cp, r)
	wx, _ := ref.ScalarMult(ref.Params().Gx, ref.Params().Gy, []byte{3})
	requireBig(t, wx, x)
}

func TestMultErrors(t *testing.T) {
	cp := P256()
	g := generator(t, cp)
	r := cp.NewPoint()
	d := toUnits(cp.N(), big.NewInt(5))

	require.True(t, errors.Is(cp.Mult(nil, r, d, 0, g), ccerr.ErrParameter))
	require.True(t, errors.Is(cp.Mult(nil, r, d, cp.OrderBitlen()+1, g), ccerr.ErrParameter))
	require.Panics(t, func() { _ = cp.Mult(nil, g, d, 3, g) })
}

func TestMultXZero(t *testing.T) {
	homog, err := NamedCurveParams("P-224", WithRepresentation(Homogeneous))
	require.NoError(t, err)
	fermat, err := NamedCurveParams("P-224", WithFieldOptions(cczp.WithFermatInverse()))
	require.NoError(t, err)

	// A point with x = 0 exists when b is a square.
	for _, cp := range append(curveVariants(t), homog, fermat) {
		p := toBig(cp.ZP().Prime())
		b := cp.ZP().NewElement()
		cp.ZP().From(nil, b, cp.B())
		y := new(big.Int).ModSqrt(toBig(b), p)
		if y == nil {
			continue
		}

		s := pointFromBig(t, cp, big.NewInt(0), y)
		require.True(t, cp.IsPoint(nil, s))

		ref := refCurve(cp)
		q := order(cp)
		rng := ccrng.NewDRBGFromUint64(7)
		for _, k := range []*big.Int{
			big.NewInt(1), big.NewInt(2), big.NewInt(3), randScalar(t, cp, rng),
			new(big.Int).Sub(q, big.NewInt(2)), new(big.Int).Sub(q, big.NewInt(1)),
		} {
			r := mult(t, cp, k, s)
			x, yy := affine(t, cp, r)
			wx, wy := ref.ScalarMult(big.NewInt(0), y, k.Bytes())
			requireBig(t, wx, x, "%s k=%x", cp.Name(), k)
			requireBig(t, wy, yy, "%s k=%x", cp.Name(), k)
		}

		// (q-1)·s = -s = (0, p - y)
		r := mult(t, cp, new(big.Int).Sub(q, big.NewInt(1)), s)
		x, yy := affine(t, cp, r)
		require.Zero(t, x.Sign(), cp.Name())
		requireBig(t, new(big.Int).Sub(p, y), yy, cp.Name())

		for _, k := range []*big.Int{big.NewInt(0), q} {
			r := mult(t, cp, k, s)
			require.True(t, cp.IsPointAtInfinity(r), "%s k=%x", cp.Name(), k)
		}
	}
}

func TestFullAdd(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(2)
	for _, cp := range curveVariants(t) {
		ref := refCurve(cp)
		g := generator(t, cp)
		a := randScalar(t, cp, rng)
		b := randScalar(t, cp, rng)
		s := mult(t, cp, a, g)
		u := mult(t, cp, b, g)

		r := cp.NewPoint()
		cp.FullAdd(nil, r, s, u)
		x, y := affine(t, cp, r)
		sx, sy := affine(t, cp, s)
		ux, uy := affine(t, cp, u)
		wx, wy := ref.Add(sx, sy, ux, uy)
		requireBig(t, wx, x, cp.Name())
		requireBig(t, wy, y, cp.Name())

		// s + s
		cp.FullAdd(nil, r, s, s)
		x, y = affine(t, cp, r)
		wx, wy = ref.Double(sx, sy)
		requireBig(t, wx, x, cp.Name())
		requireBig(t, wy, y, cp.Name())

		// s - s
		cp.FullSub(nil, r, s, s)
		require.True(t, cp.IsPointAtInfinity(r))

		// s + ∞ and ∞ + s
		inf := cp.NewPoint()
		cp.SetInfinity(inf)
		cp.FullAdd(nil, r, s, inf)
		x, y = affine(t, cp, r)
		requireBig(t, sx, x)
		requireBig(t, sy, y)
		cp.FullAdd(nil, r, inf, s)
		x, y = affine(t, cp, r)
		requireBig(t, sx, x)
		requireBig(t, sy, y)

		cp.FullAdd(nil, r, inf, inf)
		require.True(t, cp.IsPointAtInfinity(r))

		// Output aliasing either input.
		c := cp.NewPoint()
		copyPoint(c, s)
		cp.FullAdd(nil, c, c, u)
		x, _ = affine(t, cp, c)
		wx, _ = ref.Add(sx, sy, ux, uy)
		requireBig(t, wx, x)

		copyPoint(c, u)
		cp.FullAdd(nil, c, s, c)
		x, _ = affine(t, cp, c)
		requireBig(t, wx, x)
	}
}

func TestDouble(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(3)
	for _, cp := range curveVariants(t) {
		g := generator(t, cp)
		s := mult(t, cp, randScalar(t, cp, rng), g)

		r := cp.NewPoint()
		cp.Double(nil, r, s)
		x, y := affine(t, cp, r)

		sum := cp.NewPoint()
		cp.FullAdd(nil, sum, s, s)
		wx, wy := affine(t, cp, sum)
		requireBig(t, wx, x, cp.Name())
		requireBig(t, wy, y, cp.Name())

		// In place.
		cp.Double(nil, s, s)
		x, y = affine(t, cp, s)
		requireBig(t, wx, x)
		requireBig(t, wy, y)

		inf := cp.NewPoint()
		cp.SetInfinity(inf)
		cp.Double(nil, r, inf)
		require.True(t, cp.IsPointAtInfinity(r))
	}
}

func TestAddNormalized(t *testing.T) {
	cp := P256()
	ref := refCurve(cp)
	rng := ccrng.NewDRBGFromUint64(4)
	g := generator(t, cp)
	gx, gy := toBig(cp.G().X), toBig(cp.G().Y)

	s := mult(t, cp, randScalar(t, cp, rng), g)
	sx, sy := affine(t, cp, s)

	r := cp.NewPoint()
	cp.AddNormalized(nil, r, s, g)
	x, y := affine(t, cp, r)
	wx, wy := ref.Add(sx, sy, gx, gy)
	requireBig(t, wx, x)
	requireBig(t, wy, y)

	cp.SubNormalized(nil, r, s, g)
	x, y = affine(t, cp, r)
	wx, wy = ref.Add(sx, sy, gx, new(big.Int).Sub(ref.Params().P, gy))
	requireBig(t, wx, x)
	requireBig(t, wy, y)

	// g + g doubles, g - g is infinity.
	cp.AddNormalized(nil, r, g, g)
	x, y = affine(t, cp, r)
	wx, wy = ref.Double(gx, gy)
	requireBig(t, wx, x)
	requireBig(t, wy, y)

	cp.SubNormalized(nil, r, g, g)
	require.True(t, cp.IsPointAtInfinity(r))

	// -g - g = -2g
	ng := cp.NewPoint()
	copyPoint(ng, g)
	cp.ZP().Negate(ng.Y, ng.Y)
	cp.SubNormalized(nil, r, ng, g)
	x, y = affine(t, cp, r)
	wx, wy = ref.Double(gx, gy)
	requireBig(t, wx, x)
	requireBig(t, new(big.Int).Sub(ref.Params().P, wy), y)

	inf := cp.NewPoint()
	cp.SetInfinity(inf)
	cp.FullAddNormalized(nil, r, inf, g)
	x, y = affine(t, cp, r)
	requireBig(t, gx, x)
	requireBig(t, gy, y)

	cp.FullSubNormalized(nil, r, inf, g)
	x, y = affine(t, cp, r)
	requireBig(t, gx, x)
	requireBig(t, new(big.Int).Sub(ref.Params().P, gy), y)
}

func TestProjectifyAffinify(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(5)
	for _, cp := range curveVariants(t) {
		p := cp.NewPoint()
		require.NoError(t, cp.Projectify(nil, p, cp.G(), rng))
		require.False(t, cp.ZP().IsOne(p.Z))
		require.True(t, cp.IsPoint(nil, p))

		a := cp.NewAffinePoint()
		require.NoError(t, cp.Affinify(nil, a, p))
		require.Equal(t, cp.G().X, a.X)
		require.Equal(t, cp.G().Y, a.Y)

		x := make([]Unit, cp.N())
		require.NoError(t, cp.AffinifyXOnly(nil, x, p))
		require.Equal(t, cp.G().X, x)
	}

	cp := P256()
	bad := AffinePoint{X: cp.ZP().Prime(), Y: cp.G().Y}
	p := cp.NewPoint()
	require.True(t, errors.Is(cp.Projectify(nil, p, bad, nil), ccerr.ErrParameter))
	require.True(t, errors.Is(cp.Projectify(nil, p, cp.G(), failingReader{}), ccerr.ErrRNG))
}

func TestAffinifyClearsOnError(t *testing.T) {
	for _, cp := range curveVariants(t) {
		inf := cp.NewPoint()
		cp.SetInfinity(inf)

		a := cp.NewAffinePoint()
		copy(a.X, cp.G().X)
		copy(a.Y, cp.G().Y)
		require.True(t, errors.Is(cp.Affinify(nil, a, inf), ccerr.ErrParameter))
		require.True(t, ccn.IsZero(a.X), cp.Name())
		require.True(t, ccn.IsZero(a.Y), cp.Name())

		x := make([]Unit, cp.N())
		copy(x, cp.G().X)
		require.True(t, errors.Is(cp.AffinifyXOnly(nil, x, inf), ccerr.ErrParameter))
		require.True(t, ccn.IsZero(x), cp.Name())

		out := []AffinePoint{cp.NewAffinePoint(), cp.NewAffinePoint()}
		copy(out[0].X, cp.G().X)
		copy(out[1].Y, cp.G().Y)
		require.Error(t, cp.AffinifyPoints(nil, out, []*ProjectivePoint{generator(t, cp), inf}))
		for _, o := range out {
			require.True(t, ccn.IsZero(o.X), cp.Name())
			require.True(t, ccn.IsZero(o.Y), cp.Name())
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("no entropy")
}

func TestAffinifyPoints(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(6)
	for _, cp := range curveVariants(t) {
		g := generator(t, cp)
		var pts []*ProjectivePoint
		for i := 0; i < 5; i++ {
			pts = append(pts, mult(t, cp, randScalar(t, cp, rng), g))
		}

		out := make([]AffinePoint, len(pts))
		for i := range out {
			out[i] = cp.NewAffinePoint()
		}
		require.NoError(t, cp.AffinifyPoints(nil, out, pts))

		for i, p := range pts {
			a := cp.NewAffinePoint()
			require.NoError(t, cp.Affinify(nil, a, p))
			require.Equal(t, a, out[i], "%s point %d", cp.Name(), i)
		}

		inf := cp.NewPoint()
		cp.SetInfinity(inf)
		err := cp.AffinifyPoints(nil, out[:2], []*ProjectivePoint{pts[0], inf})
		require.True(t, errors.Is(err, ccerr.ErrParameter))
		require.True(t, errors.Is(cp.AffinifyPoints(nil, out[:1], pts), ccerr.ErrParameter))
	}
}

func TestJSF(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(8)
	cp := P256()
	for i := 0; i < 50; i++ {
		k0, k1 := randScalar(t, cp, rng), randScalar(t, cp, rng)
		if i == 0 {
			k0, k1 = big.NewInt(3), big.NewInt(0)
		}
		u0, u1 := toUnits(cp.N(), k0), toUnits(cp.N(), k1)
		nbits := max(k0.BitLen(), k1.BitLen())
		cols := jsf(u0, u1, nbits)
		require.Len(t, cols, nbits+1)

		var got [2]*big.Int
		for j := range got {
			got[j] = new(big.Int)
			for k := len(cols) - 1; k >= 0; k-- {
				got[j].Lsh(got[j], 1)
				got[j].Add(got[j], big.NewInt(int64(cols[k][j])))
			}
		}
		requireBig(t, k0, got[0])
		requireBig(t, k1, got[1])

		// Of any three consecutive columns at least one is zero.
		for k := 0; k+2 < len(cols); k++ {
			zero := false
			for _, c := range cols[k : k+3] {
				zero = zero || (c[0] == 0 && c[1] == 0)
			}
			require.True(t, zero, "columns %d..%d", k, k+2)
		}
	}
}

func TestTwinMult(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(9)
	for _, cp := range allCurves() {
		g := generator(t, cp)
		u := mult(t, cp, randScalar(t, cp, rng), g)

		for i := 0; i < 3; i++ {
			d0, d1 := randScalar(t, cp, rng), randScalar(t, cp, rng)
			if i == 0 {
				d1 = big.NewInt(0)
			}

			r := cp.NewPoint()
			require.NoError(t, cp.TwinMult(nil, r, toUnits(cp.N(), d0), g, toUnits(cp.N(), d1), u))
			x, y := affine(t, cp, r)

			want := cp.NewPoint()
			cp.FullAdd(nil, want, mult(t, cp, d0, g), mult(t, cp, d1, u))
			wx, wy := affine(t, cp, want)
			requireBig(t, wx, x, cp.Name())
			requireBig(t, wy, y, cp.Name())
		}

		// s = t cannot be normalized.
		r := cp.NewPoint()
		d := toUnits(cp.N(), big.NewInt(3))
		err := cp.TwinMult(nil, r, d, g, d, g)
		require.True(t, errors.Is(err, ccerr.ErrNoInverse))
	}
}

func TestCombinedMult(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(10)
	for _, cp := range curveVariants(t) {
		g := generator(t, cp)
		d0, d1 := randScalar(t, cp, rng), randScalar(t, cp, rng)

		want := func(s, u *ProjectivePoint) (*big.Int, *big.Int) {
			p := cp.NewPoint()
			cp.FullAdd(nil, p, mult(t, cp, d0, s), mult(t, cp, d1, u))
			return affine(t, cp, p)
		}

		u := mult(t, cp, randScalar(t, cp, rng), g)
		neg := cp.NewPoint()
		copyPoint(neg, g)
		cp.ZP().Negate(neg.Y, neg.Y)

		// Distinct points, equal points and opposite points.
		for _, other := range []*ProjectivePoint{u, g, neg} {
			r := cp.NewPoint()
			require.NoError(t, cp.CombinedMult(nil, r, toUnits(cp.N(), d0), g, toUnits(cp.N(), d1), other))
			x, y := affine(t, cp, r)
			wx, wy := want(g, other)
			requireBig(t, wx, x, cp.Name())
			requireBig(t, wy, y, cp.Name())
		}
	}

	homog, err := NamedCurveParams("P-256", WithRepresentation(Homogeneous))
	require.NoError(t, err)
	g := generator(t, homog)
	r := homog.NewPoint()
	d := toUnits(homog.N(), big.NewInt(3))
	require.True(t, errors.Is(homog.TwinMult(nil, r, d, g, d, g), ccerr.ErrParameter))
}

func TestMultBlinded(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(11)
	mg, err := ccrng.NewMaskGenerator(rng)
	require.NoError(t, err)

	for _, cp := range curveVariants(t) {
		g := generator(t, cp)
		q := order(cp)
		for _, k := range []*big.Int{big.NewInt(1), big.NewInt(0xfffffff), new(big.Int).Sub(q, big.NewInt(1)), randScalar(t, cp, rng)} {
			r := cp.NewPoint()
			require.NoError(t, cp.MultBlinded(nil, mg, r, toUnits(cp.N(), k), g))
			x, y := affine(t, cp, r)
			wx, wy := affine(t, cp, mult(t, cp, k, g))
			requireBig(t, wx, x, "%s k=%x", cp.Name(), k)
			requireBig(t, wy, y, "%s k=%x", cp.Name(), k)
		}

		r := cp.NewPoint()
		require.NoError(t, cp.MultBlinded(nil, mg, r, toUnits(cp.N(), big.NewInt(0)), g))
		require.True(t, cp.IsPointAtInfinity(r))

		d := toUnits(cp.N(), big.NewInt(1))
		require.True(t, errors.Is(cp.MultBlinded(nil, nil, r, d, g), ccerr.ErrParameter))
	}
}

func TestWorkspaceSizing(t *testing.T) {
	cp := P384()
	n := cp.N()
	g := generator(t, cp)
	rng := ccrng.NewDRBGFromUint64(12)
	mg, err := ccrng.NewMaskGenerator(rng)
	require.NoError(t, err)
	d := toUnits(n, randScalar(t, cp, rng))

	ws := workspace.New(MultWorkspace(n))
	r := cp.NewPoint()
	require.NoError(t, cp.Mult(ws, r, d, cp.OrderBitlen(), g))
	require.Zero(t, ws.Used())
	require.LessOrEqual(t, ws.HighWater(), MultWorkspace(n))

	ws = workspace.New(MultBlindedWorkspace(n))
	require.NoError(t, cp.MultBlinded(ws, mg, r, d, g))
	require.Zero(t, ws.Used())

	ws = workspace.New(CombinedMultWorkspace(n))
	sum := cp.NewPoint()
	require.NoError(t, cp.CombinedMult(ws, sum, d, g, d, r))
	require.Zero(t, ws.Used())

	ws = workspace.New(AffinifyWorkspace(n))
	a := cp.NewAffinePoint()
	require.NoError(t, cp.Affinify(ws, a, r))
	require.Zero(t, ws.Used())
}

func TestImportExportPoint(t *testing.T) {
	for _, cp := range allCurves() {
		enc := cp.ExportPoint(cp.G())
		require.Len(t, enc, 1+2*cp.CoordinateSize())

		ref := refCurve(cp).Params()
		//nolint:staticcheck // reference encoding
		require.Equal(t, elliptic.Marshal(refCurve(cp), ref.Gx, ref.Gy), enc)

		p, err := cp.ImportPoint(enc)
		require.NoError(t, err)
		require.Equal(t, cp.G(), p)

		bad := append([]byte(nil), enc...)
		bad[len(bad)-1] ^= 1
		_, err = cp.ImportPoint(bad)
		require.True(t, errors.Is(err, ccerr.ErrParameter))

		bad[0] = 2
		_, err = cp.ImportPoint(bad)
		require.True(t, errors.Is(err, ccerr.ErrParameter))

		_, err = cp.ImportPoint(enc[:len(enc)-1])
		require.True(t, errors.Is(err, ccerr.ErrParameter))
	}
}

func TestValidateScalar(t *testing.T) {
	cp := P256()
	q := order(cp)
	n := cp.N()
	require.NoError(t, cp.ValidateScalar(toUnits(n, big.NewInt(1))))
	require.NoError(t, cp.ValidateScalar(toUnits(n, new(big.Int).Sub(q, big.NewInt(1)))))
	require.True(t, errors.Is(cp.ValidateScalar(toUnits(n, big.NewInt(0))), ccerr.ErrParameter))
	require.True(t, errors.Is(cp.ValidateScalar(toUnits(n, q)), ccerr.ErrParameter))
}
