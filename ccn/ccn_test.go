package ccn

import (
	"math/big"
	"math/bits"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

func fromBig(x *big.Int, n int) []Unit {
	r := make([]Unit, n)
	b := x.Bytes()
	if err := ReadUint(r, b); err != nil {
		panic(err)
	}
	return r
}

func toBig(a []Unit) *big.Int {
	out := make([]byte, len(a)*unit.Bytes)
	WriteUint(a, out)
	return new(big.Int).SetBytes(out)
}

func randUnits(rng *ccrng.DRBG, n int) []Unit {
	r := make([]Unit, n)
	if err := RandomBits(r, BitsOf(n), rng); err != nil {
		panic(err)
	}
	return r
}

func modulus(n int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(BitsOf(n)))
}

func TestAddSub(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(1)
	for i := 0; i < 200; i++ {
		n := 1 + i%5
		a, b := randUnits(rng, n), randUnits(rng, n)
		r := make([]Unit, n)

		sum := new(big.Int).Add(toBig(a), toBig(b))
		c := Add(r, a, b)
		require.Equal(t, Unit(sum.Bit(BitsOf(n))), c)
		require.Zero(t, new(big.Int).Mod(sum, modulus(n)).Cmp(toBig(r)))

		diff := new(big.Int).Sub(toBig(a), toBig(b))
		c = Sub(r, a, b)
		require.Equal(t, diff.Sign() < 0, c == 1)
		require.Zero(t, new(big.Int).Mod(diff, modulus(n)).Cmp(toBig(r)))

		require.Equal(t, toBig(a).Cmp(toBig(b)), Cmp(a, b))
		require.Equal(t, 0, Cmp(a, a))
	}
}

func TestCondOps(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(2)
	a, b := randUnits(rng, 4), randUnits(rng, 4)
	r := make([]Unit, 4)

	CondAdd(0, r, a, b)
	require.Equal(t, a, r)
	c := CondAdd(1, r, a, b)
	s := make([]Unit, 4)
	require.Equal(t, Add(s, a, b), c)
	require.Equal(t, s, r)

	CondSub(0, r, a, b)
	require.Equal(t, a, r)

	Mux(1, r, a, b)
	require.Equal(t, a, r)
	Mux(0, r, a, b)
	require.Equal(t, b, r)

	x, y := append([]Unit(nil), a...), append([]Unit(nil), b...)
	CondSwap(0, x, y)
	require.Equal(t, a, x)
	CondSwap(1, x, y)
	require.Equal(t, b, x)
	require.Equal(t, a, y)

	CondNeg(1, r, a)
	Add(s, r, a)
	require.True(t, IsZero(s))

	CondClear(1, r)
	require.True(t, IsZero(r))
}

func TestMul(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(3)
	for n := 1; n <= 9; n++ {
		a, b := randUnits(rng, n), randUnits(rng, n)
		r := make([]Unit, 2*n)
		Mul(r, a, b)
		require.Zero(t, new(big.Int).Mul(toBig(a), toBig(b)).Cmp(toBig(r)))

		Sqr(r, a)
		require.Zero(t, new(big.Int).Mul(toBig(a), toBig(a)).Cmp(toBig(r)))

		c := randUnits(rng, n+2)
		rn := make([]Unit, 2*n+2)
		MulN(rn, a, c)
		require.Zero(t, new(big.Int).Mul(toBig(a), toBig(c)).Cmp(toBig(rn)))
	}
}

func TestShifts(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(4)
	a := randUnits(rng, 3)
	r := make([]Unit, 3)
	for _, k := range []uint{0, 1, 31, unit.Bits - 1} {
		ShiftRight(r, a, k)
		require.Zero(t, new(big.Int).Rsh(toBig(a), k).Cmp(toBig(r)), "k=%d", k)

		ShiftLeft(r, a, k)
		want := new(big.Int).Mod(new(big.Int).Lsh(toBig(a), k), modulus(3))
		require.Zero(t, want.Cmp(toBig(r)), "k=%d", k)
	}

	for _, k := range []int{0, 5, unit.Bits, unit.Bits + 3, 3 * unit.Bits} {
		ShiftRightMulti(r, a, k)
		require.Zero(t, new(big.Int).Rsh(toBig(a), uint(k)).Cmp(toBig(r)), "k=%d", k)

		ShiftLeftMulti(r, a, k)
		want := new(big.Int).Mod(new(big.Int).Lsh(toBig(a), uint(k)), modulus(3))
		require.Zero(t, want.Cmp(toBig(r)), "k=%d", k)
	}

	CondShiftRightCarry(1, r, a, 1, 1)
	want := new(big.Int).Rsh(toBig(a), 1)
	want.SetBit(want, BitsOf(3)-1, 1)
	require.Zero(t, want.Cmp(toBig(r)))

	CondShiftRight(0, r, a, 1)
	require.Equal(t, a, r)
}

func TestBits(t *testing.T) {
	a := []Unit{0, 0b1010, 0}
	require.Equal(t, unit.Bits+4, Bitlen(a))
	require.Equal(t, 2, N(a))
	require.Equal(t, unit.Bits+1, TrailingZeros(a))
	require.Equal(t, Unit(1), Bit(a, unit.Bits+1))
	require.Equal(t, Unit(0), Bit(a, 10*unit.Bits))

	SetBit(a, 0, 1)
	require.Equal(t, Unit(1), a[0])
	SetBit(a, 0, 0)
	require.Equal(t, Unit(0), a[0])

	require.Zero(t, Bitlen([]Unit{0, 0}))
	require.Zero(t, N([]Unit{0, 0}))
	require.True(t, IsOne([]Unit{1, 0}))
	require.True(t, IsZeroOrOne([]Unit{1, 0}))
	require.False(t, IsZeroOrOne([]Unit{2, 0}))
	require.Equal(t, 1, CmpN([]Unit{1, 1}, []Unit{1}))
	require.Equal(t, -1, CmpN([]Unit{1}, []Unit{1, 1}))
	require.Equal(t, 0, CmpN([]Unit{7, 0, 0}, []Unit{7}))
}

func TestDivMod(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(5)
	ws := workspace.New(DivModWorkspace(8))

	check := func(a, d []Unit) {
		q := make([]Unit, len(a))
		r := make([]Unit, len(d))
		require.NoError(t, DivMod(ws, q, r, a, d))
		wq, wr := new(big.Int).QuoRem(toBig(a), toBig(d), new(big.Int))
		require.Zero(t, wq.Cmp(toBig(q)), "q: %x / %x", toBig(a), toBig(d))
		require.Zero(t, wr.Cmp(toBig(r)), "r: %x / %x", toBig(a), toBig(d))
	}

	for i := 0; i < 300; i++ {
		na := 1 + i%8
		nd := 1 + (i/8)%na
		a := randUnits(rng, na)
		d := randUnits(rng, nd)
		// Vary the top of the divisor so normalization shifts differ.
		d[nd-1] >>= uint(i % unit.Bits)
		if IsZero(d) {
			d[0] = 1
		}
		check(a, d)
	}

	// Divisors with leading zero units and the 2^(w-1) special case.
	check([]Unit{5, 6, 7, 8}, []Unit{3, 0, 0})
	check([]Unit{unit.Mask, unit.Mask, unit.Mask}, []Unit{0, 1 << (unit.Bits - 1)})
	check([]Unit{unit.Mask, unit.Mask}, []Unit{unit.Mask})
	check([]Unit{1}, []Unit{2, 3})

	require.LessOrEqual(t, ws.HighWater(), DivModWorkspace(8))

	err := DivMod(nil, nil, make([]Unit, 1), []Unit{1}, []Unit{0})
	require.True(t, errors.Is(err, ccerr.ErrParameter))
}

func TestComputeV(t *testing.T) {
	for _, d := range []Unit{1 << (unit.Bits - 1), 1<<(unit.Bits-1) + 1, unit.Mask, unit.Mask - 12345} {
		two2w := new(big.Int).Lsh(big.NewInt(1), 2*unit.Bits)
		bd := new(big.Int).SetUint64(uint64(d))
		want := new(big.Int).Add(two2w, new(big.Int).Sub(bd, big.NewInt(1)))
		want.Div(want, bd)
		want.Sub(want, new(big.Int).Lsh(big.NewInt(1), unit.Bits))
		if d == 1<<(unit.Bits-1) {
			want.SetUint64(uint64(unit.Mask))
		}
		require.Equal(t, want.Uint64(), uint64(computeV(d)), "d=%x", d)
	}
}

func TestApproxMasks(t *testing.T) {
	require.Equal(t, unit.Mask, ApproxMaskHi|ApproxMaskLo)
	require.Zero(t, ApproxMaskHi&ApproxMaskLo)
	hi := ApproxMaskHi
	require.Equal(t, Unit(1)<<(unit.HalfBits-1), hi&-hi)
	require.Equal(t, ApproxSteps, bits.OnesCount(uint(ApproxMaskLo)))
}

func TestGCD(t *testing.T) {
	r := make([]Unit, 1)
	k := GCD(nil, r, []Unit{1729}, []Unit{1071})
	require.Equal(t, 0, k)
	require.Equal(t, Unit(7), r[0])

	k = GCD(nil, r, []Unit{1071}, []Unit{462})
	require.Equal(t, 0, k)
	require.Equal(t, Unit(21), r[0])

	k = GCD(nil, r, []Unit{12}, []Unit{18})
	require.Equal(t, 1, k)
	require.Equal(t, Unit(3), r[0])

	k = GCD(nil, r, []Unit{0}, []Unit{40})
	require.Equal(t, 3, k)
	require.Equal(t, Unit(5), r[0])

	rng := ccrng.NewDRBGFromUint64(6)
	ws := workspace.New(GCDWorkspace(6))
	for i := 0; i < 100; i++ {
		n := 1 + i%6
		a := randUnits(rng, n)
		b := randUnits(rng, 1+i%n)
		// Plant common factors of two.
		ShiftLeft(a, a, uint(i%5))
		ShiftLeft(b, b, uint(i%3))

		g := make([]Unit, n)
		k := GCD(ws, g, a, b)
		got := new(big.Int).Lsh(toBig(g), uint(k))
		want := new(big.Int).GCD(nil, nil, toBig(a), toBig(b))
		require.Zero(t, want.Cmp(got), "gcd(%x, %x)", toBig(a), toBig(b))
	}
	require.LessOrEqual(t, ws.HighWater(), GCDWorkspace(6))
}

func TestGCDCombinedWidthBoundary(t *testing.T) {
	// Fibonacci neighbours are the worst case for subtractive GCDs; use the
	// largest pair that fits so the iteration bound is exercised.
	for n := 1; n <= 4; n++ {
		a, b := big.NewInt(1), big.NewInt(1)
		limit := modulus(n)
		for {
			c := new(big.Int).Add(a, b)
			if c.Cmp(limit) >= 0 {
				break
			}
			a, b = b, c
		}
		g := make([]Unit, n)
		k := GCD(nil, g, fromBig(b, n), fromBig(a, n))
		require.Equal(t, 0, k)
		require.True(t, IsOne(g))

		// All-ones operands share every factor.
		ones := new(big.Int).Sub(limit, big.NewInt(1))
		k = GCD(nil, g, fromBig(ones, n), fromBig(ones, n))
		require.Equal(t, 0, k)
		require.Zero(t, ones.Cmp(toBig(g)))

		// Powers of two exercise k at the top bit.
		top := new(big.Int).Lsh(big.NewInt(1), uint(BitsOf(n)-1))
		k = GCD(nil, g, fromBig(top, n), fromBig(top, n))
		require.Equal(t, BitsOf(n)-1, k)
		require.True(t, IsOne(g))
	}
}

func TestLCM(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(7)
	for i := 0; i < 50; i++ {
		n := 1 + i%4
		a, b := randUnits(rng, n), randUnits(rng, n)
		l := make([]Unit, 2*n)
		require.NoError(t, LCM(nil, l, a, b))

		g := make([]Unit, n)
		k := GCD(nil, g, a, b)
		gcd := new(big.Int).Lsh(toBig(g), uint(k))
		prod := new(big.Int).Mul(toBig(a), toBig(b))
		require.Zero(t, prod.Cmp(new(big.Int).Mul(gcd, toBig(l))))
	}
}

func TestInvMod(t *testing.T) {
	r := make([]Unit, 1)
	require.NoError(t, InvMod(nil, r, []Unit{2}, []Unit{97}))
	require.Equal(t, Unit(49), r[0])

	require.NoError(t, InvMod(nil, r, []Unit{3}, []Unit{10}))
	require.Equal(t, Unit(7), r[0])

	for _, c := range []struct {
		x, m Unit
	}{{0, 97}, {97, 97}, {4, 10}, {6, 9}, {5, 1}, {5, 0}} {
		err := InvMod(nil, r, []Unit{c.x}, []Unit{c.m})
		require.True(t, errors.Is(err, ccerr.ErrParameter), "%d mod %d", c.x, c.m)
		require.Zero(t, r[0])
	}

	rng := ccrng.NewDRBGFromUint64(8)
	ws := workspace.New(InvModWorkspace(5))
	for i := 0; i < 200; i++ {
		n := 1 + i%5
		m := randUnits(rng, n)
		if i%2 == 0 {
			m[0] |= 1
		}
		if IsZeroOrOne(m) {
			continue
		}
		x := randUnits(rng, 1+i%(n+1))
		r := make([]Unit, n)
		err := InvMod(ws, r, x, m)

		bx, bm := toBig(x), toBig(m)
		g := new(big.Int).GCD(nil, nil, bx, bm)
		if g.Cmp(big.NewInt(1)) != 0 {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		check := new(big.Int).Mul(toBig(r), bx)
		require.Zero(t, big.NewInt(1).Cmp(check.Mod(check, bm)))
	}
	require.LessOrEqual(t, ws.HighWater(), InvModWorkspace(5))
}

func TestCodecRoundTrip(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(9)
	for i := 0; i < 50; i++ {
		n := 1 + i%5
		x := randUnits(rng, n)
		x[n-1] >>= uint(i % unit.Bits)
		minLen := ByteLen(x)
		for l := minLen; l <= minLen+9; l++ {
			out := make([]byte, l)
			require.NoError(t, WriteUintPaddedCT(x, out))
			back := make([]Unit, n)
			require.NoError(t, ReadUint(back, out))
			require.Equal(t, x, back)

			pad, err := WriteUintPadded(x, out)
			require.NoError(t, err)
			require.Equal(t, l-minLen, pad)
		}
		if minLen > 0 {
			require.Error(t, WriteUintPaddedCT(x, make([]byte, minLen-1)))
		}
	}

	r := make([]Unit, 1)
	require.NoError(t, ReadUint(r, nil))
	require.True(t, IsZero(r))
	require.NoError(t, ReadUint(r, append(make([]byte, 20), 0x12)))
	require.Equal(t, Unit(0x12), r[0])
	require.True(t, errors.Is(ReadUint(r, append([]byte{1}, make([]byte, unit.Bytes)...)), ccerr.ErrParameter))
}

func TestRandomBits(t *testing.T) {
	rng := ccrng.NewDRBGFromUint64(10)
	r := make([]Unit, 3)
	for _, nbits := range []int{0, 1, 7, unit.Bits, unit.Bits + 5, 3 * unit.Bits} {
		require.NoError(t, RandomBits(r, nbits, rng))
		require.LessOrEqual(t, Bitlen(r), nbits)
	}
	require.Error(t, RandomBits(r, 4*unit.Bits, rng))
}
