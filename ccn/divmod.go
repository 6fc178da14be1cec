package ccn

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

func ltBit(x, y Unit) Unit {
	_, b := bits.Sub(x, y, 0)
	return b
}

// bquot computes ⌈2^2w / d⌉ - 2^w for a normalized d by binary long
// division of 2^2w - d, which fits in two units.
func bquot(d Unit) Unit {
	y0, y1 := -d, unit.Mask
	dd0, dd1 := Unit(0), d
	var q Unit

	for i := 0; i <= unit.Bits; i++ {
		t0, b := bits.Sub(y0, dd0, 0)
		t1, lt := bits.Sub(y1, dd1, b)
		m := unit.FromBit(lt)
		y0 = unit.Select(m, y0, t0)
		y1 = unit.Select(m, y1, t1)

		// The top quotient bit is always 1 and falls off here.
		q = q<<1 | (lt ^ 1)

		dd0 = dd0>>1 | dd1<<(unit.Bits-1)
		dd1 >>= 1
	}

	return q + 2
}

// computeV returns the Barrett approximation for the top divisor unit:
// 2^w-1 if d = 2^(w-1), ⌈2^2w / d⌉ - 2^w otherwise.
func computeV(d Unit) Unit {
	s := unit.HeavisideStep(d ^ (1 << (unit.Bits - 1)))
	q := bquot(d)
	return unit.Select(unit.FromBit(s), q, unit.Mask)
}

// selectQuot picks q* with q <= q* <= q+2 for q = ⌊(a1·2^w + a0) / d⌋ and
// corrects it in two constant-time steps.
func selectQuot(a1, a0, d, v Unit) Unit {
	add := 2 - ltBit(a0, d)

	q := unit.MulHi(v, a1) + a1 + add
	q = unit.Select(unit.FromBit(ltBit(q, a1)), unit.Mask, q)

	yhi, ylo := bits.Mul(q, d)

	// If a - q*·d < 0, subtract 2.
	y0, b := bits.Sub(a0, ylo, 0)
	y1, b := bits.Sub(a1, yhi, b)
	q -= b << 1

	// If a - (q*-1)·d >= 0, add 1 back.
	_, c := bits.Add(y0, d, 0)
	_, c = bits.Add(y1, 0, c)
	q += c

	return q
}

// DivModWorkspace returns the scratch units DivMod needs for a divisor of n
// units.
func DivModWorkspace(n int) int {
	return 3 * (n + 1)
}

// DivMod computes q := ⌊a / d⌋ and r := a mod d. Either output may be nil.
// The quotient is truncated to len(q) units; r must have len(d) units.
//
// This is restoring long division with a Barrett-style quotient selection
// instead of a hardware divide, so the running time depends on len(a) and
// the significant unit count of d only. Scratch space is proportional to
// the divisor.
func DivMod(ws *workspace.Workspace, q, r, a, d []Unit) error {
	n := N(d)
	if n == 0 {
		return errors.WithMessage(ccerr.ErrParameter, "ccn: division by zero")
	}
	if r != nil && len(r) < n {
		return errors.WithMessage(ccerr.ErrParameter, "ccn: remainder too short")
	}

	na := len(a)
	if na < n {
		// a < d.
		clear(q)
		if r != nil {
			SetN(r, a)
		}
		return nil
	}
	m := na - n

	ws = workspace.Ensure(ws, DivModWorkspace(len(d)))
	mark := ws.Mark()
	defer ws.Release(mark)

	td := ws.Alloc(n + 1)
	ta := ws.Alloc(n + 1)
	tt := ws.Alloc(n + 1)

	// Normalize the divisor.
	s := uint(unit.Clz(d[n-1]))
	ShiftLeft(td[:n], d[:n], s)
	td[n] = 0

	// si := (s > 0) ? w-s : 0, sm := (s > 0) ? 2^w-1 : 0
	si := -s & (unit.Bits - 1)
	sm := unit.FromBit(unit.HeavisideStep(Unit(s)))

	SetN(ta, a[m:m+n])
	ShiftLeft(ta, ta, s)

	v := computeV(td[n-1])

	for i := m; i >= 0; i-- {
		// Refill the low unit with the shifted dividend so ta never needs
		// more than n+1 units.
		ta[0] = a[i] << s
		if i > 0 {
			ta[0] |= (a[i-1] & sm) >> si
		}

		qi := selectQuot(ta[n], ta[n-1], td[n-1], v)

		// ta := ta - qi·td
		tt[n] = Mul1(tt[:n], td[:n], qi)
		b := Sub(ta, ta, tt)
		qi -= b

		// Add td back at most twice.
		b -= CondAdd(b, ta, ta, td)
		CondAdd(b, ta, ta, td)

		if i < len(q) {
			q[i] = qi - b
		}

		if i > 0 {
			copy(ta[1:], ta[:n])
		}
	}

	if len(q) > m+1 {
		clear(q[m+1:])
	}

	if r != nil {
		ShiftRight(ta[:n], ta[:n], s)
		SetN(r, ta[:n])
	}
	return nil
}

// Mod is DivMod without a quotient.
func Mod(ws *workspace.Workspace, r, a, d []Unit) error {
	return DivMod(ws, nil, r, a, d)
}
