package cczp

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// PowerWorkspace returns the scratch units Power needs.
func PowerWorkspace(n int) int {
	return 6*n + MulWorkspace(n)
}

// PowerFastWorkspace returns the scratch units PowerFast needs.
func PowerFastWorkspace(n int) int {
	return 4*n + MulWorkspace(n)
}

// PowerBlindedWorkspace returns the scratch units PowerBlinded needs for an
// exponent of ebitlen bits.
func PowerBlindedWorkspace(n, ebitlen int) int {
	return 2*max(ccn.Nof(ebitlen), 1) + 2 + 2*n + max(ccn.DivModWorkspace(1), PowerWorkspace(n))
}

// Power sets r := s^e mod p, treating e as an ebitlen-bit secret. The
// running time depends on ebitlen and n only: a fixed 2-bit window walks
// every window of e and always multiplies by a table entry picked with a
// full constant-time scan.
func (zp *ZP) Power(ws *workspace.Workspace, r, s []Unit, ebitlen int, e []Unit) error {
	n := zp.n
	if err := zp.checkBase(s); err != nil {
		clear(r[:n])
		return err
	}

	ws = workspace.Ensure(ws, PowerWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	var table [4][]Unit
	for i := range table {
		table[i] = ws.Alloc(n)
	}
	ccn.Set(table[0], zp.one)
	ccn.Set(table[1], s)
	zp.Sqr(ws, table[2], s)
	zp.Mul(ws, table[3], table[2], s)

	acc := ws.Alloc(n)
	t := ws.Alloc(n)
	ccn.Set(acc, zp.one)

	nbits := (ebitlen + 1) &^ 1
	for i := nbits - 2; i >= 0; i -= 2 {
		zp.Sqr(ws, acc, acc)
		zp.Sqr(ws, acc, acc)

		w := ccn.Bit(e, i) | ccn.Bit(e, i+1)<<1
		for j := range table {
			ccn.Mux(unit.ToBit(unit.Eq(w, Unit(j))), t, table[j], t)
		}
		zp.Mul(ws, acc, acc, t)
	}

	ccn.Set(r[:n], acc)
	return nil
}

func (zp *ZP) checkBase(s []Unit) error {
	if len(s) < zp.n || ccn.Cmp(s[:zp.n], zp.p) >= 0 {
		return errors.WithMessage(ccerr.ErrParameter, "cczp: power base out of range")
	}
	return nil
}

// PowerFast sets r := s^e mod p. It branches on the bits of e, so e must
// be public; the base may be secret.
func (zp *ZP) PowerFast(ws *workspace.Workspace, r, s, e []Unit) error {
	n := zp.n
	if err := zp.checkBase(s); err != nil {
		clear(r[:n])
		return err
	}

	ws = workspace.Ensure(ws, PowerFastWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	// table[i] = s^(i+1)
	var table [3][]Unit
	for i := range table {
		table[i] = ws.Alloc(n)
	}
	ccn.Set(table[0], s)
	zp.Sqr(ws, table[1], s)
	zp.Mul(ws, table[2], table[1], s)

	acc := ws.Alloc(n)
	ccn.Set(acc, zp.one)

	nbits := (ccn.Bitlen(e) + 1) &^ 1
	for i := nbits - 2; i >= 0; i -= 2 {
		zp.Sqr(ws, acc, acc)
		zp.Sqr(ws, acc, acc)
		if w := ccn.Bit(e, i) | ccn.Bit(e, i+1)<<1; w != 0 {
			zp.Mul(ws, acc, acc, table[w-1])
		}
	}

	ccn.Set(r[:n], acc)
	return nil
}

// PowerBlinded is Power with the exponent split as e = q·m + b for a fresh
// 32-bit mask m, computing s^b·(s^q)^m so that no single exponentiation
// sees e itself. Only the ebitlen low bits of e are used.
func (zp *ZP) PowerBlinded(ws *workspace.Workspace, mg *ccrng.MaskGenerator, r, s []Unit, ebitlen int, e []Unit) error {
	n := zp.n
	en := max(ccn.Nof(ebitlen), 1)
	if len(e) < en || ccn.Bitlen(e[en:]) != 0 {
		clear(r[:n])
		return errors.WithMessage(ccerr.ErrParameter, "cczp: exponent longer than ebitlen")
	}
	if mg == nil {
		clear(r[:n])
		return errors.WithMessage(ccerr.ErrParameter, "cczp: blinding needs a mask generator")
	}

	ws = workspace.Ensure(ws, PowerBlindedWorkspace(n, ebitlen))
	mark := ws.Mark()
	defer ws.Release(mark)

	et := ws.Alloc(en)
	ccn.Set(et, e[:en])
	if rem := ebitlen % unit.Bits; rem != 0 {
		et[en-1] &= unit.Mask >> (unit.Bits - rem)
	} else if ebitlen <= 0 {
		clear(et)
	}

	q := ws.Alloc(en)
	b := ws.Alloc(1)
	m := ws.Alloc(1)
	m[0] = Unit(mg.Next())

	if err := ccn.DivMod(ws, q, b, et, m); err != nil {
		clear(r[:n])
		return err
	}

	// m >= 2^31, so q has at most ebitlen-31 bits.
	qbits := max(ebitlen-31, 1)

	t1 := ws.Alloc(n)
	t2 := ws.Alloc(n)

	if err := zp.Power(ws, t1, s, 32, b); err != nil {
		clear(r[:n])
		return err
	}
	if err := zp.Power(ws, t2, s, qbits, q); err != nil {
		clear(r[:n])
		return err
	}
	if err := zp.Power(ws, t2, t2, 32, m); err != nil {
		clear(r[:n])
		return err
	}
	zp.Mul(ws, r, t1, t2)
	return nil
}
