package ccn

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// InvModWorkspace returns the scratch units InvMod needs for an n-unit
// modulus.
func InvModWorkspace(n int) int {
	return n + max(DivModWorkspace(n), 8*n)
}

// InvMod sets r := x⁻¹ mod m. len(r) must equal len(m); x may have any
// length and is reduced modulo m first.
//
// The loop is an extended binary GCD keeping the invariants
//
//	u = A·x - B·m
//	v = D·m - C·x
//
// and runs for a fixed number of steps derived from the operand lengths.
// It fails for x ≡ 0, m < 2, x and m both even, or gcd(x, m) ≠ 1; r is
// zeroed on failure.
func InvMod(ws *workspace.Workspace, r, x, m []Unit) error {
	n := len(m)
	if len(r) != n {
		return errors.WithMessage(ccerr.ErrParameter, "ccn: invmod result size")
	}
	if IsZeroOrOne(m) {
		clear(r)
		return errors.WithMessage(ccerr.ErrParameter, "ccn: invmod modulus < 2")
	}

	ws = workspace.Ensure(ws, InvModWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	xr := ws.Alloc(n)
	if err := DivMod(ws, nil, xr, x, m); err != nil {
		return err
	}

	if IsZero(xr) || (xr[0]|m[0])&1 == 0 {
		clear(r)
		return errors.WithMessage(ccerr.ErrNoInverse, "ccn: invmod")
	}

	iterations := BitsOf(2 * n)

	u := ws.Alloc(n)
	v := ws.Alloc(n)
	Set(u, xr)
	Set(v, m)

	a := ws.Alloc(n)
	b := ws.Alloc(n)
	c := ws.Alloc(n)
	d := ws.Alloc(n)
	SetI(a, 1)
	Clear(b)
	Clear(c)
	SetI(d, 1)

	tmp1 := ws.Alloc(n)
	tmp2 := ws.Alloc(n)

	for i := 0; i < iterations; i++ {
		bothOdd := u[0] & v[0] & 1

		// v := v - u, if both are odd and v >= u.
		vLtU := Sub(tmp1, v, u)
		Mux(bothOdd&(vLtU^1), v, tmp1, v)

		// u := u - v, if both are odd and v < u.
		Sub(tmp1, u, v)
		Mux(bothOdd&vLtU, u, tmp1, u)

		// A := A + C or C := A + C (mod m)
		carry := Add(tmp1, a, c)
		borrow := Sub(tmp2, tmp1, m)
		Mux(borrow&(carry^1), tmp1, tmp1, tmp2)
		Mux(bothOdd&vLtU, a, tmp1, a)
		Mux(bothOdd&(vLtU^1), c, tmp1, c)

		// B := B + D or D := B + D (mod x), reduced exactly when A + C was.
		Add(tmp1, b, d)
		Sub(tmp2, tmp1, xr)
		Mux(borrow&(carry^1), tmp1, tmp1, tmp2)
		Mux(bothOdd&vLtU, b, tmp1, b)
		Mux(bothOdd&(vLtU^1), d, tmp1, d)

		// Exactly one of u, v is now even.
		uEven := (u[0] & 1) ^ 1
		vEven := (v[0] & 1) ^ 1

		abOdd := (a[0] | b[0]) & 1
		cdOdd := (c[0] | d[0]) & 1

		// Halve u if even and adjust A and B.
		CondShiftRight(uEven, u, u, 1)

		ca := CondAdd(uEven&abOdd, a, a, m)
		CondShiftRightCarry(uEven, a, a, 1, ca)

		cb := CondAdd(uEven&abOdd, b, b, xr)
		CondShiftRightCarry(uEven, b, b, 1, cb)

		// Halve v if even and adjust C and D.
		CondShiftRight(vEven, v, v, 1)

		cc := CondAdd(vEven&cdOdd, c, c, m)
		CondShiftRightCarry(vEven, c, c, 1, cc)

		cd := CondAdd(vEven&cdOdd, d, d, xr)
		CondShiftRightCarry(vEven, d, d, 1, cd)
	}

	// gcd(x, m) = 1 leaves u = 1.
	if !IsOne(u) {
		clear(r)
		return errors.WithMessage(ccerr.ErrNoInverse, "ccn: invmod")
	}
	Set(r, a)
	return nil
}
