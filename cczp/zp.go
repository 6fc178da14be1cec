// Package cczp implements arithmetic in Z/(p) for an odd modulus p >= 3.
//
// A ZP is built once per modulus and is immutable afterwards, so it may be
// shared between goroutines. Elements are ccn integers of ZP.N() units in
// the ring's internal representation: canonical for the plain backend and
// Montgomery form (x·R mod p, R = 2^(w·n)) for the Montgomery backend. To
// and From convert between canonical values and that representation.
//
// Every operation taking a workspace also accepts nil, in which case it
// allocates a workspace of the size reported by the matching sizing
// function.
package cczp

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

type Unit = unit.Unit

// Backend selects how products are reduced.
type Backend uint8

const (
	// Plain keeps elements canonical and reduces with two Montgomery
	// reductions and a multiplication by R².
	Plain Backend = iota
	// Montgomery keeps elements in Montgomery form.
	Montgomery
)

func (b Backend) String() string {
	switch b {
	case Plain:
		return "plain"
	case Montgomery:
		return "montgomery"
	default:
		return "unknown"
	}
}

// Inverter selects how Inv computes inverses.
type Inverter uint8

const (
	// BinaryGCD is the constant-time word-approximation binary GCD.
	BinaryGCD Inverter = iota
	// Fermat computes x^(p-2) with fixed-window exponentiation.
	Fermat
)

func (i Inverter) String() string {
	switch i {
	case BinaryGCD:
		return "binary-gcd"
	case Fermat:
		return "fermat"
	default:
		return "unknown"
	}
}

type ZP struct {
	n      int
	p      []Unit
	bitlen int
	p0inv  Unit   // -p⁻¹ mod 2^w
	r2     []Unit // R² mod p
	one    []Unit // 1 in the ring representation

	backend  Backend
	inverter Inverter

	pMinus2   []Unit
	halfPm1   []Unit // (p-1)/2
	sqrtExp   []Unit // (p+1)/4 when p ≡ 3 (mod 4)
	tsC1      int    // 2-adic valuation of p-1
	tsC3      []Unit // (c2-1)/2 for p-1 = c2·2^c1
	tsC5      []Unit // c4^c2 for a non-residue c4, ring representation
	hasTSSqrt bool
}

type Option func(*ZP)

// WithMontgomery selects the Montgomery backend.
func WithMontgomery() Option {
	return func(zp *ZP) {
		zp.backend = Montgomery
	}
}

// WithFermatInverse computes inverses as x^(p-2).
func WithFermatInverse() Option {
	return func(zp *ZP) {
		zp.inverter = Fermat
	}
}

// New creates the ring Z/(p). p is copied; its length fixes N().
func New(p []Unit, opts ...Option) (*ZP, error) {
	n := len(p)
	if n == 0 || p[0]&1 == 0 || ccn.CmpN(p, []Unit{3}) < 0 {
		return nil, errors.WithMessage(ccerr.ErrParameter, "cczp: modulus must be odd and >= 3")
	}

	zp := &ZP{
		n:      n,
		p:      append([]Unit(nil), p...),
		bitlen: ccn.Bitlen(p),
		p0inv:  minusInverseModW(p[0]),
	}
	for _, opt := range opts {
		opt(zp)
	}

	if err := zp.initConstants(); err != nil {
		return nil, err
	}
	return zp, nil
}

// NewFromBytes creates the ring from a big-endian modulus.
func NewFromBytes(p []byte, opts ...Option) (*ZP, error) {
	u := make([]Unit, ccn.NofBytes(len(p)))
	if err := ccn.ReadUint(u, p); err != nil {
		return nil, err
	}
	return New(u[:max(ccn.N(u), 1)], opts...)
}

// minusInverseModW computes -x⁻¹ mod 2^w by Newton iteration; every step
// doubles the number of correct low bits, starting from 3.
func minusInverseModW(x Unit) Unit {
	y := x
	for i := 0; i < 5; i++ {
		y = y * (2 - x*y)
	}
	return -y
}

func (zp *ZP) initConstants() error {
	n := zp.n
	ws := workspace.New(max(ccn.DivModWorkspace(n), MulWorkspace(n), IsQuadraticResidueWorkspace(n), PowerFastWorkspace(n)))

	// R² mod p = 2^(2wn) mod p.
	r2full := make([]Unit, 2*n+1)
	r2full[2*n] = 1
	zp.r2 = make([]Unit, n)
	if err := ccn.Mod(ws, zp.r2, r2full, zp.p); err != nil {
		return err
	}

	zp.one = make([]Unit, n)
	ccn.SetI(zp.one, 1)
	zp.To(ws, zp.one, zp.one)

	zp.pMinus2 = make([]Unit, n)
	ccn.Sub1(zp.pMinus2, zp.p, 2)

	zp.halfPm1 = make([]Unit, n)
	ccn.ShiftRight(zp.halfPm1, zp.p, 1)

	if zp.p[0]&3 == 3 {
		// (p+1)/4 < p, so the carry only matters during the shift.
		e := make([]Unit, n+1)
		e[n] = ccn.Add1(e[:n], zp.p, 1)
		ccn.ShiftRight(e, e, 2)
		zp.sqrtExp = e[:n]
		return nil
	}
	zp.initTonelliShanks(ws)
	return nil
}

// initTonelliShanks precomputes the constants of the constant-time
// Tonelli-Shanks square root. Runs on the public modulus only.
func (zp *ZP) initTonelliShanks(ws *workspace.Workspace) {
	n := zp.n

	pm1 := make([]Unit, n)
	ccn.Sub1(pm1, zp.p, 1)
	zp.tsC1 = ccn.TrailingZeros(pm1)

	c2 := make([]Unit, n)
	ccn.ShiftRightMulti(c2, pm1, zp.tsC1)

	zp.tsC3 = make([]Unit, n)
	ccn.ShiftRight(zp.tsC3, c2, 1)

	// Find a non-residue c4. For a prime modulus half of all candidates
	// qualify; give up after a bounded search so a composite modulus only
	// disables Sqrt.
	c4 := make([]Unit, n)
	for i := Unit(2); i < 1024; i++ {
		ccn.SetI(c4, i)
		if ccn.Cmp(c4, zp.p) >= 0 {
			return
		}
		zp.To(ws, c4, c4)
		qr, err := zp.IsQuadraticResidue(ws, c4)
		if err == nil && !qr {
			zp.tsC5 = make([]Unit, n)
			if zp.PowerFast(ws, zp.tsC5, c4, c2) == nil {
				zp.hasTSSqrt = true
			}
			return
		}
	}
}

// N returns the number of units of an element.
func (zp *ZP) N() int {
	return zp.n
}

// Prime returns the modulus. The slice must not be modified.
func (zp *ZP) Prime() []Unit {
	return zp.p
}

func (zp *ZP) Bitlen() int {
	return zp.bitlen
}

func (zp *ZP) Backend() Backend {
	return zp.backend
}

func (zp *ZP) Inverter() Inverter {
	return zp.inverter
}

// One returns 1 in the ring representation. The slice must not be
// modified.
func (zp *ZP) One() []Unit {
	return zp.one
}

// NewElement allocates a zero element.
func (zp *ZP) NewElement() []Unit {
	return make([]Unit, zp.n)
}

// CheckElement rejects values >= p.
func (zp *ZP) CheckElement(x []Unit) error {
	if len(x) != zp.n || ccn.Cmp(x, zp.p) >= 0 {
		return errors.WithMessage(ccerr.ErrParameter, "cczp: element out of range")
	}
	return nil
}

// SetElement imports the canonical value x (x < p) into r in the ring
// representation.
func (zp *ZP) SetElement(ws *workspace.Workspace, r, x []Unit) error {
	if ccn.CmpN(x, zp.p) >= 0 {
		return errors.WithMessage(ccerr.ErrParameter, "cczp: element out of range")
	}
	ccn.SetN(r, x[:min(len(x), zp.n)])
	zp.To(ws, r, r)
	return nil
}

// Equal reports whether x == y.
func (zp *ZP) Equal(x, y []Unit) bool {
	return ccn.Equal(x[:zp.n], y[:zp.n])
}

// IsOne reports whether x is the multiplicative identity.
func (zp *ZP) IsOne(x []Unit) bool {
	return ccn.Equal(x[:zp.n], zp.one)
}

// Add sets r := x + y mod p.
func (zp *ZP) Add(r, x, y []Unit) {
	r = r[:zp.n]
	c := ccn.Add(r, x, y)
	b := borrowSub(r, zp.p)
	ccn.CondSub(c|(b^1), r, r, zp.p)
}

// borrowSub returns the borrow of a - b without storing the difference.
func borrowSub(a, b []Unit) Unit {
	var c Unit
	b = b[:len(a)]
	for i := range a {
		_, c = bits.Sub(a[i], b[i], c)
	}
	return c
}

// Sub sets r := x - y mod p.
func (zp *ZP) Sub(r, x, y []Unit) {
	r = r[:zp.n]
	b := ccn.Sub(r, x, y)
	ccn.CondAdd(b, r, r, zp.p)
}

// CondNegate sets r := -x mod p if s is 1 and r := x otherwise.
func (zp *ZP) CondNegate(s Unit, r, x []Unit) {
	r = r[:zp.n]
	x = x[:zp.n]
	// -0 = 0, not p.
	m := unit.FromBit(s &^ ccn.IsZeroBit(x))
	var b Unit
	for i := range r {
		var d Unit
		d, b = bits.Sub(zp.p[i], x[i], b)
		r[i] = unit.Select(m, d, x[i])
	}
}

// Negate sets r := -x mod p.
func (zp *ZP) Negate(r, x []Unit) {
	zp.CondNegate(1, r, x)
}

// Div2 sets r := x/2 mod p.
func (zp *ZP) Div2(r, x []Unit) {
	r = r[:zp.n]
	c := ccn.CondAdd(x[0]&1, r, x, zp.p)
	ccn.CondShiftRightCarry(1, r, r, 1, c)
}
