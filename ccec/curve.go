// Package ccec implements point arithmetic on short Weierstrass curves
// y² = x³ - 3x + b over prime fields, with the NIST P-192, P-224, P-256,
// P-384 and P-521 curves built in.
//
// Affine points hold canonical coordinates. Projective points hold
// coordinates in the field ring's representation, either Jacobian
// (x = X/Z², y = Y/Z³) or homogeneous (x = X/Z, y = Y/Z) depending on the
// curve configuration. The point at infinity has Z = 0.
package ccec

import (
	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

type Unit = unit.Unit

// Representation is the projective coordinate system of a curve.
type Representation uint8

const (
	Jacobian Representation = iota
	Homogeneous
)

func (r Representation) String() string {
	switch r {
	case Jacobian:
		return "jacobian"
	case Homogeneous:
		return "homogeneous"
	default:
		return "unknown"
	}
}

// MultAlgorithm selects the scalar multiplication ladder.
type MultAlgorithm uint8

const (
	// CoZLadder is the co-Z Montgomery ladder with constant-time fixups for
	// the scalars 0, 1, q-1 and q. Jacobian curves only.
	CoZLadder MultAlgorithm = iota
	// CompleteLadder is a Montgomery ladder over the complete addition
	// formulas.
	CompleteLadder
)

func (m MultAlgorithm) String() string {
	switch m {
	case CoZLadder:
		return "co-z"
	case CompleteLadder:
		return "complete"
	default:
		return "unknown"
	}
}

// CurveParams describes a curve with a = -3 and cofactor 1. It is
// immutable once built.
type CurveParams struct {
	name string
	n    int
	zp   *cczp.ZP
	zq   *cczp.ZP
	b    []Unit // ring representation
	g    AffinePoint

	repr Representation
	mult MultAlgorithm
	twin bool
}

type config struct {
	repr      Representation
	mult      MultAlgorithm
	twin      bool
	fieldOpts []cczp.Option
}

type Option func(*config)

// WithRepresentation selects the projective coordinate system. Homogeneous
// curves use the complete ladder.
func WithRepresentation(r Representation) Option {
	return func(c *config) {
		c.repr = r
	}
}

func WithMultAlgorithm(m MultAlgorithm) Option {
	return func(c *config) {
		c.mult = m
	}
}

// WithTwinMult enables or disables the joint-sparse-form twin
// multiplication used by CombinedMult.
func WithTwinMult(enabled bool) Option {
	return func(c *config) {
		c.twin = enabled
	}
}

// WithFieldOptions passes options to the field ring.
func WithFieldOptions(opts ...cczp.Option) Option {
	return func(c *config) {
		c.fieldOpts = append(c.fieldOpts, opts...)
	}
}

// NewCurve builds a curve from big-endian parameters: the field prime p,
// the coefficient b, the generator (gx, gy) and its prime order q.
func NewCurve(name string, p, b, gx, gy, q []byte, opts ...Option) (*CurveParams, error) {
	c := config{
		repr:      Jacobian,
		mult:      CoZLadder,
		twin:      true,
		fieldOpts: []cczp.Option{cczp.WithMontgomery()},
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.repr == Homogeneous {
		c.mult = CompleteLadder
	}

	zp, err := cczp.NewFromBytes(p, c.fieldOpts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s field", name)
	}
	n := zp.N()

	qu := make([]Unit, n)
	if err := ccn.ReadUint(qu, q); err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s order", name)
	}
	zq, err := cczp.New(qu)
	if err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s order", name)
	}

	cp := &CurveParams{
		name: name,
		n:    n,
		zp:   zp,
		zq:   zq,
		b:    make([]Unit, n),
		repr: c.repr,
		mult: c.mult,
		twin: c.twin,
	}

	ws := workspace.New(3*n + max(ProjectifyWorkspace(n), IsPointWorkspace(n)))
	if err := readElement(ws, zp, cp.b, b); err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s coefficient b", name)
	}

	cp.g = cp.NewAffinePoint()
	if err := ccn.ReadUint(cp.g.X, gx); err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s generator", name)
	}
	if err := ccn.ReadUint(cp.g.Y, gy); err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s generator", name)
	}

	g := cp.AllocPoint(ws)
	if err := cp.Projectify(ws, g, cp.g, nil); err != nil {
		return nil, errors.WithMessagef(err, "ccec: %s generator", name)
	}
	if !cp.IsPoint(ws, g) {
		return nil, errors.WithMessagef(ccerr.ErrParameter, "ccec: %s generator is not on the curve", name)
	}
	return cp, nil
}

// readElement decodes a canonical big-endian value into the ring.
func readElement(ws *workspace.Workspace, zp *cczp.ZP, r []Unit, data []byte) error {
	if err := ccn.ReadUint(r, data); err != nil {
		return err
	}
	return zp.SetElement(ws, r, r)
}

func (cp *CurveParams) Name() string {
	return cp.name
}

// N returns the number of units of a coordinate.
func (cp *CurveParams) N() int {
	return cp.n
}

// ZP returns the field ring.
func (cp *CurveParams) ZP() *cczp.ZP {
	return cp.zp
}

// ZQ returns the ring of scalars modulo the group order. It uses the plain
// backend, so its elements are canonical.
func (cp *CurveParams) ZQ() *cczp.ZP {
	return cp.zq
}

// B returns the curve coefficient in the ring representation.
func (cp *CurveParams) B() []Unit {
	return cp.b
}

// G returns the generator. The coordinates must not be modified.
func (cp *CurveParams) G() AffinePoint {
	return cp.g
}

func (cp *CurveParams) PrimeBitlen() int {
	return cp.zp.Bitlen()
}

func (cp *CurveParams) OrderBitlen() int {
	return cp.zq.Bitlen()
}

// ScalarSize returns the byte length of a scalar, also the size of each
// ECDSA signature component.
func (cp *CurveParams) ScalarSize() int {
	return (cp.OrderBitlen() + 7) / 8
}

// CoordinateSize returns the byte length of an encoded coordinate.
func (cp *CurveParams) CoordinateSize() int {
	return (cp.PrimeBitlen() + 7) / 8
}

func (cp *CurveParams) Representation() Representation {
	return cp.repr
}

func (cp *CurveParams) MultAlgorithm() MultAlgorithm {
	return cp.mult
}

// TwinMultEnabled reports whether CombinedMult may use twin multiplication.
func (cp *CurveParams) TwinMultEnabled() bool {
	return cp.twin && cp.repr == Jacobian
}

// ValidateScalar checks 0 < d < q.
func (cp *CurveParams) ValidateScalar(d []Unit) error {
	if ccn.IsZero(d) || ccn.CmpN(d, cp.zq.Prime()) >= 0 {
		return errors.WithMessage(ccerr.ErrParameter, "ccec: scalar out of range")
	}
	return nil
}
