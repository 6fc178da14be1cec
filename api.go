// Package corecrypto provides NIST-curve key agreement and signatures on top
// of the constant-time arithmetic packages.
//
// Keys are bound to a *ccec.CurveParams. Every operation that handles a
// private scalar runs on a fresh workspace, projectifies its inputs with a
// random Z and blinds the scalar multiplication, so the only randomness a
// caller has to supply is an io.Reader; nil selects ccrng.System.
package corecrypto

import (
	"io"

	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccec"
	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/internal/logging"
	"github.com/moonfruit/go-corecrypto/unit"
	"github.com/moonfruit/go-corecrypto/workspace"
)

type Unit = unit.Unit

var logger = logging.MustGetLogger("corecrypto")

type PublicKey struct {
	curve *ccec.CurveParams
	point ccec.AffinePoint
}

// NewPublicKey decodes an uncompressed point and checks that it lies on
// the curve.
func NewPublicKey(curve *ccec.CurveParams, data []byte) (*PublicKey, error) {
	p, err := curve.ImportPoint(data)
	if err != nil {
		logger.Debugw("rejected public key", "curve", curve.Name(), "error", err)
		return nil, err
	}
	return &PublicKey{curve: curve, point: p}, nil
}

func (pk *PublicKey) Curve() *ccec.CurveParams {
	return pk.curve
}

// Bytes returns the uncompressed encoding 0x04 || X || Y.
func (pk *PublicKey) Bytes() []byte {
	return pk.curve.ExportPoint(pk.point)
}

func (pk *PublicKey) Equal(other *PublicKey) bool {
	return sameCurve(pk.curve, other.curve) &&
		ccn.Equal(pk.point.X, other.point.X) &&
		ccn.Equal(pk.point.Y, other.point.Y)
}

func sameCurve(a, b *ccec.CurveParams) bool {
	return a == b || (a.Name() == b.Name() && ccn.Equal(a.ZP().Prime(), b.ZP().Prime()))
}

type PrivateKey struct {
	pub PublicKey
	d   []Unit
}

// GenerateKey draws a private scalar uniformly from [1, q).
func GenerateKey(curve *ccec.CurveParams, rng io.Reader) (*PrivateKey, error) {
	if rng == nil {
		rng = ccrng.System
	}
	d := curve.ZQ().NewElement()
	if err := curve.ZQ().GenerateNonZeroRandomElement(nil, d, rng); err != nil {
		return nil, errors.WithMessage(err, "corecrypto: generate key")
	}
	return newPrivateKey(curve, d, rng)
}

// NewPrivateKey imports a big-endian scalar of exactly ScalarSize bytes.
func NewPrivateKey(curve *ccec.CurveParams, data []byte) (*PrivateKey, error) {
	if len(data) != curve.ScalarSize() {
		return nil, errors.WithMessagef(ccerr.ErrParameter, "corecrypto: private key must be %d bytes", curve.ScalarSize())
	}
	d := curve.ZQ().NewElement()
	if err := ccn.ReadUint(d, data); err != nil {
		return nil, err
	}
	if err := curve.ValidateScalar(d); err != nil {
		logger.Debugw("rejected private key", "curve", curve.Name(), "error", err)
		return nil, err
	}
	return newPrivateKey(curve, d, ccrng.System)
}

func publicWorkspace(n int) int {
	return 7*n + max(ccec.ProjectifyWorkspace(n), ccec.MultBlindedWorkspace(n), ccec.AffinifyWorkspace(n))
}

func newPrivateKey(curve *ccec.CurveParams, d []Unit, rng io.Reader) (*PrivateKey, error) {
	n := curve.N()
	ws := workspace.New(publicWorkspace(n))

	mg, err := ccrng.NewMaskGenerator(rng)
	if err != nil {
		return nil, err
	}
	g := curve.AllocPoint(ws)
	if err := curve.Projectify(ws, g, curve.G(), rng); err != nil {
		return nil, err
	}
	q := curve.AllocPoint(ws)
	if err := curve.MultBlinded(ws, mg, q, d, g); err != nil {
		return nil, err
	}

	k := &PrivateKey{d: d}
	k.pub.curve = curve
	k.pub.point = curve.NewAffinePoint()
	if err := curve.Affinify(ws, k.pub.point, q); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *PrivateKey) Public() *PublicKey {
	return &k.pub
}

// Bytes returns the scalar as ScalarSize big-endian bytes.
func (k *PrivateKey) Bytes() []byte {
	out := make([]byte, k.pub.curve.ScalarSize())
	if err := ccn.WriteUintPaddedCT(k.d, out); err != nil {
		panic(err)
	}
	return out
}

func sharedSecretWorkspace(n int) int {
	m := max(ccec.ProjectifyWorkspace(n), ccec.IsPointWorkspace(n), ccec.MultBlindedWorkspace(n), ccec.AffinifyWorkspace(n))
	return 7*n + m
}

// SharedSecret computes the ECDH shared secret: the x-coordinate of d·Q,
// CoordinateSize bytes long. The output should go through a KDF before it
// is used as a key.
func (k *PrivateKey) SharedSecret(remote *PublicKey, rng io.Reader) ([]byte, error) {
	curve := k.pub.curve
	if !sameCurve(curve, remote.curve) {
		return nil, errors.WithMessage(ccerr.ErrParameter, "corecrypto: keys are on different curves")
	}
	if rng == nil {
		rng = ccrng.System
	}

	n := curve.N()
	ws := workspace.New(sharedSecretWorkspace(n))
	defer ws.Reset()

	q := curve.AllocPoint(ws)
	if err := curve.Projectify(ws, q, remote.point, rng); err != nil {
		return nil, err
	}
	if !curve.IsPoint(ws, q) {
		return nil, errors.WithMessage(ccerr.ErrParameter, "corecrypto: public point not on curve")
	}
	if err := curve.ValidateScalar(k.d); err != nil {
		return nil, err
	}

	mg, err := ccrng.NewMaskGenerator(rng)
	if err != nil {
		return nil, err
	}
	r := curve.AllocPoint(ws)
	if err := curve.MultBlinded(ws, mg, r, k.d, q); err != nil {
		return nil, err
	}
	if !curve.IsPoint(ws, r) {
		return nil, errors.WithMessage(ccerr.ErrInternal, "corecrypto: shared point not on curve")
	}

	x := ws.Alloc(n)
	if err := curve.AffinifyXOnly(ws, x, r); err != nil {
		return nil, err
	}
	out := make([]byte, curve.CoordinateSize())
	if err := ccn.WriteUintPaddedCT(x, out); err != nil {
		return nil, err
	}
	return out, nil
}

// reduceOrder sets r := x mod q for x < p. For every supported curve
// p < 2q, so one conditional subtraction is enough.
func reduceOrder(zq *cczp.ZP, r, x, t []Unit) {
	b := ccn.Sub(t, x, zq.Prime())
	ccn.Mux(b, r, x, t)
}
