package corecrypto

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/moonfruit/go-corecrypto/ccec"
	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/cczp"
	"github.com/moonfruit/go-corecrypto/faultcanary"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// maxSignAttempts bounds the retries on r = 0 or s = 0, each of which has
// probability about 1/q.
const maxSignAttempts = 8

// digestToScalar converts a digest into e mod q, keeping its leftmost
// bitlen(q) bits.
func digestToScalar(curve *ccec.CurveParams, e, t []Unit, digest []byte) error {
	qbits := curve.OrderBitlen()
	nbytes := min(len(digest), (qbits+7)/8)
	if err := ccn.ReadUint(e, digest[:nbytes]); err != nil {
		return err
	}
	if len(digest)*8 > qbits {
		ccn.ShiftRight(e, e, uint(8-qbits%8)%8)
	}
	// e < 2^bitlen(q) < 2q.
	b := ccn.Sub(t, e, curve.ZQ().Prime())
	ccn.Mux(b, e, e, t)
	return nil
}

func signWorkspace(n int) int {
	m := max(
		cczp.GenerateRandomElementWorkspace(n),
		ccec.ProjectifyWorkspace(n),
		ccec.MultBlindedWorkspace(n),
		ccec.AffinifyWorkspace(n),
		cczp.InvWorkspace(n),
		cczp.MulWorkspace(n),
	)
	return 13*n + m
}

// SignRS signs a digest and returns the raw signature components.
func (k *PrivateKey) SignRS(rng io.Reader, digest []byte) (r, s []Unit, err error) {
	curve := k.pub.curve
	zq := curve.ZQ()
	if rng == nil {
		rng = ccrng.System
	}

	n := curve.N()
	ws := workspace.New(signWorkspace(n))
	defer ws.Reset()

	r = zq.NewElement()
	s = zq.NewElement()
	e := ws.Alloc(n)
	nonce := ws.Alloc(n)
	blind := ws.Alloc(n)
	kinv := ws.Alloc(n)
	x := ws.Alloc(n)
	if err := digestToScalar(curve, e, x, digest); err != nil {
		return nil, nil, err
	}

	mg, err := ccrng.NewMaskGenerator(rng)
	if err != nil {
		return nil, nil, err
	}
	g := curve.AllocPoint(ws)
	R := curve.AllocPoint(ws)

	for attempt := 0; attempt < maxSignAttempts; attempt++ {
		if err := zq.GenerateNonZeroRandomElement(ws, nonce, rng); err != nil {
			return nil, nil, err
		}
		if err := curve.Projectify(ws, g, curve.G(), rng); err != nil {
			return nil, nil, err
		}
		if err := curve.MultBlinded(ws, mg, R, nonce, g); err != nil {
			return nil, nil, err
		}
		if err := curve.AffinifyXOnly(ws, x, R); err != nil {
			return nil, nil, err
		}
		reduceOrder(zq, r, x, kinv)
		if ccn.IsZero(r) {
			continue
		}

		// k⁻¹ = (k·b)⁻¹·b for a random b, so the inversion never sees k.
		if err := zq.GenerateNonZeroRandomElement(ws, blind, rng); err != nil {
			return nil, nil, err
		}
		zq.Mul(ws, kinv, nonce, blind)
		if err := zq.Inv(ws, kinv, kinv); err != nil {
			return nil, nil, errors.WithMessage(ccerr.ErrInternal, "corecrypto: nonce inversion failed")
		}
		zq.Mul(ws, kinv, kinv, blind)

		// s = k⁻¹·(e + r·d)
		zq.Mul(ws, s, r, k.d)
		zq.Add(s, s, e)
		zq.Mul(ws, s, s, kinv)
		if !ccn.IsZero(s) {
			return r, s, nil
		}
	}
	logger.Warnw("signing gave up", "curve", curve.Name(), "attempts", maxSignAttempts)
	return nil, nil, errors.WithMessage(ccerr.ErrInternal, "corecrypto: no valid nonce found")
}

// Sign signs a digest and returns an ASN.1 DER ECDSA-Sig-Value.
func (k *PrivateKey) Sign(rng io.Reader, digest []byte) ([]byte, error) {
	r, s, err := k.SignRS(rng, digest)
	if err != nil {
		return nil, err
	}
	size := k.pub.curve.ScalarSize()
	rb := make([]byte, size)
	sb := make([]byte, size)
	ccn.WriteUint(r, rb)
	ccn.WriteUint(s, sb)
	return encodeSignature(rb, sb)
}

func encodeSignature(r, s []byte) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		addASN1IntBytes(b, r)
		addASN1IntBytes(b, s)
	})
	return b.Bytes()
}

// addASN1IntBytes encodes a big-endian positive integer.
func addASN1IntBytes(b *cryptobyte.Builder, v []byte) {
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	if len(v) == 0 {
		b.SetError(errors.New("corecrypto: zero signature component"))
		return
	}
	b.AddASN1(asn1.INTEGER, func(c *cryptobyte.Builder) {
		if v[0]&0x80 != 0 {
			c.AddUint8(0)
		}
		c.AddBytes(v)
	})
}

func parseSignature(sig []byte) (r, s []byte, err error) {
	var inner cryptobyte.String
	input := cryptobyte.String(sig)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(&r) ||
		!inner.ReadASN1Integer(&s) ||
		!inner.Empty() {
		return nil, nil, errors.WithMessage(ccerr.ErrParameter, "corecrypto: malformed signature")
	}
	return r, s, nil
}

func verifyWorkspace(n int) int {
	m := max(
		cczp.InvWorkspace(n),
		cczp.MulWorkspace(n),
		ccec.ProjectifyWorkspace(n),
		ccec.IsPointWorkspace(n),
		ccec.CombinedMultWorkspace(n),
		ccec.AffinifyWorkspace(n),
	)
	return 16*n + m
}

// VerifyWithCanary checks a DER signature over digest. A valid signature
// returns a nil error and faultcanary.ECDSA; callers guarding against fault
// injection should check both. ccerr.ErrInvalidSignature reports a
// well-formed signature that does not match and ccerr.ErrParameter a
// malformed one. The canary is zero on every error.
func (pk *PublicKey) VerifyWithCanary(digest, sig []byte) (faultcanary.Canary, error) {
	var canary faultcanary.Canary

	rb, sb, err := parseSignature(sig)
	if err != nil {
		logger.Debugw("rejected signature", "curve", pk.curve.Name(), "error", err)
		return canary, err
	}

	n := pk.curve.N()
	r := make([]Unit, n)
	s := make([]Unit, n)
	if err := ccn.ReadUint(r, rb); err != nil {
		return canary, err
	}
	if err := ccn.ReadUint(s, sb); err != nil {
		return canary, err
	}
	return pk.VerifyRS(digest, r, s)
}

// Verify reports whether sig is a valid DER signature over digest.
func (pk *PublicKey) Verify(digest, sig []byte) bool {
	canary, err := pk.VerifyWithCanary(digest, sig)
	return err == nil && faultcanary.Equal(canary, faultcanary.ECDSA)
}

// VerifyRS is VerifyWithCanary on raw signature components.
func (pk *PublicKey) VerifyRS(digest []byte, r, s []Unit) (faultcanary.Canary, error) {
	var canary faultcanary.Canary
	curve := pk.curve
	zq := curve.ZQ()
	n := curve.N()

	if len(r) != n || len(s) != n {
		return canary, errors.WithMessage(ccerr.ErrParameter, "corecrypto: signature component size")
	}
	if curve.ValidateScalar(r) != nil || curve.ValidateScalar(s) != nil {
		return canary, errors.WithMessage(ccerr.ErrParameter, "corecrypto: signature component out of range")
	}

	ws := workspace.New(verifyWorkspace(n))
	e := ws.Alloc(n)
	w := ws.Alloc(n)
	d0 := ws.Alloc(n)
	d1 := ws.Alloc(n)
	x := ws.Alloc(n)
	if err := digestToScalar(curve, e, w, digest); err != nil {
		return canary, err
	}

	// w = s⁻¹, d0 = e·w, d1 = r·w
	if err := zq.Inv(ws, w, s); err != nil {
		return canary, errors.WithMessage(ccerr.ErrParameter, "corecrypto: signature not invertible")
	}
	zq.Mul(ws, d0, e, w)
	zq.Mul(ws, d1, r, w)

	g := curve.AllocPoint(ws)
	q := curve.AllocPoint(ws)
	sum := curve.AllocPoint(ws)
	if err := curve.Projectify(ws, g, curve.G(), nil); err != nil {
		return canary, err
	}
	if err := curve.Projectify(ws, q, pk.point, nil); err != nil {
		return canary, err
	}
	if !curve.IsPoint(ws, q) {
		return canary, errors.WithMessage(ccerr.ErrParameter, "corecrypto: public point not on curve")
	}

	if err := curve.CombinedMult(ws, sum, d0, g, d1, q); err != nil {
		return canary, err
	}
	if err := curve.AffinifyXOnly(ws, x, sum); err != nil {
		return canary, errors.WithMessage(ccerr.ErrParameter, "corecrypto: verification reached infinity")
	}
	reduceOrder(zq, x, x, w)

	valid := ccn.Equal(x, r)

	// Both buffers are fully overwritten by the padded writes.
	size := curve.ScalarSize()
	rIn := make([]byte, size)
	rOut := make([]byte, size)
	for i := range rIn {
		rIn[i] = 0xaa
		rOut[i] = 0xff
	}
	if ccn.WriteUintPaddedCT(r, rIn) != nil || ccn.WriteUintPaddedCT(x, rOut) != nil {
		return canary, errors.WithMessage(ccerr.ErrInternal, "corecrypto: canary encoding")
	}
	var computed faultcanary.Canary
	faultcanary.Set(&computed, faultcanary.ECDSA, rIn, rOut)

	if !valid {
		return canary, ccerr.ErrInvalidSignature
	}
	return computed, nil
}
