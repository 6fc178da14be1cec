package ccn

import (
	"io"

	"github.com/pkg/errors"

	"github.com/moonfruit/go-corecrypto/ccerr"
	"github.com/moonfruit/go-corecrypto/ccrng"
	"github.com/moonfruit/go-corecrypto/unit"
)

// ReadUint decodes the big-endian data into r. Leading zero bytes are
// ignored; a value that does not fit in r is rejected and r is zeroed.
func ReadUint(r []Unit, data []byte) error {
	clear(r)

	for len(data) > 0 && data[0] == 0 {
		data = data[1:]
	}
	if len(data) > len(r)*unit.Bytes {
		return errors.WithMessagef(ccerr.ErrParameter, "ccn: %d bytes do not fit in %d units", len(data), len(r))
	}

	for i := 0; i < len(data); i++ {
		b := Unit(data[len(data)-1-i])
		r[i/unit.Bytes] |= b << (8 * (i % unit.Bytes))
	}
	return nil
}

// ByteLen returns the minimal big-endian encoding length of a.
func ByteLen(a []Unit) int {
	return (Bitlen(a) + 7) / 8
}

// byteAt returns byte i (little-endian numbering) of a, or zero past the end.
func byteAt(a []Unit, i int) byte {
	w := i / unit.Bytes
	if w >= len(a) {
		return 0
	}
	return byte(a[w] >> (8 * (i % unit.Bytes)))
}

// WriteUint writes the least significant len(out) bytes of a, big-endian.
func WriteUint(a []Unit, out []byte) {
	for i := range out {
		out[len(out)-1-i] = byteAt(a, i)
	}
}

// WriteUintPadded writes a big-endian into out, left-padded with zeros, and
// returns the number of padding bytes. It branches on the magnitude of a;
// use WriteUintPaddedCT for secrets.
func WriteUintPadded(a []Unit, out []byte) (int, error) {
	size := ByteLen(a)
	if size > len(out) {
		clear(out)
		return 0, errors.WithMessagef(ccerr.ErrParameter, "ccn: %d bytes do not fit in %d", size, len(out))
	}
	WriteUint(a, out)
	return len(out) - size, nil
}

// WriteUintPaddedCT is WriteUintPadded with a running time that depends
// on len(a) and len(out) only. Values that do not fit are rejected after
// the fact and out is zeroed.
func WriteUintPaddedCT(a []Unit, out []byte) error {
	WriteUint(a, out)

	var overflow byte
	for i := len(out); i < len(a)*unit.Bytes; i++ {
		overflow |= byteAt(a, i)
	}
	if overflow != 0 {
		clear(out)
		return errors.WithMessage(ccerr.ErrParameter, "ccn: value does not fit")
	}
	return nil
}

// RandomBits fills r with nbits uniform random bits; the remaining bits of
// r are cleared.
func RandomBits(r []Unit, nbits int, rng io.Reader) error {
	n := Nof(nbits)
	if n > len(r) {
		return errors.WithMessage(ccerr.ErrParameter, "ccn: random bits do not fit")
	}
	clear(r)
	if n == 0 {
		return nil
	}

	buf := make([]byte, n*unit.Bytes)
	defer clear(buf)
	if err := ccrng.Read(rng, buf); err != nil {
		return err
	}
	for i, b := range buf {
		r[i/unit.Bytes] |= Unit(b) << (8 * (i % unit.Bytes))
	}

	if rem := nbits % unit.Bits; rem != 0 {
		r[n-1] &= unit.Mask >> (unit.Bits - rem)
	}
	return nil
}
