// Package faultcanary computes the fault canaries returned next to
// signature verification results.
//
// A verifier compares the value it received with the value it computed and
// folds both into a canary. Only equal inputs reproduce the operation's
// constant, so a fault that flips the final comparison but not the
// computation leaves a canary the caller can catch with Equal.
package faultcanary

import "crypto/subtle"

const Size = 16

type Canary [Size]byte

// Per-operation constants.
var (
	ECDSA       = Canary{0xa4, 0x18, 0x6f, 0xd2, 0x0b, 0x93, 0x7c, 0x55, 0xe1, 0x3a, 0xc6, 0x29, 0x8d, 0x70, 0xbf, 0x04}
	RSAPKCS1v15 = Canary{0x5c, 0xe7, 0x21, 0x9a, 0x46, 0xd8, 0x0f, 0xb3, 0x72, 0x1d, 0xa9, 0x64, 0xf0, 0x3b, 0x8e, 0xc5}
	RSAPSS      = Canary{0x37, 0x82, 0xdc, 0x4e, 0xb9, 0x15, 0x60, 0xfa, 0x2d, 0xc1, 0x54, 0x9f, 0x06, 0xeb, 0x78, 0x13}
)

// order is the fixed byte order Set writes in.
var order = [Size]int{11, 4, 14, 1, 8, 13, 6, 0, 15, 3, 10, 5, 12, 2, 9, 7}

// Set writes c ^ in1 ^ in2 into out, with inputs shorter than Size repeated
// and bytes past Size folded back onto the first Size. out equals c exactly
// when in1 and in2 are equal. Empty or mismatched inputs yield the
// complement of c.
//
//go:noinline
func Set(out *Canary, c Canary, in1, in2 []byte) {
	n := len(in1)
	if n == 0 || n != len(in2) {
		for i := range out {
			out[i] = ^c[i]
		}
		return
	}

	for _, i := range order {
		out[i] = in1[i%n] ^ in2[i%n] ^ c[i]
	}
	for i := Size; i < n; i++ {
		out[i%Size] ^= in1[i] ^ in2[i]
	}
}

// Clear zeroes c, which never equals a canary constant.
func Clear(c *Canary) {
	*c = Canary{}
}

// Equal compares two canaries in constant time.
func Equal(a, b Canary) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
