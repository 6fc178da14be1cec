// Package ccrng supplies the random sources consumed by the arithmetic
// packages.
//
// Any io.Reader producing uniform bytes is accepted as a generator. Short
// reads and read errors surface as ccerr.ErrRNG; there is never a fallback
// to a weaker source.
package ccrng

import (
	"crypto/rand"
	"io"

	"github.com/moonfruit/go-corecrypto/ccerr"
)

// System is the operating system CSPRNG.
var System io.Reader = rand.Reader

// Read fills b from rng.
func Read(rng io.Reader, b []byte) error {
	if rng == nil {
		return ccerr.RNG(io.ErrUnexpectedEOF)
	}
	if _, err := io.ReadFull(rng, b); err != nil {
		return ccerr.RNG(err)
	}
	return nil
}
