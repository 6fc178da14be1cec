package cczp

import (
	"io"

	"github.com/moonfruit/go-corecrypto/ccn"
	"github.com/moonfruit/go-corecrypto/workspace"
)

// randomExtraBits is the oversampling that keeps the bias of the final
// reduction below 2^-64.
const randomExtraBits = 64

// GenerateRandomElementWorkspace returns the scratch units the random
// element generators need.
func GenerateRandomElementWorkspace(n int) int {
	return 2*n + ccn.Nof(randomExtraBits) + 1 + ccn.DivModWorkspace(n)
}

// GenerateRandomElement sets r to a uniform canonical value in [0, p).
func (zp *ZP) GenerateRandomElement(ws *workspace.Workspace, r []Unit, rng io.Reader) error {
	return zp.generate(ws, r, rng, false)
}

// GenerateNonZeroRandomElement sets r to a uniform canonical value in
// [1, p).
func (zp *ZP) GenerateNonZeroRandomElement(ws *workspace.Workspace, r []Unit, rng io.Reader) error {
	return zp.generate(ws, r, rng, true)
}

func (zp *ZP) generate(ws *workspace.Workspace, r []Unit, rng io.Reader, nonZero bool) error {
	n := zp.n
	ws = workspace.Ensure(ws, GenerateRandomElementWorkspace(n))
	mark := ws.Mark()
	defer ws.Release(mark)

	nbits := zp.bitlen + randomExtraBits
	t := ws.Alloc(ccn.Nof(nbits))
	if err := ccn.RandomBits(t, nbits, rng); err != nil {
		clear(r[:n])
		return err
	}

	if !nonZero {
		return ccn.Mod(ws, r[:n], t, zp.p)
	}

	// r = (t mod (p-1)) + 1
	pm1 := ws.Alloc(n)
	ccn.Sub1(pm1, zp.p, 1)
	if err := ccn.Mod(ws, r[:n], t, pm1); err != nil {
		clear(r[:n])
		return err
	}
	ccn.Add1(r[:n], r[:n], 1)
	return nil
}
