package ccrng

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

// MaskGenerator produces the 32-bit blinding masks used by blinded
// exponentiation and scalar multiplication.
//
// Every mask it hands out is folded back into the key, so consecutive masks
// are decorrelated even when the seed is reused. A MaskGenerator is not safe
// for concurrent use; give each goroutine its own.
type MaskGenerator struct {
	key [chacha20.KeySize]byte
}

// NewMaskGenerator seeds a generator with 32 bytes drawn from rng.
func NewMaskGenerator(rng io.Reader) (*MaskGenerator, error) {
	mg := new(MaskGenerator)
	if err := Read(rng, mg.key[:]); err != nil {
		return nil, err
	}
	return mg, nil
}

// Reseed mixes seed into the generator state.
func (mg *MaskGenerator) Reseed(seed []byte) {
	h, _ := blake2b.New256(nil)
	h.Write(mg.key[:])
	h.Write(seed)
	h.Sum(mg.key[:0])
}

// Next returns a fresh mask in [2^31, 2^32).
func (mg *MaskGenerator) Next() uint32 {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(mg.key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	var buf [4]byte
	c.XORKeyStream(buf[:], buf[:])
	mask := binary.LittleEndian.Uint32(buf[:]) | 1<<31

	binary.LittleEndian.PutUint32(buf[:], mask)
	mg.Reseed(buf[:])
	return mask
}
