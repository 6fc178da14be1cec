package ccrng

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

// DRBG is a deterministic ChaCha20 keystream generator. It is meant for
// reproducible tests and as the core of MaskGenerator; it is not a
// substitute for System when generating keys.
type DRBG struct {
	c *chacha20.Cipher
}

// NewDRBG keys a generator with BLAKE2b-256(seed).
func NewDRBG(seed []byte) *DRBG {
	key := blake2b.Sum256(seed)
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// Key and nonce sizes are fixed above.
		panic(err)
	}
	return &DRBG{c: c}
}

// NewDRBGFromUint64 is a convenience for tests.
func NewDRBGFromUint64(seed uint64) *DRBG {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	return NewDRBG(b[:])
}

func (d *DRBG) Read(p []byte) (int, error) {
	clear(p)
	d.c.XORKeyStream(p, p)
	return len(p), nil
}
