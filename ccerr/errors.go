// Package ccerr defines the error kinds returned by the arithmetic packages.
//
// Errors are compared with errors.Is. Arithmetic non-existence errors wrap
// ErrParameter so callers that only care about "bad input" can test for it
// while retry loops can distinguish the specific kind.
package ccerr

import "github.com/pkg/errors"

var (
	// ErrParameter reports an input outside the accepted range.
	ErrParameter = errors.New("invalid parameter")

	// ErrNoInverse reports that an element has no multiplicative inverse.
	ErrNoInverse = errors.WithMessage(ErrParameter, "no inverse exists")

	// ErrNotSquare reports that an element is not a quadratic residue.
	ErrNotSquare = errors.WithMessage(ErrParameter, "not a quadratic residue")

	// ErrRNG reports that the random source failed to produce bytes.
	ErrRNG = errors.New("random source failure")

	// ErrInternal reports a failed internal consistency check.
	ErrInternal = errors.New("internal error")

	// ErrInvalidSignature reports a well-formed signature that did not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// RNG wraps a failure of the random source.
func RNG(err error) error {
	return errors.Wrapf(ErrRNG, "%v", err)
}
