package announcement

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/canonical"
)

var ErrAlreadySigned = errors.New("announcement already carries a signature")

// Signer produces a signature over canonical bytes. Key management lives
// with the caller.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, payload []byte) (string, error)

func (f SignerFunc) Sign(ctx context.Context, payload []byte) (string, error) {
	return f(ctx, payload)
}

// SigningPayload returns the canonical pre-image a signature over a covers:
// every field except the signature, plus the announcement type code.
func SigningPayload(a Announcement) ([]byte, error) {
	return canonical.Flatten(a.fields())
}

// Sign returns a copy of a carrying the signature produced by signer. The
// input is left untouched.
func Sign(ctx context.Context, a Announcement, signer Signer) (Announcement, error) {
	if a.Sig() != "" {
		return nil, ErrAlreadySigned
	}
	payload, err := SigningPayload(a)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", a.Type(), err)
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", a.Type(), err)
	}
	return a.withSignature(sig), nil
}
