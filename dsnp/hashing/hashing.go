// Package hashing computes keccak-256 content digests, either in one shot or
// incrementally while bytes stream through to a sink.
package hashing

import (
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Hasher is an incremental keccak-256 digest. It implements io.Writer so it
// can sit beside a sink in an io.MultiWriter.
type Hasher struct {
	h hash.Hash
	n int64
}

// New returns an empty Hasher.
func New() *Hasher {
	return &Hasher{h: sha3.NewLegacyKeccak256()}
}

// Write feeds p into the digest. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	n, _ := h.h.Write(p)
	h.n += int64(n)
	return n, nil
}

// Update is Write without the io.Writer signature.
func (h *Hasher) Update(chunk []byte) {
	_, _ = h.Write(chunk)
}

// Size reports how many bytes have been hashed so far.
func (h *Hasher) Size() int64 { return h.n }

// Digest returns the 0x-prefixed hex digest of everything written so far.
// It does not reset the Hasher.
func (h *Hasher) Digest() string {
	return "0x" + hex.EncodeToString(h.h.Sum(nil))
}

// Hash returns the 0x-prefixed keccak-256 digest of b.
func Hash(b []byte) string {
	h := New()
	h.Update(b)
	return h.Digest()
}

// HashReader digests r to EOF.
func HashReader(r io.Reader) (string, error) {
	h := New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return h.Digest(), nil
}

// Equal compares two hex digests ignoring case and the 0x prefix.
func Equal(a, b string) bool {
	trim := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	}
	return trim(a) == trim(b)
}
