package ethledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

var ErrSignatureMismatch = errors.New("signature does not match signer")

// KeySigner signs the keccak-256 digest of an announcement payload with a
// secp256k1 key, producing a 65-byte [R || S || V] signature in hex.
type KeySigner struct {
	key *ecdsa.PrivateKey
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// KeySignerFromHex parses a hex private key, with or without 0x.
func KeySignerFromHex(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// Address is the checksummed address of the signing key.
func (s *KeySigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *KeySigner) Sign(ctx context.Context, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sig, err := crypto.Sign(crypto.Keccak256(payload), s.key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// RecoverAddress returns the address that produced sig over payload.
func RecoverAddress(payload []byte, sig string) (string, error) {
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), raw)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify checks that a was signed by address.
func Verify(a announcement.Announcement, address string) error {
	payload, err := announcement.SigningPayload(a)
	if err != nil {
		return err
	}
	got, err := RecoverAddress(payload, a.Sig())
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, address) {
		return fmt.Errorf("%w: recovered %s, want %s", ErrSignatureMismatch, got, address)
	}
	return nil
}

var _ announcement.Signer = (*KeySigner)(nil)
