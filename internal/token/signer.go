package token

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Supported signing algorithms.
const (
	AlgBlake3    = "blake3"
	AlgSecp256k1 = "secp256k1"
)

// Key derivation contexts. Changing either invalidates every token
// issued under the old value.
const (
	macKeyContext       = "postboard 2026-01-01 token mac key"
	secp256k1KeyContext = "postboard 2026-01-01 token secp256k1 key"
)

// Signer produces and checks detached signatures over token payloads.
type Signer interface {
	Alg() string
	Sign(payload []byte) ([]byte, error)
	Verify(payload, signature []byte) bool
}

// NewSigner builds the signer for alg from the configured secret.
func NewSigner(alg string, secret []byte) (Signer, error) {
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "", AlgBlake3:
		return NewBlake3Signer(secret)
	case AlgSecp256k1:
		return NewSecp256k1Signer(secret)
	default:
		return nil, fmt.Errorf("token: unsupported alg %q", alg)
	}
}

type blake3Signer struct {
	key []byte
}

// NewBlake3Signer returns a symmetric signer computing a BLAKE3 keyed
// hash. The 32-byte MAC key is derived from secret, so secrets of any
// length are accepted.
func NewBlake3Signer(secret []byte) (Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing key")
	}
	key := make([]byte, 32)
	blake3.DeriveKey(macKeyContext, secret, key)
	return &blake3Signer{key: key}, nil
}

func (s *blake3Signer) Alg() string { return AlgBlake3 }

func (s *blake3Signer) Sign(payload []byte) ([]byte, error) {
	hasher, err := blake3.NewKeyed(s.key)
	if err != nil {
		return nil, err
	}
	_, _ = hasher.Write(payload)
	return hasher.Sum(nil), nil
}

func (s *blake3Signer) Verify(payload, signature []byte) bool {
	expected, err := s.Sign(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, signature) == 1
}

type secp256k1Signer struct {
	private *secp256k1.PrivateKey
	public  *secp256k1.PublicKey
}

// NewSecp256k1Signer returns an ECDSA signer over secp256k1 whose private
// key is derived from secret. Signatures are DER encoded over the
// SHA3-256 digest of the payload, and may be checked by anyone holding
// the public key.
func NewSecp256k1Signer(secret []byte) (Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing key")
	}
	seed := make([]byte, 32)
	blake3.DeriveKey(secp256k1KeyContext, secret, seed)
	private := secp256k1.PrivKeyFromBytes(seed)
	if private.Key.IsZero() {
		return nil, errors.New("token: derived secp256k1 key is zero")
	}
	return &secp256k1Signer{private: private, public: private.PubKey()}, nil
}

func (s *secp256k1Signer) Alg() string { return AlgSecp256k1 }

func (s *secp256k1Signer) Sign(payload []byte) ([]byte, error) {
	digest := sha3.Sum256(payload)
	return ecdsa.Sign(s.private, digest[:]).Serialize(), nil
}

func (s *secp256k1Signer) Verify(payload, signature []byte) bool {
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	digest := sha3.Sum256(payload)
	return sig.Verify(digest[:], s.public)
}

// PublicKeyHex returns the compressed public key, hex encoded.
func (s *secp256k1Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.public.SerializeCompressed())
}
