// Package token implements the signed, time-limited bearer tokens that
// carry an account id between login and every later request.
//
// # Wire format
//
// A token is two base64url (unpadded) segments joined by a dot:
//
//	base64url(CBOR claims) "." base64url(signature)
//
// The claims are encoded with deterministic CBOR, so issuing a token for
// the same subject at the same instant with the same key always yields
// the same string. Nothing is stored server side; validity is decided by
// the signature and the expiry embedded in the claims.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/postboard/internal/clock"
	"github.com/alphabot-ai/postboard/internal/codec"
)

// DefaultTTL is the lifetime of a freshly issued token.
const DefaultTTL = time.Hour

// Claims is the signed payload of a token.
type Claims struct {
	// Subject is the account id the token was issued to.
	Subject string `cbor:"1,keyasint"`

	// IssuedAt is a Unix timestamp (seconds).
	IssuedAt int64 `cbor:"2,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds) at and after which the
	// token is rejected.
	ExpiresAt int64 `cbor:"3,keyasint"`
}

// Expiry returns ExpiresAt as a time.Time.
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Errors returned by Verify. Callers surface all three identically as
// "unauthenticated"; the distinction exists for logging.
var (
	ErrMalformed        = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrExpired          = errors.New("token: expired")
)

var encoding = base64.RawURLEncoding

// Codec issues and verifies tokens with a single signer.
type Codec struct {
	signer Signer
	ttl    time.Duration
	clock  clock.Clock
}

// NewCodec returns a Codec. A non-positive ttl selects DefaultTTL.
func NewCodec(signer Signer, ttl time.Duration, clk clock.Clock) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Codec{signer: signer, ttl: ttl, clock: clk}
}

// Alg names the signing algorithm in use.
func (c *Codec) Alg() string {
	return c.signer.Alg()
}

// PublicKey returns the hex-encoded verification key when the signer is
// asymmetric, or "" for MAC signers.
func (c *Codec) PublicKey() string {
	if pk, ok := c.signer.(interface{ PublicKeyHex() string }); ok {
		return pk.PublicKeyHex()
	}
	return ""
}

// Issue mints a token for subject that expires one TTL from now.
func (c *Codec) Issue(subject string) (string, Claims, error) {
	if subject == "" {
		return "", Claims{}, errors.New("token: empty subject")
	}
	now := c.clock.Now()
	claims := Claims{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.ttl).Unix(),
	}
	payload, err := codec.Marshal(claims)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token: encoding claims: %w", err)
	}
	signature, err := c.signer.Sign(payload)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token: signing: %w", err)
	}
	return encoding.EncodeToString(payload) + "." + encoding.EncodeToString(signature), claims, nil
}

// Verify checks the signature, decodes the claims and checks expiry.
// The signature is checked before any decoding of the payload.
func (c *Codec) Verify(raw string) (Claims, error) {
	payloadPart, signaturePart, ok := strings.Cut(raw, ".")
	if !ok || payloadPart == "" || signaturePart == "" {
		return Claims{}, ErrMalformed
	}
	payload, err := encoding.DecodeString(payloadPart)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	signature, err := encoding.DecodeString(signaturePart)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}

	if !c.signer.Verify(payload, signature) {
		return Claims{}, ErrInvalidSignature
	}

	var claims Claims
	if err := codec.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: claims: %v", ErrMalformed, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	if c.clock.Now().Unix() >= claims.ExpiresAt {
		return Claims{}, ErrExpired
	}
	return claims, nil
}

// Kind names the failure class of a Verify error for log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
