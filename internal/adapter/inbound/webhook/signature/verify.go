// Package signature authenticates inbound interaction callbacks. The platform
// signs timestamp||body with Ed25519 and sends the signature hex-encoded in
// the X-Signature-Ed25519 header.
package signature

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// ErrAuth matches every verification failure.
var ErrAuth = errors.New("request authentication failed")

// ErrInvalidSignature means the signature is well formed but does not verify.
var ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrAuth)

// KeyConversionError reports key or signature material that could not be
// decoded. Name identifies the offending input.
type KeyConversionError struct {
	Name string
}

func (e *KeyConversionError) Error() string {
	return fmt.Sprintf("failed to convert %s", e.Name)
}

func (e *KeyConversionError) Is(target error) bool {
	return target == ErrAuth
}

// ParsePublicKey decodes the hex public key shown in the developer portal.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, &KeyConversionError{Name: "Public Key"}
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, &KeyConversionError{Name: "Public Key Length"}
	}
	return ed25519.PublicKey(raw), nil
}

// Verify checks signatureHex over timestamp||body.
func Verify(key ed25519.PublicKey, signatureHex, timestamp string, body []byte) error {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return &KeyConversionError{Name: "Signature"}
	}
	if len(sig) != ed25519.SignatureSize {
		return &KeyConversionError{Name: "Signature Length"}
	}
	if len(key) != ed25519.PublicKeySize {
		return &KeyConversionError{Name: "Public Key Length"}
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	if !ed25519.Verify(key, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
