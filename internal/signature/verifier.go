package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// HeaderName is the request header carrying the body signature.
const HeaderName = "X-Hub-Signature"

const prefix = "sha256="

var (
	// ErrAuthentication is returned for any signature that cannot be trusted.
	ErrAuthentication = errors.New("signature: authentication failed")
	// ErrMissingSignature is returned when a signature is required but absent.
	ErrMissingSignature = errors.New("signature: missing signature header")
)

// Verifier checks HMAC-SHA256 signatures of raw webhook bodies.
type Verifier struct {
	secret   []byte
	required bool
}

// New creates a Verifier. When required is false, requests without a
// signature header are let through unverified.
func New(secret string, required bool) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("signature: secret must not be empty")
	}
	return &Verifier{secret: []byte(secret), required: required}, nil
}

// Verify validates header against body. It must be called on the raw bytes
// before the body is parsed.
func (v *Verifier) Verify(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		if v.required {
			return ErrMissingSignature
		}
		return nil
	}

	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		header = header[len(prefix):]
	}
	got, err := hex.DecodeString(header)
	if err != nil || len(got) != sha256.Size {
		return ErrAuthentication
	}
	if !hmac.Equal(got, v.digest(body)) {
		return ErrAuthentication
	}
	return nil
}

// Sign returns the header value for body, prefixed with "sha256=".
func (v *Verifier) Sign(body []byte) string {
	return prefix + hex.EncodeToString(v.digest(body))
}

func (v *Verifier) digest(body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
