package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	apperrors "todocx/internal/errors"
)

// DefaultSecret is the vendor's shared signing key
const DefaultSecret = "TO_DOCX_SECRET_KEY_2024_CHANGE_THIS_IN_PRODUCTION"

const (
	delimiter = '|'
	macSize   = sha256.Size
)

// Verifier checks activation codes against a machine code and the calendar
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// VerifierOption customizes a Verifier
type VerifierOption func(*Verifier)

// WithClock overrides the time source used for the expiry check
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a verifier for secret. An empty secret selects DefaultSecret.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	if secret == "" {
		secret = DefaultSecret
	}
	v := &Verifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify decodes blob and checks signature, machine binding and expiry.
// The returned error wraps exactly one of ErrFormat, ErrSignature,
// ErrMachineMismatch or ErrExpired.
func (v *Verifier) Verify(fingerprint, blob string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFormat, err)
	}

	data, sig, err := split(raw)
	if err != nil {
		return nil, err
	}

	if !hmac.Equal(sig, v.sign(data)) {
		return nil, apperrors.ErrSignature
	}

	p, err := decodePayload(data)
	if err != nil {
		return nil, err
	}

	if p.Machine != fingerprint {
		return nil, apperrors.ErrMachineMismatch
	}

	expire, err := p.ExpireDate()
	if err != nil {
		return nil, fmt.Errorf("%w: expire: %v", apperrors.ErrFormat, err)
	}
	if today(v.now()).After(expire) {
		return nil, fmt.Errorf("%w (expire date: %s)", apperrors.ErrExpired, p.Expire)
	}

	return p, nil
}

func (v *Verifier) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(data)
	return mac.Sum(nil)
}

// split separates the JSON document from the trailing raw signature. The
// signature is binary and may itself contain the delimiter byte, so the
// split position is fixed by the MAC size.
func split(raw []byte) (data, sig []byte, err error) {
	if len(raw) < macSize+2 || raw[len(raw)-macSize-1] != delimiter {
		return nil, nil, fmt.Errorf("%w: expected data|signature", apperrors.ErrFormat)
	}
	cut := len(raw) - macSize - 1
	return raw[:cut], raw[cut+1:], nil
}

// today truncates t to its calendar date, expressed in UTC for comparison
// with parsed expire dates.
func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
