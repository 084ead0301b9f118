package license

import (
	"encoding/base64"
	"fmt"
)

// Issuer mints activation codes signed with the shared secret
type Issuer struct {
	signer *Verifier
}

// NewIssuer creates an issuer for secret. An empty secret selects DefaultSecret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{signer: NewVerifier(secret)}
}

// Issue returns the activation code for p
func (i *Issuer) Issue(p Payload) (string, error) {
	if p.Machine == "" {
		return "", fmt.Errorf("machine code is required")
	}
	if _, err := p.ExpireDate(); err != nil {
		return "", fmt.Errorf("expire must be %s: %w", DateLayout, err)
	}

	data, err := encodePayload(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	raw := make([]byte, 0, len(data)+1+macSize)
	raw = append(raw, data...)
	raw = append(raw, delimiter)
	raw = append(raw, i.signer.sign(data)...)
	return base64.StdEncoding.EncodeToString(raw), nil
}
