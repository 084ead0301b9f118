package license

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "todocx/internal/errors"
)

// DateLayout is the expire field format
const DateLayout = "2006-01-02"

// Payload is the decoded content of an activation code
type Payload struct {
	Machine string          `json:"machine"`
	Expire  string          `json:"expire"`
	APIKey  string          `json:"api_key"`
	Quota   decimal.Decimal `json:"quota"`
}

// ExpireDate parses Expire as a calendar date in UTC
func (p *Payload) ExpireDate() (time.Time, error) {
	return time.Parse(DateLayout, p.Expire)
}

// wirePayload mirrors the JSON document. Quota stays a JSON number so codes
// minted by other tooling decode without loss.
type wirePayload struct {
	Machine *string     `json:"machine"`
	Expire  *string     `json:"expire"`
	APIKey  string      `json:"api_key,omitempty"`
	Quota   json.Number `json:"quota,omitempty"`
}

func decodePayload(data []byte) (*Payload, error) {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFormat, err)
	}
	if w.Machine == nil || *w.Machine == "" {
		return nil, fmt.Errorf("%w: missing machine", apperrors.ErrFormat)
	}
	if w.Expire == nil || *w.Expire == "" {
		return nil, fmt.Errorf("%w: missing expire", apperrors.ErrFormat)
	}

	p := &Payload{
		Machine: *w.Machine,
		Expire:  *w.Expire,
		APIKey:  w.APIKey,
		Quota:   decimal.Zero,
	}
	if w.Quota != "" {
		q, err := decimal.NewFromString(w.Quota.String())
		if err != nil {
			return nil, fmt.Errorf("%w: quota: %v", apperrors.ErrFormat, err)
		}
		p.Quota = q
	}
	return p, nil
}

func encodePayload(p Payload) ([]byte, error) {
	machine, expire := p.Machine, p.Expire
	return json.Marshal(wirePayload{
		Machine: &machine,
		Expire:  &expire,
		APIKey:  p.APIKey,
		Quota:   json.Number(p.Quota.String()),
	})
}
