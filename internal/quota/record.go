package quota

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Record is the persisted ledger state
type Record struct {
	APIKey         string // masked for display
	APIKeyHash     string // hex SHA-256 of the full key
	TotalQuota     decimal.Decimal
	UsedQuota      decimal.Decimal
	RemainingQuota decimal.Decimal
	CreatedAt      time.Time
	LastUpdated    time.Time
}

// Balanced reports whether remaining equals total minus used
func (r *Record) Balanced() bool {
	return r.TotalQuota.Sub(r.UsedQuota).Equal(r.RemainingQuota)
}

// wireRecord is the on-disk and API representation. Amounts are JSON numbers.
type wireRecord struct {
	APIKey         string      `json:"api_key"`
	APIKeyHash     string      `json:"api_key_hash"`
	TotalQuota     json.Number `json:"total_quota"`
	UsedQuota      json.Number `json:"used_quota"`
	RemainingQuota json.Number `json:"remaining_quota"`
	CreatedAt      time.Time   `json:"created_at"`
	LastUpdated    time.Time   `json:"last_updated"`
}

// MarshalJSON implements json.Marshaler
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		APIKey:         r.APIKey,
		APIKeyHash:     r.APIKeyHash,
		TotalQuota:     number(r.TotalQuota),
		UsedQuota:      number(r.UsedQuota),
		RemainingQuota: number(r.RemainingQuota),
		CreatedAt:      r.CreatedAt,
		LastUpdated:    r.LastUpdated,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	amounts := make([]decimal.Decimal, 3)
	for i, n := range []json.Number{w.TotalQuota, w.UsedQuota, w.RemainingQuota} {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", n, err)
		}
		amounts[i] = d
	}

	*r = Record{
		APIKey:         w.APIKey,
		APIKeyHash:     w.APIKeyHash,
		TotalQuota:     amounts[0],
		UsedQuota:      amounts[1],
		RemainingQuota: amounts[2],
		CreatedAt:      w.CreatedAt,
		LastUpdated:    w.LastUpdated,
	}
	return nil
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// MaskAPIKey keeps the first 3 and last 4 characters of key. Keys too short
// to hide anything are masked entirely.
func MaskAPIKey(key string) string {
	n := utf8.RuneCountInString(key)
	if n < 8 {
		return strings.Repeat("*", n)
	}
	runes := []rune(key)
	return string(runes[:3]) + "************" + string(runes[n-4:])
}

// HashAPIKey returns the hex SHA-256 of key, or "" for an empty key
func HashAPIKey(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
