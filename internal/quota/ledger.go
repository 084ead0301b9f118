package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "todocx/internal/errors"
	"todocx/internal/files"
)

// GateDecision is the outcome of a balance check
type GateDecision int

const (
	Insufficient GateDecision = iota
	Sufficient
)

func (d GateDecision) String() string {
	if d == Sufficient {
		return "sufficient"
	}
	return "insufficient"
}

// Ledger is the durable quota record. Mutations are serialized by a
// process-wide mutex so concurrent debits cannot lose updates.
type Ledger struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewLedger creates a ledger backed by path
func NewLedger(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		path:   path,
		logger: logger.With(slog.String("component", "quota_ledger")),
		now:    time.Now,
	}
}

// Path returns the backing file location
func (l *Ledger) Path() string {
	return l.path
}

// Initialize resets the ledger to total with nothing used
func (l *Ledger) Initialize(ctx context.Context, apiKey string, total decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := &Record{
		APIKey:         MaskAPIKey(apiKey),
		APIKeyHash:     HashAPIKey(apiKey),
		TotalQuota:     total,
		UsedQuota:      decimal.Zero,
		RemainingQuota: total,
		CreatedAt:      now,
		LastUpdated:    now,
	}
	if err := l.write(rec); err != nil {
		l.logger.ErrorContext(ctx, "Failed to initialize quota",
			slog.String("path", l.path),
			slog.String("error", err.Error()))
		return err
	}

	l.logger.InfoContext(ctx, "Quota initialized",
		slog.String("api_key", rec.APIKey),
		slog.String("total_quota", total.String()))
	return nil
}

// Read returns the current record. ok is false when the ledger was never
// initialized; err reports a record that exists but cannot be decoded.
func (l *Ledger) Read(ctx context.Context) (rec *Record, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

// Debit applies cost in full and returns the post-debit state. It never
// rejects for insufficient balance.
func (l *Ledger) Debit(ctx context.Context, cost decimal.Decimal) (*Record, error) {
	if cost.IsNegative() {
		return nil, fmt.Errorf("debit amount must not be negative: %s", cost)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotActivated
	}

	rec.UsedQuota = rec.UsedQuota.Add(cost)
	rec.RemainingQuota = rec.RemainingQuota.Sub(cost)
	rec.LastUpdated = l.now()

	if err := l.write(rec); err != nil {
		l.logger.ErrorContext(ctx, "Failed to persist debit",
			slog.String("cost", cost.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	level := slog.LevelInfo
	if rec.RemainingQuota.IsNegative() {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "Quota debited",
		slog.String("cost", cost.String()),
		slog.String("used_quota", rec.UsedQuota.String()),
		slog.String("remaining_quota", rec.RemainingQuota.String()))
	return rec, nil
}

// Check decides whether a new job may start. A missing or unreadable
// ledger, a non-positive balance, or a balance below a positive required
// amount are all Insufficient.
func (l *Ledger) Check(ctx context.Context, required decimal.Decimal) GateDecision {
	rec, ok, err := l.Read(ctx)
	if err != nil || !ok {
		return Insufficient
	}
	return Decide(rec, required)
}

// Decide applies the balance rule to an already loaded record
func Decide(rec *Record, required decimal.Decimal) GateDecision {
	if rec == nil || !rec.RemainingQuota.IsPositive() {
		return Insufficient
	}
	if required.IsPositive() && rec.RemainingQuota.LessThan(required) {
		return Insufficient
	}
	return Sufficient
}

// Clear removes the ledger and reports whether one existed
func (l *Ledger) Clear(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existed, err := files.RemoveIfExists(l.path)
	if err != nil {
		return false, fmt.Errorf("%w: clear quota: %v", apperrors.ErrIO, err)
	}
	if existed {
		l.logger.InfoContext(ctx, "Quota cleared", slog.String("path", l.path))
	}
	return existed, nil
}

func (l *Ledger) read(ctx context.Context) (*Record, bool, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read quota: %v", apperrors.ErrIO, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.logger.ErrorContext(ctx, "Quota record is corrupt",
			slog.String("path", l.path),
			slog.String("error", err.Error()))
		return nil, false, fmt.Errorf("%w: decode quota: %v", apperrors.ErrIO, err)
	}
	return &rec, true, nil
}

func (l *Ledger) write(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode quota: %v", apperrors.ErrIO, err)
	}
	if err := files.WriteFileAtomic(l.path, data, 0600); err != nil {
		return fmt.Errorf("%w: write quota: %v", apperrors.ErrIO, err)
	}
	return nil
}
