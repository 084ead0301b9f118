package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "todocx/internal/errors"
	"todocx/internal/infrastructure"
	"todocx/internal/license"
	"todocx/internal/quota"
)

// Authorization is the outcome of a successful gate check
type Authorization struct {
	Payload   *license.Payload
	Remaining decimal.Decimal
}

// Settlement is the outcome of a settle call
type Settlement struct {
	Skipped bool
	Cost    decimal.Decimal
	Record  *quota.Record
}

// Gate admits billable jobs and bills them once text was produced
type Gate struct {
	fingerprinter Fingerprinter
	verifier      *license.Verifier
	store         LicenseStore
	ledger        QuotaLedger
	price         decimal.Decimal
	events        EventPublisher
	logger        *slog.Logger
	metrics       *infrastructure.BusinessMetrics
	tracer        trace.Tracer
}

// GateOption customizes a Gate
type GateOption func(*Gate)

// WithEvents publishes quota.updated after each applied debit
func WithEvents(p EventPublisher) GateOption {
	return func(g *Gate) {
		if p != nil {
			g.events = p
		}
	}
}

// WithMetrics records gate decisions and debits
func WithMetrics(m *infrastructure.BusinessMetrics) GateOption {
	return func(g *Gate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGate creates a gate billing pricePerHour per hour of measured media
func NewGate(fp Fingerprinter, verifier *license.Verifier, store LicenseStore, ledger QuotaLedger,
	pricePerHour decimal.Decimal, logger *slog.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		fingerprinter: fp,
		verifier:      verifier,
		store:         store,
		ledger:        ledger,
		price:         pricePerHour,
		events:        nopPublisher{},
		logger:        logger.With(slog.String("component", "gate")),
		tracer:        otel.Tracer(infrastructure.MeterName),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = infrastructure.NoopBusinessMetrics()
	}
	return g
}

// Authorize re-verifies the stored activation code and checks the balance.
// It fails with ErrNotActivated (wrapping the verification kind, if any) or
// ErrQuotaExhausted. Nothing is debited.
func (g *Gate) Authorize(ctx context.Context) (*Authorization, error) {
	ctx, span := g.tracer.Start(ctx, "gate.authorize")
	defer span.End()

	payload, err := g.CurrentLicense(ctx)
	if err != nil {
		g.decision(ctx, "not_activated")
		g.logger.InfoContext(ctx, "Conversion refused", slog.String("reason", err.Error()))
		return nil, err
	}

	rec, _, err := g.ledger.Read(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "Quota record unreadable", slog.String("error", err.Error()))
	}
	if quota.Decide(rec, decimal.Zero) == quota.Insufficient {
		g.decision(ctx, "quota_exhausted")
		g.logger.InfoContext(ctx, "Conversion refused", slog.String("reason", "quota exhausted"))
		return nil, apperrors.ErrQuotaExhausted
	}

	g.decision(ctx, "admitted")
	return &Authorization{Payload: payload, Remaining: rec.RemainingQuota}, nil
}

// CurrentLicense loads and verifies the stored activation code. Failures wrap
// ErrNotActivated.
func (g *Gate) CurrentLicense(ctx context.Context) (*license.Payload, error) {
	blob, ok, err := g.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrNotActivated, err)
	}
	if !ok {
		return nil, apperrors.ErrNotActivated
	}

	payload, err := g.verifier.Verify(g.fingerprinter.Fingerprint(ctx), blob)
	g.verification(ctx, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrNotActivated, err)
	}
	return payload, nil
}

// Settle debits the cost of seconds of billable media. A non-positive
// duration means it could not be measured; the job is not billed.
func (g *Gate) Settle(ctx context.Context, seconds float64) (*Settlement, error) {
	ctx, span := g.tracer.Start(ctx, "gate.settle")
	defer span.End()

	if seconds <= 0 {
		g.metrics.SettlementsSkipped.Add(ctx, 1)
		g.logger.WarnContext(ctx, "Duration unavailable, conversion not billed")
		return &Settlement{Skipped: true, Cost: decimal.Zero}, nil
	}

	cost := quota.CostFor(seconds, g.price)
	rec, err := g.ledger.Debit(ctx, cost)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	amount, _ := cost.Float64()
	g.metrics.LedgerDebits.Add(ctx, 1)
	g.metrics.LedgerDebitAmount.Add(ctx, amount)
	span.SetAttributes(attribute.Float64("duration_seconds", seconds), attribute.String("cost", cost.String()))

	g.logger.InfoContext(ctx, "Conversion billed",
		slog.Float64("duration_seconds", seconds),
		slog.String("cost", cost.String()),
		slog.String("remaining", rec.RemainingQuota.String()))

	g.events.Broadcast(EventQuotaUpdated, map[string]interface{}{
		"cost":            cost.String(),
		"used_quota":      rec.UsedQuota.String(),
		"remaining_quota": rec.RemainingQuota.String(),
	})
	return &Settlement{Cost: cost, Record: rec}, nil
}

func (g *Gate) decision(ctx context.Context, outcome string) {
	g.metrics.GateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (g *Gate) verification(ctx context.Context, err error) {
	result := "valid"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrFormat):
		result = "format"
	case errors.Is(err, apperrors.ErrSignature):
		result = "signature"
	case errors.Is(err, apperrors.ErrMachineMismatch):
		result = "machine_mismatch"
	case errors.Is(err, apperrors.ErrExpired):
		result = "expired"
	default:
		result = "error"
	}
	g.metrics.Verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
