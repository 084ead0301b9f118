package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	apperrors "todocx/internal/errors"
	"todocx/internal/quota"
)

// ActivationState separates the trust failure from the balance failure
type ActivationState string

const (
	StateNotActivated   ActivationState = "not_activated"
	StateInvalid        ActivationState = "invalid"
	StateActive         ActivationState = "active"
	StateQuotaExhausted ActivationState = "quota_exhausted"
)

// ActivationStatus answers getActivationStatus
type ActivationStatus struct {
	Activated      bool            `json:"activated"`
	State          ActivationState `json:"state"`
	LicenseValid   bool            `json:"license_valid"`
	QuotaAvailable bool            `json:"quota_available"`
	MachineCode    string          `json:"machine_code"`
	ExpireDate     string          `json:"expire_date,omitempty"`
	QuotaInfo      *quota.Record   `json:"quota_info,omitempty"`
	Message        string          `json:"message"`
}

// ActivationResult answers activate and deactivate
type ActivationResult struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	ExpireDate string           `json:"expire_date,omitempty"`
	Quota      *decimal.Decimal `json:"quota,omitempty"`
	APIKeySet  bool             `json:"api_key_set,omitempty"`
}

// QuotaResult answers getQuota
type QuotaResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    *quota.Record `json:"data"`
}

// ActivationService manages the single activation slot and its quota ledger
type ActivationService struct {
	gate    *Gate
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewActivationService creates the service. perMinute bounds activation
// attempts; zero disables throttling.
func NewActivationService(gate *Gate, perMinute int, logger *slog.Logger) *ActivationService {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	}
	return &ActivationService{
		gate:    gate,
		limiter: limiter,
		logger:  logger.With(slog.String("service", "activation")),
	}
}

// MachineCode returns this host's fingerprint
func (s *ActivationService) MachineCode(ctx context.Context) string {
	return s.gate.fingerprinter.Fingerprint(ctx)
}

// Status reports whether the stored activation code is valid and whether
// quota remains.
func (s *ActivationService) Status(ctx context.Context) *ActivationStatus {
	status := &ActivationStatus{
		State:       StateNotActivated,
		MachineCode: s.MachineCode(ctx),
		Message:     MsgNotActivated,
	}

	payload, err := s.gate.CurrentLicense(ctx)
	if err != nil {
		if apperrors.IsVerificationError(err) {
			status.State = StateInvalid
			status.Message = verificationMessage(err)
		}
		return status
	}

	status.LicenseValid = true
	status.ExpireDate = payload.Expire

	rec, _, err := s.gate.ledger.Read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Quota record unreadable", slog.String("error", err.Error()))
	}
	status.QuotaInfo = rec

	if quota.Decide(rec, decimal.Zero) == quota.Insufficient {
		status.State = StateQuotaExhausted
		status.Message = MsgQuotaExhausted
		return status
	}

	status.Activated = true
	status.QuotaAvailable = true
	status.State = StateActive
	status.Message = "Activation code valid"
	return status
}

// Activate verifies blob, stores it and resets the ledger to the payload's
// quota. Resubmitting the stored code is a no-op failure. If the ledger
// cannot be written the previous activation code is restored.
func (s *ActivationService) Activate(ctx context.Context, blob string) (*ActivationResult, error) {
	blob = strings.TrimSpace(blob)

	existing, hadExisting, err := s.gate.store.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored activation code unreadable", slog.String("error", err.Error()))
	}
	if hadExisting && strings.TrimSpace(existing) == blob {
		s.attempt(ctx, "unchanged")
		return &ActivationResult{Message: MsgUnchanged}, nil
	}

	if !s.limiter.Allow() {
		s.attempt(ctx, "rate_limited")
		return nil, apperrors.ErrRateLimited
	}

	payload, err := s.gate.verifier.Verify(s.MachineCode(ctx), blob)
	s.gate.verification(ctx, err)
	if err != nil {
		s.attempt(ctx, "rejected")
		s.logger.WarnContext(ctx, "Activation rejected", slog.String("reason", err.Error()))
		return &ActivationResult{Message: verificationMessage(err)}, nil
	}

	if err := s.gate.store.Save(ctx, blob); err != nil {
		s.attempt(ctx, "save_failed")
		s.logger.ErrorContext(ctx, "Failed to save activation code", slog.String("error", err.Error()))
		return &ActivationResult{Message: MsgSaveLicenseFailed}, err
	}

	if err := s.gate.ledger.Initialize(ctx, payload.APIKey, payload.Quota); err != nil {
		s.attempt(ctx, "save_failed")
		s.logger.ErrorContext(ctx, "Failed to save quota information", slog.String("error", err.Error()))
		s.rollback(ctx, existing, hadExisting)
		return &ActivationResult{Message: MsgSaveQuotaFailed}, err
	}

	s.attempt(ctx, "activated")
	s.logger.InfoContext(ctx, "Software activated",
		slog.String("expire_date", payload.Expire),
		slog.String("quota", payload.Quota.String()),
		slog.String("api_key", quota.MaskAPIKey(payload.APIKey)))

	total := payload.Quota
	s.gate.events.Broadcast(EventLicenseActivated, map[string]interface{}{
		"expire_date": payload.Expire,
		"quota":       total.String(),
	})
	return &ActivationResult{
		Success:    true,
		Message:    MsgActivated,
		ExpireDate: payload.Expire,
		Quota:      &total,
		APIKeySet:  payload.APIKey != "",
	}, nil
}

func (s *ActivationService) rollback(ctx context.Context, previous string, hadPrevious bool) {
	var err error
	if hadPrevious {
		err = s.gate.store.Save(ctx, previous)
	} else {
		_, err = s.gate.store.Clear(ctx)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Activation rollback failed", slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "Activation rolled back", slog.Bool("restored_previous", hadPrevious))
}

// Deactivate deletes the activation code and the quota record
func (s *ActivationService) Deactivate(ctx context.Context) (*ActivationResult, error) {
	removed, err := s.gate.store.Clear(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.ledger.Clear(ctx); err != nil {
		return nil, err
	}

	if !removed {
		return &ActivationResult{Message: MsgNoActiveLicense}, nil
	}
	s.logger.InfoContext(ctx, "License deactivated")
	s.gate.events.Broadcast(EventLicenseDeactivated, nil)
	return &ActivationResult{Success: true, Message: MsgDeactivated}, nil
}

// Quota returns the ledger record, if any
func (s *ActivationService) Quota(ctx context.Context) (*QuotaResult, error) {
	rec, ok, err := s.gate.ledger.Read(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrIO) {
		return nil, err
	}
	if !ok || rec == nil {
		return &QuotaResult{Message: MsgNoQuota}, nil
	}
	return &QuotaResult{Success: true, Message: MsgQuotaFound, Data: rec}, nil
}

func (s *ActivationService) attempt(ctx context.Context, result string) {
	s.gate.metrics.ActivationAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
