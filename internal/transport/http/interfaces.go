package http

import (
	"context"

	"todocx/internal/services"
)

// LicenseService is the activation API consumed by LicenseHandler
type LicenseService interface {
	Status(ctx context.Context) *services.ActivationStatus
	MachineCode(ctx context.Context) string
	Activate(ctx context.Context, blob string) (*services.ActivationResult, error)
	Deactivate(ctx context.Context) (*services.ActivationResult, error)
	Quota(ctx context.Context) (*services.QuotaResult, error)
}

// ConversionService is the pipeline consumed by ConvertHandler
type ConversionService interface {
	Convert(ctx context.Context, req services.ConvertRequest) (*services.ConvertResponse, error)
}

// HealthService is consumed by HealthHandler
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
