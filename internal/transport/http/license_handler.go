package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "todocx/internal/errors"
	"todocx/internal/middleware"
)

// ActivationRequest is the body of POST /api/license/activate
type ActivationRequest struct {
	LicenseCode string `json:"license_code" validate:"required"`
}

// LicenseHandler handles activation and quota requests
type LicenseHandler struct {
	service   LicenseService
	validator *middleware.Validator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service LicenseService, validator *middleware.Validator, errHandler *apperrors.ErrorHandler, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:   service,
		validator: validator,
		errors:    errHandler,
		logger:    logger.With(slog.String("handler", "license")),
	}
}

// Routes returns a chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Get("/machine-code", h.GetMachineCode)
	r.Post("/activate", h.Activate)
	r.Delete("/deactivate", h.Deactivate)
	r.Get("/quota", h.GetQuota)
	return r
}

// GetStatus handles GET /api/license/status
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status(r.Context())
	h.logger.InfoContext(r.Context(), "License status checked",
		slog.Bool("activated", status.Activated),
		slog.String("state", string(status.State)))
	render.JSON(w, r, status)
}

// GetMachineCode handles GET /api/license/machine-code
func (h *LicenseHandler) GetMachineCode(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"machine_code": h.service.MachineCode(r.Context())})
}

// Activate handles POST /api/license/activate. Rejected codes answer 200
// with success=false; a result that could not be persisted answers 500.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivationRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	res, err := h.service.Activate(r.Context(), req.LicenseCode)
	switch {
	case err != nil && res != nil:
		h.logger.ErrorContext(r.Context(), "Activation not persisted", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, res)
		return
	case err != nil:
		h.errors.HandleError(w, r, err)
		return
	}

	if res.Success {
		h.logger.InfoContext(r.Context(), "Software activated successfully", slog.String("expire_date", res.ExpireDate))
	} else {
		h.logger.WarnContext(r.Context(), "Activation failed", slog.String("message", res.Message))
	}
	render.JSON(w, r, res)
}

// Deactivate handles DELETE /api/license/deactivate
func (h *LicenseHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Deactivate(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// GetQuota handles GET /api/license/quota
func (h *LicenseHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Quota(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// isGateRefusal reports errors the desktop shell shows as an activation prompt
func isGateRefusal(err error) bool {
	return errors.Is(err, apperrors.ErrNotActivated) || errors.Is(err, apperrors.ErrQuotaExhausted)
}
