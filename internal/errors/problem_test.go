package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{"format", fmt.Errorf("%w: bad base64", ErrFormat), http.StatusBadRequest, TypeLicenseFormat, "LICENSE_FORMAT"},
		{"signature", ErrSignature, http.StatusBadRequest, TypeLicenseSignature, "LICENSE_SIGNATURE"},
		{"machine", ErrMachineMismatch, http.StatusForbidden, TypeLicenseMismatch, "LICENSE_MACHINE_MISMATCH"},
		{"expired", ErrExpired, http.StatusForbidden, TypeLicenseExpired, "LICENSE_EXPIRED"},
		{"unchanged", ErrUnchanged, http.StatusConflict, TypeLicenseUnchanged, "LICENSE_UNCHANGED"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, TypeRateLimit, "RATE_LIMITED"},
		{"not activated", ErrNotActivated, http.StatusForbidden, TypeNotActivated, "NOT_ACTIVATED"},
		{"quota", ErrQuotaExhausted, http.StatusPaymentRequired, TypeQuotaExhausted, "QUOTA_EXHAUSTED"},
		{"not activated wrapping expiry", fmt.Errorf("%w: %w", ErrNotActivated, ErrExpired), http.StatusForbidden, TypeNotActivated, "NOT_ACTIVATED"},
		{"still too large", ErrStillTooLarge, http.StatusUnprocessableEntity, TypeMediaCompliance, "STILL_TOO_LARGE"},
		{"still too long", ErrStillTooLong, http.StatusUnprocessableEntity, TypeMediaCompliance, "STILL_TOO_LONG"},
		{"unsupported", ErrUnsupportedKind, http.StatusUnsupportedMediaType, TypeUnsupportedKind, "UNSUPPORTED_KIND"},
		{"transcription", ErrTranscription, http.StatusBadGateway, TypeUpstream, "TRANSCRIPTION_FAILED"},
		{"io", ErrIO, http.StatusInternalServerError, TypeStorage, "STORAGE_ERROR"},
		{"api error", NotFoundError("file"), http.StatusNotFound, TypeNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, TypeInternal, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := MapError(tt.err, "/api/test", "trace-1")

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.wantCode, problem.Extensions["error_code"])
			assert.Equal(t, "trace-1", problem.Extensions["trace_id"])
			assert.Equal(t, "/api/test", problem.Instance)
		})
	}
}

func TestMapError_ContextErrors(t *testing.T) {
	problem := MapError(fmt.Errorf("probe: %w", context.DeadlineExceeded), "/x", "")

	assert.Equal(t, http.StatusGatewayTimeout, problem.Status)
	assert.NotContains(t, problem.Extensions, "trace_id")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusForbidden, TypeLicenseExpired, "License Expired", "expired on 2024-01-01", "/api/license/status").
		WithExtension("error_code", "LICENSE_EXPIRED").
		WithExtension("status", "overridden")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))

	assert.Equal(t, TypeLicenseExpired, body["type"])
	assert.Equal(t, float64(http.StatusForbidden), body["status"], "standard members win over extensions")
	assert.Equal(t, "LICENSE_EXPIRED", body["error_code"])
	assert.Equal(t, "expired on 2024-01-01", body["detail"])
}
