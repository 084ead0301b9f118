package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// Problem types following RFC 7807
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeTimeout         = "/errors/timeout"
	TypeConflict        = "/errors/conflict"
	TypePayloadTooLarge = "/errors/payload-too-large"

	TypeLicenseFormat    = "/errors/license/format"
	TypeLicenseSignature = "/errors/license/signature"
	TypeLicenseMismatch  = "/errors/license/machine-mismatch"
	TypeLicenseExpired   = "/errors/license/expired"
	TypeLicenseUnchanged = "/errors/license/unchanged"
	TypeNotActivated     = "/errors/license/not-activated"
	TypeQuotaExhausted   = "/errors/quota/exhausted"
	TypeMediaCompliance  = "/errors/media/compliance"
	TypeMediaProbe       = "/errors/media/probe"
	TypeUnsupportedKind  = "/errors/media/unsupported"
	TypeUpstream         = "/errors/upstream"
	TypeStorage          = "/errors/storage"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions next to the standard members
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		data[k] = v
	}

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

type problemKind struct {
	target error
	status int
	ptype  string
	title  string
	code   string
}

// problemKinds is matched in order; the first errors.Is hit wins. Gate
// kinds come first because they may wrap a verification kind.
var problemKinds = []problemKind{
	{ErrNotActivated, http.StatusForbidden, TypeNotActivated, "Not Activated", "NOT_ACTIVATED"},
	{ErrQuotaExhausted, http.StatusPaymentRequired, TypeQuotaExhausted, "Quota Exhausted", "QUOTA_EXHAUSTED"},
	{ErrFormat, http.StatusBadRequest, TypeLicenseFormat, "Invalid Activation Code", "LICENSE_FORMAT"},
	{ErrSignature, http.StatusBadRequest, TypeLicenseSignature, "Invalid Activation Code", "LICENSE_SIGNATURE"},
	{ErrMachineMismatch, http.StatusForbidden, TypeLicenseMismatch, "License Machine Mismatch", "LICENSE_MACHINE_MISMATCH"},
	{ErrExpired, http.StatusForbidden, TypeLicenseExpired, "License Expired", "LICENSE_EXPIRED"},
	{ErrUnchanged, http.StatusConflict, TypeLicenseUnchanged, "Activation Code Unchanged", "LICENSE_UNCHANGED"},
	{ErrRateLimited, http.StatusTooManyRequests, TypeRateLimit, "Too Many Requests", "RATE_LIMITED"},
	{ErrStillTooLarge, http.StatusUnprocessableEntity, TypeMediaCompliance, "File Too Large", "STILL_TOO_LARGE"},
	{ErrStillTooLong, http.StatusUnprocessableEntity, TypeMediaCompliance, "File Too Long", "STILL_TOO_LONG"},
	{ErrProbe, http.StatusUnprocessableEntity, TypeMediaProbe, "Media Probe Failed", "PROBE_FAILED"},
	{ErrCompression, http.StatusUnprocessableEntity, TypeMediaCompliance, "Compression Failed", "COMPRESSION_FAILED"},
	{ErrUnsupportedKind, http.StatusUnsupportedMediaType, TypeUnsupportedKind, "Unsupported File Type", "UNSUPPORTED_KIND"},
	{ErrUpload, http.StatusBadGateway, TypeUpstream, "Upload Failed", "UPLOAD_FAILED"},
	{ErrTranscription, http.StatusBadGateway, TypeUpstream, "Transcription Failed", "TRANSCRIPTION_FAILED"},
	{ErrIO, http.StatusInternalServerError, TypeStorage, "Storage Error", "STORAGE_ERROR"},
}

// MapError converts a domain error into problem details. The detail member
// carries err's message, which never includes secrets.
func MapError(err error, instance, traceID string) *ProblemDetails {
	var problem *ProblemDetails

	var apiErr *APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		problem = NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			instance,
		)
	case errors.As(err, &apiErr):
		problem = apiErrorToProblem(apiErr, instance)
	default:
		for _, k := range problemKinds {
			if errors.Is(err, k.target) {
				problem = NewProblemDetails(k.status, k.ptype, k.title, err.Error(), instance).
					WithExtension("error_code", k.code)
				break
			}
		}
	}

	if problem == nil {
		problem = NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("error_code", "INTERNAL_ERROR")
	}

	if traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	return problem
}

// apiErrorToProblem converts APIError to ProblemDetails
func apiErrorToProblem(apiErr *APIError, instance string) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "CONFLICT":
		problemType = TypeConflict
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		instance,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}
