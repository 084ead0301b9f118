package services

import (
	"errors"
	"strings"

	apperrors "todocx/internal/errors"
)

// User-facing messages, returned in result bodies
const (
	MsgActivated          = "Activation successful"
	MsgNotActivated       = "Software not activated"
	MsgQuotaExhausted     = "Quota exhausted, please reactivate"
	MsgUnchanged          = "Activation code unchanged"
	MsgSaveLicenseFailed  = "Failed to save activation code"
	MsgSaveQuotaFailed    = "Failed to save quota information"
	MsgDeactivated        = "Deactivation successful"
	MsgNoActiveLicense    = "No active license found"
	MsgQuotaFound         = "Quota information retrieved successfully"
	MsgNoQuota            = "No quota information found"
	MsgTooManyActivations = "Too many activation attempts, please try again later"
)

// ErrOutputUnavailable is returned when a requested output file is missing
var ErrOutputUnavailable = errors.New("output file not found")

// verificationMessage turns a verification error into the message shown to
// the user.
func verificationMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrFormat):
		return "Activation code format error"
	case errors.Is(err, apperrors.ErrSignature):
		return "Activation code signature verification failed"
	case errors.Is(err, apperrors.ErrMachineMismatch):
		return "Activation code does not match this machine"
	case errors.Is(err, apperrors.ErrExpired):
		msg := "Activation code expired"
		if _, date, ok := strings.Cut(err.Error(), "(expire date: "); ok {
			msg += " (Expire date: " + date
		}
		return msg
	default:
		return "Activation code verification failed"
	}
}
