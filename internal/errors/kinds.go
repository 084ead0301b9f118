package errors

import (
	"errors"
)

// License verification failures.
var (
	ErrFormat          = errors.New("activation code format error")
	ErrSignature       = errors.New("activation code signature verification failed")
	ErrMachineMismatch = errors.New("activation code does not match this machine")
	ErrExpired         = errors.New("activation code expired")
)

// Gating failures.
var (
	ErrNotActivated   = errors.New("software not activated")
	ErrQuotaExhausted = errors.New("quota exhausted, please reactivate")
	ErrUnchanged      = errors.New("activation code unchanged")
	ErrRateLimited    = errors.New("too many activation attempts")
)

// Media compliance failures. They abort the current job only.
var (
	ErrStillTooLarge = errors.New("file still exceeds the size limit after compression")
	ErrStillTooLong  = errors.New("file still exceeds the duration limit after compression")
	ErrProbe         = errors.New("duration probe failed")
	ErrCompression   = errors.New("audio compression failed")
)

// Collaborator and persistence failures.
var (
	ErrIO              = errors.New("storage i/o failed")
	ErrUpload          = errors.New("upload failed")
	ErrTranscription   = errors.New("transcription failed")
	ErrUnsupportedKind = errors.New("unsupported file type")
)

// IsVerificationError reports whether err is one of the license verification kinds.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrSignature) ||
		errors.Is(err, ErrMachineMismatch) ||
		errors.Is(err, ErrExpired)
}

// IsGateError reports whether err blocks a new conversion job.
func IsGateError(err error) bool {
	return errors.Is(err, ErrNotActivated) || errors.Is(err, ErrQuotaExhausted)
}

// IsMediaError reports whether err is a media compliance failure.
func IsMediaError(err error) bool {
	return errors.Is(err, ErrStillTooLarge) ||
		errors.Is(err, ErrStillTooLong) ||
		errors.Is(err, ErrProbe) ||
		errors.Is(err, ErrCompression)
}
