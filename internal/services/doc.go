// Package services implements the business logic behind the HTTP layer.
//
// Gate is the pre-condition check for every billable job: it verifies the
// stored activation code against this machine and refuses new work when the
// quota balance is not positive. Settlement happens only after the external
// transcription returned text, and is skipped when no duration was measured.
//
// ActivationService exposes status, activate, deactivate and quota lookup.
// ConversionService runs one conversion: authorize, extract text, settle,
// render the output document. HealthService reports process health.
//
// Collaborators are injected through the small interfaces in interfaces.go
// so tests can substitute simulated hosts and media.
package services
