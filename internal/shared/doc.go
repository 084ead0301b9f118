// Package shared holds helpers used by more than one package. The testutil
// subpackage provides a capturing slog handler and small filesystem fixtures
// for tests; nothing here carries domain logic.
package shared
