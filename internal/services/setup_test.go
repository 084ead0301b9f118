package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"todocx/internal/license"
	"todocx/internal/quota"
	"todocx/internal/shared/testutil"
)

const (
	testMachine = "AB12CD34EF56AB78"
	testSecret  = "test-secret"
)

type staticFingerprint string

func (f staticFingerprint) Fingerprint(context.Context) string { return string(f) }

// env is a gate over real stores in a temp directory
type env struct {
	dir    string
	store  *license.Store
	ledger *quota.Ledger
	gate   *Gate
	issuer *license.Issuer
	events *MockEventPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()

	e := &env{
		dir:    dir,
		store:  license.NewStore(filepath.Join(dir, "license.dat"), logger),
		ledger: quota.NewLedger(filepath.Join(dir, "quota.dat"), logger),
		issuer: license.NewIssuer(testSecret),
		events: &MockEventPublisher{},
	}
	verifier := license.NewVerifier(testSecret, license.WithClock(testutil.FixedClock(testutil.Day(2026, 3, 1))))
	e.gate = NewGate(staticFingerprint(testMachine), verifier, e.store, e.ledger,
		decimal.RequireFromString("0.8"), logger, WithEvents(e.events))
	return e
}

func (e *env) blob(t *testing.T, p license.Payload) string {
	t.Helper()
	if p.Machine == "" {
		p.Machine = testMachine
	}
	if p.Expire == "" {
		p.Expire = "2099-01-01"
	}
	b, err := e.issuer.Issue(p)
	require.NoError(t, err)
	return b
}

// activate stores a license for quota and initializes the ledger directly
func (e *env) activate(t *testing.T, q string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Save(ctx, e.blob(t, license.Payload{APIKey: "sk-test1234", Quota: decimal.RequireFromString(q)})))
	require.NoError(t, e.ledger.Initialize(ctx, "sk-test1234", decimal.RequireFromString(q)))
}

func licensePayloadWithoutKey() license.Payload {
	return license.Payload{Quota: decimal.NewFromInt(10)}
}
