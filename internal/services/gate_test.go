package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "todocx/internal/errors"
	"todocx/internal/license"
	"todocx/internal/security"
)

func TestGate_Authorize(t *testing.T) {
	ctx := context.Background()

	t.Run("no license", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.gate.Authorize(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotActivated)
	})

	t.Run("valid license with quota", func(t *testing.T) {
		e := newEnv(t)
		e.activate(t, "10.0")

		auth, err := e.gate.Authorize(ctx)
		require.NoError(t, err)
		assert.Equal(t, "sk-test1234", auth.Payload.APIKey)
		assert.True(t, auth.Remaining.Equal(decimal.NewFromInt(10)))
	})

	t.Run("expired license", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.store.Save(ctx, e.blob(t, license.Payload{Expire: "2026-02-28", Quota: decimal.NewFromInt(5)})))
		require.NoError(t, e.ledger.Initialize(ctx, "k", decimal.NewFromInt(5)))

		_, err := e.gate.Authorize(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNotActivated)
		assert.ErrorIs(t, err, apperrors.ErrExpired)
	})

	t.Run("other machine", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.store.Save(ctx, e.blob(t, license.Payload{Machine: "0000000000000000", Quota: decimal.NewFromInt(5)})))
		require.NoError(t, e.ledger.Initialize(ctx, "k", decimal.NewFromInt(5)))

		_, err := e.gate.Authorize(ctx)
		assert.ErrorIs(t, err, apperrors.ErrMachineMismatch)
	})

	t.Run("license without ledger", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.store.Save(ctx, e.blob(t, license.Payload{Quota: decimal.NewFromInt(5)})))

		_, err := e.gate.Authorize(ctx)
		assert.ErrorIs(t, err, apperrors.ErrQuotaExhausted)
	})

	t.Run("zero balance", func(t *testing.T) {
		e := newEnv(t)
		e.activate(t, "0")

		_, err := e.gate.Authorize(ctx)
		assert.ErrorIs(t, err, apperrors.ErrQuotaExhausted)
	})
}

func TestGate_SettleScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.activate(t, "10.0")
	e.events.On("Broadcast", EventQuotaUpdated, mock.Anything).Once()

	s, err := e.gate.Settle(ctx, 3600)
	require.NoError(t, err)

	assert.False(t, s.Skipped)
	assert.Equal(t, "0.8", s.Cost.String())
	assert.Equal(t, "9.2", s.Record.RemainingQuota.String())
	assert.Equal(t, "0.8", s.Record.UsedQuota.String())
	e.events.AssertExpectations(t)

	rec, ok, err := e.ledger.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "9.2", rec.RemainingQuota.String())
}

func TestGate_SettleWithoutDurationIsSkipped(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.activate(t, "10.0")

	for _, seconds := range []float64{0, -1} {
		s, err := e.gate.Settle(ctx, seconds)
		require.NoError(t, err)
		assert.True(t, s.Skipped)
	}

	rec, _, err := e.ledger.Read(ctx)
	require.NoError(t, err)
	assert.True(t, rec.RemainingQuota.Equal(decimal.NewFromInt(10)))
	e.events.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestGate_LastDebitCrossesZeroThenBlocks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.activate(t, "0.5")
	e.events.On("Broadcast", mock.Anything, mock.Anything)

	_, err := e.gate.Authorize(ctx)
	require.NoError(t, err)

	s, err := e.gate.Settle(ctx, 3600)
	require.NoError(t, err)
	assert.Equal(t, "-0.3", s.Record.RemainingQuota.String())

	_, err = e.gate.Authorize(ctx)
	assert.ErrorIs(t, err, apperrors.ErrQuotaExhausted)
}

func TestGate_SettleWithoutLedger(t *testing.T) {
	e := newEnv(t)
	_, err := e.gate.Settle(context.Background(), 60)
	assert.ErrorIs(t, err, apperrors.ErrNotActivated)
}

func TestGate_AuthorizeReadsHardwareOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	blob := e.blob(t, license.Payload{Machine: security.Digest("PF2ABCDE"), APIKey: "sk-test1234", Quota: decimal.NewFromInt(10)})
	require.NoError(t, e.store.Save(ctx, blob))
	require.NoError(t, e.ledger.Initialize(ctx, "sk-test1234", decimal.NewFromInt(10)))

	var reads atomic.Int32
	board := security.SourceFunc{SourceName: "board_serial", Fn: func(context.Context) (string, error) {
		reads.Add(1)
		return "PF2ABCDE", nil
	}}
	fp := security.NewFingerprintGenerator(nil, security.WithSources(board))
	gate := NewGate(fp, e.gate.verifier, e.store, e.ledger, decimal.RequireFromString("0.8"), nil)

	for i := 0; i < 5; i++ {
		_, err := gate.Authorize(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), reads.Load())
}
