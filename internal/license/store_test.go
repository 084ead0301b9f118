package license

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "todocx/internal/errors"
	"todocx/internal/shared/testutil"
)

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	logger, logs := testutil.NewTestLogger(t)
	store := NewStore(filepath.Join(t.TempDir(), "cfg", "license.dat"), logger)

	blob, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "absence is not an error")
	assert.Empty(t, blob)

	require.NoError(t, store.Save(ctx, "  first-code\n"))
	blob, ok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first-code", blob)

	require.NoError(t, store.Save(ctx, "second-code"))
	blob, _, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second-code", blob, "single slot overwrite")

	existed, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.False(t, existed)

	assert.False(t, logs.ContainsText("second-code"), "codes are never logged")
}

func TestStore_EmptyFileIsNoRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "license.dat")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))

	_, ok, err := NewStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReadFailureIsIOError(t *testing.T) {
	// A directory at the record path exists but cannot be read as a file.
	path := filepath.Join(t.TempDir(), "license.dat")
	require.NoError(t, os.Mkdir(path, 0755))

	_, _, err := NewStore(path, nil).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrIO)
}

func TestStore_SaveFailureIsIOError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory permissions differ on windows")
	}
	parent := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(parent, []byte("file, not dir"), 0600))

	err := NewStore(filepath.Join(parent, "license.dat"), nil).Save(context.Background(), "code")
	assert.ErrorIs(t, err, apperrors.ErrIO)
}
