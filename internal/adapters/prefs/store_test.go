package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkeysclient/internal/clock"
	"talkeysclient/internal/domain"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*FileStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(testEpoch)
	store, err := NewFileStore(t.TempDir(), clk)
	require.NoError(t, err)
	return store, clk
}

func TestFileStore_SaveAndRead(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("abc"))
	token, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestFileStore_ReadEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Read()
	assert.ErrorIs(t, err, domain.ErrNoToken)
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Save("abc"))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	_, err := store.Read()
	assert.ErrorIs(t, err, domain.ErrNoToken)
}

func TestFileStore_ValidityBoundary(t *testing.T) {
	store, clk := newTestStore(t)
	require.NoError(t, store.Save("abc"))

	clk.Advance(24*time.Hour - time.Second)
	assert.True(t, store.IsValid())

	clk.Advance(2 * time.Second)
	assert.False(t, store.IsValid())
}

func TestFileStore_ExpiryEvictsLazily(t *testing.T) {
	store, clk := newTestStore(t)
	require.NoError(t, store.Save("abc"))

	clk.Advance(10 * time.Second)
	assert.True(t, store.IsValid())

	// 86401s after save the token is expired; the check itself clears it.
	clk.Set(testEpoch.Add(86401 * time.Second))
	assert.False(t, store.IsValid())

	_, err := store.Read()
	assert.ErrorIs(t, err, domain.ErrNoToken)
}

func TestFileStore_EmptyTokenIsInvalid(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Save(""))
	assert.False(t, store.IsValid())
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, clock.NewFake(testEpoch))
	require.NoError(t, err)

	path := filepath.Join(dir, "talkeys", "credentials.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = store.Read()
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Op)
	assert.False(t, store.IsValid())
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	store := NewMemoryStore(clk)

	assert.False(t, store.IsValid())
	require.NoError(t, store.Save("abc"))
	assert.True(t, store.IsValid())

	clk.Advance(24*time.Hour + time.Second)
	assert.False(t, store.IsValid())
	_, err := store.Read()
	assert.ErrorIs(t, err, domain.ErrNoToken)
}
