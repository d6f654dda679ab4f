package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uniquiz/quiz-client/internal/model"
)

func TestStorePersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	creds := model.Credentials{AccessToken: "a1", RefreshToken: "r1"}

	store := NewStore(path)
	require.NoError(t, store.Load()) // Missing file is not an error
	require.True(t, store.Get().IsZero())
	require.NoError(t, store.Set(creds))

	// Simulate a process restart.
	restored := NewStore(path)
	require.NoError(t, restored.Load())
	require.Equal(t, creds, restored.Get())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewStore(path)
	require.NoError(t, store.Set(model.Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	require.NoError(t, store.Clear())
	require.True(t, store.Get().IsZero())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Clearing an already-empty store is fine.
	require.NoError(t, store.Clear())
}

func TestStoreWithoutPathStaysInMemory(t *testing.T) {
	store := NewStore("")
	require.NoError(t, store.Set(model.Credentials{AccessToken: "a1"}))
	require.Equal(t, "a1", store.Get().AccessToken)
	require.NoError(t, store.Clear())
}
