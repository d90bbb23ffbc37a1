package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-backup/internal/errors"
)

func TestRefreshStore_LiteralWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	store := NewRefreshStore("  from-env \n", path)
	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
	assert.False(t, store.Persistent())
}

func TestRefreshStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := NewRefreshStore("", path)
	assert.True(t, store.Persistent())

	require.NoError(t, store.Save("rt-value"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "rt-value", token)
}

func TestRefreshStore_Errors(t *testing.T) {
	_, err := NewRefreshStore("", "").Load()
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = NewRefreshStore("", empty).Load()
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	assert.Error(t, NewRefreshStore("", "").Save("x"))
	assert.Error(t, NewRefreshStore("", empty).Save(""))
}
