package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/session"
)

func TestStorage(t *testing.T) {
	dir := t.TempDir()
	fileStore, err := session.NewFileStorage(filepath.Join(dir, "tutorhub", "session.json"))
	require.NoError(t, err)

	stores := map[string]session.Storage{
		"memory": session.NewMemoryStorage(),
		"file":   fileStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get("token")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set("token", []byte("abc")))
			require.NoError(t, store.Set("profile:1", []byte(`{"user_id":"1"}`)))
			val, ok, err := store.Get("token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "abc", string(val))

			require.NoError(t, store.Delete("token"))
			require.NoError(t, store.Delete("token"), "deleting twice is fine")
			_, ok, _ = store.Get("token")
			assert.False(t, ok)
			_, ok, _ = store.Get("profile:1")
			assert.True(t, ok)

			require.NoError(t, store.Clear())
			_, ok, _ = store.Get("profile:1")
			assert.False(t, ok)
			require.NoError(t, store.Clear())
		})
	}
}

func TestFileStorage(t *testing.T) {
	_, err := session.NewFileStorage("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "session.json")
	first, err := session.NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("token", []byte("abc")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// another run reads what the last one wrote
	second, err := session.NewFileStorage(path)
	require.NoError(t, err)
	val, ok, err := second.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", string(val))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err = second.Get("token")
	assert.Error(t, err)
	assert.Error(t, second.Set("token", []byte("x")))
	require.NoError(t, second.Clear())
	assert.NoError(t, second.Set("token", []byte("x")))
}

func TestDefaultStoragePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("HOME", "/tmp/home")
	path, err := session.DefaultStoragePath("tutorhub")
	require.NoError(t, err)
	assert.Equal(t, "session.json", filepath.Base(path))
	assert.Equal(t, "tutorhub", filepath.Base(filepath.Dir(path)))
}
