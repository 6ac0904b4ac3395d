package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	_, ok := s.Get("k")
	assert.False(t, ok)

	require.NoError(t, s.Set("k", []byte("v1")))
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	require.NoError(t, s.Set("k", []byte("v2")))
	v, _ = s.Get("k")
	assert.Equal(t, "v2", string(v), "last write wins")

	require.NoError(t, s.Delete("k"))
	_, ok = s.Get("k")
	assert.False(t, ok)

	require.NoError(t, s.Delete("missing"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestTTLStore(t *testing.T) {
	s := NewTTLStore(time.Hour)
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "store.json")
	exerciseStore(t, NewFileStore(path))
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, NewFileStore(path).Set("dashboardCache", []byte(`{"a":1}`)))

	v, ok := NewFileStore(path).Get("dashboardCache")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))
}

func TestFileStoreCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	s := NewFileStore(path)
	_, ok := s.Get("k")
	assert.False(t, ok)

	require.NoError(t, s.Set("k", []byte("v")))
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}
