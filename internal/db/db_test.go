package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t)
	v, err := db.Get("auth_token")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSetOverwritesAndDelete(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Set("draft_tasks", []byte(`{"version":1}`)))
	require.NoError(t, db.Set("draft_tasks", []byte(`{"version":2}`)))
	require.NoError(t, db.Set("auth_token", nil))

	v, err := db.Get("draft_tasks")
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, string(v))

	keys, err := db.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"auth_token", "draft_tasks"}, keys)

	require.NoError(t, db.Delete("draft_tasks"))
	require.NoError(t, db.Delete("draft_tasks"))
	v, err = db.Get("draft_tasks")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Set("offline_data", []byte("projects")))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Get("offline_data")
	require.NoError(t, err)
	assert.Equal(t, "projects", string(v))
}

func TestInMemory(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set("k", []byte("v")))
	v, err := db.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}

func TestDefaultPathUsesXDGDataHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "taskies", "taskies.db"), p)
	assert.DirExists(t, filepath.Join(dir, "taskies"))
}
