package tuf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatastoreGetMissingFileReturnsNilNil(t *testing.T) {
	ds, err := NewDatastore(t.TempDir())
	require.NoError(t, err)

	data, err := ds.Get("root.json")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDatastoreCreateThenGetRoundTrips(t *testing.T) {
	ds, err := NewDatastore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ds.Create("root.json", []byte(`{"a":1}`)))

	data, err := ds.Get("root.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestDatastoreCreateOverwritesExistingFileAtomically(t *testing.T) {
	ds, err := NewDatastore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ds.Create("timestamp.json", []byte("v1")))
	require.NoError(t, ds.Create("timestamp.json", []byte("v2")))

	data, err := ds.Get("timestamp.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestDatastoreCreateLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDatastore(dir)
	require.NoError(t, err)

	require.NoError(t, ds.Create("snapshot.json", []byte("data")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.json", entries[0].Name())
}

func TestDatastoreRemoveIsIdempotent(t *testing.T) {
	ds, err := NewDatastore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ds.Remove("never-existed.json"))

	require.NoError(t, ds.Create("targets.json", []byte("data")))
	require.NoError(t, ds.Remove("targets.json"))
	require.NoError(t, ds.Remove("targets.json"))

	data, err := ds.Get("targets.json")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestNewDatastoreRejectsGroupWritableDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o775))

	_, err := NewDatastore(dir)
	require.Error(t, err)
	var permErr *DatastorePermissionsError
	require.ErrorAs(t, err, &permErr)
}

func TestDatastoreCreateRejectsWorldWritableFile(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDatastore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "root.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o666))
	require.NoError(t, os.Chmod(path, 0o666))

	err = ds.Create("root.json", []byte("new"))
	require.Error(t, err)
	var permErr *DatastorePermissionsError
	require.ErrorAs(t, err, &permErr)
}
