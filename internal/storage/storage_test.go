package storage

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingmonitor/internal/models"
)

func TestHostStorageRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewHostStorage(fs, "/data/hosts.json")
	require.NoError(t, err)

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	last := models.ReachableMeasurement("8.8.8.8", 12.5, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	want := []models.HostEntry{
		{ID: "a", Host: "8.8.8.8", Interval: models.Duration(5 * time.Second), Enabled: true, LastResult: &last},
		{ID: "b", Host: "example.com", Interval: models.Duration(time.Minute), Enabled: false},
	}
	require.NoError(t, store.Save(want))

	reopened, err := NewHostStorage(fs, "/data/hosts.json")
	require.NoError(t, err)
	got, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0].ID, got[0].ID)
	assert.Equal(t, want[0].Interval, got[0].Interval)
	require.NotNil(t, got[0].LastResult)
	assert.True(t, got[0].LastResult.Timestamp.Equal(last.Timestamp))
	assert.Equal(t, want[1], got[1])
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewHistoryStorage(fs, "/data/history.json")
	require.NoError(t, err)

	require.NoError(t, store.Save([]string{"a", "b"}))
	require.NoError(t, store.Save([]string{"c"}))

	files, err := afero.ReadDir(fs, "/data")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "history.json", files[0].Name())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
}

func TestSaveNilWritesEmptyList(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewHistoryStorage(fs, "/data/history.json")
	require.NoError(t, err)
	require.NoError(t, store.Save(nil))

	data, err := afero.ReadFile(fs, "/data/history.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestLoadEmptyAndCorruptFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/hosts.json", nil, 0o644))

	store, err := NewHostStorage(fs, "/data/hosts.json")
	require.NoError(t, err)
	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, afero.WriteFile(fs, "/data/hosts.json", []byte("{not json"), 0o644))
	_, err = store.Load()
	assert.ErrorContains(t, err, "parse hosts.json")
}
