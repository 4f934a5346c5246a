package workspace

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-resolver/internal/catalog"
	"yt-resolver/internal/clientpref"
	"yt-resolver/internal/model"
	"yt-resolver/internal/runstore"
)

var _ clientpref.Store = Workspace{}

func TestJobRoundTrip(t *testing.T) {
	ws, ref := newTestWorkspace(t)

	_, ok, err := ws.LoadJob(ref)
	require.NoError(t, err)
	assert.False(t, ok)

	rank := 1
	job := model.JobState{ItemID: ref.ID, SourceURL: "https://youtu.be/dQw4w9WgXcQ", Status: model.StatusFailed, SelectedProfileRank: &rank}
	require.NoError(t, ws.SaveJob(ref, job))

	got, ok, err := ws.LoadJob(ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, JobSchemaVersion, got.SchemaVersion)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.SelectedProfileRank)
	assert.Equal(t, 1, *got.SelectedProfileRank)
	assert.NotNil(t, got.Attempts)
}

func TestLoadJob_RejectsUnknownStatus(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	require.NoError(t, runstore.WriteJSON(ws.JobPath(ref), map[string]any{
		"schema_version": JobSchemaVersion,
		"item_id":        ref.ID,
		"status":         "bogus",
	}))

	_, _, err := ws.LoadJob(ref)
	assert.ErrorContains(t, err, `unknown status "bogus"`)
}

func TestLoadCatalog_Missing(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	_, err := ws.LoadCatalog(ref)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestClientStore_UsesCatalogTagWhenPresent(t *testing.T) {
	ws, ref := newTestWorkspace(t)

	require.NoError(t, ws.RecordClient(ref.Key(), "ios"))
	assert.FileExists(t, ws.ClientPath(ref))
	got, err := ws.PreferredClient(ref.Key())
	require.NoError(t, err)
	assert.Equal(t, "ios", got)

	require.NoError(t, ws.SaveCatalog(ref, []byte(`{"id":"dQw4w9WgXcQ","formats":[]}`)))
	require.NoError(t, ws.RecordClient(ref.Key(), "web"))
	raw, err := ws.LoadCatalog(ref)
	require.NoError(t, err)
	assert.Equal(t, "web", catalog.TaggedClient(raw))

	got, err = ws.PreferredClient(ref.Key())
	require.NoError(t, err)
	assert.Equal(t, "web", got)

	tracker := clientpref.NewTracker(ws)
	ordered := tracker.OrderedClients(ref.Key(), []model.ClientIdentity{{Name: "default"}, {Name: "ios"}, {Name: "web"}})
	assert.Equal(t, "web", ordered[0].Name)
}

func TestPreferredClient_NoRecord(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	got, err := ws.PreferredClient(ref.Key())
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ws.PreferredClient("bogus")
	assert.Error(t, err)
}

func TestSaveStatus_SizeTolerance(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	require.NoError(t, ws.SaveStatus(ref, ItemStatus{ItemID: ref.ID, EstimatedSize: 50_000_000, ActualSize: 50_400_000}))

	st, ok, err := ws.LoadStatus(ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(500_000), st.SizeTolerance)
	require.NotNil(t, st.SizeWithinBounds)
	assert.True(t, *st.SizeWithinBounds)

	require.NoError(t, ws.SaveStatus(ref, ItemStatus{ItemID: ref.ID, ActualSize: 10}))
	st, _, err = ws.LoadStatus(ref)
	require.NoError(t, err)
	assert.Nil(t, st.SizeWithinBounds)
}

func TestSizeMatches(t *testing.T) {
	assert.Equal(t, int64(100*1024), SizeTolerance(1_000_000))

	ok, known := SizeMatches(1_000_000, 1_090_000)
	assert.True(t, known)
	assert.True(t, ok)

	ok, known = SizeMatches(1_000_000, 1_200_000)
	assert.True(t, known)
	assert.False(t, ok)

	_, known = SizeMatches(0, 10)
	assert.False(t, known)
}

func TestEstimateBytesFromDuration(t *testing.T) {
	assert.Equal(t, int64(0), EstimateBytesFromDuration(0, 1080))
	assert.Equal(t, int64(45_000_000), EstimateBytesFromDuration(60, 1080))
	assert.Equal(t, int64(60_000_000), EstimateBytesFromDuration(60, 2160))
}

func TestOpenSessionLog_Appends(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	for _, line := range []string{"first\n", "second\n"} {
		w, err := ws.OpenSessionLog(ref)
		require.NoError(t, err)
		_, err = w.Write([]byte(line))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	data, err := os.ReadFile(ws.SessionLogPath(ref))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}
