package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-resolver/internal/model"
)

const probeFixture = `{
  "id": "dQw4w9WgXcQ",
  "_type": "video",
  "title": "Sample",
  "duration": 212,
  "formats": [
    {"format_id": "sb0", "vcodec": "none", "acodec": "none", "ext": "mhtml"},
    {"format_id": "251", "vcodec": "none", "acodec": "opus", "ext": "webm", "abr": 130.5, "filesize": 3400000, "language": "en"},
    {"format_id": "140", "vcodec": "none", "acodec": "mp4a.40.2", "ext": "m4a", "abr": 129.4},
    {"format_id": "233", "vcodec": "none", "ext": "mp4"},
    {"format_id": "18", "vcodec": "avc1.42001E", "acodec": "mp4a.40.2", "ext": "mp4", "height": 360},
    {"format_id": "137", "vcodec": "avc1.640028", "acodec": "none", "ext": "mp4", "resolution": "1920x1080", "filesize_approx": 52000000.4},
    {"format_id": "399", "vcodec": "av01.0.08M.08", "acodec": "none", "ext": "mp4", "height": 1080, "vbr": 1900},
    {"format_id": "248", "vcodec": "vp9", "acodec": "none", "ext": "webm", "height": 1080, "has_drm": true},
    {"format_id": "616", "vcodec": "vp09.00.40.08", "acodec": "none", "ext": "webm", "height": 1080, "has_drm": "maybe"}
  ]
}`

func TestBuild_NormalizesTracks(t *testing.T) {
	cat, err := Build([]byte(probeFixture))
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", cat.ItemID)
	assert.Equal(t, model.ItemVideo, cat.ItemKind)
	assert.Equal(t, 212.0, cat.DurationSeconds)

	ids := make([]string, 0, len(cat.Tracks))
	for _, tr := range cat.Tracks {
		ids = append(ids, tr.FormatID)
	}
	assert.Equal(t, []string{"251", "140", "18", "137", "399"}, ids)

	opus, ok := cat.Track("251")
	require.True(t, ok)
	assert.Equal(t, model.TrackAudio, opus.Kind)
	assert.Equal(t, int64(3400000), opus.EstimatedSize)
	assert.Equal(t, "en", opus.Language)

	muxed, ok := cat.Track("18")
	require.True(t, ok)
	assert.Equal(t, model.TrackVideo, muxed.Kind)
	assert.True(t, muxed.Muxed)

	h264, ok := cat.Track("137")
	require.True(t, ok)
	assert.Equal(t, 1080, h264.Resolution, "height parsed from resolution")
	assert.Equal(t, int64(52000000), h264.EstimatedSize)
}

func TestBuild_MarksOriginalAudio(t *testing.T) {
	cat, err := Build([]byte(`{"id": "x", "formats": [
  {"format_id": "251-0", "vcodec": "none", "acodec": "opus", "abr": 130, "language": "de", "language_preference": -10, "format_note": "German dubbed-auto, medium"},
  {"format_id": "251-1", "vcodec": "none", "acodec": "opus", "abr": 130, "language": "en", "language_preference": 10, "format_note": "English original (default), medium"},
  {"format_id": "399", "vcodec": "av01.0.08M.08", "acodec": "none", "height": 1080}
]}`))
	require.NoError(t, err)

	dub, _ := cat.Track("251-0")
	assert.False(t, dub.Original)
	assert.Equal(t, -10, dub.LanguagePreference)
	orig, _ := cat.Track("251-1")
	assert.True(t, orig.Original)
	assert.Equal(t, 10, orig.LanguagePreference)
}

func TestBuild_DefaultAudioStandsInForOriginal(t *testing.T) {
	cat, err := Build([]byte(`{"id": "x", "formats": [
  {"format_id": "251-0", "vcodec": "none", "acodec": "opus", "language": "de", "format_note": "German, medium"},
  {"format_id": "251-1", "vcodec": "none", "acodec": "opus", "language": "en", "format_note": "English (default), medium"}
]}`))
	require.NoError(t, err)

	dub, _ := cat.Track("251-0")
	assert.False(t, dub.Original)
	def, _ := cat.Track("251-1")
	assert.True(t, def.Original)
}

func TestBuild_Playlist(t *testing.T) {
	cat, err := Build([]byte(`{"id": "PL123", "_type": "playlist", "entries": []}`))
	require.NoError(t, err)
	assert.Equal(t, model.ItemPlaylist, cat.ItemKind)
	assert.Empty(t, cat.Tracks)
}

func TestBuild_SourceClient(t *testing.T) {
	cat, err := Build([]byte(`{"id": "x", "successful_client": "ios", "formats": [{"format_id": "1", "vcodec": "vp9", "acodec": "none"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "ios", cat.SourceClient)
}

func TestBuild_RejectsStructurallyInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "{{"},
		{"array", `[1,2]`},
		{"missing id", `{"formats": []}`},
		{"blank id", `{"id": "  ", "formats": []}`},
		{"missing formats", `{"id": "x"}`},
		{"formats not array", `{"id": "x", "formats": {"a": 1}}`},
		{"format without id", `{"id": "x", "formats": [{"vcodec": "vp9"}]}`},
		{"only unusable tracks", `{"id": "x", "formats": [{"format_id": "sb", "vcodec": "none", "acodec": "none"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrProbeParse)
		})
	}
}

func TestTagClient_PreservesDocument(t *testing.T) {
	tagged, err := TagClient([]byte(probeFixture), "web")
	require.NoError(t, err)
	assert.Equal(t, "web", TaggedClient(tagged))

	cat, err := Parse(tagged)
	require.NoError(t, err)
	assert.Equal(t, "web", cat.SourceClient)
	assert.Len(t, cat.Tracks, 5)

	_, err = TagClient([]byte("null"), "web")
	assert.Error(t, err)
}
