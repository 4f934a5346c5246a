package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-resolver/internal/model"
)

func newTestWorkspace(t *testing.T) (Workspace, ItemRef) {
	t.Helper()
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	ref := ItemRef{Platform: "youtube", ID: "dQw4w9WgXcQ", Kind: model.ItemVideo}
	_, err = ws.EnsureItemDir(ref)
	require.NoError(t, err)
	return ws, ref
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	return p
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in   Artifact
		want string
	}{
		{Artifact{Kind: KindVideo, FormatID: "399", Ext: "mkv"}, "video-399.mkv"},
		{Artifact{Kind: KindVideo, FormatID: "399+251", Ext: ".MKV"}, "video-399+251.mkv"},
		{Artifact{Kind: KindAudio, FormatID: "251", Ext: "opus"}, "audio-251.opus"},
		{Artifact{Kind: KindSubtitle, Language: "en"}, "subtitles.en.srt"},
		{Artifact{Kind: KindSubtitleCut, Language: "fr"}, "subtitles-cut.fr.srt"},
		{Artifact{Kind: KindFinal, Ext: "mp4"}, "final.mp4"},
	}
	for _, tt := range tests {
		got, err := CanonicalName(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		again, _ := CanonicalName(tt.in)
		assert.Equal(t, got, again)
	}

	for _, bad := range []Artifact{
		{Kind: KindVideo, Ext: "mkv"},
		{Kind: KindVideo, FormatID: "../x", Ext: "mkv"},
		{Kind: KindSubtitle},
		{Kind: KindFinal},
		{Kind: "thumbnail", Ext: "jpg"},
	} {
		_, err := CanonicalName(bad)
		assert.Error(t, err, "%+v", bad)
	}
}

func TestCanonicalPath_UsesItemDirectory(t *testing.T) {
	ws, err := New("/tmp/ytr")
	require.NoError(t, err)
	video := ItemRef{Platform: "youtube", ID: "abc", Kind: model.ItemVideo}
	playlist := ItemRef{Platform: "youtube", ID: "PL1", Kind: model.ItemPlaylist}

	p, err := ws.CanonicalPath(video, Artifact{Kind: KindFinal, Ext: "mkv"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/ytr", "videos", "youtube", "abc", "final.mkv"), p)
	assert.Equal(t, filepath.Join("/tmp/ytr", "playlists", "youtube", "PL1"), ws.ItemDir(playlist))
}

func TestFindExisting_IgnoresPartialsAndRecoversIDs(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	dir := ws.ItemDir(ref)
	touch(t, dir, "video-399.mkv")
	touch(t, dir, "video-137.mp4")
	touch(t, dir, "video-399.mkv.part")
	touch(t, dir, "video-399+251.f399.mp4")
	touch(t, dir, "video-18.mp4.ytdl")
	touch(t, dir, ".ytr-tmp-123")
	touch(t, dir, "subtitles.en.srt")
	touch(t, dir, "subtitles-cut.en.srt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video-22.mp4"), nil, 0o644))

	videos, err := ws.FindExisting(ref, KindVideo)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "399", videos[0].FormatID)
	assert.Equal(t, "mkv", videos[0].Ext)
	assert.Equal(t, "137", videos[1].FormatID)

	subs, err := ws.FindExisting(ref, KindSubtitle)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "en", subs[0].Language)

	cut, err := ws.FindExisting(ref, KindSubtitleCut)
	require.NoError(t, err)
	require.Len(t, cut, 1)
}

func TestFinalArtifact_PrefersMKV(t *testing.T) {
	ws, ref := newTestWorkspace(t)
	dir := ws.ItemDir(ref)

	_, ok, err := ws.FinalArtifact(ref)
	require.NoError(t, err)
	assert.False(t, ok)

	touch(t, dir, "final.webm")
	touch(t, dir, "final.mp4")
	touch(t, dir, "final.mkv")
	touch(t, dir, "final.mkv.part")

	final, ok, err := ws.FinalArtifact(ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mkv", final.Ext)
	assert.Equal(t, filepath.Join(dir, "final.mkv"), final.Path)
}

func TestFindExisting_MissingDirectory(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	found, err := ws.FindExisting(ItemRef{Platform: "vimeo", ID: "1", Kind: model.ItemVideo}, KindVideo)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = ws.FindExisting(ItemRef{Platform: "vimeo", ID: "1"}, "thumbnail")
	assert.Error(t, err)
}
