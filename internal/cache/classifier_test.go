package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"yt-resolver/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Verdict
	}{
		{
			name: "premium and legacy mixed",
			raw:  `{"id":"a","formats":[{"format_id":"399","vcodec":"av01.0.08M.08","acodec":"none"},{"format_id":"137","vcodec":"avc1.640028","acodec":"none"}]}`,
			want: Reusable,
		},
		{
			name: "vp9 only",
			raw:  `{"id":"a","formats":[{"format_id":"248","vcodec":"vp9","acodec":"none"}]}`,
			want: Reusable,
		},
		{
			name: "uppercase vp09",
			raw:  `{"id":"a","formats":[{"format_id":"616","vcodec":"VP09.00.40.08","acodec":"none"}]}`,
			want: Reusable,
		},
		{
			name: "legacy only",
			raw:  `{"id":"a","formats":[{"format_id":"137","vcodec":"avc1.640028","acodec":"none"},{"format_id":"18","vcodec":"h264","acodec":"mp4a.40.2"}]}`,
			want: Stale,
		},
		{
			name: "audio only",
			raw:  `{"id":"a","formats":[{"format_id":"251","vcodec":"none","acodec":"opus"}]}`,
			want: Stale,
		},
		{
			name: "playlist",
			raw:  `{"id":"PL1","_type":"playlist","entries":[]}`,
			want: Reusable,
		},
		{
			name: "truncated json",
			raw:  `{"id":"a","formats":[{"format_id":"399"`,
			want: Corrupt,
		},
		{
			name: "empty",
			raw:  ``,
			want: Corrupt,
		},
		{
			name: "missing formats",
			raw:  `{"id":"a"}`,
			want: Corrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.raw)))
		})
	}
}

func TestClassifyCatalog_EmptyVideoCatalogIsStale(t *testing.T) {
	assert.Equal(t, Stale, ClassifyCatalog(model.TrackCatalog{ItemKind: model.ItemVideo}))
}

func TestVerdict_NeedsProbe(t *testing.T) {
	assert.False(t, Reusable.NeedsProbe())
	assert.True(t, Stale.NeedsProbe())
	assert.True(t, Corrupt.NeedsProbe())
}
