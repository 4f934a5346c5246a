package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoCodecClass(t *testing.T) {
	tests := []struct {
		codec string
		want  string
	}{
		{"av01.0.08M.08", VideoClassAV1},
		{"AV1", VideoClassAV1},
		{"vp9", VideoClassVP9},
		{"vp09.00.40.08", VideoClassVP9},
		{"avc1.640028", VideoClassH264},
		{"h264", VideoClassH264},
		{"hev1", VideoClassOther},
		{"", VideoClassOther},
	}
	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoCodecClass(tt.codec))
		})
	}
}

func TestAudioCodecClass(t *testing.T) {
	assert.Equal(t, AudioClassOpus, AudioCodecClass("opus"))
	assert.Equal(t, AudioClassAAC, AudioCodecClass("mp4a.40.2"))
	assert.Equal(t, AudioClassAAC, AudioCodecClass("aac"))
	assert.Equal(t, AudioClassOther, AudioCodecClass("mp3"))
}

func TestIsPremiumVideoCodec(t *testing.T) {
	assert.True(t, IsPremiumVideoCodec("av01.0.05M.08"))
	assert.True(t, IsPremiumVideoCodec("VP09.00.50.08"))
	assert.False(t, IsPremiumVideoCodec("avc1.4d401f"))
	assert.False(t, IsPremiumVideoCodec("none"))
}
