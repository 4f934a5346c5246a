package model

import "strings"

const (
	VideoClassAV1   = "av1"
	VideoClassVP9   = "vp9"
	VideoClassH264  = "h264"
	VideoClassOther = "other"

	AudioClassOpus  = "opus"
	AudioClassAAC   = "aac"
	AudioClassOther = "other"
)

// VideoCodecClass maps a raw codec string such as "av01.0.08M.08" to its class.
func VideoCodecClass(codec string) string {
	c := strings.ToLower(strings.TrimSpace(codec))
	switch {
	case strings.HasPrefix(c, "av01"), strings.HasPrefix(c, "av1"):
		return VideoClassAV1
	case strings.HasPrefix(c, "vp09"), strings.HasPrefix(c, "vp9"):
		return VideoClassVP9
	case strings.HasPrefix(c, "avc"), strings.HasPrefix(c, "h264"):
		return VideoClassH264
	default:
		return VideoClassOther
	}
}

func AudioCodecClass(codec string) string {
	c := strings.ToLower(strings.TrimSpace(codec))
	switch {
	case strings.HasPrefix(c, "opus"):
		return AudioClassOpus
	case strings.HasPrefix(c, "mp4a"), strings.HasPrefix(c, "aac"):
		return AudioClassAAC
	default:
		return AudioClassOther
	}
}

// IsPremiumVideoCodec reports whether codec belongs to the av1/vp9 family.
func IsPremiumVideoCodec(codec string) bool {
	switch VideoCodecClass(codec) {
	case VideoClassAV1, VideoClassVP9:
		return true
	default:
		return false
	}
}

// IsAbsentCodec treats yt-dlp's "none" marker like a missing field.
func IsAbsentCodec(codec string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	return c == "" || c == "none"
}
