// Package catalog normalizes yt-dlp probe output into a typed track catalog.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"

	"yt-resolver/internal/model"
)

// ClientKey is the top-level key used to tag a persisted probe document with
// the client identity that produced it.
const ClientKey = "successful_client"

type rawInfo struct {
	ID               *string         `json:"id"`
	Type             string          `json:"_type"`
	Title            string          `json:"title"`
	Duration         *float64        `json:"duration"`
	Formats          json.RawMessage `json:"formats"`
	SuccessfulClient string          `json:"successful_client"`
}

type rawFormat struct {
	FormatID           *string         `json:"format_id"`
	VCodec             *string         `json:"vcodec"`
	ACodec             *string         `json:"acodec"`
	Ext                string          `json:"ext"`
	Height             *float64        `json:"height"`
	Resolution         string          `json:"resolution"`
	Filesize           *float64        `json:"filesize"`
	FilesizeApprox     *float64        `json:"filesize_approx"`
	TBR                *float64        `json:"tbr"`
	VBR                *float64        `json:"vbr"`
	ABR                *float64        `json:"abr"`
	Language           *string         `json:"language"`
	LanguagePreference *float64        `json:"language_preference"`
	FormatNote         string          `json:"format_note"`
	HasDRM             json.RawMessage `json:"has_drm"`
}

// originalLanguagePreference is the language_preference yt-dlp assigns to
// the original audio track of a multi-language item.
const originalLanguagePreference = 10

// Build parses a `yt-dlp -J` document. Structural problems return a
// *model.ProbeParseError.
func Build(raw []byte) (model.TrackCatalog, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return model.TrackCatalog{}, &model.ProbeParseError{Err: errors.New("empty document")}
	}
	if trimmed[0] != '{' {
		return model.TrackCatalog{}, &model.ProbeParseError{Err: errors.New("document is not a JSON object")}
	}

	var info rawInfo
	if err := json.Unmarshal(trimmed, &info); err != nil {
		return model.TrackCatalog{}, &model.ProbeParseError{Err: err}
	}
	if info.ID == nil || strings.TrimSpace(*info.ID) == "" {
		return model.TrackCatalog{}, &model.ProbeParseError{Field: "id"}
	}

	cat := model.TrackCatalog{
		ItemID:       strings.TrimSpace(*info.ID),
		Title:        info.Title,
		SourceClient: strings.TrimSpace(info.SuccessfulClient),
		Tracks:       []model.Track{},
	}
	if info.Duration != nil {
		cat.DurationSeconds = *info.Duration
	}

	if strings.EqualFold(info.Type, "playlist") {
		cat.ItemKind = model.ItemPlaylist
		return cat, nil
	}
	cat.ItemKind = model.ItemVideo

	if len(info.Formats) == 0 || string(info.Formats) == "null" {
		return model.TrackCatalog{}, &model.ProbeParseError{Field: "formats"}
	}
	var formats []rawFormat
	if err := json.Unmarshal(info.Formats, &formats); err != nil {
		return model.TrackCatalog{}, &model.ProbeParseError{Field: "formats", Err: err}
	}

	var defaults []int
	for i, f := range formats {
		if f.FormatID == nil || strings.TrimSpace(*f.FormatID) == "" {
			return model.TrackCatalog{}, &model.ProbeParseError{Field: "formats[" + strconv.Itoa(i) + "].format_id"}
		}
		track, ok := normalizeFormat(f)
		if !ok {
			continue
		}
		if track.AudioCodec != "" && strings.Contains(strings.ToLower(f.FormatNote), "default") {
			defaults = append(defaults, len(cat.Tracks))
		}
		cat.Tracks = append(cat.Tracks, track)
	}
	if len(cat.Tracks) == 0 {
		return model.TrackCatalog{}, &model.ProbeParseError{Field: "formats", Err: errors.New("no usable tracks")}
	}
	// Without an explicit original, the default audio track stands in.
	if !slices.ContainsFunc(cat.Tracks, func(t model.Track) bool { return t.Original }) {
		for _, i := range defaults {
			cat.Tracks[i].Original = true
		}
	}
	return cat, nil
}

// Parse is Build under the name used for persisted documents.
func Parse(raw []byte) (model.TrackCatalog, error) {
	return Build(raw)
}

func normalizeFormat(f rawFormat) (model.Track, bool) {
	if isDRMFlagged(f.HasDRM) {
		return model.Track{}, false
	}
	vcodec := strOrEmpty(f.VCodec)
	acodec := strOrEmpty(f.ACodec)
	hasVideo := !model.IsAbsentCodec(vcodec)
	hasAudio := !model.IsAbsentCodec(acodec)

	track := model.Track{
		FormatID:      strings.TrimSpace(*f.FormatID),
		ContainerHint: strings.ToLower(strings.TrimSpace(f.Ext)),
		EstimatedSize: firstPositive(f.Filesize, f.FilesizeApprox),
		Language:      strOrEmpty(f.Language),
	}
	if f.LanguagePreference != nil {
		track.LanguagePreference = int(*f.LanguagePreference)
	}

	switch {
	case hasVideo:
		track.Kind = model.TrackVideo
		track.VideoCodec = vcodec
		track.Resolution = heightOf(f)
		track.BitrateKbps = firstFloat(f.VBR, f.TBR)
		if hasAudio {
			track.AudioCodec = acodec
			track.Muxed = true
			track.Original = isOriginalAudio(f)
		}
	case hasAudio:
		track.Kind = model.TrackAudio
		track.AudioCodec = acodec
		track.BitrateKbps = firstFloat(f.ABR, f.TBR)
		track.Original = isOriginalAudio(f)
	default:
		// storyboards, audio-only entries without codec info
		return model.Track{}, false
	}
	return track, true
}

// isDRMFlagged treats both true and yt-dlp's "maybe" as flagged.
func isDRMFlagged(raw json.RawMessage) bool {
	v := strings.ToLower(strings.TrimSpace(string(raw)))
	return v == "true" || v == `"maybe"`
}

func isOriginalAudio(f rawFormat) bool {
	if strings.Contains(strings.ToLower(f.FormatNote), "original") {
		return true
	}
	return f.LanguagePreference != nil && *f.LanguagePreference >= originalLanguagePreference
}

func heightOf(f rawFormat) int {
	if f.Height != nil && *f.Height > 0 {
		return int(*f.Height)
	}
	res := strings.ToLower(strings.TrimSpace(f.Resolution))
	if _, h, ok := strings.Cut(res, "x"); ok {
		if n, err := strconv.Atoi(h); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func firstPositive(values ...*float64) int64 {
	for _, v := range values {
		if v != nil && *v > 0 && !math.IsInf(*v, 0) {
			return int64(math.Round(*v))
		}
	}
	return 0
}

func firstFloat(values ...*float64) float64 {
	for _, v := range values {
		if v != nil && *v > 0 {
			return *v
		}
	}
	return 0
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
