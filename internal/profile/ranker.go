// Package profile ranks probed tracks into ordered quality profiles.
package profile

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"yt-resolver/internal/model"
)

const (
	ContainerMKV = "mkv"
	ContainerMP4 = "mp4"
)

// Tier is one row of a fixed candidate table.
type Tier struct {
	Name       string
	Container  string
	VideoClass string
	AudioClass string
}

// StaticTable is the four-tier codec/container matrix.
var StaticTable = []Tier{
	{Name: "mkv_av1_opus", Container: ContainerMKV, VideoClass: model.VideoClassAV1, AudioClass: model.AudioClassOpus},
	{Name: "mkv_vp9_opus", Container: ContainerMKV, VideoClass: model.VideoClassVP9, AudioClass: model.AudioClassOpus},
	{Name: "mp4_av1_aac", Container: ContainerMP4, VideoClass: model.VideoClassAV1, AudioClass: model.AudioClassAAC},
	{Name: "mp4_h264_aac", Container: ContainerMP4, VideoClass: model.VideoClassH264, AudioClass: model.AudioClassAAC},
}

type Options struct {
	// MaxProfiles caps the result; 0 means unlimited.
	MaxProfiles int
	// MaxHeight drops taller video tracks; 0 means unlimited.
	MaxHeight int
	// Table restricts and orders candidates when non-empty.
	Table []Tier
	// AudioLanguages orders non-original audio by language tag, most
	// preferred first ("fr" also matches "fr-CA").
	AudioLanguages []string
	// MultiAudio adds the other language variants of the chosen audio
	// track to each profile. With AudioLanguages set, only listed
	// languages are added.
	MultiAudio bool
}

type candidate struct {
	video      model.Track
	audio      *model.Track
	videoClass string
	audioClass string
	container  string
	tier       int
	// language orders audio: 0 for the original track, then by the
	// configured language list, unlisted languages last.
	language int
}

// audioTrack is the track the candidate's sound comes from.
func (c candidate) audioTrack() model.Track {
	if c.audio != nil {
		return *c.audio
	}
	return c.video
}

func (c candidate) signature() string {
	return c.videoClass + "|" + c.audioClass + "|" + c.container
}

// Rank is pure: the same catalog and options always produce the same list.
func Rank(cat model.TrackCatalog, opts Options) []model.QualityProfile {
	if cat.ItemKind == model.ItemPlaylist {
		return []model.QualityProfile{}
	}

	videos := make([]model.Track, 0, len(cat.Tracks))
	audios := make([]model.Track, 0, len(cat.Tracks))
	for _, t := range cat.Tracks {
		switch t.Kind {
		case model.TrackVideo:
			if opts.MaxHeight > 0 && t.Resolution > opts.MaxHeight {
				continue
			}
			videos = append(videos, t)
		case model.TrackAudio:
			if model.IsAbsentCodec(t.AudioCodec) {
				continue
			}
			audios = append(audios, t)
		}
	}

	candidates := make([]candidate, 0, len(videos)*(len(audios)+1))
	for _, v := range videos {
		vclass := model.VideoCodecClass(v.VideoCodec)
		if v.Muxed {
			candidates = appendCandidate(candidates, opts.Table, v, nil, vclass, model.AudioCodecClass(v.AudioCodec))
		}
		for i := range audios {
			a := audios[i]
			candidates = appendCandidate(candidates, opts.Table, v, &a, vclass, model.AudioCodecClass(a.AudioCodec))
		}
	}

	langs := normalizeLanguages(opts.AudioLanguages)
	for i := range candidates {
		candidates[i].language = languageRank(candidates[i].audioTrack(), langs)
	}
	slices.SortStableFunc(candidates, compareCandidates)

	out := make([]model.QualityProfile, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if opts.MaxProfiles > 0 && len(out) >= opts.MaxProfiles {
			break
		}
		sig := c.signature()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		var extras []model.Track
		if opts.MultiAudio && c.audio != nil {
			extras = languageVariants(*c.audio, audios, langs)
		}
		out = append(out, toProfile(c, extras, len(out)))
	}
	return out
}

// languageVariants returns the other-language tracks in primary's group:
// same codec class and the same base format id ("251" for "251-3"), one
// per language, in language order.
func languageVariants(primary model.Track, audios []model.Track, langs []string) []model.Track {
	base := baseFormatID(primary.FormatID)
	class := model.AudioCodecClass(primary.AudioCodec)
	var group []model.Track
	for _, a := range audios {
		if a.FormatID == primary.FormatID || a.Language == "" || baseFormatID(a.FormatID) != base {
			continue
		}
		if model.AudioCodecClass(a.AudioCodec) != class {
			continue
		}
		if len(langs) > 0 && !a.Original && languageRank(a, langs) > len(langs) {
			continue
		}
		group = append(group, a)
	}
	slices.SortStableFunc(group, func(a, b model.Track) int {
		if c := cmp.Compare(languageRank(a, langs), languageRank(b, langs)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.LanguagePreference, a.LanguagePreference); c != 0 {
			return c
		}
		return cmp.Compare(a.FormatID, b.FormatID)
	})

	seen := map[string]bool{baseLanguage(primary.Language): true}
	out := make([]model.Track, 0, len(group))
	for _, a := range group {
		lang := baseLanguage(a.Language)
		if seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, a)
	}
	return out
}

func baseFormatID(id string) string {
	base, _, _ := strings.Cut(id, "-")
	return base
}

func baseLanguage(lang string) string {
	base, _, _ := strings.Cut(strings.ReplaceAll(strings.ToLower(lang), "_", "-"), "-")
	return base
}

func appendCandidate(dst []candidate, table []Tier, v model.Track, a *model.Track, vclass, aclass string) []candidate {
	container := ContainerFor(aclass)
	tier := 0
	if len(table) > 0 {
		tier = tierIndex(table, container, vclass, aclass)
		if tier < 0 {
			return dst
		}
	}
	return append(dst, candidate{
		video:      v,
		audio:      a,
		videoClass: vclass,
		audioClass: aclass,
		container:  container,
		tier:       tier,
	})
}

// ContainerFor picks mkv for any Opus pairing and mp4 otherwise.
func ContainerFor(audioClass string) string {
	if audioClass == model.AudioClassOpus {
		return ContainerMKV
	}
	return ContainerMP4
}

func tierIndex(table []Tier, container, vclass, aclass string) int {
	for i, t := range table {
		if t.Container == container && t.VideoClass == vclass && t.AudioClass == aclass {
			return i
		}
	}
	return -1
}

func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(a.tier, b.tier); c != 0 {
		return c
	}
	if c := cmp.Compare(videoScore(b.videoClass), videoScore(a.videoClass)); c != 0 {
		return c
	}
	if c := cmp.Compare(audioScore(b.audioClass), audioScore(a.audioClass)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.language, b.language); c != 0 {
		return c
	}
	if c := cmp.Compare(b.audioTrack().LanguagePreference, a.audioTrack().LanguagePreference); c != 0 {
		return c
	}
	if c := cmp.Compare(b.video.Resolution, a.video.Resolution); c != 0 {
		return c
	}
	if c := cmp.Compare(b.video.BitrateKbps, a.video.BitrateKbps); c != 0 {
		return c
	}
	if c := cmp.Compare(audioBitrate(b), audioBitrate(a)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.video.FormatID, b.video.FormatID); c != 0 {
		return c
	}
	return cmp.Compare(audioID(a), audioID(b))
}

func normalizeLanguages(langs []string) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func languageRank(t model.Track, langs []string) int {
	if t.Original {
		return 0
	}
	lang := strings.ToLower(t.Language)
	if lang != "" {
		base := baseLanguage(lang)
		for i, want := range langs {
			if base == want || strings.HasPrefix(lang, want) {
				return i + 1
			}
		}
	}
	return len(langs) + 1
}

func videoScore(class string) int {
	switch class {
	case model.VideoClassAV1:
		return 3
	case model.VideoClassVP9:
		return 2
	case model.VideoClassH264:
		return 1
	default:
		return 0
	}
}

func audioScore(class string) int {
	switch class {
	case model.AudioClassOpus:
		return 2
	case model.AudioClassAAC:
		return 1
	default:
		return 0
	}
}

func audioBitrate(c candidate) float64 {
	if c.audio == nil {
		return 0
	}
	return c.audio.BitrateKbps
}

func audioID(c candidate) string {
	if c.audio == nil {
		return ""
	}
	return c.audio.FormatID
}

func toProfile(c candidate, extras []model.Track, rank int) model.QualityProfile {
	p := model.QualityProfile{
		Rank:          rank,
		Container:     c.container,
		VideoTrackRef: c.video.FormatID,
		VideoClass:    c.videoClass,
		AudioClass:    c.audioClass,
		Height:        c.video.Resolution,
		EstimatedSize: c.video.EstimatedSize,
	}
	if c.audio != nil {
		p.AudioTrackRef = c.audio.FormatID
		p.EstimatedSize += c.audio.EstimatedSize
	}
	for _, a := range extras {
		p.ExtraAudioTrackRefs = append(p.ExtraAudioTrackRefs, a.FormatID)
		p.EstimatedSize += a.EstimatedSize
	}
	p.FormatSelector = FormatSelector(p)
	p.Label = label(p)
	return p
}

// FormatSelector renders the yt-dlp -f argument for a profile.
func FormatSelector(p model.QualityProfile) string {
	if p.AudioTrackRef == "" {
		return p.VideoTrackRef
	}
	parts := append([]string{p.VideoTrackRef, p.AudioTrackRef}, p.ExtraAudioTrackRefs...)
	return strings.Join(parts, "+")
}

func label(p model.QualityProfile) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(p.Container))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(p.VideoClass))
	b.WriteString(" + ")
	b.WriteString(strings.ToUpper(p.AudioClass))
	if p.Height > 0 {
		fmt.Fprintf(&b, " %dp", p.Height)
	}
	if n := len(p.ExtraAudioTrackRefs); n > 0 {
		fmt.Fprintf(&b, " (%d audio)", n+1)
	}
	return b.String()
}
