package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"yt-resolver/internal/runstore"
)

type ArtifactKind string

const (
	KindVideo       ArtifactKind = "video"
	KindAudio       ArtifactKind = "audio"
	KindSubtitle    ArtifactKind = "subtitle"
	KindSubtitleCut ArtifactKind = "subtitle_cut"
	KindFinal       ArtifactKind = "final"
)

// Artifact is a file in an item directory named only from its kind, format
// id or language, and extension.
type Artifact struct {
	Kind     ArtifactKind `json:"kind"`
	FormatID string       `json:"format_id,omitempty"`
	Language string       `json:"language,omitempty"`
	Ext      string       `json:"ext"`
	Path     string       `json:"path,omitempty"`
}

// FinalExtensions is the preference order when several final files exist.
var FinalExtensions = []string{"mkv", "mp4", "webm", "avi"}

var (
	videoExtensions = []string{"mkv", "mp4", "webm", "avi", "mov"}
	audioExtensions = []string{"m4a", "opus", "webm", "mp3", "ogg", "aac", "flac"}
)

type kindRule struct {
	glob string
	re   *regexp.Regexp
	exts []string
}

// Format ids never contain dots, so yt-dlp's ".fNNN." intermediates and
// ".part"/".ytdl" leftovers are rejected by the patterns.
var kindRules = map[ArtifactKind]kindRule{
	KindVideo:       {"video-*.*", regexp.MustCompile(`^video-([^.]+)\.([a-z0-9]+)$`), videoExtensions},
	KindAudio:       {"audio-*.*", regexp.MustCompile(`^audio-([^.]+)\.([a-z0-9]+)$`), audioExtensions},
	KindSubtitle:    {"subtitles.*.srt", regexp.MustCompile(`^subtitles\.([^.]+)\.(srt)$`), []string{"srt"}},
	KindSubtitleCut: {"subtitles-cut.*.srt", regexp.MustCompile(`^subtitles-cut\.([^.]+)\.(srt)$`), []string{"srt"}},
	KindFinal:       {"final.*", regexp.MustCompile(`^final()\.([a-z0-9]+)$`), FinalExtensions},
}

// CanonicalName is pure: the same artifact always yields the same name.
func CanonicalName(a Artifact) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a.Ext)), ".")
	switch a.Kind {
	case KindVideo, KindAudio:
		id := strings.TrimSpace(a.FormatID)
		if id == "" || strings.ContainsAny(id, `./\`) {
			return "", fmt.Errorf("invalid format id %q for %s artifact", a.FormatID, a.Kind)
		}
		if ext == "" {
			return "", fmt.Errorf("extension is required for %s artifact", a.Kind)
		}
		return string(a.Kind) + "-" + id + "." + ext, nil
	case KindSubtitle, KindSubtitleCut:
		lang := strings.TrimSpace(a.Language)
		if lang == "" || strings.ContainsAny(lang, `./\`) {
			return "", fmt.Errorf("invalid subtitle language %q", a.Language)
		}
		if a.Kind == KindSubtitleCut {
			return "subtitles-cut." + lang + ".srt", nil
		}
		return "subtitles." + lang + ".srt", nil
	case KindFinal:
		if ext == "" {
			return "", fmt.Errorf("extension is required for final artifact")
		}
		return "final." + ext, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
}

func (w Workspace) CanonicalPath(ref ItemRef, a Artifact) (string, error) {
	name, err := CanonicalName(a)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.ItemDir(ref), name), nil
}

// FindExisting lists complete artifacts of one kind in the item directory,
// best extension first then by name. A missing directory yields none.
func (w Workspace) FindExisting(ref ItemRef, kind ArtifactKind) ([]Artifact, error) {
	rule, ok := kindRules[kind]
	if !ok {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	dir := w.ItemDir(ref)
	matches, err := doublestar.Glob(os.DirFS(dir), rule.glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s for %s artifacts: %w", dir, kind, err)
	}

	out := make([]Artifact, 0, len(matches))
	for _, name := range matches {
		if runstore.IsTempName(name) {
			continue
		}
		m := rule.re.FindStringSubmatch(name)
		if m == nil || !slices.Contains(rule.exts, m[2]) {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		a := Artifact{Kind: kind, Ext: m[2], Path: filepath.Join(dir, name)}
		switch kind {
		case KindVideo, KindAudio:
			a.FormatID = m[1]
		case KindSubtitle, KindSubtitleCut:
			a.Language = m[1]
		}
		out = append(out, a)
	}

	slices.SortFunc(out, func(a, b Artifact) int {
		ai, bi := slices.Index(rule.exts, a.Ext), slices.Index(rule.exts, b.Ext)
		if ai != bi {
			return ai - bi
		}
		return strings.Compare(filepath.Base(a.Path), filepath.Base(b.Path))
	})
	return out, nil
}

// FinalArtifact returns the preferred final file, if any.
func (w Workspace) FinalArtifact(ref ItemRef) (Artifact, bool, error) {
	found, err := w.FindExisting(ref, KindFinal)
	if err != nil || len(found) == 0 {
		return Artifact{}, false, err
	}
	return found[0], true, nil
}

// ArtifactSize is the on-disk size of path, or 0.
func ArtifactSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
