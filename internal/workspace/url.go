package workspace

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"yt-resolver/internal/model"
)

// ItemRef identifies one media item (or playlist) independent of its title.
type ItemRef struct {
	Platform string         `json:"platform"`
	ID       string         `json:"id"`
	Kind     model.ItemKind `json:"kind"`
	URL      string         `json:"url"`
}

// Key is the stable per-item key used for client preferences and logs.
func (r ItemRef) Key() string {
	if r.Kind == model.ItemPlaylist {
		return r.Platform + ":playlist:" + r.ID
	}
	return r.Platform + ":" + r.ID
}

// ParseKey reverses Key.
func ParseKey(key string) (ItemRef, error) {
	parts := strings.Split(strings.TrimSpace(key), ":")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return ItemRef{Platform: parts[0], ID: parts[1], Kind: model.ItemVideo}, nil
	case len(parts) == 3 && parts[1] == "playlist" && parts[0] != "" && parts[2] != "":
		return ItemRef{Platform: parts[0], ID: parts[2], Kind: model.ItemPlaylist}, nil
	}
	return ItemRef{}, fmt.Errorf("invalid item key %q", key)
}

func (r ItemRef) String() string {
	if r.Kind == model.ItemPlaylist {
		return r.Platform + "-playlist-" + r.ID
	}
	return r.Platform + "-" + r.ID
}

type urlPattern struct {
	platform string
	kind     model.ItemKind
	re       *regexp.Regexp
}

// Checked in order; the first match wins.
var urlPatterns = []urlPattern{
	{"youtube", model.ItemPlaylist, regexp.MustCompile(`youtube\.com/playlist\?(?:.*&)?list=([a-zA-Z0-9_-]+)`)},
	{"youtube", model.ItemVideo, regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtube\.com/.*[?&]v=)([a-zA-Z0-9_-]{11})`)},
	{"youtube", model.ItemVideo, regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`)},
	{"youtube", model.ItemVideo, regexp.MustCompile(`youtube\.com/(?:shorts|embed|live)/([a-zA-Z0-9_-]+)`)},
	{"instagram", model.ItemVideo, regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([a-zA-Z0-9_-]+)`)},
	{"tiktok", model.ItemVideo, regexp.MustCompile(`tiktok\.com/.*?/video/(\d+)`)},
	{"tiktok", model.ItemVideo, regexp.MustCompile(`v[mt]\.tiktok\.com/([a-zA-Z0-9]+)`)},
	{"vimeo", model.ItemVideo, regexp.MustCompile(`vimeo\.com/(\d+)`)},
	{"dailymotion", model.ItemVideo, regexp.MustCompile(`dailymotion\.com/video/([a-zA-Z0-9]+)`)},
}

// ParseURL maps a source URL to its item reference. Unknown hosts fall back
// to the "generic" platform keyed by a hash of the URL.
func ParseURL(raw string) (ItemRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ItemRef{}, fmt.Errorf("source URL is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return ItemRef{}, fmt.Errorf("parse source URL %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ItemRef{}, fmt.Errorf("unsupported source URL scheme %q", u.Scheme)
	}

	for _, p := range urlPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) > 1 {
			return ItemRef{Platform: p.platform, ID: m[1], Kind: p.kind, URL: s}, nil
		}
	}

	sum := md5.Sum([]byte(s))
	return ItemRef{
		Platform: "generic",
		ID:       hex.EncodeToString(sum[:])[:12],
		Kind:     model.ItemVideo,
		URL:      s,
	}, nil
}
