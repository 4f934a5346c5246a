// Package cache decides whether a persisted probe document can be reused.
package cache

import (
	"yt-resolver/internal/catalog"
	"yt-resolver/internal/model"
)

type Verdict string

const (
	Reusable Verdict = "reusable"
	Stale    Verdict = "stale"
	Corrupt  Verdict = "corrupt"
)

// NeedsProbe reports whether a fresh probe must replace the cached document.
func (v Verdict) NeedsProbe() bool {
	return v != Reusable
}

// Classify parses raw and applies ClassifyCatalog. Unparsable input is Corrupt.
func Classify(raw []byte) Verdict {
	cat, err := catalog.Parse(raw)
	if err != nil {
		return Corrupt
	}
	return ClassifyCatalog(cat)
}

// ClassifyCatalog keeps a catalog only when it carries at least one av1/vp9
// video track. Upstream sometimes serves a legacy-only format list under rate
// limiting; such a list must never replace a better one.
func ClassifyCatalog(cat model.TrackCatalog) Verdict {
	if cat.ItemKind == model.ItemPlaylist {
		return Reusable
	}
	for _, t := range cat.Tracks {
		if t.Kind != model.TrackVideo {
			continue
		}
		if model.IsPremiumVideoCodec(t.VideoCodec) {
			return Reusable
		}
	}
	return Stale
}
