package workspace

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	invalidSegmentChars  = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\x7F]`)
	repeatedSpace        = regexp.MustCompile(`\s+`)
)

const maxFilenameBytes = 200

// SanitizeFilename makes a user-facing name safe as a single path element.
// An empty result falls back to "video".
func SanitizeFilename(name string) string {
	clean := repeatedSpace.ReplaceAllString(name, " ")
	clean = invalidFilenameChars.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, " .-")
	clean = truncateUTF8(clean, maxFilenameBytes)
	if clean == "" {
		return "video"
	}
	return clean
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
