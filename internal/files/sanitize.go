package files

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxFilenameBytes caps a sanitized title.
const MaxFilenameBytes = 200

const forbidden = `<>:"/\|?*`

// SanitizeFilename removes filesystem-unsafe characters from title, collapses whitespace
// runs into a single space and truncates the result to [MaxFilenameBytes] on a rune boundary.
//
// The result never contains any of <>:"/\|?* or control characters and may be empty.
func SanitizeFilename(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	space := false
	for _, r := range title {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case strings.ContainsRune(forbidden, r):
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return truncate(b.String(), MaxFilenameBytes)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

// OutputBase builds the extension-less output name for a download:
// "<sanitized title>-<token>". When the title sanitizes to nothing the base is
// "<videoID>_<unix ms>" instead.
func OutputBase(title, videoID, token string, now time.Time) string {
	name := SanitizeFilename(title)
	if name == "" {
		name = fmt.Sprintf("%s_%d", videoID, now.UnixMilli())
	}
	if token == "" {
		return name
	}
	return name + "-" + token
}
