package tasks

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/storage"
)

const maxNameBytes = 200

// reservedChars cannot appear in a filename on at least one common filesystem.
const reservedChars = `<>:"/\|?*`

// SanitizeTitle turns an external title into a safe filename stem.
//
// Reserved and control characters are dropped, whitespace runs collapse to one
// space, leading and trailing dots and spaces are trimmed, and the result is cut
// to a fixed byte budget on a rune boundary. When nothing survives, fallback
// (usually the source video id) is sanitized the same way; failing that, "untitled".
func SanitizeTitle(title, fallback string) string {
	if name := sanitize(title); name != "" {
		return name
	}
	if name := sanitize(fallback); name != "" {
		return name
	}
	return "untitled"
}

// TrackFilename is the catalog filename for a sanitized title.
func TrackFilename(title, fallback string) string {
	return SanitizeTitle(title, fallback) + storage.TrackExt
}

func sanitize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case r == utf8.RuneError, unicode.IsControl(r), strings.ContainsRune(reservedChars, r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	name := strings.Trim(b.String(), ". ")
	for len(name) > maxNameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return strings.Trim(name, ". ")
}

// ValidateSourceURL accepts absolute http(s) URLs with a host.
func ValidateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: URL is required", shared.ErrInvalidInput)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: malformed URL: %v", shared.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: URL scheme must be http or https", shared.ErrInvalidInput)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: URL has no host", shared.ErrInvalidInput)
	}
	return nil
}
