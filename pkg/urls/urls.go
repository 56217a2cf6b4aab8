// Package urls provides utility functions for working with YouTube URLs.
package urls

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	schemeHTTPS  = "https"
	shortHost    = "youtu.be"
	watchURLBase = "https://www.youtube.com/watch?v="
)

// hostPrefixes are path prefixes that mean the scheme was dropped from a YouTube link.
var hostPrefixes = []string{
	"youtu.be/",
	"youtube.com/",
	"www.youtube.com/",
	"m.youtube.com/",
}

var (
	reStrict   = regexp.MustCompile(`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|.+\?v=)?([^&=%\?]{11})`)
	reFallback = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)
)

// CleanYouTube repairs common copy-paste damage in a YouTube link and
// rewrites short links to the canonical watch URL.
// Example: youtu.be/abc12345678 => https://www.youtube.com/watch?v=abc12345678
func CleanYouTube(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, "")

	if strings.Contains(raw, "&") && !strings.Contains(raw, "?") {
		raw = strings.Replace(raw, "&", "?", 1)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if u.Host == "" && u.Scheme == "" && hasHostPrefix(u.Path) {
		raw = schemeHTTPS + "://" + raw

		u, err = url.Parse(raw)
		if err != nil {
			return raw
		}
	}

	if isShortHost(u.Host) {
		id := path.Base(u.Path)
		if id != "" && id != "/" && id != "." {
			return watchURLBase + id
		}
	}

	return raw
}

// IsYouTube reports whether raw looks like a YouTube video URL.
func IsYouTube(raw string) bool {
	return VideoID(raw) != ""
}

// VideoID extracts the 11 character video identifier, or returns "" if none is found.
func VideoID(raw string) string {
	if m := reStrict.FindStringSubmatch(raw); m != nil {
		return m[len(m)-1]
	}

	if m := reFallback.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	return ""
}

func hasHostPrefix(p string) bool {
	for _, prefix := range hostPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}

	return false
}

func isShortHost(host string) bool {
	return host == shortHost || strings.HasSuffix(host, "."+shortHost)
}
