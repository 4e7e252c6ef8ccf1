package utils

import (
	"net/url"
	"strings"
)

// NormalizeURL makes sure a user typed link carries a scheme.
// "instagram.com/jane" → "https://instagram.com/jane"; blank stays blank.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	// Protocol-relative or a scheme we do not accept
	s = strings.TrimPrefix(s, "//")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	return "https://" + s
}

// HostOf returns the host part of a URL, or "" when it cannot be parsed
func HostOf(raw string) string {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
