package asset

import (
	"net/url"
	"strings"
)

// ResolveURL turns a stored reference into an absolute URL for the given
// scheme and host. A nil or empty reference resolves to nil.
func ResolveURL(ref *string, scheme, host string) *string {
	if ref == nil || strings.TrimSpace(*ref) == "" {
		return nil
	}

	normalized := strings.ReplaceAll(*ref, `\`, "/")
	normalized = "/" + strings.TrimLeft(normalized, "/")
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}

	u := url.URL{Scheme: scheme, Host: host, Path: normalized}
	s := u.String()
	return &s
}
