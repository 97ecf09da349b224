// Package urlkey derives the stable identity key used for dedup and as the
// persistence primary key. Two URLs that point at the same logical document
// (trailing slash, tracking query params, fragment, default port) must
// produce the same key.
package urlkey

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonical normalizes rawURL to scheme://host/path with the query string,
// fragment, default port and trailing slash stripped. The result is the
// identity key.
func Canonical(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("can't parse url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	path := u.EscapedPath()
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "/" {
		path = ""
	}

	return scheme + "://" + host + path, nil
}

// Resolve makes href absolute against base. Already-absolute hrefs pass
// through untouched.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("can't parse base url %q: %w", base, err)
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("can't parse href %q: %w", href, err)
	}
	return b.ResolveReference(h).String(), nil
}
